// Package entity maps product category tags to the field names and REST
// paths of their catalog schema, so booking code never branches on type.
package entity

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
)

// Type is a product category tag.
type Type string

const (
	TypeMobile Type = "mobile"
	TypeCar    Type = "car"
	TypeLaptop Type = "laptop"
	TypeBike   Type = "bike"
)

// CodeUnknownEntityType is returned when a tag is not registered.
const CodeUnknownEntityType = "UNKNOWN_ENTITY_TYPE"

// ErrUnknownEntityType matches any unknown-type failure under errors.Is.
var ErrUnknownEntityType = domain.NewError(domain.KindValidation, CodeUnknownEntityType, "unknown entity type")

const idPlaceholder = "{id}"

// Config describes one product category's catalog schema.
type Config struct {
	Type             Type   `json:"type"`
	IDField          string `json:"id_field"`
	TitleField       string `json:"title_field"`
	PriceField       string `json:"price_field"`
	ImagesField      string `json:"images_field"`
	DescriptionField string `json:"description_field"`
	SellerField      string `json:"seller_field"`
	StatusField      string `json:"status_field"`

	ListPath   string `json:"list_path"`
	DetailPath string `json:"detail_path"`
	StatusPath string `json:"status_path"`
}

// Registry is an immutable tag → Config lookup.
type Registry struct {
	configs map[Type]Config
}

// NewRegistry builds a registry; duplicate or empty tags are rejected.
func NewRegistry(configs ...Config) (*Registry, error) {
	m := make(map[Type]Config, len(configs))
	for _, cfg := range configs {
		if cfg.Type == "" {
			return nil, fmt.Errorf("entity config with empty type")
		}
		if cfg.IDField == "" || cfg.DetailPath == "" {
			return nil, fmt.Errorf("entity config %s: id field and detail path are required", cfg.Type)
		}
		if _, dup := m[cfg.Type]; dup {
			return nil, fmt.Errorf("entity config %s registered twice", cfg.Type)
		}
		m[cfg.Type] = cfg
	}
	return &Registry{configs: m}, nil
}

// DefaultRegistry returns the four marketplace categories.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		newConfig(TypeMobile, "mobileId", "mobiles"),
		newConfig(TypeCar, "carId", "cars"),
		newConfig(TypeLaptop, "laptopId", "laptops"),
		newConfig(TypeBike, "bikeId", "bikes"),
	)
	if err != nil {
		panic(err)
	}
	return r
}

func newConfig(t Type, idField, collection string) Config {
	return Config{
		Type:             t,
		IDField:          idField,
		TitleField:       "title",
		PriceField:       "price",
		ImagesField:      "images",
		DescriptionField: "description",
		SellerField:      "sellerId",
		StatusField:      "status",
		ListPath:         "/api/" + collection,
		DetailPath:       "/api/" + collection + "/" + idPlaceholder,
		StatusPath:       "/api/" + collection + "/" + idPlaceholder + "/status",
	}
}

// Resolve returns the config registered for tag.
func (r *Registry) Resolve(tag string) (Config, error) {
	cfg, ok := r.configs[Type(strings.ToLower(strings.TrimSpace(tag)))]
	if !ok {
		return Config{}, ErrUnknownEntityType.WithMessage(fmt.Sprintf("unknown entity type: %q", tag))
	}
	return cfg, nil
}

// IsRegistered reports whether tag resolves.
func (r *Registry) IsRegistered(tag string) bool {
	_, err := r.Resolve(tag)
	return err == nil
}

// Types returns the registered tags in sorted order.
func (r *Registry) Types() []Type {
	out := make([]Type, 0, len(r.configs))
	for t := range r.configs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Configs returns every config in tag order.
func (r *Registry) Configs() []Config {
	types := r.Types()
	out := make([]Config, len(types))
	for i, t := range types {
		out[i] = r.configs[t]
	}
	return out
}

// --- Path templates ---

// DetailURL joins base with the detail path for id.
func (c Config) DetailURL(base, id string) string {
	return joinURL(base, expand(c.DetailPath, id))
}

// StatusURL joins base with the status path for id.
func (c Config) StatusURL(base, id string) string {
	return joinURL(base, expand(c.StatusPath, id))
}

func expand(template, id string) string {
	return strings.ReplaceAll(template, idPlaceholder, url.PathEscape(id))
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// --- Document accessors ---

// Document is a listing as served by the catalog, in its per-type schema.
type Document map[string]any

// ID returns the listing id, normalising numeric ids to decimal strings.
func (c Config) ID(doc Document) (string, bool) {
	return stringField(doc, c.IDField)
}

// Title returns the display title.
func (c Config) Title(doc Document) string {
	s, _ := stringField(doc, c.TitleField)
	return s
}

// Description returns the long description.
func (c Config) Description(doc Document) string {
	s, _ := stringField(doc, c.DescriptionField)
	return s
}

// SellerID returns the owning seller's id.
func (c Config) SellerID(doc Document) (string, bool) {
	return stringField(doc, c.SellerField)
}

// Status returns the catalog status string, upper-cased.
func (c Config) Status(doc Document) string {
	s, _ := stringField(doc, c.StatusField)
	return strings.ToUpper(s)
}

// Price returns the price as a float. Strings holding numbers are accepted.
func (c Config) Price(doc Document) (float64, bool) {
	switch v := doc[c.PriceField].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Images returns image URLs. A single string is treated as one image.
func (c Config) Images(doc Document) []string {
	switch v := doc[c.ImagesField].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func stringField(doc Document, field string) (string, bool) {
	switch v := doc[field].(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}
