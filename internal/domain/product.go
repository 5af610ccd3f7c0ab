package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// PanelType is the photovoltaic technology of a panel.
type PanelType string

const (
	PanelMono     PanelType = "mono"
	PanelPoly     PanelType = "poly"
	PanelThin     PanelType = "thin"
	PanelBifacial PanelType = "bifacial"
)

// PanelTypes lists the accepted panel types in display order.
var PanelTypes = []PanelType{PanelMono, PanelPoly, PanelThin, PanelBifacial}

var panelTypeLabels = map[PanelType]string{
	PanelMono:     "Monocrystalline",
	PanelPoly:     "Polycrystalline",
	PanelThin:     "Thin-Film",
	PanelBifacial: "Bifacial",
}

// Valid reports whether p is one of the known panel types.
func (p PanelType) Valid() bool {
	_, ok := panelTypeLabels[p]
	return ok
}

// Label returns the human readable name of the panel type.
func (p PanelType) Label() string {
	return panelTypeLabels[p]
}

// DefaultProductImage is served when a product has no image of its own.
const DefaultProductImage = "/static/images/default-product.jpg"

// Category groups products in the catalog.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon"`
}

// Product is a solar panel offered in the store.
// Price, Efficiency and Weight use decimal.Decimal so totals never drift.
type Product struct {
	ID                     int64           `json:"id"`
	Name                   string          `json:"name"`
	Slug                   string          `json:"slug"`
	SKU                    string          `json:"sku"`
	Description            string          `json:"description"`
	DetailedDescription    string          `json:"detailed_description,omitempty"`
	Price                  decimal.Decimal `json:"price"`
	CategoryID             int64           `json:"category_id"`
	Category               *Category       `json:"category,omitempty"`
	PanelType              PanelType       `json:"panel_type"`
	Wattage                int             `json:"wattage"`
	Efficiency             decimal.Decimal `json:"efficiency"`
	Dimensions             string          `json:"dimensions,omitempty"`
	Weight                 decimal.Decimal `json:"weight"`
	WarrantyYears          int             `json:"warranty_years"`
	TemperatureCoefficient string          `json:"temperature_coefficient,omitempty"`
	MaxSystemVoltage       int             `json:"max_system_voltage"`
	Image                  string          `json:"image,omitempty"`
	Thumbnail              string          `json:"thumbnail,omitempty"`
	Stock                  int             `json:"stock"`
	IsFeatured             bool            `json:"is_featured"`
	Images                 []ProductImage  `json:"images,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// ProductImage is one gallery image of a product. Images are shown by Order.
type ProductImage struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Image     string `json:"image"`
	AltText   string `json:"alt_text,omitempty"`
	IsPrimary bool   `json:"is_primary"`
	Order     int    `json:"order"`
}

// URL is the storefront path of the product detail page.
func (p *Product) URL() string {
	return "/products/" + p.Slug + "/"
}

// ImageURL returns the product image or the shared placeholder.
func (p *Product) ImageURL() string {
	if p.Image == "" {
		return DefaultProductImage
	}
	return p.Image
}

// InStock reports whether at least one unit can be sold.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// PricePerWatt is price divided by wattage, rounded to four places.
func (p *Product) PricePerWatt() decimal.Decimal {
	if p.Wattage <= 0 {
		return decimal.Zero
	}
	return p.Price.Div(decimal.NewFromInt(int64(p.Wattage))).Round(4)
}

// Slugify lowercases s and joins its alphanumeric runs with single dashes.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '_' || r == '-' || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			pendingDash = true
		}
	}
	return b.String()
}

// FormatPrice renders an amount the way the storefront displays it, e.g. "$1299.00".
func FormatPrice(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
