package catalog

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

type Category string

const (
	CategoryOffice  Category = "office"
	CategoryKitchen Category = "kitchen"
	CategoryBedroom Category = "bedroom"
)

type Company string

const (
	CompanyIkea   Company = "ikea"
	CompanyLiddy  Company = "liddy"
	CompanyMarcos Company = "marcos"
)

const (
	DefaultImage     = "/uploads/example.jpeg"
	DefaultInventory = 15
	DefaultColor     = "#222"
)

// Product is a catalog entry. Price is in cents.
type Product struct {
	ID            string     `bson:"_id" json:"id"`
	Name          string     `bson:"name" json:"name"`
	Price         int64      `bson:"price" json:"price"`
	Description   string     `bson:"description" json:"description"`
	Image         string     `bson:"image" json:"image"`
	Category      Category   `bson:"category" json:"category"`
	Company       Company    `bson:"company" json:"company"`
	Colors        []string   `bson:"colors" json:"colors"`
	Featured      bool       `bson:"featured" json:"featured"`
	FreeShipping  bool       `bson:"free_shipping" json:"freeShipping"`
	Inventory     int        `bson:"inventory" json:"inventory"`
	AverageRating float64    `bson:"average_rating" json:"averageRating"`
	UserID        string     `bson:"user_id" json:"user"`
	CreatedAt     *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Clone returns a copy that shares nothing with p
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Colors = append([]string(nil), p.Colors...)
	return &clone
}

// Validate will validate the product
func (p Product) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Price, validation.Min(int64(0))),
		validation.Field(&p.Description, validation.Required, validation.Length(1, 1000)),
		validation.Field(&p.Category, validation.Required, validation.In(CategoryOffice, CategoryKitchen, CategoryBedroom)),
		validation.Field(&p.Company, validation.Required, validation.In(CompanyIkea, CompanyLiddy, CompanyMarcos)),
		validation.Field(&p.Colors, validation.Required),
		validation.Field(&p.Inventory, validation.Min(0)),
		validation.Field(&p.AverageRating, validation.Min(0.0), validation.Max(5.0)),
		validation.Field(&p.UserID, validation.Required),
	)
}

// Products is the product repository. Lookups return ErrProductNotFound
// when nothing matches.
type Products interface {
	Create(ctx context.Context, product *Product) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	FindByID(ctx context.Context, id string) (*Product, error)
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id string) error
}

const (
	TextCodeProductNotFound = "PRODUCT_NOT_FOUND"
	TextCodeInvalidProduct  = "INVALID_PRODUCT"
)

// ErrProductNotFound is returned by repositories
var ErrProductNotFound = errors.New("product not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProductNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidProduct wraps field validation failures
var ErrInvalidProduct = errors.New("invalid product", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidProduct).
	WithCode(errors.CodeBadRequest)
