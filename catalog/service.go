package catalog

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	auth "github.com/goliatone/go-shop-auth"
)

// ProductInput carries the writable product fields. Nil fields are left
// untouched on update and defaulted on create.
type ProductInput struct {
	Name          *string   `json:"name"`
	Price         *int64    `json:"price"`
	Description   *string   `json:"description"`
	Image         *string   `json:"image"`
	Category      *Category `json:"category"`
	Company       *Company  `json:"company"`
	Colors        []string  `json:"colors"`
	Featured      *bool     `json:"featured"`
	FreeShipping  *bool     `json:"freeShipping"`
	Inventory     *int      `json:"inventory"`
	AverageRating *float64  `json:"averageRating"`
}

func (in ProductInput) apply(p *Product) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Company != nil {
		p.Company = *in.Company
	}
	if in.Colors != nil {
		p.Colors = append([]string(nil), in.Colors...)
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
	if in.FreeShipping != nil {
		p.FreeShipping = *in.FreeShipping
	}
	if in.Inventory != nil {
		p.Inventory = *in.Inventory
	}
	if in.AverageRating != nil {
		p.AverageRating = *in.AverageRating
	}
}

// Service manages the catalog. Authorization happens at the route level.
type Service struct {
	products Products
	logger   auth.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithLogger(logger auth.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(products Products, opts ...ServiceOption) *Service {
	s := &Service{
		products: products,
		logger:   auth.NopLogger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create stores a new product owned by userID
func (s *Service) Create(ctx context.Context, userID string, in ProductInput) (*Product, error) {
	now := s.now()
	product := &Product{
		ID:        uuid.NewString(),
		Image:     DefaultImage,
		Colors:    []string{DefaultColor},
		Inventory: DefaultInventory,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	in.apply(product)
	product.UserID = userID

	if err := product.Validate(); err != nil {
		return nil, invalid(err)
	}

	created, err := s.products.Create(ctx, product)
	if err != nil {
		return nil, s.internal(err, "failed to create product")
	}
	return created, nil
}

// List returns every product
func (s *Service) List(ctx context.Context) ([]*Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, s.internal(err, "failed to list products")
	}
	return products, nil
}

// Get returns the product id
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupErr(err, id)
	}
	return product, nil
}

// Update applies in to the product id and validates the result
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (*Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupErr(err, id)
	}

	in.apply(product)
	now := s.now()
	product.UpdatedAt = &now

	if err := product.Validate(); err != nil {
		return nil, invalid(err)
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, s.lookupErr(err, id)
	}
	return product, nil
}

// Delete removes the product id
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return s.lookupErr(err, id)
	}
	return nil
}

func (s *Service) lookupErr(err error, id string) error {
	if errors.Is(err, ErrProductNotFound) {
		return auth.WithMessage(ErrProductNotFound, "no product with id: "+id)
	}
	return s.internal(err, "failed to load product")
}

func (s *Service) internal(err error, message string) error {
	s.logger.Error(message, "error", err)
	return errors.Wrap(err, errors.CategoryInternal, message).WithCode(errors.CodeInternal)
}

func invalid(err error) error {
	return auth.WithMessage(ErrInvalidProduct, err.Error(), map[string]any{
		"fields": auth.FormatValidationErrorToMap(err),
	})
}
