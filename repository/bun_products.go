package repository

import (
	"context"
	"time"

	repo "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-shop-auth/catalog"
)

// ProductModel is the Bun model for products. Colors is stored as JSON.
type ProductModel struct {
	bun.BaseModel `bun:"table:products"`

	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid"`
	Name          string    `bun:"name,notnull"`
	Price         int64     `bun:"price,notnull"`
	Description   string    `bun:"description,notnull"`
	Image         string    `bun:"image"`
	Category      string    `bun:"category,notnull"`
	Company       string    `bun:"company,notnull"`
	Colors        []string  `bun:"colors"`
	Featured      bool      `bun:"featured,notnull"`
	FreeShipping  bool      `bun:"free_shipping,notnull"`
	Inventory     int       `bun:"inventory,notnull"`
	AverageRating float64   `bun:"average_rating,notnull"`
	UserID        string    `bun:"user_id,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// BunProducts implements catalog.Products using Bun.
type BunProducts struct {
	repo.Repository[*ProductModel]
}

func NewBunProducts(db *bun.DB) *BunProducts {
	return &BunProducts{
		Repository: repo.NewRepository[*ProductModel](db, repo.ModelHandlers[*ProductModel]{
			NewRecord: func() *ProductModel { return &ProductModel{} },
			GetID: func(p *ProductModel) uuid.UUID {
				if p == nil {
					return uuid.Nil
				}
				return p.ID
			},
			SetID: func(p *ProductModel, id uuid.UUID) {
				if p != nil {
					p.ID = id
				}
			},
		}),
	}
}

var _ catalog.Products = (*BunProducts)(nil)

func (r *BunProducts) Create(ctx context.Context, product *catalog.Product) (*catalog.Product, error) {
	model, err := r.Repository.Create(ctx, fromProduct(product))
	if err != nil {
		return nil, err
	}
	return model.toProduct(), nil
}

func (r *BunProducts) List(ctx context.Context) ([]*catalog.Product, error) {
	models, _, err := r.Repository.List(ctx, orderByCreation)
	if err != nil {
		return nil, err
	}

	products := make([]*catalog.Product, len(models))
	for i, m := range models {
		products[i] = m.toProduct()
	}
	return products, nil
}

func (r *BunProducts) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	model, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.toProduct(), nil
}

func (r *BunProducts) Update(ctx context.Context, product *catalog.Product) error {
	if _, err := r.lookup(ctx, product.ID); err != nil {
		return err
	}

	_, err := r.Repository.Update(ctx, fromProduct(product),
		repo.UpdateByID(product.ID),
		func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.ExcludeColumn("id", "created_at", "user_id")
		},
	)
	return err
}

func (r *BunProducts) Delete(ctx context.Context, id string) error {
	model, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}
	return r.Repository.Delete(ctx, model)
}

func (r *BunProducts) lookup(ctx context.Context, id string) (*ProductModel, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, catalog.ErrProductNotFound
	}

	model, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		if repo.IsRecordNotFound(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return model, nil
}

func orderByCreation(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC")
}

func (m *ProductModel) toProduct() *catalog.Product {
	created, updated := m.CreatedAt, m.UpdatedAt
	return &catalog.Product{
		ID:            m.ID.String(),
		Name:          m.Name,
		Price:         m.Price,
		Description:   m.Description,
		Image:         m.Image,
		Category:      catalog.Category(m.Category),
		Company:       catalog.Company(m.Company),
		Colors:        append([]string(nil), m.Colors...),
		Featured:      m.Featured,
		FreeShipping:  m.FreeShipping,
		Inventory:     m.Inventory,
		AverageRating: m.AverageRating,
		UserID:        m.UserID,
		CreatedAt:     &created,
		UpdatedAt:     &updated,
	}
}

func fromProduct(p *catalog.Product) *ProductModel {
	model := &ProductModel{
		ID:            parseID(p.ID),
		Name:          p.Name,
		Price:         p.Price,
		Description:   p.Description,
		Image:         p.Image,
		Category:      string(p.Category),
		Company:       string(p.Company),
		Colors:        append([]string(nil), p.Colors...),
		Featured:      p.Featured,
		FreeShipping:  p.FreeShipping,
		Inventory:     p.Inventory,
		AverageRating: p.AverageRating,
		UserID:        p.UserID,
	}
	if p.CreatedAt != nil {
		model.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		model.UpdatedAt = *p.UpdatedAt
	}
	return model
}
