package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	repo "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-shop-auth"
)

const bootstrapMarker = "admin"

// AccountModel is the Bun model for accounts.
type AccountModel struct {
	bun.BaseModel `bun:"table:accounts"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid"`
	Name         string    `bun:"name,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         string    `bun:"role,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// BootstrapModel is the singleton row recording the bootstrap admin
type BootstrapModel struct {
	bun.BaseModel `bun:"table:account_bootstrap"`

	Marker    string    `bun:"marker,pk"`
	AccountID string    `bun:"account_id,notnull"`
	ClaimedAt time.Time `bun:"claimed_at,nullzero,notnull,default:current_timestamp"`
}

// BunAccounts implements auth.AccountStore using Bun. Account rows go
// through the generic repository, the bootstrap marker uses raw queries.
type BunAccounts struct {
	repo.Repository[*AccountModel]
	db *bun.DB
}

// NewBunAccounts creates a new repository.
func NewBunAccounts(db *bun.DB) *BunAccounts {
	return &BunAccounts{
		Repository: repo.NewRepository[*AccountModel](db, repo.ModelHandlers[*AccountModel]{
			NewRecord: func() *AccountModel { return &AccountModel{} },
			GetID: func(a *AccountModel) uuid.UUID {
				if a == nil {
					return uuid.Nil
				}
				return a.ID
			},
			SetID: func(a *AccountModel, id uuid.UUID) {
				if a != nil {
					a.ID = id
				}
			},
		}),
		db: db,
	}
}

var _ auth.AccountStore = (*BunAccounts)(nil)

// FindByEmail implements auth.Accounts.
func (r *BunAccounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	model, err := r.Repository.Get(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", auth.NormalizeEmail(email))
	})
	if err != nil {
		return nil, accountLookupErr(err)
	}
	return model.toAccount(), nil
}

// FindByID implements auth.Accounts.
func (r *BunAccounts) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, auth.ErrAccountNotFound
	}

	model, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, accountLookupErr(err)
	}
	return model.toAccount(), nil
}

// Count implements auth.Accounts.
func (r *BunAccounts) Count(ctx context.Context) (int64, error) {
	n, err := r.Repository.Count(ctx)
	return int64(n), err
}

// Create implements auth.Accounts.
func (r *BunAccounts) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	model := fromAccount(account)

	if account.Role == auth.RoleAdmin {
		holder, err := r.bootstrapHolder(ctx)
		if err != nil {
			return nil, err
		}
		if holder != model.ID.String() {
			return nil, auth.ErrBootstrapViolation
		}
	}

	created, err := r.Repository.Create(ctx, model)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, auth.ErrEmailTaken
		}
		return nil, err
	}
	return created.toAccount(), nil
}

// Save implements auth.Accounts.
func (r *BunAccounts) Save(ctx context.Context, account *auth.Account) error {
	if _, err := r.FindByID(ctx, account.ID); err != nil {
		return err
	}

	_, err := r.Repository.Update(ctx, fromAccount(account),
		repo.UpdateByID(account.ID),
		func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Column("name", "email", "password_hash", "role", "updated_at")
		},
	)
	if isUniqueViolation(err) {
		return auth.ErrEmailTaken
	}
	return err
}

// ListByRole implements auth.Accounts.
func (r *BunAccounts) ListByRole(ctx context.Context, role auth.Role) ([]*auth.Account, error) {
	models, _, err := r.Repository.List(ctx,
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.role = ?", string(role))
		},
		orderByCreation,
	)
	if err != nil {
		return nil, err
	}

	accounts := make([]*auth.Account, len(models))
	for i, m := range models {
		accounts[i] = m.toAccount()
	}
	return accounts, nil
}

// ClaimBootstrap implements auth.BootstrapClaimer. The marker primary key
// lets exactly one insert through.
func (r *BunAccounts) ClaimBootstrap(ctx context.Context, accountID string) (bool, error) {
	res, err := r.db.NewInsert().
		Model(&BootstrapModel{Marker: bootstrapMarker, AccountID: accountID, ClaimedAt: time.Now()}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseBootstrap implements auth.BootstrapClaimer.
func (r *BunAccounts) ReleaseBootstrap(ctx context.Context, accountID string) error {
	exists, err := r.db.NewSelect().
		Model((*AccountModel)(nil)).
		Where("id = ?", accountID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = r.db.NewDelete().
		Model((*BootstrapModel)(nil)).
		Where("marker = ?", bootstrapMarker).
		Where("account_id = ?", accountID).
		Exec(ctx)
	return err
}

func (r *BunAccounts) bootstrapHolder(ctx context.Context) (string, error) {
	var marker BootstrapModel
	err := r.db.NewSelect().
		Model(&marker).
		Where("marker = ?", bootstrapMarker).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return marker.AccountID, err
}

func accountLookupErr(err error) error {
	if repo.IsRecordNotFound(err) {
		return auth.ErrAccountNotFound
	}
	return err
}

func (m *AccountModel) toAccount() *auth.Account {
	created, updated := m.CreatedAt, m.UpdatedAt
	return &auth.Account{
		ID:           m.ID.String(),
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         auth.Role(m.Role),
		CreatedAt:    &created,
		UpdatedAt:    &updated,
	}
}

func fromAccount(a *auth.Account) *AccountModel {
	model := &AccountModel{
		ID:           parseID(a.ID),
		Name:         a.Name,
		Email:        auth.NormalizeEmail(a.Email),
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
	}
	if a.CreatedAt != nil {
		model.CreatedAt = *a.CreatedAt
	}
	if a.UpdatedAt != nil {
		model.UpdatedAt = *a.UpdatedAt
	}
	return model
}

// parseID maps a domain id to the uuid primary key, minting one when the
// id is empty or malformed.
func parseID(id string) uuid.UUID {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed
	}
	return uuid.New()
}
