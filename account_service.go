package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AccountService orchestrates registration, login, password change and
// profile updates. Accounts move from unregistered to active; there is no
// suspended or deleted state. It holds no request state and is safe for
// concurrent use.
type AccountService struct {
	accounts            Accounts
	bootstrap           BootstrapClaimer
	hasher              PasswordAuthenticator
	logger              Logger
	activitySink        ActivitySink
	distinctLoginErrors bool
	now                 func() time.Time
}

// AccountServiceOption configures an AccountService
type AccountServiceOption func(*AccountService)

// WithAccountLogger sets the logger
func WithAccountLogger(logger Logger) AccountServiceOption {
	return func(s *AccountService) {
		s.logger = normalizeLogger(logger)
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) AccountServiceOption {
	return func(s *AccountService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithDistinctLoginErrors makes login failures say whether the email or
// the password was wrong. Both keep the same error kind and status.
func WithDistinctLoginErrors(distinct bool) AccountServiceOption {
	return func(s *AccountService) {
		s.distinctLoginErrors = distinct
	}
}

// WithAccountClock overrides time.Now for timestamps
func WithAccountClock(now func() time.Time) AccountServiceOption {
	return func(s *AccountService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAccountService wires the lifecycle manager to a store and hasher
func NewAccountService(store AccountStore, hasher PasswordAuthenticator, opts ...AccountServiceOption) *AccountService {
	s := &AccountService{
		accounts:     store,
		bootstrap:    store,
		hasher:       hasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Register creates an account. The first account ever created becomes
// admin; the claim goes through the store's bootstrap marker so two
// concurrent registrations on an empty store cannot both win.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*Account, TokenUser, error) {
	email = NormalizeEmail(email)

	if err := (validation.Errors{
		"name":     validation.Validate(name, validation.Required),
		"email":    validation.Validate(email, validation.Required),
		"password": validation.Validate(password, validation.Required),
	}).Filter(); err != nil {
		return nil, TokenUser{}, NewValidationError("please provide name, email and password", err)
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		s.emit(ctx, ActivityEventRegisterFailure, "", map[string]any{"email": email, "reason": TextCodeEmailTaken})
		return nil, TokenUser{}, ErrEmailTaken
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, TokenUser{}, s.internal(err, "failed to look up account by email")
	}

	digest, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, TokenUser{}, err
	}

	now := s.now()
	account := &Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: digest,
		Role:         RoleUser,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}

	claimed, err := s.claimBootstrap(ctx, account.ID)
	if err != nil {
		return nil, TokenUser{}, err
	}
	if claimed {
		account.Role = RoleAdmin
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		if claimed {
			if rerr := s.bootstrap.ReleaseBootstrap(ctx, account.ID); rerr != nil {
				s.logger.Error("failed to release bootstrap marker", "account_id", account.ID, "error", rerr)
			}
		}
		if errors.Is(err, ErrEmailTaken) {
			s.emit(ctx, ActivityEventRegisterFailure, "", map[string]any{"email": email, "reason": TextCodeEmailTaken})
			return nil, TokenUser{}, ErrEmailTaken
		}
		return nil, TokenUser{}, s.internal(err, "failed to create account")
	}

	if claimed {
		s.logger.Info("bootstrap admin account created", "account_id", created.ID)
		s.emit(ctx, ActivityEventBootstrapAdmin, created.ID, nil)
	}
	s.emit(ctx, ActivityEventRegisterSuccess, created.ID, map[string]any{"role": string(created.Role)})

	return created, NewTokenUser(created), nil
}

func (s *AccountService) claimBootstrap(ctx context.Context, accountID string) (bool, error) {
	total, err := s.accounts.Count(ctx)
	if err != nil {
		return false, s.internal(err, "failed to count accounts")
	}

	// existing accounts can never produce another admin
	if total > 0 {
		return false, nil
	}

	claimed, err := s.bootstrap.ClaimBootstrap(ctx, accountID)
	if err != nil {
		return false, s.internal(err, "failed to claim bootstrap marker")
	}
	return claimed, nil
}

// Login verifies credentials. Unknown emails and wrong passwords return
// the same error kind.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Account, TokenUser, error) {
	email = NormalizeEmail(email)

	if err := (validation.Errors{
		"email":    validation.Validate(email, validation.Required),
		"password": validation.Validate(password, validation.Required),
	}).Filter(); err != nil {
		return nil, TokenUser{}, NewValidationError("please provide email and password", err)
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"email": email, "reason": "unknown_email"})
			return nil, TokenUser{}, s.loginFailure("no account found with email: " + email)
		}
		return nil, TokenUser{}, s.internal(err, "failed to look up account by email")
	}

	if err := s.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		s.emit(ctx, ActivityEventLoginFailure, account.ID, map[string]any{"email": email, "reason": "wrong_password"})
		return nil, TokenUser{}, s.loginFailure("incorrect password")
	}

	if !account.Role.IsValid() {
		s.logger.Error("account has an unknown role", "account_id", account.ID, "role", string(account.Role))
		return nil, TokenUser{}, WithMessage(ErrInvalidRole, ErrInvalidRole.Message, map[string]any{
			"account_id": account.ID,
		})
	}

	s.emit(ctx, ActivityEventLoginSuccess, account.ID, nil)

	return account, NewTokenUser(account), nil
}

func (s *AccountService) loginFailure(distinctMessage string) error {
	if s.distinctLoginErrors {
		return WithMessage(ErrInvalidCredentials, distinctMessage)
	}
	return ErrInvalidCredentials
}

// ChangePassword replaces the stored digest once the old password checks
// out. The previous digest is discarded.
func (s *AccountService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if err := (validation.Errors{
		"oldPassword": validation.Validate(oldPassword, validation.Required),
		"newPassword": validation.Validate(newPassword, validation.Required),
	}).Filter(); err != nil {
		return NewValidationError("please provide the old password and new password", err)
	}

	account, err := s.findSelf(ctx, accountID)
	if err != nil {
		return err
	}

	if err := s.hasher.ComparePasswordAndHash(oldPassword, account.PasswordHash); err != nil {
		s.emit(ctx, ActivityEventPasswordFailure, account.ID, nil)
		return WithMessage(ErrInvalidCredentials, "incorrect password")
	}

	digest, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}

	now := s.now()
	account.PasswordHash = digest
	account.UpdatedAt = &now

	if err := s.accounts.Save(ctx, account); err != nil {
		return s.internal(err, "failed to save account")
	}

	s.emit(ctx, ActivityEventPasswordChanged, account.ID, nil)
	return nil
}

// UpdateProfile changes name and email and returns the refreshed public
// claim so callers can re-issue the session cookie.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID, name, email string) (*Account, TokenUser, error) {
	email = NormalizeEmail(email)

	if err := (validation.Errors{
		"name":  validation.Validate(name, validation.Required),
		"email": validation.Validate(email, validation.Required),
	}).Filter(); err != nil {
		return nil, TokenUser{}, NewValidationError("please provide name and email", err)
	}

	account, err := s.findSelf(ctx, accountID)
	if err != nil {
		return nil, TokenUser{}, err
	}

	if email != account.Email {
		owner, err := s.accounts.FindByEmail(ctx, email)
		switch {
		case err == nil && owner.ID != account.ID:
			return nil, TokenUser{}, ErrEmailTaken
		case err != nil && !errors.Is(err, ErrAccountNotFound):
			return nil, TokenUser{}, s.internal(err, "failed to look up account by email")
		}
	}

	now := s.now()
	account.Name = name
	account.Email = email
	account.UpdatedAt = &now

	if err := s.accounts.Save(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, TokenUser{}, ErrEmailTaken
		}
		return nil, TokenUser{}, s.internal(err, "failed to save account")
	}

	s.emit(ctx, ActivityEventProfileUpdated, account.ID, nil)

	return account, NewTokenUser(account), nil
}

// Logout records the event; the cookie itself is cleared by SessionCarrier
func (s *AccountService) Logout(ctx context.Context, accountID string) {
	s.emit(ctx, ActivityEventLogout, accountID, nil)
}

// GetAccount returns the account id if the requester may see it
func (s *AccountService) GetAccount(ctx context.Context, requester *JWTClaims, id string) (*Account, error) {
	if requester == nil {
		return nil, ErrUnauthenticated
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, WithMessage(ErrAccountNotFound, "could not find a user with id: "+id)
		}
		return nil, s.internal(err, "failed to look up account")
	}

	if err := AuthorizeClaims(requester, account.ID); err != nil {
		s.emit(ctx, ActivityEventAccessDenied, requester.UserID(), map[string]any{"target": account.ID})
		return nil, err
	}

	return account, nil
}

// ListCustomers returns every account with the user role
func (s *AccountService) ListCustomers(ctx context.Context) ([]*Account, error) {
	accounts, err := s.accounts.ListByRole(ctx, RoleUser)
	if err != nil {
		return nil, s.internal(err, "failed to list accounts")
	}
	return accounts, nil
}

func (s *AccountService) findSelf(ctx context.Context, accountID string) (*Account, error) {
	if accountID == "" {
		return nil, ErrUnauthenticated
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// the session outlived its account
			return nil, ErrUnauthenticated
		}
		return nil, s.internal(err, "failed to look up account")
	}
	return account, nil
}

func (s *AccountService) internal(err error, message string) error {
	s.logger.Error(message, "error", err)
	return errors.Wrap(err, errors.CategoryInternal, message).WithCode(errors.CodeInternal)
}

func (s *AccountService) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if err := normalizeActivitySink(s.activitySink).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "event", string(eventType), "error", err)
	}
}
