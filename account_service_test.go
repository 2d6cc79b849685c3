package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-shop-auth"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordedEvents) sink() auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, event)
		return nil
	})
}

func (r *recordedEvents) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...any) { m.Called(msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.Called(msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.Called(msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.Called(msg, args) }

func newAccountService(t *testing.T, store auth.AccountStore, opts ...auth.AccountServiceOption) *auth.AccountService {
	t.Helper()
	if store == nil {
		store = auth.NewMemoryAccounts()
	}
	opts = append([]auth.AccountServiceOption{auth.WithAccountLogger(auth.NopLogger{})}, opts...)
	return auth.NewAccountService(store, auth.NewPasswordHasher(bcrypt.MinCost), opts...)
}

func TestRegisterFirstAccountIsAdmin(t *testing.T) {
	ctx := context.Background()
	events := &recordedEvents{}
	svc := newAccountService(t, nil, auth.WithActivitySink(events.sink()))

	alice, user, err := svc.Register(ctx, "Alice", "alice@x.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, alice.Role)
	assert.Equal(t, auth.TokenUser{UserID: alice.ID, Name: "Alice", Role: auth.RoleAdmin}, user)
	assert.NotEqual(t, "secret", alice.PasswordHash)

	bob, user, err := svc.Register(ctx, "Bob", "bob@x.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleUser, bob.Role)
	assert.Equal(t, auth.RoleUser, user.Role)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventBootstrapAdmin,
		auth.ActivityEventRegisterSuccess,
		auth.ActivityEventRegisterSuccess,
	}, events.types())
}

func TestRegisterOnPopulatedStoreNeverYieldsAdmin(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryAccounts()

	// an existing account without any bootstrap marker
	_, err := store.Create(ctx, newAccount("legacy", "legacy@x.io", auth.RoleUser, time.Now()))
	require.NoError(t, err)

	svc := newAccountService(t, store)
	account, _, err := svc.Register(ctx, "Carol", "carol@x.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleUser, account.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryAccounts()
	svc := newAccountService(t, store)

	_, _, err := svc.Register(ctx, "Alice", "alice@x.io", "secret")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "Other", " ALICE@x.io", "secret2")
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
	assert.Equal(t, 409, auth.StatusCode(err))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRegisterMissingFields(t *testing.T) {
	svc := newAccountService(t, nil)

	tests := []struct {
		name, email, password string
		field                 string
	}{
		{"", "a@x.io", "secret", "name"},
		{"Alice", "  ", "secret", "email"},
		{"Alice", "a@x.io", "", "password"},
	}

	for _, tt := range tests {
		_, _, err := svc.Register(context.Background(), tt.name, tt.email, tt.password)
		require.Error(t, err)
		assert.True(t, auth.IsValidationError(err))

		var richErr *errors.Error
		require.True(t, errors.As(err, &richErr))
		fields := richErr.Metadata["fields"].(map[string]string)
		assert.Contains(t, fields, tt.field)
	}
}

func TestRegisterConcurrentSingleAdmin(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryAccounts()
	svc := newAccountService(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.Register(ctx, fmt.Sprintf("user-%d", i), fmt.Sprintf("u%d@x.io", i), "secret")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	admins, err := store.ListByRole(ctx, auth.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admins, 1)

	users, err := store.ListByRole(ctx, auth.RoleUser)
	require.NoError(t, err)
	assert.Len(t, users, 9)
}

type failingCreateStore struct {
	*auth.MemoryAccounts
	failures int
}

func (f *failingCreateStore) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	if f.failures > 0 {
		f.failures--
		return nil, fmt.Errorf("disk full")
	}
	return f.MemoryAccounts.Create(ctx, account)
}

func TestRegisterReleasesBootstrapOnFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingCreateStore{MemoryAccounts: auth.NewMemoryAccounts(), failures: 1}
	svc := newAccountService(t, store)

	_, _, err := svc.Register(ctx, "Alice", "alice@x.io", "secret")
	require.Error(t, err)
	assert.Equal(t, 500, auth.StatusCode(err))

	account, _, err := svc.Register(ctx, "Alice", "alice@x.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, account.Role)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	events := &recordedEvents{}
	svc := newAccountService(t, nil, auth.WithActivitySink(events.sink()))

	registered, _, err := svc.Register(ctx, "Alice", "alice@x.io", "secret")
	require.NoError(t, err)

	account, user, err := svc.Login(ctx, "Alice@X.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, account.ID)
	assert.Equal(t, auth.RoleAdmin, user.Role)

	_, _, err = svc.Login(ctx, "alice@x.io", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@x.io", "secret")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "", "")
	assert.True(t, auth.IsValidationError(err))

	assert.Contains(t, events.types(), auth.ActivityEventLoginSuccess)
	assert.Contains(t, events.types(), auth.ActivityEventLoginFailure)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(t, nil)

	_, _, err := svc.Register(ctx, "Alice", "alice@x.io", "secret")
	require.NoError(t, err)

	_, _, wrongPassword := svc.Login(ctx, "alice@x.io", "wrong")
	_, _, unknownEmail := svc.Login(ctx, "nobody@x.io", "secret")

	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, auth.StatusCode(wrongPassword), auth.StatusCode(unknownEmail))
}

func TestLoginDistinctErrors(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(t, nil, auth.WithDistinctLoginErrors(true))

	_, _, err := svc.Register(ctx, "Alice", "alice@x.io", "secret")
	require.NoError(t, err)

	_, _, wrongPassword := svc.Login(ctx, "alice@x.io", "wrong")
	_, _, unknownEmail := svc.Login(ctx, "nobody@x.io", "secret")

	assert.ErrorIs(t, wrongPassword, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, auth.ErrInvalidCredentials)
	assert.NotEqual(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, 401, auth.StatusCode(wrongPassword))
	assert.Equal(t, 401, auth.StatusCode(unknownEmail))
}

func TestLoginRejectsUnknownStoredRole(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryAccounts()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)

	digest, err := hasher.HashPassword("secret")
	require.NoError(t, err)

	odd := newAccount("odd", "odd@x.io", auth.Role("owner"), time.Now())
	odd.PasswordHash = digest
	_, err = store.Create(ctx, odd)
	require.NoError(t, err)

	logger := new(MockLogger)
	logger.On("Error", "account has an unknown role", mock.Anything).Once()

	svc := auth.NewAccountService(store, hasher, auth.WithAccountLogger(logger))
	_, _, err = svc.Login(ctx, "odd@x.io", "secret")
	assert.ErrorIs(t, err, auth.ErrInvalidRole)
	logger.AssertExpectations(t)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(t, nil)

	account, _, err := svc.Register(ctx, "Alice", "alice@x.io", "secret")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, account.ID, "wrong", "secret2")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, account.ID, "secret", "secret2"))

	_, _, err = svc.Login(ctx, "alice@x.io", "secret")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "alice@x.io", "secret2")
	assert.NoError(t, err)

	err = svc.ChangePassword(ctx, account.ID, "", "")
	assert.True(t, auth.IsValidationError(err))

	err = svc.ChangePassword(ctx, "gone", "secret2", "secret3")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(t, nil)

	alice, _, err := svc.Register(ctx, "Alice", "alice@x.io", "secret")
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "Bob", "bob@x.io", "secret")
	require.NoError(t, err)

	updated, user, err := svc.UpdateProfile(ctx, alice.ID, "Alicia", "Alicia@x.io")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, "alicia@x.io", updated.Email)
	assert.Equal(t, auth.TokenUser{UserID: alice.ID, Name: "Alicia", Role: auth.RoleAdmin}, user)

	_, _, err = svc.Login(ctx, "alicia@x.io", "secret")
	assert.NoError(t, err)

	_, _, err = svc.UpdateProfile(ctx, alice.ID, "Alicia", "bob@x.io")
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	// keeping the same email is fine
	_, _, err = svc.UpdateProfile(ctx, alice.ID, "Ali", "alicia@x.io")
	assert.NoError(t, err)

	_, _, err = svc.UpdateProfile(ctx, alice.ID, "", "")
	assert.True(t, auth.IsValidationError(err))
}

func TestGetAccount(t *testing.T) {
	ctx := context.Background()
	events := &recordedEvents{}
	svc := newAccountService(t, nil, auth.WithActivitySink(events.sink()))

	admin, _, err := svc.Register(ctx, "Admin", "admin@x.io", "secret")
	require.NoError(t, err)
	bob, _, err := svc.Register(ctx, "Bob", "bob@x.io", "secret")
	require.NoError(t, err)
	carol, _, err := svc.Register(ctx, "Carol", "carol@x.io", "secret")
	require.NoError(t, err)

	got, err := svc.GetAccount(ctx, userClaims(admin.ID, auth.RoleAdmin), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	got, err = svc.GetAccount(ctx, userClaims(bob.ID, auth.RoleUser), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	_, err = svc.GetAccount(ctx, userClaims(bob.ID, auth.RoleUser), carol.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)
	assert.Contains(t, events.types(), auth.ActivityEventAccessDenied)

	_, err = svc.GetAccount(ctx, userClaims(admin.ID, auth.RoleAdmin), "missing")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	assert.Contains(t, err.Error(), "could not find a user with id: missing")

	_, err = svc.GetAccount(ctx, nil, bob.ID)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestListCustomers(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(t, nil)

	for _, name := range []string{"Admin", "Bob", "Carol"} {
		_, _, err := svc.Register(ctx, name, name+"@x.io", "secret")
		require.NoError(t, err)
	}

	customers, err := svc.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	for _, c := range customers {
		assert.Equal(t, auth.RoleUser, c.Role)
	}
}

func TestActivitySinkErrorsAreLogged(t *testing.T) {
	logger := new(MockLogger)
	logger.On("Warn", "activity sink record error", mock.Anything).Once()

	failing := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return fmt.Errorf("sink down")
	})
	svc := auth.NewAccountService(auth.NewMemoryAccounts(), auth.NewPasswordHasher(bcrypt.MinCost),
		auth.WithAccountLogger(logger),
		auth.WithActivitySink(auth.MultiActivitySink{nil, failing}),
	)

	svc.Logout(context.Background(), "acc-1")
	logger.AssertExpectations(t)
}
