package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

type AuthControllerRoutes struct {
	Register           string
	Login              string
	Logout             string
	Users              string
	ShowMe             string
	User               string
	UpdateUser         string
	UpdateUserPassword string
}

// AuthController exposes registration, login and account routes as JSON
type AuthController struct {
	Logger   Logger
	Accounts *AccountService
	Sessions *SessionCarrier
	Guard    *RouteAuthenticator
	Limiter  *RateLimiter
	Routes   *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

// WithControllerLimiter rate limits register and login
func WithControllerLimiter(limiter *RateLimiter) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Limiter = limiter
		return c
	}
}

// WithControllerRoutes overrides the route table
func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewAuthController(accounts *AccountService, sessions *SessionCarrier, guard *RouteAuthenticator, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		Accounts: accounts,
		Sessions: sessions,
		Guard:    guard,
		Routes: &AuthControllerRoutes{
			Register:           "/auth/register",
			Login:              "/auth/login",
			Logout:             "/auth/logout",
			Users:              "/users",
			ShowMe:             "/users/showMe",
			User:               "/users/:id",
			UpdateUser:         "/users/updateUser",
			UpdateUserPassword: "/users/updateUserPassword",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// RegisterAuthRoutes mounts the controller on r
func RegisterAuthRoutes(r fiber.Router, controller *AuthController) {
	limit := func(c *fiber.Ctx) error { return c.Next() }
	if controller.Limiter != nil {
		limit = controller.Limiter.Handler()
	}

	protected := controller.Guard.ProtectedRoute()
	adminOnly := controller.Guard.ProtectedRoute(RoleAdmin)

	r.Post(controller.Routes.Register, limit, controller.Register)
	r.Post(controller.Routes.Login, limit, controller.Login)
	r.Get(controller.Routes.Logout, controller.Logout)

	r.Get(controller.Routes.Users, adminOnly, controller.ListUsers)
	// static paths before the :id param
	r.Get(controller.Routes.ShowMe, protected, controller.ShowMe)
	r.Patch(controller.Routes.UpdateUser, protected, controller.UpdateUser)
	r.Patch(controller.Routes.UpdateUserPassword, protected, controller.UpdateUserPassword)
	r.Get(controller.Routes.User, protected, controller.GetUser)
}

// RegistrationCreatePayload is the register body
type RegistrationCreatePayload struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
	)
}

// LoginPayload is the login body
type LoginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// UpdateUserPayload is the profile update body
type UpdateUserPayload struct {
	Name  string `json:"name" form:"name"`
	Email string `json:"email" form:"email"`
}

// Validate will validate the payload
func (r UpdateUserPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// UpdatePasswordPayload is the password change body
type UpdatePasswordPayload struct {
	OldPassword string `json:"oldPassword" form:"oldPassword"`
	NewPassword string `json:"newPassword" form:"newPassword"`
}

// Validate will validate the payload
func (r UpdatePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

type validatable interface {
	Validate() error
}

func (a *AuthController) bind(c *fiber.Ctx, payload validatable, message string) error {
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Debug("parse payload", "path", c.Path(), "error", err)
		return WithMessage(ErrValidation, "failed to parse request body")
	}
	if err := payload.Validate(); err != nil {
		return NewValidationError(message, err)
	}
	return nil
}

// Register creates an account and starts its session
func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)
	if err := a.bind(c, payload, "please provide name, email and password"); err != nil {
		return err
	}

	_, user, err := a.Accounts.Register(c.UserContext(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		return err
	}

	if _, err := a.Sessions.Attach(c, user); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

// Login verifies credentials and starts a session
func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := a.bind(c, payload, "please provide email and password"); err != nil {
		return err
	}

	_, user, err := a.Accounts.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	if _, err := a.Sessions.Attach(c, user); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"user": user})
}

// Logout clears the session cookie. It works with or without a session.
func (a *AuthController) Logout(c *fiber.Ctx) error {
	if claims, err := a.Sessions.Extract(c); err == nil {
		a.Accounts.Logout(c.UserContext(), claims.UserID())
	}

	a.Sessions.Clear(c)

	return c.JSON(fiber.Map{"msg": "user logged out"})
}

// ListUsers returns every customer account
func (a *AuthController) ListUsers(c *fiber.Ctx) error {
	accounts, err := a.Accounts.ListCustomers(c.UserContext())
	if err != nil {
		return err
	}

	users := make([]PublicAccount, 0, len(accounts))
	for _, account := range accounts {
		users = append(users, account.Public())
	}

	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}

// ShowMe returns the session's public user
func (a *AuthController) ShowMe(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return ErrUnauthenticated
	}
	return c.JSON(fiber.Map{"user": claims.User()})
}

// GetUser returns a single account to its owner or an admin
func (a *AuthController) GetUser(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return ErrUnauthenticated
	}

	account, err := a.Accounts.GetAccount(c.UserContext(), claims, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"user": account.Public()})
}

// UpdateUser changes name and email and re-issues the session cookie
func (a *AuthController) UpdateUser(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return ErrUnauthenticated
	}

	payload := new(UpdateUserPayload)
	if err := a.bind(c, payload, "please provide name and email"); err != nil {
		return err
	}

	_, user, err := a.Accounts.UpdateProfile(c.UserContext(), claims.UserID(), payload.Name, payload.Email)
	if err != nil {
		return err
	}

	if _, err := a.Sessions.Rotate(c, user); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"user": user})
}

// UpdateUserPassword changes the session owner's password
func (a *AuthController) UpdateUserPassword(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return ErrUnauthenticated
	}

	payload := new(UpdatePasswordPayload)
	if err := a.bind(c, payload, "please provide the old password and new password"); err != nil {
		return err
	}

	if err := a.Accounts.ChangePassword(c.UserContext(), claims.UserID(), payload.OldPassword, payload.NewPassword); err != nil {
		return err
	}

	if _, err := a.Sessions.Rotate(c, claims.User()); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"msg": "Password changed"})
}
