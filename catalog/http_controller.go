package catalog

import (
	"github.com/gofiber/fiber/v2"

	auth "github.com/goliatone/go-shop-auth"
)

// Controller serves the product routes. Reads are public, writes are
// admin only.
type Controller struct {
	service *Service
	guard   *auth.RouteAuthenticator
	Prefix  string
}

func NewController(service *Service, guard *auth.RouteAuthenticator) *Controller {
	return &Controller{
		service: service,
		guard:   guard,
		Prefix:  "/products",
	}
}

// RegisterRoutes mounts the controller on r
func (c *Controller) RegisterRoutes(r fiber.Router) {
	adminOnly := c.guard.ProtectedRoute(auth.RoleAdmin)

	r.Get(c.Prefix, c.List)
	r.Post(c.Prefix, adminOnly, c.Create)
	r.Get(c.Prefix+"/:id", c.Get)
	r.Patch(c.Prefix+"/:id", adminOnly, c.Update)
	r.Delete(c.Prefix+"/:id", adminOnly, c.Delete)
}

func (c *Controller) List(ctx *fiber.Ctx) error {
	products, err := c.service.List(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{"products": products, "count": len(products)})
}

func (c *Controller) Get(ctx *fiber.Ctx) error {
	product, err := c.service.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{"product": product})
}

func (c *Controller) Create(ctx *fiber.Ctx) error {
	claims, ok := auth.ClaimsFromFiber(ctx)
	if !ok {
		return auth.ErrUnauthenticated
	}

	in := new(ProductInput)
	if err := ctx.BodyParser(in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to parse request body")
	}

	product, err := c.service.Create(ctx.UserContext(), claims.UserID(), *in)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"product": product})
}

func (c *Controller) Update(ctx *fiber.Ctx) error {
	in := new(ProductInput)
	if err := ctx.BodyParser(in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to parse request body")
	}

	product, err := c.service.Update(ctx.UserContext(), ctx.Params("id"), *in)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{"product": product})
}

func (c *Controller) Delete(ctx *fiber.Ctx) error {
	if err := c.service.Delete(ctx.UserContext(), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{"msg": "Success! Product Removed."})
}
