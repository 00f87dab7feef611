// Package api exposes a till over HTTP with fiber.
//
// Routes:
//
//	POST /api/generate-bill
//	GET  /api/product/:product_id
//	GET  /api/products
//	GET  /api/purchases
//	GET  /api/purchases/:purchase_id
//	GET  /api/drawer
//	POST /api/drawer
//	GET  /healthz
package api

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
)

// Paging defaults for list routes.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ProductReader serves single-product lookups, e.g. a cache in front of
// the till.
type ProductReader interface {
	Product(ctx context.Context, productID string) (*catalog.Product, error)
}

// Handler serves the till HTTP API.
type Handler struct {
	till     *till.Till
	products ProductReader
	logger   *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithProductReader routes product lookups through r.
func WithProductReader(r ProductReader) Option {
	return func(h *Handler) { h.products = r }
}

// WithLogger sets the logger for the handler.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// New creates a Handler for t.
func New(t *till.Till, opts ...Option) *Handler {
	h := &Handler{till: t, products: t, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// App builds a fiber app with the request-ID, logging and error
// middleware installed and every route registered.
func (h *Handler) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "tilld",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(h.logger),
	})
	app.Use(RequestID(), RequestLogger(h.logger))
	h.Register(app)
	return app
}

// Register mounts the routes on router.
func (h *Handler) Register(router fiber.Router) {
	router.Get("/healthz", h.Health)

	api := router.Group("/api")
	api.Post("/generate-bill", h.GenerateBill)
	api.Get("/product/:product_id", h.GetProduct)
	api.Get("/products", h.ListProducts)
	api.Get("/purchases", h.ListPurchases)
	api.Get("/purchases/:purchase_id", h.GetPurchase)
	api.Get("/drawer", h.GetDrawer)
	api.Post("/drawer", h.ReconcileDrawer)
}

// GenerateBill handles POST /api/generate-bill.
func (h *Handler) GenerateBill(c *fiber.Ctx) error {
	var body billBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	req, err := body.billRequest(h.till.Currency())
	if err != nil {
		return err
	}

	bill, err := h.till.GenerateBill(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(newBillView(bill))
}

// GetProduct handles GET /api/product/:product_id.
func (h *Handler) GetProduct(c *fiber.Ctx) error {
	p, err := h.products.Product(c.UserContext(), strings.TrimSpace(c.Params("product_id")))
	if err != nil {
		if till.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		return err
	}
	return c.JSON(newProductView(p))
}

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(c *fiber.Ctx) error {
	limit, offset := paging(c)
	products, err := h.till.Products(c.UserContext(), catalog.ListOpts{Limit: limit, Offset: offset})
	if err != nil {
		return err
	}
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, newProductView(p))
	}
	return c.JSON(fiber.Map{"success": true, "products": out})
}

// ListPurchases handles GET /api/purchases?email=.
func (h *Handler) ListPurchases(c *fiber.Ctx) error {
	limit, offset := paging(c)
	email := strings.TrimSpace(c.Query("email"))
	purchases, err := h.till.Purchases(c.UserContext(), purchase.ListOpts{
		CustomerEmail: email,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return err
	}
	out := make([]purchaseView, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, newPurchaseView(p))
	}
	return c.JSON(fiber.Map{"success": true, "email": email, "purchases": out})
}

// GetPurchase handles GET /api/purchases/:purchase_id.
func (h *Handler) GetPurchase(c *fiber.Ctx) error {
	purID, err := id.ParsePurchaseID(c.Params("purchase_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid purchase id")
	}
	p, err := h.till.Purchase(c.UserContext(), purID)
	if err != nil {
		if till.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "Purchase not found")
		}
		return err
	}
	return c.JSON(fiber.Map{"success": true, "purchase": newPurchaseView(p)})
}

// GetDrawer handles GET /api/drawer.
func (h *Handler) GetDrawer(c *fiber.Ctx) error {
	snap, err := h.till.DrawerSnapshot(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "drawer": newDrawerView(h.till.Currency(), snap)})
}

// ReconcileDrawer handles POST /api/drawer.
func (h *Handler) ReconcileDrawer(c *fiber.Ctx) error {
	var body drawerBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	counts, err := stacksOf(body.Denominations, h.till.Currency(), "denominations")
	if err != nil {
		return err
	}
	snap, err := h.till.ReconcileDrawer(c.UserContext(), counts)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "drawer": newDrawerView(h.till.Currency(), snap)})
}

// Health handles GET /healthz.
func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.till.Store().Ping(c.UserContext()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func paging(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", DefaultLimit)
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
