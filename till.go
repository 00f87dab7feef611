package till

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/store"
	"github.com/xraph/till/types"
)

// DefaultLockTimeout bounds the wait for row locks.
const DefaultLockTimeout = 5 * time.Second

// Till is the billing engine. It coordinates stock checks, pricing,
// payment, the cash drawer and change allocation for each bill as one
// all-or-nothing store transaction.
type Till struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	tracer  trace.Tracer
	locker  Locker

	currency    string
	calc        Calculator
	lockTimeout time.Duration
	skipMigrate bool
}

// New creates a new Till instance.
func New(s store.Store, opts ...Option) *Till {
	t := &Till{
		store:       s,
		plugins:     plugin.NewRegistry(),
		logger:      slog.Default(),
		tracer:      otel.Tracer("github.com/xraph/till"),
		currency:    types.DefaultCurrency,
		calc:        NewCalculator(types.DefaultCurrency),
		lockTimeout: DefaultLockTimeout,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Option configures a Till instance.
type Option func(*Till)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Till) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Till) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(t *Till) {
		t.plugins.WithTimeout(d)
	}
}

// WithCurrency sets the till currency. Every price and denomination must
// be in it.
func WithCurrency(currency string) Option {
	return func(t *Till) {
		t.currency = strings.ToLower(currency)
		t.calc.Currency = t.currency
	}
}

// WithMaxQuantity caps a single line's quantity.
func WithMaxQuantity(n int64) Option {
	return func(t *Till) {
		if n > 0 {
			t.calc.MaxQuantity = n
		}
	}
}

// WithMaxPaymentMultiple rejects payments above n × the grand total.
func WithMaxPaymentMultiple(n int64) Option {
	return func(t *Till) {
		if n > 0 {
			t.calc.MaxPaymentMultiple = n
		}
	}
}

// WithMaxPieces caps the count of any one denomination accepted in a
// tender, an override or a reconciliation.
func WithMaxPieces(n int64) Option {
	return func(t *Till) {
		if n > 0 {
			t.calc.MaxPieces = n
		}
	}
}

// WithLockTimeout bounds the wait for row locks.
func WithLockTimeout(d time.Duration) Option {
	return func(t *Till) {
		if d > 0 {
			t.lockTimeout = d
		}
	}
}

// WithLocker adds a cross-process lock taken before the store transaction.
func WithLocker(l Locker) Option {
	return func(t *Till) {
		t.locker = l
	}
}

// WithoutMigrate leaves schema management to the caller; Start only
// initialises plugins.
func WithoutMigrate() Option {
	return func(t *Till) {
		t.skipMigrate = true
	}
}

// WithTracer sets the tracer.
func WithTracer(tr trace.Tracer) Option {
	return func(t *Till) {
		t.tracer = tr
	}
}

// Start migrates the store and initialises plugins.
func (t *Till) Start(ctx context.Context) error {
	if !t.skipMigrate {
		if err := t.store.Migrate(ctx); err != nil {
			return err
		}
	}

	t.plugins.EmitInit(ctx, t)

	t.logger.Info("till started",
		"currency", t.currency,
		"max_quantity", t.calc.MaxQuantity,
		"lock_timeout", t.lockTimeout,
		"plugins", t.plugins.Count(),
	)

	return nil
}

// Stop shuts plugins down and closes the store.
func (t *Till) Stop() error {
	t.plugins.EmitShutdown(context.Background())
	return t.store.Close()
}

// Store returns the underlying store.
func (t *Till) Store() store.Store { return t.store }

// Plugins returns the plugin registry.
func (t *Till) Plugins() *plugin.Registry { return t.plugins }

// Currency returns the till currency.
func (t *Till) Currency() string { return t.currency }

// Calculator returns the pricing rules in use.
func (t *Till) Calculator() Calculator { return t.calc }

// ──────────────────────────────────────────────────
// Billing
// ──────────────────────────────────────────────────

// GenerateBill rings up one purchase. Stock, payment and the drawer are
// checked and changed under exclusive locks, and either everything is
// committed (stock decrements, drawer counts and the purchase record) or
// nothing is. A returned error carries its Kind and the Stage the bill
// had reached.
func (t *Till) GenerateBill(ctx context.Context, req *BillRequest) (bill *Bill, err error) {
	ctx, span := t.tracer.Start(ctx, "till.GenerateBill")
	stage := StageStart

	defer func() {
		if err != nil {
			err = atStage(err, stage)
			t.reject(ctx, span, req, stage, err)
		} else {
			span.SetAttributes(
				attribute.String("till.purchase_id", bill.Purchase.ID.String()),
				attribute.Int64("till.grand_total", bill.Purchase.GrandTotal.Amount),
				attribute.Int64("till.change", bill.Purchase.Change.Amount),
			)
		}
		span.SetAttributes(attribute.String("till.stage", string(stage)))
		span.End()
	}()

	lines, paid, err := t.normalize(req)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	set := store.LockSet{ProductIDs: ids, Drawer: true, Wait: t.lockTimeout}

	tx, release, err := t.begin(ctx, set)
	if err != nil {
		return nil, err
	}
	defer release()

	// Stock
	products := tx.Products()
	priced := make([]Line, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			e := validationError(ErrProductNotFound, "product_id", fmt.Sprintf("product %s not found", l.ProductID))
			e.ProductID = l.ProductID
			return nil, e
		}
		if p.Stock == 0 {
			return nil, stockError(ErrOutOfStock, p.ID, l.Quantity, 0)
		}
		if p.Stock < l.Quantity {
			return nil, stockError(ErrInsufficientStock, p.ID, l.Quantity, p.Stock)
		}
		priced = append(priced, Line{Product: p, Quantity: l.Quantity})
	}
	stage = StageStockValidated

	// Totals
	totals, err := t.calc.LineTotals(priced)
	if err != nil {
		return nil, err
	}
	stage = StageTotalsComputed

	// Payment
	d := NewDrawer(t.currency, tx.Denominations())
	payment, err := t.calc.ResolvePayment(req.Tendered, d.Snapshot(), paid)
	if err != nil {
		return nil, err
	}
	if err = t.calc.ValidatePayment(payment, totals.GrandTotal); err != nil {
		return nil, err
	}
	change := t.calc.ChangeAmount(payment, totals.GrandTotal)
	stage = StagePaymentValidated

	for _, s := range req.Tendered {
		if s.Count == 0 {
			continue
		}
		if err = d.Increase(s.Value, s.Count); err != nil {
			return nil, err
		}
	}
	for _, s := range req.Overrides {
		if err = d.SetAbsolute(s.Value, s.Count); err != nil {
			return nil, err
		}
	}
	stage = StagePaymentApplied

	stock := make(map[string]int64, len(priced))
	for _, l := range priced {
		stock[l.Product.ID] = l.Product.Stock - l.Quantity
	}
	stage = StageStockApplied

	// Change
	alloc, err := Allocate(change, d.Snapshot())
	if err != nil {
		return nil, err
	}
	for _, s := range alloc.Breakdown {
		if err = d.Decrease(s.Value, s.Count); err != nil {
			return nil, err
		}
	}
	stage = StageChangeAllocated

	pur := t.buildPurchase(req.CustomerEmail, totals, payment, change, alloc)
	if err = tx.Commit(ctx, &store.Changes{
		Stock:    stock,
		Drawer:   d.Changes(),
		Purchase: pur,
	}); err != nil {
		return nil, err
	}
	stage = StageCommitted

	bill = &Bill{
		Purchase: pur,
		Stage:    stage,
		Payment:  payment,
		Tendered: req.Tendered,
		Drawer:   d.Snapshot(),
	}

	t.logger.Info("bill committed",
		"purchase_id", pur.ID.String(),
		"grand_total", pur.GrandTotal.String(),
		"paid", payment.String(),
		"change", change.String(),
		"change_pieces", alloc.Pieces(),
	)

	t.plugins.EmitBillCommitted(ctx, pur, bill.Drawer)
	for _, l := range priced {
		if stock[l.Product.ID] == 0 {
			t.plugins.EmitStockDepleted(ctx, l.Product.ID)
		}
	}

	return bill, nil
}

func (t *Till) buildPurchase(email string, totals *Totals, payment, change types.Money, alloc *Allocation) *purchase.Purchase {
	pur := &purchase.Purchase{
		Entity:        types.NewEntity(),
		ID:            id.NewPurchaseID(),
		CustomerEmail: strings.TrimSpace(email),
		Currency:      t.currency,
		Total:         totals.Total,
		Tax:           totals.Tax,
		GrandTotal:    totals.GrandTotal,
		AmountPaid:    payment,
		Change:        change,
		Items:         make([]purchase.Item, 0, len(totals.Lines)),
		ChangeGiven:   alloc.Breakdown,
	}
	for _, l := range totals.Lines {
		pur.Items = append(pur.Items, purchase.Item{
			ID:        id.NewPurchaseItemID(),
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.Product.UnitPrice,
			TaxRate:   l.Product.TaxRate,
			Subtotal:  l.Subtotal,
			Tax:       l.Tax,
		})
	}
	return pur
}

func (t *Till) reject(ctx context.Context, span trace.Span, req *BillRequest, stage Stage, err error) {
	kind := KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind.String())
	span.SetAttributes(attribute.String("till.kind", kind.String()))

	if kind == KindInternal {
		t.logger.Error("bill failed", "stage", stage, "error", err)
	} else {
		t.logger.Info("bill rejected", "kind", kind.String(), "stage", stage, "error", err)
	}

	var email string
	if req != nil {
		email = req.CustomerEmail
	}
	t.plugins.EmitBillRejected(ctx, email, string(stage), err)
}

// begin takes the optional cross-process lock and then the store locks.
// The returned release func rolls the transaction back (a no-op after
// commit) and drops the cross-process lock.
func (t *Till) begin(ctx context.Context, set store.LockSet) (store.Tx, func(), error) {
	unlock := func(context.Context) error { return nil }
	if t.locker != nil {
		keys := LockKeys(set)
		t.logger.Debug("acquiring locks", "keys", keys)
		u, err := t.locker.Lock(ctx, keys, set.Wait)
		if err != nil {
			return nil, nil, err
		}
		unlock = u
	}

	tx, err := t.store.Begin(ctx, set)
	if err != nil {
		_ = unlock(context.WithoutCancel(ctx)) //nolint:errcheck // releasing after failed begin
		return nil, nil, err
	}

	release := func() {
		bg := context.WithoutCancel(ctx)
		if rbErr := tx.Rollback(bg); rbErr != nil {
			t.logger.Warn("rollback failed", "error", rbErr)
		}
		if uErr := unlock(bg); uErr != nil {
			t.logger.Warn("unlock failed", "error", uErr)
		}
	}
	return tx, release, nil
}

// ──────────────────────────────────────────────────
// Drawer
// ──────────────────────────────────────────────────

// ReconcileDrawer sets drawer counts to what was physically counted.
// Denominations not listed keep their counts; new values are added.
func (t *Till) ReconcileDrawer(ctx context.Context, counts []drawer.Stack) (snapshot []drawer.Stack, err error) {
	ctx, span := t.tracer.Start(ctx, "till.ReconcileDrawer")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, KindOf(err).String())
			span.SetAttributes(attribute.String("till.kind", KindOf(err).String()))
		}
		span.End()
	}()

	if len(counts) == 0 {
		return nil, validationError(ErrInvalidInput, "denominations", "no denominations given")
	}
	if err = t.calc.CheckStacks("denominations", counts); err != nil {
		return nil, err
	}

	tx, release, err := t.begin(ctx, store.LockSet{Drawer: true, Wait: t.lockTimeout})
	if err != nil {
		return nil, err
	}
	defer release()

	d := NewDrawer(t.currency, tx.Denominations())
	for _, s := range counts {
		if err = d.SetAbsolute(s.Value, s.Count); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx, &store.Changes{Drawer: d.Changes()}); err != nil {
		return nil, err
	}

	snapshot = d.Snapshot()
	t.logger.Info("drawer reconciled",
		"total", d.Total().String(),
		"pieces", drawer.Pieces(snapshot),
	)
	t.plugins.EmitDrawerReconciled(ctx, snapshot)
	return snapshot, nil
}

// DrawerSnapshot returns the committed drawer, highest value first.
func (t *Till) DrawerSnapshot(ctx context.Context) ([]drawer.Stack, error) {
	rows, err := t.store.ListDenominations(ctx)
	if err != nil {
		return nil, err
	}
	return drawer.Stacks(rows), nil
}

// ──────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────

// Product retrieves a product by ID.
func (t *Till) Product(ctx context.Context, productID string) (*catalog.Product, error) {
	return t.store.GetProduct(ctx, productID)
}

// Products lists products ordered by ID.
func (t *Till) Products(ctx context.Context, opts catalog.ListOpts) ([]*catalog.Product, error) {
	return t.store.ListProducts(ctx, opts)
}

// SaveProduct creates or replaces a product.
func (t *Till) SaveProduct(ctx context.Context, p *catalog.Product) error {
	if err := t.checkProduct(p); err != nil {
		return err
	}

	if p.CreatedAt.IsZero() {
		p.Entity = types.NewEntity()
	} else {
		p.Touch()
	}

	if err := t.store.UpsertProduct(ctx, p); err != nil {
		return err
	}

	t.plugins.EmitProductSaved(ctx, p)
	return nil
}

func (t *Till) checkProduct(p *catalog.Product) error {
	switch {
	case p == nil || strings.TrimSpace(p.ID) == "":
		return validationError(ErrInvalidInput, "product_id", "product id is required")
	case strings.TrimSpace(p.Name) == "":
		return validationError(ErrInvalidInput, "name", "product name is required")
	case p.Stock < 0:
		return validationError(ErrInvalidInput, "stock", "stock must not be negative")
	case p.UnitPrice.Currency != t.currency:
		return validationError(ErrCurrencyMismatch, "unit_price", fmt.Sprintf("price currency %q", p.UnitPrice.Currency))
	case !p.UnitPrice.IsPositive():
		return validationError(ErrInvalidAmount, "unit_price", "price must be positive")
	case p.TaxRate.LessThan(decimal.Zero):
		return validationError(ErrInvalidInput, "tax_rate", "tax rate must not be negative")
	}
	return nil
}

// ──────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────

// Purchase retrieves a committed purchase.
func (t *Till) Purchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error) {
	return t.store.GetPurchase(ctx, purchaseID)
}

// Purchases lists committed purchases, newest first.
func (t *Till) Purchases(ctx context.Context, opts purchase.ListOpts) ([]*purchase.Purchase, error) {
	return t.store.ListPurchases(ctx, opts)
}
