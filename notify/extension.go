// Package notify e-mails an invoice to the customer after each committed
// bill. Delivery is best effort: it runs in the background behind a
// circuit breaker and a failure never affects the purchase.
package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/purchase"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin          = (*Extension)(nil)
	_ plugin.OnBillCommitted = (*Extension)(nil)
	_ plugin.OnShutdown      = (*Extension)(nil)
)

const (
	defaultSendTimeout      = 30 * time.Second
	defaultTripAfter        = 5
	defaultBreakerOpenFor   = time.Minute
	defaultBreakerHalfProbe = 1
)

// Extension sends receipt e-mails.
type Extension struct {
	mailer      Mailer
	from        string
	sendTimeout time.Duration
	tripAfter   uint32
	openFor     time.Duration
	logger      *slog.Logger

	breaker *gobreaker.CircuitBreaker
	wg      sync.WaitGroup
}

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithFrom sets the sender address.
func WithFrom(from string) Option {
	return func(e *Extension) { e.from = from }
}

// WithSendTimeout bounds each delivery attempt.
func WithSendTimeout(d time.Duration) Option {
	return func(e *Extension) {
		if d > 0 {
			e.sendTimeout = d
		}
	}
}

// WithBreaker opens the circuit after tripAfter consecutive failures and
// keeps it open for openFor.
func WithBreaker(tripAfter uint32, openFor time.Duration) Option {
	return func(e *Extension) {
		if tripAfter > 0 {
			e.tripAfter = tripAfter
		}
		if openFor > 0 {
			e.openFor = openFor
		}
	}
}

// New creates an Extension delivering through mailer.
func New(mailer Mailer, opts ...Option) *Extension {
	e := &Extension{
		mailer:      mailer,
		from:        "billing@till.local",
		sendTimeout: defaultSendTimeout,
		tripAfter:   defaultTripAfter,
		openFor:     defaultBreakerOpenFor,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notify-mailer",
		MaxRequests: defaultBreakerHalfProbe,
		Timeout:     e.openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= e.tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("notify: mailer circuit changed state",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "notify-email" }

// OnBillCommitted implements plugin.OnBillCommitted. It renders the
// receipt synchronously and delivers it in the background.
func (e *Extension) OnBillCommitted(ctx context.Context, p *purchase.Purchase, _ []drawer.Stack) error {
	msg, err := e.Compose(ctx, p)
	if err != nil {
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.sendTimeout)
		defer cancel()
		if err := e.Send(sendCtx, msg); err != nil {
			e.logger.Warn("notify: receipt not delivered",
				"purchase_id", p.ID.String(),
				"to", msg.To,
				"error", err,
			)
			return
		}
		e.logger.Info("notify: receipt delivered",
			"purchase_id", p.ID.String(),
			"to", msg.To,
		)
	}()
	return nil
}

// OnShutdown implements plugin.OnShutdown. It waits for in-flight
// deliveries.
func (e *Extension) OnShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every delivery started so far has finished.
func (e *Extension) Wait() { e.wg.Wait() }

// Compose builds the receipt message for p.
func (e *Extension) Compose(ctx context.Context, p *purchase.Purchase) (*Message, error) {
	var html bytes.Buffer
	if err := Receipt(p).Render(ctx, &html); err != nil {
		return nil, err
	}
	return &Message{
		From:    e.from,
		To:      p.CustomerEmail,
		Subject: Subject(p),
		Text:    ReceiptText(p),
		HTML:    html.String(),
	}, nil
}

// ErrCircuitOpen is returned while the mailer circuit is open.
var ErrCircuitOpen = errors.New("notify: mailer unavailable, circuit open")

// Send delivers msg through the circuit breaker.
func (e *Extension) Send(ctx context.Context, msg *Message) error {
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, e.mailer.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}
