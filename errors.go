package till

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/till/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("till: not found")
	ErrAlreadyExists = errors.New("till: already exists")
	ErrInvalidInput  = errors.New("till: invalid input")

	// Request validation errors
	ErrInvalidEmail     = errors.New("till: invalid customer email")
	ErrNoLineItems      = errors.New("till: no products in bill")
	ErrInvalidQuantity  = errors.New("till: invalid quantity")
	ErrInvalidAmount    = errors.New("till: invalid amount")
	ErrCurrencyMismatch = errors.New("till: currency mismatch")
	ErrProductNotFound  = errors.New("till: product not found")
	ErrPurchaseNotFound = errors.New("till: purchase not found")

	// Stock errors
	ErrOutOfStock        = errors.New("till: product out of stock")
	ErrInsufficientStock = errors.New("till: insufficient stock")

	// Payment errors
	ErrInsufficientPayment = errors.New("till: insufficient payment")
	ErrPaymentOutOfRange   = errors.New("till: payment out of range")

	// Drawer errors
	ErrInvalidDenomination      = errors.New("till: invalid denomination")
	ErrInsufficientDenomination = errors.New("till: insufficient denomination")
	ErrExactChangeUnavailable   = errors.New("till: exact change unavailable")

	// Concurrency errors
	ErrBusy = errors.New("till: resource busy, lock wait timed out")

	// Store errors
	ErrStoreClosed     = errors.New("till: store is closed")
	ErrMigrationFailed = errors.New("till: migration failed")
)

// Kind classifies every failure a till can report. Callers branch on the
// kind instead of parsing messages.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindStock
	KindPayment
	KindDenomination
	KindExactChange
	KindBusy
	KindNotFound
)

var kindNames = map[Kind]string{
	KindInternal:     "internal",
	KindValidation:   "validation",
	KindStock:        "stock",
	KindPayment:      "payment",
	KindDenomination: "denomination",
	KindExactChange:  "exact_change",
	KindBusy:         "busy",
	KindNotFound:     "not_found",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// sentinelKinds maps each sentinel to its kind so bare sentinels returned
// by stores classify the same way as structured errors.
var sentinelKinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidEmail, KindValidation},
	{ErrNoLineItems, KindValidation},
	{ErrInvalidQuantity, KindValidation},
	{ErrInvalidAmount, KindValidation},
	{ErrInvalidInput, KindValidation},
	{ErrCurrencyMismatch, KindValidation},
	{ErrProductNotFound, KindValidation},
	{ErrOutOfStock, KindStock},
	{ErrInsufficientStock, KindStock},
	{ErrInsufficientPayment, KindPayment},
	{ErrPaymentOutOfRange, KindPayment},
	{ErrInvalidDenomination, KindDenomination},
	{ErrInsufficientDenomination, KindDenomination},
	{ErrExactChangeUnavailable, KindExactChange},
	{ErrBusy, KindBusy},
	{ErrNotFound, KindNotFound},
	{ErrPurchaseNotFound, KindNotFound},
}

// Error is a classified till failure with the structured detail needed to
// report it: which product, which denomination, and by how much.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error // sentinel

	ProductID    string
	Denomination types.Money
	Requested    int64
	Available    int64
	Shortfall    types.Money
	Field        string
	Message      string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("till: " + e.Kind.String() + " error")
	}
	if e.Field != "" {
		b.WriteString(" (" + e.Field + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	for _, sk := range sentinelKinds {
		if errors.Is(err, sk.err) {
			return sk.kind
		}
	}
	return KindInternal
}

// StageOf returns the stage at which a bill was aborted, if recorded.
func StageOf(err error) Stage {
	var te *Error
	if errors.As(err, &te) {
		return te.Stage
	}
	return ""
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrPurchaseNotFound)
}

// IsRetryable returns true if the error is transient and nothing was
// written, so the same request can be submitted again.
func IsRetryable(err error) bool {
	return KindOf(err) == KindBusy
}

// ──────────────────────────────────────────────────
// Constructors
// ──────────────────────────────────────────────────

func validationError(sentinel error, field, msg string) *Error {
	return &Error{Kind: KindValidation, Err: sentinel, Field: field, Message: msg}
}

func stockError(sentinel error, productID string, requested, available int64) *Error {
	return &Error{
		Kind:      KindStock,
		Err:       sentinel,
		ProductID: productID,
		Requested: requested,
		Available: available,
		Message:   fmt.Sprintf("product %s: requested %d, available %d", productID, requested, available),
	}
}

func paymentError(sentinel error, shortfall types.Money, msg string) *Error {
	return &Error{Kind: KindPayment, Err: sentinel, Shortfall: shortfall, Message: msg}
}

func denominationError(sentinel error, value types.Money, requested, available int64, msg string) *Error {
	return &Error{
		Kind:         KindDenomination,
		Err:          sentinel,
		Denomination: value,
		Requested:    requested,
		Available:    available,
		Message:      msg,
	}
}

// atStage records the stage on a classified error, wrapping anything
// unclassified as an internal error.
func atStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		if te.Stage == "" {
			te.Stage = stage
		}
		return err
	}
	return &Error{Kind: KindOf(err), Stage: stage, Err: err}
}
