package till

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindInternal},
		{"unknown", errors.New("disk on fire"), KindInternal},
		{"bare busy", ErrBusy, KindBusy},
		{"wrapped busy", fmt.Errorf("till/postgres: lock: %w", ErrBusy), KindBusy},
		{"bare product not found", ErrProductNotFound, KindValidation},
		{"purchase not found", ErrPurchaseNotFound, KindNotFound},
		{"structured stock", stockError(ErrInsufficientStock, "P001", 2, 1), KindStock},
		{"structured exact change", &Error{Kind: KindExactChange, Err: ErrExactChangeUnavailable}, KindExactChange},
		{"wrapped structured", fmt.Errorf("ctx: %w", paymentError(ErrInsufficientPayment, INR(100), "")), KindPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAtStage(t *testing.T) {
	err := atStage(ErrBusy, StageStart)
	if got := StageOf(err); got != StageStart {
		t.Errorf("stage: got %q, want %q", got, StageStart)
	}
	if !errors.Is(err, ErrBusy) {
		t.Error("sentinel lost")
	}
	if !IsRetryable(err) {
		t.Error("busy should be retryable")
	}

	e := stockError(ErrOutOfStock, "P001", 1, 0)
	_ = atStage(e, StageStart)
	_ = atStage(e, StageTotalsComputed)
	if e.Stage != StageStart {
		t.Errorf("first recorded stage should stick, got %q", e.Stage)
	}

	if atStage(nil, StageStart) != nil {
		t.Error("nil should stay nil")
	}
}

func TestErrorMessage(t *testing.T) {
	e := stockError(ErrInsufficientStock, "P002", 5, 3)
	want := "till: insufficient stock: product P002: requested 5, available 3"
	if got := e.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	v := validationError(ErrInvalidEmail, "customer_email", "a valid customer email is required")
	want = "till: invalid customer email (customer_email): a valid customer email is required"
	if got := v.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("x: %w", ErrPurchaseNotFound)) {
		t.Error("wrapped purchase not found")
	}
	if IsNotFound(ErrBusy) {
		t.Error("busy is not not-found")
	}
}

func TestStage(t *testing.T) {
	if StageTotalsComputed.Mutated() {
		t.Error("nothing is staged before payment is applied")
	}
	if !StageStockApplied.Mutated() {
		t.Error("stock applied implies staged mutation")
	}
	if !StageCommitted.Terminal() || !StageAborted.Terminal() || StageStart.Terminal() {
		t.Error("terminal stages")
	}
}
