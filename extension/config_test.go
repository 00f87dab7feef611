package extension

import (
	"testing"
	"time"
)

func TestMergeWithDefaults(t *testing.T) {
	e := New()
	got := e.mergeWithDefaults(Config{Currency: "usd"})

	if got.Currency != "usd" {
		t.Errorf("Currency = %q, want usd", got.Currency)
	}
	want := DefaultConfig()
	if got.MaxQuantity != want.MaxQuantity {
		t.Errorf("MaxQuantity = %d, want %d", got.MaxQuantity, want.MaxQuantity)
	}
	if got.LockTimeout != want.LockTimeout {
		t.Errorf("LockTimeout = %v, want %v", got.LockTimeout, want.LockTimeout)
	}
}

func TestMergeConfigurations(t *testing.T) {
	e := New()
	yaml := Config{Currency: "inr", LockTimeout: 2 * time.Second}
	programmatic := Config{Currency: "usd", MaxQuantity: 50, Seed: true, DisableMigrate: true}

	got := e.mergeConfigurations(yaml, programmatic)

	if got.Currency != "inr" {
		t.Errorf("Currency = %q, want the file value inr", got.Currency)
	}
	if got.LockTimeout != 2*time.Second {
		t.Errorf("LockTimeout = %v, want 2s", got.LockTimeout)
	}
	if got.MaxQuantity != 50 {
		t.Errorf("MaxQuantity = %d, want the programmatic 50", got.MaxQuantity)
	}
	if !got.Seed || !got.DisableMigrate {
		t.Errorf("bool flags not carried: %+v", got)
	}
	if got.MaxPaymentMultiple != DefaultConfig().MaxPaymentMultiple {
		t.Errorf("MaxPaymentMultiple = %d, want default", got.MaxPaymentMultiple)
	}
}

func TestBuildTillOptsHonoursDisableMigrate(t *testing.T) {
	e := New(WithDisableMigrate())
	e.config = e.mergeWithDefaults(e.config)
	opts := e.buildTillOpts()
	if len(opts) != 7 {
		t.Errorf("got %d options, want 7 with migrate disabled", len(opts))
	}
}
