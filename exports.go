package till

import (
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Stack is re-exported from drawer package.
type Stack = drawer.Stack

// Re-export Money constructors
var (
	INR   = types.INR
	USD   = types.USD
	EUR   = types.EUR
	GBP   = types.GBP
	JPY   = types.JPY
	Units = types.Units
	Zero  = types.Zero
	Sum   = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
