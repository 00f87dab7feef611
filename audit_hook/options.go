package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger used when the recorder fails.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithActions records only the named actions.
func WithActions(actions ...string) Option {
	return func(e *Extension) { e.only = setOf(actions) }
}

// WithoutActions drops the named actions, e.g. ActionProductSaved on a
// till that reprices often.
func WithoutActions(actions ...string) Option {
	return func(e *Extension) {
		if e.skip == nil {
			e.skip = make(map[string]bool, len(actions))
		}
		for _, a := range actions {
			e.skip[a] = true
		}
	}
}

// WithCategories records only events in the given categories
// (CategoryBilling, CategoryCash, CategoryInventory).
func WithCategories(categories ...string) Option {
	return func(e *Extension) { e.categories = setOf(categories) }
}

func setOf(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
