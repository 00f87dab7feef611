package drawer

import "context"

// Store persists denomination rows. Counts change only through a
// committed store transaction; UpsertDenomination is for seeding.
type Store interface {
	ListDenominations(ctx context.Context) ([]*Denomination, error)
	UpsertDenomination(ctx context.Context, d *Denomination) error
}
