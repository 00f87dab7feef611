// Package id holds the identifiers of till records.
//
// IDs are TypeIDs: a short prefix naming the record kind and a UUIDv7
// suffix, e.g. "pur_01h2xcejqtf2nbrexx3vqjhp41". They sort by creation
// time and only the prefixes listed here are accepted.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the kind of record an ID belongs to.
type Prefix string

const (
	PrefixPurchase     Prefix = "pur"
	PrefixPurchaseItem Prefix = "pitm"
	PrefixEvent        Prefix = "evt"
)

var known = map[Prefix]bool{
	PrefixPurchase:     true,
	PrefixPurchaseItem: true,
	PrefixEvent:        true,
}

// ID is a prefixed TypeID. The zero value is Nil and stores as NULL.
//
//nolint:recvcheck // pointer receivers only where the ID is decoded in place
type ID struct {
	tid typeid.TypeID
	ok  bool
}

// Aliases document which kind a field carries.
type (
	PurchaseID     = ID
	PurchaseItemID = ID
	EventID        = ID
)

// Nil is the empty ID.
var Nil ID

func generate(p Prefix) ID {
	tid, err := typeid.Generate(string(p))
	if err != nil {
		// Only reachable with a malformed constant above.
		panic(fmt.Sprintf("id: generate %q: %v", p, err))
	}
	return ID{tid: tid, ok: true}
}

func NewPurchaseID() ID     { return generate(PrefixPurchase) }
func NewPurchaseItemID() ID { return generate(PrefixPurchaseItem) }
func NewEventID() ID        { return generate(PrefixEvent) }

// Parse decodes any till ID. Unknown prefixes are rejected.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: empty")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	if p := Prefix(tid.Prefix()); !known[p] {
		return Nil, fmt.Errorf("id: parse %q: unknown prefix %q", s, p)
	}
	return ID{tid: tid, ok: true}, nil
}

func parseAs(s string, want Prefix) (ID, error) {
	i, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if i.Prefix() != want {
		return Nil, fmt.Errorf("id: %q is a %s id, want %s", s, i.Prefix(), want)
	}
	return i, nil
}

func ParsePurchaseID(s string) (ID, error)     { return parseAs(s, PrefixPurchase) }
func ParsePurchaseItemID(s string) (ID, error) { return parseAs(s, PrefixPurchaseItem) }
func ParseEventID(s string) (ID, error)        { return parseAs(s, PrefixEvent) }

func (i ID) String() string {
	if !i.ok {
		return ""
	}
	return i.tid.String()
}

func (i ID) Prefix() Prefix {
	if !i.ok {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

func (i ID) IsNil() bool { return !i.ok }

func (i ID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *ID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value stores Nil as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.ok {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.tid.String(), nil
}

func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}
