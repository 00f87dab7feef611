package till

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/types"
)

// LineRequest asks for quantity units of one product.
type LineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity"`
}

// BillRequest is everything needed to ring up one purchase.
type BillRequest struct {
	CustomerEmail string        `json:"customer_email" validate:"required,email"`
	Lines         []LineRequest `json:"products" validate:"required,min=1,dive"`

	// AmountPaid is used only when Tendered is empty. It is not added to
	// the drawer.
	AmountPaid types.Money `json:"amount_paid"`

	// Tendered is the customer's payment by denomination. It sets the
	// payment and is added to the drawer.
	Tendered []drawer.Stack `json:"customer_payment_denominations,omitempty"`

	// Overrides set drawer counts absolutely after the payment is applied
	// and before change is allocated.
	Overrides []drawer.Stack `json:"denominations,omitempty"`
}

// Bill is the outcome of a committed purchase.
type Bill struct {
	Purchase *purchase.Purchase
	Stage    Stage

	// Payment is the total customer payment, itemised or scalar.
	Payment  types.Money
	Tendered []drawer.Stack

	// Drawer is the committed drawer, highest value first.
	Drawer []drawer.Stack
}

// ChangePieces is the number of notes and coins handed back.
func (b *Bill) ChangePieces() int64 { return drawer.Pieces(b.Purchase.ChangeGiven) }

// DrawerTotal is the value of the committed drawer.
func (b *Bill) DrawerTotal() types.Money {
	return drawer.Total(b.Purchase.Currency, b.Drawer)
}

var validate = validator.New()

// normalize validates the request shape and merges duplicate lines,
// keeping the order in which products first appear.
func (t *Till) normalize(req *BillRequest) ([]LineRequest, types.Money, error) {
	if req == nil {
		return nil, types.Money{}, validationError(ErrInvalidInput, "", "empty bill request")
	}
	if err := validate.Struct(req); err != nil {
		return nil, types.Money{}, translateValidation(err)
	}

	paid := req.AmountPaid
	if paid.Currency == "" {
		paid.Currency = t.currency
	}
	paid.Currency = strings.ToLower(paid.Currency)

	if err := t.calc.CheckStacks("customer_payment_denominations", req.Tendered); err != nil {
		return nil, types.Money{}, err
	}
	if err := t.calc.CheckStacks("denominations", req.Overrides); err != nil {
		return nil, types.Money{}, err
	}

	merged := make([]LineRequest, 0, len(req.Lines))
	index := make(map[string]int, len(req.Lines))
	for _, l := range req.Lines {
		if err := t.calc.CheckQuantity(l.ProductID, l.Quantity); err != nil {
			return nil, types.Money{}, err
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			if err := t.calc.CheckQuantity(l.ProductID, merged[i].Quantity); err != nil {
				return nil, types.Money{}, err
			}
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged, paid, nil
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return validationError(ErrInvalidInput, "", err.Error())
	}
	fe := verrs[0]
	switch fe.StructField() {
	case "CustomerEmail":
		return validationError(ErrInvalidEmail, "customer_email", "a valid customer email is required")
	case "Lines":
		return validationError(ErrNoLineItems, "products", "at least one product is required")
	case "ProductID":
		return validationError(ErrInvalidInput, "product_id", "product_id is required")
	}
	return validationError(ErrInvalidInput, fe.Field(), fe.Error())
}
