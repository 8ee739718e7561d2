package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MethodCard   PaymentMethod = "card"
	MethodPix    PaymentMethod = "pix"
	MethodBoleto PaymentMethod = "boleto"
)

type (
	PaymentMethod string

	// PaymentDetails is implemented by CardPayment, PixPayment and
	// BoletoPayment only.
	PaymentDetails interface {
		Method() PaymentMethod
		Validate() error
		isPayment()
	}

	CardPayment struct {
		Brand        string `json:"brand"`
		Last4        string `json:"last4"`
		Installments int    `json:"installments,omitempty"`
	}

	PixPayment struct {
		Key           string `json:"key"`
		TransactionID string `json:"transaction_id,omitempty"`
	}

	BoletoPayment struct {
		Barcode string    `json:"barcode"`
		DueDate time.Time `json:"due_date"`
	}
)

// ErrUnknownPaymentMethod is returned when decoding a discriminator that is
// not one of the supported methods.
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

func (CardPayment) Method() PaymentMethod   { return MethodCard }
func (PixPayment) Method() PaymentMethod    { return MethodPix }
func (BoletoPayment) Method() PaymentMethod { return MethodBoleto }

func (CardPayment) isPayment()   {}
func (PixPayment) isPayment()    {}
func (BoletoPayment) isPayment() {}

func (c CardPayment) Validate() error {
	if len(c.Last4) != 4 {
		return errors.New("card last4 must have 4 digits")
	}
	if c.Installments < 0 || c.Installments > 12 {
		return errors.New("card installments must be between 0 and 12")
	}
	return nil
}

func (p PixPayment) Validate() error {
	if strings.TrimSpace(p.Key) == "" {
		return errors.New("pix key is required")
	}
	return nil
}

func (b BoletoPayment) Validate() error {
	if strings.TrimSpace(b.Barcode) == "" {
		return errors.New("boleto barcode is required")
	}
	if b.DueDate.IsZero() {
		return errors.New("boleto due date is required")
	}
	return nil
}

// DescribePayment renders a short human label for a payment.
func DescribePayment(p PaymentDetails) string {
	switch v := p.(type) {
	case CardPayment:
		label := fmt.Sprintf("%s ending in %s", v.Brand, v.Last4)
		if v.Installments > 1 {
			label += fmt.Sprintf(" (%dx)", v.Installments)
		}
		return label
	case PixPayment:
		return "Pix " + v.Key
	case BoletoPayment:
		return "Boleto due " + v.DueDate.Format("2006-01-02")
	case nil:
		return "no payment"
	default:
		panic(fmt.Sprintf("core: unhandled payment type %T", p))
	}
}

type transactionJSON struct {
	ID            string            `json:"id"`
	BusinessID    string            `json:"business_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	Plan          string            `json:"plan,omitempty"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Payment       json.RawMessage   `json:"payment,omitempty"`
	CreatedDate   time.Time         `json:"created_date"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	out := transactionJSON{
		ID:          t.ID,
		BusinessID:  t.BusinessID,
		Amount:      t.Amount,
		Status:      t.Status,
		Plan:        t.Plan,
		CreatedDate: t.CreatedDate,
	}
	if t.Payment != nil {
		raw, err := json.Marshal(t.Payment)
		if err != nil {
			return nil, err
		}
		out.PaymentMethod = t.Payment.Method()
		out.Payment = raw
	}
	return json.Marshal(out)
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var in transactionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	payment, err := decodePayment(in.PaymentMethod, in.Payment)
	if err != nil {
		return err
	}
	*t = Transaction{
		ID:          in.ID,
		BusinessID:  in.BusinessID,
		Amount:      in.Amount,
		Status:      in.Status,
		Plan:        in.Plan,
		Payment:     payment,
		CreatedDate: in.CreatedDate,
	}
	return nil
}

func decodePayment(method PaymentMethod, raw json.RawMessage) (PaymentDetails, error) {
	if method == "" {
		return nil, nil
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	switch method {
	case MethodCard:
		var p CardPayment
		err := json.Unmarshal(raw, &p)
		return p, err
	case MethodPix:
		var p PixPayment
		err := json.Unmarshal(raw, &p)
		return p, err
	case MethodBoleto:
		var p BoletoPayment
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}
}
