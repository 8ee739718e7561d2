package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive   BusinessStatus = "active"
	StatusPending  BusinessStatus = "pending"
	StatusInactive BusinessStatus = "inactive"
)

const (
	ActionView    ImpressionAction = "view"
	ActionClick   ImpressionAction = "click"
	ActionCall    ImpressionAction = "call"
	ActionWebsite ImpressionAction = "website"
)

const (
	TransactionPaid     TransactionStatus = "paid"
	TransactionPending  TransactionStatus = "pending"
	TransactionFailed   TransactionStatus = "failed"
	TransactionRefunded TransactionStatus = "refunded"
)

type (
	BusinessStatus    string
	ImpressionAction  string
	TransactionStatus string

	Business struct {
		ID          string         `json:"id"`
		Name        string         `json:"name"`
		Category    string         `json:"category"`
		Description string         `json:"description,omitempty"`
		City        string         `json:"city"`
		Address     string         `json:"address,omitempty"`
		Phone       string         `json:"phone,omitempty"`
		Website     string         `json:"website,omitempty"`
		Rating      float64        `json:"rating"`
		Featured    bool           `json:"featured"`
		Status      BusinessStatus `json:"status"`
		OwnerEmail  string         `json:"owner_email,omitempty"`
		CreatedDate time.Time      `json:"created_date"`
	}

	// Impression is one visitor interaction with a business page.
	Impression struct {
		ID          string           `json:"id"`
		BusinessID  string           `json:"business_id"`
		Action      ImpressionAction `json:"action"`
		Device      string           `json:"device,omitempty"`
		Location    string           `json:"location,omitempty"`
		CreatedDate time.Time        `json:"created_date"`
	}

	Review struct {
		ID          string    `json:"id"`
		BusinessID  string    `json:"business_id"`
		Rating      int       `json:"rating"`
		Author      string    `json:"author,omitempty"`
		Comment     string    `json:"comment,omitempty"`
		CreatedDate time.Time `json:"created_date"`
	}

	// Transaction is a subscription payment made by a business owner.
	// Payment is encoded next to a payment_method discriminator, see
	// MarshalJSON.
	Transaction struct {
		ID          string
		BusinessID  string
		Amount      decimal.Decimal
		Status      TransactionStatus
		Plan        string
		Payment     PaymentDetails
		CreatedDate time.Time
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyBusinessID = errors.New("empty business id")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidAction   = errors.New("invalid impression action")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrMissingPayment  = errors.New("missing payment details")
)

func (s BusinessStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusPending, StatusInactive:
		return true
	default:
		return false
	}
}

func (a ImpressionAction) IsValid() bool {
	switch a {
	case ActionView, ActionClick, ActionCall, ActionWebsite:
		return true
	default:
		return false
	}
}

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionPaid, TransactionPending, TransactionFailed, TransactionRefunded:
		return true
	default:
		return false
	}
}

func (b Business) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if len(b.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if b.Status != "" && !b.Status.IsValid() {
		return ErrInvalidStatus
	}
	if b.Rating < 0 || b.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

func (i Impression) Validate() error {
	if strings.TrimSpace(i.BusinessID) == "" {
		return ErrEmptyBusinessID
	}
	if !i.Action.IsValid() {
		return ErrInvalidAction
	}
	return nil
}

func (r Review) Validate() error {
	if strings.TrimSpace(r.BusinessID) == "" {
		return ErrEmptyBusinessID
	}
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.BusinessID) == "" {
		return ErrEmptyBusinessID
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if t.Status != "" && !t.Status.IsValid() {
		return ErrInvalidStatus
	}
	if t.Payment == nil {
		return ErrMissingPayment
	}
	return t.Payment.Validate()
}
