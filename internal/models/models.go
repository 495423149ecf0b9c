package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type TransType string

const (
	TransSignupBonus TransType = "signup_bonus"
	TransPurchase    TransType = "purchase"
	TransGeneration  TransType = "generation"
	TransRefund      TransType = "refund"
)

// Customer is the local account row keyed by the identity provider's user id.
type Customer struct {
	ID               string
	Email            string
	StripeCustomerID string
	Role             Role
	CreditsBalance   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreditTransaction is one journal entry of the credits ledger. Credits is
// negative for spends.
type CreditTransaction struct {
	ID          int64     `json:"id,omitempty"`
	TransNo     string    `json:"trans_no"`
	UserID      string    `json:"user_id"`
	TransType   TransType `json:"trans_type"`
	Credits     int       `json:"credits"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Product struct {
	ID          string
	Name        string
	Description string
	Image       string
	Active      bool
	Credits     int
	Metadata    map[string]string
	Prices      []Price
}

type Price struct {
	ID            string
	ProductID     string
	Active        bool
	UnitAmount    int64
	Currency      string
	Interval      string
	IntervalCount int
	Type          string
}

type Subscription struct {
	ID                 string
	UserID             string
	Status             string
	PriceID            string
	Quantity           int
	CancelAtPeriodEnd  bool
	Created            time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	EndedAt            *time.Time
	Price              *Price
	Product            *Product
}

type Payment struct {
	ID             int64
	UserID         string
	PriceID        string
	Provider       string
	ProviderCharge string
	Currency       string
	Amount         int64
	Status         string
	RawPayload     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type GenerationLog struct {
	ID         int64
	UserID     string
	Model      string
	Provider   string
	Prompt     string
	Size       string
	Cost       int
	Outcome    string
	ErrorCode  string
	DurationMS int64
	CreatedAt  time.Time
}

// Order is a subscription row flattened for the admin orders view.
type Order struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	UserEmail          string     `json:"user_email"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	EndedAt            *time.Time `json:"ended_at"`
	ProductName        string     `json:"product_name"`
	PriceAmount        int64      `json:"price_amount"`
	Currency           string     `json:"currency"`
	Interval           *string    `json:"interval"`
	Quantity           int        `json:"quantity"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
}

// OrderQuery filters and pages the admin orders view.
type OrderQuery struct {
	Page         int
	Limit        int
	UserIDs      []string
	SortBy       string
	Ascending    bool
	StatusFilter string
}
