// Package billing wraps the Stripe API: customers, checkout sessions and
// webhook events.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/digkill/ImageForge/internal/models"
)

// ErrNotConfigured is returned when no Stripe secret key is set.
var ErrNotConfigured = errors.New("billing: stripe is not configured")

// CheckoutParams describes a subscription checkout for one price.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	Plan       string
	UserID     string
	SuccessURL string
	CancelURL  string
}

// CheckoutCompleted is the part of checkout.session.completed the service needs.
type CheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
	UserID         string
	Plan           string
	PriceID        string
	AmountTotal    int64
	Currency       string
	PaymentStatus  string
}

// SubscriptionChange is a customer.subscription.* payload.
type SubscriptionChange struct {
	CustomerID   string
	UserID       string
	Subscription models.Subscription
}

// Event is a verified webhook event decoded into domain types. Exactly one of
// the payload pointers is set for handled types.
type Event struct {
	ID           string
	Type         stripe.EventType
	Checkout     *CheckoutCompleted
	Subscription *SubscriptionChange
	Product      *models.Product
	Price        *models.Price
}

type Stripe struct {
	api           *client.API
	webhookSecret string
}

type Option func(*stripe.BackendConfig)

// WithAPIURL points the client at another API host.
func WithAPIURL(url string) Option {
	return func(c *stripe.BackendConfig) {
		c.URL = stripe.String(url)
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *stripe.BackendConfig) {
		c.HTTPClient = hc
	}
}

// NewStripe returns nil when secretKey is empty; callers treat a nil *Stripe
// as billing being disabled.
func NewStripe(secretKey, webhookSecret string, opts ...Option) *Stripe {
	if secretKey == "" {
		return nil
	}
	cfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(1),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return &Stripe{api: client.New(secretKey, backends), webhookSecret: webhookSecret}
}

// CreateCustomer registers the user with Stripe and returns the customer id.
func (s *Stripe) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	if s == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"supabaseUUID": userID},
	}
	params.Context = ctx
	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return c.ID, nil
}

// CreateCheckoutSession starts a subscription checkout and returns its URL.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	if s == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		Metadata: map[string]string{
			"plan":     p.Plan,
			"user_id":  p.UserID,
			"price_id": p.PriceID,
		},
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	params.Context = ctx
	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if session.URL == "" {
		return "", errors.New("checkout session has no url")
	}
	return session.URL, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Unhandled event types come back with no payload set.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if s == nil {
		return nil, ErrNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}
	return decodeEvent(evt)
}

func decodeEvent(evt stripe.Event) (*Event, error) {
	out := &Event{ID: evt.ID, Type: evt.Type}
	if evt.Data == nil {
		return out, nil
	}
	raw := evt.Data.Raw

	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Checkout = checkoutFromStripe(&cs)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.Subscription = subscriptionFromStripe(&sub)
	case stripe.EventTypeProductCreated, stripe.EventTypeProductUpdated:
		var p stripe.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		out.Product = productFromStripe(&p)
	case stripe.EventTypePriceCreated, stripe.EventTypePriceUpdated:
		var p stripe.Price
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode price: %w", err)
		}
		out.Price = priceFromStripe(&p)
	}
	return out, nil
}

func checkoutFromStripe(cs *stripe.CheckoutSession) *CheckoutCompleted {
	c := &CheckoutCompleted{
		SessionID:     cs.ID,
		UserID:        cs.Metadata["user_id"],
		Plan:          cs.Metadata["plan"],
		PriceID:       cs.Metadata["price_id"],
		AmountTotal:   cs.AmountTotal,
		Currency:      string(cs.Currency),
		PaymentStatus: string(cs.PaymentStatus),
	}
	if c.UserID == "" {
		c.UserID = cs.ClientReferenceID
	}
	if cs.Customer != nil {
		c.CustomerID = cs.Customer.ID
	}
	if cs.Subscription != nil {
		c.SubscriptionID = cs.Subscription.ID
	}
	return c
}

func subscriptionFromStripe(sub *stripe.Subscription) *SubscriptionChange {
	out := &SubscriptionChange{
		UserID: sub.Metadata["user_id"],
		Subscription: models.Subscription{
			ID:                 sub.ID,
			Status:             string(sub.Status),
			Quantity:           1,
			CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
			Created:            unixTime(sub.Created),
			CurrentPeriodStart: unixPtr(sub.CurrentPeriodStart),
			CurrentPeriodEnd:   unixPtr(sub.CurrentPeriodEnd),
			EndedAt:            unixPtr(sub.EndedAt),
		},
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.Subscription.PriceID = item.Price.ID
		}
		if item.Quantity > 0 {
			out.Subscription.Quantity = int(item.Quantity)
		}
	}
	return out
}

func productFromStripe(p *stripe.Product) *models.Product {
	out := &models.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
		Metadata:    p.Metadata,
	}
	if len(p.Images) > 0 {
		out.Image = p.Images[0]
	}
	if v, err := strconv.Atoi(p.Metadata["credits"]); err == nil && v > 0 {
		out.Credits = v
	}
	return out
}

func priceFromStripe(p *stripe.Price) *models.Price {
	out := &models.Price{
		ID:         p.ID,
		Active:     p.Active,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
		Type:       string(p.Type),
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
		out.IntervalCount = int(p.Recurring.IntervalCount)
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
