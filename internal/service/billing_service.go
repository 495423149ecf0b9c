package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/digkill/ImageForge/internal/billing"
	"github.com/digkill/ImageForge/internal/ledger"
	"github.com/digkill/ImageForge/internal/models"
)

const stripeProvider = "stripe"

// PaymentGateway is the part of the Stripe client the billing flows use.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (string, error)
	ParseWebhook(payload []byte, signature string) (*billing.Event, error)
}

type BillingService struct {
	log           *slog.Logger
	publicBaseURL string
	gateway       PaymentGateway
	customers     CustomerStore
	products      ProductStore
	subscriptions SubscriptionStore
	payments      PaymentStore
	grants        Granter
}

func NewBillingService(log *slog.Logger, publicBaseURL string, gateway PaymentGateway, customers CustomerStore, products ProductStore, subscriptions SubscriptionStore, payments PaymentStore, grants Granter) *BillingService {
	if log == nil {
		log = slog.Default()
	}
	return &BillingService{
		log:           log,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		gateway:       gateway,
		customers:     customers,
		products:      products,
		subscriptions: subscriptions,
		payments:      payments,
		grants:        grants,
	}
}

// RedirectURL resolves path against the public base URL.
func (s *BillingService) RedirectURL(path string) string {
	return s.publicBaseURL + path
}

// LoginRedirect is where unauthenticated checkout visitors are sent.
func (s *BillingService) LoginRedirect(plan, priceID string) string {
	back := s.RedirectURL("/checkout?" + url.Values{"plan": {plan}, "price": {priceID}}.Encode())
	return s.RedirectURL("/login?" + url.Values{"redirectUrl": {back}}.Encode())
}

// PricingPlan is one card on the pricing page.
type PricingPlan struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Image         string   `json:"image,omitempty"`
	Price         float64  `json:"price"`
	PriceID       string   `json:"priceId"`
	Features      []string `json:"features"`
	Highlight     bool     `json:"highlight"`
	Currency      string   `json:"currency"`
	Interval      string   `json:"interval"`
	OriginalPrice string   `json:"originalPrice,omitempty"`
	Credits       int      `json:"credits"`
}

// Pricing lists active products by their first active price, cheapest first.
func (s *BillingService) Pricing(ctx context.Context) ([]PricingPlan, error) {
	products, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	plans := make([]PricingPlan, 0, len(products))
	for _, p := range products {
		plan := PricingPlan{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Image:         p.Image,
			Features:      splitFeatures(p.Metadata["features"]),
			Highlight:     p.Metadata["highlight"] == "true",
			Currency:      "USD",
			Interval:      "month",
			OriginalPrice: p.Metadata["originalPrice"],
			Credits:       p.Credits,
		}
		if len(p.Prices) > 0 {
			price := p.Prices[0]
			plan.Price = float64(price.UnitAmount) / 100
			plan.PriceID = price.ID
			if price.Currency != "" {
				plan.Currency = price.Currency
			}
			if price.Interval != "" {
				plan.Interval = price.Interval
			}
		}
		plans = append(plans, plan)
	}
	sort.SliceStable(plans, func(i, j int) bool { return plans[i].Price < plans[j].Price })
	return plans, nil
}

func splitFeatures(raw string) []string {
	out := []string{}
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Checkout opens a subscription checkout for the user and returns the
// payment page URL.
func (s *BillingService) Checkout(ctx context.Context, userID, plan, priceID string) (string, error) {
	customer, err := s.customers.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("find customer: %w", err)
	}
	if customer == nil {
		return "", ErrCustomerNotFound
	}
	return s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID: customer.StripeCustomerID,
		PriceID:    priceID,
		Plan:       plan,
		UserID:     userID,
		SuccessURL: s.RedirectURL("/profile?success=true"),
		CancelURL:  s.RedirectURL("/pricing?canceled=true"),
	})
}

// HandleWebhook verifies and applies one Stripe event. It returns the event
// type so the caller can log it.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return "", err
	}

	switch {
	case evt.Checkout != nil:
		err = s.applyCheckout(ctx, evt.Checkout, payload)
	case evt.Subscription != nil:
		err = s.applySubscription(ctx, evt.Subscription)
	case evt.Product != nil:
		err = s.products.UpsertProduct(ctx, *evt.Product)
	case evt.Price != nil:
		err = s.products.UpsertPrice(ctx, *evt.Price)
	default:
		s.log.Debug("ignoring stripe event", "type", evt.Type)
	}
	if err != nil {
		return string(evt.Type), fmt.Errorf("apply %s: %w", evt.Type, err)
	}
	return string(evt.Type), nil
}

func (s *BillingService) applyCheckout(ctx context.Context, c *billing.CheckoutCompleted, raw []byte) error {
	userID, err := s.resolveUser(ctx, c.UserID, c.CustomerID)
	if err != nil {
		return err
	}

	existing, err := s.payments.FindByProviderCharge(ctx, stripeProvider, c.SessionID)
	if err != nil {
		return fmt.Errorf("find payment: %w", err)
	}

	// A redelivered session runs the whole flow again: the grant is keyed on
	// the session id, so only the steps that failed before take effect.
	status := "pending"
	if c.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid) ||
		c.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired) ||
		(existing != nil && existing.Status == "paid") {
		status = "paid"
	}
	switch {
	case existing == nil:
		record := &models.Payment{
			UserID:         userID,
			PriceID:        c.PriceID,
			Provider:       stripeProvider,
			ProviderCharge: c.SessionID,
			Currency:       c.Currency,
			Amount:         c.AmountTotal,
			Status:         status,
			RawPayload:     string(raw),
		}
		if err := s.payments.Create(ctx, record); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
	case existing.Status != status:
		if err := s.payments.UpdateStatus(ctx, existing.ID, status, string(raw)); err != nil {
			return err
		}
	}

	if status == "paid" {
		if err := s.grantPurchase(ctx, userID, c); err != nil {
			return err
		}
	}

	if c.SubscriptionID != "" {
		sub := models.Subscription{
			ID:       c.SubscriptionID,
			UserID:   userID,
			Status:   string(stripe.SubscriptionStatusActive),
			PriceID:  c.PriceID,
			Quantity: 1,
		}
		if err := s.subscriptions.Link(ctx, sub); err != nil {
			return fmt.Errorf("link subscription: %w", err)
		}
	}
	return nil
}

func (s *BillingService) grantPurchase(ctx context.Context, userID string, c *billing.CheckoutCompleted) error {
	if c.PriceID == "" {
		s.log.Warn("checkout without price id, no credits granted", "session_id", c.SessionID)
		return nil
	}
	product, err := s.products.FindByPriceID(ctx, c.PriceID)
	if err != nil {
		return fmt.Errorf("find product: %w", err)
	}
	if product == nil || product.Credits <= 0 {
		s.log.Warn("no credits configured for price", "price_id", c.PriceID)
		return nil
	}
	granted, err := s.grants.Grant(ctx, ledger.Entry{
		TransNo:     "STRIPE_" + c.SessionID,
		UserID:      userID,
		TransType:   models.TransPurchase,
		Credits:     product.Credits,
		Description: "Subscription purchase: " + product.Name,
	})
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	if granted {
		s.log.Info("purchase credits granted", "user_id", userID, "credits", product.Credits, "session_id", c.SessionID)
	}
	return nil
}

func (s *BillingService) applySubscription(ctx context.Context, change *billing.SubscriptionChange) error {
	userID, err := s.resolveUser(ctx, change.UserID, change.CustomerID)
	if err != nil {
		return err
	}
	sub := change.Subscription
	sub.UserID = userID
	return s.subscriptions.Upsert(ctx, sub)
}

func (s *BillingService) resolveUser(ctx context.Context, userID, stripeCustomerID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	if stripeCustomerID == "" {
		return "", errors.New("event has neither user id nor customer")
	}
	c, err := s.customers.FindByStripeCustomerID(ctx, stripeCustomerID)
	if err != nil {
		return "", fmt.Errorf("find customer: %w", err)
	}
	if c == nil {
		return "", fmt.Errorf("%w: stripe customer %s", ErrCustomerNotFound, stripeCustomerID)
	}
	return c.ID, nil
}

// SubscriptionView mirrors a subscription row with its price and product
// nested the way the account page reads it.
type SubscriptionView struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Status             string     `json:"status"`
	PriceID            string     `json:"price_id"`
	Quantity           int        `json:"quantity"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	Created            time.Time  `json:"created"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	EndedAt            *time.Time `json:"ended_at"`
	Prices             *PriceView `json:"prices"`
}

type PriceView struct {
	ID            string       `json:"id"`
	UnitAmount    int64        `json:"unit_amount"`
	Currency      string       `json:"currency"`
	Interval      string       `json:"interval,omitempty"`
	IntervalCount int          `json:"interval_count"`
	Active        bool         `json:"active"`
	Products      *ProductView `json:"products"`
}

type ProductView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Credits     int    `json:"credits"`
}

// Subscriptions returns the user's trialing and active subscriptions.
func (s *BillingService) Subscriptions(ctx context.Context, userID string) ([]SubscriptionView, error) {
	subs, err := s.subscriptions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		v := SubscriptionView{
			ID:                 sub.ID,
			UserID:             sub.UserID,
			Status:             sub.Status,
			PriceID:            sub.PriceID,
			Quantity:           sub.Quantity,
			CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
			Created:            sub.Created,
			CurrentPeriodStart: sub.CurrentPeriodStart,
			CurrentPeriodEnd:   sub.CurrentPeriodEnd,
			EndedAt:            sub.EndedAt,
		}
		if sub.Price != nil {
			v.Prices = &PriceView{
				ID:            sub.Price.ID,
				UnitAmount:    sub.Price.UnitAmount,
				Currency:      sub.Price.Currency,
				Interval:      sub.Price.Interval,
				IntervalCount: sub.Price.IntervalCount,
				Active:        sub.Price.Active,
			}
			if sub.Product != nil {
				v.Prices.Products = &ProductView{
					ID:          sub.Product.ID,
					Name:        sub.Product.Name,
					Description: sub.Product.Description,
					Credits:     sub.Product.Credits,
				}
			}
		}
		out = append(out, v)
	}
	return out, nil
}
