package service

import (
	"context"
	"time"

	"github.com/digkill/ImageForge/internal/generation"
	"github.com/digkill/ImageForge/internal/identity"
	"github.com/digkill/ImageForge/internal/ledger"
	"github.com/digkill/ImageForge/internal/models"
	"github.com/digkill/ImageForge/internal/registry"
	"github.com/digkill/ImageForge/internal/storage"
)

// Credits is the part of the ledger the generation pipeline needs.
type Credits interface {
	Balance(ctx context.Context, userID string) (int, error)
	Debit(ctx context.Context, userID string, amount int, memo string) (bool, error)
	Refund(ctx context.Context, userID string, amount int, memo string) error
	Journal(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

type Granter interface {
	Grant(ctx context.Context, e ledger.Entry) (bool, error)
}

type ImageDispatcher interface {
	CheckCredential(model registry.Model) *generation.Error
	Dispatch(ctx context.Context, model registry.Model, prompt, size string) (generation.Payload, *generation.Error)
}

type GenerationStore interface {
	Log(ctx context.Context, entry models.GenerationLog) error
	CountForDay(ctx context.Context, userID string, day time.Time) (int, error)
}

type AuditArchive interface {
	Record(ctx context.Context, rec storage.AuditRecord) error
}

type Alerter interface {
	Alert(ctx context.Context, key, text string) bool
}

type CustomerStore interface {
	FindByID(ctx context.Context, id string) (*models.Customer, error)
	FindByStripeCustomerID(ctx context.Context, stripeID string) (*models.Customer, error)
	Create(ctx context.Context, c *models.Customer) error
	UpsertRole(ctx context.Context, id string, role models.Role) error
	SetStripeCustomerID(ctx context.Context, id, stripeID string) error
}

type ProductStore interface {
	ListActive(ctx context.Context) ([]models.Product, error)
	FindByPriceID(ctx context.Context, priceID string) (*models.Product, error)
	UpsertProduct(ctx context.Context, p models.Product) error
	UpsertPrice(ctx context.Context, p models.Price) error
}

type SubscriptionStore interface {
	ListActiveByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	Upsert(ctx context.Context, sub models.Subscription) error
	Link(ctx context.Context, sub models.Subscription) error
	ListOrders(ctx context.Context, q models.OrderQuery) ([]models.Order, int, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, paymentID int64, status string, payload string) error
	FindByProviderCharge(ctx context.Context, provider, chargeID string) (*models.Payment, error)
}

// IdentityProvider is the subset of the identity client used by account and
// admin flows.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, fullName string) (*identity.User, *identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*identity.User, error)
	AdminGetUser(ctx context.Context, id string) (*identity.User, error)
	AdminListUsers(ctx context.Context, page, perPage int) ([]identity.User, error)
}

// CustomerCreator registers users with the payment provider.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
}
