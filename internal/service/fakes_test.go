package service

import (
	"context"
	"sync"
	"time"

	"github.com/digkill/ImageForge/internal/billing"
	"github.com/digkill/ImageForge/internal/generation"
	"github.com/digkill/ImageForge/internal/identity"
	"github.com/digkill/ImageForge/internal/ledger"
	"github.com/digkill/ImageForge/internal/models"
	"github.com/digkill/ImageForge/internal/registry"
	"github.com/digkill/ImageForge/internal/storage"
)

type fakeCredits struct {
	mu         sync.Mutex
	balances   map[string]int
	balanceErr error
	debitErr   error
	refundErr  error
	debitOK    *bool
	debits     int
	refunds    int
	grants     map[string]ledger.Entry
	grantErr   error

	journal      []models.CreditTransaction
	journalLimit int
}

func newFakeCredits(userID string, balance int) *fakeCredits {
	return &fakeCredits{
		balances: map[string]int{userID: balance},
		grants:   map[string]ledger.Entry{},
	}
}

func (f *fakeCredits) Balance(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balances[userID], nil
}

func (f *fakeCredits) Debit(ctx context.Context, userID string, amount int, memo string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return false, f.debitErr
	}
	if f.debitOK != nil && !*f.debitOK {
		return false, nil
	}
	if f.balances[userID] < amount {
		return false, nil
	}
	f.balances[userID] -= amount
	f.debits++
	return true, nil
}

func (f *fakeCredits) Refund(ctx context.Context, userID string, amount int, memo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return f.refundErr
	}
	f.balances[userID] += amount
	f.refunds++
	return nil
}

func (f *fakeCredits) Journal(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.journalLimit = limit
	return f.journal, nil
}

func (f *fakeCredits) Grant(ctx context.Context, e ledger.Entry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return false, f.grantErr
	}
	if _, dup := f.grants[e.TransNo]; dup {
		return false, nil
	}
	f.grants[e.TransNo] = e
	f.balances[e.UserID] += e.Credits
	return true, nil
}

type dispatchCall struct {
	model  string
	prompt string
	size   string
}

type fakeDispatcher struct {
	calls   []dispatchCall
	payload generation.Payload
	err     *generation.Error
	credErr *generation.Error
	before  func(ctx context.Context)
}

func (f *fakeDispatcher) CheckCredential(model registry.Model) *generation.Error {
	return f.credErr
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, model registry.Model, prompt, size string) (generation.Payload, *generation.Error) {
	f.calls = append(f.calls, dispatchCall{model: model.ID, prompt: prompt, size: size})
	if f.before != nil {
		f.before(ctx)
	}
	if f.err != nil {
		return generation.Payload{}, f.err
	}
	return f.payload, nil
}

type fakeGenerationStore struct {
	logs  []models.GenerationLog
	count int
}

func (f *fakeGenerationStore) Log(ctx context.Context, entry models.GenerationLog) error {
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeGenerationStore) CountForDay(ctx context.Context, userID string, day time.Time) (int, error) {
	return f.count, nil
}

type fakeArchive struct {
	records []storage.AuditRecord
}

func (f *fakeArchive) Record(ctx context.Context, rec storage.AuditRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type fakeAlerter struct {
	keys []string
}

func (f *fakeAlerter) Alert(ctx context.Context, key, text string) bool {
	f.keys = append(f.keys, key)
	return true
}

type fakeCustomers struct {
	byID     map[string]*models.Customer
	findErr  error
	created  []*models.Customer
	roleSets map[string]models.Role
}

func newFakeCustomers(cs ...*models.Customer) *fakeCustomers {
	f := &fakeCustomers{byID: map[string]*models.Customer{}, roleSets: map[string]models.Role{}}
	for _, c := range cs {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCustomers) FindByID(ctx context.Context, id string) (*models.Customer, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCustomers) FindByStripeCustomerID(ctx context.Context, stripeID string) (*models.Customer, error) {
	for _, c := range f.byID {
		if c.StripeCustomerID == stripeID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomers) Create(ctx context.Context, c *models.Customer) error {
	f.created = append(f.created, c)
	f.byID[c.ID] = c
	return nil
}

func (f *fakeCustomers) UpsertRole(ctx context.Context, id string, role models.Role) error {
	f.roleSets[id] = role
	if c, ok := f.byID[id]; ok {
		c.Role = role
	} else {
		f.byID[id] = &models.Customer{ID: id, Role: role}
	}
	return nil
}

func (f *fakeCustomers) SetStripeCustomerID(ctx context.Context, id, stripeID string) error {
	if c, ok := f.byID[id]; ok {
		c.StripeCustomerID = stripeID
	}
	return nil
}

type fakeIdentity struct {
	signUpUser *identity.User
	signUpErr  error
	session    *identity.Session
	signInErr  error
	signedOut  []string
	tokens     map[string]*identity.User
	adminUsers map[string]*identity.User
	adminErr   error
	list       []identity.User
	listErr    error
	listCalls  int
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password, fullName string) (*identity.User, *identity.Session, error) {
	return f.signUpUser, nil, f.signUpErr
}

func (f *fakeIdentity) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	return f.session, f.signInErr
}

func (f *fakeIdentity) SignOut(ctx context.Context, accessToken string) error {
	f.signedOut = append(f.signedOut, accessToken)
	return nil
}

func (f *fakeIdentity) GetUser(ctx context.Context, accessToken string) (*identity.User, error) {
	if u, ok := f.tokens[accessToken]; ok {
		return u, nil
	}
	return nil, &identity.Error{StatusCode: 401, Message: "invalid JWT"}
}

func (f *fakeIdentity) AdminGetUser(ctx context.Context, id string) (*identity.User, error) {
	if f.adminErr != nil {
		return nil, f.adminErr
	}
	if u, ok := f.adminUsers[id]; ok {
		return u, nil
	}
	return nil, identity.ErrNotFound
}

func (f *fakeIdentity) AdminListUsers(ctx context.Context, page, perPage int) ([]identity.User, error) {
	f.listCalls++
	return f.list, f.listErr
}

type fakeStripeCustomers struct {
	calls int
	err   error
}

func (f *fakeStripeCustomers) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "cus_" + userID, nil
}

type fakeProducts struct {
	active   []models.Product
	byPrice  map[string]*models.Product
	upserted []models.Product
	prices   []models.Price
}

func (f *fakeProducts) ListActive(ctx context.Context) ([]models.Product, error) {
	return f.active, nil
}

func (f *fakeProducts) FindByPriceID(ctx context.Context, priceID string) (*models.Product, error) {
	return f.byPrice[priceID], nil
}

func (f *fakeProducts) UpsertProduct(ctx context.Context, p models.Product) error {
	f.upserted = append(f.upserted, p)
	return nil
}

func (f *fakeProducts) UpsertPrice(ctx context.Context, p models.Price) error {
	f.prices = append(f.prices, p)
	return nil
}

type fakeSubscriptions struct {
	active   []models.Subscription
	upserted []models.Subscription
	linked   []models.Subscription
	linkErr  error
	orders   []models.Order
	total    int
	lastQ    models.OrderQuery
}

func (f *fakeSubscriptions) ListActiveByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	return f.active, nil
}

func (f *fakeSubscriptions) Upsert(ctx context.Context, sub models.Subscription) error {
	f.upserted = append(f.upserted, sub)
	return nil
}

func (f *fakeSubscriptions) Link(ctx context.Context, sub models.Subscription) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.linked = append(f.linked, sub)
	return nil
}

func (f *fakeSubscriptions) ListOrders(ctx context.Context, q models.OrderQuery) ([]models.Order, int, error) {
	f.lastQ = q
	return f.orders, f.total, nil
}

type fakePayments struct {
	byCharge map[string]*models.Payment
	created  []*models.Payment
	updates  []string
}

func (f *fakePayments) Create(ctx context.Context, p *models.Payment) error {
	p.ID = int64(len(f.created) + 1)
	f.created = append(f.created, p)
	if f.byCharge == nil {
		f.byCharge = map[string]*models.Payment{}
	}
	f.byCharge[p.ProviderCharge] = p
	return nil
}

func (f *fakePayments) UpdateStatus(ctx context.Context, id int64, status, payload string) error {
	f.updates = append(f.updates, status)
	for _, p := range f.byCharge {
		if p.ID == id {
			p.Status = status
		}
	}
	return nil
}

func (f *fakePayments) FindByProviderCharge(ctx context.Context, provider, chargeID string) (*models.Payment, error) {
	if p, ok := f.byCharge[chargeID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

type fakeGateway struct {
	params   billing.CheckoutParams
	url      string
	err      error
	event    *billing.Event
	parseErr error
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (string, error) {
	f.params = p
	return f.url, f.err
}

func (f *fakeGateway) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	return f.event, f.parseErr
}
