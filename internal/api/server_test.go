package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/ImageForge/internal/generation"
	"github.com/digkill/ImageForge/internal/identity"
	"github.com/digkill/ImageForge/internal/models"
	"github.com/digkill/ImageForge/internal/registry"
	"github.com/digkill/ImageForge/internal/service"
)

type fakeAuth struct {
	res   *identity.Result
	err   error
	creds identity.Credentials
}

func (f *fakeAuth) Authenticate(ctx context.Context, creds identity.Credentials) (*identity.Result, error) {
	f.creds = creds
	return f.res, f.err
}

type fakeGenerator struct {
	userID   string
	raw      string
	deadline bool
	outcome  *service.Outcome
	gerr     *generation.Error
}

func (f *fakeGenerator) Registry() *registry.Registry { return registry.Default() }

func (f *fakeGenerator) Generate(ctx context.Context, userID string, raw []byte) (*service.Outcome, *generation.Error) {
	f.userID, f.raw = userID, string(raw)
	_, f.deadline = ctx.Deadline()
	return f.outcome, f.gerr
}

func (f *fakeGenerator) Summary(ctx context.Context, userID string) (*service.CreditsSummary, error) {
	return &service.CreditsSummary{Balance: 40, Cost: 10, GenerationsToday: 2}, nil
}

func (f *fakeGenerator) History(ctx context.Context, userID string) ([]models.CreditTransaction, error) {
	f.userID = userID
	return []models.CreditTransaction{{TransNo: "SPEND_1", UserID: userID, TransType: models.TransGeneration, Credits: -10}}, nil
}

type fakeAccounts struct {
	signUpErr error
	signedOut string
	login     *service.AdminLogin
	loginErr  error
	admin     bool
	roleErr   error
	roleSet   models.Role
}

func (f *fakeAccounts) SignUp(ctx context.Context, in service.SignUpInput) (*identity.User, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &identity.User{ID: "u1", Email: in.Email}, nil
}

func (f *fakeAccounts) SignOut(ctx context.Context, accessToken string) { f.signedOut = accessToken }

func (f *fakeAccounts) AdminLogin(ctx context.Context, email, password string) (*service.AdminLogin, error) {
	return f.login, f.loginErr
}

func (f *fakeAccounts) AdminStatus(ctx context.Context, accessToken string) service.AdminStatus {
	if accessToken == "" {
		return service.AdminStatus{}
	}
	return service.AdminStatus{IsLoggedIn: true, HasAccount: true}
}

func (f *fakeAccounts) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return f.admin, nil
}

func (f *fakeAccounts) SetRole(ctx context.Context, userID string, role models.Role) error {
	f.roleSet = role
	return f.roleErr
}

type fakeBilling struct {
	checkoutURL string
	checkoutErr error
	webhookType string
	webhookErr  error
	signature   string
}

func (f *fakeBilling) Pricing(ctx context.Context) ([]service.PricingPlan, error) {
	return []service.PricingPlan{{ID: "prod_pro", Price: 19}}, nil
}

func (f *fakeBilling) Checkout(ctx context.Context, userID, plan, priceID string) (string, error) {
	return f.checkoutURL, f.checkoutErr
}

func (f *fakeBilling) LoginRedirect(plan, priceID string) string {
	return "http://app/login?redirectUrl=" + plan + "-" + priceID
}

func (f *fakeBilling) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	f.signature = signature
	return f.webhookType, f.webhookErr
}

func (f *fakeBilling) Subscriptions(ctx context.Context, userID string) ([]service.SubscriptionView, error) {
	return []service.SubscriptionView{{ID: "sub_1", UserID: userID}}, nil
}

type fakeOrders struct {
	req service.OrderRequest
}

func (f *fakeOrders) List(ctx context.Context, req service.OrderRequest) (*service.OrdersPage, error) {
	f.req = req
	return &service.OrdersPage{Orders: []models.Order{}, Pagination: service.Pagination{Page: 1, Limit: 10}}, nil
}

type harness struct {
	auth     *fakeAuth
	gen      *fakeGenerator
	accounts *fakeAccounts
	billing  *fakeBilling
	orders   *fakeOrders
	handler  http.Handler
}

func newHarness() *harness {
	h := &harness{
		auth:     &fakeAuth{res: &identity.Result{User: &identity.User{ID: "u1", Email: "a@b.c"}}},
		gen:      &fakeGenerator{},
		accounts: &fakeAccounts{},
		billing:  &fakeBilling{},
		orders:   &fakeOrders{},
	}
	srv := NewServer(Config{GenerationTimeout: time.Second, MetricsEnabled: true}, nil, h.auth, h.gen, h.accounts, h.billing, h.orders)
	h.handler = srv.Handler()
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGenerateSuccess(t *testing.T) {
	h := newHarness()
	h.gen.outcome = &service.Outcome{
		Payload:       generation.Payload{Kind: generation.PayloadRemoteURL, URL: "https://img/1.png"},
		Cost:          10,
		BalanceBefore: 25,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(`{"prompt":"cat","model":"dall-e-3"}`))
	req.Header.Set("Authorization", "Bearer tok")
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", h.gen.userID)
	assert.True(t, h.gen.deadline)
	assert.Equal(t, "tok", h.auth.creds.BearerToken)
	body := decodeBody(t, rec)
	assert.Equal(t, "https://img/1.png", body["imageUrl"])
	assert.Equal(t, map[string]any{"cost": float64(10), "balance": float64(15)}, body["credits"])
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGenerateUnauthenticated(t *testing.T) {
	h := newHarness()
	h.auth.res, h.auth.err = nil, identity.ErrNotAuthenticated

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeBody(t, rec)["error"])
	assert.Empty(t, h.gen.userID)
}

func TestGenerateErrorBody(t *testing.T) {
	h := newHarness()
	h.gen.gerr = generation.ErrInsufficientCredits(10, 3)

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "INSUFFICIENT_CREDITS", body["error"])
	assert.Equal(t, "Not enough credits. Required: 10, current balance: 3", body["message"])
}

func TestGenerateCORSByReferer(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodOptions, "/api/ai/generate", nil)
	req.Header.Set("Referer", "http://localhost:3000/generate")
	rec := h.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodOptions, "/api/ai/generate", nil)
	req.Header.Set("Referer", "https://evil.example/")
	rec = h.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestModels(t *testing.T) {
	h := newHarness()
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/models", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)["models"].([]any)
	require.NotEmpty(t, list)
	first := list[0].(map[string]any)
	assert.Equal(t, "dall-e-3", first["id"])
	assert.Equal(t, "1024x1024", first["defaultSize"])
}

func TestUserReissuesRefreshedCookies(t *testing.T) {
	h := newHarness()
	h.auth.res.Refreshed = &identity.Session{AccessToken: "new-access", RefreshToken: "new-refresh", ExpiresIn: 3600}

	req := httptest.NewRequest(http.MethodGet, "https://app.example/api/auth/user", nil)
	req.AddCookie(&http.Cookie{Name: accessCookie, Value: "stale"})
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: "r"})
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stale", h.auth.creds.AccessToken)
	assert.Equal(t, "r", h.auth.creds.RefreshToken)

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, accessCookie)
	assert.Equal(t, "new-access", cookies[accessCookie].Value)
	assert.True(t, cookies[accessCookie].HttpOnly)
	assert.True(t, cookies[accessCookie].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[accessCookie].SameSite)
	assert.Equal(t, "new-refresh", cookies[refreshCookie].Value)
}

func TestUserErrorMessages(t *testing.T) {
	cases := map[error]string{
		identity.ErrNotAuthenticated: "Not authenticated",
		identity.ErrInvalidToken:     "Invalid token",
		identity.ErrSessionExpired:   "Session expired",
	}
	for err, msg := range cases {
		h := newHarness()
		h.auth.res, h.auth.err = nil, err

		rec := h.do(httptest.NewRequest(http.MethodGet, "/api/auth/user", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, msg, decodeBody(t, rec)["error"])
	}
}

func TestSignUp(t *testing.T) {
	h := newHarness()

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"email":"a@b.c"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email and password are required", decodeBody(t, rec)["error"])

	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"email":"a@b.c","password":"pw","fullName":"Ada"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User created successfully. Please check your email to verify your account.", decodeBody(t, rec)["message"])

	h.accounts.signUpErr = &identity.Error{StatusCode: 422, Message: "User already registered"}
	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"email":"a@b.c","password":"pw"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already registered", decodeBody(t, rec)["error"])
}

func TestSignOutClearsCookies(t *testing.T) {
	h := newHarness()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: accessCookie, Value: "acc"})
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acc", h.accounts.signedOut)
	cleared := 0
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared++
		}
	}
	assert.Equal(t, 3, cleared)
}

func TestCheckout(t *testing.T) {
	h := newHarness()

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/checkout?plan=pro", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.auth.res, h.auth.err = nil, identity.ErrSessionExpired
	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/checkout?plan=pro&price=price_pro", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://app/login?redirectUrl=pro-price_pro", rec.Header().Get("Location"))

	h = newHarness()
	h.billing.checkoutURL = "https://checkout.example/cs_1"
	req := httptest.NewRequest(http.MethodGet, "/api/checkout?plan=pro&price=price_pro", nil)
	req.Header.Set("Authorization", "Bearer ignored")
	rec = h.do(req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://checkout.example/cs_1", rec.Header().Get("Location"))
	assert.Empty(t, h.auth.creds.BearerToken)

	h.billing.checkoutErr = service.ErrCustomerNotFound
	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/checkout?plan=pro&price=price_pro", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Customer not found", decodeBody(t, rec)["error"])
}

func TestStripeWebhook(t *testing.T) {
	h := newHarness()
	h.billing.webhookType = "invoice.paid"

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := h.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["received"])
	assert.Equal(t, "t=1,v1=abc", h.billing.signature)

	h.billing.webhookType, h.billing.webhookErr = "", errors.New("verify webhook: bad signature")
	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBearerTokenRequiresScheme(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer tok":     "tok",
		"Bearer  tok ":   "tok",
		"Basic dXNlcjpw": "",
		"tok":            "",
		"":               "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, bearerToken(req), header)
	}
}

func TestCreditHistory(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodGet, "/api/credits/history", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpw")
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, h.auth.creds.BearerToken)
	assert.Equal(t, "u1", h.gen.userID)
	txs, ok := decodeBody(t, rec)["transactions"].([]any)
	require.True(t, ok)
	require.Len(t, txs, 1)
	assert.Equal(t, float64(-10), txs[0].(map[string]any)["credits"])

	h.auth.res, h.auth.err = nil, identity.ErrNotAuthenticated
	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/credits/history", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreditsAndPricing(t *testing.T) {
	h := newHarness()

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/credits", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"balance": float64(40), "cost": float64(10), "generationsToday": float64(2)}, decodeBody(t, rec))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/pricing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["plans"], 1)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["subscriptions"], 1)
}

func TestAdminLogin(t *testing.T) {
	h := newHarness()

	h.accounts.loginErr = service.ErrNotAdmin
	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/admin/auth/login", strings.NewReader(`{"email":"a@b.c","password":"pw"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "You do not have permission to access the admin panel", decodeBody(t, rec)["error"])

	h.accounts.loginErr = nil
	h.accounts.login = &service.AdminLogin{User: service.AdminUser{ID: "u1", Email: "a@b.c", Role: models.RoleAdmin}}
	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/admin/auth/login", strings.NewReader(`{"email":"a@b.c","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "admin", body["user"].(map[string]any)["role"])
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness()
	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/admin/orders", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	h.auth.res, h.auth.err = nil, identity.ErrNotAuthenticated
	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/admin/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOrdersAndSetRole(t *testing.T) {
	h := newHarness()
	h.accounts.admin = true

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/admin/orders", strings.NewReader(`{"page":2,"search":"ada"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, h.orders.req.Page)
	assert.Equal(t, "ada", h.orders.req.Search)

	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/admin/orders", strings.NewReader(`{"sortOrder":"sideways"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/admin/users/set-role", strings.NewReader(`{"id":"u2","role":"admin"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleAdmin, h.accounts.roleSet)
	assert.Equal(t, "User successfully set as admin", decodeBody(t, rec)["message"])

	h.accounts.roleErr = service.ErrRoleUnchanged
	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/admin/users/set-role", strings.NewReader(`{"id":"u2","role":"admin"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User is already a admin", decodeBody(t, rec)["error"])

	h.accounts.roleErr = service.ErrUserNotFound
	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/admin/users/set-role", strings.NewReader(`{"id":"u9","role":"user"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/admin/users/set-role", strings.NewReader(`{"id":"u9"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness()
	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "imageforge_http_requests_total")
}
