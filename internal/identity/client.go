// Package identity talks to the hosted auth service (GoTrue REST API) and
// resolves request credentials to users.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// User is the identity-service view of an account.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Role             string         `json:"role,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
}

// Session is a token pair issued by the identity service.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user"`
}

// Error is a failed identity-service call.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity: status=%d: %s", e.StatusCode, e.Message)
}

// ErrNotFound is returned by admin lookups for unknown users.
var ErrNotFound = errors.New("identity: user not found")

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.ErrorDescription, b.Msg, b.Message, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Client is a thin GoTrue REST client. The anon key authenticates public
// calls; the service-role key is needed for admin calls only.
type Client struct {
	rest           *resty.Client
	anonKey        string
	serviceRoleKey string
}

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
}

type ClientOption func(*clientOptions)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

func NewClient(baseURL, anonKey, serviceRoleKey string, opts ...ClientOption) *Client {
	o := clientOptions{timeout: 15 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	rest := resty.New()
	if o.httpClient != nil {
		rest = resty.NewWithClient(o.httpClient)
	}
	rest.SetBaseURL(strings.TrimRight(baseURL, "/")+"/auth/v1").
		SetTimeout(o.timeout).
		SetHeader("Accept", "application/json")
	return &Client{rest: rest, anonKey: anonKey, serviceRoleKey: serviceRoleKey}
}

func (c *Client) public(ctx context.Context) *resty.Request {
	return c.rest.R().SetContext(ctx).SetHeader("apikey", c.anonKey)
}

func (c *Client) admin(ctx context.Context) (*resty.Request, error) {
	if c.serviceRoleKey == "" {
		return nil, errors.New("identity: service role key not configured")
	}
	return c.rest.R().SetContext(ctx).
		SetHeader("apikey", c.serviceRoleKey).
		SetAuthToken(c.serviceRoleKey), nil
}

// GetUser resolves an access token to its user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	resp, err := c.public(ctx).SetAuthToken(accessToken).SetResult(&user).Get("/user")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session
	resp, err := c.public(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&session).
		Post("/token")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: "refresh returned no session"}
	}
	return &session, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	resp, err := c.public(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&session).
		Post("/token")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if session.User == nil {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: "sign in returned no user"}
	}
	return &session, nil
}

type signUpResponse struct {
	Session
	User
}

// SignUp registers a new account. Depending on the project settings the
// service answers with a session or, when email confirmation is on, with the
// bare user.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*User, *Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	var out signUpResponse
	resp, err := c.public(ctx).SetBody(body).SetResult(&out).Post("/signup")
	if err := check(resp, err); err != nil {
		return nil, nil, err
	}
	if out.Session.AccessToken != "" && out.Session.User != nil {
		session := out.Session
		return session.User, &session, nil
	}
	user := out.User
	return &user, nil, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.public(ctx).SetAuthToken(accessToken).Post("/logout")
	return check(resp, err)
}

func (c *Client) AdminGetUser(ctx context.Context, id string) (*User, error) {
	req, err := c.admin(ctx)
	if err != nil {
		return nil, err
	}
	var user User
	resp, err := req.SetPathParam("id", id).SetResult(&user).Get("/admin/users/{id}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (c *Client) AdminListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	req, err := c.admin(ctx)
	if err != nil {
		return nil, err
	}
	var out struct {
		Users []User `json:"users"`
	}
	resp, err := req.
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("per_page", strconv.Itoa(perPage)).
		SetResult(&out).
		Get("/admin/users")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	var body errorBody
	msg := ""
	if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr == nil {
		msg = body.text()
	}
	if msg == "" {
		msg = resp.Status()
	}
	return &Error{StatusCode: resp.StatusCode(), Message: msg}
}
