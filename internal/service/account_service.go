package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/digkill/ImageForge/internal/identity"
	"github.com/digkill/ImageForge/internal/ledger"
	"github.com/digkill/ImageForge/internal/models"
)

var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotAdmin           = errors.New("not an admin")
	ErrInvalidRole        = errors.New("invalid role")
	ErrRoleUnchanged      = errors.New("role unchanged")
	ErrUserLookup         = errors.New("failed to fetch user")
	ErrCustomerSetup      = errors.New("failed to create customer record")
)

type AccountService struct {
	log         *slog.Logger
	identity    IdentityProvider
	customers   CustomerStore
	grants      Granter
	billing     CustomerCreator
	signupBonus int
	now         func() time.Time
}

// NewAccountService builds the account service. billing may be nil when
// payments are not configured.
func NewAccountService(log *slog.Logger, idp IdentityProvider, customers CustomerStore, grants Granter, billing CustomerCreator, signupBonus int) *AccountService {
	if log == nil {
		log = slog.Default()
	}
	return &AccountService{
		log:         log,
		identity:    idp,
		customers:   customers,
		grants:      grants,
		billing:     billing,
		signupBonus: signupBonus,
		now:         time.Now,
	}
}

type SignUpInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"fullName"`
}

// SignUp creates the identity account and its customer row, then grants the
// signup bonus. A failed bonus is logged and does not fail the signup.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (*identity.User, error) {
	user, _, err := s.identity.SignUp(ctx, in.Email, in.Password, in.FullName)
	if err != nil {
		return nil, err
	}

	userID := ""
	if user != nil {
		userID = user.ID
	}
	if _, err := s.EnsureCustomer(ctx, userID, in.Email); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCustomerSetup, err)
	}

	if userID != "" && s.signupBonus > 0 {
		entry := ledger.Entry{
			TransNo:     ledger.SignupBonusTransNo(userID, s.now()),
			UserID:      userID,
			TransType:   models.TransSignupBonus,
			Credits:     s.signupBonus,
			Description: "Signup bonus credits",
		}
		if _, err := s.grants.Grant(ctx, entry); err != nil {
			s.log.Error("failed to add signup bonus credits", "user_id", userID, "err", err)
		} else {
			s.log.Info("signup bonus credits added", "user_id", userID, "credits", s.signupBonus)
		}
	}
	return user, nil
}

// EnsureCustomer returns the customer row for userID, creating it (and the
// payment-provider customer when billing is configured) on first use.
func (s *AccountService) EnsureCustomer(ctx context.Context, userID, email string) (*models.Customer, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	existing, err := s.customers.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.StripeCustomerID == "" && s.billing != nil {
			stripeID, err := s.billing.CreateCustomer(ctx, email, userID)
			if err != nil {
				return nil, err
			}
			if err := s.customers.SetStripeCustomerID(ctx, userID, stripeID); err != nil {
				return nil, err
			}
			existing.StripeCustomerID = stripeID
		}
		return existing, nil
	}

	c := &models.Customer{ID: userID, Email: email, Role: models.RoleUser}
	if s.billing != nil {
		stripeID, err := s.billing.CreateCustomer(ctx, email, userID)
		if err != nil {
			return nil, err
		}
		c.StripeCustomerID = stripeID
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Customer returns the stored customer or ErrCustomerNotFound.
func (s *AccountService) Customer(ctx context.Context, userID string) (*models.Customer, error) {
	c, err := s.customers.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCustomerNotFound
	}
	return c, nil
}

func (s *AccountService) SignOut(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	if err := s.identity.SignOut(ctx, accessToken); err != nil {
		s.log.Warn("sign out failed", "err", err)
	}
}

type AdminUser struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type AdminLogin struct {
	User    AdminUser         `json:"user"`
	Session *identity.Session `json:"session"`
}

// AdminLogin signs in with a password and keeps the session only for admins;
// other accounts are signed out again.
func (s *AccountService) AdminLogin(ctx context.Context, email, password string) (*AdminLogin, error) {
	session, err := s.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		var idErr *identity.Error
		if errors.As(err, &idErr) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if session == nil || session.User == nil {
		return nil, ErrInvalidCredentials
	}

	customer, err := s.customers.FindByID(ctx, session.User.ID)
	if err != nil || customer == nil || customer.Role != models.RoleAdmin {
		if err != nil {
			s.log.Error("admin login role lookup failed", "user_id", session.User.ID, "err", err)
		}
		s.SignOut(ctx, session.AccessToken)
		return nil, ErrNotAdmin
	}

	return &AdminLogin{
		User:    AdminUser{ID: session.User.ID, Email: session.User.Email, Role: models.RoleAdmin},
		Session: session,
	}, nil
}

type AdminStatus struct {
	IsAdmin    bool       `json:"isAdmin"`
	IsLoggedIn bool       `json:"isLoggedIn"`
	HasAccount bool       `json:"hasAccount"`
	User       *AdminUser `json:"user,omitempty"`
}

// AdminStatus never fails: any lookup error reads as "not logged in" or "no
// account".
func (s *AccountService) AdminStatus(ctx context.Context, accessToken string) AdminStatus {
	if accessToken == "" {
		return AdminStatus{}
	}
	user, err := s.identity.GetUser(ctx, accessToken)
	if err != nil || user == nil {
		return AdminStatus{}
	}

	customer, err := s.customers.FindByID(ctx, user.ID)
	if err != nil || customer == nil {
		if err != nil {
			s.log.Error("admin status lookup failed", "user_id", user.ID, "err", err)
		}
		return AdminStatus{IsLoggedIn: true}
	}
	if customer.Role != models.RoleAdmin {
		return AdminStatus{IsLoggedIn: true, HasAccount: true}
	}
	return AdminStatus{
		IsAdmin:    true,
		IsLoggedIn: true,
		HasAccount: true,
		User:       &AdminUser{ID: user.ID, Email: user.Email, Role: models.RoleAdmin},
	}
}

// IsAdmin reports whether userID has a customer row with the admin role.
func (s *AccountService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	c, err := s.customers.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return c != nil && c.Role == models.RoleAdmin, nil
}

// SetRole changes a user's role. The user must exist in the identity service;
// the customer row is created when missing.
func (s *AccountService) SetRole(ctx context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if _, err := s.identity.AdminGetUser(ctx, userID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrUserLookup, err)
	}

	current, err := s.customers.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUserLookup, err)
	}
	if current != nil && current.Role == role {
		return ErrRoleUnchanged
	}
	if err := s.customers.UpsertRole(ctx, userID, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	s.log.Info("user role updated", "user_id", userID, "role", role)
	return nil
}
