package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/digkill/ImageForge/internal/identity"
	"github.com/digkill/ImageForge/internal/service"
)

const (
	accessCookie  = "sb-access-token"
	refreshCookie = "sb-refresh-token"
	legacyCookie  = "auth-token"
)

type ctxKey int

const userKey ctxKey = iota

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// credentials collects the Bearer header and session cookies. With
// cookiesOnly the header is ignored.
func credentials(r *http.Request, cookiesOnly bool) identity.Credentials {
	creds := identity.Credentials{
		AccessToken:  cookieValue(r, accessCookie),
		RefreshToken: cookieValue(r, refreshCookie),
	}
	if !cookiesOnly {
		creds.BearerToken = bearerToken(r)
	}
	return creds
}

// authenticate resolves the caller and reissues the session cookies when the
// access token had to be refreshed.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, cookiesOnly bool) (*identity.User, error) {
	res, err := s.auth.Authenticate(r.Context(), credentials(r, cookiesOnly))
	if err != nil {
		return nil, err
	}
	if res.Refreshed != nil {
		setSessionCookies(w, r, res.Refreshed)
	}
	return res.User, nil
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrSessionExpired):
		return "Session expired"
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrTokenExpired):
		return "Invalid token"
	default:
		return "Not authenticated"
	}
}

func secureCookies(r *http.Request) bool {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host != "localhost" && host != "127.0.0.1"
}

func setSessionCookies(w http.ResponseWriter, r *http.Request, session *identity.Session) {
	secure := secureCookies(r)
	maxAge := session.ExpiresIn
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    session.AccessToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    session.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secureCookies(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in service.SignUpInput
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := s.accounts.SignUp(r.Context(), in)
	if err != nil {
		var idErr *identity.Error
		if errors.As(err, &idErr) {
			s.writeError(w, http.StatusBadRequest, idErr.Message)
			return
		}
		if errors.Is(err, service.ErrCustomerSetup) {
			s.log.Error("signup customer setup", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.internalError(w, "Internal server error", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"message": "User created successfully. Please check your email to verify your account.",
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(w, r, false)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, authErrorMessage(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = cookieValue(r, accessCookie)
	}
	s.accounts.SignOut(r.Context(), token)

	for _, name := range []string{accessCookie, refreshCookie, legacyCookie} {
		clearCookie(w, r, name)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Signed out successfully"})
}

type adminLoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Email and password are required"})
		return
	}

	login, err := s.accounts.AdminLogin(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid email or password"})
		return
	case errors.Is(err, service.ErrNotAdmin):
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "You do not have permission to access the admin panel"})
		return
	case err != nil:
		s.log.Error("admin login", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Login failed, please try again later"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    login.User,
		"session": login.Session,
	})
}

func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = cookieValue(r, accessCookie)
	}
	s.writeJSON(w, http.StatusOK, s.accounts.AdminStatus(r.Context(), token))
}

// requireAdmin admits Bearer (or cookie) sessions of admin customers.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(w, r, false)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, authErrorMessage(err))
			return
		}
		ok, err := s.accounts.IsAdmin(r.Context(), user.ID)
		if err != nil {
			s.internalError(w, "Internal server error", err)
			return
		}
		if !ok {
			s.writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}
