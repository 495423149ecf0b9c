package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/digkill/ImageForge/internal/service"
)

const maxWebhookBody = 64 << 10

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	plans, err := s.billing.Pricing(r.Context())
	if err != nil {
		s.internalError(w, "Failed to load pricing", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(w, r, false)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, authErrorMessage(err))
		return
	}
	subs, err := s.billing.Subscriptions(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, "Failed to fetch subscriptions", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

// handleCheckout only trusts the session cookies: it is reached by a browser
// navigation, never by an API client.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	plan := r.URL.Query().Get("plan")
	priceID := r.URL.Query().Get("price")
	if plan == "" || priceID == "" {
		s.writeError(w, http.StatusBadRequest, "Missing plan or price parameter")
		return
	}

	user, err := s.authenticate(w, r, true)
	if err != nil {
		http.Redirect(w, r, s.billing.LoginRedirect(plan, priceID), http.StatusFound)
		return
	}

	url, err := s.billing.Checkout(r.Context(), user.ID, plan, priceID)
	switch {
	case errors.Is(err, service.ErrCustomerNotFound):
		s.writeError(w, http.StatusNotFound, "Customer not found")
		return
	case err != nil:
		s.internalError(w, "Failed to create checkout session", err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body error")
		return
	}

	eventType, err := s.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if eventType == "" {
			s.log.Warn("stripe webhook rejected", "err", err)
			s.writeError(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
			return
		}
		s.internalError(w, "Webhook handler failed", err)
		return
	}
	s.log.Info("stripe webhook handled", "type", eventType)
	s.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
