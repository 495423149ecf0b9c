package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/digkill/ImageForge/internal/generation"
)

const maxGenerateBody = 1 << 20

func fromLocalDevServer(r *http.Request) bool {
	ref := r.Header.Get("Referer")
	return strings.Contains(ref, "localhost:300") || strings.Contains(ref, "127.0.0.1:300")
}

// generateCORS opens the generation endpoint to the local dev front end only.
func generateCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fromLocalDevServer(r) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGenerateOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(w, r, false)
	if err != nil {
		s.log.Debug("generate unauthenticated", "err", err)
		s.writeGenerationError(w, generation.ErrUnauthorized())
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxGenerateBody))
	if err != nil {
		s.writeGenerationError(w, generation.ErrInvalidBody(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.GenerationTimeout)
	defer cancel()

	outcome, gerr := s.gen.Generate(ctx, user.ID, raw)
	if gerr != nil {
		s.writeGenerationError(w, gerr)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome.Body())
}

func (s *Server) writeGenerationError(w http.ResponseWriter, gerr *generation.Error) {
	s.writeJSON(w, gerr.Status, generation.NewErrorBody(gerr))
}

type modelBody struct {
	ID          string   `json:"id"`
	Provider    string   `json:"provider"`
	DisplayName string   `json:"displayName"`
	Sizes       []string `json:"sizes"`
	DefaultSize string   `json:"defaultSize"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	list := s.gen.Registry().Models()
	out := make([]modelBody, 0, len(list))
	for _, m := range list {
		out = append(out, modelBody{
			ID:          m.ID,
			Provider:    string(m.Provider),
			DisplayName: m.DisplayName,
			Sizes:       m.SupportedSizes,
			DefaultSize: m.DefaultSize(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(w, r, false)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, authErrorMessage(err))
		return
	}
	summary, err := s.gen.Summary(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, "Failed to load credits", err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCreditHistory(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(w, r, false)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, authErrorMessage(err))
		return
	}
	txs, err := s.gen.History(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, "Failed to load credit history", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}
