package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/digkill/ImageForge/internal/generation"
	"github.com/digkill/ImageForge/internal/metrics"
	"github.com/digkill/ImageForge/internal/models"
	"github.com/digkill/ImageForge/internal/registry"
	"github.com/digkill/ImageForge/internal/storage"
)

const (
	sideEffectTimeout = 5 * time.Second
	historyLimit      = 50
)

type GenerationConfig struct {
	Cost       int
	Reserve    bool
	StrictSize bool
}

type GenerationService struct {
	cfg        GenerationConfig
	log        *slog.Logger
	registry   *registry.Registry
	credits    Credits
	dispatcher ImageDispatcher
	store      GenerationStore
	archive    AuditArchive
	alerts     Alerter
}

// Outcome is a successful generation.
type Outcome struct {
	Model         registry.Model
	Payload       generation.Payload
	Cost          int
	BalanceBefore int
}

func (o *Outcome) Body() generation.SuccessBody {
	return generation.NewSuccessBody(o.Payload, o.Cost, o.BalanceBefore)
}

// CreditsSummary is what the account page shows next to the generator.
type CreditsSummary struct {
	Balance          int `json:"balance"`
	Cost             int `json:"cost"`
	GenerationsToday int `json:"generationsToday"`
}

// NewGenerationService wires the pipeline. store, archive and alerts may be
// nil.
func NewGenerationService(cfg GenerationConfig, log *slog.Logger, reg *registry.Registry, credits Credits, dispatcher ImageDispatcher, store GenerationStore, archive AuditArchive, alerts Alerter) *GenerationService {
	if log == nil {
		log = slog.Default()
	}
	return &GenerationService{
		cfg:        cfg,
		log:        log,
		registry:   reg,
		credits:    credits,
		dispatcher: dispatcher,
		store:      store,
		archive:    archive,
		alerts:     alerts,
	}
}

func (s *GenerationService) Registry() *registry.Registry {
	return s.registry
}

func (s *GenerationService) Cost() int {
	return s.cfg.Cost
}

// Generate runs one request through validation, model lookup, balance check,
// provider call and debit. The first failing stage ends the request.
func (s *GenerationService) Generate(ctx context.Context, userID string, raw []byte) (*Outcome, *generation.Error) {
	if userID == "" {
		return nil, generation.ErrUnauthorized()
	}

	req, verr := generation.Validate(raw)
	if verr != nil {
		return nil, verr
	}

	model, ok := s.registry.Resolve(req.Model)
	if !ok {
		return nil, generation.ErrUnsupportedModel(req.Model, s.registry.IDs())
	}
	if s.cfg.StrictSize {
		if serr := generation.CheckModelSize(model, req); serr != nil {
			return nil, serr
		}
	}

	cost := s.cfg.Cost
	balance, err := s.credits.Balance(ctx, userID)
	if err != nil {
		s.log.Error("failed to read credits balance", "user_id", userID, "err", err)
		return nil, generation.ErrCreditsCheckFailed(err)
	}
	if balance < cost {
		return nil, generation.ErrInsufficientCredits(cost, balance)
	}
	if err := ctx.Err(); err != nil {
		return nil, generation.ErrGenerationTimeout(err)
	}

	run := &attempt{userID: userID, model: model, req: req, cost: cost, started: time.Now()}
	// A missing provider key fails the request before the ledger is touched.
	gerr := s.dispatcher.CheckCredential(model)
	if gerr == nil {
		if s.cfg.Reserve {
			gerr = s.reserveAndDispatch(ctx, run, balance)
		} else {
			gerr = s.dispatchAndDebit(ctx, run)
		}
	}
	s.finish(ctx, run, gerr)
	if gerr != nil {
		return nil, gerr
	}
	return &Outcome{Model: model, Payload: run.payload, Cost: cost, BalanceBefore: balance}, nil
}

type attempt struct {
	userID       string
	model        registry.Model
	req          generation.Request
	cost         int
	started      time.Time
	providerTime time.Duration
	payload      generation.Payload
}

func (s *GenerationService) dispatch(ctx context.Context, run *attempt) *generation.Error {
	start := time.Now()
	payload, gerr := s.dispatcher.Dispatch(ctx, run.model, run.req.Prompt, run.req.Size)
	run.providerTime = time.Since(start)
	run.payload = payload
	return gerr
}

// reserveAndDispatch takes the credits first and gives them back when the
// provider call does not produce an image.
func (s *GenerationService) reserveAndDispatch(ctx context.Context, run *attempt, balance int) *generation.Error {
	ok, err := s.credits.Debit(ctx, run.userID, run.cost, memo(run.model))
	if err != nil {
		s.log.Error("failed to reserve credits", "user_id", run.userID, "err", err)
		return generation.ErrCreditsSpendFailed(err)
	}
	if !ok {
		return generation.ErrInsufficientCredits(run.cost, balance)
	}
	metrics.RecordDebit(run.cost)

	if gerr := s.dispatch(ctx, run); gerr != nil {
		s.refund(ctx, run)
		return gerr
	}
	return nil
}

// dispatchAndDebit charges only after the image exists. A failed debit
// discards the image.
func (s *GenerationService) dispatchAndDebit(ctx context.Context, run *attempt) *generation.Error {
	if gerr := s.dispatch(ctx, run); gerr != nil {
		return gerr
	}
	if err := ctx.Err(); err != nil {
		return generation.ErrGenerationTimeout(err)
	}

	ok, err := s.credits.Debit(ctx, run.userID, run.cost, memo(run.model))
	if err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("balance no longer covers %d credits", run.cost)
		}
		s.log.Error("failed to spend credits after generation", "user_id", run.userID, "model", run.model.ID, "err", err)
		return generation.ErrCreditsSpendFailed(err)
	}
	metrics.RecordDebit(run.cost)
	return nil
}

func (s *GenerationService) refund(ctx context.Context, run *attempt) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.credits.Refund(rctx, run.userID, run.cost, "Refund: "+memo(run.model)); err != nil {
		s.log.Error("failed to refund credits", "user_id", run.userID, "credits", run.cost, "err", err)
		s.alert(rctx, "credits:refund", fmt.Sprintf("Refund of %d credits for user %s failed: %v", run.cost, run.userID, err))
		return
	}
	metrics.RecordRefund(run.cost)
}

// finish records the attempt. Nothing here can fail the request.
func (s *GenerationService) finish(ctx context.Context, run *attempt, gerr *generation.Error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	outcome, code, cost := "success", "", run.cost
	if gerr != nil {
		outcome, code, cost = "failed", string(gerr.Code), 0
	}
	provider := string(run.model.Provider)
	metrics.RecordGeneration(run.model.ID, provider, outcome, run.providerTime)

	duration := time.Since(run.started)
	if s.store != nil {
		entry := models.GenerationLog{
			UserID:     run.userID,
			Model:      run.model.ID,
			Provider:   provider,
			Prompt:     run.req.Prompt,
			Size:       run.req.Size,
			Cost:       cost,
			Outcome:    outcome,
			ErrorCode:  code,
			DurationMS: duration.Milliseconds(),
		}
		if err := s.store.Log(fctx, entry); err != nil {
			s.log.Error("failed to log generation", "err", err)
		}
	}
	if s.archive != nil {
		rec := storage.AuditRecord{
			UserID:       run.userID,
			Model:        run.model.ID,
			Provider:     provider,
			Size:         run.req.Size,
			PromptLength: len(run.req.Prompt),
			Cost:         cost,
			Outcome:      outcome,
			ErrorCode:    code,
			DurationMS:   duration.Milliseconds(),
		}
		if err := s.archive.Record(fctx, rec); err != nil {
			s.log.Warn("failed to archive generation", "err", err)
		}
	}

	if gerr == nil {
		return
	}
	switch gerr.Code {
	case generation.CodeAPIKeyNotConfigured:
		s.alert(fctx, "apikey:"+provider, fmt.Sprintf("%s is not set, %s requests fail", run.model.CredentialEnv, run.model.DisplayName))
	case generation.CodeCreditsSpendFailed:
		s.alert(fctx, "credits:spend", fmt.Sprintf("Credit debit failed for user %s: %v", run.userID, gerr.Err))
	}
}

func (s *GenerationService) alert(ctx context.Context, key, text string) {
	if s.alerts != nil {
		s.alerts.Alert(ctx, key, text)
	}
}

// Summary returns the balance, the per-image cost and today's successful
// generations.
func (s *GenerationService) Summary(ctx context.Context, userID string) (*CreditsSummary, error) {
	balance, err := s.credits.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	out := &CreditsSummary{Balance: balance, Cost: s.cfg.Cost}
	if s.store != nil {
		count, err := s.store.CountForDay(ctx, userID, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("count generations: %w", err)
		}
		out.GenerationsToday = count
	}
	return out, nil
}

// History returns the user's most recent credit transactions, oldest first.
func (s *GenerationService) History(ctx context.Context, userID string) ([]models.CreditTransaction, error) {
	txs, err := s.credits.Journal(ctx, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	if txs == nil {
		txs = []models.CreditTransaction{}
	}
	return txs, nil
}

func memo(model registry.Model) string {
	return "AI image generation: " + model.ID
}
