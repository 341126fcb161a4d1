package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/snipsyncapp/snipsync-server/internal/config"
	"github.com/snipsyncapp/snipsync-server/internal/domain"
	domainerrors "github.com/snipsyncapp/snipsync-server/internal/errors"
	"github.com/snipsyncapp/snipsync-server/internal/event"
	"github.com/snipsyncapp/snipsync-server/internal/id"
	"github.com/snipsyncapp/snipsync-server/internal/store"
)

// TemplatePatcher is the hook into the template collaborator. Apply
// calls it once per affected template; a non-nil error means the
// template rejected the patch.
type TemplatePatcher interface {
	AcceptPatch(ctx context.Context, templateID, snippetID string, patch domain.Patch) error
}

// PropagationService orchestrates universal changes: it computes
// per-template impact previews before any mutation, records the change
// as pending, and applies it in a separate explicit step.
//
// It reads both the snippet store and the registry but writes neither
// directly; apply mutates the snippet through the snippet service's
// update path so the single-notification rule holds.
type PropagationService struct {
	store       store.Store
	snippets    *SnippetService
	registry    *RegistryService
	patcher     TemplatePatcher
	bus         *event.Bus
	stalePolicy string
	logger      *slog.Logger
}

// NewPropagationService creates a propagation engine. The bus is its
// own listener set, separate from the snippet store's.
func NewPropagationService(
	st store.Store,
	snippets *SnippetService,
	registry *RegistryService,
	patcher TemplatePatcher,
	bus *event.Bus,
	cfg config.PropagationConfig,
	logger *slog.Logger,
) *PropagationService {
	return &PropagationService{
		store:       st,
		snippets:    snippets,
		registry:    registry,
		patcher:     patcher,
		bus:         bus,
		stalePolicy: cfg.StalePolicy,
		logger:      logger,
	}
}

// ProposeUpdate computes the per-template impact of a patch without
// mutating anything, records a pending UniversalChange, and returns the
// impacts for review.
//
// Locked references are skipped entirely: no impact entry, excluded
// from AffectedTemplates. Under the "review" stale policy, references
// whose bound version lags the snippet get an impact entry flagged
// RequiresReview and are likewise excluded from automatic propagation.
//
// An unknown or deleted snippet yields an empty impact list and no
// change record; there is nothing to update.
func (s *PropagationService) ProposeUpdate(ctx context.Context, snippetID string, patch domain.Patch) ([]domain.ChangeImpact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, domainerrors.Validation("patch is empty")
	}

	snippet, err := s.store.GetSnippet(ctx, snippetID)
	if err != nil {
		if errors.Is(err, store.ErrSnippetNotFound) {
			s.logger.Warn("propose update for unknown snippet", "snippet_id", snippetID)
			return []domain.ChangeImpact{}, nil
		}
		return nil, fmt.Errorf("get snippet: %w", err)
	}
	if snippet.IsDeleted() {
		s.logger.Warn("propose update for deleted snippet", "snippet_id", snippetID)
		return []domain.ChangeImpact{}, nil
	}
	if snippet.Builtin {
		return nil, domainerrors.Conflictf("builtin snippet %s cannot be modified", snippetID)
	}

	templates, err := s.store.TemplatesUsing(ctx, snippetID)
	if err != nil {
		return nil, fmt.Errorf("templates using: %w", err)
	}

	changes := snippet.Diff(patch)
	severity := domain.SeverityForChangeCount(len(changes))

	impacts := make([]domain.ChangeImpact, 0, len(templates))
	affected := make([]string, 0, len(templates))

	for _, templateID := range templates {
		ref, err := s.store.GetReference(ctx, templateID, snippetID)
		if err != nil {
			return nil, fmt.Errorf("get reference %s/%s: %w", templateID, snippetID, err)
		}
		if ref.Locked {
			continue
		}

		impact := domain.ChangeImpact{
			TemplateID:   templateID,
			TemplateName: ref.TemplateName,
			Changes:      changes,
			Severity:     severity,
		}

		if s.stalePolicy == config.StalePolicyReview && ref.IsStale(snippet.UpdatedAt) {
			impact.RequiresReview = true
			impacts = append(impacts, impact)
			continue
		}

		impacts = append(impacts, impact)
		affected = append(affected, templateID)
	}

	changeID, err := id.Generate("chg")
	if err != nil {
		return nil, fmt.Errorf("generate change ID: %w", err)
	}

	change := &domain.UniversalChange{
		ID:                changeID,
		Type:              domain.ChangeTypeSnippet,
		TargetID:          snippetID,
		Changes:           patch,
		AffectedTemplates: affected,
		Timestamp:         time.Now(),
		Status:            domain.ChangePending,
	}
	if err := s.store.CreateChange(ctx, change); err != nil {
		return nil, fmt.Errorf("create change: %w", err)
	}

	s.logger.Info("universal change proposed",
		"change_id", changeID,
		"snippet_id", snippetID,
		"affected_templates", len(affected),
		"severity", string(severity),
	)
	s.bus.Emit(event.NewChangeEvent(event.TypeChangeProposed, changeID, snippetID))

	return impacts, nil
}

// Apply transitions a pending change to applied or failed. The snippet
// itself is patched first, then each affected template is asked to
// accept the patch independently; one rejection marks the change failed
// but never rolls back the templates that succeeded.
//
// Apply is idempotent: re-applying a settled change returns its prior
// state without touching any template.
func (s *PropagationService) Apply(ctx context.Context, changeID string) (*domain.UniversalChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		if errors.Is(err, store.ErrChangeNotFound) {
			return nil, domainerrors.NotFoundf("change %s not found", changeID)
		}
		return nil, fmt.Errorf("get change: %w", err)
	}

	if change.Status != domain.ChangePending {
		return change, nil
	}

	// Patch the canonical snippet through the snippet store's update
	// path. A snippet that vanished since proposal leaves the change
	// pending so it can be retried or discarded explicitly.
	snippet, err := s.snippets.Get(ctx, change.TargetID)
	if err != nil {
		return nil, err
	}
	if err := snippet.ApplyPatch(change.Changes); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "apply patch to snippet")
	}
	if err := s.store.UpdateSnippet(ctx, snippet); err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}
	s.snippets.bus.Emit(event.NewSnippetEvent(event.TypeSnippetUpdated, change.TargetID))

	// Each template accept is independent; a failure is recorded and the
	// loop keeps going.
	outcomes := make([]domain.TemplateOutcome, 0, len(change.AffectedTemplates))
	for _, templateID := range change.AffectedTemplates {
		outcome := domain.TemplateOutcome{TemplateID: templateID, Success: true}
		if err := s.patcher.AcceptPatch(ctx, templateID, change.TargetID, change.Changes); err != nil {
			outcome.Success = false
			outcome.Reason = err.Error()
			s.logger.Warn("template rejected patch",
				"change_id", changeID,
				"template_id", templateID,
				"reason", err.Error(),
			)
		}
		outcomes = append(outcomes, outcome)
	}

	change.Outcomes = outcomes
	if change.Succeeded() {
		change.Status = domain.ChangeApplied
	} else {
		change.Status = domain.ChangeFailed
	}

	if err := s.store.UpdateChange(ctx, change); err != nil {
		return nil, fmt.Errorf("update change: %w", err)
	}

	s.logger.Info("universal change applied",
		"change_id", changeID,
		"status", string(change.Status),
		"templates", len(outcomes),
	)
	if change.Status == domain.ChangeApplied {
		s.bus.Emit(event.NewChangeEvent(event.TypeChangeApplied, changeID, change.TargetID))
	} else {
		s.bus.Emit(event.NewChangeEvent(event.TypeChangeFailed, changeID, change.TargetID))
	}

	return change, nil
}

// ToggleLock delegates to the reference registry.
func (s *PropagationService) ToggleLock(ctx context.Context, templateID, snippetID string) (bool, error) {
	return s.registry.ToggleLock(ctx, templateID, snippetID)
}

// GetChange retrieves a universal change by id.
func (s *PropagationService) GetChange(ctx context.Context, changeID string) (*domain.UniversalChange, error) {
	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		if errors.Is(err, store.ErrChangeNotFound) {
			return nil, domainerrors.NotFoundf("change %s not found", changeID)
		}
		return nil, fmt.Errorf("get change: %w", err)
	}
	return change, nil
}

// ListChanges returns the change log, newest first.
func (s *PropagationService) ListChanges(ctx context.Context) ([]*domain.UniversalChange, error) {
	changes, err := s.store.ListChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	return changes, nil
}

// Subscribe registers a listener on the engine's own fan-out.
func (s *PropagationService) Subscribe(fn event.Listener) *event.Subscription {
	return s.bus.Subscribe(fn)
}

// Unsubscribe removes a previously registered listener.
func (s *PropagationService) Unsubscribe(sub *event.Subscription) {
	s.bus.Unsubscribe(sub)
}
