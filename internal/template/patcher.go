// Package template holds the engine's view of the template collaborator.
// Real deployments plug in their document system here; the log patcher
// is the standalone default.
package template

import (
	"context"
	"log/slog"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
)

// LogPatcher accepts every patch and records the instruction. It stands
// in for a document system when the engine runs standalone.
type LogPatcher struct {
	logger *slog.Logger
}

// NewLogPatcher creates a patcher that accepts and logs every patch.
func NewLogPatcher(logger *slog.Logger) *LogPatcher {
	return &LogPatcher{logger: logger}
}

// AcceptPatch records the patch instruction and accepts it.
func (p *LogPatcher) AcceptPatch(ctx context.Context, templateID, snippetID string, patch domain.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	props := make([]string, 0, len(patch))
	for prop := range patch {
		props = append(props, prop)
	}
	p.logger.Info("template accepted patch",
		"template_id", templateID,
		"snippet_id", snippetID,
		"properties", props,
	)
	return nil
}
