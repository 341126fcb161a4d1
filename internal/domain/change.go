package domain

import (
	"bytes"
	"encoding/json/v2"
	"time"

	"github.com/snipsyncapp/snipsync-server/internal/util"
)

// Patch is a partial snippet update keyed by property name. Supported
// properties: name, description, category, tags, content, is_favorite.
type Patch map[string]any

// Snippet properties a patch may touch, in diff output order.
var patchableProperties = []string{
	"name",
	"description",
	"category",
	"tags",
	"content",
	"is_favorite",
}

// ChangeStatus tracks a universal change through its lifecycle.
type ChangeStatus string

// Change statuses.
const (
	ChangePending ChangeStatus = "pending"
	ChangeApplied ChangeStatus = "applied"
	ChangeFailed  ChangeStatus = "failed"
)

// ChangeType discriminates what a universal change targets.
type ChangeType string

// ChangeTypeSnippet is currently the only change type.
const ChangeTypeSnippet ChangeType = "snippet"

// TemplateOutcome records how one template responded to an applied patch.
type TemplateOutcome struct {
	TemplateID string `json:"template_id"`
	Success    bool   `json:"success"`
	Reason     string `json:"reason,omitempty"`
}

// UniversalChange is a proposed (and later applied) edit to a snippet,
// scoped to the templates it affects.
//
// AffectedTemplates is computed once at proposal time and deliberately not
// recomputed on apply; the template set may have drifted in between and the
// user reviewed the proposal as it stood.
type UniversalChange struct {
	ID                string            `json:"id"`
	Type              ChangeType        `json:"type"`
	TargetID          string            `json:"target_id"`
	Changes           Patch             `json:"changes"`
	AffectedTemplates []string          `json:"affected_templates"`
	Timestamp         time.Time         `json:"timestamp"`
	Status            ChangeStatus      `json:"status"`
	Outcomes          []TemplateOutcome `json:"outcomes,omitempty"` // recorded at apply time
}

// Succeeded reports whether every targeted template accepted the patch.
func (c *UniversalChange) Succeeded() bool {
	for _, o := range c.Outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}

// Severity classifies how disruptive a change is for one template.
type Severity string

// Severity levels.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityForChangeCount derives severity from the number of changed
// properties: 0 → low, 1 → medium, 2+ → high.
func SeverityForChangeCount(n int) Severity {
	switch {
	case n >= 2:
		return SeverityHigh
	case n == 1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// PropertyChange describes one property a patch would alter.
type PropertyChange struct {
	Property string `json:"property"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// ChangeImpact is the computed, human-reviewable effect of a proposed
// change on one template.
type ChangeImpact struct {
	TemplateID   string           `json:"template_id"`
	TemplateName string           `json:"template_name"`
	Changes      []PropertyChange `json:"changes"`
	Severity     Severity         `json:"severity"`
	// RequiresReview flags a stale reference under the "review" policy:
	// the template is excluded from automatic propagation until re-bound.
	RequiresReview bool `json:"requires_review,omitempty"`
}

// Diff compares a patch against the snippet's current property values and
// returns the properties that would actually change. Unknown patch keys are
// ignored; the document model owns anything this engine doesn't diff.
func (s *Snippet) Diff(patch Patch) []PropertyChange {
	changes := make([]PropertyChange, 0, len(patch))
	for _, prop := range patchableProperties {
		newValue, ok := patch[prop]
		if !ok {
			continue
		}
		// Tags normalize on write, so compare the slugs that would
		// actually be stored.
		if prop == "tags" {
			if tags, err := toStringSlice(newValue); err == nil {
				newValue = util.NormalizeTags(tags)
			}
		}
		oldValue := s.propertyValue(prop)
		if jsonEqual(oldValue, newValue) {
			continue
		}
		changes = append(changes, PropertyChange{
			Property: prop,
			OldValue: oldValue,
			NewValue: newValue,
		})
	}
	return changes
}

// ApplyPatch writes the patch's known properties into the snippet and
// touches UpdatedAt. Values of the wrong shape are reported, not silently
// coerced.
func (s *Snippet) ApplyPatch(patch Patch) error {
	for _, prop := range patchableProperties {
		value, ok := patch[prop]
		if !ok {
			continue
		}
		switch prop {
		case "name":
			v, ok := value.(string)
			if !ok {
				return &PatchTypeError{Property: prop, Want: "string"}
			}
			s.Name = v
		case "description":
			v, ok := value.(string)
			if !ok {
				return &PatchTypeError{Property: prop, Want: "string"}
			}
			s.Description = v
		case "category":
			v, ok := value.(string)
			if !ok {
				return &PatchTypeError{Property: prop, Want: "string"}
			}
			if !Category(v).Valid() {
				return &PatchTypeError{Property: prop, Want: "layout|content|custom"}
			}
			s.Category = Category(v)
		case "tags":
			tags, err := toStringSlice(value)
			if err != nil {
				return &PatchTypeError{Property: prop, Want: "[]string"}
			}
			s.Tags = util.NormalizeTags(tags)
		case "content":
			block, err := toBlock(value)
			if err != nil {
				return &PatchTypeError{Property: prop, Want: "block"}
			}
			s.Content = block
			if block.Type != "" {
				s.BlockType = block.Type
			}
		case "is_favorite":
			v, ok := value.(bool)
			if !ok {
				return &PatchTypeError{Property: prop, Want: "bool"}
			}
			s.IsFavorite = v
		}
	}
	s.Touch()
	return nil
}

// PatchTypeError reports a patch value of the wrong shape.
type PatchTypeError struct {
	Property string
	Want     string
}

func (e *PatchTypeError) Error() string {
	return "patch property " + e.Property + " must be " + e.Want
}

// propertyValue returns the snippet's current value for a patchable
// property.
func (s *Snippet) propertyValue(prop string) any {
	switch prop {
	case "name":
		return s.Name
	case "description":
		return s.Description
	case "category":
		return string(s.Category)
	case "tags":
		return s.Tags
	case "content":
		return s.Content
	case "is_favorite":
		return s.IsFavorite
	}
	return nil
}

// jsonEqual compares two values by their canonical JSON encoding, which
// tolerates the mixed concrete types a patch can carry ([]any vs []string,
// map payloads vs Block).
func jsonEqual(a, b any) bool {
	aData, errA := json.Marshal(a, json.Deterministic(true))
	bData, errB := json.Marshal(b, json.Deterministic(true))
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aData, bData)
}

// toStringSlice converts a patch value ([]string or []any of strings) to a
// string slice.
func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &PatchTypeError{Property: "tags", Want: "[]string"}
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, &PatchTypeError{Property: "tags", Want: "[]string"}
}

// toBlock converts a patch value (Block or JSON object) to a Block.
func toBlock(value any) (Block, error) {
	switch v := value.(type) {
	case Block:
		return v.Clone(), nil
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return Block{}, err
		}
		var block Block
		if err := json.Unmarshal(data, &block); err != nil {
			return Block{}, err
		}
		return block, nil
	}
	return Block{}, &PatchTypeError{Property: "content", Want: "block"}
}
