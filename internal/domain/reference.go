package domain

import (
	"encoding/json/v2"
	"fmt"
	"time"
)

// SnippetReference binds one template to one snippet. At most one reference
// exists per (TemplateID, SnippetID) pair; re-registering replaces it.
//
// The registry never stores snippet content. A reference is purely
// relational state and can be rebuilt from its serialized tuple.
type SnippetReference struct {
	TemplateID     string         `json:"template_id"`
	TemplateName   string         `json:"template_name,omitempty"`
	SnippetID      string         `json:"snippet_id"`
	Customizations map[string]any `json:"customizations,omitempty"` // opaque local overrides
	Locked         bool           `json:"locked"`
	BoundVersion   time.Time      `json:"bound_version"` // snippet UpdatedAt captured at bind time
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsStale reports whether the snippet has changed since this reference was
// bound.
func (r *SnippetReference) IsStale(snippetUpdatedAt time.Time) bool {
	return snippetUpdatedAt.After(r.BoundVersion)
}

// ToggleLock flips the lock flag and returns the new state.
func (r *SnippetReference) ToggleLock() bool {
	r.Locked = !r.Locked
	r.UpdatedAt = time.Now()
	return r.Locked
}

// Clone returns a deep copy of the reference.
func (r *SnippetReference) Clone() *SnippetReference {
	c := *r
	if r.Customizations != nil {
		data, err := json.Marshal(r.Customizations)
		if err != nil {
			panic(fmt.Sprintf("clone customizations: %v", err))
		}
		var customizations map[string]any
		if err := json.Unmarshal(data, &customizations); err != nil {
			panic(fmt.Sprintf("clone customizations: %v", err))
		}
		c.Customizations = customizations
	}
	return &c
}
