// Package main provides a tool to seed the store with demo data.
//
// It creates a handful of snippets, binds them to demo templates, and
// leaves one proposed change pending so the propagation workflow can be
// exercised end to end.
//
// Usage:
//
//	SNIPSYNC_STORE=sqlite SNIPSYNC_DATA_PATH=~/SnipSync go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/do/v2"

	"github.com/snipsyncapp/snipsync-server/internal/di"
	"github.com/snipsyncapp/snipsync-server/internal/domain"
	"github.com/snipsyncapp/snipsync-server/internal/service"
)

func main() {
	injector := di.NewContainer()
	if err := di.Bootstrap(injector); err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer func() { _ = injector.Shutdown() }()

	ctx := context.Background()
	snippets := do.MustInvoke[*service.SnippetService](injector)
	registry := do.MustInvoke[*service.RegistryService](injector)
	propagation := do.MustInvoke[*service.PropagationService](injector)

	demos := []struct {
		name  string
		desc  string
		block domain.Block
		tags  []string
	}{
		{
			name: "Welcome Header",
			desc: "Greeting block for landing pages",
			block: domain.Block{
				Type:    "text",
				Content: map[string]any{"html": "<h1>Welcome!</h1><p>Glad you are here.</p>"},
			},
			tags: []string{"welcome", "header"},
		},
		{
			name: "Newsletter Signup",
			desc: "Email capture form",
			block: domain.Block{
				Type: "form",
				Content: map[string]any{
					"fields": []any{"email"},
					"submit": "Subscribe",
				},
			},
			tags: []string{"newsletter", "form"},
		},
		{
			name: "Contact Footer",
			desc: "Footer with contact details",
			block: domain.Block{
				Type:    "text",
				Content: map[string]any{"html": "<p>Reach us at hello@example.com</p>"},
			},
			tags: []string{"footer", "contact"},
		},
	}

	created := make([]*domain.Snippet, 0, len(demos))
	for _, demo := range demos {
		snippet, err := snippets.Create(ctx, demo.block, demo.name, demo.desc)
		if err != nil {
			log.Fatalf("Failed to create snippet %q: %v", demo.name, err)
		}
		if _, err := snippets.UpdateTags(ctx, snippet.ID, demo.tags); err != nil {
			log.Fatalf("Failed to tag snippet %q: %v", demo.name, err)
		}
		created = append(created, snippet)
		fmt.Printf("created %s (%s)\n", snippet.ID, snippet.Name)
	}

	// Bind the welcome header to two templates and lock one of them, so
	// a propose shows both the impact list and the lock exclusion.
	welcome := created[0]
	templates := []struct {
		id, name string
	}{
		{"tpl-landing", "Landing Page"},
		{"tpl-pricing", "Pricing Page"},
	}
	for _, tpl := range templates {
		if _, err := registry.Register(ctx, tpl.id, tpl.name, welcome.ID, nil); err != nil {
			log.Fatalf("Failed to register %s: %v", tpl.id, err)
		}
		if _, err := snippets.IncrementUsage(ctx, welcome.ID); err != nil {
			log.Fatalf("Failed to bump usage: %v", err)
		}
		fmt.Printf("registered %s -> %s\n", tpl.id, welcome.ID)
	}
	if _, err := propagation.ToggleLock(ctx, "tpl-pricing", welcome.ID); err != nil {
		log.Fatalf("Failed to lock reference: %v", err)
	}
	fmt.Println("locked tpl-pricing (excluded from propagation)")

	impacts, err := propagation.ProposeUpdate(ctx, welcome.ID, domain.Patch{
		"name":        "Hero Welcome",
		"description": "Primary greeting for all public pages",
	})
	if err != nil {
		log.Fatalf("Failed to propose update: %v", err)
	}
	fmt.Printf("proposed change affecting %d template(s); run 'snipctl changes' to review\n", len(impacts))
}
