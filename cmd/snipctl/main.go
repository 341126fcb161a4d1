// Package main provides the snipctl command-line interface to the
// synchronization engine.
//
// Usage:
//
//	snipctl [global flags] <command> [args]
//
// Commands:
//
//	list                                   list snippets
//	show <snippet-id>                      show one snippet
//	create -type TYPE [-name N] [-desc D] [-html H]
//	rename <snippet-id> <new-name>
//	tags <snippet-id> <tag,tag,...>
//	category <snippet-id> <layout|content|custom>
//	favorite <snippet-id> <true|false>
//	use <snippet-id>                       increment the usage counter
//	delete <snippet-id>
//	export <snippet-id>                    render the snippet as Markdown
//	register -template T [-template-name N] <snippet-id>
//	refs <template-id>                     list a template's references
//	using <snippet-id>                     list templates using a snippet
//	lock <template-id> <snippet-id>        toggle the propagation lock
//	propose <snippet-id> -patch JSON       preview a universal change
//	apply <change-id>                      apply a pending change
//	changes                                list the change log
//	change <change-id>                     show one change
//	search <query>                         full-text snippet search
//
// Global flags (store, data path, stale policy) are shared with the
// server; see -help.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samber/do/v2"

	"github.com/snipsyncapp/snipsync-server/internal/di"
	"github.com/snipsyncapp/snipsync-server/internal/domain"
	"github.com/snipsyncapp/snipsync-server/internal/export"
	"github.com/snipsyncapp/snipsync-server/internal/logger"
	"github.com/snipsyncapp/snipsync-server/internal/search"
	"github.com/snipsyncapp/snipsync-server/internal/service"
)

func main() {
	injector := di.NewContainer()
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer shutdown(injector)

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: snipctl <command> [args] (see -help)")
		os.Exit(2)
	}

	ctx := context.Background()
	command, args := args[0], args[1:]

	var err error
	switch command {
	case "list":
		err = cmdList(ctx, injector)
	case "show":
		err = cmdShow(ctx, injector, args)
	case "create":
		err = cmdCreate(ctx, injector, args)
	case "rename":
		err = cmdRename(ctx, injector, args)
	case "tags":
		err = cmdTags(ctx, injector, args)
	case "category":
		err = cmdCategory(ctx, injector, args)
	case "favorite":
		err = cmdFavorite(ctx, injector, args)
	case "use":
		err = cmdUse(ctx, injector, args)
	case "delete":
		err = cmdDelete(ctx, injector, args)
	case "export":
		err = cmdExport(ctx, injector, args)
	case "register":
		err = cmdRegister(ctx, injector, args)
	case "refs":
		err = cmdRefs(ctx, injector, args)
	case "using":
		err = cmdUsing(ctx, injector, args)
	case "lock":
		err = cmdLock(ctx, injector, args)
	case "propose":
		err = cmdPropose(ctx, injector, args)
	case "apply":
		err = cmdApply(ctx, injector, args)
	case "changes":
		err = cmdChanges(ctx, injector)
	case "change":
		err = cmdChange(ctx, injector, args)
	case "search":
		err = cmdSearch(ctx, injector, args)
	default:
		err = fmt.Errorf("unknown command: %s", command)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "snipctl %s: %v\n", command, err)
		shutdown(injector)
		os.Exit(1)
	}
}

// shutdown closes the container. The store and search handles implement
// do.Shutdownable, so a single container shutdown closes them exactly once.
func shutdown(injector *do.RootScope) {
	log := do.MustInvoke[*logger.Logger](injector)
	if err := injector.Shutdown(); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

func cmdList(ctx context.Context, injector *do.RootScope) error {
	snippets := do.MustInvoke[*service.SnippetService](injector)

	list, err := snippets.List(ctx)
	if err != nil {
		return err
	}

	for _, s := range list {
		marker := " "
		if s.Builtin {
			marker = "*"
		}
		fmt.Printf("%s %-28s %-24s %-8s uses=%-4d %s\n",
			marker, s.ID, s.Name, s.Category, s.UsageCount, strings.Join(s.Tags, ","))
	}
	fmt.Printf("\n%d snippets (* builtin)\n", len(list))
	return nil
}

func cmdShow(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: snipctl show <snippet-id>")
	}
	snippets := do.MustInvoke[*service.SnippetService](injector)

	snippet, err := snippets.Get(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(snippet)
}

func cmdCreate(ctx context.Context, injector *do.RootScope, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	blockType := fs.String("type", "", "Block type (required)")
	name := fs.String("name", "", "Snippet name (defaults from the block type)")
	desc := fs.String("desc", "", "Snippet description")
	html := fs.String("html", "", "HTML payload stored under the content's html key")
	contentJSON := fs.String("content", "", "Raw JSON content payload (overrides -html)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	payload := map[string]any{}
	if *html != "" {
		payload["html"] = *html
	}
	if *contentJSON != "" {
		if err := json.Unmarshal([]byte(*contentJSON), &payload); err != nil {
			return fmt.Errorf("parse -content: %w", err)
		}
	}

	block := domain.Block{Type: *blockType, Content: payload}

	snippets := do.MustInvoke[*service.SnippetService](injector)
	snippet, err := snippets.Create(ctx, block, *name, *desc)
	if err != nil {
		return err
	}

	fmt.Printf("created %s (%s)\n", snippet.ID, snippet.Name)
	return nil
}

func cmdRename(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: snipctl rename <snippet-id> <new-name>")
	}
	snippets := do.MustInvoke[*service.SnippetService](injector)

	snippet, err := snippets.Rename(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("renamed %s to %q\n", snippet.ID, snippet.Name)
	return nil
}

func cmdTags(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: snipctl tags <snippet-id> <tag,tag,...>")
	}
	snippets := do.MustInvoke[*service.SnippetService](injector)

	snippet, err := snippets.UpdateTags(ctx, args[0], strings.Split(args[1], ","))
	if err != nil {
		return err
	}
	fmt.Printf("tags for %s: %s\n", snippet.ID, strings.Join(snippet.Tags, ", "))
	return nil
}

func cmdCategory(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: snipctl category <snippet-id> <layout|content|custom>")
	}
	snippets := do.MustInvoke[*service.SnippetService](injector)

	snippet, err := snippets.SetCategory(ctx, args[0], domain.Category(args[1]))
	if err != nil {
		return err
	}
	fmt.Printf("category for %s: %s\n", snippet.ID, snippet.Category)
	return nil
}

func cmdFavorite(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: snipctl favorite <snippet-id> <true|false>")
	}
	favorite, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("parse favorite flag: %w", err)
	}
	snippets := do.MustInvoke[*service.SnippetService](injector)

	snippet, err := snippets.SetFavorite(ctx, args[0], favorite)
	if err != nil {
		return err
	}
	fmt.Printf("favorite for %s: %v\n", snippet.ID, snippet.IsFavorite)
	return nil
}

func cmdUse(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: snipctl use <snippet-id>")
	}
	snippets := do.MustInvoke[*service.SnippetService](injector)

	snippet, err := snippets.IncrementUsage(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s used %d times\n", snippet.ID, snippet.UsageCount)
	return nil
}

func cmdDelete(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: snipctl delete <snippet-id>")
	}
	snippets := do.MustInvoke[*service.SnippetService](injector)

	if err := snippets.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func cmdExport(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: snipctl export <snippet-id>")
	}
	snippets := do.MustInvoke[*service.SnippetService](injector)

	snippet, err := snippets.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Print(export.SnippetMarkdown(snippet))
	return nil
}

func cmdRegister(ctx context.Context, injector *do.RootScope, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	templateID := fs.String("template", "", "Template id (required)")
	templateName := fs.String("template-name", "", "Human-readable template name")
	customJSON := fs.String("customizations", "", "JSON object of local overrides")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: snipctl register -template T [-template-name N] <snippet-id>")
	}

	var customizations map[string]any
	if *customJSON != "" {
		if err := json.Unmarshal([]byte(*customJSON), &customizations); err != nil {
			return fmt.Errorf("parse -customizations: %w", err)
		}
	}

	registry := do.MustInvoke[*service.RegistryService](injector)
	ref, err := registry.Register(ctx, *templateID, *templateName, fs.Arg(0), customizations)
	if err != nil {
		return err
	}
	fmt.Printf("registered %s -> %s (bound %s)\n",
		ref.TemplateID, ref.SnippetID, ref.BoundVersion.Format("2006-01-02 15:04:05"))
	return nil
}

func cmdRefs(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: snipctl refs <template-id>")
	}
	registry := do.MustInvoke[*service.RegistryService](injector)

	refs, err := registry.ListForTemplate(ctx, args[0])
	if err != nil {
		return err
	}
	for _, ref := range refs {
		lock := "unlocked"
		if ref.Locked {
			lock = "LOCKED"
		}
		fmt.Printf("%-28s %-10s bound %s\n",
			ref.SnippetID, lock, ref.BoundVersion.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("\n%d references\n", len(refs))
	return nil
}

func cmdUsing(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: snipctl using <snippet-id>")
	}
	registry := do.MustInvoke[*service.RegistryService](injector)

	templates, err := registry.TemplatesUsing(ctx, args[0])
	if err != nil {
		return err
	}
	for _, templateID := range templates {
		fmt.Println(templateID)
	}
	return nil
}

func cmdLock(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: snipctl lock <template-id> <snippet-id>")
	}
	propagation := do.MustInvoke[*service.PropagationService](injector)

	locked, err := propagation.ToggleLock(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	state := "unlocked"
	if locked {
		state = "locked"
	}
	fmt.Printf("%s/%s is now %s\n", args[0], args[1], state)
	return nil
}

func cmdPropose(ctx context.Context, injector *do.RootScope, args []string) error {
	fs := flag.NewFlagSet("propose", flag.ExitOnError)
	patchJSON := fs.String("patch", "", "JSON patch object (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *patchJSON == "" {
		return fmt.Errorf("usage: snipctl propose <snippet-id> -patch JSON")
	}

	var patch domain.Patch
	if err := json.Unmarshal([]byte(*patchJSON), &patch); err != nil {
		return fmt.Errorf("parse -patch: %w", err)
	}

	propagation := do.MustInvoke[*service.PropagationService](injector)
	impacts, err := propagation.ProposeUpdate(ctx, fs.Arg(0), patch)
	if err != nil {
		return err
	}

	if len(impacts) == 0 {
		fmt.Println("no templates affected")
		return nil
	}
	return printJSON(impacts)
}

func cmdApply(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: snipctl apply <change-id>")
	}
	propagation := do.MustInvoke[*service.PropagationService](injector)

	change, err := propagation.Apply(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("change %s: %s\n", change.ID, change.Status)
	for _, outcome := range change.Outcomes {
		if outcome.Success {
			fmt.Printf("  %-24s ok\n", outcome.TemplateID)
		} else {
			fmt.Printf("  %-24s FAILED: %s\n", outcome.TemplateID, outcome.Reason)
		}
	}
	return nil
}

func cmdChanges(ctx context.Context, injector *do.RootScope) error {
	propagation := do.MustInvoke[*service.PropagationService](injector)

	changes, err := propagation.ListChanges(ctx)
	if err != nil {
		return err
	}
	for _, c := range changes {
		fmt.Printf("%-28s %-8s %-28s templates=%d %s\n",
			c.ID, c.Status, c.TargetID, len(c.AffectedTemplates),
			c.Timestamp.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("\n%d changes\n", len(changes))
	return nil
}

func cmdChange(ctx context.Context, injector *do.RootScope, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: snipctl change <change-id>")
	}
	propagation := do.MustInvoke[*service.PropagationService](injector)

	change, err := propagation.GetChange(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(change)
}

func cmdSearch(ctx context.Context, injector *do.RootScope, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	category := fs.String("category", "", "Filter by category")
	tag := fs.String("tag", "", "Filter by tag slug")
	favorites := fs.Bool("favorites", false, "Only favorites")
	limit := fs.Int("limit", 20, "Maximum hits")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := search.DefaultParams()
	params.Query = strings.Join(fs.Args(), " ")
	params.Limit = *limit
	params.FavoritesOnly = *favorites
	if *category != "" {
		params.Categories = []string{*category}
	}
	if *tag != "" {
		params.Tags = []string{*tag}
	}

	searchService := do.MustInvoke[*service.SearchService](injector)
	result, err := searchService.Search(ctx, params)
	if err != nil {
		return err
	}

	for _, hit := range result.Hits {
		fmt.Printf("%-28s %-24s %-8s score=%.2f\n", hit.ID, hit.Name, hit.Category, hit.Score)
	}
	fmt.Printf("\n%d of %d hits in %dms\n", len(result.Hits), result.Total, result.TookMs)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
