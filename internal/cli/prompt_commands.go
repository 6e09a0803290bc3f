package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"veo-wizard/internal/model"
	"veo-wizard/internal/prompt"
	"veo-wizard/internal/wizard"
)

func runPrompt(args []string) error {
	if len(args) == 0 {
		printPromptUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runPromptShow(args[1:])
	case "save":
		return runPromptSave(args[1:])
	case "suggest":
		return runPromptSuggest(args[1:])
	case "insert":
		return runPromptInsert(args[1:])
	case "next":
		return runPromptNext(args[1:])
	case "help", "-h", "--help":
		printPromptUsage()
		return nil
	default:
		printPromptUsage()
		return fmt.Errorf("unknown prompt subcommand %q", args[0])
	}
}

// loadPromptPage reads the editor state and seeds an empty template.
func loadPromptPage(ctx context.Context, sess *session, projectID string) (model.PromptPage, error) {
	page, err := sess.client.PromptPage(ctx, projectID)
	if err != nil {
		return model.PromptPage{}, err
	}
	if strings.TrimSpace(page.Template) == "" {
		page.Template = prompt.DefaultTemplate(page.Fields)
	}
	return page, nil
}

func warnUnknownPlaceholders(template string, fields []string) {
	if unknown := prompt.UnknownPlaceholders(template, fields); len(unknown) > 0 {
		fmt.Printf("warning: placeholders not in the data file: %s\n", strings.Join(placeholderBadges(unknown), " "))
	}
}

func runPromptShow(args []string) error {
	fs := flag.NewFlagSet("prompt show", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	backend := addBackendFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := openSession(ctx, backend)
	if err != nil {
		return err
	}
	defer sess.close()

	page, err := loadPromptPage(ctx, sess, projectID)
	if err != nil {
		return err
	}
	unknown := prompt.UnknownPlaceholders(page.Template, page.Fields)
	if *jsonOut {
		return printJSON(map[string]any{
			"project_id":           page.ProjectID,
			"template":             page.Template,
			"fields":               page.Fields,
			"unknown_placeholders": unknown,
		})
	}

	fmt.Printf("project_id: %s\n", page.ProjectID)
	fmt.Printf("fields: %s\n", strings.Join(placeholderBadges(page.Fields), " "))
	fmt.Println("template:")
	fmt.Println(page.Template)
	warnUnknownPlaceholders(page.Template, page.Fields)
	return nil
}

func runPromptSave(args []string) error {
	fs := flag.NewFlagSet("prompt save", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	template := fs.String("template", "", "template text")
	templateFile := fs.String("template-file", "", "read template from file (- for stdin)")
	backend := addBackendFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}
	text, ok, err := readTemplateArg(*template, *templateFile)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("set --template or --template-file")
	}

	ctx := context.Background()
	sess, err := openSession(ctx, backend)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.client.SavePrompt(ctx, projectID, text); err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{"project_id": projectID, "saved": true})
	}
	fmt.Println("✓ Saved!")
	return nil
}

func runPromptSuggest(args []string) error {
	fs := flag.NewFlagSet("prompt suggest", flag.ContinueOnError)
	project := fs.String("project", "", "project id (template and fields come from its page)")
	template := fs.String("template", "", "template text (default: the saved template)")
	templateFile := fs.String("template-file", "", "read template from file (- for stdin)")
	fieldsRaw := fs.String("fields", "", "comma-separated fields (default: the project's fields)")
	apply := fs.Bool("apply", false, "save the suggestion as the project's template")
	backend := addBackendFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	text, haveText, err := readTemplateArg(*template, *templateFile)
	if err != nil {
		return err
	}
	fields := splitFields(*fieldsRaw)
	projectID := strings.TrimSpace(*project)
	if *apply && projectID == "" {
		return errors.New("--apply needs --project")
	}
	if projectID == "" && (!haveText || len(fields) == 0) {
		return errors.New("set --project, or both --template and --fields")
	}

	ctx := context.Background()
	sess, err := openSession(ctx, backend)
	if err != nil {
		return err
	}
	defer sess.close()

	if projectID != "" && (!haveText || len(fields) == 0) {
		page, err := loadPromptPage(ctx, sess, projectID)
		if err != nil {
			return err
		}
		if !haveText {
			text = page.Template
		}
		if len(fields) == 0 {
			fields = page.Fields
		}
	}

	suggestion, err := sess.client.SuggestPrompt(ctx, text, fields)
	if err != nil {
		return err
	}
	if *apply {
		if err := sess.client.SavePrompt(ctx, projectID, suggestion); err != nil {
			return err
		}
	}
	if *jsonOut {
		return printJSON(map[string]any{"suggested_prompt": suggestion, "applied": *apply})
	}
	fmt.Println(suggestion)
	if *apply {
		fmt.Println("✓ Saved!")
	}
	return nil
}

func runPromptInsert(args []string) error {
	fs := flag.NewFlagSet("prompt insert", flag.ContinueOnError)
	template := fs.String("template", "", "template text")
	templateFile := fs.String("template-file", "", "read template from file (- for stdin)")
	field := fs.String("field", "", "field name to insert")
	at := fs.Int("at", -1, "cursor position in characters (default: end)")
	selEnd := fs.Int("sel-end", -1, "end of the selection to replace (default: no selection)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*field) == "" {
		return errors.New("--field is required")
	}
	text, _, err := readTemplateArg(*template, *templateFile)
	if err != nil {
		return err
	}

	start := *at
	if start < 0 {
		start = len([]rune(text))
	}
	end := *selEnd
	if end < 0 {
		end = start
	}
	out, cursor := prompt.InsertField(text, start, end, strings.TrimSpace(*field))
	if *jsonOut {
		return printJSON(map[string]any{"template": out, "cursor": cursor})
	}
	fmt.Println(out)
	return nil
}

func runPromptNext(args []string) error {
	fs := flag.NewFlagSet("prompt next", flag.ContinueOnError)
	project := fs.String("project", "", "project id")
	template := fs.String("template", "", "template text (default: the page's current template)")
	templateFile := fs.String("template-file", "", "read template from file (- for stdin)")
	backend := addBackendFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	projectID, err := requireProject(*project)
	if err != nil {
		return err
	}
	text, haveText, err := readTemplateArg(*template, *templateFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := openSession(ctx, backend)
	if err != nil {
		return err
	}
	defer sess.close()

	if !haveText {
		page, err := loadPromptPage(ctx, sess, projectID)
		if err != nil {
			return err
		}
		text = page.Template
	}
	next, err := saveAndAdvance(ctx, sess, projectID, text)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{"project_id": projectID, "next": next})
	}
	fmt.Printf("next: %s (veo-wizard generate --project %s)\n", next, projectID)
	return nil
}

// saveAndAdvance saves the template and only then yields the step 3 path.
func saveAndAdvance(ctx context.Context, sess *session, projectID, template string) (string, error) {
	if err := sess.client.SavePrompt(ctx, projectID, template); err != nil {
		return "", err
	}
	return wizard.StepPath(wizard.StepGenerate, projectID), nil
}

func splitFields(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func printPromptUsage() {
	fmt.Println("prompt commands:")
	fmt.Println("  prompt show --project <id>")
	fmt.Println("  prompt save --project <id> --template <text> | --template-file <path|->")
	fmt.Println("  prompt suggest --project <id> [--template <text>] [--fields a,b] [--apply]")
	fmt.Println("  prompt insert --template <text> --field <name> [--at N] [--sel-end M]")
	fmt.Println("  prompt next --project <id> [--template <text>]")
}
