package cli

import (
	"fmt"
	"log"
	"os"
)

func Run(args []string) error {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)

	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "wizard":
		return runWizard(args[1:])
	case "upload":
		return runUpload(args[1:])
	case "prompt":
		return runPrompt(args[1:])
	case "generate":
		return runGenerate(args[1:])
	case "status":
		return runStatus(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "mock-server":
		return runMockServer(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("veo-wizard: terminal client for the upload -> prompt -> video generation wizard")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  veo-wizard mock-server --addr 127.0.0.1:8000   (optional local backend)")
	fmt.Println("  veo-wizard wizard")
	fmt.Println()
	fmt.Println("Wizard Commands:")
	fmt.Println("  wizard    interactive wizard (upload, prompt editor, generation)")
	fmt.Println("  upload    step 1: upload a CSV/Excel data file and show its columns")
	fmt.Println("  prompt    step 2: show|save|suggest|insert|next for the prompt template")
	fmt.Println("  generate  step 3: start generation and poll item status until done")
	fmt.Println("  status    one-shot card status for a project or a single item")
	fmt.Println()
	fmt.Println("Other Commands:")
	fmt.Println("  settings     show/update client settings")
	fmt.Println("  mock-server  run a local stand-in backend for trying the wizard")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - VEO_WIZARD_* environment variables and .env override the settings file")
}
