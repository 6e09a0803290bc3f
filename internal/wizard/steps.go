package wizard

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	StepUpload   = 1
	StepPrompt   = 2
	StepGenerate = 3

	TotalSteps = 3
)

var stepTitles = [TotalSteps]string{"Upload Data", "Edit Prompt", "Generate Videos"}

var reStepProject = regexp.MustCompile(`step([123])/([^/?#]+)`)

// CurrentStep derives the wizard step from a navigation path. Anything that
// does not name a step is step 1.
func CurrentStep(path string) int {
	switch {
	case strings.Contains(path, "step1"):
		return StepUpload
	case strings.Contains(path, "step2"):
		return StepPrompt
	case strings.Contains(path, "step3"):
		return StepGenerate
	default:
		return StepUpload
	}
}

// Completed marks each step marker; marker i is lit when i < current.
func Completed(current int) []bool {
	marks := make([]bool, TotalSteps)
	for i := range marks {
		marks[i] = i < current
	}
	return marks
}

func Title(step int) string {
	if step < 1 || step > TotalSteps {
		return ""
	}
	return stepTitles[step-1]
}

// StepPath is the navigation target for a step. Step 1 is not project scoped.
func StepPath(step int, projectID string) string {
	if step <= StepUpload {
		return "/step1/"
	}
	return fmt.Sprintf("/step%d/%s/", step, strings.TrimSpace(projectID))
}

// NextPath is where "next" leads from the given path.
func NextPath(path, projectID string) string {
	step := CurrentStep(path)
	if step >= TotalSteps {
		return StepPath(TotalSteps, projectID)
	}
	return StepPath(step+1, projectID)
}

// ProjectIDFromPath extracts the project id from /stepN/{id}/ paths.
func ProjectIDFromPath(path string) (string, bool) {
	m := reStepProject.FindStringSubmatch(path)
	if len(m) < 3 || strings.TrimSpace(m[2]) == "" {
		return "", false
	}
	return m[2], true
}
