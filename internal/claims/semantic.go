package claims

import (
	"context"
	"fmt"
	"strings"

	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/roles"
)

// TaskInvoker is the slice of the inference gateway the matcher needs.
type TaskInvoker interface {
	Invoke(ctx context.Context, d models.TaskDescriptor) (models.TaskResult, error)
}

// LLMMatcher implements SemanticMatcher by delegating to a
// text-generation call with a strict two-token answer contract. Anything
// other than an explicit SUPPORTED counts as unsupported.
type LLMMatcher struct {
	invoker TaskInvoker
}

// NewLLMMatcher builds the default semantic matcher on the fact-checker
// role profile.
func NewLLMMatcher(invoker TaskInvoker) *LLMMatcher {
	return &LLMMatcher{invoker: invoker}
}

const maxSourceExcerpt = 6000

// Supports asks the model whether the source states the claim.
func (m *LLMMatcher) Supports(ctx context.Context, claim models.Claim, source string) (bool, error) {
	if len(source) > maxSourceExcerpt {
		runes := []rune(source)
		if len(runes) > maxSourceExcerpt {
			source = string(runes[:maxSourceExcerpt])
		}
	}

	prompt := fmt.Sprintf(`You are a strict fact checker. Answer with exactly one word.

Claim: %s

Source excerpt:
%s

Does the source explicitly state or directly entail the claim? Answer SUPPORTED or UNSUPPORTED.`,
		claim.Sentence, source)

	tmpl, err := roles.Lookup(roles.FactChecker)
	if err != nil {
		return false, err
	}

	result, err := m.invoker.Invoke(ctx, tmpl.Descriptor(prompt))
	if err != nil {
		return false, err
	}

	answer := strings.ToUpper(strings.TrimSpace(result.Text))
	return strings.HasPrefix(answer, "SUPPORTED"), nil
}
