// Package mt adapts chat-completion LLM APIs to pipeline.MTProvider, one
// single-turn translation call per committed segment in place of the
// teacher's open-ended multi-turn orchestrator.LLMProvider.Complete.
package mt

import (
	"fmt"

	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

func systemPrompt(source, target pipeline.Language) string {
	from := "the source language"
	if source != "" {
		from = string(source)
	}
	return fmt.Sprintf("You are a real-time speech translator. Translate the given text from %s to %s. "+
		"Output only the translation, with no quotes, labels, or commentary. Preserve the register and tone of the source.", from, target)
}
