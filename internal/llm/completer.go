// Package llm provides the gateway to the external completion service.
package llm

import (
	"context"
	"fmt"
)

// Completer generates an answer to a question grounded on a context block.
// Implementations wrap service failures with models.ErrCompletion.
type Completer interface {
	Complete(ctx context.Context, contextBlock, question string) (string, error)
}

// answerPrompt is the instruction wrapped around the retrieved context and question.
const answerPrompt = `You are a helpful AI assistant that answers questions based on the provided context.
Context:
%s

Question:
%s

Answer:
`

// BuildPrompt renders the completion prompt for a context block and question.
func BuildPrompt(contextBlock, question string) string {
	return fmt.Sprintf(answerPrompt, contextBlock, question)
}
