package llm

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/pkg/utils"
)

// EchoCompleter is a local fallback used when no completion service is
// configured. It returns the retrieved context instead of a generated answer,
// so retrieval can be exercised without an API key.
type EchoCompleter struct{}

// NewEchoCompleter returns a completer that echoes the retrieved context.
func NewEchoCompleter() *EchoCompleter {
	return &EchoCompleter{}
}

// Complete returns the context block preceded by a notice that no completion
// service is configured.
func (c *EchoCompleter) Complete(ctx context.Context, contextBlock, question string) (string, error) {
	return fmt.Sprintf("No completion service is configured. The most relevant context found was:\n\n%s",
		utils.Truncate(contextBlock, 2000)), nil
}
