package eino

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowProvider(t *testing.T) {
	ctx := WithWorkflowProvider(context.Background(), "fable_generate", " openai ")
	assert.Equal(t, "fable_generate", WorkflowFromContext(ctx))
	assert.Equal(t, "openai", ProviderFromContext(ctx))

	blank := WithWorkflowProvider(context.Background(), " ", "")
	assert.Equal(t, "unknown", WorkflowFromContext(blank))
	assert.Equal(t, "unknown", ProviderFromContext(blank))
}
