package observers

import (
	"context"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllCallbacksHandlesModelEvents(t *testing.T) {
	h := NewAllCallbacks()
	require.NotNil(t, h)

	info := &einocb.RunInfo{Name: "plan", Type: "Fake", Component: components.ComponentOfChatModel}
	ctx := context.Background()
	assert.NotPanics(t, func() {
		ctx = h.OnStart(ctx, info, &model.CallbackInput{Messages: []*schema.Message{schema.UserMessage("hi")}})
		ctx = h.OnEnd(ctx, info, &model.CallbackOutput{Message: schema.AssistantMessage("hello", nil)})
		_ = h.OnError(ctx, info, assert.AnError)
	})
}

func TestLastUserContent(t *testing.T) {
	msgs := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage(" first "),
		nil,
		schema.AssistantMessage("reply", nil),
	}
	assert.Equal(t, "first", lastUserContent(msgs))
	assert.Empty(t, lastUserContent(nil))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", preview("abc", 5))
	assert.Equal(t, "ab...", preview("abcdef", 2))
}
