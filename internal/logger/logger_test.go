package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFromContextFallsBackToGlobal(t *testing.T) {
	l := FromContext(context.Background())
	assert.Same(t, &Logger, l)
}

func TestFromContextReturnsInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	injected := zerolog.New(&buf)
	ctx := injected.WithContext(context.Background())

	FromContext(ctx).Info().Str("request_id", "req-1").Msg("hello")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}
