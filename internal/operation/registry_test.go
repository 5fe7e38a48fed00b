package operation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/phrazzld/scry-queue/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Types())

	r.Register("noop", func(payload json.RawMessage) (task.Operation, error) {
		return func(ctx context.Context, args ...any) (any, error) {
			return "noop", nil
		}, nil
	})

	_, ok := r.Lookup("noop")
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	op, err := r.Build("noop", nil)
	require.NoError(t, err)
	v, err := op(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "noop", v)
}

func TestRegistry_BuildUnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Build("missing", nil)
	assert.ErrorIs(t, err, task.ErrUnknownOperationType)
	assert.Contains(t, err.Error(), "missing")
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(nil)
	assert.Equal(t, []string{TypeDelay, TypeHTTPRequest}, r.Types())
}

func TestRegistry_BuildInvalidPayload(t *testing.T) {
	r := NewDefaultRegistry(nil)

	testCases := []struct {
		name     string
		opType   string
		payload  string
		contains string
	}{
		{"malformed json", TypeDelay, `{"duration_ms":`, "decode payload"},
		{"negative delay", TypeDelay, `{"duration_ms":-1}`, "validation failed"},
		{"missing url", TypeHTTPRequest, `{"method":"GET"}`, "validation failed"},
		{"bad method", TypeHTTPRequest, `{"url":"http://example.com","method":"BREW"}`, "validation failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Build(tc.opType, json.RawMessage(tc.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, task.ErrInvalidRequest)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}
