package handler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", func(ctx context.Context, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
		return args, nil
	})

	fn, ok := r.Lookup("echo")
	require.True(t, ok)
	require.NotNil(t, fn)
}

func TestLookupUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegisterReplacesExisting(t *testing.T) {
	r := NewRegistry()
	r.Register("h", func(ctx context.Context, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
		return 1, nil
	})
	r.Register("h", func(ctx context.Context, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
		return 2, nil
	})

	fn, ok := r.Lookup("h")
	require.True(t, ok)
	v, err := fn(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestIDs(t *testing.T) {
	r := NewRegistry()
	r.Register("a", nil)
	r.Register("b", nil)
	assert.ElementsMatch(t, []string{"a", "b"}, r.IDs())
}

func TestErrUnknownHandler(t *testing.T) {
	err := &ErrUnknownHandler{HandlerID: "ghost"}
	assert.Contains(t, err.Error(), "ghost")
}
