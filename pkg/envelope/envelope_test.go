package envelope

import (
	"testing"

	"github.com/qworkerhq/qworker/internal/codec"
	"github.com/stretchr/testify/assert"
)

func TestFromRequestClassifiesKnownKinds(t *testing.T) {
	tests := []struct {
		kind string
		want Kind
	}{
		{"ping", KindPing},
		{"func", KindFunc},
		{"queue", KindQueue},
		{"domain", KindDomain},
	}

	for _, tt := range tests {
		req := &codec.Request{Kind: tt.kind}
		env := FromRequest(req, "c-1")
		assert.Equal(t, tt.want, env.Kind)
		assert.True(t, env.Valid())
	}
}

func TestFromRequestRejectsUnknownKind(t *testing.T) {
	req := &codec.Request{Kind: "delete-everything"}
	env := FromRequest(req, "c-1")
	assert.False(t, env.Valid())
}

func TestFromRequestCarriesCorrelationID(t *testing.T) {
	env := FromRequest(&codec.Request{Kind: "func"}, "c-42")
	assert.Equal(t, "c-42", env.CorrelationID)
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Program: "billing", Task: "charge"}
	assert.Contains(t, err.Error(), "billing/charge")
}
