package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetachContext_SurvivesCallerCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, parent.Err())

	detached, done := detachContext(parent)
	defer done()

	assert.NoError(t, detached.Err())
	_, hasDeadline := detached.Deadline()
	assert.True(t, hasDeadline)
}

func TestDetachContext_KeepsValues(t *testing.T) {
	type ctxKey struct{}
	parent := context.WithValue(context.Background(), ctxKey{}, "v")

	detached, done := detachContext(parent)
	defer done()

	assert.Equal(t, "v", detached.Value(ctxKey{}))
}
