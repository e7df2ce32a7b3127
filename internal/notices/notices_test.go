package notices

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardKeepsNewestFirst(t *testing.T) {
	b := NewBoard(3, nil)
	ctx := context.Background()
	for _, msg := range []string{"one", "two", "three", "four"} {
		b.Notify(ctx, Notice{Message: msg})
	}

	recent := b.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "four", recent[0].Message)
	assert.Equal(t, "two", recent[2].Message)
	assert.Equal(t, LevelInfo, recent[0].Level)
	assert.False(t, recent[0].At.IsZero())
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Agent is offline", FailureMessage(pkgerrors.New(pkgerrors.CodeDependency, "Agent is offline")))
	assert.Equal(t, genericFailure, FailureMessage(errors.New("dial tcp: refused")))
	assert.Equal(t, "", FailureMessage(nil))

	n := Failure("ord-1", errors.New("x"))
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, "ord-1", n.OrderID)
	assert.True(t, n.Retryable)

	illegal := Failure("ord-1", pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move cancelled to assigned"))
	assert.False(t, illegal.Retryable)
}
