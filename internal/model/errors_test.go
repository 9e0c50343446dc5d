package model

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	err := fmt.Errorf("recommend user 7: %w", newError(PipeFailure, "write request", syscall.EPIPE))

	assert.Equal(t, PipeFailure, KindOf(err))
	assert.True(t, IsModelInferenceError(err))
	assert.ErrorIs(t, err, syscall.EPIPE)
	assert.Contains(t, err.Error(), "model pipe_failure: write request")
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("random error")

	assert.Equal(t, KindUnknown, KindOf(err))
	assert.False(t, IsModelInferenceError(err))
	assert.False(t, IsModelInferenceError(nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "spawn_failure", SpawnFailure.String())
	assert.Equal(t, "protocol_failure", ProtocolFailure.String())
	assert.Equal(t, "timeout_failure", TimeoutFailure.String())
	assert.Equal(t, "unknown", Kind(42).String())
	assert.Equal(t, "AwaitingExit", StateAwaitingExit.String())
}
