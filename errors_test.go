package matrix

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors(t *testing.T) {
	runtimeErr := NewRuntimeError(errors.New("tree not found"))
	assert.True(t, IsRuntimeError(runtimeErr))
	assert.True(t, IsRuntimeError(fmt.Errorf("wrapped: %w", runtimeErr)))
	assert.False(t, IsTestFailureError(runtimeErr))
	assert.Equal(t, "runtime error: tree not found", runtimeErr.Error())
	assert.EqualError(t, errors.Unwrap(runtimeErr), "tree not found")

	failure := NewTestFailureError("opt=-O2: divides")
	assert.True(t, IsTestFailureError(failure))
	assert.False(t, IsRuntimeError(failure))
	assert.Equal(t, "test failure: opt=-O2: divides", failure.Error())

	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsTestFailureError(nil))
}
