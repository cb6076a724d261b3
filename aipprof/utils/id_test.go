package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProfileID(t *testing.T) {
	a, b := NewProfileID(), NewProfileID()
	assert.Len(t, a, 32)
	assert.Regexp(t, "^[0-9a-f]+$", a)
	assert.NotEqual(t, a, b)
}
