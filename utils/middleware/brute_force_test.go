package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockoutForIsProgressive(t *testing.T) {
	assert.Zero(t, lockoutFor(1))
	assert.Zero(t, lockoutFor(4))
	assert.Equal(t, 2*time.Minute, lockoutFor(5))
	assert.Equal(t, time.Hour, lockoutFor(10))
	assert.Equal(t, 24*time.Hour, lockoutFor(30))
}
