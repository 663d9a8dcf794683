package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/ginext"
)

func TestNewAppliesConfiguredTimeouts(t *testing.T) {
	s := New(":8080", ginext.New(), Timeouts{
		Read:       2 * time.Second,
		ReadHeader: time.Second,
		Write:      3 * time.Second,
		Idle:       30 * time.Second,
	})

	assert.Equal(t, ":8080", s.Addr)
	assert.Equal(t, 2*time.Second, s.ReadTimeout)
	assert.Equal(t, time.Second, s.ReadHeaderTimeout)
	assert.Equal(t, 3*time.Second, s.WriteTimeout)
	assert.Equal(t, 30*time.Second, s.IdleTimeout)
}

func TestNewDefaultsUnsetTimeouts(t *testing.T) {
	s := New(":8080", ginext.New(), Timeouts{Write: 3 * time.Second})

	assert.Equal(t, defaultReadTimeout, s.ReadTimeout)
	assert.Equal(t, defaultReadHeaderTimeout, s.ReadHeaderTimeout)
	assert.Equal(t, 3*time.Second, s.WriteTimeout)
	assert.Equal(t, defaultIdleTimeout, s.IdleTimeout)
}
