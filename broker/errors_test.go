package broker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("alpaca: %w", ErrNotFound)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsRejection(wrapped))

	rej := fmt.Errorf("submit: %w", &RejectionError{Reason: "pattern day trading protection"})
	assert.True(t, IsRejection(rej))
	assert.False(t, IsNotFound(rej))

	plain := errors.New("connection reset")
	assert.False(t, IsNotFound(plain))
	assert.False(t, IsRejection(plain))
	assert.False(t, IsNotFound(nil))
}
