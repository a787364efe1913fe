package appErrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/ngo-backoffice/internal/errors"
)

func TestLedgerErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("broadcast: %w", appErrors.NewLedger("create", cause))

	assert.True(t, appErrors.IsLedger(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "broadcast: message ledger create: connection refused", err.Error())
}

func TestValidationErrorMessage(t *testing.T) {
	err := appErrors.NewValidation("subject", "must be at most 200 characters")
	assert.True(t, appErrors.IsValidation(err))
	assert.False(t, appErrors.IsNotFound(err))
	assert.Equal(t, "subject must be at most 200 characters", err.Error())
}

func TestNotFound(t *testing.T) {
	err := appErrors.NewNotFound("message", 42)
	assert.True(t, appErrors.IsNotFound(err))
	assert.Equal(t, "message 42 not found", err.Error())
}
