package errorcodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "N7", CVVInvalid.CodeOnly())
	assert.Equal(t, "55: Incorrect PIN", IncorrectPIN.Error())
	assert.True(t, Approved.IsApproved())
	assert.False(t, Unrecognized.IsApproved())
}

func TestLookup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, IncorrectPIN, Lookup("55"))
	assert.Equal(t, SystemMalfunc, Lookup("96"))
	assert.Equal(t, ResponseCode{Code: "12"}, Lookup("12"))
	assert.Equal(t, ResponseCode{Code: "Z9"}, Lookup("Z9"))
}
