package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		failures int
	}{
		{"strong password", "Rosy#Cheeks9", 0},
		{"too short", "Ab1!", 1},
		{"no uppercase", "rosy#cheeks9", 1},
		{"no lowercase", "ROSY#CHEEKS9", 1},
		{"no digit", "Rosy#Cheeks", 1},
		{"no special", "RosyCheeks9", 1},
		{"empty", "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.failures == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			pwErr, ok := err.(*PasswordError)
			require.True(t, ok, "Error should be of type PasswordError")
			assert.Equal(t, "WEAK_PASSWORD", pwErr.Code)
			assert.Len(t, pwErr.Failures, tt.failures)
		})
	}
}

func TestPasswordStrength(t *testing.T) {
	assert.Equal(t, 0, PasswordStrength(""))
	assert.Equal(t, 1, PasswordStrength("abc"))
	assert.Equal(t, 3, PasswordStrength("abcdefgh1"))
	assert.Equal(t, 5, PasswordStrength("Rosy#Cheeks9"))
}

func TestSpecialCharacterSet(t *testing.T) {
	for _, r := range PasswordSpecialChars {
		assert.NoError(t, ValidatePassword("Abcdefg1"+string(r)), "special %q", r)
	}
	assert.Error(t, ValidatePassword("Abcdefg1_"), "underscore is not in the special set")
}
