package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("rita@corp.test"))
	assert.Error(t, ValidateEmail("rita"))
	assert.Error(t, ValidateEmail("rita@corp"))
}

func TestValidateCurrencyCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"sgd", "SGD", false},
		{" USD ", "USD", false},
		{"DOLLARS", "", true},
		{"ZZZ", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateCurrencyCode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Laptop 14in", SanitizeString(" Laptop\x00 14in\n"))
}
