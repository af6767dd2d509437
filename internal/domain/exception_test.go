package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatus_Validation(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
	}{
		{"pending is valid", "pending", true},
		{"dead_lettered is valid", "dead_lettered", true},
		{"mixed case is normalized", "Running", true},
		{"empty is invalid", "", false},
		{"random is invalid", "not-a-status", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStatus(tt.input)
			if tt.wantValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewKind_Validation(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
	}{
		{"one_time is valid", "one_time", true},
		{"recurring is valid", "recurring", true},
		{"polling is valid", "polling", true},
		{"empty is invalid", "", false},
		{"random is invalid", "scheduled", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKind(tt.input)
			if tt.wantValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPayloadValidate(t *testing.T) {
	assert.NoError(t, Payload{Command: "/bin/true"}.Validate())
	assert.ErrorIs(t, Payload{}.Validate(), ErrInvalidPayload)
}

func TestPayloadClone_IsIndependent(t *testing.T) {
	original := Payload{Command: "/bin/echo", Args: []string{"hi"}}
	clone := original.Clone()
	clone.Args[0] = "mutated"

	assert.Equal(t, "hi", original.Args[0])
}
