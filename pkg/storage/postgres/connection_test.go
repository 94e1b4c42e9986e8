package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single URL",
			input:    "postgres://replica1:5432/orgsearch",
			expected: []string{"postgres://replica1:5432/orgsearch"},
		},
		{
			name:  "multiple URLs",
			input: "postgres://replica1:5432/orgsearch,postgres://replica2:5432/orgsearch",
			expected: []string{
				"postgres://replica1:5432/orgsearch",
				"postgres://replica2:5432/orgsearch",
			},
		},
		{
			name:  "whitespace and empty entries trimmed",
			input: " postgres://replica1:5432/orgsearch , ,postgres://replica2:5432/orgsearch ",
			expected: []string{
				"postgres://replica1:5432/orgsearch",
				"postgres://replica2:5432/orgsearch",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestNewConnectionManager_UnreachablePrimary(t *testing.T) {
	_, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL: "postgres://localhost:1/orgsearch?sslmode=disable",
		Timeout:    100 * time.Millisecond,
	})
	assert.Error(t, err)
}
