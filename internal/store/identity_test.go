package store

import (
	"testing"

	"github.com/YKarmar/ApplyTracker/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"2024-01-01", "2024-01-01"},
		{"April 15, 2025", "2025-04-15"},
		{"Apr 15, 2025", "2025-04-15"},
		{"15 April 2025", "2025-04-15"},
		{"04/15/2025", "2025-04-15"},
		{"2025/04/15", "2025-04-15"},
		{"  2024-01-01  ", "2024-01-01"},
		{"Not provided", "Not provided"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDate(tt.input))
		})
	}
}

func TestIdentityOf(t *testing.T) {
	base := types.JobApplication{Company: "Acme", Title: "Engineer", Date: "2024-01-01"}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, IdentityOf(base), IdentityOf(base))
		assert.Len(t, IdentityOf(base), 16)
	})

	t.Run("ignores case, spacing and date format", func(t *testing.T) {
		other := types.JobApplication{Company: "  ACME ", Title: "engineer", Date: "January 1, 2024"}
		assert.Equal(t, IdentityOf(base), IdentityOf(other))
	})

	t.Run("ignores non-identity fields", func(t *testing.T) {
		other := base
		other.Research = "some research"
		other.Status = types.StatusViewed
		other.URL = "https://www.linkedin.com/jobs/view/1"
		assert.Equal(t, IdentityOf(base), IdentityOf(other))
	})

	t.Run("differs by title", func(t *testing.T) {
		other := base
		other.Title = "Manager"
		assert.NotEqual(t, IdentityOf(base), IdentityOf(other))
	})

	t.Run("differs by date", func(t *testing.T) {
		other := base
		other.Date = "2024-01-02"
		assert.NotEqual(t, IdentityOf(base), IdentityOf(other))
	})

	t.Run("field boundaries are not ambiguous", func(t *testing.T) {
		a := types.JobApplication{Company: "Acme Eng", Title: "ineer", Date: "2024-01-01"}
		b := types.JobApplication{Company: "Acme", Title: "Engineer", Date: "2024-01-01"}
		assert.NotEqual(t, IdentityOf(a), IdentityOf(b))
	})
}
