package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobApplication_HasResearch(t *testing.T) {
	testCases := []struct {
		name     string
		research string
		want     bool
	}{
		{name: "empty", research: "", want: false},
		{name: "whitespace only", research: " \t\n ", want: false},
		{name: "text", research: "Acme builds anvils.", want: true},
		{name: "padded text", research: "  Acme  ", want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, JobApplication{Research: tc.research}.HasResearch())
		})
	}
}
