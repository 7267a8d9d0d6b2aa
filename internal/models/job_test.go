package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"queued to processing", JobStatusQueued, JobStatusProcessing, true},
		{"queued to error", JobStatusQueued, JobStatusError, true},
		{"queued to done skips processing", JobStatusQueued, JobStatusDone, false},
		{"processing to done", JobStatusProcessing, JobStatusDone, true},
		{"processing to error", JobStatusProcessing, JobStatusError, true},
		{"processing back to queued", JobStatusProcessing, JobStatusQueued, false},
		{"done is terminal", JobStatusDone, JobStatusProcessing, false},
		{"done to error", JobStatusDone, JobStatusError, false},
		{"error is terminal", JobStatusError, JobStatusProcessing, false},
		{"error to done", JobStatusError, JobStatusDone, false},
		{"self transition", JobStatusProcessing, JobStatusProcessing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTransition(tt.from, tt.to))
		})
	}
}

func TestTransitionSources(t *testing.T) {
	tests := []struct {
		name string
		to   string
		want []string
	}{
		{"queued only from itself", JobStatusQueued, []string{JobStatusQueued}},
		{"processing never from terminal", JobStatusProcessing, []string{JobStatusQueued, JobStatusProcessing}},
		{"done only from processing", JobStatusDone, []string{JobStatusProcessing}},
		{"error from any active status", JobStatusError, []string{JobStatusQueued, JobStatusProcessing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TransitionSources(tt.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, Terminal(JobStatusQueued))
	assert.False(t, Terminal(JobStatusProcessing))
	assert.True(t, Terminal(JobStatusDone))
	assert.True(t, Terminal(JobStatusError))
}
