package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAnsweredBy(t *testing.T) {
	tests := []struct {
		raw  string
		want AnsweredBy
	}{
		{"human", AnsweredByHuman},
		{"machine_start", AnsweredByMachineStart},
		{"machine_end_beep", AnsweredByMachineEndBeep},
		{"machine_end_silence", AnsweredByMachineEndSilence},
		{"machine_end_other", AnsweredByMachineEndOther},
		{"fax", AnsweredByFax},
		{"unknown", AnsweredByUnknown},
		{"", AnsweredByUnknown},
		{"robot_overlord", AnsweredByUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAnsweredBy(tt.raw))
		})
	}
}

func TestAnsweredByIsMachine(t *testing.T) {
	assert.False(t, AnsweredByHuman.IsMachine())
	assert.False(t, AnsweredByUnknown.IsMachine())
	assert.True(t, AnsweredByMachineStart.IsMachine())
	assert.True(t, AnsweredByMachineEndBeep.IsMachine())
	assert.True(t, AnsweredByMachineEndSilence.IsMachine())
	assert.True(t, AnsweredByMachineEndOther.IsMachine())
	assert.True(t, AnsweredByFax.IsMachine())
}

func TestCallStatusShouldFallbackToSMS(t *testing.T) {
	assert.True(t, StatusNoAnswer.ShouldFallbackToSMS())
	assert.True(t, StatusBusy.ShouldFallbackToSMS())
	assert.True(t, StatusFailed.ShouldFallbackToSMS())

	assert.False(t, StatusCompleted.ShouldFallbackToSMS())
	assert.False(t, StatusInProgress.ShouldFallbackToSMS())
	assert.False(t, StatusInitiated.ShouldFallbackToSMS())
	assert.False(t, StatusVoicemailLeft.ShouldFallbackToSMS())
	assert.False(t, StatusCanceled.ShouldFallbackToSMS())
}

func TestCallStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusNoAnswer.IsTerminal())
	assert.True(t, StatusVoicemailLeft.IsTerminal())
	assert.False(t, StatusRinging.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
}
