package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDialogueAct(t *testing.T) {
	tests := []struct {
		input string
		want  DialogueAct
	}{
		{"", ActBackchannel},
		{"ok", ActBackchannel},
		{"Thanks Jarvis!", ActBackchannel},
		{"hello", ActGreeting},
		{"Good morning Jarvis", ActGreeting},
		{"what time is it", ActQuestion},
		{"is it raining?", ActQuestion},
		{"can you help me", ActQuestion},
		{"remind me to stretch", ActCommand},
		{"please list my tasks", ActCommand},
		{"I had a long day at work", ActStatement},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, conf := ClassifyDialogueAct(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Greater(t, conf, 0.0)
			assert.LessOrEqual(t, conf, 1.0)
		})
	}
}

func TestIsLowInfo(t *testing.T) {
	assert.True(t, IsLowInfo("yep"))
	assert.True(t, IsLowInfo("hey there"))
	assert.False(t, IsLowInfo("play some jazz"))
}
