package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelContextDropsFailedPairs(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Text: "greeting", Hidden: true},
		{Role: RoleModel, Text: "welcome"},
		{Role: RoleUser, Text: "first"},
		{Role: RoleModel, Text: "sorry", Failed: true},
		{Role: RoleUser, Text: "second"},
		{Role: RoleModel, Text: "ok"},
	}

	got := ModelContext(history)
	texts := make([]string, 0, len(got))
	for _, msg := range got {
		texts = append(texts, msg.Text)
	}
	assert.Equal(t, []string{"greeting", "welcome", "second", "ok"}, texts)
}

func TestModelContextFailedGreeting(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Text: "greeting", Hidden: true},
		{Role: RoleModel, Text: "sorry", Failed: true},
	}
	assert.Empty(t, ModelContext(history))
}

func TestTranscriptHidesHiddenMessages(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Text: "greeting", Hidden: true},
		{Role: RoleModel, Text: "welcome"},
		{Role: RoleUser, Text: "first"},
		{Role: RoleModel, Text: "sorry", Failed: true},
	}

	got := Transcript(history)
	assert.Len(t, got, 3)
	assert.Equal(t, "welcome", got[0].Text)
	assert.True(t, got[2].Failed)
}
