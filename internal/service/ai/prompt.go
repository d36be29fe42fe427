package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
)

// PromptBuilder turns tutor profiles into system instructions.
type PromptBuilder struct{}

// NewPromptBuilder creates a prompt builder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// SystemPrompt returns the text-chat instruction for t.
func (pb *PromptBuilder) SystemPrompt(t tutor.Tutor) string {
	if strings.TrimSpace(t.SystemInstruction) != "" {
		return t.SystemInstruction
	}
	return pb.basicPrompt(t)
}

// VoicePrompt returns the instruction for a live call, which appends the
// call-specific guidance to the chat instruction.
func (pb *PromptBuilder) VoicePrompt(t tutor.Tutor) string {
	if strings.TrimSpace(t.SystemInstruction) == "" {
		t.SystemInstruction = pb.basicPrompt(t)
	}
	return t.VoiceInstruction()
}

// basicPrompt is used for profiles that only carry identity fields.
func (pb *PromptBuilder) basicPrompt(t tutor.Tutor) string {
	name := t.Name
	if name == "" {
		name = "Tutor"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s", name)
	if t.Title != "" {
		fmt.Fprintf(&b, ", %s", t.Title)
	}
	b.WriteString(". Teach English through conversation, correct mistakes constructively at the end of each reply, and reward progress with points such as \"+10 XP\".")
	if t.SupportLanguage != "" {
		fmt.Fprintf(&b, " Use %s as the support language when the learner struggles.", t.SupportLanguage)
	}
	return b.String()
}
