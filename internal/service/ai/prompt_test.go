package ai

import (
	"strings"
	"testing"

	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
)

func TestSystemPromptUsesProfileInstruction(t *testing.T) {
	pb := NewPromptBuilder()
	atlas := tutor.Seed()[0]

	if got := pb.SystemPrompt(atlas); got != atlas.SystemInstruction {
		t.Fatalf("expected profile instruction")
	}
	voice := pb.VoicePrompt(atlas)
	if !strings.HasPrefix(voice, atlas.SystemInstruction) || !strings.Contains(voice, "chiamata vocale") {
		t.Fatalf("voice prompt missing call guidance: %q", voice)
	}
}

func TestSystemPromptFallback(t *testing.T) {
	pb := NewPromptBuilder()
	got := pb.SystemPrompt(tutor.Tutor{ID: "nova", Name: "Nova", SupportLanguage: "it"})

	if !strings.Contains(got, "You are Nova") || !strings.Contains(got, "+10 XP") {
		t.Fatalf("unexpected fallback prompt %q", got)
	}
}
