// Package voice bridges a browser microphone stream with a live audio model.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log"

	"google.golang.org/genai"

	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	"github.com/zhouzirui/atlas/backend/internal/service/ai"
)

// ServerEvent is one message from the live model, reduced to what a call needs.
type ServerEvent struct {
	Audio            []byte
	Text             string
	InputTranscript  string
	OutputTranscript string
	Interrupted      bool
	TurnComplete     bool
}

// LiveSession is an open bidirectional audio channel.
type LiveSession interface {
	SendAudio(data []byte, mimeType string) error
	Receive() (ServerEvent, error)
	Close() error
}

// LiveConnector opens live sessions configured for a tutor.
type LiveConnector interface {
	Connect(ctx context.Context, t tutor.Tutor) (LiveSession, error)
}

// GeminiConnector opens sessions against the Gemini Live API.
type GeminiConnector struct {
	client  *genai.Client
	model   string
	voice   string
	prompts *ai.PromptBuilder
}

// NewGeminiConnector creates a connector. A non-empty voice overrides the
// tutor's prebuilt voice.
func NewGeminiConnector(client *genai.Client, model, voice string) (*GeminiConnector, error) {
	if client == nil {
		return nil, errors.New("gemini client is required")
	}
	return &GeminiConnector{
		client:  client,
		model:   model,
		voice:   voice,
		prompts: ai.NewPromptBuilder(),
	}, nil
}

// Connect implements LiveConnector.
func (g *GeminiConnector) Connect(ctx context.Context, t tutor.Tutor) (LiveSession, error) {
	session, err := g.client.Live.Connect(ctx, g.model, g.connectConfig(t))
	if err != nil {
		return nil, fmt.Errorf("live connect: %w", err)
	}
	log.Printf("[voice] live session opened model=%s tutor=%s", g.model, t.ID)
	return &geminiSession{session: session}, nil
}

func (g *GeminiConnector) connectConfig(t tutor.Tutor) *genai.LiveConnectConfig {
	voice := g.voice
	if voice == "" {
		voice = t.VoiceName
	}
	cfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		SystemInstruction:        genai.NewContentFromText(g.prompts.VoicePrompt(t), genai.RoleUser),
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if voice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}
	return cfg
}

type geminiSession struct {
	session *genai.Session
}

func (s *geminiSession) SendAudio(data []byte, mimeType string) error {
	return s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: data, MIMEType: mimeType},
	})
}

func (s *geminiSession) Receive() (ServerEvent, error) {
	msg, err := s.session.Receive()
	if err != nil {
		return ServerEvent{}, err
	}
	return translate(msg), nil
}

func (s *geminiSession) Close() error {
	return s.session.Close()
}

func translate(msg *genai.LiveServerMessage) ServerEvent {
	var ev ServerEvent
	if msg == nil || msg.ServerContent == nil {
		return ev
	}
	content := msg.ServerContent
	ev.Interrupted = content.Interrupted
	ev.TurnComplete = content.TurnComplete
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.InlineData != nil {
				ev.Audio = append(ev.Audio, part.InlineData.Data...)
			}
			ev.Text += part.Text
		}
	}
	if content.InputTranscription != nil {
		ev.InputTranscript = content.InputTranscription.Text
	}
	if content.OutputTranscription != nil {
		ev.OutputTranscript = content.OutputTranscription.Text
	}
	return ev
}
