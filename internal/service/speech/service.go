// Package speech provides one-shot text-to-speech and transcription backed
// by Gemini, for the "listen" and dictation affordances of the chat.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/zhouzirui/atlas/backend/internal/audio/pcm"
	"github.com/zhouzirui/atlas/backend/internal/audio/playback"
	"github.com/zhouzirui/atlas/backend/internal/model/speech"
	"github.com/zhouzirui/atlas/backend/internal/service/ai"
)

const maxAudioBytes = 32 << 20

var (
	ErrEmptyText  = errors.New("text is required")
	ErrEmptyAudio = errors.New("audio is required")
	ErrNoAudio    = errors.New("model returned no audio")
)

const transcribePrompt = "Transcribe this audio verbatim. Return only the spoken words, without commentary or translation."

// Service 基于 Gemini 的语音合成与识别
type Service struct {
	models       ai.ContentGenerator
	ttsModel     string
	sttModel     string
	defaultVoice string
	now          func() time.Time
}

// NewService 创建语音服务实例
func NewService(models ai.ContentGenerator, ttsModel, sttModel, defaultVoice string) *Service {
	return &Service{
		models:       models,
		ttsModel:     ttsModel,
		sttModel:     sttModel,
		defaultVoice: defaultVoice,
		now:          time.Now,
	}
}

// SynthesizeSpeech 文字转语音，返回 24 kHz WAV
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = s.defaultVoice
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
	}
	if voice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := s.models.GenerateContent(ctx, s.ttsModel, contents, cfg)
	if err != nil {
		return nil, ai.NormalizeError(err)
	}

	data := inlineAudio(resp)
	if len(data) == 0 {
		return nil, ErrNoAudio
	}
	duration := playback.ChunkDuration(pcm.SampleCount(data), pcm.OutputRate)

	return &speech.TTSResponse{
		SessionID:  req.SessionID,
		AudioData:  pcm.WAV(data, pcm.OutputRate),
		Format:     "wav",
		SampleRate: pcm.OutputRate,
		Duration:   duration.Milliseconds(),
		Voice:      voice,
		CreatedAt:  s.now().UTC(),
	}, nil
}

// TranscribeAudio 语音转文字
func (s *Service) TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if req.AudioData == nil {
		return nil, ErrEmptyAudio
	}
	data, err := io.ReadAll(io.LimitReader(req.AudioData, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	prompt := transcribePrompt
	if req.Language != "" {
		prompt += " The expected language is " + req.Language + "."
	}
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(data, MIMEType(req.Format)),
		},
	}}

	resp, err := s.models.GenerateContent(ctx, s.sttModel, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return nil, ai.NormalizeError(err)
	}

	return &speech.ASRResponse{
		SessionID: req.SessionID,
		Text:      strings.TrimSpace(resp.Text()),
		Language:  req.Language,
		CreatedAt: s.now().UTC(),
	}, nil
}

// MIMEType maps an upload format to the MIME type sent inline to the model.
func MIMEType(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "audio/mp3"
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	case "m4a", "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "pcm":
		return pcm.MIMEType(pcm.DefaultInputRate)
	default:
		return "audio/wav"
	}
}

func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	var out []byte
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				out = append(out, part.InlineData.Data...)
			}
		}
		if len(out) > 0 {
			break
		}
	}
	return out
}
