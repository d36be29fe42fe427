// Package app assembles the services shared by the API server and atlasctl.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/zhouzirui/atlas/backend/internal/config"
	"github.com/zhouzirui/atlas/backend/internal/handler"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	"github.com/zhouzirui/atlas/backend/internal/service/ai"
	chatService "github.com/zhouzirui/atlas/backend/internal/service/chat"
	practiceService "github.com/zhouzirui/atlas/backend/internal/service/practice"
	progressService "github.com/zhouzirui/atlas/backend/internal/service/progress"
	speechService "github.com/zhouzirui/atlas/backend/internal/service/speech"
	voiceService "github.com/zhouzirui/atlas/backend/internal/service/voice"
	"github.com/zhouzirui/atlas/backend/internal/store"
)

// App holds the wired services. Practice, Speech and Voice stay nil when the
// model provider they need is not configured.
type App struct {
	Config   *config.Config
	Repo     store.Repository
	Tutors   *tutor.MemoryStore
	Progress *progressService.Service
	Chat     *chatService.Service
	Practice *practiceService.Service
	Speech   *speechService.Service
	Voice    *voiceService.GeminiConnector
}

// New opens the store and builds every service the configuration allows.
// Missing model credentials only disable the features that need them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	repo, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Printf("[app] store driver=%s", cfg.Store.Driver)

	tutors := tutor.Seed()
	if cfg.Tutor.ProfilePath != "" {
		tutors, err = tutor.LoadFile(cfg.Tutor.ProfilePath, tutors)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("load tutor profiles: %w", err)
		}
		log.Printf("[app] loaded %d tutor profiles from %s", len(tutors), cfg.Tutor.ProfilePath)
	}

	a := &App{
		Config:   cfg,
		Repo:     repo,
		Tutors:   tutor.NewMemoryStore(tutors),
		Progress: progressService.NewService(repo),
	}

	var responder chatService.Responder
	var generator ai.ExerciseGenerator
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality, replies fall back to a fixed message")
		} else {
			responder = aiSvc
			generator = a.exerciseGenerator(ctx, aiSvc)
			log.Printf("AI service initialized successfully provider=%s", cfg.AI.Provider)
		}
	} else {
		log.Println("模型凭证未配置，跳过 AI 功能初始化")
	}

	a.Chat = chatService.NewService(repo, a.Tutors, a.Progress, responder)
	if generator != nil {
		a.Practice = practiceService.NewService(a.Chat, generator, a.Progress)
	}

	if cfg.AI.GeminiEnabled() {
		client, err := cfg.AI.NewGeminiClient(ctx)
		if err != nil {
			log.Printf("warning: failed to create Gemini client: %v", err)
		} else {
			a.Speech = speechService.NewService(client.Models, cfg.AI.TTSModel, cfg.AI.ChatModel, cfg.Voice.VoiceName)
			a.Voice, err = voiceService.NewGeminiConnector(client, cfg.AI.LiveModel, cfg.Voice.VoiceName)
			if err != nil {
				log.Printf("warning: voice calls disabled: %v", err)
				a.Voice = nil
			}
			log.Println("Speech and voice services initialized successfully")
		}
	} else {
		log.Println("GEMINI_API_KEY 未配置，跳过语音功能初始化")
	}

	return a, nil
}

// exerciseGenerator prefers Gemini structured output and falls back to the
// chat chain when only Ark is configured.
func (a *App) exerciseGenerator(ctx context.Context, aiSvc *ai.Service) ai.ExerciseGenerator {
	cfg := a.Config.AI
	if cfg.Provider != config.ProviderArk && cfg.GeminiEnabled() {
		client, err := cfg.NewGeminiClient(ctx)
		if err == nil {
			return ai.NewGeminiExerciseGenerator(client.Models, cfg.ChatModel, cfg.Temperature32())
		}
		log.Printf("warning: gemini exercise generator unavailable: %v", err)
	}

	gen, err := ai.NewChainExerciseGenerator(ctx, aiSvc.ChatModel())
	if err != nil {
		log.Printf("warning: failed to initialize exercise generator: %v", err)
		return nil
	}
	return gen
}

// Dependencies converts the app into router dependencies. Nil services are
// left as nil interfaces so the router can serve 503s for them.
func (a *App) Dependencies() handler.Dependencies {
	deps := handler.Dependencies{
		Tutors:   a.Tutors,
		Store:    a.Repo,
		Chat:     a.Chat,
		Progress: a.Progress,
		Practice: a.Practice,
		VoiceOptions: voiceService.Options{
			InputRate:    a.Config.Voice.InputSampleRate,
			VADThreshold: a.Config.Voice.VADThreshold,
		},
		AllowedOrigins: a.Config.CORS.AllowedOrigins,
	}
	if a.Speech != nil {
		deps.Speech = a.Speech
	}
	if a.Voice != nil {
		deps.Voice = a.Voice
	}
	return deps
}

// Close releases the store.
func (a *App) Close() error {
	return a.Repo.Close()
}
