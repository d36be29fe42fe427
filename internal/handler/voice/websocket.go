package voice

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
	voicesvc "github.com/zhouzirui/atlas/backend/internal/service/voice"
	"github.com/zhouzirui/atlas/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// SessionResolver 根据会话解析 tutor
type SessionResolver interface {
	SessionTutor(ctx context.Context, sessionID string) (chat.Session, tutor.Tutor, error)
}

// WebSocketHandler 实时语音通话处理器
type WebSocketHandler struct {
	connector voicesvc.LiveConnector
	sessions  SessionResolver
	tutors    tutor.Store
	defaults  voicesvc.Options
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler 创建语音通话处理器. connector may be nil when live
// voice is not configured; the route then answers 501.
func NewWebSocketHandler(connector voicesvc.LiveConnector, sessions SessionResolver, tutors tutor.Store, defaults voicesvc.Options) *WebSocketHandler {
	return &WebSocketHandler{
		connector: connector,
		sessions:  sessions,
		tutors:    tutors,
		defaults:  defaults,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// RegisterRoutes 注册语音通话路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Route("/voice", func(vr chi.Router) {
		if h.connector == nil || h.sessions == nil {
			vr.Get("/ws/{sessionID}", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusNotImplemented, "voice call not available")
			})
			return
		}
		vr.Get("/ws/{sessionID}", h.handleWebSocket)
	})
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// AudioMessage 麦克风音频帧 (base64 PCM16)
type AudioMessage struct {
	Audio string `json:"audio"`
}

// ConfigMessage 通话配置，只能在通话开始前修改
type ConfigMessage struct {
	TutorID         string `json:"tutorId"`
	InputSampleRate int    `json:"inputSampleRate"`
	VADThreshold    int    `json:"vadThreshold"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type connectionState struct {
	sessionID string
	tutor     tutor.Tutor
	opts      voicesvc.Options
	call      *voicesvc.Call
}

func newConnectionState(sessionID string, t tutor.Tutor, opts voicesvc.Options) *connectionState {
	return &connectionState{
		sessionID: sessionID,
		tutor:     t,
		opts:      opts,
	}
}

func (s *connectionState) active() bool {
	if s.call == nil {
		return false
	}
	select {
	case <-s.call.Done():
		return false
	default:
		return true
	}
}

// connWriter serializes writes; gorilla connections allow one concurrent writer.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (cw *connWriter) writeJSON(v any) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return cw.conn.WriteJSON(v)
}

func (cw *connWriter) ping() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return cw.conn.WriteMessage(websocket.PingMessage, nil)
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	_, t, err := h.sessions.SessionTutor(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[voice] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[voice] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := &connWriter{conn: conn}
	state := newConnectionState(sessionID, t, h.defaults)
	defer func() {
		if state.call != nil {
			state.call.End(voicesvc.ReasonDisconnected)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, out)

	h.sendInfo(out, sessionID, map[string]any{
		"type":  "connected",
		"tutor": t.ID,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[voice] read error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(out, "session mismatch")
			continue
		}

		h.handleMessage(ctx, out, state, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, out *connWriter, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "config":
		h.handleConfigMessage(out, state, msg.Data)
	case "start":
		h.startCall(ctx, out, state)
	case "audio":
		h.handleAudioMessage(out, state, msg.Data)
	case "hangup":
		if state.call != nil {
			state.call.Hangup()
		}
	default:
		h.sendError(out, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) startCall(ctx context.Context, out *connWriter, state *connectionState) {
	if state.active() {
		h.sendError(out, "call already active")
		return
	}

	sessionID := state.sessionID
	call := voicesvc.NewCall(h.connector, state.tutor, state.opts, func(ev voicesvc.Event) {
		if err := out.writeJSON(outgoingMessage{
			Type:      "event",
			SessionID: sessionID,
			Data:      ev,
			Timestamp: time.Now().Unix(),
		}); err != nil {
			log.Printf("[voice] write event failed: %v", err)
		}
	})
	state.call = call

	if err := call.Start(ctx); err != nil {
		h.sendError(out, "failed to start call")
	}
}

func (h *WebSocketHandler) handleAudioMessage(out *connWriter, state *connectionState, raw json.RawMessage) {
	if !state.active() {
		h.sendError(out, "no active call")
		return
	}

	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil || audio.Audio == "" {
		h.sendError(out, "invalid audio payload")
		return
	}

	if err := state.call.PushAudio(audio.Audio); err != nil {
		if errors.Is(err, voicesvc.ErrCallEnded) {
			return
		}
		log.Printf("[voice] push audio session=%s: %v", state.sessionID, err)
		h.sendError(out, "audio rejected")
	}
}

func (h *WebSocketHandler) handleConfigMessage(out *connWriter, state *connectionState, raw json.RawMessage) {
	if state.active() {
		h.sendError(out, "cannot change config during a call")
		return
	}

	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(out, "invalid config payload")
		return
	}

	h.applyConfig(state, cfg)

	log.Printf("[voice] config applied session=%s tutor=%s rate=%d", state.sessionID, state.tutor.ID, state.opts.InputRate)

	h.sendInfo(out, state.sessionID, map[string]any{
		"type":            "config",
		"tutor":           state.tutor.ID,
		"inputSampleRate": state.opts.InputRate,
		"vadThreshold":    state.opts.VADThreshold,
	})
}

func (h *WebSocketHandler) applyConfig(state *connectionState, cfg ConfigMessage) {
	if cfg.TutorID != "" && cfg.TutorID != state.tutor.ID && h.tutors != nil {
		if t, ok := h.tutors.FindByID(cfg.TutorID); ok {
			state.tutor = t
		}
	}
	if cfg.InputSampleRate > 0 {
		state.opts.InputRate = cfg.InputSampleRate
	}
	if cfg.VADThreshold > 0 {
		state.opts.VADThreshold = cfg.VADThreshold
	}
}

func (h *WebSocketHandler) sendInfo(out *connWriter, sessionID string, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := out.writeJSON(msg); err != nil {
		log.Printf("[voice] write info failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(out *connWriter, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := out.writeJSON(msg); err != nil {
		log.Printf("[voice] write error failed: %v", err)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, out *connWriter) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := out.ping(); err != nil {
				return
			}
		}
	}
}
