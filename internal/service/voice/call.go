package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/atlas/backend/internal/audio/pcm"
	"github.com/zhouzirui/atlas/backend/internal/audio/playback"
	"github.com/zhouzirui/atlas/backend/internal/audio/vad"
	"github.com/zhouzirui/atlas/backend/internal/model/tutor"
)

// ErrCallEnded is returned when audio is pushed into a finished call.
var ErrCallEnded = errors.New("call has ended")

// EventType names the events a call emits to its client.
type EventType string

const (
	EventConnecting   EventType = "connecting"
	EventListening    EventType = "listening"
	EventAudio        EventType = "audio"
	EventTranscript   EventType = "transcript"
	EventInterrupted  EventType = "interrupted"
	EventSpeaking     EventType = "speaking"
	EventUserSpeaking EventType = "user_speaking"
	EventTurnComplete EventType = "turn_complete"
	EventEnded        EventType = "ended"
)

// End reasons.
const (
	ReasonHangup       = "hangup"
	ReasonDisconnected = "client_disconnected"
	ReasonRemoteClosed = "remote_closed"
	ReasonError        = "error"
)

// Event is sent to the client. Times are seconds from the start of the call.
type Event struct {
	Type       EventType `json:"type"`
	Audio      string    `json:"audio,omitempty"`
	SampleRate int       `json:"sampleRate,omitempty"`
	StartAt    float64   `json:"startAt,omitempty"`
	Duration   float64   `json:"duration,omitempty"`
	Role       string    `json:"role,omitempty"`
	Text       string    `json:"text,omitempty"`
	Active     *bool     `json:"active,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Options tune a call.
type Options struct {
	InputRate    int
	VADThreshold int
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.InputRate <= 0 {
		o.InputRate = pcm.DefaultInputRate
	}
	if o.VADThreshold <= 0 {
		o.VADThreshold = vad.DefaultThreshold
	}
	if o.PollInterval <= 0 {
		o.PollInterval = vad.FrameInterval
	}
	return o
}

// Call owns every resource of one voice call. All of them are released by
// End, which runs exactly once whichever side finishes the call.
type Call struct {
	tutor     tutor.Tutor
	connector LiveConnector
	opts      Options
	now       func() time.Time

	started   time.Time
	session   LiveSession
	resampler *pcm.Resampler
	analyser  *vad.Analyser
	scheduler *playback.Scheduler
	cancel    context.CancelFunc

	emitMu sync.Mutex
	sink   func(Event)
	closed bool

	speakingMu sync.Mutex
	speaking   bool

	endOnce sync.Once
	done    chan struct{}
}

// NewCall prepares a call for t. sink receives every event in order.
func NewCall(connector LiveConnector, t tutor.Tutor, opts Options, sink func(Event)) *Call {
	return &Call{
		tutor:     t,
		connector: connector,
		opts:      opts.withDefaults(),
		now:       time.Now,
		analyser:  vad.NewAnalyser(),
		scheduler: playback.NewScheduler(),
		sink:      sink,
		done:      make(chan struct{}),
	}
}

// Start opens the live session and begins the receive and indicator loops.
func (c *Call) Start(ctx context.Context) error {
	c.emit(Event{Type: EventConnecting})

	resampler, err := pcm.NewResampler(c.opts.InputRate, pcm.UpstreamRate)
	if err != nil {
		c.End(ReasonError)
		return err
	}
	c.resampler = resampler

	session, err := c.connector.Connect(ctx, c.tutor)
	if err != nil {
		log.Printf("[voice] connect failed tutor=%s: %v", c.tutor.ID, err)
		c.End(ReasonError)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.emitMu.Lock()
	c.session = session
	c.cancel = cancel
	c.started = c.now()
	c.emitMu.Unlock()

	c.emit(Event{Type: EventListening})

	go c.receiveLoop(runCtx, session)
	go c.analyser.Poll(runCtx, c.opts.PollInterval, c.opts.VADThreshold, func(active bool) {
		c.emit(Event{Type: EventUserSpeaking, Active: &active})
	})
	go c.watchPlayback(runCtx)
	return nil
}

// PushAudio forwards one base64 PCM16 microphone frame at the input rate.
func (c *Call) PushAudio(payload string) error {
	if c.isEnded() {
		return ErrCallEnded
	}
	samples, err := pcm.DecodeBase64(payload)
	if err != nil {
		return err
	}
	c.analyser.Observe(samples)

	c.emitMu.Lock()
	session, resampler := c.session, c.resampler
	c.emitMu.Unlock()
	if session == nil || resampler == nil {
		return ErrCallEnded
	}

	resampled, err := resampler.Process(samples)
	if err != nil {
		return err
	}
	if len(resampled) == 0 {
		return nil
	}
	if err := session.SendAudio(pcm.Float64ToPCM16(resampled), pcm.MIMEType(pcm.UpstreamRate)); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// Hangup ends the call on the user's request.
func (c *Call) Hangup() {
	c.End(ReasonHangup)
}

// End tears the call down. Only the first call has any effect.
func (c *Call) End(reason string) {
	c.endOnce.Do(func() {
		c.emitMu.Lock()
		cancel, session, resampler := c.cancel, c.session, c.resampler
		c.emitMu.Unlock()

		if cancel != nil {
			cancel()
		}
		if session != nil {
			if err := session.Close(); err != nil {
				log.Printf("[voice] close live session: %v", err)
			}
		}
		if resampler != nil {
			resampler.Release()
		}

		c.emit(Event{Type: EventEnded, Reason: reason})
		c.emitMu.Lock()
		c.closed = true
		c.emitMu.Unlock()
		close(c.done)
		log.Printf("[voice] call ended tutor=%s reason=%s", c.tutor.ID, reason)
	})
}

// Done is closed once the call has ended.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

func (c *Call) isEnded() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Call) emit(ev Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.closed || c.sink == nil {
		return
	}
	c.sink(ev)
}

func (c *Call) elapsed() time.Duration {
	c.emitMu.Lock()
	started := c.started
	c.emitMu.Unlock()
	return c.now().Sub(started)
}

func (c *Call) setSpeaking(active bool) {
	c.speakingMu.Lock()
	changed := c.speaking != active
	c.speaking = active
	c.speakingMu.Unlock()
	if changed {
		c.emit(Event{Type: EventSpeaking, Active: &active})
	}
}

func (c *Call) receiveLoop(ctx context.Context, session LiveSession) {
	for {
		ev, err := session.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[voice] live session closed: %v", err)
			c.End(ReasonRemoteClosed)
			return
		}
		c.handle(ev)
	}
}

func (c *Call) handle(ev ServerEvent) {
	if ev.Interrupted {
		c.scheduler.Interrupt(c.elapsed())
		c.setSpeaking(false)
		c.emit(Event{Type: EventInterrupted})
	}

	if len(ev.Audio) > 0 {
		now := c.elapsed()
		d := playback.ChunkDuration(pcm.SampleCount(ev.Audio), pcm.OutputRate)
		start := c.scheduler.Schedule(now, d)
		c.emit(Event{
			Type:       EventAudio,
			Audio:      base64.StdEncoding.EncodeToString(ev.Audio),
			SampleRate: pcm.OutputRate,
			StartAt:    start.Seconds(),
			Duration:   d.Seconds(),
		})
		c.setSpeaking(true)
	}

	if ev.InputTranscript != "" {
		c.emit(Event{Type: EventTranscript, Role: "user", Text: ev.InputTranscript})
	}
	if text := ev.OutputTranscript + ev.Text; text != "" {
		c.emit(Event{Type: EventTranscript, Role: "model", Text: text})
	}
	if ev.TurnComplete {
		c.emit(Event{Type: EventTurnComplete})
	}
}

func (c *Call) watchPlayback(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.scheduler.Speaking(c.elapsed()) {
				c.setSpeaking(false)
			}
		}
	}
}
