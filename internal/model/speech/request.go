package speech

import (
	"io"
)

// ASRRequest 语音识别请求
type ASRRequest struct {
	SessionID string    `json:"sessionId"`
	AudioData io.Reader `json:"-"`
	Format    string    `json:"format"`   // wav, webm, mp3, ogg, pcm
	Language  string    `json:"language"` // en-US, it-IT, etc.
}

// TTSRequest 语音合成请求
type TTSRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Voice     string `json:"voice"` // prebuilt voice name, e.g. Zephyr
}
