package speech

import "time"

// ASRResponse 语音识别响应
type ASRResponse struct {
	SessionID string    `json:"sessionId"`
	Text      string    `json:"text"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TTSResponse 语音合成响应
type TTSResponse struct {
	SessionID  string    `json:"sessionId"`
	AudioData  []byte    `json:"-"`
	Format     string    `json:"format"`
	SampleRate int       `json:"sampleRate"`
	Duration   int64     `json:"duration"` // milliseconds
	Voice      string    `json:"voice"`
	CreatedAt  time.Time `json:"createdAt"`
}
