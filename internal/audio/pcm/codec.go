// Package pcm converts between float audio frames and the 16-bit little-endian
// PCM wire format exchanged with the live voice endpoint.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Sample rates and framing used by the voice pipeline.
const (
	DefaultInputRate  = 24000
	UpstreamRate      = 16000
	OutputRate        = 24000
	FrameSize         = 4096
	bytesPerSample    = 2
	negativeScale     = 0x8000
	positiveScale     = 0x7fff
	decodeDenominator = 32768.0
)

// MIMEType returns the wire MIME type for raw PCM at the given rate.
func MIMEType(rate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}

// Float32ToPCM16 clamps each sample to [-1, 1] and encodes it as a signed
// 16-bit little-endian integer. Negative samples scale by 0x8000, positive by 0x7FFF.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(quantize(float64(s))))
	}
	return out
}

// Float64ToPCM16 is Float32ToPCM16 for resampler output.
func Float64ToPCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(quantize(s)))
	}
	return out
}

func quantize(s float64) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * negativeScale)
	}
	return int16(s * positiveScale)
}

// PCM16ToFloat32 decodes signed 16-bit little-endian samples into [-1, 1).
// A trailing odd byte is ignored.
func PCM16ToFloat32(data []byte) []float32 {
	n := len(data) / bytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:]))
		out[i] = float32(float64(v) / decodeDenominator)
	}
	return out
}

// ToFloat64 widens samples for the resampler.
func ToFloat64(samples []float32) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}

// EncodeBase64 encodes float samples as base64 PCM16.
func EncodeBase64(samples []float32) string {
	return base64.StdEncoding.EncodeToString(Float32ToPCM16(samples))
}

// DecodeBase64 decodes base64 PCM16 into float samples.
func DecodeBase64(payload string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode pcm payload: %w", err)
	}
	return PCM16ToFloat32(raw), nil
}

// SampleCount reports how many mono samples a PCM16 payload holds.
func SampleCount(data []byte) int {
	return len(data) / bytesPerSample
}
