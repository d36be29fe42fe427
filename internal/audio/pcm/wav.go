package pcm

import (
	"bytes"
	"encoding/binary"
)

const wavHeaderSize = 44

// WAV wraps mono 16-bit little-endian PCM in a canonical RIFF/WAVE container.
func WAV(data []byte, rate int) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(data))

	le := binary.LittleEndian
	write := func(v any) { _ = binary.Write(&buf, le, v) }

	buf.WriteString("RIFF")
	write(uint32(36 + len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	write(uint32(16))                    // chunk size
	write(uint16(1))                     // PCM
	write(uint16(1))                     // mono
	write(uint32(rate))                  // sample rate
	write(uint32(rate * bytesPerSample)) // byte rate
	write(uint16(bytesPerSample))        // block align
	write(uint16(8 * bytesPerSample))    // bits per sample

	buf.WriteString("data")
	write(uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}
