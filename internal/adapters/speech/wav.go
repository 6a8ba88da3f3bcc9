package speech

import (
	"bytes"
	"encoding/binary"
)

const ContentTypeWAV = "audio/wav"

// PCM format produced by Gemini TTS models.
const (
	sampleRate    = 24000
	channels      = 1
	bitsPerSample = 16
)

// encodeWAV wraps little-endian PCM samples in a RIFF/WAVE container.
func encodeWAV(pcm []byte, rate, numChannels, bits int) []byte {
	blockAlign := numChannels * bits / 8
	byteRate := rate * blockAlign

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bits))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
