package tts

import (
	"bytes"
	"encoding/binary"
)

// Orpheus emits 16-bit mono PCM at this rate.
const (
	SampleRate    = 24000
	bitsPerSample = 16
	channels      = 1
)

// WrapPCM frames raw little-endian PCM samples in a 44-byte RIFF/WAVE header.
func WrapPCM(pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	dataSize := uint32(len(pcm))
	blockAlign := uint16(channels * bitsPerSample / 8)
	byteRate := uint32(SampleRate) * uint32(blockAlign)

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, byteRate)
	_ = binary.Write(&buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)

	return buf.Bytes()
}

// PCMDuration estimates playback seconds for n bytes of raw samples, with a
// floor of 0.1s.
func PCMDuration(n int) float64 {
	return max(0.1, float64(n)/float64(SampleRate*channels*bitsPerSample/8))
}
