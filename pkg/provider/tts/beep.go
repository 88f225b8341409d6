package tts

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Beep generation parameters: a short 440 Hz sine so users hear playback even
// without synthesis credentials. Amplitude stays at 25% of full scale to
// avoid clipping.
const (
	beepSampleRate = 16000
	beepDuration   = 0.5
	beepFrequency  = 440.0
	beepAmplitude  = 0.25
)

// Beep returns a deterministic audible WAV clip. It is the fallback audio for
// failed or offline synthesis; calling it twice yields identical bytes.
func Beep() Audio {
	totalSamples := int(beepSampleRate * beepDuration)
	frames := make([]byte, 0, totalSamples*2)
	for n := 0; n < totalSamples; n++ {
		t := float64(n) / beepSampleRate
		sample := int16(32767 * beepAmplitude * math.Sin(2*math.Pi*beepFrequency*t))
		frames = binary.LittleEndian.AppendUint16(frames, uint16(sample))
	}
	return Audio{Data: wavEncode(frames, beepSampleRate), Format: "wav"}
}

// wavEncode wraps 16-bit mono little-endian PCM frames in a RIFF/WAVE header.
func wavEncode(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
