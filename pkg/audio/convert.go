package audio

import (
	"encoding/binary"
	"math"
)

const float32ByteSize = 4

// BytesToFloat32 reinterprets little-endian IEEE-754 bytes as float32
// samples. Returns nil when the length is not a multiple of four.
func BytesToFloat32(b []byte) []float32 {
	if len(b)%float32ByteSize != 0 {
		return nil
	}
	samples := make([]float32, len(b)/float32ByteSize)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(b[i*float32ByteSize:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// DownmixMono averages interleaved multi-channel samples into mono. Mono
// input is returned unchanged. Trailing samples of an incomplete frame are
// dropped.
func DownmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
