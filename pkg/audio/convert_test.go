package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestBytesToFloat32(t *testing.T) {
	want := []float32{0.5, -1, 0.25}
	b := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}

	got := BytesToFloat32(b)
	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBytesToFloat32_MisalignedInput(t *testing.T) {
	if got := BytesToFloat32([]byte{1, 2, 3}); got != nil {
		t.Errorf("expected nil for misaligned input, got %v", got)
	}
}

func TestDownmixMono_Stereo(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	want := []float32{0.5, 0.5, 0}

	got := DownmixMono(stereo, 2)
	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownmixMono_MonoPassthrough(t *testing.T) {
	mono := []float32{0.1, 0.2}
	got := DownmixMono(mono, 1)
	if len(got) != 2 || got[0] != 0.1 || got[1] != 0.2 {
		t.Errorf("mono passthrough: got %v", got)
	}
}

func TestDownmixMono_DropsIncompleteFrame(t *testing.T) {
	got := DownmixMono([]float32{1, 1, 1}, 2)
	if len(got) != 1 {
		t.Fatalf("length: got %d, want 1", len(got))
	}
	if got[0] != 1 {
		t.Errorf("sample[0]: got %v, want 1", got[0])
	}
}
