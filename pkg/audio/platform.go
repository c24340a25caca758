// Package audio defines the interfaces and types for capture-device
// connectivity.
//
// The two primary abstractions are:
//
//   - [Platform]: enumerates capture devices and opens streams on them.
//   - [Stream]: an active capture session delivering float32 PCM to a
//     callback until closed.
//
// Implementations are provided by backend-specific adapter packages
// (audio/malgo for miniaudio, audio/mock for tests). The interfaces are
// intentionally narrow to keep the capture supervisor decoupled from backend
// details.
package audio

import "context"

// Device describes one capture device visible to the platform.
type Device struct {
	// ID uniquely identifies the device within its Platform. It is stable
	// for the lifetime of the process but not across reboots.
	ID string

	// Name is the human-readable device name as reported by the OS, e.g.
	// "MacBook Pro Microphone" or "BlackHole 2ch".
	Name string

	// IsDefault marks the OS default capture device.
	IsDefault bool
}

// StreamConfig fixes the PCM shape of an opened stream.
type StreamConfig struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels is the channel count delivered to the DataFunc. Backends
	// that cannot honor the request deliver their native count; callers
	// downmix as needed.
	Channels int
}

// DataFunc receives captured PCM. samples holds interleaved float32 frames in
// the stream's configured shape. The callback runs on the backend's audio
// thread; it must return quickly and must not block.
type DataFunc func(samples []float32)

// Stream is an active capture session.
type Stream interface {
	// Close stops capture and releases the device. Safe to call more than
	// once; subsequent calls are no-ops.
	Close() error
}

// Platform is the entry point for a capture backend.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Devices enumerates the currently available capture devices.
	Devices(ctx context.Context) ([]Device, error)

	// Open starts capturing from the device identified by deviceID and
	// delivers PCM to fn until the returned Stream is closed. An empty
	// deviceID selects the OS default device.
	Open(ctx context.Context, deviceID string, cfg StreamConfig, fn DataFunc) (Stream, error)

	// Close releases backend resources. All streams must be closed first.
	Close() error
}
