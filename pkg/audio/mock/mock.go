// Package mock provides an audio.Platform test double that lets tests feed
// PCM into opened streams by hand.
package mock

import (
	"context"
	"sync"

	"github.com/bigear-ai/bigear/pkg/audio"
)

// Compile-time assertions.
var (
	_ audio.Platform = (*Platform)(nil)
	_ audio.Stream   = (*Stream)(nil)
)

// Platform is a mock implementation of audio.Platform.
type Platform struct {
	mu sync.Mutex

	// DeviceList is returned by Devices.
	DeviceList []audio.Device

	// DevicesErr, if non-nil, fails Devices.
	DevicesErr error

	// OpenErr, if non-nil, fails every Open call.
	OpenErr error

	// Streams records every stream opened, in order.
	Streams []*Stream

	closed bool
}

// Devices implements audio.Platform.
func (p *Platform) Devices(_ context.Context) ([]audio.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DevicesErr != nil {
		return nil, p.DevicesErr
	}
	out := make([]audio.Device, len(p.DeviceList))
	copy(out, p.DeviceList)
	return out, nil
}

// Open implements audio.Platform.
func (p *Platform) Open(_ context.Context, deviceID string, cfg audio.StreamConfig, fn audio.DataFunc) (audio.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	s := &Stream{DeviceID: deviceID, Config: cfg, fn: fn}
	p.Streams = append(p.Streams, s)
	return s, nil
}

// Close implements audio.Platform.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Platform) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// OpenCount reports the number of streams opened.
func (p *Platform) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Streams)
}

// Stream is a mock capture stream. Tests call Push to deliver PCM to the
// DataFunc the stream was opened with.
type Stream struct {
	DeviceID string
	Config   audio.StreamConfig

	mu     sync.Mutex
	fn     audio.DataFunc
	closed bool
}

// Push delivers samples to the stream's callback, as the audio thread would.
// Pushes after Close are dropped.
func (s *Stream) Push(samples []float32) {
	s.mu.Lock()
	fn, closed := s.fn, s.closed
	s.mu.Unlock()
	if closed || fn == nil {
		return
	}
	fn(samples)
}

// Close implements audio.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
