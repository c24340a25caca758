// Package malgo implements audio.Platform on top of miniaudio via
// github.com/gen2brain/malgo. It covers CoreAudio, WASAPI, ALSA and
// PulseAudio with one code path, including loopback devices like BlackHole
// and VB-Cable that surface system output as capture devices.
package malgo

import (
	"context"
	"fmt"
	"sync"

	malgolib "github.com/gen2brain/malgo"

	"github.com/bigear-ai/bigear/pkg/audio"
)

// Compile-time assertion.
var _ audio.Platform = (*Platform)(nil)

// Platform wraps one malgo context. Create it once per process and Close it
// on shutdown.
type Platform struct {
	ctx *malgolib.AllocatedContext

	mu sync.Mutex
	// ids maps audio.Device.ID back to the native device ID captured at the
	// last enumeration. Open resolves through this map.
	ids map[string]malgolib.DeviceID
}

// New initializes the miniaudio backend.
func New() (*Platform, error) {
	ctx, err := malgolib.InitContext(nil, malgolib.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo: init context: %w", err)
	}
	return &Platform{ctx: ctx, ids: make(map[string]malgolib.DeviceID)}, nil
}

// Devices implements audio.Platform by enumerating capture devices.
func (p *Platform) Devices(_ context.Context) ([]audio.Device, error) {
	infos, err := p.ctx.Devices(malgolib.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo: enumerate capture devices: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	devices := make([]audio.Device, 0, len(infos))
	for _, info := range infos {
		id := info.ID.String()
		p.ids[id] = info.ID
		devices = append(devices, audio.Device{
			ID:        id,
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// Open implements audio.Platform. The stream delivers float32 PCM in the
// requested shape; fn runs on miniaudio's audio thread.
func (p *Platform) Open(_ context.Context, deviceID string, cfg audio.StreamConfig, fn audio.DataFunc) (audio.Stream, error) {
	deviceConfig := malgolib.DefaultDeviceConfig(malgolib.Capture)
	deviceConfig.Capture.Format = malgolib.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	if deviceID != "" {
		p.mu.Lock()
		native, ok := p.ids[deviceID]
		p.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("malgo: unknown device %q (enumerate first)", deviceID)
		}
		deviceConfig.Capture.DeviceID = native.Pointer()
	}

	callbacks := malgolib.DeviceCallbacks{
		Data: func(_, pSamples []byte, _ uint32) {
			samples := audio.BytesToFloat32(pSamples)
			if len(samples) == 0 {
				return
			}
			fn(samples)
		},
	}

	device, err := malgolib.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("malgo: init device %q: %w", deviceID, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("malgo: start device %q: %w", deviceID, err)
	}
	return &stream{device: device}, nil
}

// Close implements audio.Platform.
func (p *Platform) Close() error {
	if err := p.ctx.Uninit(); err != nil {
		return fmt.Errorf("malgo: uninit context: %w", err)
	}
	p.ctx.Free()
	return nil
}

type stream struct {
	device    *malgolib.Device
	closeOnce sync.Once
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		if s.device.IsStarted() {
			_ = s.device.Stop()
		}
		s.device.Uninit()
	})
	return nil
}
