package loopback

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
)

// loopbackStream taps the default output device through miniaudio's
// loopback mode (WASAPI on Windows; other hosts need a virtual device).
type loopbackStream struct {
	sampleRate int
	mctx       *malgo.AllocatedContext
	device     *malgo.Device
}

func openLoopbackStream(sampleRate int) (agentStream, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("loopback: init audio context: %w: %v", capture.ErrEngineInit, err)
	}
	return &loopbackStream{sampleRate: sampleRate, mctx: mctx}, nil
}

func (l *loopbackStream) Start(onSamples func([]float32)) error {
	devCfg := malgo.DefaultDeviceConfig(malgo.Loopback)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = 1
	devCfg.SampleRate = uint32(l.sampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onSamples(decodeF32LE(input))
		},
	}
	device, err := malgo.InitDevice(l.mctx.Context, devCfg, callbacks)
	if err != nil {
		return fmt.Errorf("loopback: open loopback device: %w: %v", capture.ErrEngineInit, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("loopback: start loopback device: %w: %v", capture.ErrEngineInit, err)
	}
	l.device = device
	return nil
}

func (l *loopbackStream) Close() error {
	if l.device != nil {
		l.device.Uninit()
		l.device = nil
	}
	if l.mctx != nil {
		if err := l.mctx.Uninit(); err != nil {
			slog.Warn("loopback: audio context uninit", "err", err)
		}
		l.mctx.Free()
		l.mctx = nil
	}
	return nil
}

func decodeF32LE(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
