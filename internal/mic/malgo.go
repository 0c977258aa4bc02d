package mic

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
)

// malgoStream captures through miniaudio. The context is initialized at
// open time so device errors surface before the poll loop starts.
type malgoStream struct {
	cfg    Config
	mctx   *malgo.AllocatedContext
	device *malgo.Device
}

func openMalgoStream(cfg Config) (deviceStream, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("mic: init audio context: %w: %v", capture.ErrEngineInit, err)
	}

	infos, err := mctx.Context.Devices(malgo.Capture)
	if err != nil {
		_ = mctx.Uninit()
		return nil, fmt.Errorf("mic: enumerate capture devices: %w: %v", capture.ErrEngineInit, err)
	}
	if len(infos) == 0 {
		_ = mctx.Uninit()
		return nil, fmt.Errorf("mic: no capture device present: %w", capture.ErrDeviceUnavailable)
	}

	return &malgoStream{cfg: cfg, mctx: mctx}, nil
}

func (m *malgoStream) Start(onSamples func([]float32)) error {
	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = 1
	devCfg.SampleRate = uint32(m.cfg.SampleRate)
	devCfg.Alsa.NoMMap = 1

	if m.cfg.Device != (capture.Device{}) {
		info, err := m.resolveDevice(m.cfg.Device)
		if err != nil {
			return err
		}
		devCfg.Capture.DeviceID = info.ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onSamples(decodeF32LE(input))
		},
	}
	device, err := malgo.InitDevice(m.mctx.Context, devCfg, callbacks)
	if err != nil {
		return classifyMalgoErr("open capture device", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return classifyMalgoErr("start capture device", err)
	}
	m.device = device
	return nil
}

func (m *malgoStream) Close() error {
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.mctx != nil {
		if err := m.mctx.Uninit(); err != nil {
			slog.Warn("mic: audio context uninit", "err", err)
		}
		m.mctx.Free()
		m.mctx = nil
	}
	return nil
}

// resolveDevice matches the requested device against the enumerated
// capture devices by ID or by label.
func (m *malgoStream) resolveDevice(want capture.Device) (malgo.DeviceInfo, error) {
	infos, err := m.mctx.Context.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("mic: enumerate capture devices: %w: %v", capture.ErrEngineInit, err)
	}
	for _, info := range infos {
		if deviceID(info) == want.ID || info.Name() == want.Label || info.Name() == want.ID {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("mic: capture device %q not found: %w", want.Label, capture.ErrDeviceUnavailable)
}

// ListDevices enumerates the capture devices visible to miniaudio.
func ListDevices() ([]capture.Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("mic: init audio context: %w: %v", capture.ErrEngineInit, err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Context.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("mic: enumerate capture devices: %w: %v", capture.ErrEngineInit, err)
	}
	devices := make([]capture.Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, capture.Device{ID: deviceID(info), Label: info.Name()})
	}
	return devices, nil
}

func deviceID(info malgo.DeviceInfo) string {
	return fmt.Sprintf("%x", info.ID)
}

// classifyMalgoErr maps miniaudio failures onto the capture error
// taxonomy. miniaudio reports errors as strings, so this is substring
// matching by necessity.
func classifyMalgoErr(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied") || strings.Contains(msg, "permission"):
		return fmt.Errorf("mic: %s: %w: %v", op, capture.ErrPermissionDenied, err)
	case strings.Contains(msg, "no device") || strings.Contains(msg, "device not found") || strings.Contains(msg, "no backend"):
		return fmt.Errorf("mic: %s: %w: %v", op, capture.ErrDeviceUnavailable, err)
	default:
		return fmt.Errorf("mic: %s: %w: %v", op, capture.ErrEngineInit, err)
	}
}

// decodeF32LE reinterprets a raw device callback buffer as mono float32
// samples.
func decodeF32LE(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
