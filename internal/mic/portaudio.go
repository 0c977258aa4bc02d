package mic

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
)

// portAudioStream captures through PortAudio. It always records from the
// default input device; per-device selection is a miniaudio feature.
type portAudioStream struct {
	cfg    Config
	stream *portaudio.Stream
}

func openPortAudioStream(cfg Config) (deviceStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("mic: init portaudio: %w: %v", capture.ErrEngineInit, err)
	}
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("mic: no default input device: %w: %v", capture.ErrDeviceUnavailable, err)
	}
	return &portAudioStream{cfg: cfg}, nil
}

func (p *portAudioStream) Start(onSamples func([]float32)) error {
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(p.cfg.SampleRate), portaudio.FramesPerBufferUnspecified,
		func(in []float32) {
			// The callback buffer is reused by PortAudio after return.
			block := make([]float32, len(in))
			copy(block, in)
			onSamples(block)
		})
	if err != nil {
		return fmt.Errorf("mic: open portaudio stream: %w: %v", capture.ErrEngineInit, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("mic: start portaudio stream: %w: %v", capture.ErrDeviceUnavailable, err)
	}
	p.stream = stream
	return nil
}

func (p *portAudioStream) Close() error {
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			slog.Warn("mic: portaudio stream stop", "err", err)
		}
		if err := p.stream.Close(); err != nil {
			slog.Warn("mic: portaudio stream close", "err", err)
		}
		p.stream = nil
	}
	if err := portaudio.Terminate(); err != nil {
		slog.Warn("mic: portaudio terminate", "err", err)
	}
	return nil
}
