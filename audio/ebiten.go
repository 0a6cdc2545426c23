//go:build cgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"holodeck/logging"
)

// SampleRate is used when this package creates the process audio context.
const SampleRate = 44100

const (
	maxAudioSize = 128 << 20
	endPoll      = 100 * time.Millisecond
)

var (
	contextOnce sync.Once
	audioContext *audio.Context
)

// sharedContext returns the process-wide audio context. Ebiten allows only
// one.
func sharedContext() *audio.Context {
	contextOnce.Do(func() {
		if c := audio.CurrentContext(); c != nil {
			audioContext = c
			return
		}
		audioContext = audio.NewContext(SampleRate)
	})
	return audioContext
}

// EbitenEngine streams mp3, wav and ogg files through Ebiten's audio package.
type EbitenEngine struct {
	client *http.Client
	log    *logging.Logger
}

func NewEbitenEngine(client *http.Client, log *logging.Logger) *EbitenEngine {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &EbitenEngine{client: client, log: logging.OrNop(log).With("component", "audio")}
}

// Open starts fetching url in the background and returns at once.
func (e *EbitenEngine) Open(url string, opts Options) (Handle, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &ebitenHandle{
		opts:   opts,
		volume: ClampVolume(opts.Volume),
		cancel: cancel,
	}
	go h.load(ctx, e, url)
	return h, nil
}

func (e *EbitenEngine) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audio: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio: fetch %s: %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize+1))
	if err != nil {
		return nil, fmt.Errorf("audio: read %s: %w", url, err)
	}
	if len(data) > maxAudioSize {
		return nil, fmt.Errorf("audio: %s exceeds %d bytes", url, maxAudioSize)
	}
	return data, nil
}

type ebitenHandle struct {
	opts   Options
	cancel context.CancelFunc

	mu          sync.Mutex
	player      *audio.Player
	volume      float64
	pendingPlay bool
	playing     bool
	polling     bool
	closed      bool
}

func (h *ebitenHandle) load(ctx context.Context, e *EbitenEngine, url string) {
	data, err := e.fetch(ctx, url)
	if err != nil {
		if ctx.Err() == nil {
			e.log.Error("load audio failed", "url", url, "error", err)
		}
		return
	}

	actx := sharedContext()
	stream, err := decode(actx.SampleRate(), url, data)
	if err != nil {
		e.log.Error("decode audio failed", "url", url, "error", err)
		return
	}
	player, err := actx.NewPlayer(stream)
	if err != nil {
		e.log.Error("create audio player failed", "url", url, "error", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = player.Close()
		return
	}
	player.SetVolume(h.volume)
	h.player = player
	start := h.pendingPlay
	h.mu.Unlock()

	e.log.Debug("audio loaded", "url", url)
	if start {
		h.Play()
	}
}

func (h *ebitenHandle) Play() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.player == nil {
		h.pendingPlay = true
		h.mu.Unlock()
		return
	}
	h.pendingPlay = false
	if h.player.IsPlaying() {
		h.mu.Unlock()
		return
	}
	h.player.Play()
	h.playing = true
	if !h.polling {
		h.polling = true
		go h.watchEnd()
	}
	h.mu.Unlock()
	fire(h.opts.OnPlay)
}

func (h *ebitenHandle) Pause() {
	h.mu.Lock()
	h.pendingPlay = false
	if h.player == nil || !h.player.IsPlaying() {
		h.mu.Unlock()
		return
	}
	h.player.Pause()
	h.playing = false
	h.mu.Unlock()
	fire(h.opts.OnPause)
}

func (h *ebitenHandle) Stop() {
	h.mu.Lock()
	h.pendingPlay = false
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.player != nil {
		h.player.Pause()
		_ = h.player.Rewind()
	}
	h.playing = false
	h.mu.Unlock()
	fire(h.opts.OnStop)
}

// Playing reports true for a play requested before loading finished, so a
// second toggle cancels it instead of queueing it again.
func (h *ebitenHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.player == nil {
		return h.pendingPlay
	}
	return h.player.IsPlaying()
}

func (h *ebitenHandle) SetVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = ClampVolume(v)
	if h.player != nil {
		h.player.SetVolume(h.volume)
	}
}

func (h *ebitenHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *ebitenHandle) Unload() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.playing = false
	h.pendingPlay = false
	p := h.player
	h.player = nil
	h.mu.Unlock()

	h.cancel()
	if p != nil {
		return p.Close()
	}
	return nil
}

// watchEnd polls the player while it should be playing and reports the end
// of the stream.
func (h *ebitenHandle) watchEnd() {
	t := time.NewTicker(endPoll)
	defer t.Stop()
	for range t.C {
		h.mu.Lock()
		if h.closed || !h.playing {
			h.polling = false
			h.mu.Unlock()
			return
		}
		if h.player.IsPlaying() {
			h.mu.Unlock()
			continue
		}
		h.playing = false
		h.polling = false
		_ = h.player.Rewind()
		h.mu.Unlock()
		fire(h.opts.OnEnd)
		return
	}
}

// decode picks a decoder from the file extension, falling back to the
// leading magic bytes.
func decode(sampleRate int, source string, data []byte) (io.ReadSeeker, error) {
	r := bytes.NewReader(data)
	switch formatOf(source, data) {
	case "mp3":
		s, err := mp3.DecodeWithSampleRate(sampleRate, r)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "wav":
		s, err := wav.DecodeWithSampleRate(sampleRate, r)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "ogg":
		s, err := vorbis.DecodeWithSampleRate(sampleRate, r)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, source)
	}
}

func formatOf(source string, data []byte) string {
	name := source
	if u, err := url.Parse(source); err == nil {
		name = u.Path
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		return "mp3"
	case ".wav", ".wave":
		return "wav"
	case ".ogg", ".oga":
		return "ogg"
	}
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return "wav"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg"
	case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return ""
}
