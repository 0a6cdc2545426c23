package audio

import "sync"

// SilentEngine tracks playback state without producing sound. It backs the
// headless client when no audio device is available.
type SilentEngine struct {
	mu      sync.Mutex
	handles []*SilentHandle
}

func NewSilentEngine() *SilentEngine {
	return &SilentEngine{}
}

func (e *SilentEngine) Open(url string, opts Options) (Handle, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	h := &SilentHandle{url: url, opts: opts, volume: ClampVolume(opts.Volume)}
	e.mu.Lock()
	e.handles = append(e.handles, h)
	e.mu.Unlock()
	return h, nil
}

// Handles returns every handle opened so far, unloaded ones included.
func (e *SilentEngine) Handles() []*SilentHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*SilentHandle(nil), e.handles...)
}

type SilentHandle struct {
	url  string
	opts Options

	mu       sync.Mutex
	playing  bool
	volume   float64
	unloaded bool
}

func (h *SilentHandle) URL() string { return h.url }

func (h *SilentHandle) Play() {
	h.mu.Lock()
	if h.unloaded || h.playing {
		h.mu.Unlock()
		return
	}
	h.playing = true
	h.mu.Unlock()
	fire(h.opts.OnPlay)
}

func (h *SilentHandle) Pause() {
	h.mu.Lock()
	if !h.playing {
		h.mu.Unlock()
		return
	}
	h.playing = false
	h.mu.Unlock()
	fire(h.opts.OnPause)
}

func (h *SilentHandle) Stop() {
	h.mu.Lock()
	if h.unloaded {
		h.mu.Unlock()
		return
	}
	h.playing = false
	h.mu.Unlock()
	fire(h.opts.OnStop)
}

// Finish simulates the sound reaching its end.
func (h *SilentHandle) Finish() {
	h.mu.Lock()
	if !h.playing {
		h.mu.Unlock()
		return
	}
	h.playing = false
	h.mu.Unlock()
	fire(h.opts.OnEnd)
}

func (h *SilentHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *SilentHandle) SetVolume(v float64) {
	h.mu.Lock()
	h.volume = ClampVolume(v)
	h.mu.Unlock()
}

func (h *SilentHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *SilentHandle) Unload() error {
	h.mu.Lock()
	h.unloaded = true
	h.playing = false
	h.mu.Unlock()
	return nil
}

func (h *SilentHandle) Unloaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloaded
}
