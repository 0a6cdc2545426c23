package mixer

import (
	"sync"

	"holodeck/assets"
	"holodeck/audio"
	"holodeck/logging"
)

// PreviewVolume is the volume of the library preview handle.
const PreviewVolume = 0.7

// Preview holds at most one loaded, not auto-played, audio handle for the
// asset selected in the library.
type Preview struct {
	engine  audio.Engine
	fileURL func(string) string
	log     *logging.Logger

	mu      sync.Mutex
	assetID uint64
	handle  audio.Handle
}

func NewPreview(engine audio.Engine, fileURL func(string) string, log *logging.Logger) *Preview {
	return &Preview{
		engine:  engine,
		fileURL: fileURL,
		log:     logging.OrNop(log).With("component", "preview"),
	}
}

// Show stops and releases the current handle, then loads a for an AUDIO
// asset. Any other asset, or nil, leaves the preview empty.
func (p *Preview) Show(a *assets.Asset) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseLocked()
	if a == nil || !a.IsAudio() {
		return nil
	}
	h, err := p.engine.Open(p.fileURL(a.FilePath), audio.Options{Volume: PreviewVolume})
	if err != nil {
		p.log.Error("open preview failed", "asset_id", a.ID, "error", err)
		return err
	}
	p.assetID = a.ID
	p.handle = h
	return nil
}

// AssetID is the previewed asset, or 0.
func (p *Preview) AssetID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assetID
}

func (p *Preview) Play() {
	if h := p.current(); h != nil && !h.Playing() {
		h.Play()
	}
}

func (p *Preview) Pause() {
	if h := p.current(); h != nil && h.Playing() {
		h.Pause()
	}
}

func (p *Preview) Stop() {
	if h := p.current(); h != nil {
		h.Stop()
	}
}

func (p *Preview) Playing() bool {
	h := p.current()
	return h != nil && h.Playing()
}

// Close releases the handle.
func (p *Preview) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked()
}

func (p *Preview) current() audio.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

func (p *Preview) releaseLocked() {
	if p.handle == nil {
		return
	}
	p.handle.Stop()
	if err := p.handle.Unload(); err != nil {
		p.log.Warn("unload preview failed", "asset_id", p.assetID, "error", err)
	}
	p.handle = nil
	p.assetID = 0
}
