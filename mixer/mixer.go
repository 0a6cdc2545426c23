// Package mixer mixes several audio assets and previews a single one.
package mixer

import (
	"errors"
	"fmt"
	"sync"

	"holodeck/assets"
	"holodeck/audio"
	"holodeck/logging"
)

// DefaultVolume is the volume of a newly added track.
const DefaultVolume = 0.5

var ErrNoTrack = errors.New("mixer: no such track")

// Track is the observable state of one mixer channel.
type Track struct {
	AssetID uint64
	Name    string
	URL     string
	Volume  float64
	Playing bool
}

type eventKind int

const (
	evPlay eventKind = iota + 1
	evPause
	evStop
	evEnd
	evVolume
)

type event struct {
	id     uint64
	kind   eventKind
	volume float64
}

type channel struct {
	state  Track
	handle audio.Handle
}

// Mixer owns one audio handle per track. Engine callbacks and volume changes
// are funnelled through reduce, the only place track state is written.
type Mixer struct {
	engine  audio.Engine
	fileURL func(filePath string) string
	log     *logging.Logger

	mu       sync.Mutex
	channels map[uint64]*channel
	order    []uint64
	master   bool
}

func New(engine audio.Engine, fileURL func(string) string, log *logging.Logger) *Mixer {
	return &Mixer{
		engine:   engine,
		fileURL:  fileURL,
		log:      logging.OrNop(log).With("component", "mixer"),
		channels: make(map[uint64]*channel),
	}
}

// AddTrack adds a paused track for an AUDIO asset. It reports false, without
// error, for other asset types and for assets already in the mixer.
func (m *Mixer) AddTrack(a assets.Asset) (bool, error) {
	if !a.IsAudio() {
		return false, nil
	}

	m.mu.Lock()
	if _, ok := m.channels[a.ID]; ok {
		m.mu.Unlock()
		return false, nil
	}
	url := m.fileURL(a.FilePath)
	ch := &channel{state: Track{AssetID: a.ID, Name: a.Name, URL: url, Volume: DefaultVolume}}
	m.channels[a.ID] = ch
	m.order = append(m.order, a.ID)
	m.mu.Unlock()

	id := a.ID
	h, err := m.engine.Open(url, audio.Options{
		Volume:  DefaultVolume,
		OnPlay:  func() { m.reduce(event{id: id, kind: evPlay}) },
		OnPause: func() { m.reduce(event{id: id, kind: evPause}) },
		OnStop:  func() { m.reduce(event{id: id, kind: evStop}) },
		OnEnd:   func() { m.reduce(event{id: id, kind: evEnd}) },
	})
	if err != nil {
		m.drop(id)
		m.log.Error("open track failed", "asset_id", id, "url", url, "error", err)
		return false, fmt.Errorf("mixer: add track %d: %w", id, err)
	}

	m.mu.Lock()
	if m.channels[id] != ch {
		// Removed while opening.
		m.mu.Unlock()
		_ = h.Unload()
		return false, nil
	}
	ch.handle = h
	m.mu.Unlock()

	m.log.Debug("track added", "asset_id", id)
	return true, nil
}

// RemoveTrack releases the track's handle and drops it.
func (m *Mixer) RemoveTrack(id uint64) error {
	ch := m.drop(id)
	if ch == nil {
		return fmt.Errorf("%w: %d", ErrNoTrack, id)
	}
	if ch.handle != nil {
		if err := ch.handle.Unload(); err != nil {
			m.log.Warn("unload track failed", "asset_id", id, "error", err)
		}
	}
	return nil
}

// TogglePlayPause pauses the track if the engine says it is playing and plays
// it otherwise.
func (m *Mixer) TogglePlayPause(id uint64) error {
	h, err := m.handle(id)
	if err != nil {
		return err
	}
	if h.Playing() {
		h.Pause()
	} else {
		h.Play()
	}
	return nil
}

// SetVolume clamps v to [0,1] and applies it to the live handle.
func (m *Mixer) SetVolume(id uint64, v float64) error {
	h, err := m.handle(id)
	if err != nil {
		return err
	}
	v = audio.ClampVolume(v)
	h.SetVolume(v)
	m.reduce(event{id: id, kind: evVolume, volume: v})
	return nil
}

// ToggleMasterPlayPause flips the master flag. Turning it on plays every
// track that is not playing; turning it off pauses every track that is. The
// flag is not updated by individual toggles.
func (m *Mixer) ToggleMasterPlayPause() bool {
	m.mu.Lock()
	m.master = !m.master
	on := m.master
	handles := m.handlesLocked()
	m.mu.Unlock()

	for _, h := range handles {
		switch {
		case on && !h.Playing():
			h.Play()
		case !on && h.Playing():
			h.Pause()
		}
	}
	return on
}

func (m *Mixer) MasterPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.master
}

// Tracks returns the tracks in the order they were added.
func (m *Mixer) Tracks() []Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Track, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.channels[id].state)
	}
	return out
}

func (m *Mixer) Track(id uint64) (Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return Track{}, false
	}
	return ch.state, true
}

// Available filters list down to AUDIO assets not yet in the mixer.
func (m *Mixer) Available(list []assets.Asset) []assets.Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []assets.Asset
	for _, a := range list {
		if _, ok := m.channels[a.ID]; a.IsAudio() && !ok {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Close unloads every track.
func (m *Mixer) Close() {
	m.mu.Lock()
	handles := m.handlesLocked()
	m.channels = make(map[uint64]*channel)
	m.order = nil
	m.mu.Unlock()

	for _, h := range handles {
		_ = h.Unload()
	}
}

func (m *Mixer) reduce(ev event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[ev.id]
	if !ok {
		return
	}
	switch ev.kind {
	case evPlay:
		ch.state.Playing = true
	case evPause, evStop, evEnd:
		ch.state.Playing = false
	case evVolume:
		ch.state.Volume = ev.volume
	}
}

func (m *Mixer) handle(id uint64) (audio.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok || ch.handle == nil {
		return nil, fmt.Errorf("%w: %d", ErrNoTrack, id)
	}
	return ch.handle, nil
}

func (m *Mixer) handlesLocked() []audio.Handle {
	out := make([]audio.Handle, 0, len(m.order))
	for _, id := range m.order {
		if h := m.channels[id].handle; h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (m *Mixer) drop(id uint64) *channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil
	}
	delete(m.channels, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return ch
}
