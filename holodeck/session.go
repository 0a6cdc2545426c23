// Package holodeck wires the editor components around one shared asset
// store.
package holodeck

import (
	"context"
	"sync"

	"holodeck/assets"
	"holodeck/audio"
	"holodeck/client"
	"holodeck/editor"
	"holodeck/library"
	"holodeck/logging"
	"holodeck/mixer"
	"holodeck/scene"
	"holodeck/state"
)

// Options override the default render and audio backends.
type Options struct {
	Loader scene.Loader
	Engine audio.Engine
	Graph  *scene.Graph
}

// Session owns every component of one editor instance. Store changes are
// fanned out to the scene, the transform editor, the preview and the mixer.
type Session struct {
	Client  *client.Client
	Store   *state.Store
	Scene   *scene.Graph
	Sync    *scene.Synchronizer
	Editor  *editor.Editor
	Mixer   *mixer.Mixer
	Preview *mixer.Preview
	Library *library.Library

	log         *logging.Logger
	unsubscribe func()
	closeOnce   sync.Once
}

func New(c *client.Client, opts Options, log *logging.Logger) *Session {
	log = logging.OrNop(log)
	if opts.Loader == nil {
		opts.Loader = scene.NewHTTPLoader(nil)
	}
	if opts.Engine == nil {
		opts.Engine = audio.NewSilentEngine()
	}
	if opts.Graph == nil {
		opts.Graph = scene.NewViewport()
	}

	store := state.New(c, log)
	syncer := scene.NewSynchronizer(opts.Loader, opts.Graph, c.FileURL, log)
	s := &Session{
		Client:  c,
		Store:   store,
		Scene:   opts.Graph,
		Sync:    syncer,
		Editor:  editor.New(c, syncer, store, log),
		Mixer:   mixer.New(opts.Engine, c.FileURL, log),
		Preview: mixer.NewPreview(opts.Engine, c.FileURL, log),
		Library: library.New(c, store, log),
		log:     log.With("component", "session"),
	}

	s.unsubscribe = store.Subscribe(s.onStoreChange)
	syncer.OnChange(s.onBindingChange)
	return s
}

// Start performs the store's initial refresh.
func (s *Session) Start(ctx context.Context) error {
	return s.Store.Activate(ctx)
}

func (s *Session) onStoreChange(kind state.EventKind, snap state.Snapshot) {
	switch kind {
	case state.ListChanged:
		s.Sync.Reconcile(snap.Assets)
		s.dropMissingTracks(snap.Assets)
	case state.SelectionChanged:
		s.Editor.LoadFromSelection(snap.Selected)
		if id := selectedID(snap.Selected); id != s.Preview.AssetID() || id == 0 {
			if err := s.Preview.Show(snap.Selected); err != nil {
				s.log.Warn("preview unavailable", "asset_id", id, "error", err)
			}
		}
	}
}

// onBindingChange re-evaluates the editor when the selected model gains or
// loses its scene node.
func (s *Session) onBindingChange(id uint64, _ bool) {
	sel, ok := s.Store.Selected()
	if !ok || sel.ID != id {
		return
	}
	s.Editor.LoadFromSelection(&sel)
}

func (s *Session) dropMissingTracks(list []assets.Asset) {
	present := make(map[uint64]bool, len(list))
	for _, a := range list {
		present[a.ID] = true
	}
	for _, t := range s.Mixer.Tracks() {
		if !present[t.AssetID] {
			_ = s.Mixer.RemoveTrack(t.AssetID)
		}
	}
}

// Close unsubscribes from the store and releases scene and audio resources.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.Sync.Close()
		s.Sync.Wait()
		s.Preview.Close()
		s.Mixer.Close()
		s.Scene.Dispose()
		s.log.Debug("session closed")
	})
}

func selectedID(a *assets.Asset) uint64 {
	if a == nil {
		return 0
	}
	return a.ID
}
