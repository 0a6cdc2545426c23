// Package state holds the editor's shared asset cache and selection.
//
// A Store is created once per session and handed to every component that
// needs it. Reads return copies; writes go through the mutation methods, which
// notify subscribers after the change is applied.
package state

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"holodeck/assets"
	"holodeck/logging"
)

var ErrNoLister = errors.New("state: no asset lister configured")

// Lister fetches the full asset list from the Asset Store.
type Lister interface {
	List(ctx context.Context) ([]assets.Asset, error)
}

type EventKind int

const (
	// ListChanged fires when the cached list is replaced or edited.
	ListChanged EventKind = iota + 1
	// SelectionChanged fires when the selected asset changes identity or value.
	SelectionChanged
	// StatusChanged fires when loading or error status changes.
	StatusChanged
)

func (k EventKind) String() string {
	switch k {
	case ListChanged:
		return "list_changed"
	case SelectionChanged:
		return "selection_changed"
	case StatusChanged:
		return "status_changed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Assets   []assets.Asset
	Selected *assets.Asset
	Loading  bool
	Err      error
}

// Listener receives change notifications. It runs on the goroutine that made
// the change, outside the store lock.
type Listener func(kind EventKind, snap Snapshot)

type Store struct {
	lister Lister
	log    *logging.Logger

	mu       sync.Mutex
	assets   []assets.Asset
	selected *assets.Asset
	loading  bool
	err      error

	listeners map[int]Listener
	nextID    int

	refreshes singleflight.Group
	activate  sync.Once
}

func New(lister Lister, log *logging.Logger) *Store {
	return &Store{
		lister:    lister,
		log:       logging.OrNop(log).With("component", "state"),
		assets:    []assets.Asset{},
		listeners: make(map[int]Listener),
	}
}

// Activate runs the initial Refresh exactly once per store.
func (s *Store) Activate(ctx context.Context) error {
	var err error
	ran := false
	s.activate.Do(func() {
		ran = true
		err = s.Refresh(ctx)
	})
	if !ran {
		return nil
	}
	return err
}

// Refresh replaces the cached list with the store's current list. Concurrent
// calls share one request, which is not cancelled by any single caller; a
// caller whose ctx ends stops waiting and gets ctx.Err(). On failure the
// previous list is kept and the error is recorded.
func (s *Store) Refresh(ctx context.Context) error {
	if s.lister == nil {
		return ErrNoLister
	}
	shared := context.WithoutCancel(ctx)
	ch := s.refreshes.DoChan("assets", func() (interface{}, error) {
		s.mu.Lock()
		s.loading = true
		s.err = nil
		s.mu.Unlock()
		s.emit(StatusChanged)

		list, err := s.lister.List(shared)

		s.mu.Lock()
		s.loading = false
		if err != nil {
			s.err = err
			s.mu.Unlock()
			s.log.Error("fetch assets failed", "error", err)
			s.emit(StatusChanged)
			return nil, err
		}
		s.assets = cloneAll(list)
		s.mu.Unlock()
		s.emit(ListChanged, StatusChanged)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Assets returns a copy of the cached list.
func (s *Store) Assets() []assets.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.assets)
}

// Find looks up a cached asset by id.
func (s *Store) Find(id uint64) (assets.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assets {
		if a.ID == id {
			return a.Clone(), true
		}
	}
	return assets.Asset{}, false
}

func (s *Store) Selected() (assets.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return assets.Asset{}, false
	}
	return s.selected.Clone(), true
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Select changes the selection. nil clears it. The Asset Store is not touched.
func (s *Store) Select(a *assets.Asset) {
	s.mu.Lock()
	if a == nil {
		s.selected = nil
	} else {
		c := a.Clone()
		s.selected = &c
	}
	s.mu.Unlock()
	s.emit(SelectionChanged)
}

// SelectID selects the cached asset with id and reports whether it exists.
func (s *Store) SelectID(id uint64) bool {
	a, ok := s.Find(id)
	if !ok {
		return false
	}
	s.Select(&a)
	return true
}

// Remove drops id from the cached list and clears the selection if it pointed
// at id. It does not call the Asset Store.
func (s *Store) Remove(id uint64) {
	s.mu.Lock()
	kept := s.assets[:0:0]
	for _, a := range s.assets {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	s.assets = kept
	selectionCleared := false
	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
		selectionCleared = true
	}
	s.mu.Unlock()

	if selectionCleared {
		s.emit(ListChanged, SelectionChanged)
		return
	}
	s.emit(ListChanged)
}

// Update replaces the cached entry with the same id, and the selection too
// when it is that asset.
func (s *Store) Update(a assets.Asset) {
	s.mu.Lock()
	for i := range s.assets {
		if s.assets[i].ID == a.ID {
			s.assets[i] = a.Clone()
		}
	}
	selectionUpdated := false
	if s.selected != nil && s.selected.ID == a.ID {
		c := a.Clone()
		s.selected = &c
		selectionUpdated = true
	}
	s.mu.Unlock()

	if selectionUpdated {
		s.emit(ListChanged, SelectionChanged)
		return
	}
	s.emit(ListChanged)
}

// Subscribe registers fn for change notifications and returns a function
// that unregisters it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) emit(kinds ...EventKind) {
	s.mu.Lock()
	snap := s.snapshotLocked()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, kind := range kinds {
		for _, fn := range fns {
			fn(kind, snap)
		}
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Assets:  cloneAll(s.assets),
		Loading: s.loading,
		Err:     s.err,
	}
	if s.selected != nil {
		c := s.selected.Clone()
		snap.Selected = &c
	}
	return snap
}

func cloneAll(in []assets.Asset) []assets.Asset {
	out := make([]assets.Asset, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
