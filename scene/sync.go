package scene

import (
	"context"
	"sort"
	"sync"

	"holodeck/assets"
	"holodeck/logging"
)

type bindingState int

const (
	stateLoading bindingState = iota + 1
	stateBound
)

type binding struct {
	state bindingState
	node  *Node
	gen   uint64
}

// ChangeFunc is told when an asset gains or loses its scene node.
type ChangeFunc func(assetID uint64, bound bool)

// Synchronizer keeps one scene node per 3D model asset. Each Reconcile starts
// loads for new models, moves already-bound nodes to their stored transform,
// and removes nodes for assets that are gone. Loads finish asynchronously and
// are checked against the most recent asset list before they are attached.
type Synchronizer struct {
	loader  Loader
	graph   *Graph
	fileURL func(filePath string) string
	log     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	latest    map[uint64]assets.Asset
	bindings  map[uint64]*binding
	gen       uint64
	closed    bool
	listeners []ChangeFunc
}

// NewSynchronizer builds a synchronizer that resolves asset file paths with
// fileURL and attaches loaded nodes to graph.
func NewSynchronizer(loader Loader, graph *Graph, fileURL func(string) string, log *logging.Logger) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		loader:   loader,
		graph:    graph,
		fileURL:  fileURL,
		log:      logging.OrNop(log).With("component", "scene"),
		ctx:      ctx,
		cancel:   cancel,
		latest:   make(map[uint64]assets.Asset),
		bindings: make(map[uint64]*binding),
	}
}

// OnChange registers fn. It is called outside the synchronizer lock.
func (s *Synchronizer) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reconcile brings the scene in line with list.
func (s *Synchronizer) Reconcile(list []assets.Asset) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.latest = make(map[uint64]assets.Asset, len(list))
	for _, a := range list {
		if !a.Is3DModel() || a.FilePath == "" {
			continue
		}
		s.latest[a.ID] = a.Clone()

		b, ok := s.bindings[a.ID]
		switch {
		case !ok:
			s.startLoadLocked(a)
		case b.state == stateBound:
			b.node.Pose = PoseFromTransform(a.Transform())
		}
	}

	var removed []uint64
	for id, b := range s.bindings {
		if _, ok := s.latest[id]; ok {
			continue
		}
		if b.state == stateBound {
			s.graph.Remove(b.node)
			b.node.Dispose()
			removed = append(removed, id)
			s.log.Debug("model removed", "asset_id", id)
		}
		// A loading entry is simply forgotten; its load sees the stale
		// generation on completion and disposes its result.
		delete(s.bindings, id)
	}
	fns := s.listeners
	s.mu.Unlock()

	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	for _, id := range removed {
		notify(fns, id, false)
	}
}

func (s *Synchronizer) startLoadLocked(a assets.Asset) {
	s.gen++
	gen := s.gen
	s.bindings[a.ID] = &binding{state: stateLoading, gen: gen}
	url := s.fileURL(a.FilePath)

	s.log.Debug("loading model", "asset_id", a.ID, "url", url)
	s.wg.Add(1)
	go func(id uint64) {
		defer s.wg.Done()
		node, err := s.loader.Load(s.ctx, url)
		s.finishLoad(id, gen, node, err)
	}(a.ID)
}

func (s *Synchronizer) finishLoad(id, gen uint64, node *Node, err error) {
	s.mu.Lock()
	b, ok := s.bindings[id]
	current := ok && b.gen == gen && !s.closed

	if err != nil {
		if current {
			delete(s.bindings, id)
		}
		s.mu.Unlock()
		s.log.Error("load model failed", "asset_id", id, "error", err)
		return
	}
	if !current {
		s.mu.Unlock()
		if node != nil {
			node.Dispose()
		}
		s.log.Debug("discarded stale model", "asset_id", id)
		return
	}
	if node == nil {
		node = NewGroup("")
	}

	node.AssetID = id
	node.Pose = PoseFromTransform(s.latest[id].Transform())
	node.EnableShadows()
	s.graph.Add(node)
	b.state = stateBound
	b.node = node
	fns := s.listeners
	s.mu.Unlock()

	s.log.Debug("model bound", "asset_id", id)
	notify(fns, id, true)
}

// Bound reports whether id has a node in the scene.
func (s *Synchronizer) Bound(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[id]
	return ok && b.state == stateBound
}

// Loading reports whether a load for id is in flight.
func (s *Synchronizer) Loading(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[id]
	return ok && b.state == stateLoading
}

// Pose returns a copy of the pose of the node bound to id. Use it instead of
// reading Node(id).Pose while Reconcile may run on another goroutine.
func (s *Synchronizer) Pose(id uint64) (Pose, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[id]
	if !ok || b.state != stateBound {
		return Pose{}, false
	}
	return b.node.Pose, true
}

// Node returns the scene node bound to id. Its fields are written by
// Reconcile under the synchronizer's lock; concurrent readers should use Pose.
func (s *Synchronizer) Node(id uint64) (*Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[id]
	if !ok || b.state != stateBound {
		return nil, false
	}
	return b.node, true
}

// BoundIDs lists the ids with a node in the scene, ascending.
func (s *Synchronizer) BoundIDs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, 0, len(s.bindings))
	for id, b := range s.bindings {
		if b.state == stateBound {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Wait blocks until every load started so far has finished.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// Close detaches and disposes every bound node and cancels in-flight loads.
// Loads that still complete are disposed.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var removed []uint64
	for id, b := range s.bindings {
		if b.state == stateBound {
			s.graph.Remove(b.node)
			b.node.Dispose()
			removed = append(removed, id)
		}
	}
	s.bindings = make(map[uint64]*binding)
	fns := s.listeners
	s.mu.Unlock()

	s.cancel()
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	for _, id := range removed {
		notify(fns, id, false)
	}
}

func notify(fns []ChangeFunc, id uint64, bound bool) {
	for _, fn := range fns {
		fn(id, bound)
	}
}
