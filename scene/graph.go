package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Geometry is GPU-side vertex data owned by a mesh node.
type Geometry struct {
	Name       string
	Primitives int
	disposed   bool
}

func (g *Geometry) Dispose()       { g.disposed = true }
func (g *Geometry) Disposed() bool { return g.disposed }

// Material is a GPU-side shading resource owned by a mesh node.
type Material struct {
	Name     string
	disposed bool
}

func (m *Material) Dispose()       { m.disposed = true }
func (m *Material) Disposed() bool { return m.disposed }

// Node is one object in the scene graph. A node with Geometry is a mesh;
// without it, a group.
type Node struct {
	Name    string
	AssetID uint64
	Pose    Pose

	Geometry  *Geometry
	Materials []*Material

	CastShadow    bool
	ReceiveShadow bool

	Children []*Node
	parent   *Node
}

func NewGroup(name string) *Node {
	return &Node{Name: name, Pose: IdentityPose()}
}

func NewMesh(name string, geometry *Geometry, materials ...*Material) *Node {
	return &Node{Name: name, Pose: IdentityPose(), Geometry: geometry, Materials: materials}
}

func (n *Node) IsMesh() bool { return n.Geometry != nil }

func (n *Node) Parent() *Node { return n.parent }

// Add attaches child under n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.parent != nil {
		child.parent.remove(child)
	}
	child.parent = n
	n.Children = append(n.Children, child)
}

func (n *Node) remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Traverse visits n and every descendant depth-first.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Traverse(fn)
	}
}

// EnableShadows turns on shadow casting and receiving for every mesh below n.
func (n *Node) EnableShadows() {
	n.Traverse(func(c *Node) {
		if c.IsMesh() {
			c.CastShadow = true
			c.ReceiveShadow = true
		}
	})
}

// Dispose releases geometry and materials of n and all descendants.
func (n *Node) Dispose() {
	n.Traverse(func(c *Node) {
		if c.Geometry != nil {
			c.Geometry.Dispose()
		}
		for _, m := range c.Materials {
			m.Dispose()
		}
	})
}

// Graph is the scene root. Adding, removing and listing children is safe for
// concurrent use; the fields of attached nodes are not guarded by the graph.
type Graph struct {
	mu   sync.RWMutex
	root *Node
}

// NewGraph returns an empty scene.
func NewGraph() *Graph {
	return &Graph{root: NewGroup("scene")}
}

// NewViewport returns a scene with the editor's fixed furniture: a 20x20
// shadow-receiving ground plane and a grid helper.
func NewViewport() *Graph {
	g := NewGraph()
	ground := NewMesh("ground", &Geometry{Name: "plane-20x20", Primitives: 1}, &Material{Name: "ground"})
	ground.Pose.Rotation = mgl32.Vec3{-mgl32.DegToRad(90), 0, 0}
	ground.ReceiveShadow = true
	g.Add(ground)
	g.Add(NewGroup("grid"))
	return g
}

func (g *Graph) Add(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.root.Add(n)
}

// Remove detaches n from the root and reports whether it was there.
func (g *Graph) Remove(n *Node) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.root.remove(n)
}

func (g *Graph) Contains(n *Node) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.root.Children {
		if c == n {
			return true
		}
	}
	return false
}

// Children returns the top-level nodes.
func (g *Graph) Children() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, len(g.root.Children))
	copy(out, g.root.Children)
	return out
}

// Models returns the top-level nodes bound to an asset.
func (g *Graph) Models() []*Node {
	var out []*Node
	for _, n := range g.Children() {
		if n.AssetID != 0 {
			out = append(out, n)
		}
	}
	return out
}

// Dispose releases every resource in the scene and empties it.
func (g *Graph) Dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.root.Children {
		c.Dispose()
		c.parent = nil
	}
	g.root.Children = nil
}
