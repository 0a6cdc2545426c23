package scene

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// Loader fetches and parses a model into a node hierarchy.
type Loader interface {
	Load(ctx context.Context, url string) (*Node, error)
}

// maxModelSize bounds a single model or buffer download.
const maxModelSize = 256 << 20

// HTTPLoader loads glTF and GLB models over HTTP. External buffers and images
// are resolved relative to the model URL.
type HTTPLoader struct {
	client *http.Client
}

func NewHTTPLoader(client *http.Client) *HTTPLoader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPLoader{client: client}
}

func (l *HTTPLoader) Load(ctx context.Context, url string) (*Node, error) {
	data, err := l.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	base := url
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[:i]
	}
	doc := new(gltf.Document)
	dec := gltf.NewDecoderFS(bytes.NewReader(data), &remoteFS{ctx: ctx, loader: l, base: base})
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("scene: decode %s: %w", url, err)
	}
	return buildNode(doc, path.Base(url))
}

func (l *HTTPLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scene: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scene: fetch %s: %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxModelSize+1))
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", url, err)
	}
	if len(data) > maxModelSize {
		return nil, fmt.Errorf("scene: %s exceeds %d bytes", url, maxModelSize)
	}
	return data, nil
}

// buildNode converts the default scene of doc into a group node.
func buildNode(doc *gltf.Document, name string) (*Node, error) {
	root := NewGroup(name)

	var roots []int
	switch {
	case doc.Scene != nil && *doc.Scene < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		// No scenes: treat every parentless node as a root.
		child := make(map[int]bool)
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				child[c] = true
			}
		}
		for i := range doc.Nodes {
			if !child[i] {
				roots = append(roots, i)
			}
		}
	}

	visiting := make(map[int]bool)
	for _, idx := range roots {
		n, err := convertNode(doc, idx, visiting)
		if err != nil {
			return nil, err
		}
		root.Add(n)
	}
	return root, nil
}

func convertNode(doc *gltf.Document, idx int, visiting map[int]bool) (*Node, error) {
	if idx < 0 || idx >= len(doc.Nodes) {
		return nil, fmt.Errorf("scene: node index %d out of range", idx)
	}
	if visiting[idx] {
		return nil, fmt.Errorf("scene: node %d is its own ancestor", idx)
	}
	visiting[idx] = true
	defer delete(visiting, idx)

	src := doc.Nodes[idx]
	out := NewGroup(src.Name)

	if m := matrix(src.MatrixOrDefault()); m != mgl32.Ident4() {
		out.Pose = PoseFromMatrix(m)
	} else {
		out.Pose = PoseFromTRS(src.TranslationOrDefault(), src.RotationOrDefault(), src.ScaleOrDefault())
	}

	if src.Mesh != nil && *src.Mesh < len(doc.Meshes) {
		mesh := doc.Meshes[*src.Mesh]
		out.Geometry = &Geometry{Name: mesh.Name, Primitives: len(mesh.Primitives)}
		for _, p := range mesh.Primitives {
			m := &Material{Name: "default"}
			if p.Material != nil && *p.Material < len(doc.Materials) {
				m.Name = doc.Materials[*p.Material].Name
			}
			out.Materials = append(out.Materials, m)
		}
	}

	for _, c := range src.Children {
		child, err := convertNode(doc, c, visiting)
		if err != nil {
			return nil, err
		}
		out.Add(child)
	}
	return out, nil
}

func matrix(v [16]float64) mgl32.Mat4 {
	var m mgl32.Mat4
	for i, f := range v {
		m[i] = float32(f)
	}
	return m
}

// remoteFS serves sibling resources of a model over HTTP.
type remoteFS struct {
	ctx    context.Context
	loader *HTTPLoader
	base   string
}

func (f *remoteFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, err := f.loader.fetch(f.ctx, f.base+"/"+name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &memFile{Reader: bytes.NewReader(data), name: path.Base(name), size: int64(len(data))}, nil
}

type memFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *memFile) Close() error               { return nil }
func (f *memFile) Name() string               { return f.name }
func (f *memFile) Size() int64                { return f.size }
func (f *memFile) Mode() fs.FileMode          { return 0o444 }
func (f *memFile) ModTime() time.Time         { return time.Time{} }
func (f *memFile) IsDir() bool                { return false }
func (f *memFile) Sys() any                   { return nil }
