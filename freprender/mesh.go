package freprender

import (
	"io"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"

	"github.com/frepkit/frep/frepeval"
)

// RenderMesh discretizes the field over region into a triangle soup using
// the settings' algorithm. The region must be non-degenerate and should
// strictly contain the surface of interest; surface crossing the region
// boundary is clipped with open borders.
func RenderMesh(s frepeval.SDF3, region ms3.Box, cfg Settings) ([]ms3.Triangle, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if err := validRegion3(region); err != nil {
		return nil, err
	}
	if err := validateAlgorithm(cfg.Algorithm); err != nil {
		return nil, err
	}
	res := cfg.cellSize()
	// Offset the sample lattice off the region frame so that axis-aligned
	// surfaces do not coincide with cell faces.
	bb := region.ScaleCentered(ms3.Vec{X: 1.01, Y: 1.01, Z: 1.01})
	bb = bb.Add(ms3.Vec{X: -res / 2, Y: -res / 2, Z: -res / 2})
	top, origin, err := makeICube(bb, res)
	if err != nil {
		return nil, err
	}
	leaves, err := collectLeaves(s, top, origin, res, cfg.Workers)
	if err != nil {
		return nil, err
	}
	if _, ok := s.(IntervalEvaluator); !ok {
		// No interval support: thin the full decomposition by center
		// distance, keeping cells close enough to own or neighbor a crossing.
		leaves, err = pruneNoSurface(s, leaves, origin, res, 2, cfg.Workers)
		if err != nil {
			return nil, err
		}
	}
	switch cfg.Algorithm {
	case DualContouring:
		return renderDualContour(s, leaves, origin, res, cfg, false)
	case Hybrid:
		return renderDualContour(s, leaves, origin, res, cfg, true)
	default:
		return renderIsoSimplex(s, leaves, origin, res, cfg)
	}
}

// MeshRenderer adapts RenderMesh to the streaming [Renderer] interface. The
// mesh is produced on the first ReadTriangles call and then drained.
type MeshRenderer struct {
	s      frepeval.SDF3
	region ms3.Box
	cfg    Settings
	tris   []ms3.Triangle
	off    int
	done   bool
}

// NewMeshRenderer validates the settings eagerly and defers meshing to the
// first read.
func NewMeshRenderer(s frepeval.SDF3, region ms3.Box, cfg Settings) (*MeshRenderer, error) {
	if _, err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := validRegion3(region); err != nil {
		return nil, err
	}
	return &MeshRenderer{s: s, region: region, cfg: cfg}, nil
}

// ReadTriangles implements [Renderer].
func (mr *MeshRenderer) ReadTriangles(dst []ms3.Triangle, userData any) (int, error) {
	if len(dst) == 0 {
		return 0, io.ErrShortBuffer
	}
	if !mr.done {
		tris, err := RenderMesh(mr.s, mr.region, mr.cfg)
		if err != nil {
			return 0, err
		}
		mr.tris = tris
		mr.done = true
	}
	if mr.off >= len(mr.tris) {
		return 0, io.EOF
	}
	n := copy(dst, mr.tris[mr.off:])
	mr.off += n
	return n, nil
}

// TriangleMesh is an indexed mesh with deduplicated vertices. Triangles are
// consecutive index triplets; every index is below the vertex count.
type TriangleMesh struct {
	Vertices []ms3.Vec
	Indices  []uint32
}

// TriangleCount returns the number of triangles in the mesh.
func (m *TriangleMesh) TriangleCount() int { return len(m.Indices) / 3 }

// Triangle returns the i-th triangle.
func (m *TriangleMesh) Triangle(i int) ms3.Triangle {
	return ms3.Triangle{
		m.Vertices[m.Indices[3*i]],
		m.Vertices[m.Indices[3*i+1]],
		m.Vertices[m.Indices[3*i+2]],
	}
}

// BuildTriangleMesh indexes a triangle soup, welding bit-identical vertices.
func BuildTriangleMesh(tris []ms3.Triangle) *TriangleMesh {
	m := &TriangleMesh{Indices: make([]uint32, 0, 3*len(tris))}
	seen := make(map[[3]uint32]uint32, len(tris))
	for _, tri := range tris {
		for _, v := range tri {
			key := [3]uint32{
				math32.Float32bits(v.X),
				math32.Float32bits(v.Y),
				math32.Float32bits(v.Z),
			}
			idx, ok := seen[key]
			if !ok {
				idx = uint32(len(m.Vertices))
				seen[key] = idx
				m.Vertices = append(m.Vertices, v)
			}
			m.Indices = append(m.Indices, idx)
		}
	}
	return m
}
