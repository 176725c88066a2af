// Package freprender discretizes signed distance fields into triangle
// meshes, planar contours and occupancy bitmaps.
//
// Meshing walks an adaptive octree over the requested region, pruning
// branches proven empty by interval analysis, and extracts the boundary with
// dual contouring, iso-simplex marching or a hybrid of the two. For a fixed
// field, region and settings the output is bit-identical across runs and
// worker counts.
package freprender

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"golang.org/x/sync/errgroup"

	"github.com/frepkit/frep/frepeval"
)

const sqrt3 = 1.73205080757

// Algorithm selects the boundary extraction method used by mesh rendering.
type Algorithm int

const (
	// DualContouring places one vertex per boundary cell by least-squares
	// against surface normals. Best feature preservation.
	DualContouring Algorithm = iota
	// IsoSimplex splits each boundary cell into six tetrahedra and marches
	// them. Most robust on fields with unreliable gradients.
	IsoSimplex
	// Hybrid uses dual contouring connectivity with simplex-style vertex
	// averaging, trading sharp features for guaranteed in-cell vertices.
	Hybrid
)

func (a Algorithm) String() string {
	switch a {
	case DualContouring:
		return "dual-contouring"
	case IsoSimplex:
		return "iso-simplex"
	case Hybrid:
		return "hybrid"
	}
	return "unknown"
}

// QualityNoMerge is the sentinel [Settings.Quality] value that fully disables
// boundary cell merging.
const QualityNoMerge float32 = 0.1

// Settings configures the discretization pipeline.
type Settings struct {
	// Resolution bounds cell size: subdivision halts once the cell edge is
	// below 1/Resolution. Must be positive.
	Resolution float32
	// Quality controls boundary cell merging. Higher values restrict merging
	// to regions where the surface is near planar; [QualityNoMerge] disables
	// merging. Zero defaults to 8.
	Quality float32
	// Workers sets parallel fan-out across independent octree branches.
	// Zero uses the host's default parallelism.
	Workers int
	// Algorithm selects the mesh boundary extraction method.
	Algorithm Algorithm
}

var (
	// ErrDegenerateRegion is returned when a render region has an upper bound
	// below its lower bound on any axis.
	ErrDegenerateRegion = errors.New("freprender: degenerate region, lower bound exceeds upper")
	errBadResolution    = errors.New("freprender: resolution must be a positive finite value")
)

func (cfg Settings) validate() (Settings, error) {
	if !(cfg.Resolution > 0) {
		return cfg, errBadResolution
	}
	if cfg.Quality == 0 {
		cfg.Quality = 8
	} else if cfg.Quality < 0 {
		return cfg, errors.New("freprender: negative quality")
	}
	if cfg.Workers < 0 {
		return cfg, errors.New("freprender: negative worker count")
	} else if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return cfg, nil
}

// cellSize is the octree leaf edge length for the settings.
func (cfg Settings) cellSize() float32 { return 1 / cfg.Resolution }

func validRegion3(b ms3.Box) error {
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
		return ErrDegenerateRegion
	}
	return nil
}

func validRegion2(b ms2.Box) error {
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y {
		return ErrDegenerateRegion
	}
	return nil
}

// IntervalEvaluator is implemented by fields that can conservatively bound
// their value over a box, enabling octree branch pruning. [frepeval.Evaluator]
// implements it; plain SDF3 fields are decomposed without pruning.
type IntervalEvaluator interface {
	EvaluateInterval(b ms3.Box) (frepeval.Interval, error)
}

// Renderer produces triangles from some implicit source until exhausted, at
// which point ReadTriangles returns io.EOF.
type Renderer interface {
	ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error)
}

// RenderAll reads the full contents of a Renderer and returns the slice read.
// It does not return error on io.EOF, like the io.ReadAll implementation.
func RenderAll(r Renderer, userData any) ([]ms3.Triangle, error) {
	const startSize = 4096
	var err error
	var nt int
	result := make([]ms3.Triangle, 0, startSize)
	buf := make([]ms3.Triangle, startSize)
	for {
		nt, err = r.ReadTriangles(buf, userData)
		if err == nil || err == io.EOF {
			result = append(result, buf[:nt]...)
		}
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// evalChunk bounds the batch size of parallel field evaluations.
const evalChunk = 4096

// evaluateParallel evaluates the field over pos with the worker pool. Output
// is written by index so results are independent of goroutine scheduling.
func evaluateParallel(s frepeval.SDF3, pos []ms3.Vec, dist []float32, workers int) error {
	if len(pos) != len(dist) {
		return errors.New("freprender: position and distance buffer length mismatch")
	} else if len(pos) == 0 {
		return nil
	}
	if workers <= 1 || len(pos) <= evalChunk {
		var vp frepeval.VecPool
		return s.Evaluate(pos, dist, &vp)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(pos); start += evalChunk {
		end := min(start+evalChunk, len(pos))
		g.Go(func() error {
			var vp frepeval.VecPool
			return s.Evaluate(pos[start:end], dist[start:end], &vp)
		})
	}
	return g.Wait()
}

// normalsParallel computes central-difference normals with the worker pool.
func normalsParallel(s frepeval.SDF3, pos []ms3.Vec, normals []ms3.Vec, step float32, workers int) error {
	if len(pos) == 0 {
		return nil
	}
	if workers <= 1 || len(pos) <= evalChunk {
		var vp frepeval.VecPool
		return frepeval.NormalsCentralDiff(s, pos, normals, step, &vp)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(pos); start += evalChunk {
		end := min(start+evalChunk, len(pos))
		g.Go(func() error {
			var vp frepeval.VecPool
			return frepeval.NormalsCentralDiff(s, pos[start:end], normals[start:end], step, &vp)
		})
	}
	return g.Wait()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// evaluateParallel2 is the 2D counterpart of evaluateParallel.
func evaluateParallel2(s frepeval.SDF2, pos []ms2.Vec, dist []float32, workers int) error {
	if len(pos) != len(dist) {
		return errors.New("freprender: position and distance buffer length mismatch")
	} else if len(pos) == 0 {
		return nil
	}
	if workers <= 1 || len(pos) <= evalChunk {
		var vp frepeval.VecPool
		return s.Evaluate(pos, dist, &vp)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(pos); start += evalChunk {
		end := min(start+evalChunk, len(pos))
		g.Go(func() error {
			var vp frepeval.VecPool
			return s.Evaluate(pos[start:end], dist[start:end], &vp)
		})
	}
	return g.Wait()
}

func validateAlgorithm(a Algorithm) error {
	switch a {
	case DualContouring, IsoSimplex, Hybrid:
		return nil
	}
	return fmt.Errorf("freprender: unknown algorithm %d", int(a))
}
