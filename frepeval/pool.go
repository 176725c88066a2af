package frepeval

import (
	"errors"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// VecPool reuses scratch buffers across evaluation calls. Renderers thread a
// pool through the userData argument of [SDF3.Evaluate] so deeply recursive
// evaluations do not allocate per call. A VecPool is not safe for concurrent
// use; parallel renderers keep one pool per worker.
type VecPool struct {
	V3    bufPool[ms3.Vec]
	V2    bufPool[ms2.Vec]
	Float bufPool[float32]
}

// GetVecPool asserts the userData as a VecPool carrier. Implementations of
// SDF3 with a pool of their own can expose it through a
// `VecPool() *VecPool` method.
func GetVecPool(userData any) (*VecPool, error) {
	switch ud := userData.(type) {
	case *VecPool:
		return ud, nil
	case interface{ VecPool() *VecPool }:
		if vp := ud.VecPool(); vp != nil {
			return vp, nil
		}
	}
	return nil, errors.New("userData does not carry a VecPool")
}

// PoolOrNew returns the userData's pool, or a fresh throwaway pool if
// userData carries none.
func PoolOrNew(userData any) *VecPool {
	vp, err := GetVecPool(userData)
	if err != nil {
		return &VecPool{}
	}
	return vp
}

// TotalSize returns the current footprint of the pool in bytes.
func (vp *VecPool) TotalSize() int {
	return vp.V3.size()*12 + vp.V2.size()*8 + vp.Float.size()*4
}

type bufPool[T any] struct {
	free [][]T
}

// Acquire returns a buffer of length n. Contents are unspecified. The buffer
// belongs to the caller until passed to Release.
func (bp *bufPool[T]) Acquire(n int) []T {
	for i, buf := range bp.free {
		if cap(buf) >= n {
			bp.free[i] = bp.free[len(bp.free)-1]
			bp.free = bp.free[:len(bp.free)-1]
			return buf[:n]
		}
	}
	return make([]T, n)
}

// Release returns a buffer obtained from Acquire to the pool.
func (bp *bufPool[T]) Release(buf []T) {
	if cap(buf) == 0 {
		return
	}
	bp.free = append(bp.free, buf[:cap(buf)])
}

func (bp *bufPool[T]) size() int {
	n := 0
	for _, buf := range bp.free {
		n += cap(buf)
	}
	return n
}
