package freprender

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"

	"github.com/frepkit/frep/frepeval"
)

// Bitmap is a row-major occupancy grid sampled from a 2D field. Cell (0,0)
// is the region's minimum corner; a set cell means its center is inside the
// solid.
type Bitmap struct {
	Width, Height int
	Occ           []bool
	Region        ms2.Box
}

// At reports occupancy of the cell at column x, row y.
func (b *Bitmap) At(x, y int) bool { return b.Occ[y*b.Width+x] }

// Count returns the number of occupied cells.
func (b *Bitmap) Count() int {
	n := 0
	for _, o := range b.Occ {
		if o {
			n++
		}
	}
	return n
}

// RenderBitmap samples the field at cell centers over region with cell edges
// of the settings' resolution.
func RenderBitmap(s frepeval.SDF2, region ms2.Box, cfg Settings) (*Bitmap, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if err := validRegion2(region); err != nil {
		return nil, err
	}
	res := cfg.cellSize()
	sz := region.Size()
	w := int(math32.Ceil(sz.X / res))
	h := int(math32.Ceil(sz.Y / res))
	if w < 1 || h < 1 {
		return nil, errBadResolution
	}
	pos := make([]ms2.Vec, w*h)
	for iy := 0; iy < h; iy++ {
		for ix := 0; ix < w; ix++ {
			pos[iy*w+ix] = ms2.Vec{
				X: region.Min.X + res*(float32(ix)+0.5),
				Y: region.Min.Y + res*(float32(iy)+0.5),
			}
		}
	}
	dist := make([]float32, len(pos))
	if err := evaluateParallel2(s, pos, dist, cfg.Workers); err != nil {
		return nil, err
	}
	bm := &Bitmap{Width: w, Height: h, Occ: make([]bool, len(dist)), Region: region}
	for i, d := range dist {
		bm.Occ[i] = d < 0
	}
	return bm, nil
}

type setImage = interface {
	image.Image
	Set(x, y int, c color.Color)
}

// ImageRendererSDF2 converts 2D fields to images.
type ImageRendererSDF2 struct {
	conv func(f float32) color.Color
	pos  []ms2.Vec
	dist []float32
}

// NewImageRendererSDF2 instances a new [ImageRendererSDF2] to render images
// from 2D fields. A nil float->color conversion function results in a simple
// black-white color scheme where black is the interior of the field
// (negative distance).
func NewImageRendererSDF2(evalBufferSize int, conversion func(float32) color.Color) (*ImageRendererSDF2, error) {
	if evalBufferSize <= 64 {
		return nil, errors.New("too small evaluation buffer size")
	}
	if conversion == nil {
		conversion = func(f float32) color.Color {
			switch {
			case math32.IsNaN(f) || math32.IsInf(f, 0):
				return color.RGBA{R: 255, A: 255}
			case f > 0:
				return color.White
			default:
				return color.Black
			}
		}
	}
	ir := &ImageRendererSDF2{
		conv: conversion,
		pos:  make([]ms2.Vec, evalBufferSize),
		dist: make([]float32, evalBufferSize),
	}
	return ir, nil
}

// Render maps the field over region to the input image and renders it. It
// uses userData as an argument to all Evaluate calls.
func (ir *ImageRendererSDF2) Render(sdf frepeval.SDF2, region ms2.Box, img setImage, userData any) error {
	imgBB := img.Bounds()
	dxi := imgBB.Dx()
	dyi := imgBB.Dy()
	if len(ir.dist) < dyi {
		return fmt.Errorf("require evaluation buffer (%d) to be at least of length of image rows (%d)", len(ir.dist), dyi)
	}
	if err := validRegion2(region); err != nil {
		return err
	}
	sz := region.Size()
	dx := sz.X / float32(dxi)
	dy := sz.Y / float32(dyi)
	min := ms2.Add(region.Min, ms2.Vec{X: dx / 2, Y: dy / 2}) // Offset to center image.
	for i := 0; i < dxi; i++ {
		x := float32(i)*dx + min.X
		err := ir.renderRow(sdf, i, x, min.Y, dy, imgBB, img, userData)
		if err != nil {
			return err
		}
	}
	return nil
}

func (ir *ImageRendererSDF2) renderRow(sdf frepeval.SDF2, row int, x, ymin, dy float32, imgBB image.Rectangle, img setImage, userData any) error {
	dyi := imgBB.Dy()
	for j := 0; j < dyi; j++ {
		y := float32(j)*dy + ymin
		ir.pos[j] = ms2.Vec{X: x, Y: y}
	}
	err := sdf.Evaluate(ir.pos[:dyi], ir.dist[:dyi], userData)
	if err != nil {
		return err
	}
	conv := ir.conv
	for j := 0; j < dyi; j++ {
		d := ir.dist[j]
		// Image rows grow downward; grid rows grow upward.
		img.Set(row+imgBB.Min.X, imgBB.Max.Y-1-j, conv(d))
	}
	return nil
}
