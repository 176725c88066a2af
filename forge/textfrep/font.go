// Package textfrep generates expression trees for text with user-provided
// TrueType fonts. Glyph outlines are flattened to polygons and wrapped as
// polygon distance oracles.
package textfrep

import (
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/golang/freetype/truetype"
	"github.com/soypat/geometry/ms2"
	glms2 "github.com/soypat/glgl/math/ms2"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/frepkit/frep"
)

const firstBasic = '!'
const lastBasic = '~'

type FontConfig struct {
	// RelativeGlyphTolerance sets the permissible curve tolerance for glyphs. Must be between 0..1. If zero a reasonable value is chosen.
	RelativeGlyphTolerance float32
}

// Font implements font parsing and glyph (character) field generation.
type Font struct {
	ttf truetype.Font
	gb  truetype.GlyphBuf
	// basicGlyphs optimized array access for common ASCII glyphs.
	basicGlyphs [lastBasic - firstBasic + 1]glyph
	// Other kinds of glyphs.
	otherGlyphs map[rune]glyph
	reltol      float32 // Set by config or reset call if zeroed.
}

func (f *Font) Configure(cfg FontConfig) error {
	if cfg.RelativeGlyphTolerance < 0 || cfg.RelativeGlyphTolerance >= 1 {
		return errors.New("invalid RelativeGlyphTolerance")
	}
	f.reset()
	f.reltol = cfg.RelativeGlyphTolerance
	return nil
}

// LoadTTFBytes loads a TTF file blob into f. After calling Load the Font is
// ready to generate text fields.
func (f *Font) LoadTTFBytes(ttf []byte) error {
	font, err := truetype.Parse(ttf)
	if err != nil {
		return err
	}
	f.reset()
	f.ttf = *font
	return nil
}

// LoadTTFFile loads the TTF font at path into f.
func (f *Font) LoadTTFFile(path string) error {
	ttf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return f.LoadTTFBytes(ttf)
}

// reset resets most internal state of Font without removing underlying assigned font.
func (f *Font) reset() {
	for i := range f.basicGlyphs {
		f.basicGlyphs[i] = glyph{}
	}
	if f.otherGlyphs == nil {
		f.otherGlyphs = make(map[rune]glyph)
	} else {
		for k := range f.otherGlyphs {
			delete(f.otherGlyphs, k)
		}
	}
	if f.reltol == 0 {
		f.reltol = 0.15
	}
}

type glyph struct {
	tree frep.Tree
}

func (g glyph) valid() bool { return g.tree.Op() != frep.OpInvalid }

// TextLine returns a single line of text with the set font.
// TextLine takes kerning and advance width into account for letter spacing.
// Glyph locations are set starting at x=0 and appended in positive x direction.
func (f *Font) TextLine(s string) (frep.Tree, error) {
	var shapes []frep.Tree
	scale := f.scale()
	var idxPrev truetype.Index
	var xOfs int64
	scalout := f.scaleout()
	for ic, c := range s {
		if !unicode.IsGraphic(c) {
			return frep.Tree{}, fmt.Errorf("char %q not graphic", c)
		}

		idx := truetype.Index(c)
		hm := f.ttf.HMetric(scale, idx)
		if unicode.IsSpace(c) {
			if c == '\t' {
				hm.AdvanceWidth *= 4
			}
			xOfs += int64(hm.AdvanceWidth)
			continue
		}
		charshape, err := f.Glyph(c)
		if err != nil {
			return frep.Tree{}, fmt.Errorf("char %q: %w", c, err)
		}

		kern := f.ttf.Kern(scale, idxPrev, idx)
		xOfs += int64(kern)
		idxPrev = idx
		if ic == 0 {
			xOfs += int64(hm.LeftSideBearing)
		}
		charshape = charshape.Move(frep.V3(float32(xOfs)*scalout, 0, 0))
		shapes = append(shapes, charshape)
		xOfs += int64(hm.AdvanceWidth)
	}
	if len(shapes) == 1 {
		return shapes[0], nil
	} else if len(shapes) == 0 {
		// Only whitespace.
		return frep.Tree{}, errors.New("no text provided")
	}
	return frep.UnionMulti(shapes), nil
}

// Kern returns the horizontal adjustment for the given glyph pair. A positive kern means to move the glyphs further apart.
func (f *Font) Kern(c0, c1 rune) float32 {
	return float32(f.ttf.Kern(f.scale(), truetype.Index(c0), truetype.Index(c1)))
}

// AdvanceWidth returns the horizontal distance to the next glyph origin.
func (f *Font) AdvanceWidth(c rune) float32 {
	return float32(f.ttf.HMetric(f.scale(), truetype.Index(c)).AdvanceWidth)
}

// Glyph returns the field of the character defined by the argument rune.
func (f *Font) Glyph(c rune) (_ frep.Tree, err error) {
	var g glyph
	if c >= firstBasic && c <= lastBasic {
		// Basic ASCII glyph case.
		g = f.basicGlyphs[c-firstBasic]
		if !g.valid() {
			// Glyph not yet created. create it.
			g, err = f.makeGlyph(c)
			if err != nil {
				return frep.Tree{}, err
			}
			f.basicGlyphs[c-firstBasic] = g
		}
		return g.tree, nil
	}
	// Unicode or other glyph.
	g, ok := f.otherGlyphs[c]
	if !ok {
		g, err = f.makeGlyph(c)
		if err != nil {
			return frep.Tree{}, err
		}
		f.otherGlyphs[c] = g
	}
	return g.tree, nil
}

func (f *Font) scale() fixed.Int26_6 {
	return fixed.Int26_6(f.ttf.FUnitsPerEm())
}

func (f *Font) rawbounds() glms2.Box {
	bb := f.ttf.Bounds(f.scale())
	return glms2.Box{
		Min: glms2.Vec{X: float32(bb.Min.X), Y: float32(bb.Min.Y)},
		Max: glms2.Vec{X: float32(bb.Max.X), Y: float32(bb.Max.Y)},
	}
}

// scaleout defines the scaling from fixed point font units to field units.
func (f *Font) scaleout() float32 {
	bb := f.rawbounds()
	sz := bb.Size().Min()
	return 1. / float32(sz)
}

func (f *Font) makeGlyph(char rune) (glyph, error) {
	g := &f.gb

	idx := f.ttf.Index(char)
	scale := f.scale()
	err := g.Load(&f.ttf, scale, idx, font.HintingNone)
	if err != nil {
		return glyph{}, err
	}
	scaleout := f.scaleout()

	tol := f.reltol
	// The first contour is the glyph body; later contours either add islands
	// or carve holes depending on their winding.
	shape, _, err := glyphCurve(g.Points, 0, g.Ends[0], tol, scaleout)
	if err != nil {
		return glyph{}, err
	}
	start := g.Ends[0]
	g.Ends = g.Ends[1:]
	for _, end := range g.Ends {
		contour, fill, err := glyphCurve(g.Points, start, end, tol, scaleout)
		start = end
		if err != nil {
			return glyph{}, err
		}
		if fill {
			shape = frep.Union(shape, contour)
		} else {
			shape = frep.Difference(shape, contour)
		}
	}
	return glyph{tree: shape}, nil
}

func glyphCurve(points []truetype.Point, start, end int, tol, scale float32) (frep.Tree, bool, error) {
	var (
		sampler = glms2.Spline3Sampler{Spline: quadBezier, Tolerance: tol}
		sum     float32
	)
	points = points[start:end]
	n := len(points)
	i := 0
	var poly []glms2.Vec
	vPrev := p2v(points[n-1], scale)
	for i < n {
		p0, p1, p2 := points[i], points[(i+1)%n], points[(i+2)%n]
		onBits := onbits3(points, 0, n, i)
		v0, v1, v2 := p2v(p0, scale), p2v(p1, scale), p2v(p2, scale)
		implicit0 := glms2.Scale(0.5, glms2.Add(v0, v1))
		implicit1 := glms2.Scale(0.5, glms2.Add(v1, v2))
		switch onBits {
		case 0b010, 0b110:
			// implicit off start case?
			fallthrough
		case 0b011, 0b111:
			// on-on Straight line.
			poly = append(poly, v0)
			i += 1
			sum += (v0.X - vPrev.X) * (v0.Y + vPrev.Y)
			vPrev = v0
			continue

		case 0b000:
			// implicit-off-implicit.
			sampler.SetSplinePoints(implicit0, v1, implicit1, glms2.Vec{})
			v0 = implicit0
			i += 1

		case 0b001:
			// on-off-implicit.
			sampler.SetSplinePoints(v0, v1, implicit1, glms2.Vec{})
			i += 1

		case 0b100:
			// implicit-off-on.
			sampler.SetSplinePoints(implicit0, v1, v2, glms2.Vec{})
			v0 = implicit0
			i += 2

		case 0b101:
			// On-off-on.
			sampler.SetSplinePoints(v0, v1, v2, glms2.Vec{})
			i += 2
		}
		poly = append(poly, v0) // Append start point.
		poly = sampler.SampleBisect(poly, 4)
		sum += (v0.X - vPrev.X) * (v0.Y + vPrev.Y)
		vPrev = v0
	}
	verts := make([]ms2.Vec, len(poly))
	for iv, v := range poly {
		verts[iv] = ms2.Vec{X: v.X, Y: v.Y}
	}
	tree, err := Polygon(verts)
	return tree, sum > 0, err
}

func p2v(p truetype.Point, scale float32) glms2.Vec {
	return glms2.Vec{
		X: float32(p.X) * scale,
		Y: float32(p.Y) * scale,
	}
}

var quadBezier = glms2.NewSpline3([]float32{
	1, 0, 0, 0,
	-2, 2, 0, 0,
	1, -2, 1, 0,
	0, 0, 0, 0,
})

func onbits3(points []truetype.Point, start, end, i int) uint32 {
	n := end - start
	p0, p1, p2 := points[i], points[start+(i+1)%n], points[start+(i+2)%n]
	return p0.Flags&1 |
		(p1.Flags&1)<<1 |
		(p2.Flags&1)<<2
}
