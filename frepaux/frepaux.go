// Package frepaux bundles the expression, evaluation and rendering packages
// into one-call file exporters. Ideally applications implement their own
// pipelines since requirements vary widely; these helpers exist to get
// started quickly.
package frepaux

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"time"

	math "github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"

	"github.com/frepkit/frep"
	"github.com/frepkit/frep/frepeval"
	"github.com/frepkit/frep/freprender"
)

// RenderConfig parameterizes [Render]. At least one output must be set.
type RenderConfig struct {
	// STLOutput receives the binary STL triangle mesh of the field over Region.
	STLOutput io.Writer
	// SVGOutput receives the z=0 slice contours of the field as SVG paths.
	SVGOutput io.Writer
	Region    ms3.Box
	Settings  freprender.Settings
	Silent    bool
}

// Render compiles tree with vars and writes the outputs requested by cfg.
func Render(tree frep.Tree, vars *frep.Variables, cfg RenderConfig) error {
	if cfg.STLOutput == nil && cfg.SVGOutput == nil {
		return errors.New("Render requires output parameter in config")
	}
	log := func(args ...any) {
		if !cfg.Silent {
			fmt.Println(args...)
		}
	}
	watch := stopwatch()
	ev, err := frepeval.NewEvaluator(tree, vars, cfg.Region)
	if err != nil {
		return fmt.Errorf("compiling field: %s", err)
	}
	log("compiled", ev.Program().NumInstructions(), "instruction field in", watch())

	if cfg.STLOutput != nil {
		watch = stopwatch()
		triangles, err := freprender.RenderMesh(ev, cfg.Region, cfg.Settings)
		if err != nil {
			return fmt.Errorf("rendering triangles: %s", err)
		}
		log("rendered", len(triangles), "triangles with", cfg.Settings.Algorithm, "in", watch())
		watch = stopwatch()
		_, err = freprender.WriteBinarySTL(cfg.STLOutput, triangles)
		if err != nil {
			return fmt.Errorf("writing STL file: %s", err)
		}
		log("wrote", outputName(cfg.STLOutput, "STL"), "in", watch())
	}

	if cfg.SVGOutput != nil {
		watch = stopwatch()
		region := ms2.Box{
			Min: ms2.Vec{X: cfg.Region.Min.X, Y: cfg.Region.Min.Y},
			Max: ms2.Vec{X: cfg.Region.Max.X, Y: cfg.Region.Max.Y},
		}
		contours, err := freprender.RenderSlice(ev.XYSlice(0), region, cfg.Settings)
		if err != nil {
			return fmt.Errorf("rendering contours: %s", err)
		}
		_, err = freprender.WriteSVG(cfg.SVGOutput, contours, region)
		if err != nil {
			return fmt.Errorf("writing SVG file: %s", err)
		}
		log("wrote", len(contours), "contours to", outputName(cfg.SVGOutput, "SVG"), "in", watch())
	}
	return nil
}

// RenderSTLFile renders the field of tree over region to a binary STL file.
func RenderSTLFile(filename string, tree frep.Tree, vars *frep.Variables, region ms3.Box, settings freprender.Settings) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	return Render(tree, vars, RenderConfig{
		STLOutput: fp,
		Region:    region,
		Settings:  settings,
		Silent:    true,
	})
}

// RenderSVGFile renders the z=0 slice contours of tree over region to an SVG
// file.
func RenderSVGFile(filename string, tree frep.Tree, vars *frep.Variables, region ms3.Box, settings freprender.Settings) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	return Render(tree, vars, RenderConfig{
		SVGOutput: fp,
		Region:    region,
		Settings:  settings,
		Silent:    true,
	})
}

// RenderPNGFile renders a 2D field slice as an image and saves the result to
// a PNG file with said filename. The image width is sized automatically from
// the image height argument to preserve the region aspect ratio. If a nil
// color conversion function is passed then one is automatically chosen.
func RenderPNGFile(filename string, s frepeval.SDF2, region ms2.Box, picHeight int, colorConversion func(float32) color.Color) error {
	sz := region.Size()
	if colorConversion == nil {
		colorConversion = ColorConversionInigoQuilez(math.Hypot(sz.X, sz.Y) / 3)
	}
	pixPerUnit := float64(picHeight) / float64(sz.Y)
	picWidth := int(pixPerUnit * float64(sz.X))
	img := image.NewRGBA(image.Rect(0, 0, picWidth, picHeight))
	renderer, err := freprender.NewImageRendererSDF2(max(4096, picHeight), colorConversion)
	if err != nil {
		return err
	}
	err = renderer.Render(s, region, img, nil)
	if err != nil {
		return err
	}
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = png.Encode(fp, img)
	if err != nil {
		return err
	}
	return fp.Sync()
}

var red = color.RGBA{R: 255, A: 255}

// ColorConversionInigoQuilez creates a new color conversion using [Inigo Quilez]'s style.
// A good value for characteristic distance is the region diagonal divided by 3.
// Returns red for NaN values.
//
// [Inigo Quilez]: https://iquilezles.org/articles/distfunctions2d/
func ColorConversionInigoQuilez(characteristicDistance float32) func(float32) color.Color {
	inv := 1. / characteristicDistance
	return func(d float32) color.Color {
		if math.IsNaN(d) {
			return red
		}
		d *= inv
		var c [3]float32
		if d > 0 {
			c = [3]float32{0.9, 0.6, 0.3}
		} else {
			c = [3]float32{0.65, 0.85, 1.0}
		}
		fade := (1 - math.Exp(-6*math.Abs(d))) * (0.8 + 0.2*math.Cos(150*d))
		blend := 1 - ms1.SmoothStep(0, 0.01, math.Abs(d))
		for i := range c {
			c[i] = ms1.Interp(c[i]*fade, 1, blend)
		}
		return color.RGBA{
			R: uint8(c[0] * 255),
			G: uint8(c[1] * 255),
			B: uint8(c[2] * 255),
			A: 255,
		}
	}
}

func outputName(w io.Writer, fallback string) string {
	if fp, ok := w.(*os.File); ok {
		return fp.Name()
	}
	return fallback
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
