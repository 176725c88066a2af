package freprender

import (
	"fmt"
	"io"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

// WriteSVG writes the contours as one SVG path element per contour, in the
// coordinate frame of region. The y axis is flipped so the model's +y points
// up on screen.
func WriteSVG(w io.Writer, contours []Contour, region ms2.Box) (int, error) {
	if err := validRegion2(region); err != nil {
		return 0, err
	}
	sz := region.Size()
	n, err := fmt.Fprintf(w,
		"<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"%g %g %g %g\">\n"+
			"<g transform=\"translate(0,%g) scale(1,-1)\" fill=\"none\" stroke=\"black\" stroke-width=\"%g\">\n",
		region.Min.X, region.Min.Y, sz.X, sz.Y,
		region.Min.Y+region.Max.Y, sz.Max()/500)
	if err != nil {
		return n, err
	}
	for _, c := range contours {
		if len(c.Points) == 0 {
			continue
		}
		nc, err := fmt.Fprintf(w, "<path d=\"M%g,%g", c.Points[0].X, c.Points[0].Y)
		n += nc
		if err != nil {
			return n, err
		}
		for _, p := range c.Points[1:] {
			nc, err = fmt.Fprintf(w, " L%g,%g", p.X, p.Y)
			n += nc
			if err != nil {
				return n, err
			}
		}
		closeCmd := "\"/>\n"
		if c.Closed {
			closeCmd = " Z\"/>\n"
		}
		nc, err = io.WriteString(w, closeCmd)
		n += nc
		if err != nil {
			return n, err
		}
	}
	nc, err := io.WriteString(w, "</g>\n</svg>\n")
	n += nc
	return n, err
}

func floatBits(f float32) uint32 { return math32.Float32bits(f) }
