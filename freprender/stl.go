package freprender

import (
	"encoding/binary"
	"io"

	"github.com/soypat/geometry/ms3"
)

// stlTriangle is the binary STL wire layout of one triangle.
type stlTriangle struct {
	Normal   [3]float32
	Vertices [3][3]float32
	Attrib   uint16
}

// WriteBinarySTL writes the triangle soup to w in binary STL format and
// returns the number of bytes written.
func WriteBinarySTL(w io.Writer, tris []ms3.Triangle) (int, error) {
	var header [80]byte
	copy(header[:], "frep binary STL")
	n, err := w.Write(header[:])
	if err != nil {
		return n, err
	}
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(tris)))
	nc, err := w.Write(count[:])
	n += nc
	if err != nil {
		return n, err
	}
	var buf [50]byte
	for _, tri := range tris {
		nrm := ms3.Unit(ms3.Cross(ms3.Sub(tri[1], tri[0]), ms3.Sub(tri[2], tri[0])))
		st := stlTriangle{
			Normal: [3]float32{nrm.X, nrm.Y, nrm.Z},
			Vertices: [3][3]float32{
				{tri[0].X, tri[0].Y, tri[0].Z},
				{tri[1].X, tri[1].Y, tri[1].Z},
				{tri[2].X, tri[2].Y, tri[2].Z},
			},
		}
		putSTLTriangle(buf[:], &st)
		nt, err := w.Write(buf[:])
		n += nt
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func putSTLTriangle(b []byte, st *stlTriangle) {
	le := binary.LittleEndian
	off := 0
	put := func(f float32) {
		le.PutUint32(b[off:], floatBits(f))
		off += 4
	}
	for _, f := range st.Normal {
		put(f)
	}
	for _, v := range st.Vertices {
		for _, f := range v {
			put(f)
		}
	}
	le.PutUint16(b[off:], st.Attrib)
}
