// Package frepio persists expression trees as a compact binary encoding of
// the operator DAG.
//
// The format is versioned and explicitly non-archival: it may change between
// releases. A header carries the format tag and the opcode packing mode,
// followed by a node table in dependency order (operands always precede their
// use) and a root index. Loading fails closed: malformed headers, unknown
// operations, forward operand references and truncated tables are all
// rejected rather than producing a partially built graph.
//
// Free variables are structural leaves only; their binding to a
// [frep.Variables] set is not persisted. Loading a tree with free variables
// produces fresh variable leaves the caller must register anew. Oracle nodes
// carry opaque Go values and cannot be serialized at all.
package frepio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chewxy/math32"

	"github.com/frepkit/frep"
)

var (
	// ErrFileWriteFailed wraps any failure to persist a tree to disk.
	ErrFileWriteFailed = errors.New("frepio: file write failed")
	// ErrFileReadFailed wraps any failure to restore a tree from disk, both
	// missing files and corrupt contents.
	ErrFileReadFailed = errors.New("frepio: file read failed")
	// ErrOracleNotSerializable is returned when the tree contains an oracle
	// node. Oracles are opaque Go values with no wire representation.
	ErrOracleNotSerializable = errors.New("frepio: tree contains an oracle node")
)

// magic tags the format and its version. Bump on incompatible layout changes.
const magic = "frep1"

const flagPackedOps byte = 1 << 0

// Encoding selects how node operation tags are written.
type Encoding uint8

const (
	// PackedOpcodes writes one raw opcode byte per node. Densest, but a file
	// written by a release that renumbered the opcode set reads back as
	// garbage; the header flag lets readers reject the mismatch.
	PackedOpcodes Encoding = iota
	// PortableOpcodes writes length-prefixed operation names. Larger, robust
	// against opcode renumbering between releases.
	PortableOpcodes
)

// opByName resolves portable operation tags. Built once over the closed
// operation set.
var opByName = func() map[string]frep.Op {
	m := make(map[string]frep.Op)
	for i := 1; i < 256; i++ {
		if op := frep.Op(i); op.IsValid() {
			m[op.String()] = op
		}
	}
	return m
}()

// Save writes the operator DAG of t to w. Nothing is written if the tree
// cannot be serialized.
func Save(w io.Writer, t frep.Tree, enc Encoding) error {
	var body bytes.Buffer
	index := make(map[frep.Tree]uint64)
	var scratch [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(scratch[:], v)
		body.Write(scratch[:n])
	}
	putTag := func(op frep.Op) {
		if enc == PackedOpcodes {
			body.WriteByte(byte(op))
			return
		}
		name := op.String()
		body.WriteByte(byte(len(name)))
		body.WriteString(name)
	}
	var visit func(t frep.Tree) error
	visit = func(t frep.Tree) error {
		if _, ok := index[t]; ok {
			return nil
		}
		op := t.Op()
		switch {
		case op == frep.OpOracle:
			return ErrOracleNotSerializable
		case !op.IsValid():
			return fmt.Errorf("frepio: invalid node operation %d", op)
		}
		lhs, rhs := t.Operands()
		arity := op.Arity()
		if arity >= 1 {
			if err := visit(lhs); err != nil {
				return err
			}
		}
		if arity == 2 {
			if err := visit(rhs); err != nil {
				return err
			}
		}
		putTag(op)
		switch {
		case op == frep.OpConstant:
			v, err := t.Value()
			if err != nil {
				return err
			}
			binary.Write(&body, binary.LittleEndian, math32.Float32bits(v))
		case arity >= 1:
			putUvarint(index[lhs])
			if arity == 2 {
				putUvarint(index[rhs])
			}
		}
		index[t] = uint64(len(index))
		return nil
	}
	if err := visit(t); err != nil {
		return err
	}

	var hdr bytes.Buffer
	hdr.WriteString(magic)
	if enc == PackedOpcodes {
		hdr.WriteByte(flagPackedOps)
	} else {
		hdr.WriteByte(0)
	}
	n := binary.PutUvarint(scratch[:], uint64(len(index)))
	hdr.Write(scratch[:n])
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	// Root index. Post-order emission makes it the last table entry, but the
	// explicit pointer keeps the format self-describing.
	n = binary.PutUvarint(scratch[:], index[t])
	_, err := w.Write(scratch[:n])
	return err
}

// Load reconstructs a tree from the encoding written by [Save]. The packing
// mode is taken from the header. Any structural inconsistency fails the whole
// load.
func Load(r io.Reader) (frep.Tree, error) {
	br := bufio.NewReader(r)
	var hdr [len(magic) + 1]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return frep.Tree{}, fmt.Errorf("frepio: reading header: %w", err)
	}
	if string(hdr[:len(magic)]) != magic {
		return frep.Tree{}, errors.New("frepio: bad magic, not a tree file or unsupported version")
	}
	flags := hdr[len(magic)]
	if flags&^flagPackedOps != 0 {
		return frep.Tree{}, fmt.Errorf("frepio: unsupported header flags %#x", flags)
	}
	packed := flags&flagPackedOps != 0
	count, err := binary.ReadUvarint(br)
	if err != nil {
		return frep.Tree{}, fmt.Errorf("frepio: reading node count: %w", err)
	}
	if count == 0 {
		return frep.Tree{}, errors.New("frepio: empty node table")
	}
	readTag := func() (frep.Op, error) {
		if packed {
			b, err := br.ReadByte()
			if err != nil {
				return frep.OpInvalid, err
			}
			op := frep.Op(b)
			if !op.IsValid() || op == frep.OpOracle {
				return frep.OpInvalid, fmt.Errorf("frepio: unknown packed operation %d", b)
			}
			return op, nil
		}
		nameLen, err := br.ReadByte()
		if err != nil {
			return frep.OpInvalid, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return frep.OpInvalid, err
		}
		op, ok := opByName[string(name)]
		if !ok || op == frep.OpOracle {
			return frep.OpInvalid, fmt.Errorf("frepio: unknown operation %q", name)
		}
		return op, nil
	}
	nodes := make([]frep.Tree, 0, min(count, 1<<16))
	operand := func() (frep.Tree, error) {
		idx, err := binary.ReadUvarint(br)
		if err != nil {
			return frep.Tree{}, err
		}
		// Operands must reference already-decoded table entries: forward
		// references would admit cycles.
		if idx >= uint64(len(nodes)) {
			return frep.Tree{}, fmt.Errorf("frepio: operand index %d references unseen node", idx)
		}
		return nodes[idx], nil
	}
	for i := uint64(0); i < count; i++ {
		op, err := readTag()
		if err != nil {
			return frep.Tree{}, err
		}
		var t frep.Tree
		switch {
		case op == frep.OpConstant:
			var bits uint32
			if err := binary.Read(br, binary.LittleEndian, &bits); err != nil {
				return frep.Tree{}, fmt.Errorf("frepio: reading constant: %w", err)
			}
			t = frep.Const(math32.Float32frombits(bits))
		case op == frep.OpVarX:
			t = frep.X()
		case op == frep.OpVarY:
			t = frep.Y()
		case op == frep.OpVarZ:
			t = frep.Z()
		case op == frep.OpVarFree:
			t = frep.Var()
		case op.Arity() == 1:
			a, err := operand()
			if err != nil {
				return frep.Tree{}, err
			}
			t = frep.Unary(op, a)
		case op.Arity() == 2:
			a, err := operand()
			if err != nil {
				return frep.Tree{}, err
			}
			b, err := operand()
			if err != nil {
				return frep.Tree{}, err
			}
			t = frep.Binary(op, a, b)
		default:
			return frep.Tree{}, fmt.Errorf("frepio: operation %v has no decoding", op)
		}
		nodes = append(nodes, t)
	}
	root, err := binary.ReadUvarint(br)
	if err != nil {
		return frep.Tree{}, fmt.Errorf("frepio: reading root index: %w", err)
	}
	if root >= uint64(len(nodes)) {
		return frep.Tree{}, fmt.Errorf("frepio: root index %d out of table", root)
	}
	return nodes[root], nil
}

// SaveFile persists t at path with packed opcodes. Fails with
// [ErrFileWriteFailed] on any filesystem or encoding error.
func SaveFile(path string, t frep.Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileWriteFailed, err)
	}
	err = Save(f, t, PackedOpcodes)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: %s", ErrFileWriteFailed, err)
	}
	return nil
}

// LoadFile restores a tree from path. Fails with [ErrFileReadFailed] if the
// file is absent or its contents malformed.
func LoadFile(path string) (frep.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return frep.Tree{}, fmt.Errorf("%w: %s", ErrFileReadFailed, err)
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return frep.Tree{}, fmt.Errorf("%w: %s", ErrFileReadFailed, err)
	}
	return t, nil
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
