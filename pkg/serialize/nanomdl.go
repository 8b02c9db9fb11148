// Package serialize implements the NANOMDL binary model format: a
// self-describing little-endian layout (magic, version, per-layer name
// and parameter block, Fletcher-64 checksum) used to persist a
// model's flat parameter vector alongside enough structure to validate
// it against the model it is loaded into.
package serialize

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/nanocv-go/nanocv/pkg/nn"
)

// ErrFormat is returned for any structural violation of the NANOMDL
// layout: bad magic, unsupported version, or checksum mismatch.
var ErrFormat = errors.New("serialize: format error")

const (
	magic         = "NANOMDL\x00"
	formatVersion = uint32(1)
)

// Model is the subset of *nn.Model Save/Load operate on.
type Model interface {
	Layers() []nn.Layer
	GetParams() []float32
	SetParams([]float32) error
}

// Save writes m's layer structure and parameters to w in NANOMDL
// format: magic, version, layer count, then per layer a length-prefixed
// name and its parameter block, followed by a Fletcher-64 checksum over
// every byte written before it.
func Save(w io.Writer, m Model) error {
	var buf bytes.Buffer
	buf.WriteString(magic)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], formatVersion)
	buf.Write(u32[:])

	layers := m.Layers()
	binary.LittleEndian.PutUint32(u32[:], uint32(len(layers)))
	buf.Write(u32[:])

	theta := m.GetParams()
	offset := 0
	for _, l := range layers {
		name := l.Name()
		if len(name) > 0xFFFF {
			return fmt.Errorf("serialize.Save: layer name %q too long", name)
		}
		var u16 [2]byte
		binary.LittleEndian.PutUint16(u16[:], uint16(len(name)))
		buf.Write(u16[:])
		buf.WriteString(name)

		count := l.ParamCount()
		var u64 [8]byte
		binary.LittleEndian.PutUint64(u64[:], uint64(count))
		buf.Write(u64[:])

		if offset+count > len(theta) {
			return fmt.Errorf("serialize.Save: layer %q param count %d exceeds remaining theta", name, count)
		}
		for _, v := range theta[offset : offset+count] {
			var f32 [4]byte
			binary.LittleEndian.PutUint32(f32[:], math.Float32bits(v))
			buf.Write(f32[:])
		}
		offset += count
	}

	checksum := fletcher64(buf.Bytes())
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], checksum)

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("serialize.Save: %w", err)
	}
	if _, err := bw.Write(u64[:]); err != nil {
		return fmt.Errorf("serialize.Save: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("serialize.Save: %w", err)
	}
	return nil
}

// Load reads a NANOMDL document from r and installs its parameters
// into m via SetParams, after verifying magic, version, layer count,
// every per-layer name/param count against m's current layers, and the
// trailing Fletcher-64 checksum.
func Load(r io.Reader, m Model) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("serialize.Load: %w", err)
	}
	if len(body) < len(magic)+4+4+8 {
		return fmt.Errorf("serialize.Load: truncated document: %w", ErrFormat)
	}

	payload := body[:len(body)-8]
	wantChecksum := binary.LittleEndian.Uint64(body[len(body)-8:])
	if fletcher64(payload) != wantChecksum {
		return fmt.Errorf("serialize.Load: checksum mismatch: %w", ErrFormat)
	}

	cur := payload
	if string(cur[:len(magic)]) != magic {
		return fmt.Errorf("serialize.Load: bad magic: %w", ErrFormat)
	}
	cur = cur[len(magic):]

	version := binary.LittleEndian.Uint32(cur[:4])
	cur = cur[4:]
	if version != formatVersion {
		return fmt.Errorf("serialize.Load: unsupported version %d: %w", version, ErrFormat)
	}

	layerCount := binary.LittleEndian.Uint32(cur[:4])
	cur = cur[4:]
	layers := m.Layers()
	if int(layerCount) != len(layers) {
		return fmt.Errorf("serialize.Load: layer count %d does not match model's %d: %w", layerCount, len(layers), ErrFormat)
	}

	var theta []float32
	for _, l := range layers {
		if len(cur) < 2 {
			return fmt.Errorf("serialize.Load: truncated layer header: %w", ErrFormat)
		}
		nameLen := binary.LittleEndian.Uint16(cur[:2])
		cur = cur[2:]
		if len(cur) < int(nameLen) {
			return fmt.Errorf("serialize.Load: truncated layer name: %w", ErrFormat)
		}
		name := string(cur[:nameLen])
		cur = cur[nameLen:]
		if name != l.Name() {
			return fmt.Errorf("serialize.Load: layer name %q does not match model's %q: %w", name, l.Name(), ErrFormat)
		}

		if len(cur) < 8 {
			return fmt.Errorf("serialize.Load: truncated param count: %w", ErrFormat)
		}
		count := binary.LittleEndian.Uint64(cur[:8])
		cur = cur[8:]
		if int(count) != l.ParamCount() {
			return fmt.Errorf("serialize.Load: layer %q param count %d does not match model's %d: %w", name, count, l.ParamCount(), ErrFormat)
		}

		if len(cur) < int(count)*4 {
			return fmt.Errorf("serialize.Load: truncated param block: %w", ErrFormat)
		}
		for i := uint64(0); i < count; i++ {
			bits := binary.LittleEndian.Uint32(cur[:4])
			cur = cur[4:]
			theta = append(theta, math.Float32frombits(bits))
		}
	}

	if err := m.SetParams(theta); err != nil {
		return fmt.Errorf("serialize.Load: %w", err)
	}
	return nil
}

// fletcher64 computes the Fletcher-64 checksum: two 32-bit rolling
// sums over the input viewed as little-endian 32-bit words (the final
// partial word, if any, is zero-padded), combined as (sum2<<32)|sum1.
func fletcher64(data []byte) uint64 {
	var sum1, sum2 uint64
	const mod = 0xFFFFFFFF
	i := 0
	for i+4 <= len(data) {
		word := uint64(binary.LittleEndian.Uint32(data[i : i+4]))
		sum1 = (sum1 + word) % mod
		sum2 = (sum2 + sum1) % mod
		i += 4
	}
	if i < len(data) {
		var last [4]byte
		copy(last[:], data[i:])
		word := uint64(binary.LittleEndian.Uint32(last[:]))
		sum1 = (sum1 + word) % mod
		sum2 = (sum2 + sum1) % mod
	}
	return (sum2 << 32) | sum1
}
