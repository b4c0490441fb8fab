// Package region provides the in-memory byte images the decoders read from.
// A Region is a named address space made of defined extents; addresses
// outside every extent are undefined.
package region

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"cflow/internal/disasm"
)

var (
	ErrEmpty   = errors.New("region: empty image")
	ErrOverlap = errors.New("region: overlapping extent")
)

type extent struct {
	base uint64
	data []byte
}

func (e extent) end() uint64 {
	return e.base + uint64(len(e.data))
}

// Region is a sparse byte image. It is read-only once built and safe for
// concurrent readers.
type Region struct {
	name    string
	extents []extent
}

// New returns a region named name with data mapped at base.
func New(name string, base uint64, data []byte) *Region {
	r := &Region{name: name}
	if len(data) > 0 {
		r.extents = []extent{{base: base, data: data}}
	}
	return r
}

// Name returns the region name.
func (r *Region) Name() string {
	return r.name
}

// Define maps data at base. Extents may touch but not overlap.
func (r *Region) Define(base uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	e := extent{base: base, data: data}
	i := sort.Search(len(r.extents), func(i int) bool { return r.extents[i].base >= base })
	if i > 0 && r.extents[i-1].end() > base {
		return fmt.Errorf("%w at %#x", ErrOverlap, base)
	}
	if i < len(r.extents) && r.extents[i].base < e.end() {
		return fmt.Errorf("%w at %#x", ErrOverlap, r.extents[i].base)
	}
	r.extents = append(r.extents, extent{})
	copy(r.extents[i+1:], r.extents[i:])
	r.extents[i] = e
	return nil
}

// Extents returns the start and end of every defined extent in address order.
func (r *Region) Extents() [][2]uint64 {
	out := make([][2]uint64, len(r.extents))
	for i, e := range r.extents {
		out[i] = [2]uint64{e.base, e.end()}
	}
	return out
}

func (r *Region) find(addr uint64) int {
	i := sort.Search(len(r.extents), func(i int) bool { return r.extents[i].end() > addr })
	if i < len(r.extents) && r.extents[i].base <= addr {
		return i
	}
	return -1
}

// Defined reports whether addr holds a byte.
func (r *Region) Defined(addr uint64) bool {
	return r.find(addr) >= 0
}

// Read returns up to n defined bytes starting at addr.
func (r *Region) Read(addr uint64, n int) []byte {
	out := make([]byte, 0, n)
	c := r.Seek(addr)
	for len(out) < n {
		b, ok := c.Next()
		if !ok {
			break
		}
		out = append(out, b)
	}
	return out
}

// Seek returns a cursor at addr. The cursor crosses adjacent extents and
// stops at the first undefined byte.
func (r *Region) Seek(addr uint64) disasm.Cursor {
	return &Cursor{r: r, addr: addr, idx: r.find(addr)}
}

// Cursor iterates the defined bytes of a Region.
type Cursor struct {
	r    *Region
	addr uint64
	idx  int
}

func (c *Cursor) Next() (byte, bool) {
	if c.idx < 0 || c.idx >= len(c.r.extents) {
		return 0, false
	}
	e := c.r.extents[c.idx]
	if c.addr >= e.end() {
		c.idx++
		if c.idx >= len(c.r.extents) || c.r.extents[c.idx].base != c.addr {
			c.idx = -1
			return 0, false
		}
		e = c.r.extents[c.idx]
	}
	b := e.data[c.addr-e.base]
	c.addr++
	return b, true
}

// LoadRaw maps a flat binary at base.
func LoadRaw(name string, data []byte, base uint64) (*Region, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return New(name, base, data), nil
}

// LoadPRG maps a Commodore program file: a little endian load address
// followed by the image.
func LoadPRG(name string, data []byte) (*Region, uint64, error) {
	if len(data) < 3 {
		return nil, 0, fmt.Errorf("load prg %s: %w", name, ErrEmpty)
	}
	base := uint64(binary.LittleEndian.Uint16(data[:2]))
	body := data[2:]
	if base+uint64(len(body)) > 0x10000 {
		body = body[:0x10000-base]
	}
	return New(name, base, body), base, nil
}
