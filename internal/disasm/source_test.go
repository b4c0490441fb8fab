package disasm

// bytesSource is a Source over a byte slice mapped at base.
type bytesSource struct {
	base uint64
	data []byte
}

func (b bytesSource) Seek(addr uint64) Cursor {
	if addr < b.base || addr-b.base > uint64(len(b.data)) {
		return &sliceCursor{}
	}
	return &sliceCursor{data: b.data[addr-b.base:]}
}

type sliceCursor struct {
	data []byte
}

func (c *sliceCursor) Next() (byte, bool) {
	if len(c.data) == 0 {
		return 0, false
	}
	b := c.data[0]
	c.data = c.data[1:]
	return b, true
}
