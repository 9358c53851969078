// Package rdr implements a bounded byte-stream cursor over a DWARF section
// buffer, with the primitive and LEB128 decoders every other lint package
// builds on.
package rdr

import (
	"encoding/binary"
	"fmt"
)

// LebStatus reports how a LEB128 value decoded.
type LebStatus int

const (
	// LebOK means the value decoded with the minimal number of continuation bytes.
	LebOK LebStatus = iota
	// LebBloated means the value decoded correctly but used more continuation
	// bytes than strictly necessary (a producer quirk, not a structural error).
	LebBloated
	// LebError means decoding ran past the end of the buffer.
	LebError
)

// Ctx is a read-only cursor over a byte buffer, honoring the file's byte
// order. Subcontexts share the parent's buffer and are
// clamped to a tighter [begin,end) window.
type Ctx struct {
	buf    []byte
	Order  binary.ByteOrder
	begin  int
	end    int
	cursor int

	// SectionOffset is added to local positions to recover the absolute
	// file/section offset of any position within this context.
	SectionOffset uint64
}

// Init creates a root context spanning the whole buffer.
func Init(buf []byte, order binary.ByteOrder) *Ctx {
	return &Ctx{
		buf:    buf,
		Order:  order,
		begin:  0,
		end:    len(buf),
		cursor: 0,
	}
}

// InitSub creates a subcontext bounded by [begin,end), given as positions
// relative to the parent's own begin (as Position reports them). Fails if
// the requested window falls outside the parent. GetOffset on the
// subcontext reports the same offsets as on the parent.
func InitSub(parent *Ctx, begin, end int) (*Ctx, error) {
	if begin < 0 || end > parent.Len() || begin > end {
		return nil, fmt.Errorf("subcontext [%d,%d) out of parent bounds [0,%d)", begin, end, parent.Len())
	}

	return &Ctx{
		buf:           parent.buf,
		Order:         parent.Order,
		begin:         parent.begin + begin,
		end:           parent.begin + end,
		cursor:        parent.begin + begin,
		SectionOffset: parent.SectionOffset + uint64(begin),
	}, nil
}

// Len returns the number of bytes spanned by this context.
func (c *Ctx) Len() int { return c.end - c.begin }

// NeedData reports whether n bytes remain between the cursor and the end
// of the context.
func (c *Ctx) NeedData(n int) bool {
	return c.cursor+n <= c.end
}

// Eof reports whether the cursor has reached the end of the context.
func (c *Ctx) Eof() bool {
	return c.cursor >= c.end
}

// GetOffset returns the file offset of the current cursor position.
func (c *Ctx) GetOffset() uint64 {
	return c.SectionOffset + uint64(c.cursor-c.begin)
}

// Position returns the cursor position relative to the context's own begin.
func (c *Ctx) Position() int {
	return c.cursor - c.begin
}

// Skip advances the cursor by n bytes without reading. Errors if it would
// overrun the context.
func (c *Ctx) Skip(n int) error {
	if !c.NeedData(n) {
		return fmt.Errorf("skip %d bytes at offset %d: past end of section (end=%d)", n, c.GetOffset(), c.end)
	}
	c.cursor += n
	return nil
}

func (c *Ctx) Ubyte() (byte, error) {
	if !c.NeedData(1) {
		return 0, fmt.Errorf("ubyte at offset %d: past end of section", c.GetOffset())
	}
	v := c.buf[c.cursor]
	c.cursor++
	return v, nil
}

func (c *Ctx) Ubyte2() (uint16, error) {
	if !c.NeedData(2) {
		return 0, fmt.Errorf("2ubyte at offset %d: past end of section", c.GetOffset())
	}
	v := c.Order.Uint16(c.buf[c.cursor : c.cursor+2])
	c.cursor += 2
	return v, nil
}

func (c *Ctx) Ubyte4() (uint32, error) {
	if !c.NeedData(4) {
		return 0, fmt.Errorf("4ubyte at offset %d: past end of section", c.GetOffset())
	}
	v := c.Order.Uint32(c.buf[c.cursor : c.cursor+4])
	c.cursor += 4
	return v, nil
}

func (c *Ctx) Ubyte8() (uint64, error) {
	if !c.NeedData(8) {
		return 0, fmt.Errorf("8ubyte at offset %d: past end of section", c.GetOffset())
	}
	v := c.Order.Uint64(c.buf[c.cursor : c.cursor+8])
	c.cursor += 8
	return v, nil
}

// Var reads a fixed-width unsigned integer of 1, 2, 4 or 8 bytes.
func (c *Ctx) Var(width int) (uint64, error) {
	switch width {
	case 1:
		v, err := c.Ubyte()
		return uint64(v), err
	case 2:
		v, err := c.Ubyte2()
		return uint64(v), err
	case 4:
		v, err := c.Ubyte4()
		return uint64(v), err
	case 8:
		return c.Ubyte8()
	default:
		return 0, fmt.Errorf("unsupported width %d", width)
	}
}

// PeekVar reads a fixed-width unsigned integer of 1, 2, 4 or 8 bytes without
// advancing the cursor, so a caller can inspect upcoming bytes before
// deciding whether to actually consume them.
func (c *Ctx) PeekVar(width int) (uint64, error) {
	save := c.cursor
	v, err := c.Var(width)
	c.cursor = save
	return v, err
}

// Offset reads a DWARF section offset: 4 bytes for 32-bit DWARF, 8 for 64-bit.
func (c *Ctx) Offset(dwarf64 bool) (uint64, error) {
	if dwarf64 {
		return c.Ubyte8()
	}
	v, err := c.Ubyte4()
	return uint64(v), err
}

// Str reads a NUL-terminated byte string, returning it without the terminator.
func (c *Ctx) Str() (string, error) {
	start := c.cursor
	for c.cursor < c.end {
		if c.buf[c.cursor] == 0 {
			s := string(c.buf[start:c.cursor])
			c.cursor++
			return s, nil
		}
		c.cursor++
	}
	return "", fmt.Errorf("unterminated string starting at offset %d", c.SectionOffset+uint64(start-c.begin))
}

// Uleb128 decodes an unsigned LEB128 value.
func (c *Ctx) Uleb128() (uint64, LebStatus, error) {
	var result uint64
	var shift uint
	bytesRead := 0

	for {
		if c.Eof() {
			return 0, LebError, fmt.Errorf("uleb128 at offset %d: past end of section", c.GetOffset())
		}
		b := c.buf[c.cursor]
		c.cursor++
		bytesRead++

		if shift < 64 {
			result |= uint64(b&0x7f) << shift
		}
		shift += 7

		if b&0x80 == 0 {
			// Minimal encoding needs ceil(bits/7) bytes; detect bloat when
			// continuation bytes beyond that carry no significant bits but
			// were still emitted with the continuation flag set.
			status := LebOK
			if bytesRead > minUlebBytes(result) {
				status = LebBloated
			}
			return result, status, nil
		}
	}
}

func minUlebBytes(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// Sleb128 decodes a signed LEB128 value.
func (c *Ctx) Sleb128() (int64, LebStatus, error) {
	var result int64
	var shift uint
	var b byte
	bytesRead := 0

	for {
		if c.Eof() {
			return 0, LebError, fmt.Errorf("sleb128 at offset %d: past end of section", c.GetOffset())
		}
		b = c.buf[c.cursor]
		c.cursor++
		bytesRead++

		if shift < 64 {
			result |= int64(b&0x7f) << shift
		}
		shift += 7

		if b&0x80 == 0 {
			if shift < 64 && (b&0x40) != 0 {
				result |= -1 << shift
			}
			status := LebOK
			if bytesRead > minSlebBytes(result) {
				status = LebBloated
			}
			return result, status, nil
		}
	}
}

func minSlebBytes(v int64) int {
	n := 1
	for {
		more := v>>6 != 0 && v>>6 != -1
		if !more {
			return n
		}
		v >>= 7
		n++
	}
}

// Bytes returns a view of n raw bytes at the cursor, advancing past them.
func (c *Ctx) Bytes(n int) ([]byte, error) {
	if !c.NeedData(n) {
		return nil, fmt.Errorf("read %d bytes at offset %d: past end of section", n, c.GetOffset())
	}
	v := c.buf[c.cursor : c.cursor+n]
	c.cursor += n
	return v, nil
}
