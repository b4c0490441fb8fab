package il

import (
	"encoding/json"
	"fmt"
)

// Endianness selects the byte order of a memory reference or a token stream.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) String() string {
	if e == BigEndian {
		return "be"
	}
	return "le"
}

// NoSubscript marks a variable that has not been versioned.
const NoSubscript = -1

// Rvalue is an operand value: a Constant, a Variable, a Memory reference or
// Undefined. All implementations are comparable with ==.
type Rvalue interface {
	fmt.Stringer
	// Bits returns the width of the value in bits, 0 if unknown.
	Bits() int
	rvalue()
}

// Lvalue is the assignable subset of Rvalue.
type Lvalue interface {
	Rvalue
	lvalue()
}

// Constant is an immediate value of a fixed bit width.
type Constant struct {
	Value uint64
	Size  int
}

// Variable is a register or temporary. Offset selects a bit slice of the
// named storage, Subscript is the SSA version or NoSubscript.
type Variable struct {
	Name      string
	Size      int
	Offset    int
	Subscript int
}

// Memory is a load from or store to Bank at the byte address Offset.
type Memory struct {
	Offset     Rvalue
	Bytes      int
	Endianness Endianness
	Bank       string
}

// Undefined is a value the decoder cannot describe.
type Undefined struct{}

func (Constant) rvalue()  {}
func (Variable) rvalue()  {}
func (Memory) rvalue()    {}
func (Undefined) rvalue() {}

func (Variable) lvalue()  {}
func (Memory) lvalue()    {}
func (Undefined) lvalue() {}

// Const returns a constant of size bits, truncating v to fit.
func Const(v uint64, size int) Constant {
	if size > 0 && size < 64 {
		v &= (1 << uint(size)) - 1
	}
	return Constant{Value: v, Size: size}
}

// Var returns an unversioned variable covering all bits of name.
func Var(name string, size int) Variable {
	return Variable{Name: name, Size: size, Subscript: NoSubscript}
}

// Bit returns the single bit at offset of the variable name.
func Bit(name string, offset int) Variable {
	return Variable{Name: name, Size: 1, Offset: offset, Subscript: NoSubscript}
}

// Mem returns a memory reference of n bytes.
func Mem(offset Rvalue, n int, e Endianness, bank string) Memory {
	return Memory{Offset: offset, Bytes: n, Endianness: e, Bank: bank}
}

// ConstantValue returns the value of r if it is a Constant.
func ConstantValue(r Rvalue) (uint64, bool) {
	if c, ok := r.(Constant); ok {
		return c.Value, true
	}
	return 0, false
}

func (c Constant) Bits() int     { return c.Size }
func (v Variable) Bits() int     { return v.Size }
func (m Memory) Bits() int       { return m.Bytes * 8 }
func (Undefined) Bits() int      { return 0 }
func (Undefined) String() string { return "?" }

func (c Constant) String() string {
	return fmt.Sprintf("%#x", c.Value)
}

func (v Variable) String() string {
	s := v.Name
	if v.Offset != 0 {
		s = fmt.Sprintf("%s.%d", v.Name, v.Offset)
	}
	if v.Subscript != NoSubscript {
		s = fmt.Sprintf("%s_%d", s, v.Subscript)
	}
	return s
}

func (m Memory) String() string {
	if m.Bank == "" {
		return fmt.Sprintf("[%s]", m.Offset)
	}
	return fmt.Sprintf("%s[%s]", m.Bank, m.Offset)
}

// jsonValue is the tagged form used when exporting operands.
type jsonValue struct {
	Kind       string     `json:"kind"`
	Value      *uint64    `json:"value,omitempty"`
	Size       int        `json:"size,omitempty"`
	Name       string     `json:"name,omitempty"`
	Offset     int        `json:"offset,omitempty"`
	Subscript  *int       `json:"subscript,omitempty"`
	Address    *jsonValue `json:"address,omitempty"`
	Bytes      int        `json:"bytes,omitempty"`
	Endianness string     `json:"endianness,omitempty"`
	Bank       string     `json:"bank,omitempty"`
}

func toJSON(r Rvalue) *jsonValue {
	switch v := r.(type) {
	case Constant:
		val := v.Value
		return &jsonValue{Kind: "constant", Value: &val, Size: v.Size}
	case Variable:
		out := &jsonValue{Kind: "variable", Name: v.Name, Size: v.Size, Offset: v.Offset}
		if v.Subscript != NoSubscript {
			sub := v.Subscript
			out.Subscript = &sub
		}
		return out
	case Memory:
		return &jsonValue{
			Kind:       "memory",
			Address:    toJSON(v.Offset),
			Bytes:      v.Bytes,
			Endianness: v.Endianness.String(),
			Bank:       v.Bank,
		}
	default:
		return &jsonValue{Kind: "undefined"}
	}
}

// MarshalValue encodes r as a tagged JSON object.
func MarshalValue(r Rvalue) ([]byte, error) {
	return json.Marshal(toJSON(r))
}
