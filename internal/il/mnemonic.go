package il

import "strings"

// Mnemonic is one decoded instruction. Format is the operand template with
// one "{}" per entry of Operands.
type Mnemonic struct {
	Opcode       string
	Format       string
	Operands     []Rvalue
	Area         Bound
	Instructions []Statement
}

// OperandText renders the operand template.
func (m Mnemonic) OperandText() string {
	if m.Format == "" {
		return ""
	}
	var b strings.Builder
	rest := m.Format
	i := 0
	for {
		idx := strings.Index(rest, "{}")
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:idx])
		if i < len(m.Operands) {
			b.WriteString(m.Operands[i].String())
		} else {
			b.WriteString("?")
		}
		i++
		rest = rest[idx+2:]
	}
	return b.String()
}

func (m Mnemonic) String() string {
	ops := m.OperandText()
	if ops == "" {
		return m.Opcode
	}
	return m.Opcode + " " + ops
}

// DefaultFormat returns a template listing n operands separated by commas.
func DefaultFormat(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("{}, ", n), ", ")
}
