package il

import (
	"fmt"
	"strings"
)

// Operation is the opcode of a lowered statement.
type Operation uint8

const (
	OpMove Operation = iota
	OpAdd
	OpSubtract
	OpMultiply
	OpAnd
	OpInclusiveOr
	OpExclusiveOr
	OpShiftLeft
	OpShiftRight
	OpEqual
	OpLessUnsigned
	OpLessSigned
	OpLoad
	OpStore
	OpCall
	OpNop
)

var operationNames = [...]string{
	OpMove:         "mov",
	OpAdd:          "add",
	OpSubtract:     "sub",
	OpMultiply:     "mul",
	OpAnd:          "and",
	OpInclusiveOr:  "or",
	OpExclusiveOr:  "xor",
	OpShiftLeft:    "shl",
	OpShiftRight:   "shr",
	OpEqual:        "eq",
	OpLessUnsigned: "ltu",
	OpLessSigned:   "lts",
	OpLoad:         "load",
	OpStore:        "store",
	OpCall:         "call",
	OpNop:          "nop",
}

func (o Operation) String() string {
	if int(o) < len(operationNames) {
		return operationNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Statement assigns the result of Op over Operands to Assignee. Calls have
// Undefined as assignee and the call target as only operand.
type Statement struct {
	Op       Operation
	Assignee Lvalue
	Operands []Rvalue
}

func (s Statement) String() string {
	ops := make([]string, len(s.Operands))
	for i, o := range s.Operands {
		ops[i] = o.String()
	}
	if _, ok := s.Assignee.(Undefined); ok || s.Assignee == nil {
		return fmt.Sprintf("%s %s", s.Op, strings.Join(ops, ", "))
	}
	return fmt.Sprintf("%s = %s %s", s.Assignee, s.Op, strings.Join(ops, ", "))
}

// CodeGen collects the statements an instruction lowers to.
type CodeGen struct {
	Statements []Statement
}

// Emit appends a statement.
func (cg *CodeGen) Emit(op Operation, assignee Lvalue, operands ...Rvalue) {
	cg.Statements = append(cg.Statements, Statement{Op: op, Assignee: assignee, Operands: operands})
}

// Assign emits assignee = value.
func (cg *CodeGen) Assign(assignee Lvalue, value Rvalue) {
	cg.Emit(OpMove, assignee, value)
}

// Call emits a call to target.
func (cg *CodeGen) Call(target Rvalue) {
	cg.Emit(OpCall, Undefined{}, target)
}

// Calls returns the targets of all call statements in stmts.
func Calls(stmts []Statement) []Rvalue {
	var out []Rvalue
	for _, s := range stmts {
		if s.Op == OpCall && len(s.Operands) == 1 {
			out = append(out, s.Operands[0])
		}
	}
	return out
}
