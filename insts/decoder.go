package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// Op represents an opcode of the teaching ISA.
type Op uint8

// Opcodes.
const (
	OpNOP Op = iota
	OpADD
	OpSUB
	OpAND
	OpOR
	OpXOR
	OpSLT
	OpADDI
	OpLW
	OpSW
	OpBEQ
	OpBNE
	OpJAL
	OpJALR
)

var opNames = [...]string{
	OpNOP:  "nop",
	OpADD:  "add",
	OpSUB:  "sub",
	OpAND:  "and",
	OpOR:   "or",
	OpXOR:  "xor",
	OpSLT:  "slt",
	OpADDI: "addi",
	OpLW:   "lw",
	OpSW:   "sw",
	OpBEQ:  "beq",
	OpBNE:  "bne",
	OpJAL:  "jal",
	OpJALR: "jalr",
}

// String returns the assembly mnemonic of the opcode.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Format represents an operand grammar.
type Format uint8

// Instruction formats.
const (
	FormatNone    Format = iota // nop, blank, comment, bare label
	FormatR                     // op rd, rs1, rs2
	FormatI                     // op rd, rs1, imm
	FormatLoad                  // lw rd, imm(rs1)
	FormatStore                 // sw rs2, imm(rs1)
	FormatBranch                // op rs1, rs2, imm
	FormatJump                  // jal rd, imm
	FormatJumpReg               // jalr rd, imm(rs1)
)

// NumRegs is the number of architectural integer registers.
const NumRegs = 32

// Instruction represents a decoded instruction. It is immutable once decoded.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Operand grammar

	// PC is the instruction index in the program (-1 for the bubble sentinel).
	PC int

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register (base register for memory ops)
	Rs2 uint8 // Second source register (store data for sw)

	// Imm is the immediate operand: ALU constant, memory displacement, or
	// branch/jump offset in instruction units.
	Imm int32

	// Label is the informational label prefix of the line, if any.
	Label string

	// Raw is the source text of the line.
	Raw string
}

// Nop is the bubble sentinel occupying an empty pipeline stage.
var Nop = &Instruction{Op: OpNOP, Format: FormatNone, PC: -1, Raw: "nop"}

// Diagnostic reports a line that could not be decoded. The line itself
// decodes to nop.
type Diagnostic struct {
	PC     int
	Text   string
	Reason string
}

// Error implements the error interface so diagnostics can be printed or
// wrapped like any other error.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("line %d: %s: %q", d.PC, d.Reason, d.Text)
}

// Decoder decodes assembly text into instructions.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes one line of assembly located at the given program index.
// It never fails: a malformed line decodes to nop together with a non-nil
// diagnostic.
func (d *Decoder) Decode(line string, pc int) (*Instruction, *Diagnostic) {
	inst := &Instruction{Op: OpNOP, Format: FormatNone, PC: pc, Raw: line}

	s := stripComment(line)
	s, inst.Label = stripLabel(s)
	if s == "" {
		return inst, nil
	}

	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	mnemonic := strings.ToLower(fields[0])
	operands := fields[1:]

	var err error
	switch mnemonic {
	case "add", "sub", "and", "or", "xor", "slt":
		err = d.decodeR(mnemonic, operands, inst)
	case "addi":
		err = d.decodeI(operands, inst)
	case "lw":
		err = d.decodeLoad(operands, inst)
	case "sw":
		err = d.decodeStore(operands, inst)
	case "beq", "bne":
		err = d.decodeBranch(mnemonic, operands, inst)
	case "jal":
		err = d.decodeJump(operands, inst)
	case "jalr":
		err = d.decodeJumpReg(operands, inst)
	case "nop":
		if len(operands) != 0 {
			err = fmt.Errorf("nop takes no operands")
		}
	default:
		err = fmt.Errorf("unknown mnemonic %q", mnemonic)
	}

	if err != nil {
		return &Instruction{
				Op: OpNOP, Format: FormatNone, PC: pc, Raw: line, Label: inst.Label,
			}, &Diagnostic{
				PC: pc, Text: line, Reason: err.Error(),
			}
	}

	return inst, nil
}

// DecodeProgram decodes every line of a program. The returned slice has one
// instruction per line, so a line's index is its PC.
func DecodeProgram(lines []string) ([]*Instruction, []Diagnostic) {
	d := NewDecoder()
	program := make([]*Instruction, len(lines))
	var diags []Diagnostic

	for i, line := range lines {
		inst, diag := d.Decode(line, i)
		program[i] = inst
		if diag != nil {
			diags = append(diags, *diag)
		}
	}

	return program, diags
}

var rTypeOps = map[string]Op{
	"add": OpADD,
	"sub": OpSUB,
	"and": OpAND,
	"or":  OpOR,
	"xor": OpXOR,
	"slt": OpSLT,
}

// decodeR decodes "op rd, rs1, rs2".
func (d *Decoder) decodeR(mnemonic string, ops []string, inst *Instruction) error {
	if err := expectOperands(ops, 3); err != nil {
		return err
	}

	rd, err := parseReg(ops[0])
	if err != nil {
		return err
	}
	rs1, err := parseReg(ops[1])
	if err != nil {
		return err
	}
	rs2, err := parseReg(ops[2])
	if err != nil {
		return err
	}

	inst.Op = rTypeOps[mnemonic]
	inst.Format = FormatR
	inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
	return nil
}

// decodeI decodes "addi rd, rs1, imm".
func (d *Decoder) decodeI(ops []string, inst *Instruction) error {
	if err := expectOperands(ops, 3); err != nil {
		return err
	}

	rd, err := parseReg(ops[0])
	if err != nil {
		return err
	}
	rs1, err := parseReg(ops[1])
	if err != nil {
		return err
	}
	imm, err := parseImm(ops[2])
	if err != nil {
		return err
	}

	inst.Op = OpADDI
	inst.Format = FormatI
	inst.Rd, inst.Rs1, inst.Imm = rd, rs1, imm
	return nil
}

// decodeLoad decodes "lw rd, imm(rs1)".
func (d *Decoder) decodeLoad(ops []string, inst *Instruction) error {
	if err := expectOperands(ops, 2); err != nil {
		return err
	}

	rd, err := parseReg(ops[0])
	if err != nil {
		return err
	}
	imm, rs1, err := parseMemOperand(ops[1])
	if err != nil {
		return err
	}

	inst.Op = OpLW
	inst.Format = FormatLoad
	inst.Rd, inst.Rs1, inst.Imm = rd, rs1, imm
	return nil
}

// decodeStore decodes "sw rs2, imm(rs1)".
func (d *Decoder) decodeStore(ops []string, inst *Instruction) error {
	if err := expectOperands(ops, 2); err != nil {
		return err
	}

	rs2, err := parseReg(ops[0])
	if err != nil {
		return err
	}
	imm, rs1, err := parseMemOperand(ops[1])
	if err != nil {
		return err
	}

	inst.Op = OpSW
	inst.Format = FormatStore
	inst.Rs1, inst.Rs2, inst.Imm = rs1, rs2, imm
	return nil
}

// decodeBranch decodes "beq/bne rs1, rs2, imm".
func (d *Decoder) decodeBranch(mnemonic string, ops []string, inst *Instruction) error {
	if err := expectOperands(ops, 3); err != nil {
		return err
	}

	rs1, err := parseReg(ops[0])
	if err != nil {
		return err
	}
	rs2, err := parseReg(ops[1])
	if err != nil {
		return err
	}
	imm, err := parseImm(ops[2])
	if err != nil {
		return err
	}

	inst.Op = OpBEQ
	if mnemonic == "bne" {
		inst.Op = OpBNE
	}
	inst.Format = FormatBranch
	inst.Rs1, inst.Rs2, inst.Imm = rs1, rs2, imm
	return nil
}

// decodeJump decodes "jal rd, imm".
func (d *Decoder) decodeJump(ops []string, inst *Instruction) error {
	if err := expectOperands(ops, 2); err != nil {
		return err
	}

	rd, err := parseReg(ops[0])
	if err != nil {
		return err
	}
	imm, err := parseImm(ops[1])
	if err != nil {
		return err
	}

	inst.Op = OpJAL
	inst.Format = FormatJump
	inst.Rd, inst.Imm = rd, imm
	return nil
}

// decodeJumpReg decodes "jalr rd, imm(rs1)".
func (d *Decoder) decodeJumpReg(ops []string, inst *Instruction) error {
	if err := expectOperands(ops, 2); err != nil {
		return err
	}

	rd, err := parseReg(ops[0])
	if err != nil {
		return err
	}
	imm, rs1, err := parseMemOperand(ops[1])
	if err != nil {
		return err
	}

	inst.Op = OpJALR
	inst.Format = FormatJumpReg
	inst.Rd, inst.Rs1, inst.Imm = rd, rs1, imm
	return nil
}

// stripComment removes a "//" or "#" comment and surrounding whitespace.
func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// stripLabel removes a leading "identifier:" prefix.
func stripLabel(s string) (rest, label string) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || !isIdentifier(s[:i]) {
		return s, ""
	}
	return strings.TrimSpace(s[i+1:]), s[:i]
}

func isIdentifier(s string) bool {
	for i, c := range s {
		switch {
		case c == '_', c == '.', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

func expectOperands(ops []string, n int) error {
	if len(ops) != n {
		return fmt.Errorf("expected %d operands, got %d", n, len(ops))
	}
	return nil
}

// parseReg parses a register token x0..x31.
func parseReg(tok string) (uint8, error) {
	tok = strings.ToLower(tok)
	if len(tok) < 2 || tok[0] != 'x' {
		return 0, fmt.Errorf("invalid register %q", tok)
	}

	n, err := strconv.Atoi(tok[1:])
	if err != nil {
		return 0, fmt.Errorf("invalid register %q", tok)
	}
	if n < 0 || n >= NumRegs {
		return 0, fmt.Errorf("register %q out of range", tok)
	}

	return uint8(n), nil
}

// parseImm parses a signed 32-bit decimal or 0x-prefixed hexadecimal value.
func parseImm(tok string) (int32, error) {
	s := tok
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}

	v, err := strconv.ParseInt(s, base, 64)
	if err != nil || s == "" {
		return 0, fmt.Errorf("invalid immediate %q", tok)
	}
	if neg {
		v = -v
	}
	if v < -(1<<31) || v > (1<<31)-1 {
		return 0, fmt.Errorf("immediate %q out of range", tok)
	}

	return int32(v), nil
}

// parseMemOperand parses "imm(xN)". An omitted displacement means 0.
func parseMemOperand(tok string) (int32, uint8, error) {
	open := strings.IndexByte(tok, '(')
	if open < 0 || !strings.HasSuffix(tok, ")") {
		return 0, 0, fmt.Errorf("invalid memory operand %q", tok)
	}

	var imm int32
	if disp := tok[:open]; disp != "" {
		v, err := parseImm(disp)
		if err != nil {
			return 0, 0, err
		}
		imm = v
	}

	reg, err := parseReg(tok[open+1 : len(tok)-1])
	if err != nil {
		return 0, 0, err
	}

	return imm, reg, nil
}
