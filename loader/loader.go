// Package loader reads assembly program files.
//
// A program file holds one instruction per line. Blank lines and lines that
// start with "//" or "#" are dropped before PCs are assigned; every other
// line, including a bare label, takes one PC. Lines of the form
//
//	.data <base> <word> [<word> ...]
//
// are not instructions. They describe the initial data memory image.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// dataDirective introduces a data segment line.
const dataDirective = ".data"

// Segment is a run of consecutive data words.
type Segment struct {
	// Base is the word address of the first word.
	Base uint32
	// Words are the initial values.
	Words []int32
}

// Program is a loaded program file.
type Program struct {
	// Name is the file name without its extension.
	Name string
	// Lines are the instruction lines. The index of a line is its PC.
	Lines []string
	// Segments hold the initial data memory image.
	Segments []Segment
}

// DataLoader accepts the data image of a program.
type DataLoader interface {
	LoadData(base uint32, words []int32) error
}

// Load reads a program file.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	prog.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return prog, nil
}

// Read parses a program from r.
func Read(r io.Reader) (*Program, error) {
	prog := &Program{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "", strings.HasPrefix(line, "//"), strings.HasPrefix(line, "#"):
			continue
		case isDataLine(line):
			seg, err := parseSegment(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			prog.Segments = append(prog.Segments, seg)
		default:
			prog.Lines = append(prog.Lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	return prog, nil
}

// LoadInto copies every data segment into dst.
func (p *Program) LoadInto(dst DataLoader) error {
	for _, seg := range p.Segments {
		if err := dst.LoadData(seg.Base, seg.Words); err != nil {
			return fmt.Errorf("failed to load segment at %d: %w", seg.Base, err)
		}
	}
	return nil
}

func isDataLine(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && strings.EqualFold(fields[0], dataDirective)
}

// parseSegment parses ".data <base> <word>...". Numbers may be decimal, hex
// (0x) or binary (0b).
func parseSegment(line string) (Segment, error) {
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) < 3 {
		return Segment{}, fmt.Errorf("%s needs a base address and at least one word", dataDirective)
	}

	base, err := strconv.ParseUint(fields[1], 0, 32)
	if err != nil {
		return Segment{}, fmt.Errorf("invalid base address %q", fields[1])
	}

	words := make([]int32, 0, len(fields)-2)
	for _, f := range fields[2:] {
		v, err := strconv.ParseInt(f, 0, 64)
		if err != nil || v < -1<<31 || v > 1<<32-1 {
			return Segment{}, fmt.Errorf("invalid data word %q", f)
		}
		words = append(words, int32(v))
	}

	return Segment{Base: uint32(base), Words: words}, nil
}
