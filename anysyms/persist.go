package anysyms

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var t Table
	serializer.RegisterTypedDeserializer(t.SerializerType(), DeserializeTable)
}

// ParseError is returned when a line of a table file is
// not a symbol followed by an integer.
type ParseError struct {
	Line int
	Text string
	Err  error
}

// Error returns the error message.
func (p *ParseError) Error() string {
	msg := fmt.Sprintf("line %d: malformed entry %q", p.Line, p.Text)
	if p.Err != nil {
		msg += ": " + p.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying conversion error, if
// there is one.
func (p *ParseError) Unwrap() error {
	return p.Err
}

// Load reads a table with one whitespace-separated
// "<symbol> <integer>" pair per line.
// Empty lines and lines starting with "#" are skipped.
//
// A malformed line produces a *ParseError, and a symbol
// or value bound twice produces a *DuplicateError.
func Load(r io.Reader) (*Table, error) {
	res := NewTable()
	scanner := bufio.NewScanner(r)
	var lineNum int
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, &ParseError{Line: lineNum, Text: line}
		}
		val, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: line, Err: err}
		}
		if err := res.Add(fields[0], val); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("load symbols", err)
	}
	return res, nil
}

// LoadFile reads a table from a file.
// See Load for the format.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("load symbols", err)
	}
	defer f.Close()
	res, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load symbols %s: %w", path, err)
	}
	return res, nil
}

// Save writes the table in the format read by Load, one
// "symbol value" line per pair in insertion order.
func (t *Table) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, p := range t.pairs {
		if _, err := fmt.Fprintf(bw, "%s %d\n", p.Symbol, p.Value); err != nil {
			return essentials.AddCtx("save symbols", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return essentials.AddCtx("save symbols", err)
	}
	return nil
}

// SaveFile writes the table to a file.
func (t *Table) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return essentials.AddCtx("save symbols", err)
	}
	if err := t.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DeserializeTable deserializes a Table.
func DeserializeTable(d []byte) (*Table, error) {
	res, err := Load(bytes.NewReader(d))
	if err != nil {
		return nil, fmt.Errorf("deserialize Table: %w", err)
	}
	return res, nil
}

// SerializerType returns the unique ID used to serialize
// a Table with the serializer package.
func (t *Table) SerializerType() string {
	return "github.com/unixpickle/anyhtr/anysyms.Table"
}

// Serialize serializes the table in the same text format
// as Save.
func (t *Table) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
