// Package anysyms maps the symbols of a CTC model's
// output alphabet to their indices and back.
package anysyms

import "fmt"

const (
	// NoValue is substituted for symbols which are missing
	// from a table.
	NoValue = -1

	// Unknown is substituted for values which are missing
	// from a table.
	Unknown = "<unk>"
)

// DuplicateError is returned when a symbol or value is
// added to a table that already binds it to something
// else.
type DuplicateError struct {
	Symbol string
	Value  int

	// Either the value already bound to Symbol, or the
	// symbol already bound to Value, depending on
	// SymbolExists.
	ExistingSymbol string
	ExistingValue  int
	SymbolExists   bool
}

// Error returns the error message.
func (d *DuplicateError) Error() string {
	if d.SymbolExists {
		return fmt.Sprintf("symbol %q was already present in the table (assigned to value %d)",
			d.Symbol, d.ExistingValue)
	}
	return fmt.Sprintf("value %d was already present in the table (assigned to symbol %q)",
		d.Value, d.ExistingSymbol)
}

// Pair is a single entry of a Table.
type Pair struct {
	Symbol string
	Value  int
}

// A Table is a bidirectional mapping between symbols and
// integer values.
//
// Every symbol has exactly one value and every value has
// exactly one symbol.
// The zero value is not usable; create tables with
// NewTable or Load.
type Table struct {
	values  map[string]int
	symbols map[int]string
	pairs   []Pair
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		values:  map[string]int{},
		symbols: map[int]string{},
	}
}

// Add binds a symbol to a value.
//
// Adding a pair which is already in the table does
// nothing.
// If either the symbol or the value is bound to something
// else, a *DuplicateError is returned and the table is
// left unchanged.
func (t *Table) Add(sym string, val int) error {
	oldVal, hasSym := t.values[sym]
	oldSym, hasVal := t.symbols[val]
	if hasSym && hasVal && oldVal == val {
		return nil
	}
	if hasSym {
		return &DuplicateError{
			Symbol:        sym,
			Value:         val,
			ExistingValue: oldVal,
			SymbolExists:  true,
		}
	}
	if hasVal {
		return &DuplicateError{
			Symbol:         sym,
			Value:          val,
			ExistingSymbol: oldSym,
		}
	}
	t.values[sym] = val
	t.symbols[val] = sym
	t.pairs = append(t.pairs, Pair{Symbol: sym, Value: val})
	return nil
}

// Value looks up the value of a symbol.
func (t *Table) Value(sym string) (int, bool) {
	val, ok := t.values[sym]
	return val, ok
}

// Symbol looks up the symbol for a value.
func (t *Table) Symbol(val int) (string, bool) {
	sym, ok := t.symbols[val]
	return sym, ok
}

// Len returns the number of pairs in the table.
func (t *Table) Len() int {
	return len(t.pairs)
}

// Pairs returns a copy of the table's entries in the
// order they were added.
func (t *Table) Pairs() []Pair {
	return append([]Pair{}, t.pairs...)
}

// Symbols returns the table's symbols in the order they
// were added.
func (t *Table) Symbols() []string {
	res := make([]string, len(t.pairs))
	for i, p := range t.pairs {
		res[i] = p.Symbol
	}
	return res
}
