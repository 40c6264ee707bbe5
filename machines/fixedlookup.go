package machines

import (
	"fmt"

	"github.com/ace-zkvm/ace/analyzed"
	"github.com/ace-zkvm/ace/field"
	"github.com/ronanh/intcomp"
)

// FixedLookupTable is the witness-generation-time counterpart of a
// FixedLookup connection: the concrete row tuples of its right side, held
// delta+bit-packed via ronanh/intcomp the way a read-only `[0, 2^k)`-style
// range table should be (these tables are frequently millions of rows for
// e.g. a byte-range or xor table, and are never mutated once built).
type FixedLookupTable struct {
	Connection *analyzed.BusConnection
	numRows    int
	numCols    int
	// packed holds one delta+bit-packed uint64 stream per column, in
	// Connection.Right.Values order.
	packed [][]uint64
	// rowIndex maps a row's tuple, joined as a string key, to its row
	// number, for the exact-match membership test a lookup send needs.
	rowIndex map[string]int
}

// BuildFixedLookupTables constructs one FixedLookupTable per extracted
// FixedLookup connection, reading the underlying fixed columns' precomputed
// value vectors out of an Analyzed (spec §4.2: FixedLookup connections are
// not machines, but their right side must still be queryable during
// witness generation).
func BuildFixedLookupTables(an *analyzed.Analyzed, conns []*analyzed.BusConnection) ([]*FixedLookupTable, error) {
	tables := make([]*FixedLookupTable, 0, len(conns))
	for _, conn := range conns {
		t, err := buildFixedLookupTable(an, conn)
		if err != nil {
			return nil, fmt.Errorf("machines: building fixed lookup table for interaction %d: %w", conn.ID, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func buildFixedLookupTable(an *analyzed.Analyzed, conn *analyzed.BusConnection) (*FixedLookupTable, error) {
	numCols := len(conn.Right.Values)
	columns := make([][]field.Element, numCols)
	numRows := -1

	for i, expr := range conn.Right.Values {
		refs := analyzed.ColumnRefs(expr)
		if len(refs) != 1 {
			return nil, fmt.Errorf("fixed lookup right-hand value %d is not a bare column reference", i)
		}
		col, ok := an.ColumnByID(refs[0])
		if !ok || col.FixedValues == nil {
			return nil, fmt.Errorf("fixed lookup right-hand value %d does not resolve to a fixed column", i)
		}
		columns[i] = col.FixedValues
		if numRows == -1 {
			numRows = len(col.FixedValues)
		} else if len(col.FixedValues) != numRows {
			return nil, fmt.Errorf("fixed lookup columns have mismatched row counts (%d vs %d)", numRows, len(col.FixedValues))
		}
	}
	if numRows < 0 {
		numRows = 0
	}

	packed := make([][]uint64, numCols)
	rowIndex := make(map[string]int, numRows)
	rowKeys := make([][]uint64, numRows)
	for r := 0; r < numRows; r++ {
		rowKeys[r] = make([]uint64, numCols)
	}
	for c, values := range columns {
		raw := make([]uint64, len(values))
		for r, v := range values {
			u := v.Uint64()
			raw[r] = u
			rowKeys[r][c] = u
		}
		packed[c] = intcomp.CompressUint64(raw, nil)
	}
	for r, key := range rowKeys {
		rowIndex[rowKey(key)] = r
	}

	return &FixedLookupTable{
		Connection: conn,
		numRows:    numRows,
		numCols:    numCols,
		packed:     packed,
		rowIndex:   rowIndex,
	}, nil
}

func rowKey(cols []uint64) string {
	b := make([]byte, 0, len(cols)*9)
	for _, v := range cols {
		for v >= 0x80 {
			b = append(b, byte(v)|0x80)
			v >>= 7
		}
		b = append(b, byte(v))
	}
	return string(b)
}

// Contains reports whether args (one value per Connection.Right.Values
// entry, in order) appears as an exact row of the table -- the membership
// test a lookup send against a fixed table reduces to (spec §4.2's
// FixedLookup machine variant).
func (t *FixedLookupTable) Contains(args []field.Element) (row int, ok bool) {
	if len(args) != t.numCols {
		return 0, false
	}
	key := make([]uint64, t.numCols)
	for i, a := range args {
		key[i] = a.Uint64()
	}
	r, ok := t.rowIndex[rowKey(key)]
	return r, ok
}

// NumRows reports how many rows this table holds.
func (t *FixedLookupTable) NumRows() int { return t.numRows }

// CompressedWords reports the total number of uint64 words the table's
// delta+bit-packed columns occupy, for logging/diagnostics on how much the
// compression is saving over one uint64 per cell.
func (t *FixedLookupTable) CompressedWords() int {
	n := 0
	for _, col := range t.packed {
		n += len(col)
	}
	return n
}
