package sharc

import (
	"bytes"
	"strings"

	"github.com/revred/sharc-core/internal/btree"
	"github.com/revred/sharc-core/internal/catalog"
	"github.com/revred/sharc-core/internal/filter"
	"github.com/revred/sharc-core/internal/merged"
	"github.com/revred/sharc-core/internal/record"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// Cursor is a typed, positionable read cursor over one table (spec §6.2):
// Read/Seek/AfterRowID/SeekIndex move it, and the typed accessors below read
// the current row's columns directly out of its decoded physical values,
// without building an executor.Row map per row.
type Cursor struct {
	db      *DB
	def     *catalog.TableDef
	proj    []string
	plan    *filter.Plan
	c       *btree.Cursor
	values  []record.Value
	started bool
	pending bool // c is positioned at a candidate row not yet consumed by Read
}

// CreateReader returns a Cursor over table, optionally narrowed to proj
// (nil means every logical column is available) and filtered by pred (nil
// matches every row), per spec §6.2's create_reader.
func (db *DB) CreateReader(table string, proj []string, pred *filter.Node) (*Cursor, error) {
	def, ok := db.cat.Table(table)
	if !ok {
		return nil, sharcerr.New(sharcerr.NotFound, "sharc: unknown table "+table)
	}
	plan := filter.Compile(def, pred, db.cat.IndexesFor(table))
	tree := btree.Open(db.p, def.RootPage)
	return &Cursor{db: db, def: def, proj: proj, plan: plan, c: btree.NewCursor(tree)}, nil
}

// Columns reports the columns this cursor exposes: the projection it was
// created with, or every logical column of the table if none was given.
func (c *Cursor) Columns() []string {
	if c.proj != nil {
		return c.proj
	}
	out := make([]string, len(c.def.Logical))
	for i, lc := range c.def.Logical {
		out[i] = lc.Name
	}
	return out
}

// Read advances the cursor to the next row satisfying its filter (if any),
// returning false once no further row matches.
func (c *Cursor) Read() (bool, error) {
	for {
		if c.pending {
			c.pending = false
		} else {
			var ok bool
			var err error
			if !c.started {
				ok, err = c.c.First()
				c.started = true
			} else {
				ok, err = c.c.Next()
			}
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		values, err := c.loadValues()
		if err != nil {
			return false, err
		}
		if c.plan == nil || c.plan.Evaluate(values) {
			c.values = values
			return true, nil
		}
	}
}

func (c *Cursor) loadValues() ([]record.Value, error) {
	payload, err := c.c.Payload()
	if err != nil {
		return nil, err
	}
	return record.Decode(payload)
}

// Seek positions the cursor exactly at rowid, so the next Read call (if
// seek found it) returns that row. found reports whether rowid exists.
func (c *Cursor) Seek(rowid int64) (found bool, err error) {
	ok, err := c.c.SeekGE(rowid)
	if err != nil {
		return false, err
	}
	c.started = true
	if !ok || c.c.RowID() != rowid {
		c.pending = false
		return false, nil
	}
	c.pending = true
	return true, nil
}

// AfterRowID positions the cursor so the next Read call returns the first
// row with RowID > rowid (cursor pagination, spec §6.2).
func (c *Cursor) AfterRowID(rowid int64) error {
	_, err := c.c.SeekGE(rowid + 1)
	if err != nil {
		return err
	}
	c.started = true
	c.pending = c.c.Valid()
	return nil
}

// SeekIndex positions the cursor at the row whose entry in the named
// secondary index matches key (the same ordered-key encoding
// catalog.TableDef.IndexKeyPrefix produces), reporting whether a match was
// found. index must be built against this cursor's table.
func (c *Cursor) SeekIndex(index string, key []byte) (found bool, err error) {
	idx, ok := c.db.cat.Index(index)
	if !ok || !strings.EqualFold(idx.TableName, c.def.Name) {
		return false, sharcerr.New(sharcerr.NotFound, "sharc: unknown index "+index+" on table "+c.def.Name)
	}
	idxTree := btree.Open(c.db.p, idx.RootPage)
	ic := btree.NewCursor(idxTree)
	if _, err := ic.SeekGEKey(key); err != nil {
		return false, err
	}
	if !ic.Valid() {
		return false, nil
	}
	fullKey, err := ic.IndexKey()
	if err != nil {
		return false, err
	}
	if !bytes.HasPrefix(fullKey, key) {
		return false, nil
	}
	rowid, ok := record.TrailingOrderedRowID(fullKey)
	if !ok {
		return false, nil
	}
	return c.Seek(rowid)
}

// RowID returns the current row's rowid. Valid only after Read/Seek
// returns true.
func (c *Cursor) RowID() int64 { return c.c.RowID() }

func (c *Cursor) logicalColumn(col string) (catalog.LogicalColumn, bool) {
	return c.def.PhysicalColumn(col)
}

// Int64 reads col as an integer.
func (c *Cursor) Int64(col string) int64 {
	lc, ok := c.logicalColumn(col)
	if !ok {
		return 0
	}
	return c.values[lc.PhysIdx].I
}

// Double reads col as a floating-point value, widening an integer column.
func (c *Cursor) Double(col string) float64 {
	lc, ok := c.logicalColumn(col)
	if !ok {
		return 0
	}
	v := c.values[lc.PhysIdx]
	if v.Kind == record.KindInt {
		return float64(v.I)
	}
	return v.F
}

// String reads col as text.
func (c *Cursor) String(col string) string {
	lc, ok := c.logicalColumn(col)
	if !ok {
		return ""
	}
	return c.values[lc.PhysIdx].S
}

// Blob reads col as raw bytes.
func (c *Cursor) Blob(col string) []byte {
	lc, ok := c.logicalColumn(col)
	if !ok {
		return nil
	}
	return c.values[lc.PhysIdx].B
}

// GUID reassembles col's merged physical halves into canonical GUID text.
// col must be a column declared GUID/UUID.
func (c *Cursor) GUID(col string) (string, error) {
	lc, ok := c.logicalColumn(col)
	if !ok || lc.Kind != catalog.LogicalGUID {
		return "", sharcerr.New(sharcerr.InvalidArgument, "sharc: not a GUID column: "+col)
	}
	return merged.FormatGUID(c.values[lc.PhysIdx].I, c.values[lc.PhysIdxLo].I), nil
}

// Decimal reassembles col's merged physical halves into a plain decimal
// string. col must be a column declared FIX128/DECIMAL128.
func (c *Cursor) Decimal(col string) (string, error) {
	lc, ok := c.logicalColumn(col)
	if !ok || lc.Kind != catalog.LogicalFIX128 {
		return "", sharcerr.New(sharcerr.InvalidArgument, "sharc: not a FIX128 column: "+col)
	}
	return merged.FormatFIX128(c.values[lc.PhysIdx].I, c.values[lc.PhysIdxLo].I), nil
}

// IsNull reports whether col holds NULL in the current row.
func (c *Cursor) IsNull(col string) bool {
	lc, ok := c.logicalColumn(col)
	if !ok {
		return true
	}
	return c.values[lc.PhysIdx].Kind == record.KindNull
}

// ColumnType names col's runtime type: "guid"/"decimal" for a merged
// column, else one of "int64"/"double"/"string"/"blob"/"null".
func (c *Cursor) ColumnType(col string) string {
	lc, ok := c.logicalColumn(col)
	if !ok {
		return ""
	}
	switch lc.Kind {
	case catalog.LogicalGUID:
		return "guid"
	case catalog.LogicalFIX128:
		return "decimal"
	}
	switch c.values[lc.PhysIdx].Kind {
	case record.KindInt:
		return "int64"
	case record.KindFloat:
		return "double"
	case record.KindText:
		return "string"
	case record.KindBlob:
		return "blob"
	default:
		return "null"
	}
}
