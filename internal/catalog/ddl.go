package catalog

import (
	"strings"

	"github.com/revred/sharc-core/internal/sharcerr"
)

// ParseCreateTable parses a `CREATE TABLE name (col type [PRIMARY KEY], ...)
// [WITHOUT ROWID]` statement into a TableDef, expanding GUID and FIX128
// declared column types into their paired physical __hi/__lo (or
// __dhi/__dlo) columns and recording the logical/physical mapping.
//
// This is a purpose-built recognizer for the narrow DDL grammar the catalog
// itself round-trips (its own stored DDLText), not a general SQL parser:
// text-based query DDL is out of scope (see SPEC_FULL.md's Non-goals).
func ParseCreateTable(ddl string) (*TableDef, error) {
	s := strings.TrimSpace(ddl)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "CREATE TABLE") {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: expected CREATE TABLE")
	}
	s = strings.TrimSpace(s[len("CREATE TABLE"):])

	withoutRowID := false
	if idx := strings.LastIndex(strings.ToUpper(s), "WITHOUT ROWID"); idx >= 0 {
		withoutRowID = true
		s = strings.TrimSpace(s[:idx])
	}

	open := strings.Index(s, "(")
	close := strings.LastIndex(s, ")")
	if open < 0 || close < 0 || close < open {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: malformed column list")
	}
	name := stripQuotes(strings.TrimSpace(s[:open]))
	if name == "" {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: missing table name")
	}
	body := s[open+1 : close]

	def := &TableDef{Name: name, WithoutRowID: withoutRowID, DDLText: "CREATE TABLE " + ddlBody(name, body, withoutRowID)}
	for _, part := range splitTopLevel(body) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		upperPart := strings.ToUpper(part)
		if strings.HasPrefix(upperPart, "PRIMARY KEY") {
			def.PrimaryKey = append(def.PrimaryKey, parsePrimaryKeyColumns(part)...)
			continue
		}
		if strings.HasPrefix(upperPart, "CONSTRAINT") {
			continue
		}
		if err := addColumn(def, part); err != nil {
			return nil, err
		}
	}
	if len(def.Columns) == 0 {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: table has no columns")
	}
	if withoutRowID && len(def.PrimaryKey) == 0 {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: WITHOUT ROWID table requires a PRIMARY KEY")
	}
	return def, nil
}

// parsePrimaryKeyColumns extracts the column list from a table-level
// "PRIMARY KEY (col1, col2, ...)" constraint.
func parsePrimaryKeyColumns(decl string) []string {
	open := strings.Index(decl, "(")
	close := strings.LastIndex(decl, ")")
	if open < 0 || close < 0 || close < open {
		return nil
	}
	var cols []string
	for _, part := range splitTopLevel(decl[open+1 : close]) {
		col := stripQuotes(strings.TrimSpace(part))
		if col == "" {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// ParseCreateIndex parses a `CREATE INDEX name ON table (col1, col2, ...)`
// statement into an IndexDef (spec §3.4/§4.3.3). Like ParseCreateTable, this
// is a narrow recognizer for the catalog's own round-tripped DDL, not a
// general SQL parser.
func ParseCreateIndex(ddl string) (*IndexDef, error) {
	s := strings.TrimSpace(ddl)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "CREATE INDEX") {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: expected CREATE INDEX")
	}
	s = strings.TrimSpace(s[len("CREATE INDEX"):])
	upper = strings.ToUpper(s)
	onIdx := strings.Index(upper, " ON ")
	if onIdx < 0 {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: expected ON table")
	}
	name := stripQuotes(strings.TrimSpace(s[:onIdx]))
	if name == "" {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: missing index name")
	}
	rest := strings.TrimSpace(s[onIdx+len(" ON "):])

	open := strings.Index(rest, "(")
	close := strings.LastIndex(rest, ")")
	if open < 0 || close < 0 || close < open {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: malformed indexed column list")
	}
	tableName := stripQuotes(strings.TrimSpace(rest[:open]))
	if tableName == "" {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: missing indexed table name")
	}
	var columns []string
	for _, part := range splitTopLevel(rest[open+1 : close]) {
		col := stripQuotes(strings.TrimSpace(part))
		if col == "" {
			continue
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: index has no columns")
	}
	return &IndexDef{
		Name:      name,
		TableName: tableName,
		Columns:   columns,
		DDLText:   "CREATE INDEX " + name + " ON " + tableName + " (" + strings.Join(columns, ", ") + ")",
	}, nil
}

func ddlBody(name, body string, withoutRowID bool) string {
	suffix := ""
	if withoutRowID {
		suffix = " WITHOUT ROWID"
	}
	return name + " (" + strings.TrimSpace(body) + ")" + suffix
}

func addColumn(def *TableDef, decl string) error {
	fields := strings.Fields(decl)
	if len(fields) == 0 {
		return sharcerr.New(sharcerr.InvalidArgument, "catalog: empty column declaration")
	}
	colName := stripQuotes(fields[0])
	declType := "TEXT"
	if len(fields) > 1 {
		declType = strings.ToUpper(fields[1])
	}
	rest := strings.ToUpper(strings.Join(fields[1:], " "))
	isPK := strings.Contains(rest, "PRIMARY KEY")
	isIntPK := isPK && (declType == "INTEGER" || declType == "INT")

	switch declType {
	case "GUID", "UUID":
		hiIdx := len(def.Columns)
		def.Columns = append(def.Columns, Column{Name: colName + "__hi", Kind: PhysInt, Position: hiIdx})
		loIdx := len(def.Columns)
		def.Columns = append(def.Columns, Column{Name: colName + "__lo", Kind: PhysInt, Position: loIdx})
		def.Logical = append(def.Logical, LogicalColumn{Name: colName, Kind: LogicalGUID, DeclType: declType, PhysIdx: hiIdx, PhysIdxLo: loIdx})
	case "FIX128", "DECIMAL128":
		hiIdx := len(def.Columns)
		def.Columns = append(def.Columns, Column{Name: colName + "__dhi", Kind: PhysInt, Position: hiIdx})
		loIdx := len(def.Columns)
		def.Columns = append(def.Columns, Column{Name: colName + "__dlo", Kind: PhysInt, Position: loIdx})
		def.Logical = append(def.Logical, LogicalColumn{Name: colName, Kind: LogicalFIX128, DeclType: declType, PhysIdx: hiIdx, PhysIdxLo: loIdx})
	default:
		idx := len(def.Columns)
		def.Columns = append(def.Columns, Column{Name: colName, Kind: physKindOf(declType), Position: idx})
		def.Logical = append(def.Logical, LogicalColumn{Name: colName, Kind: LogicalPlain, DeclType: declType, PhysIdx: idx, IsRowIDAlias: isIntPK})
	}
	if isPK && !isIntPK {
		def.PrimaryKey = append(def.PrimaryKey, colName)
	}
	return nil
}

func physKindOf(declType string) PhysKind {
	switch declType {
	case "INTEGER", "INT", "BIGINT", "BOOLEAN", "BOOL":
		return PhysInt
	case "REAL", "FLOAT", "DOUBLE":
		return PhysFloat
	case "BLOB":
		return PhysBlob
	default:
		return PhysText
	}
}

func stripQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	pairs := [][2]byte{{'"', '"'}, {'`', '`'}, {'[', ']'}}
	for _, p := range pairs {
		if s[0] == p[0] && s[len(s)-1] == p[1] {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// splitTopLevel splits a comma-separated column list, respecting nested
// parens (e.g. DECIMAL(10,2) or a FOREIGN KEY clause).
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
