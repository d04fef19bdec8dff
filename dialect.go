package tipy

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported engines.
type Dialect struct {
	DriverName string

	// IncludeIndexInPlaceholder rewrites ? placeholders to $1, $2...
	IncludeIndexInPlaceholder bool

	// QueryTableSchema lists the columns of a table; %s receives the quoted table name.
	QueryTableSchema string
	// SchemaNameColumn and SchemaTypeColumn name the result columns holding
	// the column name and its declared type.
	SchemaNameColumn string
	SchemaTypeColumn string

	// ReturningID makes inserts read the identity through RETURNING instead of LastInsertId.
	ReturningID bool

	// ForUpdate is appended to row-locking selects; empty when the engine has no row locks.
	ForUpdate string

	// EmptyInsert is the VALUES part of an insert that sets no columns.
	EmptyInsert string

	// LimitAll is the LIMIT value meaning "no limit", for engines that
	// reject OFFSET without LIMIT.
	LimitAll string
}

// Dialects holds the engines tipy knows about.
var Dialects = &struct {
	MySQL      *Dialect
	PostgreSQL *Dialect
	SQLite3    *Dialect
}{
	MySQL: &Dialect{
		DriverName:       "mysql",
		QueryTableSchema: "SHOW COLUMNS FROM %s",
		SchemaNameColumn: "Field",
		SchemaTypeColumn: "Type",
		ForUpdate:        " FOR UPDATE",
		EmptyInsert:      "() VALUES ()",
		LimitAll:         "18446744073709551615",
	},

	PostgreSQL: &Dialect{
		DriverName:                "postgres",
		IncludeIndexInPlaceholder: true,
		QueryTableSchema:          "SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = '%s' ORDER BY ordinal_position",
		SchemaNameColumn:          "column_name",
		SchemaTypeColumn:          "data_type",
		ReturningID:               true,
		ForUpdate:                 " FOR UPDATE",
		EmptyInsert:               "DEFAULT VALUES",
	},

	SQLite3: &Dialect{
		DriverName:       "sqlite3",
		QueryTableSchema: "PRAGMA table_info(%s)",
		SchemaNameColumn: "name",
		SchemaTypeColumn: "type",
		EmptyInsert:      "DEFAULT VALUES",
		LimitAll:         "-1",
	},
}

// dialectFor picks the dialect registered under a database/sql driver name.
func dialectFor(driverName string) *Dialect {
	switch driverName {
	case "mysql":
		return Dialects.MySQL
	case "postgres", "pgx", "pgx/v5":
		return Dialects.PostgreSQL
	default:
		return Dialects.SQLite3
	}
}

// Rebind converts ? placeholders to the dialect's native form.
func (d *Dialect) Rebind(query string) string {
	if !d.IncludeIndexInPlaceholder {
		return query
	}
	return rebind(query)
}

// limitClause renders LIMIT/OFFSET; a zero limit means no limit.
func (d *Dialect) limitClause(offset, limit int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	var sb strings.Builder
	if limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(limit))
	} else if d.LimitAll != "" {
		sb.WriteString(" LIMIT ")
		sb.WriteString(d.LimitAll)
	}
	if offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(offset))
	}
	return sb.String()
}

// rebind rewrites ? placeholders to $n, leaving quoted literals untouched.
func rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			sb.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
