package tipy

import (
	"database/sql"
)

// Row is one result row keyed by column name. Values are the raw driver
// values; the coercion layer turns them into typed attribute values.
type Row map[string]any

// String returns the column value as text, or "" when it is NULL or missing.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		s, _ := coerce(v, FieldString)
		if str, ok := s.(string); ok {
			return str
		}
		return ""
	}
}

// scanRows drains rows into a slice of Row maps and closes them.
func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for rows.Next() {
		for i := range values {
			values[i] = nil
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
