package tipy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FieldType is the normalized base type of a column.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInteger
	FieldFloat
	FieldDateTime
)

func (t FieldType) String() string {
	switch t {
	case FieldInteger:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldDateTime:
		return "datetime"
	default:
		return "string"
	}
}

// nativeTypes maps declared column types, with size and sign qualifiers
// stripped, to their base type.
var nativeTypes = map[string]FieldType{
	"char":              FieldString,
	"character":         FieldString,
	"character varying": FieldString,
	"varchar":           FieldString,
	"nchar":             FieldString,
	"nvarchar":          FieldString,
	"text":              FieldString,
	"tinytext":          FieldString,
	"mediumtext":        FieldString,
	"longtext":          FieldString,
	"clob":              FieldString,
	"binary":            FieldString,
	"varbinary":         FieldString,
	"blob":              FieldString,
	"tinyblob":          FieldString,
	"mediumblob":        FieldString,
	"longblob":          FieldString,
	"bytea":             FieldString,
	"enum":              FieldString,
	"set":               FieldString,
	"json":              FieldString,
	"jsonb":             FieldString,
	"uuid":              FieldString,
	"time":              FieldString,
	"timetz":            FieldString,
	"interval":          FieldString,

	"time without time zone": FieldString,
	"time with time zone":    FieldString,

	"int":         FieldInteger,
	"integer":     FieldInteger,
	"tinyint":     FieldInteger,
	"smallint":    FieldInteger,
	"mediumint":   FieldInteger,
	"bigint":      FieldInteger,
	"int2":        FieldInteger,
	"int4":        FieldInteger,
	"int8":        FieldInteger,
	"serial":      FieldInteger,
	"bigserial":   FieldInteger,
	"smallserial": FieldInteger,
	"bit":         FieldInteger,
	"bool":        FieldInteger,
	"boolean":     FieldInteger,
	"year":        FieldInteger,

	"float":            FieldFloat,
	"float4":           FieldFloat,
	"float8":           FieldFloat,
	"double":           FieldFloat,
	"double precision": FieldFloat,
	"real":             FieldFloat,
	"decimal":          FieldFloat,
	"numeric":          FieldFloat,

	"date":                        FieldDateTime,
	"datetime":                    FieldDateTime,
	"timestamp":                   FieldDateTime,
	"timestamptz":                 FieldDateTime,
	"timestamp without time zone": FieldDateTime,
	"timestamp with time zone":    FieldDateTime,
}

// baseTypeName strips size and sign qualifiers from a declared type
// ("INT(11) UNSIGNED" -> "int").
func baseTypeName(declared string) string {
	t := strings.ToLower(strings.TrimSpace(declared))
	if idx := strings.IndexByte(t, '('); idx >= 0 {
		end := strings.IndexByte(t[idx:], ')')
		if end < 0 {
			t = t[:idx]
		} else {
			t = t[:idx] + t[idx+end+1:]
		}
	}
	for _, q := range []string{" unsigned", " zerofill", " signed"} {
		t = strings.ReplaceAll(t, q, "")
	}
	return strings.Join(strings.Fields(t), " ")
}

// normalizeColumnType classifies a declared column type.
func normalizeColumnType(declared string) (FieldType, error) {
	ft, ok := nativeTypes[baseTypeName(declared)]
	if !ok {
		return FieldString, fmt.Errorf("%w: %q", ErrUnknownColumnType, declared)
	}
	return ft, nil
}

// Schema is the reflected column layout of a model's table. It is computed
// once per model and shared, read-only, by every record of that model.
type Schema struct {
	Table      string
	Fields     []string             // column names, in table order
	FieldTypes map[string]FieldType // column -> base type
	Attributes []string             // attribute names, one per field

	nativeTypes map[string]string // column -> declared type without qualifiers
	fieldToAttr map[string]string
	attrToField map[string]string
}

// AttributeOf returns the attribute name of a column.
func (s *Schema) AttributeOf(field string) (string, bool) {
	a, ok := s.fieldToAttr[field]
	return a, ok
}

// FieldOf returns the column name of an attribute.
func (s *Schema) FieldOf(attr string) (string, bool) {
	f, ok := s.attrToField[attr]
	return f, ok
}

// HasField reports whether the table has the column.
func (s *Schema) HasField(field string) bool {
	_, ok := s.fieldToAttr[field]
	return ok
}

// dbValue prepares an attribute value for binding to field. Date columns
// keep their date-only form.
func (s *Schema) dbValue(field string, v any) any {
	if s.nativeTypes[field] == "date" {
		switch t := v.(type) {
		case time.Time:
			return t.Format(DateLayout)
		case *time.Time:
			if t != nil {
				return t.Format(DateLayout)
			}
		}
	}
	return toDBValue(v, s.FieldTypes[field])
}

// TypeOfAttribute returns the base type of an attribute's column.
func (s *Schema) TypeOfAttribute(attr string) FieldType {
	return s.FieldTypes[s.attrToField[attr]]
}

var (
	schemaCache = make(map[string]*Schema)
	schemaMu    sync.RWMutex
)

// reflectSchema returns the schema of model, describing its table on the
// first call for that model name and serving the cached copy afterwards.
func reflectSchema(ctx context.Context, db *DB, model *Model) (*Schema, error) {
	if s, ok := cachedSchema(model.name); ok {
		return s, nil
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	// Double check locking
	if s, ok := schemaCache[model.name]; ok {
		return s, nil
	}

	s, err := describeTable(ctx, db, model.table)
	if err != nil {
		return nil, err
	}

	schemaCache[model.name] = s
	return s, nil
}

// cachedSchema returns the schema of a model reflected earlier, if any.
func cachedSchema(modelName string) (*Schema, bool) {
	schemaMu.RLock()
	defer schemaMu.RUnlock()
	s, ok := schemaCache[modelName]
	return s, ok
}

func describeTable(ctx context.Context, db *DB, table string) (*Schema, error) {
	d := db.Dialect()
	rows, err := db.QueryAllRows(ctx, fmt.Sprintf(d.QueryTableSchema, table))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("tipy: table %s has no columns or does not exist", table)
	}

	s := &Schema{
		Table:       table,
		Fields:      make([]string, 0, len(rows)),
		FieldTypes:  make(map[string]FieldType, len(rows)),
		Attributes:  make([]string, 0, len(rows)),
		nativeTypes: make(map[string]string, len(rows)),
		fieldToAttr: make(map[string]string, len(rows)),
		attrToField: make(map[string]string, len(rows)),
	}

	for _, row := range rows {
		field := row.String(d.SchemaNameColumn)
		declared := row.String(d.SchemaTypeColumn)
		ft, err := normalizeColumnType(declared)
		if err != nil {
			return nil, fmt.Errorf("tipy: column %s.%s: %w", table, field, err)
		}

		attr := AttributeName(field)
		s.Fields = append(s.Fields, field)
		s.FieldTypes[field] = ft
		s.nativeTypes[field] = baseTypeName(declared)
		s.Attributes = append(s.Attributes, attr)
		s.fieldToAttr[field] = attr
		s.attrToField[attr] = field
	}

	return s, nil
}
