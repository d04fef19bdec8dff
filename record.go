package tipy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Attrs is a set of attribute values keyed by attribute name.
type Attrs map[string]any

// Record is one row of a model's table held in memory.
//
// A record moves from new to persisted when a save succeeds and from
// persisted to deleted when a delete succeeds. A deleted record stays
// readable but rejects every write.
type Record struct {
	model  *Model
	db     *DB
	schema *Schema

	data     map[string]any
	original map[string]any
	deleted  bool

	// cache holds association results by name. A present key with a nil
	// value records an absent result.
	cache map[string]any
}

func newRecord(m *Model, db *DB, s *Schema) *Record {
	return &Record{
		model:  m,
		db:     db,
		schema: s,
		data:   make(map[string]any, len(s.Attributes)),
		cache:  make(map[string]any),
	}
}

// New builds a record from attrs. When attrs carries an id, the persisted
// row is loaded first and the remaining attrs are applied over it in memory.
func (m *Model) New(ctx context.Context, db *DB, attrs Attrs) (*Record, error) {
	s, err := m.prepare(ctx, db)
	if err != nil {
		return nil, err
	}

	r := newRecord(m, db, s)
	if id, ok := attrs[PrimaryKey]; ok && !isBlankID(id) {
		loaded, err := m.Load(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			return nil, fmt.Errorf("%w: %s id=%v", ErrRecordNotFound, m.name, id)
		}
		r = loaded
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k != PrimaryKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := r.Set(k, attrs[k]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Model returns the record's model.
func (r *Record) Model() *Model { return r.model }

// ID returns the identity value, or nil for a new record.
func (r *Record) ID() any { return r.data[PrimaryKey] }

// IsNewRecord reports whether the record has no identity yet.
func (r *Record) IsNewRecord() bool { return isBlankID(r.ID()) }

// IsDeleted reports whether the record was deleted.
func (r *Record) IsDeleted() bool { return r.deleted }

// CheckAttribute returns an unknown-property error when name is not a
// reflected attribute of the model.
func (r *Record) CheckAttribute(name string) error {
	if _, ok := r.schema.attrToField[name]; !ok {
		return &PropertyError{Model: r.model.name, Name: name}
	}
	return nil
}

// Get resolves name as a method, then an association, then an attribute.
// An unset attribute reads as nil.
func (r *Record) Get(ctx context.Context, name string) (any, error) {
	switch lookupMember(name, r.model.methods, r.model.associations, r.schema) {
	case memberMethod:
		return r.model.methods[name](ctx, r)
	case memberAssociation:
		return r.Related(ctx, name, nil)
	case memberAttribute:
		return r.data[name], nil
	}
	return nil, &PropertyError{Model: r.model.name, Name: name}
}

// Set stores value under an attribute as given; it is not coerced.
func (r *Record) Set(name string, value any) error {
	if err := r.CheckAttribute(name); err != nil {
		return err
	}
	if r.deleted {
		return r.stateError("modify", "deleted")
	}
	r.data[name] = value
	return nil
}

// Attributes returns a copy of the attributes currently held in memory.
func (r *Record) Attributes() Attrs {
	out := make(Attrs, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}

// Save validates the record, then inserts it when new or updates it when
// persisted.
func (r *Record) Save(ctx context.Context) error {
	if r.deleted {
		return r.stateError("save", "deleted")
	}
	if err := runHook(ctx, r.model.hooks.Validate, r); err != nil {
		return err
	}
	if r.IsNewRecord() {
		return r.insert(ctx)
	}
	return r.update(ctx)
}

func (r *Record) insert(ctx context.Context) error {
	if err := runHook(ctx, r.model.hooks.BeforeCreate, r); err != nil {
		return err
	}

	if attr, ok := r.schema.AttributeOf(createdAtField); ok && r.data[attr] == nil {
		r.data[attr] = clock()
	}

	var (
		columns []string
		args    []any
	)
	for i, field := range r.schema.Fields {
		if field == PrimaryKey {
			continue
		}
		attr := r.schema.Attributes[i]
		v, ok := r.data[attr]
		if !ok {
			continue
		}
		columns = append(columns, field)
		args = append(args, r.schema.dbValue(field, v))
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(r.schema.Table)
	if len(columns) == 0 {
		sb.WriteByte(' ')
		sb.WriteString(r.db.dialect.EmptyInsert)
	} else {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(columns, ", "))
		sb.WriteString(") VALUES (")
		sb.WriteString(placeholders(len(columns)))
		sb.WriteByte(')')
	}

	id, err := r.db.insert(ctx, sb.String(), PrimaryKey, args)
	if err != nil {
		return err
	}
	if id, err = coerce(id, r.schema.FieldTypes[PrimaryKey]); err != nil {
		return err
	}
	r.data[PrimaryKey] = id
	r.snapshot()

	return runHook(ctx, r.model.hooks.AfterCreate, r)
}

func (r *Record) update(ctx context.Context) error {
	if err := runHook(ctx, r.model.hooks.BeforeUpdate, r); err != nil {
		return err
	}

	if attr, ok := r.schema.AttributeOf(updatedAtField); ok {
		r.data[attr] = clock()
	}

	var (
		sets []string
		args []any
	)
	for i, field := range r.schema.Fields {
		if field == PrimaryKey {
			continue
		}
		attr := r.schema.Attributes[i]
		v, ok := r.data[attr]
		if !ok {
			continue
		}
		sets = append(sets, field+" = ?")
		args = append(args, r.schema.dbValue(field, v))
	}

	if len(sets) > 0 {
		query := "UPDATE " + r.schema.Table + " SET " + strings.Join(sets, ", ") + " WHERE " + PrimaryKey + " = ?"
		if _, err := r.db.Exec(ctx, query, append(args, r.ID())...); err != nil {
			return err
		}
	}
	r.snapshot()

	return runHook(ctx, r.model.hooks.AfterUpdate, r)
}

// Update sets one attribute on a persisted record and saves it.
func (r *Record) Update(ctx context.Context, name string, value any) error {
	if err := r.CheckAttribute(name); err != nil {
		return err
	}
	if r.deleted {
		return r.stateError("update", "deleted")
	}
	if r.IsNewRecord() {
		return r.stateError("update", "new")
	}
	r.data[name] = value
	return r.Save(ctx)
}

// Reload replaces the in-memory attributes with the persisted row and
// drops every cached association.
func (r *Record) Reload(ctx context.Context) error {
	if r.deleted {
		return r.stateError("reload", "deleted")
	}
	if r.IsNewRecord() {
		return r.stateError("reload", "new")
	}

	row, err := r.db.QueryRow(ctx, selectBase(r.schema.Table)+" WHERE "+PrimaryKey+" = ?", r.ID())
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: %s id=%v", ErrRecordNotFound, r.model.name, r.ID())
	}

	data, err := materialize(r.schema, row)
	if err != nil {
		return err
	}
	r.data = data
	r.snapshot()
	r.clearCache()
	return nil
}

// Delete removes the row, applies the cascade policy of every dependent
// HasOne and HasMany association, and marks the record deleted.
func (r *Record) Delete(ctx context.Context) error {
	if r.deleted {
		return r.stateError("delete", "deleted")
	}
	if r.IsNewRecord() {
		return r.stateError("delete", "new")
	}

	if err := r.model.resolve(); err != nil {
		return err
	}
	if err := runHook(ctx, r.model.hooks.BeforeDelete, r); err != nil {
		return err
	}

	query := "DELETE FROM " + r.schema.Table + " WHERE " + PrimaryKey + " = ?"
	if _, err := r.db.Exec(ctx, query, r.ID()); err != nil {
		return err
	}

	for _, a := range r.model.Associations() {
		if a.Kind != HasOneKind && a.Kind != HasManyKind {
			continue
		}
		var err error
		switch a.Dependent {
		case CascadeDelete:
			err = r.cascadeDelete(ctx, a)
		case CascadeNullify:
			err = r.cascadeNullify(ctx, a)
		}
		if err != nil {
			return WrapRelationError(a.Name, r.model.name, err)
		}
	}

	r.deleted = true
	r.clearCache()

	return runHook(ctx, r.model.hooks.AfterDelete, r)
}

func (r *Record) stateError(op, state string) error {
	return &StateError{Model: r.model.name, Op: op, State: state}
}

func (r *Record) clearCache() {
	r.cache = make(map[string]any)
}

// materialize coerces a fetched row into attribute values.
func materialize(s *Schema, row Row) (map[string]any, error) {
	data := make(map[string]any, len(s.Fields))
	for i, field := range s.Fields {
		raw, ok := row[field]
		if !ok {
			continue
		}
		v, err := coerce(raw, s.FieldTypes[field])
		if err != nil {
			return nil, fmt.Errorf("tipy: %s.%s: %w", s.Table, field, err)
		}
		data[s.Attributes[i]] = v
	}
	return data, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// isBlankID reports whether an identity value counts as unset.
func isBlankID(id any) bool {
	switch v := id.(type) {
	case nil:
		return true
	case int64:
		return v == 0
	case int:
		return v == 0
	case int32:
		return v == 0
	case uint64:
		return v == 0
	case float64:
		return v == 0
	case string:
		return v == "" || v == "0"
	case []byte:
		return len(v) == 0
	}
	return false
}

// clock yields the timestamp written to created_at and updated_at, truncated
// to the precision the datetime layout stores.
var clock = func() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
