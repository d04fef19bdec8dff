package tipy

import (
	"context"
	"fmt"
	"strings"
)

// DefaultOrder is the ordering applied when FindOptions.Order is empty.
const DefaultOrder = PrimaryKey + " ASC"

// FindOptions narrows a lookup. Where is a raw SQL condition with ?
// placeholders bound to Args. A zero Limit means no limit.
type FindOptions struct {
	Where  string
	Args   []any
	Order  string
	Limit  int
	Offset int
}

// conjoin joins conditions with AND, each in parentheses, skipping empties.
func conjoin(conds ...string) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if strings.TrimSpace(c) == "" {
			continue
		}
		parts = append(parts, "("+c+")")
	}
	return strings.Join(parts, " AND ")
}

// Load fetches the record with the given id. A missing row yields nil and
// no error.
func (m *Model) Load(ctx context.Context, db *DB, id any) (*Record, error) {
	return m.loadBy(ctx, db, id, "")
}

// LockForUpdate loads the record with the given id and locks its row until
// the enclosing transaction ends. It fails with ErrNoTransaction when no
// transaction is open. SQLite locks the whole database file on write and has
// no row lock clause, so there the row is only read.
func (m *Model) LockForUpdate(ctx context.Context, db *DB, id any) (*Record, error) {
	if !db.InTransaction() {
		return nil, fmt.Errorf("%w: lock %s id=%v", ErrNoTransaction, m.name, id)
	}
	return m.loadBy(ctx, db, id, db.dialect.ForUpdate)
}

func (m *Model) loadBy(ctx context.Context, db *DB, id any, suffix string) (*Record, error) {
	s, err := m.prepare(ctx, db)
	if err != nil {
		return nil, err
	}

	row, err := db.QueryRow(ctx, selectBase(s.Table)+" WHERE "+PrimaryKey+" = ?"+suffix, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return m.fromRow(db, s, row)
}

// Create builds a record from attrs and saves it. The record is returned
// even when the save fails.
func (m *Model) Create(ctx context.Context, db *DB, attrs Attrs) (*Record, error) {
	r, err := m.New(ctx, db, attrs)
	if err != nil {
		return r, err
	}
	return r, r.Save(ctx)
}

// Count returns the number of rows matching opts. Order, Limit and Offset
// are ignored.
func (m *Model) Count(ctx context.Context, db *DB, opts *FindOptions) (int64, error) {
	s, err := m.prepare(ctx, db)
	if err != nil {
		return 0, err
	}

	query := countBase(s.Table)
	var args []any
	if opts != nil && opts.Where != "" {
		query += " WHERE " + opts.Where
		args = opts.Args
	}

	row, err := db.QueryRow(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}
	n, err := coerce(row["count"], FieldInteger)
	if err != nil {
		return 0, err
	}
	return n.(int64), nil
}

// Find returns every record matching opts, ordered by id ascending unless
// opts sets an order.
func (m *Model) Find(ctx context.Context, db *DB, opts *FindOptions) ([]*Record, error) {
	s, err := m.prepare(ctx, db)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &FindOptions{}
	}

	var sb strings.Builder
	sb.WriteString(selectBase(s.Table))
	if opts.Where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(opts.Where)
	}
	sb.WriteString(" ORDER BY ")
	if opts.Order != "" {
		sb.WriteString(opts.Order)
	} else {
		sb.WriteString(DefaultOrder)
	}

	rows, err := db.LimitQueryAllRows(ctx, sb.String(), opts.Offset, opts.Limit, opts.Args...)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		r, err := m.fromRow(db, s, row)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// FindFirst is Find limited to one row. It returns nil when nothing matches.
func (m *Model) FindFirst(ctx context.Context, db *DB, opts *FindOptions) (*Record, error) {
	first := &FindOptions{}
	if opts != nil {
		*first = *opts
	}
	first.Limit = 1

	records, err := m.Find(ctx, db, first)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// prepare resolves associations and reflects the schema.
func (m *Model) prepare(ctx context.Context, db *DB) (*Schema, error) {
	if err := m.resolve(); err != nil {
		return nil, err
	}
	return reflectSchema(ctx, db, m)
}

func (m *Model) fromRow(db *DB, s *Schema, row Row) (*Record, error) {
	data, err := materialize(s, row)
	if err != nil {
		return nil, err
	}
	r := newRecord(m, db, s)
	r.data = data
	r.snapshot()
	return r, nil
}
