package tipy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	// Drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the SQL execution surface records run against. It lazily opens one
// connection and reuses it for every statement, which is what lets raw
// BEGIN/SAVEPOINT statements form a transaction.
//
// A DB serves one flow at a time: the connection and the transaction depth
// are not guarded for concurrent use.
type DB struct {
	sqlDB  *sql.DB
	ownsDB bool

	connMu sync.Mutex
	conn   *sql.Conn

	dialect       *Dialect
	logger        *zap.Logger
	slowThreshold time.Duration
	stmtCache     *StmtCache

	depth int
}

// Option configures a DB.
type Option func(*DB)

// WithDialect overrides the dialect inferred from the driver name.
func WithDialect(d *Dialect) Option {
	return func(db *DB) {
		db.dialect = d
	}
}

// WithLogger sets the zap logger used to trace statements.
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithSlowThreshold logs statements slower than d at warn level.
func WithSlowThreshold(d time.Duration) Option {
	return func(db *DB) {
		db.slowThreshold = d
	}
}

// WithStmtCache prepares SELECT/INSERT/UPDATE/DELETE statements once and
// keeps up to capacity of them.
func WithStmtCache(capacity int) Option {
	return func(db *DB) {
		db.stmtCache = NewStmtCache(capacity)
	}
}

// New wraps an existing *sql.DB. The dialect defaults to SQLite unless
// WithDialect is given.
func New(sqlDB *sql.DB, opts ...Option) *DB {
	db := &DB{
		sqlDB:   sqlDB,
		dialect: Dialects.SQLite3,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Open opens a database with one of the registered drivers (mysql, pgx,
// postgres, sqlite3) and picks the matching dialect.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db := New(sqlDB, append([]Option{WithDialect(dialectFor(driverName))}, opts...)...)
	db.ownsDB = true
	return db, nil
}

// Dialect returns the dialect statements are rendered for.
func (db *DB) Dialect() *Dialect {
	return db.dialect
}

// connection returns the single connection, establishing it on first use.
func (db *DB) connection(ctx context.Context) (*sql.Conn, error) {
	db.connMu.Lock()
	defer db.connMu.Unlock()

	if db.conn != nil {
		return db.conn, nil
	}

	conn, err := db.sqlDB.Conn(ctx)
	if err != nil {
		return nil, WrapQueryError("CONNECT", "", nil, err)
	}
	db.conn = conn
	return conn, nil
}

// preparedOrConn runs a statement either through its cached prepared form
// or directly on the connection.
type preparedOrConn struct {
	conn *sql.Conn
	stmt *sql.Stmt
}

func (p preparedOrConn) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	if p.stmt != nil {
		return p.stmt.ExecContext(ctx, args...)
	}
	return p.conn.ExecContext(ctx, query, args...)
}

func (p preparedOrConn) query(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	if p.stmt != nil {
		return p.stmt.QueryContext(ctx, args...)
	}
	return p.conn.QueryContext(ctx, query, args...)
}

// target resolves where a statement runs, preparing it through the
// statement cache when one is configured.
func (db *DB) target(ctx context.Context, query string) (preparedOrConn, error) {
	conn, err := db.connection(ctx)
	if err != nil {
		return preparedOrConn{}, err
	}

	if db.stmtCache == nil || !cacheable(query) {
		return preparedOrConn{conn: conn}, nil
	}

	if stmt := db.stmtCache.Get(query); stmt != nil {
		return preparedOrConn{conn: conn, stmt: stmt}, nil
	}

	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return preparedOrConn{}, WrapQueryError("PREPARE", query, nil, err)
	}
	db.stmtCache.Put(query, stmt)
	return preparedOrConn{conn: conn, stmt: stmt}, nil
}

// Exec runs a statement that returns no rows. Placeholders are written as ?.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = db.dialect.Rebind(query)
	t, err := db.target(ctx, query)
	if err != nil {
		return nil, err
	}

	begin := time.Now()
	res, err := t.exec(ctx, query, args)
	rows := int64(-1)
	if err == nil {
		if n, nErr := res.RowsAffected(); nErr == nil {
			rows = n
		}
	}
	db.traceSQL(begin, query, args, rows, err)
	if err != nil {
		return nil, WrapQueryError(operationOf(query), query, args, err)
	}
	return res, nil
}

// QueryAllRows runs a query and returns every row.
func (db *DB) QueryAllRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	query = db.dialect.Rebind(query)
	t, err := db.target(ctx, query)
	if err != nil {
		return nil, err
	}

	begin := time.Now()
	rows, err := t.query(ctx, query, args)
	var out []Row
	if err == nil {
		out, err = scanRows(rows)
	}
	db.traceSQL(begin, query, args, int64(len(out)), err)
	if err != nil {
		return nil, WrapQueryError(operationOf(query), query, args, err)
	}
	return out, nil
}

// LimitQueryAllRows runs a query restricted to limit rows after skipping
// offset rows. A zero limit means no limit.
func (db *DB) LimitQueryAllRows(ctx context.Context, query string, offset, limit int, args ...any) ([]Row, error) {
	return db.QueryAllRows(ctx, query+db.dialect.limitClause(offset, limit), args...)
}

// QueryRow runs a query and returns its first row, or nil when there is none.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := db.QueryAllRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// insert runs an INSERT and returns the generated identity of pk.
func (db *DB) insert(ctx context.Context, query, pk string, args []any) (any, error) {
	if !db.dialect.ReturningID {
		res, err := db.Exec(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, WrapQueryError("INSERT", query, args, err)
		}
		return id, nil
	}

	row, err := db.QueryRow(ctx, query+" RETURNING "+pk, args...)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, WrapQueryError("INSERT", query, args, fmt.Errorf("no identity returned"))
	}
	return row[pk], nil
}

// execControl runs a transaction control statement. These are never
// prepared and take no arguments.
func (db *DB) execControl(ctx context.Context, stmt string) error {
	conn, err := db.connection(ctx)
	if err != nil {
		return err
	}

	begin := time.Now()
	_, err = conn.ExecContext(ctx, stmt)
	db.traceSQL(begin, stmt, nil, -1, err)
	if err != nil {
		return WrapQueryError(operationOf(stmt), stmt, nil, err)
	}
	return nil
}

// Close rolls back a transaction left open, then releases the connection.
// The underlying *sql.DB is closed only when Open created it.
func (db *DB) Close() error {
	if db.depth > 0 {
		db.logger.Warn("closing with an open transaction, rolling back", zap.Int("depth", db.depth))
		if err := db.HardRollback(context.Background()); err != nil {
			db.logger.Error("hard rollback failed", zap.Error(err))
		}
	}

	if db.stmtCache != nil {
		db.stmtCache.Clear()
	}

	db.connMu.Lock()
	var err error
	if db.conn != nil {
		err = db.conn.Close()
		db.conn = nil
	}
	db.connMu.Unlock()

	if db.ownsDB {
		if cErr := db.sqlDB.Close(); err == nil {
			err = cErr
		}
	}
	return err
}

// cacheable reports whether a statement may be kept prepared.
func cacheable(query string) bool {
	switch operationOf(query) {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return true
	}
	return false
}

func operationOf(query string) string {
	q := strings.TrimSpace(query)
	if idx := strings.IndexAny(q, " \n\t"); idx > 0 {
		q = q[:idx]
	}
	return strings.ToUpper(q)
}
