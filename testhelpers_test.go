package tipy

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

const blogSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(255),
	email VARCHAR(255),
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER,
	bio TEXT
);
CREATE TABLE blog_posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER,
	title VARCHAR(255),
	rating FLOAT,
	created_at DATETIME
);
CREATE TABLE blog_comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	blog_post_id INTEGER,
	body TEXT,
	approved TINYINT(1)
);
CREATE TABLE tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(64)
);
CREATE TABLE post_tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	blog_post_id INTEGER,
	tag_id INTEGER
);
CREATE TABLE notes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	body TEXT
);
CREATE TABLE typed_rows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	i INT(11),
	bi BIGINT UNSIGNED,
	ti TINYINT(1),
	f FLOAT,
	d DOUBLE,
	amount DECIMAL(10,2),
	s VARCHAR(20),
	txt TEXT,
	dt DATETIME,
	dd DATE,
	ts TIMESTAMP,
	maybe VARCHAR(10)
);
`

// hookRecorder collects hook invocations of the Note model.
type hookRecorder struct {
	mu     sync.Mutex
	calls  []string
	reject error
}

func (h *hookRecorder) hook(name string) HookFunc {
	return func(ctx context.Context, r *Record) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.calls = append(h.calls, name)
		if name == "validate" && h.reject != nil {
			return h.reject
		}
		return nil
	}
}

func (h *hookRecorder) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
	h.reject = nil
}

func (h *hookRecorder) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

var noteHooks = &hookRecorder{}

var (
	UserModel = Define("User",
		HasMany("posts", "BlogPost", Dependent(CascadeNullify)),
		HasOne("profile", "Profile", Dependent(CascadeDelete)),
		Method("displayName", func(ctx context.Context, r *Record) (any, error) {
			name, err := r.Get(ctx, "name")
			if err != nil {
				return nil, err
			}
			return "@" + toString(name), nil
		}),
		// A method shadowing the attribute of the same name.
		Method("email", func(ctx context.Context, r *Record) (any, error) {
			return "hidden", nil
		}),
	)

	ProfileModel = Define("Profile",
		BelongsTo("user", "User"),
	)

	BlogPostModel = Define("BlogPost",
		BelongsTo("user", "User"),
		HasMany("comments", "BlogComment", Dependent(CascadeDelete)),
		HasMany("approvedComments", "BlogComment", Where("approved = ?", 1)),
		HasManyThrough("tags", "Tag", "PostTag"),
		Validate(func(ctx context.Context, r *Record) error {
			if v, _ := r.Get(ctx, "userId"); v == nil {
				return NewValidationError("userId", nil, "is required")
			}
			return nil
		}),
	)

	BlogCommentModel = Define("BlogComment",
		BelongsTo("post", "BlogPost"),
	)

	TagModel = Define("Tag")

	PostTagModel = Define("PostTag",
		BelongsTo("post", "BlogPost"),
		BelongsTo("tag", "Tag"),
	)

	NoteModel = Define("Note",
		Validate(noteHooks.hook("validate")),
		BeforeCreate(noteHooks.hook("beforeCreate")),
		AfterCreate(noteHooks.hook("afterCreate")),
		BeforeUpdate(noteHooks.hook("beforeUpdate")),
		AfterUpdate(noteHooks.hook("afterUpdate")),
		BeforeDelete(noteHooks.hook("beforeDelete")),
		AfterDelete(noteHooks.hook("afterDelete")),
	)

	TypedRowModel = Define("TypedRow")
)

// resetSchemaCache forgets every reflected schema so a test starts cold.
func resetSchemaCache() {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	schemaCache = make(map[string]*Schema)
}

// setupDB opens an in-memory sqlite database with the blog schema.
func setupDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	resetSchemaCache()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	db := New(sqlDB, opts...)
	t.Cleanup(func() {
		db.Close()
		sqlDB.Close()
	})

	if _, err := db.Exec(context.Background(), blogSchema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

// setupMockDB wraps a sqlmock connection that expects statements in order.
func setupMockDB(t *testing.T, opts ...Option) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	resetSchemaCache()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	return New(sqlDB, opts...), mock
}

// expectDescribe registers the PRAGMA table_info query reflecting columns.
func expectDescribe(mock sqlmock.Sqlmock, table string, columns ...[2]string) {
	rows := sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"})
	for i, c := range columns {
		rows.AddRow(int64(i), c[0], c[1], int64(0), nil, int64(0))
	}
	mock.ExpectQuery("PRAGMA table_info(" + table + ")").WillReturnRows(rows)
}

var (
	postColumns = [][2]string{
		{"id", "INTEGER"}, {"user_id", "INTEGER"}, {"title", "VARCHAR(255)"},
		{"rating", "FLOAT"}, {"created_at", "DATETIME"},
	}
	commentColumns = [][2]string{
		{"id", "INTEGER"}, {"blog_post_id", "INTEGER"}, {"body", "TEXT"}, {"approved", "TINYINT(1)"},
	}
)

func mustCreate(t *testing.T, db *DB, m *Model, attrs Attrs) *Record {
	t.Helper()
	r, err := m.Create(context.Background(), db, attrs)
	if err != nil {
		t.Fatalf("create %s: %v", m.Name(), err)
	}
	return r
}

func mustCount(t *testing.T, db *DB, m *Model, opts *FindOptions) int64 {
	t.Helper()
	n, err := m.Count(context.Background(), db, opts)
	if err != nil {
		t.Fatalf("count %s: %v", m.Name(), err)
	}
	return n
}

func ids(records []*Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID().(int64))
	}
	return out
}

var errRejected = errors.New("rejected")
