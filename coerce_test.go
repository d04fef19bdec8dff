package tipy

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestCoerce(t *testing.T) {
	dt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		raw      any
		ft       FieldType
		expected any
	}{
		{"nil passes through", nil, FieldInteger, nil},
		{"integer from string", "42", FieldInteger, int64(42)},
		{"integer from bytes", []byte("7"), FieldInteger, int64(7)},
		{"integer from int64", int64(9), FieldInteger, int64(9)},
		{"integer from bool", true, FieldInteger, int64(1)},
		{"integer from whole float", 3.0, FieldInteger, int64(3)},
		{"unsigned above int64 from string", "18446744073709551615", FieldInteger, uint64(18446744073709551615)},
		{"unsigned above int64 from bytes", []byte("9223372036854775808"), FieldInteger, uint64(9223372036854775808)},
		{"unsigned within int64", uint64(12), FieldInteger, int64(12)},
		{"float from unsigned", uint64(4), FieldFloat, 4.0},
		{"string from unsigned", uint64(18446744073709551615), FieldString, "18446744073709551615"},
		{"float from string", "1.25", FieldFloat, 1.25},
		{"float from int64", int64(3), FieldFloat, 3.0},
		{"string from bytes", []byte("hello"), FieldString, "hello"},
		{"string unchanged", "hello", FieldString, "hello"},
		{"datetime from string", "2024-01-02 03:04:05", FieldDateTime, dt},
		{"datetime from RFC3339", "2024-01-02T03:04:05Z", FieldDateTime, dt},
		{"datetime from time", dt, FieldDateTime, dt},
		{"date only", "2024-01-02", FieldDateTime, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.raw, tt.ft)
			if err != nil {
				t.Fatalf("coerce(%v, %s) error: %v", tt.raw, tt.ft, err)
			}
			if gt, ok := got.(time.Time); ok {
				if !gt.Equal(tt.expected.(time.Time)) {
					t.Errorf("coerce(%v) = %v, want %v", tt.raw, gt, tt.expected)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("coerce(%v, %s) = %#v, want %#v", tt.raw, tt.ft, got, tt.expected)
			}
		})
	}
}

func TestCoerce_Invalid(t *testing.T) {
	if _, err := coerce("abc", FieldInteger); err == nil {
		t.Error("expected an error coercing abc to integer")
	}
	for _, raw := range []any{1.8446744073709552e19, 1.5, "2.5", "1e30"} {
		if v, err := coerce(raw, FieldInteger); err == nil {
			t.Errorf("coerce(%v) to integer should fail, got %#v", raw, v)
		}
	}
	if _, err := coerce("abc", FieldFloat); err == nil {
		t.Error("expected an error coercing abc to float")
	}
	if _, err := coerce("not a date", FieldDateTime); err == nil {
		t.Error("expected an error coercing a non-date")
	}
}

func TestToDBValue(t *testing.T) {
	dt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := toDBValue(dt, FieldDateTime); got != "2024-01-02 03:04:05" {
		t.Errorf("toDBValue(time) = %v", got)
	}
	if got := toDBValue(&dt, FieldDateTime); got != "2024-01-02 03:04:05" {
		t.Errorf("toDBValue(*time) = %v", got)
	}
	if got := toDBValue(nil, FieldString); got != nil {
		t.Errorf("toDBValue(nil) = %v, want nil", got)
	}
	if got := toDBValue(int64(5), FieldInteger); got != int64(5) {
		t.Errorf("toDBValue(5) = %v", got)
	}
}

func TestSet_DoesNotCoerce(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	post, err := BlogPostModel.New(ctx, db, Attrs{"rating": "4.5"})
	if err != nil {
		t.Fatal(err)
	}
	v, _ := post.Get(ctx, "rating")
	if v != "4.5" {
		t.Errorf("expected raw string to be kept until save, got %#v", v)
	}
}

// quotedRow reads every column of typed_rows through quote(), which renders
// the stored value as an SQL literal, exposing both its text and storage class.
func quotedRow(t *testing.T, db *DB, id any) Row {
	t.Helper()
	row, err := db.QueryRow(context.Background(), `SELECT quote(i) AS i, quote(bi) AS bi, quote(ti) AS ti,
		quote(f) AS f, quote(d) AS d, quote(amount) AS amount, quote(s) AS s, quote(txt) AS txt,
		quote(dt) AS dt, quote(dd) AS dd, quote(ts) AS ts, quote(maybe) AS maybe
		FROM typed_rows WHERE id = ?`, id)
	if err != nil {
		t.Fatalf("read typed row: %v", err)
	}
	if row == nil {
		t.Fatalf("typed row %v missing", id)
	}
	return row
}

func TestCoerce_RoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, `INSERT INTO typed_rows (i, bi, ti, f, d, amount, s, txt, dt, dd, ts, maybe)
		VALUES (42, 9007199254740993, 1, 1.5, 2.25, 12.50, 'hello', 'long text', '2024-01-02 03:04:05', '2024-01-02', '2023-12-31 23:59:59', NULL)`)
	if err != nil {
		t.Fatal(err)
	}

	before := quotedRow(t, db, 1)

	rec, err := TypedRowModel.Load(ctx, db, 1)
	if err != nil || rec == nil {
		t.Fatalf("load typed row: %v", err)
	}

	if v, _ := rec.Get(ctx, "i"); v != int64(42) {
		t.Errorf("i = %#v, want int64(42)", v)
	}
	if v, _ := rec.Get(ctx, "f"); v != 1.5 {
		t.Errorf("f = %#v, want 1.5", v)
	}
	if v, _ := rec.Get(ctx, "dt"); v == nil || !v.(time.Time).Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("dt = %#v", v)
	}
	if v, _ := rec.Get(ctx, "maybe"); v != nil {
		t.Errorf("maybe = %#v, want nil", v)
	}

	if err := rec.Save(ctx); err != nil {
		t.Fatalf("re-save failed: %v", err)
	}

	after := quotedRow(t, db, 1)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("row changed by round trip:\nbefore %v\nafter  %v", before, after)
	}
}
