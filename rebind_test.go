package tipy

import "testing"

func TestRebind(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple",
			input:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = $1",
		},
		{
			name:     "Multiple",
			input:    "SELECT * FROM users WHERE name = ? AND age > ?",
			expected: "SELECT * FROM users WHERE name = $1 AND age > $2",
		},
		{
			name:     "Inside Quotes",
			input:    "SELECT * FROM users WHERE name = 'Question?' AND age = ?",
			expected: "SELECT * FROM users WHERE name = 'Question?' AND age = $1",
		},
		{
			name:     "Multiple Quotes",
			input:    "INSERT INTO table VALUES (?, 'Value?', ?, 'Another?')",
			expected: "INSERT INTO table VALUES ($1, 'Value?', $2, 'Another?')",
		},
		{
			name:     "Empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rebind(tt.input)
			if got != tt.expected {
				t.Errorf("rebind() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT * FROM users WHERE id = ?"
	if got := Dialects.SQLite3.Rebind(q); got != q {
		t.Errorf("sqlite3 should keep ? placeholders, got %q", got)
	}
	if got := Dialects.MySQL.Rebind(q); got != q {
		t.Errorf("mysql should keep ? placeholders, got %q", got)
	}
	if got := Dialects.PostgreSQL.Rebind(q); got != "SELECT * FROM users WHERE id = $1" {
		t.Errorf("postgres rebind = %q", got)
	}
}

func TestDialect_LimitClause(t *testing.T) {
	tests := []struct {
		name          string
		dialect       *Dialect
		offset, limit int
		expected      string
	}{
		{"none", Dialects.SQLite3, 0, 0, ""},
		{"limit only", Dialects.SQLite3, 0, 5, " LIMIT 5"},
		{"limit and offset", Dialects.MySQL, 10, 5, " LIMIT 5 OFFSET 10"},
		{"offset only sqlite", Dialects.SQLite3, 3, 0, " LIMIT -1 OFFSET 3"},
		{"offset only mysql", Dialects.MySQL, 3, 0, " LIMIT 18446744073709551615 OFFSET 3"},
		{"offset only postgres", Dialects.PostgreSQL, 3, 0, " OFFSET 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.limitClause(tt.offset, tt.limit); got != tt.expected {
				t.Errorf("limitClause(%d, %d) = %q, want %q", tt.offset, tt.limit, got, tt.expected)
			}
		})
	}
}

func TestDialectFor(t *testing.T) {
	tests := map[string]*Dialect{
		"mysql":    Dialects.MySQL,
		"postgres": Dialects.PostgreSQL,
		"pgx":      Dialects.PostgreSQL,
		"sqlite3":  Dialects.SQLite3,
	}
	for driver, want := range tests {
		if got := dialectFor(driver); got != want {
			t.Errorf("dialectFor(%q) = %s, want %s", driver, got.DriverName, want.DriverName)
		}
	}
}
