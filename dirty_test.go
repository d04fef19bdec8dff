package tipy

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestDirtyTracking(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	fresh, err := BlogPostModel.New(ctx, db, Attrs{"title": "a", "userId": 1})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.IsTracked() {
		t.Error("an unsaved record is not tracked")
	}
	if !fresh.IsDirty("title") || fresh.IsDirty("rating") {
		t.Error("set attributes of an untracked record are dirty, unset ones are not")
	}

	if err := fresh.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if !fresh.IsTracked() || fresh.IsDirty("title") {
		t.Error("a saved record should be clean")
	}

	loaded, err := BlogPostModel.Load(ctx, db, fresh.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Changes()) != 0 {
		t.Errorf("a loaded record has no changes, got %v", loaded.Changes())
	}

	loaded.Set("title", "b")
	loaded.Set("userId", 1) // same value, different integer type
	if !loaded.IsDirty("title") || !loaded.IsClean("userId") {
		t.Error("title should be dirty and userId clean")
	}
	if got := loaded.Original("title"); got != "a" {
		t.Errorf("original title = %v, want a", got)
	}
	if changes := loaded.Changes(); !reflect.DeepEqual(changes, Attrs{"title": "b"}) {
		t.Errorf("changes = %v", changes)
	}
}

func TestSameValue(t *testing.T) {
	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name     string
		a, b     any
		expected bool
	}{
		{"both nil", nil, nil, true},
		{"nil and value", nil, "x", false},
		{"equal strings", "x", "x", true},
		{"int and int64", 1, int64(1), true},
		{"uint and int64", uint(3), int64(3), true},
		{"different ints", int64(1), int64(2), false},
		{"int and string", int64(1), "1", false},
		{"same instant in different zones", when, when.In(time.FixedZone("x", 3600)), true},
		{"time and string", when, "2024-05-06 07:08:09", false},
		{"equal floats", 1.5, 1.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameValue(tt.a, tt.b); got != tt.expected {
				t.Errorf("sameValue(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestUpdateSyncsOriginals(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	post := mustCreate(t, db, BlogPostModel, Attrs{"title": "v1", "userId": 1})
	if err := post.Update(ctx, "title", "v2"); err != nil {
		t.Fatal(err)
	}
	if post.IsDirty("title") {
		t.Error("title should be clean after update")
	}
	if got := post.Original("title"); got != "v2" {
		t.Errorf("original title = %v, want v2", got)
	}
}

func TestReloadSyncsOriginals(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	post := mustCreate(t, db, BlogPostModel, Attrs{"title": "v1", "userId": 1})
	post.Set("title", "unsaved")
	if !post.IsDirty("title") {
		t.Fatal("title should be dirty before reload")
	}

	if err := post.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if post.IsDirty("title") || len(post.Changes()) != 0 {
		t.Errorf("reload should discard changes, got %v", post.Changes())
	}
	if v, _ := post.Get(ctx, "title"); v != "v1" {
		t.Errorf("title after reload = %v", v)
	}
}
