package tipy

import (
	"reflect"
	"time"
)

// snapshot records the current attributes as the persisted originals.
// Called after a row is loaded or written.
func (r *Record) snapshot() {
	r.original = make(map[string]any, len(r.data))
	for k, v := range r.data {
		r.original[k] = v
	}
}

// IsTracked reports whether the record holds originals, which is the case
// once it was loaded or saved.
func (r *Record) IsTracked() bool {
	return r.original != nil
}

// Original returns the value an attribute had when the record was last
// loaded or saved. Returns nil if the record is not tracked.
func (r *Record) Original(name string) any {
	return r.original[name]
}

// IsDirty reports whether an attribute changed since the record was last
// loaded or saved. Every set attribute of an untracked record is dirty.
func (r *Record) IsDirty(name string) bool {
	current, set := r.data[name]
	if !r.IsTracked() {
		return set
	}
	original, known := r.original[name]
	if !set {
		return known
	}
	if !known {
		return true
	}
	return !sameValue(original, current)
}

// IsClean is the negation of IsDirty.
func (r *Record) IsClean(name string) bool {
	return !r.IsDirty(name)
}

// Changes returns the dirty attributes with their current values.
func (r *Record) Changes() Attrs {
	changes := make(Attrs)
	for _, attr := range r.schema.Attributes {
		if r.IsDirty(attr) {
			changes[attr] = r.data[attr]
		}
	}
	return changes
}

// sameValue compares attribute values, treating numerically equal ids and
// equal instants as the same.
func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	ka, kb := reflect.ValueOf(a).Kind(), reflect.ValueOf(b).Kind()
	if (isInteger(ka) || isUint(ka)) && (isInteger(kb) || isUint(kb)) {
		return compareIDs(a, b)
	}
	return false
}
