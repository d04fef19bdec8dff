package tipy

import (
	"context"
	"fmt"
)

// Attribute is a typed handle on one attribute of a model, so application
// code can read and write records without asserting on any values.
//
//	title := tipy.NewAttribute[string]("title")
//	s, err := title.Get(post)
type Attribute[T any] struct {
	name string
}

// NewAttribute creates a handle for the named attribute.
func NewAttribute[T any](name string) Attribute[T] {
	return Attribute[T]{name: name}
}

// Name returns the attribute name.
func (a Attribute[T]) Name() string { return a.name }

// Get returns the attribute value. An unset or NULL attribute yields the
// zero value. A value of another type is an error.
func (a Attribute[T]) Get(r *Record) (T, error) {
	var zero T
	if r == nil {
		return zero, fmt.Errorf("%w: attribute %s", ErrNilPointer, a.name)
	}
	if err := r.CheckAttribute(a.name); err != nil {
		return zero, err
	}
	v := r.data[a.name]
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("tipy: attribute %s of model %s holds %T, not %T", a.name, r.model.name, v, zero)
	}
	return t, nil
}

// Set stores value on the record.
func (a Attribute[T]) Set(r *Record, value T) error {
	if r == nil {
		return fmt.Errorf("%w: attribute %s", ErrNilPointer, a.name)
	}
	return r.Set(a.name, value)
}

// Update stores value on a persisted record and saves it.
func (a Attribute[T]) Update(ctx context.Context, r *Record, value T) error {
	if r == nil {
		return fmt.Errorf("%w: attribute %s", ErrNilPointer, a.name)
	}
	return r.Update(ctx, a.name, value)
}
