package tipy

import (
	"context"
	"fmt"
)

// Related resolves a declared association. BelongsTo and HasOne yield a
// *Record, or nil when absent; HasMany and HasManyThrough yield []*Record.
//
// Without opts the result is cached on the record and served from the
// cache on later calls. With opts the cache is neither read nor written.
// BelongsTo and HasOne ignore opts and always cache.
func (r *Record) Related(ctx context.Context, name string, opts *FindOptions) (any, error) {
	a, ok := r.model.associations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on model %s", ErrUnknownAssociation, name, r.model.name)
	}
	if err := r.model.resolve(); err != nil {
		return nil, err
	}

	cacheable := opts == nil || a.Kind == BelongsToKind || a.Kind == HasOneKind
	if cacheable {
		if v, hit := r.cache[name]; hit {
			return copyRelated(v), nil
		}
	}

	var (
		result any
		err    error
	)
	switch a.Kind {
	case BelongsToKind:
		result, err = r.belongsTo(ctx, a)
	case HasOneKind:
		result, err = r.hasOne(ctx, a)
	case HasManyKind:
		result, err = r.hasMany(ctx, a, opts)
	case HasManyThroughKind:
		result, err = r.hasManyThrough(ctx, a, opts)
	}
	if err != nil {
		return nil, WrapRelationError(name, r.model.name, err)
	}

	if cacheable {
		r.cache[name] = result
		return copyRelated(result), nil
	}
	return result, nil
}

// copyRelated gives each caller its own slice of a cached many-valued
// result so the cached one stays intact.
func copyRelated(v any) any {
	if many, ok := v.([]*Record); ok {
		return append(make([]*Record, 0, len(many)), many...)
	}
	return v
}

// RelatedOne resolves a BelongsTo or HasOne association.
func (r *Record) RelatedOne(ctx context.Context, name string) (*Record, error) {
	v, err := r.Related(ctx, name, nil)
	if err != nil || v == nil {
		return nil, err
	}
	one, ok := v.(*Record)
	if !ok {
		return nil, fmt.Errorf("tipy: association %s on model %s is not single-valued", name, r.model.name)
	}
	return one, nil
}

// RelatedMany resolves a HasMany or HasManyThrough association.
func (r *Record) RelatedMany(ctx context.Context, name string, opts *FindOptions) ([]*Record, error) {
	v, err := r.Related(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	many, ok := v.([]*Record)
	if !ok {
		return nil, fmt.Errorf("tipy: association %s on model %s is not multi-valued", name, r.model.name)
	}
	return many, nil
}

// belongsTo loads the target referenced by the local key. A nil key is an
// absent result and issues no query.
func (r *Record) belongsTo(ctx context.Context, a *Association) (any, error) {
	key := r.data[a.localKey]
	if isBlankID(key) {
		return nil, nil
	}
	target, err := a.target.Load(ctx, r.db, key)
	if err != nil || target == nil {
		return nil, err
	}
	return target, nil
}

func (r *Record) hasOne(ctx context.Context, a *Association) (any, error) {
	target, err := a.target.FindFirst(ctx, r.db, scoped(a, a.ForeignKey+" = ?", []any{r.ID()}, nil))
	if err != nil || target == nil {
		return nil, err
	}
	return target, nil
}

func (r *Record) hasMany(ctx context.Context, a *Association, opts *FindOptions) (any, error) {
	return a.target.Find(ctx, r.db, scoped(a, a.ForeignKey+" = ?", []any{r.ID()}, opts))
}

// hasManyThrough collects the far-side keys from the join rows owned by this
// record, then loads the targets having those ids.
func (r *Record) hasManyThrough(ctx context.Context, a *Association, opts *FindOptions) (any, error) {
	joins, err := a.through.Find(ctx, r.db, &FindOptions{
		Where: a.ForeignKey + " = ?",
		Args:  []any{r.ID()},
	})
	if err != nil {
		return nil, err
	}

	ids := make([]any, 0, len(joins))
	for _, j := range joins {
		ids = append(ids, j.data[a.farKey])
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	cond := PrimaryKey + " IN (" + placeholders(len(ids)) + ")"
	return a.target.Find(ctx, r.db, scoped(a, cond, ids, opts))
}

// scoped combines the key condition, the caller's condition and the
// association's static condition as (key) AND (caller) AND (association),
// binding values in that order. Order, limit and offset come from opts.
func scoped(a *Association, keyCond string, keyArgs []any, opts *FindOptions) *FindOptions {
	out := &FindOptions{}
	var callerWhere string
	var callerArgs []any
	if opts != nil {
		out.Order = opts.Order
		out.Limit = opts.Limit
		out.Offset = opts.Offset
		callerWhere = opts.Where
		callerArgs = opts.Args
	}

	out.Where = conjoin(keyCond, callerWhere, a.Condition)
	out.Args = make([]any, 0, len(keyArgs)+len(callerArgs)+len(a.Values))
	out.Args = append(out.Args, keyArgs...)
	if callerWhere != "" {
		out.Args = append(out.Args, callerArgs...)
	}
	if a.Condition != "" {
		out.Args = append(out.Args, a.Values...)
	}
	return out
}

// cascadeDelete deletes every record currently associated through a, read
// fresh from the database.
func (r *Record) cascadeDelete(ctx context.Context, a *Association) error {
	var children []*Record
	switch a.Kind {
	case HasOneKind:
		v, err := r.hasOne(ctx, a)
		if err != nil {
			return err
		}
		if v != nil {
			children = []*Record{v.(*Record)}
		}
	case HasManyKind:
		v, err := r.hasMany(ctx, a, nil)
		if err != nil {
			return err
		}
		children = v.([]*Record)
	}

	for _, child := range children {
		if err := child.Delete(ctx); err != nil {
			return err
		}
	}
	return nil
}

// cascadeNullify clears the foreign key of the rows pointing at this
// record, limited by the association's static condition.
func (r *Record) cascadeNullify(ctx context.Context, a *Association) error {
	where := conjoin(a.ForeignKey+" = ?", a.Condition)
	args := []any{r.ID()}
	if a.Condition != "" {
		args = append(args, a.Values...)
	}

	query := "UPDATE " + a.target.table + " SET " + a.ForeignKey + " = NULL WHERE " + where
	_, err := r.db.Exec(ctx, query, args...)
	return err
}
