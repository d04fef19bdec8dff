package tipy

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// AssociationKind identifies how two models are related.
type AssociationKind int

const (
	BelongsToKind AssociationKind = iota
	HasOneKind
	HasManyKind
	HasManyThroughKind
)

func (k AssociationKind) String() string {
	switch k {
	case BelongsToKind:
		return "belongsTo"
	case HasOneKind:
		return "hasOne"
	case HasManyKind:
		return "hasMany"
	case HasManyThroughKind:
		return "hasManyThrough"
	}
	return "unknown"
}

// Cascade is what happens to associated rows when the owner is deleted.
type Cascade int

const (
	CascadeNone Cascade = iota
	CascadeDelete
	CascadeNullify
)

func (c Cascade) String() string {
	switch c {
	case CascadeDelete:
		return "delete"
	case CascadeNullify:
		return "nullify"
	}
	return "none"
}

// Association is a declared relation from one model to another.
//
// ForeignKey is a column name. For BelongsTo it lives on the owning model,
// for the other kinds on the target (or, for HasManyThrough, on the join
// model).
type Association struct {
	Name       string
	Kind       AssociationKind
	TargetName string
	ForeignKey string
	Condition  string
	Values     []any
	Dependent  Cascade

	// HasManyThrough only.
	ThroughName string
	ThroughKey  string

	owner   *Model
	target  *Model
	through *Model

	// localKey is the owner attribute holding the key for BelongsTo.
	localKey string
	// farKey is the join-row attribute pointing at the target for
	// HasManyThrough.
	farKey string
}

// AssociationOption configures an Association.
type AssociationOption func(*Association)

// ForeignKey overrides the conventional foreign key column.
func ForeignKey(column string) AssociationOption {
	return func(a *Association) {
		a.ForeignKey = column
	}
}

// Where adds a static condition applied on every lookup.
func Where(condition string, values ...any) AssociationOption {
	return func(a *Association) {
		a.Condition = condition
		a.Values = values
	}
}

// Dependent sets the cascade policy applied when the owner is deleted.
// Only HasOne and HasMany honor it.
func Dependent(c Cascade) AssociationOption {
	return func(a *Association) {
		a.Dependent = c
	}
}

// ThroughKey overrides the join-model column pointing at the target.
func ThroughKey(column string) AssociationOption {
	return func(a *Association) {
		a.ThroughKey = column
	}
}

func addAssociation(kind AssociationKind, name, target string, opts []AssociationOption) ModelOption {
	return func(m *Model) {
		a := &Association{Name: name, Kind: kind, TargetName: target}
		for _, opt := range opts {
			opt(a)
		}
		if _, exists := m.associations[name]; !exists {
			m.assocOrder = append(m.assocOrder, name)
		}
		m.associations[name] = a
	}
}

// BelongsTo declares that the model holds a key to one target record.
func BelongsTo(name, target string, opts ...AssociationOption) ModelOption {
	return addAssociation(BelongsToKind, name, target, opts)
}

// HasOne declares that one target record holds a key to this model.
func HasOne(name, target string, opts ...AssociationOption) ModelOption {
	return addAssociation(HasOneKind, name, target, opts)
}

// HasMany declares that many target records hold a key to this model.
func HasMany(name, target string, opts ...AssociationOption) ModelOption {
	return addAssociation(HasManyKind, name, target, opts)
}

// HasManyThrough declares that target records are reached through rows of
// the through model, which holds keys to both sides.
func HasManyThrough(name, target, through string, opts ...AssociationOption) ModelOption {
	return func(m *Model) {
		addAssociation(HasManyThroughKind, name, target, opts)(m)
		m.associations[name].ThroughName = through
	}
}

// Target returns the resolved target model.
func (a *Association) Target() *Model { return a.target }

// Through returns the resolved join model of a HasManyThrough association.
func (a *Association) Through() *Model { return a.through }

func (a *Association) resolve(owner *Model) error {
	a.owner = owner

	target, ok := Lookup(a.TargetName)
	if !ok {
		return fmt.Errorf("%w: %s (association %s.%s)", ErrUnknownModel, a.TargetName, owner.name, a.Name)
	}
	a.target = target

	switch a.Kind {
	case BelongsToKind:
		column := a.ForeignKey
		if column == "" {
			column = foreignKeyColumn(target.name)
		}
		a.localKey = AttributeName(column)
	case HasOneKind, HasManyKind:
		if a.ForeignKey == "" {
			a.ForeignKey = foreignKeyColumn(owner.name)
		}
	case HasManyThroughKind:
		through, ok := Lookup(a.ThroughName)
		if !ok {
			return fmt.Errorf("%w: %s (association %s.%s)", ErrUnknownModel, a.ThroughName, owner.name, a.Name)
		}
		a.through = through
		if a.ForeignKey == "" {
			a.ForeignKey = foreignKeyColumn(owner.name)
		}
		column := a.ThroughKey
		if column == "" {
			column = foreignKeyColumn(target.name)
		}
		a.farKey = AttributeName(column)
	}
	return nil
}

// describe renders the association for schema printing.
func (a *Association) describe() string {
	var sb strings.Builder
	sb.WriteString(a.Kind.String())
	sb.WriteByte(' ')
	sb.WriteString(a.TargetName)
	if a.ThroughName != "" {
		sb.WriteString(" through ")
		sb.WriteString(a.ThroughName)
	}
	if a.ForeignKey != "" {
		sb.WriteString(" fk=")
		sb.WriteString(a.ForeignKey)
	} else if a.localKey != "" {
		sb.WriteString(" fk=")
		sb.WriteString(strcase.ToSnake(a.localKey))
	}
	if a.Condition != "" {
		sb.WriteString(" where ")
		sb.WriteString(a.Condition)
	}
	if a.Dependent != CascadeNone {
		sb.WriteString(" dependent=")
		sb.WriteString(a.Dependent.String())
	}
	return sb.String()
}
