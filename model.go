package tipy

import (
	"context"
	"fmt"
	"sync"
)

// PrimaryKey is the identity column every model table carries.
const PrimaryKey = "id"

const (
	createdAtField = "created_at"
	updatedAtField = "updated_at"
)

// HookFunc is a lifecycle hook. Returning an error aborts the operation.
type HookFunc func(ctx context.Context, r *Record) error

// MethodFunc is a computed member reachable through Record.Get.
type MethodFunc func(ctx context.Context, r *Record) (any, error)

// Hooks groups the lifecycle extension points of a model.
type Hooks struct {
	Validate     HookFunc
	BeforeCreate HookFunc
	AfterCreate  HookFunc
	BeforeUpdate HookFunc
	AfterUpdate  HookFunc
	BeforeDelete HookFunc
	AfterDelete  HookFunc
}

func runHook(ctx context.Context, h HookFunc, r *Record) error {
	if h == nil {
		return nil
	}
	return h(ctx, r)
}

// Model is the static definition of a record type: its table, its
// associations, its computed methods and its hooks.
type Model struct {
	name    string
	table   string
	hooks   Hooks
	methods map[string]MethodFunc

	associations map[string]*Association
	assocOrder   []string

	resolveOnce sync.Once
	resolveErr  error
}

// ModelOption configures a Model at definition time.
type ModelOption func(*Model)

// Table overrides the table name derived from the model name.
func Table(name string) ModelOption {
	return func(m *Model) {
		m.table = name
	}
}

// Method registers a computed member. Methods take precedence over
// associations and attributes of the same name.
func Method(name string, fn MethodFunc) ModelOption {
	return func(m *Model) {
		m.methods[name] = fn
	}
}

// WithHooks sets every hook at once.
func WithHooks(h Hooks) ModelOption {
	return func(m *Model) {
		m.hooks = h
	}
}

// Validate registers the hook run before every save.
func Validate(fn HookFunc) ModelOption {
	return func(m *Model) { m.hooks.Validate = fn }
}

// BeforeCreate registers the hook run before inserting a new record.
func BeforeCreate(fn HookFunc) ModelOption {
	return func(m *Model) { m.hooks.BeforeCreate = fn }
}

// AfterCreate registers the hook run after inserting a new record.
func AfterCreate(fn HookFunc) ModelOption {
	return func(m *Model) { m.hooks.AfterCreate = fn }
}

// BeforeUpdate registers the hook run before updating a persisted record.
func BeforeUpdate(fn HookFunc) ModelOption {
	return func(m *Model) { m.hooks.BeforeUpdate = fn }
}

// AfterUpdate registers the hook run after updating a persisted record.
func AfterUpdate(fn HookFunc) ModelOption {
	return func(m *Model) { m.hooks.AfterUpdate = fn }
}

// BeforeDelete registers the hook run before deleting a record.
func BeforeDelete(fn HookFunc) ModelOption {
	return func(m *Model) { m.hooks.BeforeDelete = fn }
}

// AfterDelete registers the hook run after deleting a record.
func AfterDelete(fn HookFunc) ModelOption {
	return func(m *Model) { m.hooks.AfterDelete = fn }
}

var (
	registry   = make(map[string]*Model)
	registryMu sync.RWMutex
)

// Define declares a model and registers it under name so associations can
// target it. Defining the same name twice panics.
func Define(name string, opts ...ModelOption) *Model {
	m := newModel(name, opts...)

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("tipy: model %s defined twice", name))
	}
	registry[name] = m
	return m
}

func newModel(name string, opts ...ModelOption) *Model {
	m := &Model{
		name:         name,
		table:        TableName(name),
		methods:      make(map[string]MethodFunc),
		associations: make(map[string]*Association),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lookup returns the model registered under name.
func Lookup(name string) (*Model, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	m, ok := registry[name]
	return m, ok
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// TableName returns the table the model is stored in.
func (m *Model) TableName() string { return m.table }

// Associations returns the declared associations in declaration order.
func (m *Model) Associations() []*Association {
	out := make([]*Association, 0, len(m.assocOrder))
	for _, name := range m.assocOrder {
		out = append(out, m.associations[name])
	}
	return out
}

// Schema reflects the model's table through db.
func (m *Model) Schema(ctx context.Context, db *DB) (*Schema, error) {
	return reflectSchema(ctx, db, m)
}

// resolve binds association targets and derives key names. It runs once,
// on first use, so models may reference models defined after them.
func (m *Model) resolve() error {
	m.resolveOnce.Do(func() {
		for _, name := range m.assocOrder {
			if err := m.associations[name].resolve(m); err != nil {
				m.resolveErr = err
				return
			}
		}
	})
	return m.resolveErr
}

// memberKind is what a name on a record refers to.
type memberKind int

const (
	memberUnknown memberKind = iota
	memberMethod
	memberAssociation
	memberAttribute
)

// lookupMember applies the member lookup order: method, then association,
// then attribute.
func lookupMember(name string, methods map[string]MethodFunc, associations map[string]*Association, s *Schema) memberKind {
	if _, ok := methods[name]; ok {
		return memberMethod
	}
	if _, ok := associations[name]; ok {
		return memberAssociation
	}
	if s != nil {
		if _, ok := s.attrToField[name]; ok {
			return memberAttribute
		}
	}
	return memberUnknown
}
