package tipy

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Sentinel errors for common failure cases
var (
	// ErrRecordNotFound is returned when a row that must exist is missing
	ErrRecordNotFound = errors.New("tipy: record not found")

	// ErrUnknownProperty is returned when a name is not a reflected attribute
	ErrUnknownProperty = errors.New("tipy: unknown property")

	// ErrUnknownAssociation is returned for association calls on undeclared names
	ErrUnknownAssociation = errors.New("tipy: unknown association")

	// ErrUnknownModel is returned when an association targets a model that was never defined
	ErrUnknownModel = errors.New("tipy: unknown model")

	// ErrInvalidState is returned when the record state forbids the operation
	ErrInvalidState = errors.New("tipy: invalid record state")

	// ErrUnknownColumnType is returned when a column has a native type with no mapping
	ErrUnknownColumnType = errors.New("tipy: unknown column type")

	// ErrTransactionDiscipline is the parent of every transaction misuse error
	ErrTransactionDiscipline = errors.New("tipy: transaction discipline")

	// ErrNoTransaction is returned by row locks issued outside a transaction
	ErrNoTransaction = fmt.Errorf("%w: no open transaction", ErrTransactionDiscipline)

	// ErrRollbackOutsideTransaction is returned when a rollback is requested with no open transaction
	ErrRollbackOutsideTransaction = fmt.Errorf("%w: rollback requested outside transaction", ErrTransactionDiscipline)

	// ErrRollbackRequested matches the signal returned by DB.RequestRollback
	ErrRollbackRequested = errors.New("tipy: rollback requested")

	// ErrDuplicateKey is returned for unique constraint violations
	ErrDuplicateKey = errors.New("tipy: duplicate key violation")

	// ErrForeignKey is returned for foreign key constraint violations
	ErrForeignKey = errors.New("tipy: foreign key constraint violation")

	// ErrNilPointer is returned when a nil record is passed
	ErrNilPointer = errors.New("tipy: nil pointer")
)

// QueryError wraps database errors with query context for better debugging
type QueryError struct {
	Query     string // The SQL query that failed
	Args      []any  // The query arguments
	Operation string // Operation type: SELECT, INSERT, UPDATE, DELETE, BEGIN...
	Err       error  // The underlying error
}

func (e *QueryError) Error() string {
	argsStr := formatArgs(e.Args)
	return fmt.Sprintf("tipy: %s failed: %v\nQuery: %s\nArgs: %s",
		e.Operation, e.Err, e.Query, argsStr)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// PropertyError reports a name that is not part of a model's reflected schema
type PropertyError struct {
	Model string
	Name  string
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("tipy: unknown property '%s' on model %s", e.Name, e.Model)
}

func (e *PropertyError) Unwrap() error {
	return ErrUnknownProperty
}

// StateError reports an operation the record lifecycle does not allow
type StateError struct {
	Model string
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("tipy: cannot %s %s record of model %s", e.Op, e.State, e.Model)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// RelationError wraps relation loading failures with context
type RelationError struct {
	Relation  string // Name of the relation
	ModelType string // Type of the model
	Err       error  // The underlying error
}

func (e *RelationError) Error() string {
	return fmt.Sprintf("tipy: relation '%s' error on model %s: %v",
		e.Relation, e.ModelType, e.Err)
}

func (e *RelationError) Unwrap() error {
	return e.Err
}

// ValidationError represents a model validation failure
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tipy: validation failed for field '%s': %s (value: %v)",
		e.Field, e.Message, e.Value)
}

// NewValidationError builds a ValidationError for the given attribute.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// WrapQueryError wraps a database error with query context
func WrapQueryError(operation, query string, args []any, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}

	return &QueryError{
		Query:     query,
		Args:      args,
		Operation: operation,
		Err:       classifyDriverError(err),
	}
}

// classifyDriverError tags constraint violations reported by any of the
// supported drivers with ErrDuplicateKey or ErrForeignKey.
func classifyDriverError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		case "23503":
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		}
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		case "23503":
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		}
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		case 1451, 1452:
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		}
		return err
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "duplicate key") ||
		strings.Contains(errMsg, "unique constraint") {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	if strings.Contains(errMsg, "foreign key") {
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	}

	return err
}

// WrapRelationError wraps a relation error with context
func WrapRelationError(relation, modelType string, err error) error {
	if err == nil {
		return nil
	}
	return &RelationError{
		Relation:  relation,
		ModelType: modelType,
		Err:       err,
	}
}

// IsNotFound checks if the error is ErrRecordNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows)
}

// IsValidation checks if the error is a *ValidationError
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// IsInvalidState checks if the error is ErrInvalidState
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsUnknownProperty checks if the error is ErrUnknownProperty
func IsUnknownProperty(err error) bool {
	return errors.Is(err, ErrUnknownProperty)
}

// IsConstraintViolation checks if the error is a constraint violation
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrForeignKey)
}

// IsDuplicateKey checks if the error is a duplicate key violation
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsForeignKeyViolation checks if the error is a foreign key violation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// formatArgs formats query arguments for error messages
func formatArgs(args []any) string {
	if len(args) == 0 {
		return "[]"
	}

	parts := make([]string, len(args))
	for i, arg := range args {
		if arg == nil {
			parts[i] = "NULL"
			continue
		}
		parts[i] = fmt.Sprintf("%v", arg)
	}

	// Limit output length
	result := "[" + strings.Join(parts, ", ") + "]"
	if len(result) > 200 {
		return result[:197] + "...]"
	}
	return result
}
