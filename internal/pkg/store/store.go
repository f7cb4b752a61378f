package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
)

// DTO is a flat table row. Fields map to columns through their `db` tag and
// the row is keyed by its "id" column.
type DTO interface {
	Key() string
}

// This type of hook separates from the regular PostSave hook since it has side effects
type AfterSaveCommitHook func()

// Hooks for database operations
type Hooks struct {
	PreSave         []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error
	PostSave        []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error
	PreDelete       []func(ctx context.Context, tx *sqlx.Tx, id string) error
	PostDelete      []func(ctx context.Context, tx *sqlx.Tx, id string) error
	AfterSaveCommit []func(ctx context.Context, data DTO, isNew bool) AfterSaveCommitHook
}

type Datastorer[T any] interface {
	Create(ctx context.Context, data DTO) error
	Update(ctx context.Context, data DTO) error
	Delete(ctx context.Context, id string) error
	QueryRow(ctx context.Context, query string, args ...any) (any, error)
	Get(ctx context.Context, query string, args ...any) (*T, error)
	Select(ctx context.Context, query string, args ...any) ([]T, error)

	// Tx variants run inside a transaction owned by the caller, hooks included.
	CreateTx(ctx context.Context, tx *sqlx.Tx, data DTO) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, data DTO) error
	DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error

	// WARN: DeleteWhere does not yet support hooks execution.
	DeleteWhere(ctx context.Context, tx *sqlx.Tx, column string, value any) (int64, error)

	// WARN: BulkUpdate does not run hooks.
	BulkUpdate(ctx context.Context, tx *sqlx.Tx, query string, args ...any) error
	// Set hooks.
	SetHooks(hooks Hooks)

	// useful for complex operations wherein store interface does not supported.
	Base() *sqlx.DB
}

// WithTx runs fn in a transaction, committing when it returns nil and rolling
// back on error or panic.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = MapError(tx.Commit())
		}
	}()

	err = fn(tx)
	return err
}

func getStructFieldNamesFromInstance(instance any) []string {
	typ := reflect.TypeOf(instance)
	if typ.Kind() == reflect.Ptr { // Handle pointer types
		typ = typ.Elem()
	}

	var fields []string

	for i := range typ.NumField() {
		field := typ.Field(i)
		dbTag := field.Tag.Get("db")

		if dbTag != "" && dbTag != "-" {
			fields = append(fields, dbTag)
		}
	}

	return fields
}

// getStructFieldsFromDTO extracts column names and named placeholders from a DTO struct
func getStructFieldsFromDTO(dto DTO) (columns string, placeholders string) {
	names := getStructFieldNamesFromInstance(dto)

	placeholderNames := make([]string, len(names))
	for i, name := range names {
		placeholderNames[i] = ":" + name
	}

	return strings.Join(names, ", "), strings.Join(placeholderNames, ", ")
}

// getUpdateFieldsFromDTO builds the SET clause for every column but id. Zero
// values are written too: an empty pointer column is meaningful.
func getUpdateFieldsFromDTO(dto DTO) string {
	var fields []string
	for _, name := range getStructFieldNamesFromInstance(dto) {
		if name == "id" {
			continue
		}
		fields = append(fields, fmt.Sprintf("%s = :%s", name, name))
	}
	return strings.Join(fields, ", ")
}
