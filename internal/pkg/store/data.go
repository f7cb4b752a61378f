package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/paulexconde/surveyrun/pkg/fault"
)

type dataStore[T any] struct {
	db        *sqlx.DB
	tablename string
	hooks     Hooks
	mu        sync.RWMutex
}

func NewDataStore[T any](db *sqlx.DB, tablename string) *dataStore[T] {
	return &dataStore[T]{
		db:        db,
		tablename: tablename,
		mu:        sync.RWMutex{},
	}
}

func (s *dataStore[T]) Base() *sqlx.DB {
	return s.db
}

func (s *dataStore[T]) SetHooks(hooks Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks.PreSave = append(s.hooks.PreSave, hooks.PreSave...)
	s.hooks.PostSave = append(s.hooks.PostSave, hooks.PostSave...)
	s.hooks.PreDelete = append(s.hooks.PreDelete, hooks.PreDelete...)
	s.hooks.PostDelete = append(s.hooks.PostDelete, hooks.PostDelete...)
	s.hooks.AfterSaveCommit = append(s.hooks.AfterSaveCommit, hooks.AfterSaveCommit...)
}

func (s *dataStore[T]) snapshotHooks() Hooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks
}

// MapError translates driver errors into the fault sentinels.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fault.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // PostgreSQL unique constraint violation code
			return fault.ErrUniqueViolation
		case "23503":
			return fault.ErrForeignKeyViolation
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fault.ErrUniqueViolation
		case "23503":
			return fault.ErrForeignKeyViolation
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fault.ErrUniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fault.ErrForeignKeyViolation
		case sqlite3.SQLITE_CONSTRAINT:
			// primary code only, when extended result codes are off
			if strings.Contains(liteErr.Error(), "UNIQUE") {
				return fault.ErrUniqueViolation
			}
		}
	}

	return err
}

func (s *dataStore[T]) QueryRow(ctx context.Context, query string, args ...any) (any, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(query), args...)

	var result any

	if err := row.Scan(&result); err != nil {
		return nil, MapError(err)
	}

	return result, nil
}

func (s *dataStore[T]) Get(ctx context.Context, query string, args ...any) (*T, error) {
	var result T

	if err := s.db.GetContext(ctx, &result, s.db.Rebind(query), args...); err != nil {
		return nil, MapError(err)
	}

	return &result, nil
}

func (s *dataStore[T]) Select(ctx context.Context, query string, args ...any) ([]T, error) {
	results := []T{}

	if err := s.db.SelectContext(ctx, &results, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []T{}, nil
		}
		return nil, err
	}

	return results, nil
}

func (s *dataStore[T]) Create(ctx context.Context, data DTO) error {
	err := WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.CreateTx(ctx, tx, data)
	})
	if err == nil {
		s.afterCommit(ctx, data, true)
	}
	return err
}

func (s *dataStore[T]) CreateTx(ctx context.Context, tx *sqlx.Tx, data DTO) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	hooks := s.snapshotHooks()
	for _, hook := range hooks.PreSave {
		if err := hook(ctx, tx, data, true); err != nil {
			return err
		}
	}

	columns, placeholders := getStructFieldsFromDTO(data)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.tablename, columns, placeholders)

	if _, err := tx.NamedExecContext(ctx, query, data); err != nil {
		return MapError(err)
	}

	for _, hook := range hooks.PostSave {
		if err := hook(ctx, tx, data, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *dataStore[T]) Update(ctx context.Context, data DTO) error {
	err := WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.UpdateTx(ctx, tx, data)
	})
	if err == nil {
		s.afterCommit(ctx, data, false)
	}
	return err
}

func (s *dataStore[T]) UpdateTx(ctx context.Context, tx *sqlx.Tx, data DTO) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	hooks := s.snapshotHooks()
	for _, hook := range hooks.PreSave {
		if err := hook(ctx, tx, data, false); err != nil {
			return err
		}
	}

	setClause := getUpdateFieldsFromDTO(data)
	if setClause == "" {
		return fmt.Errorf("no fields to update")
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", s.tablename, setClause)

	res, err := tx.NamedExecContext(ctx, query, data)
	if err != nil {
		return MapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", s.tablename, data.Key(), fault.ErrNotFound)
	}

	for _, hook := range hooks.PostSave {
		if err := hook(ctx, tx, data, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *dataStore[T]) Delete(ctx context.Context, id string) error {
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.DeleteTx(ctx, tx, id)
	})
}

func (s *dataStore[T]) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	hooks := s.snapshotHooks()
	for _, hook := range hooks.PreDelete {
		if err := hook(ctx, tx, id); err != nil {
			return err
		}
	}

	query := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tablename))
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return MapError(err)
	}

	for _, hook := range hooks.PostDelete {
		if err := hook(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteWhere deletes rows whose column matches value, or any of value's
// elements when value is a []string.
func (s *dataStore[T]) DeleteWhere(ctx context.Context, tx *sqlx.Tx, column string, value any) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", s.tablename, column)
	args := []any{value}

	if values, ok := value.([]string); ok {
		if len(values) == 0 {
			return 0, nil
		}
		var err error
		query, args, err = sqlx.In(fmt.Sprintf("DELETE FROM %s WHERE %s IN (?)", s.tablename, column), values)
		if err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, MapError(err)
	}
	return res.RowsAffected()
}

func (s *dataStore[T]) BulkUpdate(ctx context.Context, tx *sqlx.Tx, query string, args ...any) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	return MapError(err)
}

func (s *dataStore[T]) afterCommit(ctx context.Context, data DTO, isNew bool) {
	for _, hook := range s.snapshotHooks().AfterSaveCommit {
		if fn := hook(ctx, data, isNew); fn != nil {
			fn()
		}
	}
}

// Columns lists the selectable columns of T, for building SELECT statements.
func Columns[T any]() string {
	return strings.Join(getStructFieldNamesFromInstance(new(T)), ", ")
}
