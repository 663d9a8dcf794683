package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"

	"github.com/openconv/convertor/internal/apperror"
	"github.com/openconv/convertor/internal/model"
)

const defaultMaxPageSize = 1000

const taskColumns = "id, uuid, image_id, bucket_id, new_format, status, created_at, updated_at, deleted_at"

// uniqueViolation is the Postgres error code raised when the partial
// unique index on uuid rejects a duplicate.
const uniqueViolation = "23505"

// Update is the statically declared set of patchable task fields.
// A nil pointer leaves the column untouched.
type Update struct {
	UUID      *string // always rejected, the uuid is immutable
	ImageID   *string
	BucketID  *string
	NewFormat *string
	Status    *model.Status
}

// Repository provides durable CRUD over task rows. All mutation goes
// through row-locked transactions on the master node.
type Repository struct {
	db          *dbpg.DB
	maxPageSize int
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB, maxPageSize int) *Repository {
	if maxPageSize <= 0 {
		maxPageSize = defaultMaxPageSize
	}

	return &Repository{db: db, maxPageSize: maxPageSize}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var t model.Task
	var deletedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.UUID, &t.ImageID, &t.BucketID, &t.NewFormat,
		&t.Status, &t.CreatedAt, &t.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}

	return t, nil
}

// Create inserts a new task row. A uuid is generated when the caller
// did not supply one; a collision with an existing live row fails with
// an AlreadyExists error.
func (r *Repository) Create(ctx context.Context, t model.Task) (model.Task, error) {
	if t.UUID == "" {
		t.UUID = uuid.NewString()
	} else if _, err := uuid.Parse(t.UUID); err != nil {
		return model.Task{}, apperror.Invalid("malformed uuid %q", t.UUID)
	}

	query := `
		INSERT INTO tasks (uuid, image_id, bucket_id, new_format, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + taskColumns

	created, err := scanTask(r.db.QueryRowContext(
		ctx, query, t.UUID, t.ImageID, t.BucketID, t.NewFormat, t.Status,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return model.Task{}, apperror.AlreadyExists("task with uuid %s already exists", t.UUID)
		}

		return model.Task{}, fmt.Errorf("create: failed to insert task: %w", err)
	}

	return created, nil
}

// Get resolves idOrUUID as a surrogate id when it is integer-like and
// as a uuid otherwise. Soft-deleted rows are returned only when
// includeDeleted is set.
func (r *Repository) Get(ctx context.Context, idOrUUID string, includeDeleted bool) (model.Task, error) {
	if isIntLike(idOrUUID) {
		return r.getBy(ctx, "id", idOrUUID, includeDeleted)
	}
	if _, err := uuid.Parse(idOrUUID); err == nil {
		return r.getBy(ctx, "uuid", idOrUUID, includeDeleted)
	}

	return model.Task{}, apperror.Invalid("identity %q is neither an id nor a uuid", idOrUUID)
}

// GetByUUID retrieves a live task row by uuid.
func (r *Repository) GetByUUID(ctx context.Context, taskUUID string) (model.Task, error) {
	return r.getBy(ctx, "uuid", taskUUID, false)
}

func (r *Repository) getBy(ctx context.Context, field, value string, includeDeleted bool) (model.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE %s = $1", taskColumns, field)
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	t, err := scanTask(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, apperror.NotFound("task %s not found", value)
		}

		return model.Task{}, fmt.Errorf("get: failed to get task: %w", err)
	}

	return t, nil
}

// List returns tasks matching the query, ordered by the sort key and
// paginated by an opaque marker equal to the last returned row's sort
// key value.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]model.Task, error) {
	where, args, err := buildWhere(q)
	if err != nil {
		return nil, err
	}

	order, err := buildOrder(q.SortKey, q.SortDir)
	if err != nil {
		return nil, err
	}

	limit, err := normalizeLimit(q.Limit, r.maxPageSize)
	if err != nil {
		return nil, err
	}

	if q.Marker != "" {
		sortKey := q.SortKey
		if sortKey == "" {
			sortKey = "id"
		}
		cmp := ">"
		if q.SortDir == "desc" {
			cmp = "<"
		}
		args = append(args, q.Marker)
		where += fmt.Sprintf(" AND %s %s $%d", sortKey, cmp, len(args))
	}

	args = append(args, limit)
	query := fmt.Sprintf(
		"SELECT %s FROM tasks WHERE %s %s LIMIT $%d",
		taskColumns, where, order, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list: failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list: failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Update applies the non-nil fields of upd to the live row identified
// by taskUUID. The row is locked for the duration of the transaction so
// concurrent read-modify-write cycles serialize.
func (r *Repository) Update(ctx context.Context, taskUUID string, upd Update) (model.Task, error) {
	if upd.UUID != nil {
		return model.Task{}, apperror.Invalid("cannot overwrite uuid for an existing task")
	}

	var set []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.ImageID != nil {
		add("image_id", *upd.ImageID)
	}
	if upd.BucketID != nil {
		add("bucket_id", *upd.BucketID)
	}
	if upd.NewFormat != nil {
		add("new_format", *upd.NewFormat)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	set = append(set, "updated_at = NOW()")

	var updated model.Task
	err := r.withLockedRow(ctx, taskUUID, func(tx *sql.Tx, current model.Task) error {
		args = append(args, current.ID)
		query := fmt.Sprintf(
			"UPDATE tasks SET %s WHERE id = $%d RETURNING %s",
			strings.Join(set, ", "), len(args), taskColumns,
		)

		var err error
		updated, err = scanTask(tx.QueryRowContext(ctx, query, args...))
		if err != nil {
			return fmt.Errorf("update: failed to update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	return updated, nil
}

// SoftDelete marks the live row identified by taskUUID as deleted.
// Deleted rows are terminal and never mutated again.
func (r *Repository) SoftDelete(ctx context.Context, taskUUID string) (model.Task, error) {
	var deleted model.Task
	err := r.withLockedRow(ctx, taskUUID, func(tx *sql.Tx, current model.Task) error {
		query := `
			UPDATE tasks
			SET status = $1, deleted_at = NOW(), updated_at = NOW()
			WHERE id = $2
			RETURNING ` + taskColumns

		var err error
		deleted, err = scanTask(tx.QueryRowContext(ctx, query, model.StatusDeleted, current.ID))
		if err != nil {
			return fmt.Errorf("soft delete: failed to mark task deleted: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	return deleted, nil
}

// withLockedRow opens a transaction on the master, acquires a row-level
// exclusive lock on the live row with the given uuid, re-checks
// existence and hands the locked row to fn before committing.
func (r *Repository) withLockedRow(ctx context.Context, taskUUID string, fn func(tx *sql.Tx, current model.Task) error) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := fmt.Sprintf(
		"SELECT %s FROM tasks WHERE uuid = $1 AND deleted_at IS NULL FOR UPDATE",
		taskColumns,
	)

	current, err := scanTask(tx.QueryRowContext(ctx, query, taskUUID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("task %s not found", taskUUID)
		}

		return fmt.Errorf("failed to lock task row: %w", err)
	}

	if err := fn(tx, current); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
