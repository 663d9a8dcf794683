//go:build integration
// +build integration

// Integration tests for the task repository. They require a real
// PostgreSQL database:
//  1. Set DATABASE_URL to a valid connection string
//  2. Run with the integration tag:
//     go test -tags=integration ./internal/repository/task
package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"github.com/openconv/convertor/internal/apperror"
	"github.com/openconv/convertor/internal/model"
)

// openTestDB connects to the database named by DATABASE_URL, applies
// the tasks migration and starts the test from an empty table.
func openTestDB(t *testing.T) *dbpg.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping database integration tests")
	}

	db, err := dbpg.New(dsn, nil, &dbpg.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Master.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "001_create_tasks_table.sql"))
	require.NoError(t, err)
	_, err = db.Master.Exec(string(schema))
	require.NoError(t, err)

	_, err = db.Master.Exec("DELETE FROM tasks")
	require.NoError(t, err)

	return db
}

func mustCreate(t *testing.T, repo *Repository, taskUUID string) model.Task {
	t.Helper()

	created, err := repo.Create(context.Background(), model.Task{
		UUID:      taskUUID,
		ImageID:   "img-1",
		BucketID:  "b-1",
		NewFormat: "qcow2",
		Status:    model.StatusCreated,
	})
	require.NoError(t, err)
	return created
}

func TestCreateGeneratesUUID(t *testing.T) {
	repo := NewRepository(openTestDB(t), 0)

	created := mustCreate(t, repo, "")
	_, err := uuid.Parse(created.UUID)
	assert.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateDuplicateUUID(t *testing.T) {
	repo := NewRepository(openTestDB(t), 0)
	id := uuid.NewString()

	mustCreate(t, repo, id)
	_, err := repo.Create(context.Background(), model.Task{
		UUID: id, ImageID: "img-2", BucketID: "b-2", NewFormat: "raw", Status: model.StatusCreated,
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindAlreadyExists, apperror.KindOf(err))
}

func TestCreateReusesUUIDOfDeletedRow(t *testing.T) {
	repo := NewRepository(openTestDB(t), 0)
	id := uuid.NewString()

	mustCreate(t, repo, id)
	_, err := repo.SoftDelete(context.Background(), id)
	require.NoError(t, err)

	// The unique index only covers live rows.
	recreated := mustCreate(t, repo, id)
	assert.Equal(t, id, recreated.UUID)
	assert.Nil(t, recreated.DeletedAt)
}

func TestGetResolvesIDAndUUID(t *testing.T) {
	repo := NewRepository(openTestDB(t), 0)
	ctx := context.Background()
	created := mustCreate(t, repo, "")

	byUUID, err := repo.Get(ctx, created.UUID, false)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUUID.ID)

	byID, err := repo.Get(ctx, fmt.Sprint(created.ID), false)
	require.NoError(t, err)
	assert.Equal(t, created.UUID, byID.UUID)

	_, err = repo.Get(ctx, "neither-an-id-nor-a-uuid", false)
	assert.Equal(t, apperror.KindInvalid, apperror.KindOf(err))
}

func TestGetDeletedRowVisibility(t *testing.T) {
	repo := NewRepository(openTestDB(t), 0)
	ctx := context.Background()
	created := mustCreate(t, repo, "")

	_, err := repo.SoftDelete(ctx, created.UUID)
	require.NoError(t, err)

	// The deleted row stays observable when asked for explicitly.
	got, err := repo.Get(ctx, created.UUID, true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, got.Status)
	assert.NotNil(t, got.DeletedAt)

	_, err = repo.Get(ctx, created.UUID, false)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = repo.GetByUUID(ctx, created.UUID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestUpdateAppliesFields(t *testing.T) {
	repo := NewRepository(openTestDB(t), 0)
	ctx := context.Background()
	created := mustCreate(t, repo, "")

	format := "vmdk"
	status := model.StatusInProgress
	updated, err := repo.Update(ctx, created.UUID, Update{NewFormat: &format, Status: &status})
	require.NoError(t, err)

	assert.Equal(t, "vmdk", updated.NewFormat)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, "img-1", updated.ImageID, "untouched columns keep their value")
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))
}

func TestMutationsOnDeletedRow(t *testing.T) {
	repo := NewRepository(openTestDB(t), 0)
	ctx := context.Background()
	created := mustCreate(t, repo, "")

	_, err := repo.SoftDelete(ctx, created.UUID)
	require.NoError(t, err)

	status := model.StatusInProgress
	_, err = repo.Update(ctx, created.UUID, Update{Status: &status})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = repo.SoftDelete(ctx, created.UUID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestListFiltersAndMarkerPagination(t *testing.T) {
	repo := NewRepository(openTestDB(t), 0)
	ctx := context.Background()

	var all []model.Task
	for i := 0; i < 5; i++ {
		all = append(all, mustCreate(t, repo, ""))
	}
	_, err := repo.SoftDelete(ctx, all[4].UUID)
	require.NoError(t, err)

	// Default listing excludes the deleted row.
	live, err := repo.List(ctx, ListQuery{})
	require.NoError(t, err)
	require.Len(t, live, 4)

	// First page, default id ordering.
	page, err := repo.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[0].UUID, page[0].UUID)
	assert.Equal(t, all[1].UUID, page[1].UUID)

	// The marker is the last returned row's sort key value.
	page, err = repo.List(ctx, ListQuery{Limit: 2, Marker: fmt.Sprint(page[1].ID)})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].UUID, page[0].UUID)
	assert.Equal(t, all[3].UUID, page[1].UUID)

	// deleted=true selects only soft-deleted rows.
	deleted, err := repo.List(ctx, ListQuery{Filters: map[string]string{"deleted": "true"}})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, all[4].UUID, deleted[0].UUID)

	// Operator filters run through real SQL.
	status := model.StatusInProgress
	_, err = repo.Update(ctx, all[0].UUID, Update{Status: &status})
	require.NoError(t, err)

	inProgress, err := repo.List(ctx, ListQuery{Filters: map[string]string{"status__in": "INPROGRESS,ERROR"}})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, all[0].UUID, inProgress[0].UUID)
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	repo := NewRepository(openTestDB(t), 0)
	ctx := context.Background()
	created := mustCreate(t, repo, "")

	status := model.StatusInProgress
	_, err := repo.Update(ctx, created.UUID, Update{Status: &status})
	require.NoError(t, err)

	// Two writers race on the same row; the FOR UPDATE lock makes them
	// run one after the other, so both commit and the surviving status
	// is whichever wrote last.
	statuses := []model.Status{model.StatusCompleted, model.StatusError}
	errs := make([]error, len(statuses))

	var wg sync.WaitGroup
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := statuses[i]
			_, errs[i] = repo.Update(ctx, created.UUID, Update{Status: &s})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	final, err := repo.Get(ctx, created.UUID, false)
	require.NoError(t, err)
	assert.Contains(t, statuses, final.Status)
}
