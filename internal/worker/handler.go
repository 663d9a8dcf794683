package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wb-go/wbf/zlog"

	"github.com/openconv/convertor/internal/model"
	taskrepo "github.com/openconv/convertor/internal/repository/task"
)

// taskRepository defines the store operations the handler needs: a
// fresh load per execution and the terminal status write-back.
type taskRepository interface {
	GetByUUID(ctx context.Context, taskUUID string) (model.Task, error)
	Update(ctx context.Context, taskUUID string, upd taskrepo.Update) (model.Task, error)
}

// blobStorage defines the interface for the blob store collaborator.
type blobStorage interface {
	Load(ctx context.Context, imageID string) (io.ReadCloser, error)
	Save(ctx context.Context, bucket, objectName string, src io.Reader) (string, error)
}

// converter defines the interface for the external converter
// collaborator.
type converter interface {
	Convert(ctx context.Context, sourcePath, format string) (string, error)
}

// Handler performs one task's retrieval, conversion and status
// write-back. It runs inside an execution pool slot, never on the
// control channel's consume loop.
type Handler struct {
	repo      taskRepository
	storage   blobStorage
	converter converter
	workDir   string
}

// NewHandler creates a task Handler writing scratch files under workDir.
func NewHandler(repo taskRepository, storage blobStorage, conv converter, workDir string) *Handler {
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "convertor")
	}

	return &Handler{
		repo:      repo,
		storage:   storage,
		converter: conv,
		workDir:   workDir,
	}
}

// Execute runs the conversion for the task identified by taskUUID:
// download the source image, convert it, upload the result to the
// task's destination bucket, and persist the terminal status. A load
// failure returns without touching any row; collaborator failures are
// recorded as status ERROR. The returned error is for the pool's log
// only, dispatch callers never see it.
func (h *Handler) Execute(ctx context.Context, taskUUID string) error {
	t, err := h.repo.GetByUUID(ctx, taskUUID)
	if err != nil {
		return fmt.Errorf("execute: failed to load task %s: %w", taskUUID, err)
	}

	// Delivery is at-least-once; a redelivered command for a finished
	// task must not touch its terminal status.
	if t.Status.Terminal() {
		zlog.Logger.Info().
			Str("task_uuid", t.UUID).
			Str("status", string(t.Status)).
			Msg("task already terminal, skipping")
		return nil
	}

	taskDir := filepath.Join(h.workDir, t.UUID)
	defer func() {
		if err := os.RemoveAll(taskDir); err != nil {
			zlog.Logger.Err(err).Str("dir", taskDir).Msg("failed to clean up task dir")
		}
	}()

	sourcePath, err := h.download(ctx, t, taskDir)
	if err != nil {
		return h.fail(ctx, t.UUID, fmt.Errorf("execute: failed to download image %s: %w", t.ImageID, err))
	}

	targetPath, err := h.converter.Convert(ctx, sourcePath, t.NewFormat)
	if err != nil {
		return h.fail(ctx, t.UUID, fmt.Errorf("execute: failed to convert task %s: %w", t.UUID, err))
	}

	if err := h.upload(ctx, t, targetPath); err != nil {
		return h.fail(ctx, t.UUID, fmt.Errorf("execute: failed to upload result for task %s: %w", t.UUID, err))
	}

	status := model.StatusCompleted
	if _, err := h.repo.Update(ctx, t.UUID, taskrepo.Update{Status: &status}); err != nil {
		return fmt.Errorf("execute: failed to mark task %s completed: %w", t.UUID, err)
	}

	zlog.Logger.Info().
		Str("task_uuid", t.UUID).
		Str("new_format", t.NewFormat).
		Msg("task completed")

	return nil
}

// download materializes the task's source image into the task dir and
// returns its local path.
func (h *Handler) download(ctx context.Context, t model.Task, taskDir string) (string, error) {
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create task dir: %w", err)
	}

	src, err := h.storage.Load(ctx, t.ImageID)
	if err != nil {
		return "", err
	}
	defer src.Close()

	sourcePath := filepath.Join(taskDir, "source.img")
	dst, err := os.Create(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to create source file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to write source file: %w", err)
	}

	return sourcePath, nil
}

// upload stores the converted artifact in the task's destination
// bucket, named after the converted file.
func (h *Handler) upload(ctx context.Context, t model.Task, targetPath string) error {
	f, err := os.Open(targetPath)
	if err != nil {
		return fmt.Errorf("failed to open converted file: %w", err)
	}
	defer f.Close()

	objectName := fmt.Sprintf("%s.%s", t.UUID, t.NewFormat)
	if _, err := h.storage.Save(ctx, t.BucketID, objectName, f); err != nil {
		return err
	}

	return nil
}

// fail records status ERROR on the task row and returns cause for the
// pool's log. A failed status write is logged but does not mask cause.
func (h *Handler) fail(ctx context.Context, taskUUID string, cause error) error {
	status := model.StatusError
	if _, err := h.repo.Update(ctx, taskUUID, taskrepo.Update{Status: &status}); err != nil {
		zlog.Logger.Err(err).
			Str("task_uuid", taskUUID).
			Msg("failed to mark task as errored")
	}

	return cause
}
