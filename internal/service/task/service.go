package task

import (
	"context"

	"github.com/openconv/convertor/internal/apperror"
	"github.com/openconv/convertor/internal/model"
	taskrepo "github.com/openconv/convertor/internal/repository/task"
)

// repository defines the task store operations used by the service.
type repository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, idOrUUID string, includeDeleted bool) (model.Task, error)
	List(ctx context.Context, q taskrepo.ListQuery) ([]model.Task, error)
	Update(ctx context.Context, taskUUID string, upd taskrepo.Update) (model.Task, error)
	SoftDelete(ctx context.Context, taskUUID string) (model.Task, error)
}

// dispatcher defines the interface for posting launch commands to the
// worker group.
type dispatcher interface {
	Launch(ctx context.Context, taskUUID string) error
}

// CreateInput carries the fields of a task creation request. UUID is
// optional; the store generates one when it is absent.
type CreateInput struct {
	UUID      string
	ImageID   string
	BucketID  string
	NewFormat string
}

// Patch carries a validated set of field updates. Nil pointers leave
// the field untouched.
type Patch struct {
	UUID      *string
	ImageID   *string
	BucketID  *string
	NewFormat *string
	Status    *model.Status
}

// Service provides the front-end task operations: creation, lookup,
// listing, patching and soft deletion. Patching a task into INPROGRESS
// is the single trigger that dispatches a launch command.
type Service struct {
	repo       repository
	dispatcher dispatcher
}

// NewService creates a new Service with the given store and dispatcher.
func NewService(repo repository, d dispatcher) *Service {
	return &Service{repo: repo, dispatcher: d}
}

// Create stores a new task in the CREATED state.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Task, error) {
	if in.ImageID == "" {
		return model.Task{}, apperror.Invalid("image_id is required")
	}
	if in.BucketID == "" {
		return model.Task{}, apperror.Invalid("bucket_id is required")
	}
	if in.NewFormat == "" {
		return model.Task{}, apperror.Invalid("new_format is required")
	}

	t := model.Task{
		UUID:      in.UUID,
		ImageID:   in.ImageID,
		BucketID:  in.BucketID,
		NewFormat: in.NewFormat,
		Status:    model.StatusCreated,
	}

	return s.repo.Create(ctx, t)
}

// Get returns the task identified by id or uuid. Soft-deleted tasks are
// still retrievable here; only listings hide them by default.
func (s *Service) Get(ctx context.Context, idOrUUID string) (model.Task, error) {
	return s.repo.Get(ctx, idOrUUID, true)
}

// List returns tasks matching the query.
func (s *Service) List(ctx context.Context, q taskrepo.ListQuery) ([]model.Task, error) {
	return s.repo.List(ctx, q)
}

// Patch applies p to the live task identified by taskUUID. When the
// patch moves the status from CREATED to INPROGRESS, exactly one launch
// command is dispatched after the row is saved; re-patching the same
// status does not re-dispatch. Transport failures from dispatch surface
// to the caller.
func (s *Service) Patch(ctx context.Context, taskUUID string, p Patch) (model.Task, error) {
	if p.UUID != nil {
		return model.Task{}, apperror.Invalid("cannot overwrite uuid for an existing task")
	}

	current, err := s.repo.Get(ctx, taskUUID, false)
	if err != nil {
		return model.Task{}, err
	}

	launch := false
	if p.Status != nil {
		next := *p.Status

		if !next.Valid() {
			return model.Task{}, apperror.Invalid("unknown status %q", string(next))
		}
		switch next {
		case model.StatusCompleted, model.StatusError:
			return model.Task{}, apperror.Invalid("status %s is written only by the task handler", next)
		case model.StatusDeleted:
			return model.Task{}, apperror.Invalid("use delete to remove a task")
		}
		if !current.Status.CanTransition(next) {
			return model.Task{}, apperror.Invalid("cannot transition task from %s to %s", current.Status, next)
		}

		launch = next == model.StatusInProgress && current.Status != model.StatusInProgress
	}

	updated, err := s.repo.Update(ctx, taskUUID, taskrepo.Update{
		ImageID:   p.ImageID,
		BucketID:  p.BucketID,
		NewFormat: p.NewFormat,
		Status:    p.Status,
	})
	if err != nil {
		return model.Task{}, err
	}

	if launch {
		if err := s.dispatcher.Launch(ctx, updated.UUID); err != nil {
			return model.Task{}, err
		}
	}

	return updated, nil
}

// Delete soft-deletes the task identified by taskUUID. An execution
// already dispatched for it is not cancelled.
func (s *Service) Delete(ctx context.Context, taskUUID string) (model.Task, error) {
	return s.repo.SoftDelete(ctx, taskUUID)
}
