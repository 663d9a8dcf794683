package task

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/openconv/convertor/internal/api/respond"
	"github.com/openconv/convertor/internal/apperror"
	"github.com/openconv/convertor/internal/model"
	taskrepo "github.com/openconv/convertor/internal/repository/task"
	tasksvc "github.com/openconv/convertor/internal/service/task"
)

// service defines the interface for task operations.
type service interface {
	Create(ctx context.Context, in tasksvc.CreateInput) (model.Task, error)
	Get(ctx context.Context, idOrUUID string) (model.Task, error)
	List(ctx context.Context, q taskrepo.ListQuery) ([]model.Task, error)
	Patch(ctx context.Context, taskUUID string, p tasksvc.Patch) (model.Task, error)
	Delete(ctx context.Context, taskUUID string) (model.Task, error)
}

// Handler provides HTTP handlers for task endpoints.
// It depends on a service interface to perform the business logic.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// CreateRequest represents the body of a task creation request.
type CreateRequest struct {
	UUID      string `json:"uuid"`
	ImageID   string `json:"image_id"`
	BucketID  string `json:"bucket_id"`
	NewFormat string `json:"new_format"`
}

// PatchRequest represents the body of a task patch request. Absent
// fields are left untouched.
type PatchRequest struct {
	UUID      *string `json:"uuid"`
	ImageID   *string `json:"image_id"`
	BucketID  *string `json:"bucket_id"`
	NewFormat *string `json:"new_format"`
	Status    *string `json:"status"`
}

// httpStatus maps an error's kind onto the client-visible status code.
func httpStatus(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindAlreadyExists:
		return http.StatusConflict
	case apperror.KindInvalid, apperror.KindInvalidOperator:
		return http.StatusBadRequest
	case apperror.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *ginext.Context, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		zlog.Logger.Err(err).Msg("internal error")
		respond.Fail(c, status, fmt.Errorf("internal error"))
		return
	}

	respond.Fail(c, status, err)
}

// Create handles task creation. The task is stored in the CREATED
// state; execution starts only once it is patched to INPROGRESS.
func (h *Handler) Create(c *ginext.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	t, err := h.service.Create(c.Request.Context(), tasksvc.CreateInput{
		UUID:      req.UUID,
		ImageID:   req.ImageID,
		BucketID:  req.BucketID,
		NewFormat: req.NewFormat,
	})
	if err != nil {
		fail(c, err)
		return
	}

	respond.Created(c, t)
}

// Get returns a single task by id or uuid.
func (h *Handler) Get(c *ginext.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("missing id"))
		return
	}

	t, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	respond.OK(c, t)
}

// reservedListParams are query keys consumed by pagination and sorting
// rather than treated as filters.
var reservedListParams = map[string]bool{
	"limit":    true,
	"marker":   true,
	"sort_key": true,
	"sort_dir": true,
}

// List returns a filtered, sorted, marker-paginated page of tasks.
func (h *Handler) List(c *ginext.Context) {
	q := taskrepo.ListQuery{
		Marker:  c.Query("marker"),
		SortKey: c.Query("sort_key"),
		SortDir: c.Query("sort_dir"),
		Filters: map[string]string{},
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		q.Limit = limit
	}

	for key, values := range c.Request.URL.Query() {
		if reservedListParams[key] || len(values) == 0 {
			continue
		}
		q.Filters[key] = values[0]
	}

	tasks, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}

	if tasks == nil {
		tasks = []model.Task{}
	}

	respond.OK(c, tasks)
}

// Patch updates an existing task. Setting status to INPROGRESS
// dispatches the task to the worker group.
func (h *Handler) Patch(c *ginext.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("missing id"))
		return
	}

	var req PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	p := tasksvc.Patch{
		UUID:      req.UUID,
		ImageID:   req.ImageID,
		BucketID:  req.BucketID,
		NewFormat: req.NewFormat,
	}
	if req.Status != nil {
		status := model.Status(*req.Status)
		p.Status = &status
	}

	t, err := h.service.Patch(c.Request.Context(), id, p)
	if err != nil {
		fail(c, err)
		return
	}

	respond.OK(c, t)
}

// Delete soft-deletes a task by uuid.
func (h *Handler) Delete(c *ginext.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("missing id"))
		return
	}

	if _, err := h.service.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
