package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/openconv/convertor/internal/dispatch"
)

// executionPool defines the interface for submitting task uuids for
// asynchronous execution.
type executionPool interface {
	Submit(ctx context.Context, taskUUID string)
}

// LaunchHandler consumes launch commands from the control topic. It
// hands each uuid to the execution pool and returns immediately so the
// consume loop is never blocked on conversion work.
type LaunchHandler struct {
	pool executionPool
}

// NewLaunchHandler creates a new handler over the given pool.
func NewLaunchHandler(p executionPool) *LaunchHandler {
	return &LaunchHandler{pool: p}
}

// Handle decodes a launch command and submits its task uuid to the
// pool. Handler outcomes are only observable through the task row's
// persisted status; nothing is reported back to the sender.
func (h *LaunchHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var cmd dispatch.LaunchCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("unmarshal launch command: %w", err)
	}

	if cmd.TaskUUID == "" {
		return fmt.Errorf("launch command without task uuid")
	}

	h.pool.Submit(ctx, cmd.TaskUUID)

	zlog.Logger.Info().
		Str("task_uuid", cmd.TaskUUID).
		Msg("task submitted for execution")

	return nil
}
