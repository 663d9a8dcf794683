package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openconv/convertor/internal/apperror"
)

// LaunchCommand is the wire form of the single command the front-end
// posts to the worker group: run the task identified by TaskUUID.
type LaunchCommand struct {
	Command  string `json:"command"`
	TaskUUID string `json:"task_uuid"`
}

// CommandLaunchTask names the only command carried by the control topic.
const CommandLaunchTask = "launch_task"

// producer defines the interface for posting raw messages on the
// control topic.
type producer interface {
	Send(ctx context.Context, key, value []byte) error
}

// Client posts launch commands for task uuids onto the control channel.
// Dispatch is fire-and-forget: there is no reply and no delivery
// confirmation beyond the broker accepting the message.
type Client struct {
	producer producer
}

// NewClient creates a new dispatch Client over the given producer.
func NewClient(p producer) *Client {
	return &Client{producer: p}
}

// Launch posts a launch command for taskUUID. The task is not checked
// for existence or state here; validation happens worker-side when the
// handler loads it. Transport failures surface to the caller.
func (c *Client) Launch(ctx context.Context, taskUUID string) error {
	cmd := LaunchCommand{
		Command:  CommandLaunchTask,
		TaskUUID: taskUUID,
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("launch: failed to marshal command: %w", err)
	}

	if err := c.producer.Send(ctx, []byte(taskUUID), data); err != nil {
		return apperror.Transport(err, "launch: failed to post command for task %s", taskUUID)
	}

	return nil
}
