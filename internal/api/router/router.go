package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/openconv/convertor/internal/api/handlers/task"
	"github.com/openconv/convertor/internal/middleware"
)

func Setup(h *task.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api/v1")

	api.POST("/tasks", h.Create)       // create task
	api.GET("/tasks", h.List)          // list tasks
	api.GET("/tasks/:id", h.Get)       // get task by id or uuid
	api.PATCH("/tasks/:id", h.Patch)   // patch task, INPROGRESS dispatches it
	api.DELETE("/tasks/:id", h.Delete) // soft-delete task by uuid

	return r
}
