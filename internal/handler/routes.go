package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-scheduler/internal/middleware"
	"github.com/noah-isme/edt-scheduler/internal/models"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Sessions  *SessionHandler
	Optimizer *OptimizerHandler
	Exams     *ExamHandler
	Documents *DocumentHandler
	Exports   *ExportHandler
	// Auth validates bearer tokens; nil leaves every route open.
	Auth middleware.TokenValidator
}

// Register mounts every route on group. With Auth set, reads need any valid token and
// writes need the planner role.
func (r Routes) Register(group *gin.RouterGroup) {
	read := group.Group("")
	write := group.Group("")
	if r.Auth != nil {
		read.Use(middleware.JWT(r.Auth))
		write.Use(middleware.JWT(r.Auth), middleware.RequireRoles(models.RolePlanner))
	}

	if h := r.Sessions; h != nil {
		read.GET("/sessions", h.List)
		read.GET("/sessions/undo", h.UndoHistory)
		read.GET("/sessions/:id", h.Get)
		read.POST("/sessions/check", h.Check)
		write.POST("/sessions", h.Create)
		write.POST("/sessions/undo", h.Undo)
		write.PUT("/sessions/:id", h.Update)
		write.DELETE("/sessions/:id", h.Delete)
		write.POST("/sessions/:id/move", h.Move)
		write.POST("/sessions/:id/move/confirm", h.ConfirmMove)
		write.DELETE("/sessions/:id/move", h.CancelMove)
	}

	if h := r.Optimizer; h != nil {
		read.GET("/optimizer/defaults", h.Defaults)
		read.GET("/optimizer/proposals/:id", h.Proposal)
		write.POST("/optimizer/proposals", h.Optimize)
		write.POST("/optimizer/proposals/:id/apply", h.Apply)
	}

	if h := r.Exams; h != nil {
		read.GET("/exams", h.List)
		read.GET("/exams/slots", h.Slots)
		read.GET("/exams/rooms", h.RoomConfigs)
		read.GET("/exams/:id", h.Get)
		read.GET("/exams/:id/conflicts", h.Conflicts)
		write.POST("/exams", h.Create)
		write.PUT("/exams/rooms", h.UpdateRoomConfigs)
		write.PUT("/exams/:id", h.Update)
		write.DELETE("/exams/:id", h.Delete)
		write.POST("/exams/:id/allocate", h.Allocate)
	}

	if h := r.Documents; h != nil {
		read.GET("/document", h.Info)
		read.GET("/document/export", h.Export)
		read.GET("/subjects", h.Subjects)
		read.GET("/subjects/coverage", h.Coverage)
		read.GET("/teachers", h.Teachers)
		read.GET("/teachers/volumes", h.Volumes)
		read.GET("/rooms", h.Rooms)
		write.DELETE("/document", h.Reset)
		write.POST("/document/save", h.Save)
		write.PUT("/document/term", h.SwitchTerm)
		write.POST("/document/import", h.Import)
		write.PUT("/subjects", h.PutSubject)
		write.DELETE("/subjects/:name", h.RemoveSubject)
		write.POST("/teachers", h.AddTeacher)
		write.DELETE("/teachers/:name", h.RemoveTeacher)
		write.PUT("/rooms", h.PutRoom)
		write.DELETE("/rooms/:name", h.RemoveRoom)
	}

	if h := r.Exports; h != nil {
		read.GET("/export/timetable", h.Timetable)
		read.GET("/export/sessions.csv", h.SessionsCSV)
		write.POST("/import/sessions", h.ImportSessionsCSV)
	}
}
