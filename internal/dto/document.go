package dto

import "github.com/noah-isme/edt-scheduler/internal/models"

// SwitchTermRequest selects the active term.
type SwitchTermRequest struct {
	Term string `json:"term" validate:"required"`
}

// SubjectRequest adds or replaces a subject configuration.
type SubjectRequest struct {
	Name   string               `json:"name" validate:"required"`
	Config models.SubjectConfig `json:"config"`
}

// TeacherRequest adds a teacher to the roster.
type TeacherRequest struct {
	Name string `json:"name" validate:"required"`
}

// ExamRequest creates or replaces an exam.
type ExamRequest struct {
	Title         string   `json:"title" validate:"required"`
	Date          string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime     string   `json:"startTime" validate:"required"`
	EndTime       string   `json:"endTime" validate:"required"`
	Filiere       string   `json:"filiere"`
	Department    string   `json:"department"`
	Subjects      []string `json:"subjects"`
	StudentsCount int      `json:"studentsCount" validate:"min=0"`
}

// RoomConfigsRequest replaces the rooms offered for exams.
type RoomConfigsRequest struct {
	Configs []models.ExamRoomConfig `json:"configs" validate:"dive"`
}

// ImportResponse wraps a validation report and whether the document was installed.
type ImportResponse struct {
	Imported bool        `json:"imported"`
	Report   interface{} `json:"report"`
}

// RoomRequest adds or replaces a catalog room.
type RoomRequest struct {
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type"`
	Capacity int    `json:"capacity" validate:"min=0"`
}

// ExportQuery selects a timetable export.
type ExportQuery struct {
	Filiere string `form:"filiere"`
	Format  string `form:"format"`
}
