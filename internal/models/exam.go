package models

// ExamAllocation assigns part of an exam population to a room.
type ExamAllocation struct {
	Room     string `json:"room"`
	Students int    `json:"students"`
}

// Exam is a planned examination.
type Exam struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Date          string           `json:"date"`
	StartTime     string           `json:"startTime"`
	EndTime       string           `json:"endTime"`
	Filiere       string           `json:"filiere"`
	Department    string           `json:"department"`
	Subjects      []string         `json:"subjects"`
	StudentsCount int              `json:"studentsCount"`
	Allocations   []ExamAllocation `json:"allocations"`
}

// ExamRoomConfig lists rooms offered for exams with their exam-time capacity.
type ExamRoomConfig struct {
	Room     string `json:"room"`
	Capacity int    `json:"capacity"`
	Enabled  bool   `json:"enabled"`
}

// CandidateRoom is a room considered by the allocator.
type CandidateRoom struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// AllocationResult summarises an allocation run.
type AllocationResult struct {
	Allocations   []ExamAllocation `json:"allocations"`
	TotalAssigned int              `json:"totalAssigned"`
	Remaining     int              `json:"remaining"`
	SkippedRooms  []string         `json:"skippedRooms,omitempty"`
}

// ExamConflict reports two exams sharing a room at overlapping times.
type ExamConflict struct {
	ExamID  string `json:"examId"`
	OtherID string `json:"otherId"`
	Room    string `json:"room"`
	Date    string `json:"date"`
}
