package models

import "strings"

// Term names the two academic terms stored per document.
type Term string

const (
	TermAutumn Term = "autumn"
	TermSpring Term = "spring"
)

// Header labels carried by project documents.
const (
	HeaderAutumn = "Session d'automne"
	HeaderSpring = "Session de printemps"
)

// ParseTerm maps header labels and short names to a Term.
func ParseTerm(raw string) (Term, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case value == "":
		return "", false
	case strings.Contains(value, "autom"), strings.Contains(value, "autumn"), strings.Contains(value, "fall"):
		return TermAutumn, true
	case strings.Contains(value, "printemps"), strings.Contains(value, "spring"):
		return TermSpring, true
	}
	return "", false
}

// HeaderLabel returns the display label of a term.
func (t Term) HeaderLabel() string {
	if t == TermSpring {
		return HeaderSpring
	}
	return HeaderAutumn
}

// Header identifies a project document.
type Header struct {
	Year       string `json:"year"`
	Session    string `json:"session"`
	Department string `json:"department"`
}

// TermSessions holds the sessions of one term.
type TermSessions struct {
	Sessions []Session `json:"sessions"`
	NextID   int       `json:"nextId"`
}

// SlotDef is the persisted form of a grid slot.
type SlotDef struct {
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// SlotConfig is the persisted grid with its TP coupling map.
type SlotConfig struct {
	Slots    []SlotDef         `json:"slots"`
	NextOfTP map[string]string `json:"nextOfTP"`
}

// ProjectDocument is the persisted top-level object.
type ProjectDocument struct {
	Header        Header                   `json:"header"`
	Teachers      []string                 `json:"teachers"`
	SubjectConfig map[string]SubjectConfig `json:"subjectConfig"`
	RoomCatalog   RoomCatalog              `json:"roomCatalog"`
	Filieres      []string                 `json:"filieres"`
	Autumn        TermSessions             `json:"sessionAutumn"`
	Spring        TermSessions             `json:"sessionSpring"`
	Exams         []Exam                   `json:"exams"`
	RoomConfigs   []ExamRoomConfig         `json:"roomConfigs"`
	Wishes        map[string]TeacherWish   `json:"wishes"`
	Slots         *SlotConfig              `json:"slots,omitempty"`
}

// TermData returns a pointer to the sessions of the given term.
func (d *ProjectDocument) TermData(term Term) *TermSessions {
	if term == TermSpring {
		return &d.Spring
	}
	return &d.Autumn
}

// ActiveTerm derives the term from the header session label, defaulting to autumn.
func (d *ProjectDocument) ActiveTerm() Term {
	if term, ok := ParseTerm(d.Header.Session); ok {
		return term
	}
	return TermAutumn
}

// EnsureMaps initialises nil collections so callers may write into them.
func (d *ProjectDocument) EnsureMaps() {
	if d.SubjectConfig == nil {
		d.SubjectConfig = map[string]SubjectConfig{}
	}
	if d.RoomCatalog == nil {
		d.RoomCatalog = RoomCatalog{}
	}
	if d.Wishes == nil {
		d.Wishes = map[string]TeacherWish{}
	}
	if d.Teachers == nil {
		d.Teachers = []string{}
	}
	if d.Filieres == nil {
		d.Filieres = []string{}
	}
	if d.Exams == nil {
		d.Exams = []Exam{}
	}
	if d.RoomConfigs == nil {
		d.RoomConfigs = []ExamRoomConfig{}
	}
	if d.Autumn.Sessions == nil {
		d.Autumn.Sessions = []Session{}
	}
	if d.Spring.Sessions == nil {
		d.Spring.Sessions = []Session{}
	}
}

// NextIDFor returns max(id)+1 over the list, or 1 when empty.
func NextIDFor(list []Session) int {
	max := 0
	for _, s := range list {
		if s.ID > max {
			max = s.ID
		}
	}
	return max + 1
}
