package models

// VolumeHTP holds hours per group for each session type.
type VolumeHTP struct {
	Cours float64 `json:"Cours"`
	TD    float64 `json:"TD"`
	TP    float64 `json:"TP"`
}

// For returns the configured hours for a type.
func (v VolumeHTP) For(t SessionType) float64 {
	switch t {
	case SessionCours:
		return v.Cours
	case SessionTD:
		return v.TD
	case SessionTP:
		return v.TP
	}
	return 0
}

// SubjectConfig describes how a subject is split into sessions.
type SubjectConfig struct {
	SectionsCount int       `json:"sections_count"`
	TDGroups      int       `json:"td_groups"`
	TPGroups      int       `json:"tp_groups"`
	NbTeachersTP  int       `json:"nbEnseignantsTP"`
	VolumeHTP     VolumeHTP `json:"volumeHTP"`
	Filiere       string    `json:"filiere"`
	Department    string    `json:"departement"`
}

// ExpectedCounts derives the number of sessions each type should have.
func (c SubjectConfig) ExpectedCounts() map[SessionType]int {
	return map[SessionType]int{
		SessionCours: c.SectionsCount,
		SessionTD:    c.SectionsCount * c.TDGroups,
		SessionTP:    c.SectionsCount * c.TPGroups,
	}
}

// TeachersPerTP clamps nbTeachersTP to {1,2}.
func (c SubjectConfig) TeachersPerTP() int {
	if c.NbTeachersTP >= 2 {
		return 2
	}
	return 1
}

// SubjectCoverage compares expected and scheduled session counts.
type SubjectCoverage struct {
	Subject   string              `json:"subject"`
	Expected  map[SessionType]int `json:"expected"`
	Scheduled map[SessionType]int `json:"scheduled"`
	Complete  bool                `json:"complete"`
}

// TeacherWish captures ranked preferences; the kernel only reads them.
type TeacherWish struct {
	Choices     []string                `json:"choices"`
	Hours       map[SessionType]float64 `json:"hours,omitempty"`
	Constraints string                  `json:"constraints,omitempty"`
}

// FirstChoice returns the top ranked subject, if any.
func (w TeacherWish) FirstChoice() string {
	if len(w.Choices) == 0 {
		return ""
	}
	return w.Choices[0]
}
