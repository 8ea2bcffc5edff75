package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-scheduler/internal/models"
)

var fixedNow = time.Date(2024, time.October, 2, 9, 0, 0, 0, time.UTC)

func TestValidateTopLevelSeancesWithoutHeader(t *testing.T) {
	records := make([]map[string]interface{}, 0, 12)
	for i := 1; i <= 12; i++ {
		records = append(records, map[string]interface{}{
			"id": i, "jour": "Lundi", "creneau": "8h30", "type": "TD",
			"matiere": fmt.Sprintf("M%d", i), "filiere": "S1PC", "section": "A", "groupe": "G1",
			"enseignant": "T1", "salle": "A1",
		})
	}
	raw, err := json.Marshal(map[string]interface{}{"seances": records})
	require.NoError(t, err)

	report := ValidateAt(raw, fixedNow)

	assert.True(t, report.OK, "errors: %v", report.Errors)
	assert.Contains(t, report.Warnings, WarnHeaderDefaulted)
	assert.Contains(t, report.Warnings, WarnPlacedInAutumn)
	require.NotNil(t, report.Normalized)
	assert.Equal(t, models.Header{Year: "2024-2025", Session: models.HeaderAutumn}, report.Normalized.Header)
	assert.Len(t, report.Normalized.Autumn.Sessions, 12)
	assert.Equal(t, 13, report.Normalized.Autumn.NextID)
	assert.Empty(t, report.Normalized.Spring.Sessions)
	assert.Equal(t, []string{"T1"}, report.Normalized.Autumn.Sessions[0].Teachers)
}

func TestExportImportRoundTrip(t *testing.T) {
	doc := &models.ProjectDocument{
		Header:   models.Header{Year: "2024-2025", Session: models.HeaderSpring, Department: "Chimie"},
		Teachers: []string{"T1", "T2"},
		SubjectConfig: map[string]models.SubjectConfig{
			"Chimie": {SectionsCount: 1, TDGroups: 2, TPGroups: 2, NbTeachersTP: 1, VolumeHTP: models.VolumeHTP{Cours: 1.5, TD: 1.5, TP: 3}, Filiere: "S1PC"},
		},
		RoomCatalog: models.RoomCatalog{"Amphi B": {Kind: models.RoomAmphi, Capacity: 200}, "STP-1": {Kind: models.RoomSTP, Capacity: 20}},
		Filieres:    []string{"S1PC"},
		Autumn: models.TermSessions{Sessions: []models.Session{
			{ID: 1, Day: models.Monday, Slot: "8h30", Type: models.SessionCours, Subject: "Chimie", Filiere: "S1PC", Section: "A", Teachers: []string{"T1"}, Room: "Amphi B", HTP: 1.5, Locked: true},
		}, NextID: 5},
		Spring: models.TermSessions{Sessions: []models.Session{
			{ID: 2, Day: models.Tuesday, Slot: "14h30", Type: models.SessionTP, Subject: "Chimie", Filiere: "S1PC", Section: "A", Subgroup: "G1", Teachers: []string{"T1", "T2"}, Room: "STP-1", HTP: 3, AllowTimeSlotOverride: true},
			{ID: 3, Day: models.Tuesday, Slot: "16h00", Type: models.SessionTP, Subject: "Chimie", Filiere: "S1PC", Section: "A", Subgroup: "G1", Teachers: []string{"T1", "T2"}, Room: "STP-1"},
		}, NextID: 4},
		Exams:       []models.Exam{{ID: "e1", Title: "Chimie", Date: "2025-01-15", StartTime: "08:30", EndTime: "10:00", StudentsCount: 120}},
		RoomConfigs: []models.ExamRoomConfig{{Room: "Amphi B", Capacity: 150, Enabled: true}},
		Wishes:      map[string]models.TeacherWish{"T1": {Choices: []string{"Chimie"}}},
	}
	doc.EnsureMaps()

	exported, err := Export(doc)
	require.NoError(t, err)
	report := ValidateAt(exported, fixedNow)

	require.True(t, report.OK, "errors: %v", report.Errors)
	assert.Equal(t, doc, report.Normalized)
}

func TestValidateSessionDataAliasesAndOverrideSynonyms(t *testing.T) {
	raw := []byte(`{
		"Header": {"annee": "2023-2024", "session": "Session de printemps", "departement": "Physique"},
		"Enseignants": [{"nom": "T1"}, "T2", "t1"],
		"sallesInfo": [{"nom": "Amphi B", "type": "amphi", "capacite": "200"}],
		"filieres": ["S1PC"],
		"forfaits": {"T1": 12},
		"sessionData": {
			"printemps": {"seances": [
				{"id": 4, "day": "tue", "slot": "14:30", "type": "tp", "subject": "Chimie", "filiere": "S1PC", "section": "A", "subgroup": "G1", "teachers": ["T1"], "allowTimeSlotConflict": true},
				{"id": 4, "day": "wed", "slot": "8h30", "type": "cours", "subject": "Chimie", "filiere": "S1PC", "section": "A", "force": "yes"},
				{"day": "thu", "slot": "10h", "type": "TD", "subject": "Chimie", "filiere": "S1PC", "section": "A", "subgroup": "G2", "meta": {"force": true}}
			], "nextId": 2}
		}
	}`)

	report := ValidateAt(raw, fixedNow)
	require.True(t, report.OK, "errors: %v", report.Errors)

	doc := report.Normalized
	assert.Equal(t, models.Header{Year: "2023-2024", Session: models.HeaderSpring, Department: "Physique"}, doc.Header)
	assert.Equal(t, []string{"T1", "T2"}, doc.Teachers)
	assert.Equal(t, models.Room{Kind: models.RoomAmphi, Capacity: 200}, doc.RoomCatalog["Amphi B"])

	spring := doc.Spring.Sessions
	require.Len(t, spring, 3)
	assert.Equal(t, []int{4, 5, 6}, []int{spring[0].ID, spring[1].ID, spring[2].ID})
	assert.Equal(t, 7, doc.Spring.NextID)
	assert.Equal(t, "14h30", spring[0].Slot)
	assert.Equal(t, "10h00", spring[2].Slot)
	assert.Equal(t, models.Thursday, spring[2].Day)
	for _, s := range spring {
		assert.True(t, s.AllowTimeSlotOverride, "session %d", s.ID)
	}
	assert.Empty(t, doc.Autumn.Sessions)
	assert.NotContains(t, report.Warnings, WarnPlacedInAutumn)
	assert.Condition(t, func() bool {
		for _, w := range report.Warnings {
			if strings.Contains(w, "reassigned") {
				return true
			}
		}
		return false
	})
}

func TestValidateReportsErrorsWithBestEffortDocument(t *testing.T) {
	raw := []byte(`{"header": {"year": "2024-2025", "session": "Session d'automne"},
		"sessionAutumn": {"sessions": [{"id": 1, "day": "Funday", "slot": "25h61", "type": "seminar", "subject": ""}]}}`)

	report := ValidateAt(raw, fixedNow)

	assert.False(t, report.OK)
	assert.Len(t, report.Errors, 4)
	require.NotNil(t, report.Normalized)
	assert.Len(t, report.Normalized.Autumn.Sessions, 1)
}

func TestValidateRejectsNonObject(t *testing.T) {
	report := Validate([]byte(`[1,2,3]`))
	assert.False(t, report.OK)
	assert.Nil(t, report.Normalized)
}

func TestValidateNormalizesSlots(t *testing.T) {
	raw := []byte(`{"header": {"year": "2024-2025", "session": "autumn"}, "sessionAutumn": [],
		"creneaux": {"slots": [{"label": "14h30", "start": "14:30", "end": "16:00"}, {"label": "8h30", "start": "08:30", "end": "10:00"}], "nextOfTP": {"8h30": "10h00"}}}`)

	report := ValidateAt(raw, fixedNow)
	require.True(t, report.OK, "errors: %v", report.Errors)
	require.NotNil(t, report.Normalized.Slots)
	assert.Equal(t, "8h30", report.Normalized.Slots.Slots[0].Label)
	assert.Equal(t, "10h00", report.Normalized.Slots.NextOfTP["8h30"])
}

func TestAcademicYear(t *testing.T) {
	assert.Equal(t, "2024-2025", AcademicYear(time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2023-2024", AcademicYear(time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)))
}

func TestSessionsCSVRoundTrip(t *testing.T) {
	sessions := []models.Session{
		{ID: 1, Day: models.Monday, Slot: "8h30", Type: models.SessionCours, Subject: "Chimie", Filiere: "S1PC", Section: "A", Teachers: []string{"T1", "T2"}, Room: "Amphi B", HTP: 1.5},
		{ID: 2, Day: models.Friday, Slot: "16h00", Type: models.SessionTP, Subject: "Chimie", Filiere: "S1PC", Section: "A", Subgroup: "G1", Locked: true, AllowTimeSlotOverride: true},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSessionsCSV(&buf, sessions))

	got, warnings, err := ReadSessionsCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, sessions, got)
}

func TestReadSessionsCSVSemicolonAndBadRows(t *testing.T) {
	in := strings.NewReader("id;day;slot;type;subject;filiere;section;subgroup;teachers;room;hTP;locked;allowTimeSlotOverride\n" +
		"0;lun;8h30;TD;Analyse;S1PC;A;G1;T1;A1;1.5;false;false\n" +
		"3;someday;8h30;TD;Analyse;S1PC;A;G2;T1;A1;1.5;false;false\n")

	got, warnings, err := ReadSessionsCSV(in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, models.Monday, got[0].Day)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "row 3 skipped")
}
