package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-scheduler/internal/importer"
	"github.com/noah-isme/edt-scheduler/internal/models"
)

func sampleDocument() *models.ProjectDocument {
	doc := &models.ProjectDocument{
		RoomCatalog: models.RoomCatalog{
			"A1":   {Kind: models.RoomStandard, Capacity: 40},
			"STP1": {Kind: models.RoomSTP, Capacity: 20},
		},
	}
	doc.EnsureMaps()
	doc.Autumn.Sessions = []models.Session{
		{ID: 1, Day: models.Monday, Slot: "8h30", Type: models.SessionTD, Subject: "Algo", Filiere: "GI", Section: "A", Subgroup: "G1", Teachers: []string{"Ali"}, Room: "A1", HTP: 1.5},
		{ID: 2, Day: models.Monday, Slot: "8h30", Type: models.SessionTD, Subject: "Réseaux", Filiere: "GI", Section: "B", Subgroup: "G1", Teachers: []string{"Ali"}, Room: "A1", HTP: 1.5},
		{ID: 3, Day: models.Tuesday, Slot: "14h30", Type: models.SessionTP, Subject: "Physique", Filiere: "S1PC", Section: "A", Subgroup: "G1", Room: "STP1", HTP: 3},
	}
	return doc
}

func TestCheckDocumentReportsBlockingAndCoupling(t *testing.T) {
	checks := checkDocument(sampleDocument())
	require.Len(t, checks, 2)

	autumn := checks[0]
	assert.Equal(t, models.TermAutumn, autumn.Term)
	assert.Equal(t, 3, autumn.Sessions)
	assert.Equal(t, 0, autumn.Pairs)
	assert.NotEmpty(t, autumn.Blocking)
	require.Len(t, autumn.Violations, 1)
	assert.Equal(t, 3, autumn.Violations[0].FirstID)

	assert.Equal(t, 0, checks[1].Sessions)
	assert.Empty(t, checks[1].Blocking)

	var out bytes.Buffer
	printReport(&out, importer.Report{Warnings: []string{"header defaulted"}}, checks)
	assert.Contains(t, out.String(), "[CONFLICT] autumn: 3 sessions")
	assert.Contains(t, out.String(), "[WARN] header defaulted")
	assert.Contains(t, out.String(), "[OK] spring: 0 sessions")
}

func TestCompareSessions(t *testing.T) {
	before := sampleDocument().Autumn.Sessions
	after := append([]models.Session{}, before[1:]...)
	after[0].Slot = "10h00"
	after = append(after, models.Session{ID: 9, Day: models.Friday, Slot: "8h30", Type: models.SessionCours, Subject: "Maths"})

	diffs := compareSessions(before, after)
	require.Len(t, diffs, 3)
	assert.Equal(t, sessionDiff{ID: 1, Status: "REMOVED", Before: describe(before[0])}, diffs[0])
	assert.Equal(t, 2, diffs[1].ID)
	assert.Equal(t, "CHANGED", diffs[1].Status)
	assert.Equal(t, "ADDED", diffs[2].Status)

	var out bytes.Buffer
	printDiffs(&out, "backup.json", models.TermAutumn, diffs)
	assert.Contains(t, out.String(), "3 sessions differ")
}
