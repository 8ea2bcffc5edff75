package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/events"
	"github.com/noah-isme/edt-scheduler/internal/importer"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/registry"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
	"github.com/noah-isme/edt-scheduler/pkg/export"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult is a rendered file ready to be served.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders timetables and moves sessions in and out of CSV files.
type ExportService struct {
	ws     *Workspace
	csv    datasetRenderer
	pdf    datasetRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers take the package defaults.
func NewExportService(ws *Workspace, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{ws: ws, csv: csv, pdf: pdf, logger: logger}
}

// Timetable renders the weekly grid of the active term, optionally restricted to one filière.
func (s *ExportService) Timetable(_ context.Context, query dto.ExportQuery) (*ExportResult, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = FormatCSV
	}
	var renderer datasetRenderer
	contentType := "text/csv; charset=utf-8"
	switch format {
	case FormatCSV:
		renderer = s.csv
	case FormatPDF:
		renderer = s.pdf
		contentType = "application/pdf"
	default:
		return nil, validationFailure([]string{"format"}, "unsupported format "+query.Format)
	}

	s.ws.mu.Lock()
	data := s.dataset(strings.TrimSpace(query.Filiere))
	term := s.ws.term
	s.ws.mu.Unlock()

	payload, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.CloneWrap(appErrors.ErrInternal, err, "render timetable")
	}
	scope := strings.TrimSpace(query.Filiere)
	if scope == "" {
		scope = "all"
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("edt_%s_%s.%s", fileSafe(scope), term, format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

// dataset lays sessions out by day and slot. Callers hold the lock.
func (s *ExportService) dataset(filiere string) export.Dataset {
	slots := s.ws.grid.Slots()
	headers := make([]string, 0, len(slots)+1)
	headers = append(headers, "Jour")
	for _, slot := range slots {
		headers = append(headers, slot.Label)
	}

	title := s.ws.doc.Header.Session
	if filiere != "" {
		title = filiere + " - " + title
	}
	data := export.Dataset{Title: title, Headers: headers}

	sessions := s.ws.reg.List()
	for _, day := range timegrid.Days {
		row := map[string][]string{"Jour": {string(day)}}
		for _, sess := range sessions {
			if sess.Day != day {
				continue
			}
			if filiere != "" && models.NormalizeName(sess.Filiere) != models.NormalizeName(filiere) {
				continue
			}
			column, ok := s.columnOf(sess, slots)
			if !ok {
				s.logger.Debug("session outside the grid left out of export", zap.Int("session_id", sess.ID))
				continue
			}
			row[column] = append(row[column], cellLabel(sess))
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

// columnOf finds the grid slot holding the session start.
func (s *ExportService) columnOf(sess models.Session, slots []timegrid.Slot) (string, bool) {
	if slot, ok := s.ws.grid.Lookup(sess.Slot); ok {
		return slot.Label, true
	}
	start, _, ok := s.ws.grid.Range(sess)
	if !ok {
		return "", false
	}
	for _, slot := range slots {
		if start >= slot.Start && start < slot.End {
			return slot.Label, true
		}
	}
	return "", false
}

// SessionsCSV exports the sessions of the active term.
func (s *ExportService) SessionsCSV(_ context.Context) (*ExportResult, error) {
	s.ws.mu.Lock()
	sessions := s.ws.reg.List()
	term := s.ws.term
	s.ws.mu.Unlock()

	var buf bytes.Buffer
	if err := importer.WriteSessionsCSV(&buf, sessions); err != nil {
		return nil, appErrors.CloneWrap(appErrors.ErrInternal, err, "write sessions csv")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("seances_%s.csv", term),
		ContentType: "text/csv; charset=utf-8",
		Payload:     buf.Bytes(),
	}, nil
}

// ImportSessionsCSV replaces the sessions of the active term. The replacement is one undo step.
func (s *ExportService) ImportSessionsCSV(ctx context.Context, in io.Reader) (*models.OperationResult, []string, error) {
	sessions, warnings, err := importer.ReadSessionsCSV(in)
	if err != nil {
		return nil, nil, appErrors.CloneWrap(appErrors.ErrImportFormat, err, "sessions csv rejected")
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	if n := s.ws.detector.CountBlocking(sessions); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d blocking conflicts in imported sessions", n))
	}
	err = s.ws.reg.Batch("import csv", func(r *registry.Registry) error {
		r.ReplaceAll(sessions)
		return nil
	})
	if err != nil {
		return nil, warnings, appErrors.CloneWrap(appErrors.ErrInternal, err, "import failed")
	}
	if err := s.ws.commitTerm(ctx, "import"); err != nil {
		return nil, warnings, err
	}
	s.ws.publish(events.TermChanged, s.ws.term)
	return &models.OperationResult{
		Success:  true,
		Sessions: s.ws.reg.List(),
		Message:  fmt.Sprintf("%d sessions imported", len(sessions)),
	}, warnings, nil
}

// cellLabel renders one session inside a timetable cell.
func cellLabel(s models.Session) string {
	parts := []string{fmt.Sprintf("%s (%s)", s.Subject, s.Type)}
	if group := strings.TrimSpace(s.Section + s.Subgroup); group != "" {
		parts = append(parts, group)
	}
	if room := strings.TrimSpace(s.Room); room != "" {
		parts = append(parts, room)
	}
	if teachers := models.CleanTeachers(s.Teachers, 0); len(teachers) > 0 {
		parts = append(parts, "- "+strings.Join(teachers, "/"))
	}
	return strings.Join(parts, " ")
}

func fileSafe(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, raw)
}
