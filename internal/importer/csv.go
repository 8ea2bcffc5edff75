package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

// sessionRow is one line of a sessions CSV file.
type sessionRow struct {
	ID       int     `csv:"id"`
	Day      string  `csv:"day"`
	Slot     string  `csv:"slot"`
	Type     string  `csv:"type"`
	Subject  string  `csv:"subject"`
	Filiere  string  `csv:"filiere"`
	Section  string  `csv:"section"`
	Subgroup string  `csv:"subgroup"`
	Teachers string  `csv:"teachers"`
	Room     string  `csv:"room"`
	HTP      float64 `csv:"hTP"`
	Locked   bool    `csv:"locked"`
	Override bool    `csv:"allowTimeSlotOverride"`
}

// ReadSessionsCSV parses sessions from CSV with a header row. Comma and semicolon
// delimiters are detected from the header. Unreadable rows are skipped and reported.
func ReadSessionsCSV(in io.Reader) ([]models.Session, []string, error) {
	buffered := bufio.NewReader(in)
	head, err := buffered.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, nil, err
	}
	reader := csv.NewReader(buffered)
	header := strings.SplitN(string(head), "\n", 2)[0]
	if strings.Count(header, ";") > strings.Count(header, ",") {
		reader.Comma = ';'
	}
	reader.TrimLeadingSpace = true

	var rows []sessionRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, nil, fmt.Errorf("parse sessions csv: %w", err)
	}

	var warnings []string
	sessions := make([]models.Session, 0, len(rows))
	for i, row := range rows {
		s, problems := row.session()
		if len(problems) > 0 {
			warnings = append(warnings, fmt.Sprintf("row %d skipped: %s", i+2, strings.Join(problems, ", ")))
			continue
		}
		sessions = append(sessions, s)
	}
	if n := RepairIDs(sessions); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d session ids missing or duplicated were reassigned", n))
	}
	return sessions, warnings, nil
}

// WriteSessionsCSV writes sessions with a header row, teachers joined by " / ".
func WriteSessionsCSV(out io.Writer, sessions []models.Session) error {
	rows := make([]sessionRow, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, sessionRow{
			ID:       s.ID,
			Day:      string(s.Day),
			Slot:     s.Slot,
			Type:     string(s.Type),
			Subject:  s.Subject,
			Filiere:  s.Filiere,
			Section:  s.Section,
			Subgroup: s.Subgroup,
			Teachers: strings.Join(s.Teachers, " / "),
			Room:     s.Room,
			HTP:      s.HTP,
			Locked:   s.Locked,
			Override: s.AllowTimeSlotOverride,
		})
	}
	var buf bytes.Buffer
	if err := gocsv.Marshal(&rows, &buf); err != nil {
		return fmt.Errorf("write sessions csv: %w", err)
	}
	_, err := out.Write(buf.Bytes())
	return err
}

func (r sessionRow) session() (models.Session, []string) {
	var problems []string
	s := models.Session{
		ID:                    r.ID,
		Subject:               strings.TrimSpace(r.Subject),
		Filiere:               strings.TrimSpace(r.Filiere),
		Section:               strings.TrimSpace(r.Section),
		Subgroup:              strings.TrimSpace(r.Subgroup),
		Room:                  strings.TrimSpace(r.Room),
		HTP:                   r.HTP,
		Locked:                r.Locked,
		AllowTimeSlotOverride: r.Override,
	}
	if day, ok := timegrid.ParseDay(r.Day); ok {
		s.Day = day
	} else {
		problems = append(problems, fmt.Sprintf("unknown day %q", r.Day))
	}
	if _, ok := timegrid.ParseLabel(r.Slot); ok {
		s.Slot = timegrid.CanonicalLabel(r.Slot)
	} else {
		problems = append(problems, fmt.Sprintf("unreadable slot %q", r.Slot))
	}
	if t, ok := models.ParseSessionType(r.Type); ok {
		s.Type = t
	} else {
		problems = append(problems, fmt.Sprintf("unknown type %q", r.Type))
	}
	if s.Subject == "" {
		problems = append(problems, "missing subject")
	}
	parts := strings.FieldsFunc(r.Teachers, func(c rune) bool { return c == '/' || c == ',' })
	s.Teachers = nilIfEmpty(models.CleanTeachers(parts, 0))
	return s, problems
}
