package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/noah-isme/edt-scheduler/internal/conflict"
	"github.com/noah-isme/edt-scheduler/internal/coupling"
	"github.com/noah-isme/edt-scheduler/internal/importer"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

type termCheck struct {
	Term       models.Term
	Sessions   int
	Pairs      int
	Blocking   []string
	Violations []coupling.Violation
}

type sessionDiff struct {
	ID     int
	Status string
	Before string
	After  string
}

func main() {
	var (
		documentPath string
		comparePath  string
		strict       bool
	)

	flag.StringVar(&documentPath, "document", "edt.json", "Project document to check")
	flag.StringVar(&comparePath, "compare", "", "Optional second document (e.g. a backup) to diff against")
	flag.BoolVar(&strict, "strict", false, "Fail on validation warnings too")
	flag.Parse()

	doc, report, err := loadDocument(documentPath)
	if err != nil {
		log.Fatalf("failed to load document: %v", err)
	}

	checks := checkDocument(doc)
	printReport(os.Stdout, report, checks)

	breaking := len(report.Errors)
	for _, c := range checks {
		breaking += len(c.Blocking) + len(c.Violations)
	}
	if strict {
		breaking += len(report.Warnings)
	}

	if comparePath != "" {
		other, _, err := loadDocument(comparePath)
		if err != nil {
			log.Fatalf("failed to load comparison document: %v", err)
		}
		term := doc.ActiveTerm()
		diffs := compareSessions(other.TermData(term).Sessions, doc.TermData(term).Sessions)
		printDiffs(os.Stdout, comparePath, term, diffs)
	}

	fmt.Printf("Breaking findings: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadDocument(path string) (*models.ProjectDocument, importer.Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, importer.Report{}, err
	}
	report := importer.Validate(raw)
	if report.Normalized == nil {
		return nil, report, fmt.Errorf("%s: %v", path, report.Errors)
	}
	return report.Normalized, report, nil
}

// checkDocument runs the conflict detector and the coupling invariant over both terms.
func checkDocument(doc *models.ProjectDocument) []termCheck {
	grid, _ := timegrid.FromConfig(doc.Slots)
	detector := conflict.NewDetector(grid, doc.RoomCatalog)
	coordinator := coupling.New(detector)

	out := make([]termCheck, 0, 2)
	for _, term := range []models.Term{models.TermAutumn, models.TermSpring} {
		sessions := doc.TermData(term).Sessions
		check := termCheck{
			Term:       term,
			Sessions:   len(sessions),
			Pairs:      len(coordinator.DetectPairs(sessions)),
			Violations: coordinator.CheckInvariant(sessions),
		}
		for i := range sessions {
			for _, c := range detector.Detect(sessions[i], sessions[i+1:]).Blocking() {
				check.Blocking = append(check.Blocking, fmt.Sprintf("#%d %s", sessions[i].ID, c))
			}
		}
		out = append(out, check)
	}
	return out
}

// compareSessions lists sessions added, removed or changed between two snapshots of one term.
func compareSessions(before, after []models.Session) []sessionDiff {
	index := make(map[int]models.Session, len(before))
	for _, s := range before {
		index[s.ID] = s
	}
	var diffs []sessionDiff
	seen := make(map[int]bool, len(after))
	for _, s := range after {
		seen[s.ID] = true
		prev, ok := index[s.ID]
		switch {
		case !ok:
			diffs = append(diffs, sessionDiff{ID: s.ID, Status: "ADDED", After: describe(s)})
		case !prev.Equal(s):
			diffs = append(diffs, sessionDiff{ID: s.ID, Status: "CHANGED", Before: describe(prev), After: describe(s)})
		}
	}
	for _, s := range before {
		if !seen[s.ID] {
			diffs = append(diffs, sessionDiff{ID: s.ID, Status: "REMOVED", Before: describe(s)})
		}
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].ID < diffs[j].ID })
	return diffs
}

func describe(s models.Session) string {
	return fmt.Sprintf("%s %s %s %s %s%s %s", s.Day, s.Slot, s.Type, s.Subject, s.Section, s.Subgroup, s.Room)
}

func printReport(w io.Writer, report importer.Report, checks []termCheck) {
	fmt.Fprintln(w, "Document Check Report")
	fmt.Fprintln(w, "=====================")
	for _, e := range report.Errors {
		fmt.Fprintf(w, "[ERROR] %s\n", e)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "[WARN] %s\n", warning)
	}
	for _, c := range checks {
		status := "OK"
		if len(c.Blocking) > 0 || len(c.Violations) > 0 {
			status = "CONFLICT"
		}
		fmt.Fprintf(w, "[%s] %s: %d sessions, %d coupled pairs\n", status, c.Term, c.Sessions, c.Pairs)
		for _, b := range c.Blocking {
			fmt.Fprintf(w, "  %s\n", b)
		}
		for _, v := range c.Violations {
			fmt.Fprintf(w, "  coupling #%d: %s\n", v.FirstID, v.Reason)
		}
	}
}

func printDiffs(w io.Writer, against string, term models.Term, diffs []sessionDiff) {
	fmt.Fprintf(w, "Diff against %s (%s): %d sessions differ\n", against, term, len(diffs))
	for _, d := range diffs {
		fmt.Fprintf(w, "[%s] #%d\n", d.Status, d.ID)
		if d.Before != "" {
			fmt.Fprintf(w, "  before: %s\n", d.Before)
		}
		if d.After != "" {
			fmt.Fprintf(w, "  after:  %s\n", d.After)
		}
	}
}
