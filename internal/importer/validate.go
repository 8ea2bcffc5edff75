// Package importer validates and normalises project documents coming from outside
// the kernel, and writes them back in canonical form.
package importer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

// Report is the validation outcome. Normalized is always populated on JSON input,
// even when OK is false, so the caller may still choose to import it.
type Report struct {
	OK         bool                    `json:"ok"`
	Errors     []string                `json:"errors"`
	Warnings   []string                `json:"warnings"`
	Normalized *models.ProjectDocument `json:"normalized,omitempty"`
}

// Warning texts callers may match on.
const (
	WarnHeaderDefaulted = "header missing; defaulted to current academic year and autumn session"
	WarnPlacedInAutumn  = "sessions found outside a term were placed in autumn by default"
)

var aliases = map[string][]string{
	"header":      {"header", "entete", "en-tete"},
	"teachers":    {"enseignants", "teachers"},
	"subjects":    {"matieregroupes", "subjects", "subjectconfig"},
	"rooms":       {"sallesinfo", "rooms", "roomcatalog"},
	"filieres":    {"filieres"},
	"sessionData": {"sessiondata"},
	"autumn":      {"sessionautumn", "autumn", "automne"},
	"spring":      {"sessionspring", "spring", "printemps"},
	"exams":       {"exams", "examens"},
	"roomConfigs": {"examroomconfigs", "roomconfigs"},
	"wishes":      {"souhaits", "wishes"},
	"slots":       {"creneaux", "slots"},
}

// Validate checks raw JSON against the project document layout.
func Validate(raw []byte) Report {
	return ValidateAt(raw, time.Now())
}

// ValidateAt is Validate with an explicit clock for the header default.
func ValidateAt(raw []byte, now time.Time) Report {
	v := &validator{now: now}
	v.run(raw)
	v.report.OK = len(v.report.Errors) == 0
	if v.report.Errors == nil {
		v.report.Errors = []string{}
	}
	if v.report.Warnings == nil {
		v.report.Warnings = []string{}
	}
	return v.report
}

type validator struct {
	now    time.Time
	report Report
}

func (v *validator) errorf(format string, args ...interface{}) {
	v.report.Errors = append(v.report.Errors, fmt.Sprintf(format, args...))
}

func (v *validator) warnf(format string, args ...interface{}) {
	v.report.Warnings = append(v.report.Warnings, fmt.Sprintf(format, args...))
}

func (v *validator) run(raw []byte) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		v.errorf("document is not a JSON object: %v", err)
		return
	}
	fields := lowerKeys(root)
	doc := &models.ProjectDocument{}
	v.report.Normalized = doc

	v.header(doc, fields)
	v.teachers(doc, fields)
	v.subjects(doc, fields)
	v.rooms(doc, fields)
	v.filieres(doc, fields)
	v.sessions(doc, fields)
	v.optional(doc, fields)

	doc.EnsureMaps()
}

func (v *validator) header(doc *models.ProjectDocument, fields map[string]json.RawMessage) {
	raw, ok := pick(fields, "header")
	if ok {
		var h map[string]interface{}
		if err := json.Unmarshal(raw, &h); err != nil {
			v.errorf("header: expected an object")
			ok = false
		} else {
			h = lowerAny(h)
			doc.Header = models.Header{
				Year:       stringOf(h, "year", "annee"),
				Session:    stringOf(h, "session"),
				Department: stringOf(h, "department", "departement"),
			}
		}
	}
	if !ok {
		doc.Header = models.Header{Year: AcademicYear(v.now), Session: models.HeaderAutumn}
		v.report.Warnings = append(v.report.Warnings, WarnHeaderDefaulted)
		return
	}
	if doc.Header.Year == "" {
		doc.Header.Year = AcademicYear(v.now)
		v.warnf("header.year missing; defaulted to %s", doc.Header.Year)
	}
	if _, known := models.ParseTerm(doc.Header.Session); !known {
		v.warnf("header.session %q not recognised; defaulted to %s", doc.Header.Session, models.HeaderAutumn)
		doc.Header.Session = models.HeaderAutumn
	}
}

// AcademicYear renders the academic year containing t; years start in September.
func AcademicYear(t time.Time) string {
	year := t.Year()
	if t.Month() < time.September {
		year--
	}
	return fmt.Sprintf("%d-%d", year, year+1)
}

func (v *validator) teachers(doc *models.ProjectDocument, fields map[string]json.RawMessage) {
	raw, ok := pick(fields, "teachers")
	if !ok {
		v.warnf("teachers missing; empty list used")
		return
	}
	var list []interface{}
	if err := json.Unmarshal(raw, &list); err != nil {
		v.errorf("teachers: expected an array")
		return
	}
	seen := make(map[string]bool)
	for _, item := range list {
		name := ""
		switch t := item.(type) {
		case string:
			name = t
		case map[string]interface{}:
			name = stringOf(lowerAny(t), "name", "nom")
		}
		name = strings.TrimSpace(name)
		if name == "" || seen[models.NormalizeName(name)] {
			continue
		}
		seen[models.NormalizeName(name)] = true
		doc.Teachers = append(doc.Teachers, name)
	}
}

func (v *validator) subjects(doc *models.ProjectDocument, fields map[string]json.RawMessage) {
	raw, ok := pick(fields, "subjects")
	if !ok {
		v.warnf("subjects missing; empty configuration used")
		return
	}
	if err := json.Unmarshal(raw, &doc.SubjectConfig); err != nil {
		v.errorf("subjects: expected an object keyed by subject name")
		doc.SubjectConfig = nil
	}
}

func (v *validator) rooms(doc *models.ProjectDocument, fields map[string]json.RawMessage) {
	raw, ok := pick(fields, "rooms")
	if !ok {
		v.warnf("rooms missing; empty catalog used")
		return
	}
	doc.RoomCatalog = models.RoomCatalog{}

	var keyed map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &keyed); err == nil {
		for name, entry := range keyed {
			doc.RoomCatalog[strings.TrimSpace(name)] = roomOf(lowerAny(entry))
		}
		return
	}
	var listed []map[string]interface{}
	if err := json.Unmarshal(raw, &listed); err != nil {
		v.errorf("rooms: expected an object or an array")
		return
	}
	for _, entry := range listed {
		entry = lowerAny(entry)
		name := strings.TrimSpace(stringOf(entry, "name", "nom"))
		if name == "" {
			v.warnf("rooms: entry without name skipped")
			continue
		}
		doc.RoomCatalog[name] = roomOf(entry)
	}
}

func roomOf(entry map[string]interface{}) models.Room {
	return models.Room{
		Kind:     models.ParseRoomKind(stringOf(entry, "type", "kind")),
		Capacity: int(numberOf(entry, "capacity", "capacite")),
	}
}

func (v *validator) filieres(doc *models.ProjectDocument, fields map[string]json.RawMessage) {
	raw, ok := pick(fields, "filieres")
	if !ok {
		v.warnf("filieres missing; empty list used")
		return
	}
	var list []interface{}
	if err := json.Unmarshal(raw, &list); err != nil {
		v.errorf("filieres: expected an array")
		return
	}
	for _, item := range list {
		switch t := item.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				doc.Filieres = append(doc.Filieres, s)
			}
		case map[string]interface{}:
			if s := strings.TrimSpace(stringOf(lowerAny(t), "name", "nom")); s != "" {
				doc.Filieres = append(doc.Filieres, s)
			}
		}
	}
}

func (v *validator) optional(doc *models.ProjectDocument, fields map[string]json.RawMessage) {
	if raw, ok := pick(fields, "exams"); ok {
		if err := json.Unmarshal(raw, &doc.Exams); err != nil {
			v.errorf("exams: %v", err)
			doc.Exams = nil
		}
	}
	if raw, ok := pick(fields, "roomConfigs"); ok {
		if err := json.Unmarshal(raw, &doc.RoomConfigs); err != nil {
			v.errorf("examRoomConfigs: %v", err)
			doc.RoomConfigs = nil
		}
	}
	if raw, ok := pick(fields, "wishes"); ok {
		if err := json.Unmarshal(raw, &doc.Wishes); err != nil {
			v.errorf("wishes: %v", err)
			doc.Wishes = nil
		}
	}
	if raw, ok := pick(fields, "slots"); ok {
		var cfg models.SlotConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			v.errorf("creneaux: %v", err)
			return
		}
		grid, warnings := timegrid.FromConfig(&cfg)
		for _, w := range warnings {
			v.warnf("creneaux: %s", w)
		}
		normalized := grid.Config()
		doc.Slots = &normalized
	}
}

func pick(fields map[string]json.RawMessage, canonical string) (json.RawMessage, bool) {
	for _, alias := range aliases[canonical] {
		if raw, ok := fields[alias]; ok && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

func lowerKeys(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, dup := out[lk]; !dup {
			out[lk] = in[k]
		}
	}
	return out
}

func lowerAny(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, val := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = val
	}
	return out
}

func stringOf(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch t := m[k].(type) {
		case string:
			return strings.TrimSpace(t)
		case float64:
			return strings.TrimSpace(fmt.Sprintf("%v", t))
		}
	}
	return ""
}

func numberOf(m map[string]interface{}, keys ...string) float64 {
	for _, k := range keys {
		switch t := m[k].(type) {
		case float64:
			return t
		case string:
			var f float64
			if _, err := fmt.Sscanf(strings.Replace(strings.TrimSpace(t), ",", ".", 1), "%g", &f); err == nil {
				return f
			}
		}
	}
	return 0
}

func boolOf(m map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		switch t := m[k].(type) {
		case bool:
			if t {
				return true
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "1", "yes", "oui":
				return true
			}
		case float64:
			if t != 0 {
				return true
			}
		}
	}
	return false
}
