package importer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

// overrideKeys are the accepted spellings of the override flag, coerced into one field.
var overrideKeys = []string{"allowtimeslotoverride", "allowtimeslotconflict", "force"}

// nonSessionKeys are top-level entries the deep scan never descends into.
var nonSessionKeys = map[string]bool{
	"header": true, "entete": true, "en-tete": true,
	"enseignants": true, "teachers": true,
	"matieregroupes": true, "subjects": true, "subjectconfig": true,
	"sallesinfo": true, "rooms": true, "roomcatalog": true,
	"filieres": true, "exams": true, "examens": true,
	"examroomconfigs": true, "roomconfigs": true,
	"souhaits": true, "wishes": true, "creneaux": true, "slots": true,
	"forfaits": true,
}

func (v *validator) sessions(doc *models.ProjectDocument, fields map[string]json.RawMessage) {
	containers := fields
	if raw, ok := pick(fields, "sessionData"); ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			v.errorf("sessionData: expected an object")
		} else {
			containers = lowerKeys(nested)
		}
	}

	foundAutumn := v.termContainer(doc, models.TermAutumn, containers)
	foundSpring := v.termContainer(doc, models.TermSpring, containers)
	if foundAutumn || foundSpring {
		return
	}

	var root map[string]interface{}
	rawRoot := make(map[string]json.RawMessage, len(fields))
	for k, val := range fields {
		if !nonSessionKeys[k] {
			rawRoot[k] = val
		}
	}
	encoded, _ := json.Marshal(rawRoot)
	if err := json.Unmarshal(encoded, &root); err != nil {
		return
	}

	var autumn, spring []map[string]interface{}
	scan(root, "", func(path string, records []map[string]interface{}) {
		if inSpring(path) {
			spring = append(spring, records...)
			return
		}
		autumn = append(autumn, records...)
	})
	if len(autumn)+len(spring) == 0 {
		v.warnf("no session data found")
		return
	}
	if len(autumn) > 0 {
		v.report.Warnings = append(v.report.Warnings, WarnPlacedInAutumn)
	}
	v.fill(doc.TermData(models.TermAutumn), models.TermAutumn, autumn, 0)
	v.fill(doc.TermData(models.TermSpring), models.TermSpring, spring, 0)
}

// termContainer reads one term in any accepted shape: an array of records, or an
// object carrying "sessions" or "seances" plus an optional "nextId".
func (v *validator) termContainer(doc *models.ProjectDocument, term models.Term, fields map[string]json.RawMessage) bool {
	raw, ok := pick(fields, string(term))
	if !ok {
		return false
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(raw, &records); err == nil {
		v.fill(doc.TermData(term), term, records, 0)
		return true
	}
	var container map[string]json.RawMessage
	if err := json.Unmarshal(raw, &container); err != nil {
		v.errorf("%s sessions: expected an array or an object", term)
		return true
	}
	container = lowerKeys(container)
	list, ok := container["sessions"]
	if !ok {
		list, ok = container["seances"]
	}
	if ok {
		if err := json.Unmarshal(list, &records); err != nil {
			v.errorf("%s sessions: expected an array of records", term)
		}
	}
	stored := 0
	if next, ok := container["nextid"]; ok {
		_ = json.Unmarshal(next, &stored)
	}
	v.fill(doc.TermData(term), term, records, stored)
	return true
}

// fill converts records, repairs ids and computes nextId.
func (v *validator) fill(target *models.TermSessions, term models.Term, records []map[string]interface{}, storedNext int) {
	sessions := make([]models.Session, 0, len(records))
	for i, rec := range records {
		s, problems := sessionOf(lowerAny(rec))
		for _, p := range problems {
			v.errorf("%s session %d: %s", term, i+1, p)
		}
		sessions = append(sessions, s)
	}

	if repaired := RepairIDs(sessions); repaired > 0 {
		v.warnf("%s: %d session ids missing or duplicated were reassigned", term, repaired)
	}
	target.Sessions = sessions
	target.NextID = models.NextIDFor(sessions)
	if storedNext > target.NextID {
		target.NextID = storedNext
	}
}

// RepairIDs reassigns missing or duplicate ids after the current maximum. It returns the count changed.
func RepairIDs(sessions []models.Session) int {
	seen := make(map[int]bool, len(sessions))
	max := 0
	var broken []int
	for i := range sessions {
		id := sessions[i].ID
		if id <= 0 || seen[id] {
			broken = append(broken, i)
			continue
		}
		seen[id] = true
		if id > max {
			max = id
		}
	}
	for _, i := range broken {
		max++
		sessions[i].ID = max
	}
	return len(broken)
}

func sessionOf(m map[string]interface{}) (models.Session, []string) {
	var problems []string
	s := models.Session{
		ID:           int(numberOf(m, "id")),
		StartMinutes: int(numberOf(m, "startminutes")),
		EndMinutes:   int(numberOf(m, "endminutes")),
		Subject:      stringOf(m, "subject", "matiere"),
		Filiere:      stringOf(m, "filiere"),
		Section:      stringOf(m, "section"),
		Subgroup:     stringOf(m, "subgroup", "groupe", "groupetdtp", "group"),
		Room:         stringOf(m, "room", "salle"),
		HTP:          numberOf(m, "htp", "htp_assigned", "hours"),
		Locked:       boolOf(m, "locked", "verrouille"),
	}

	rawDay := stringOf(m, "day", "jour")
	if day, ok := timegrid.ParseDay(rawDay); ok {
		s.Day = day
	} else {
		s.Day = models.Day(rawDay)
		problems = append(problems, fmt.Sprintf("unknown day %q", rawDay))
	}

	rawSlot := stringOf(m, "slot", "creneau", "heure", "start")
	if _, ok := timegrid.ParseLabel(rawSlot); ok {
		s.Slot = timegrid.CanonicalLabel(rawSlot)
	} else {
		s.Slot = rawSlot
		problems = append(problems, fmt.Sprintf("unreadable slot %q", rawSlot))
	}

	rawType := stringOf(m, "type")
	if t, ok := models.ParseSessionType(rawType); ok {
		s.Type = t
	} else {
		s.Type = models.SessionType(rawType)
		problems = append(problems, fmt.Sprintf("unknown type %q", rawType))
	}
	if s.Subject == "" {
		problems = append(problems, "missing subject")
	}

	s.Teachers = teachersOf(m)

	override := boolOf(m, overrideKeys...)
	if meta, ok := m["meta"].(map[string]interface{}); ok && boolOf(lowerAny(meta), "force") {
		override = true
	}
	s.AllowTimeSlotOverride = override

	return s, problems
}

func teachersOf(m map[string]interface{}) []string {
	for _, key := range []string{"teachers", "enseignants"} {
		if list, ok := m[key].([]interface{}); ok {
			names := make([]string, 0, len(list))
			for _, item := range list {
				if name, ok := item.(string); ok {
					names = append(names, name)
				}
			}
			return nilIfEmpty(models.CleanTeachers(names, 0))
		}
	}
	raw := stringOf(m, "teachers", "enseignants", "teacher", "enseignant")
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == ',' || r == ';' })
	return nilIfEmpty(models.CleanTeachers(parts, 0))
}

func nilIfEmpty(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	return list
}

// scan walks decoded JSON and reports every array that looks like session records.
func scan(node interface{}, path string, found func(string, []map[string]interface{})) {
	switch t := node.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			scan(t[k], path+"/"+strings.ToLower(k), found)
		}
	case []interface{}:
		var records []map[string]interface{}
		for _, item := range t {
			if rec, ok := item.(map[string]interface{}); ok && looksLikeSession(lowerAny(rec)) {
				records = append(records, rec)
			}
		}
		if len(records) > 0 {
			found(path, records)
			return
		}
		for i, item := range t {
			scan(item, fmt.Sprintf("%s/%d", path, i), found)
		}
	}
}

func looksLikeSession(rec map[string]interface{}) bool {
	_, day := rec["day"]
	_, jour := rec["jour"]
	_, subject := rec["subject"]
	_, matiere := rec["matiere"]
	return (day || jour) && (subject || matiere)
}

func inSpring(path string) bool {
	for _, alias := range aliases["spring"] {
		if strings.Contains(path, alias) {
			return true
		}
	}
	return false
}
