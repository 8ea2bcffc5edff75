package optimizer

import (
	"math"
	"sort"

	"github.com/noah-isme/edt-scheduler/internal/conflict"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

// LunchBreak is the idle time around midday that never counts as a gap.
const LunchBreak = 90

// Stats summarises the quality of a timetable.
type Stats struct {
	Conflicts    int     `json:"conflicts"`
	Gaps         int     `json:"gaps"`
	LoadVariance float64 `json:"loadVariance"`
	Clustering   float64 `json:"clustering"`
	Morning      int     `json:"morning"`
	Afternoon    int     `json:"afternoon"`
	Score        float64 `json:"score"`
}

// ComputeStats measures sessions against the detector and options.
func ComputeStats(sessions []models.Session, detector *conflict.Detector, opts Options) Stats {
	grid := detector.Grid()
	stats := Stats{
		Conflicts:    detector.CountBlocking(sessions),
		Gaps:         countGaps(sessions, grid, opts.Break()),
		LoadVariance: loadVariance(sessions, grid, opts.Days),
		Clustering:   clustering(sessions),
	}
	for _, s := range sessions {
		start, _, ok := grid.Range(s)
		if !ok {
			continue
		}
		if timegrid.IsMorning(start) {
			stats.Morning++
		} else {
			stats.Afternoon++
		}
	}
	stats.Score = score(stats)
	return stats
}

func score(s Stats) float64 {
	value := 100.0
	value -= 10 * float64(s.Conflicts)
	value -= 2 * float64(s.Gaps)
	value -= math.Min(15, 2*s.LoadVariance)
	value -= 10 * (1 - s.Clustering)
	if total := s.Morning + s.Afternoon; total > 0 {
		value -= 5 * math.Abs(float64(s.Morning-s.Afternoon)) / float64(total)
	}
	return math.Max(0, math.Min(100, math.Round(value*100)/100))
}

// idle measures the break between two placements, excluding the lunch break.
func idle(prevEnd, nextStart int) int {
	gap := nextStart - prevEnd
	if prevEnd <= timegrid.Midday && nextStart >= timegrid.Midday {
		gap -= LunchBreak
	}
	return gap
}

type timeline struct {
	ids    []int
	starts []int
	ends   []int
}

// timelines groups placements by (day, student entity), ordered by start.
func timelines(sessions []models.Session, grid *timegrid.Grid) map[string]*timeline {
	type placed struct {
		id, start, end int
	}
	grouped := make(map[string][]placed)
	for _, s := range sessions {
		start, end, ok := grid.Range(s)
		if !ok || s.StudentEntity() == "" {
			continue
		}
		key := string(s.Day) + "|" + s.StudentEntity()
		grouped[key] = append(grouped[key], placed{id: s.ID, start: start, end: end})
	}
	out := make(map[string]*timeline, len(grouped))
	for key, list := range grouped {
		sort.SliceStable(list, func(i, j int) bool { return list[i].start < list[j].start })
		tl := &timeline{}
		for _, p := range list {
			tl.ids = append(tl.ids, p.id)
			tl.starts = append(tl.starts, p.start)
			tl.ends = append(tl.ends, p.end)
		}
		out[key] = tl
	}
	return out
}

func countGaps(sessions []models.Session, grid *timegrid.Grid, minBreak int) int {
	gaps := 0
	for _, tl := range timelines(sessions, grid) {
		for i := 1; i < len(tl.starts); i++ {
			if idle(tl.ends[i-1], tl.starts[i]) > minBreak {
				gaps++
			}
		}
	}
	return gaps
}

// loadVariance averages, over filières, the variance of daily teaching hours.
func loadVariance(sessions []models.Session, grid *timegrid.Grid, days []models.Day) float64 {
	if len(days) == 0 {
		return 0
	}
	loads := dailyLoads(sessions, grid)
	if len(loads) == 0 {
		return 0
	}
	total := 0.0
	for _, perDay := range loads {
		mean := 0.0
		for _, d := range days {
			mean += float64(perDay[d]) / 60
		}
		mean /= float64(len(days))
		variance := 0.0
		for _, d := range days {
			diff := float64(perDay[d])/60 - mean
			variance += diff * diff
		}
		total += variance / float64(len(days))
	}
	return math.Round(total/float64(len(loads))*1000) / 1000
}

// dailyLoads sums scheduled minutes per filière and day.
func dailyLoads(sessions []models.Session, grid *timegrid.Grid) map[string]map[models.Day]int {
	loads := make(map[string]map[models.Day]int)
	for _, s := range sessions {
		start, end, ok := grid.Range(s)
		if !ok {
			continue
		}
		perDay, ok := loads[s.Filiere]
		if !ok {
			perDay = make(map[models.Day]int)
			loads[s.Filiere] = perDay
		}
		perDay[s.Day] += end - start
	}
	return loads
}

// clustering is the mean share of each subject's sessions held on its busiest day.
func clustering(sessions []models.Session) float64 {
	perSubject := make(map[string]map[models.Day]int)
	totals := make(map[string]int)
	for _, s := range sessions {
		key := s.Filiere + "|" + models.NormalizeName(s.Subject)
		if perSubject[key] == nil {
			perSubject[key] = make(map[models.Day]int)
		}
		perSubject[key][s.Day]++
		totals[key]++
	}
	if len(perSubject) == 0 {
		return 1
	}
	sum := 0.0
	for key, perDay := range perSubject {
		best := 0
		for _, n := range perDay {
			if n > best {
				best = n
			}
		}
		sum += float64(best) / float64(totals[key])
	}
	return math.Round(sum/float64(len(perSubject))*1000) / 1000
}
