package attendance

import (
	"sort"
	"strings"

	"github.com/tutora/backend/core"
)

type (
	Summary struct {
		Total          int     `json:"total"`
		Present        int     `json:"present"`
		Absent         int     `json:"absent"`
		Late           int     `json:"late"`
		Excused        int     `json:"excused"`
		AttendanceRate float64 `json:"attendance_rate"` // percentage, 2 decimals
	}

	StudentSummary struct {
		StudentID   string `json:"student_id"`
		StudentName string `json:"student_name"`
		Summary
	}

	ClassSummary struct {
		ClassID   string `json:"class_id"`
		ClassName string `json:"class_name"`
		Summary
	}

	DaySummary struct {
		Date core.Date `json:"date"`
		Summary
	}

	Stats struct {
		Overall   Summary          `json:"overall"`
		ByStudent []StudentSummary `json:"by_student"`
		ByClass   []ClassSummary   `json:"by_class"`
		ByDay     []DaySummary     `json:"by_day"`
	}
)

func (s *Summary) add(st Status) {
	s.Total++
	switch st {
	case StatusPresent:
		s.Present++
	case StatusAbsent:
		s.Absent++
	case StatusLate:
		s.Late++
	case StatusExcused:
		s.Excused++
	}
}

func (s *Summary) computeRate() {
	if s.Total == 0 {
		s.AttendanceRate = 0
		return
	}
	s.AttendanceRate = core.Round2(float64(s.Present+s.Late) * 100 / float64(s.Total))
}

// SummarizeRecords counts the records by status.
func SummarizeRecords(recs []Record) Summary {
	var sum Summary
	for _, rec := range recs {
		sum.add(rec.Status)
	}
	sum.computeRate()
	return sum
}

// Summarize groups the entries by student, class and day.
// Students and classes are sorted by name then ID, days ascending.
func Summarize(entries []Entry) Stats {
	stats := Stats{
		ByStudent: []StudentSummary{},
		ByClass:   []ClassSummary{},
		ByDay:     []DaySummary{},
	}
	byStudent := make(map[string]*StudentSummary)
	byClass := make(map[string]*ClassSummary)
	byDay := make(map[string]*DaySummary)

	for _, e := range entries {
		stats.Overall.add(e.Status)

		ss, ok := byStudent[e.StudentID]
		if !ok {
			ss = &StudentSummary{StudentID: e.StudentID, StudentName: e.StudentName}
			byStudent[e.StudentID] = ss
		}
		ss.add(e.Status)

		cs, ok := byClass[e.ClassID]
		if !ok {
			cs = &ClassSummary{ClassID: e.ClassID, ClassName: e.ClassName}
			byClass[e.ClassID] = cs
		}
		cs.add(e.Status)

		day := e.Date.String()
		ds, ok := byDay[day]
		if !ok {
			ds = &DaySummary{Date: e.Date}
			byDay[day] = ds
		}
		ds.add(e.Status)
	}

	stats.Overall.computeRate()
	for _, ss := range byStudent {
		ss.computeRate()
		stats.ByStudent = append(stats.ByStudent, *ss)
	}
	for _, cs := range byClass {
		cs.computeRate()
		stats.ByClass = append(stats.ByClass, *cs)
	}
	for _, ds := range byDay {
		ds.computeRate()
		stats.ByDay = append(stats.ByDay, *ds)
	}

	sort.Slice(stats.ByStudent, func(i, j int) bool {
		return lessByName(stats.ByStudent[i].StudentName, stats.ByStudent[i].StudentID,
			stats.ByStudent[j].StudentName, stats.ByStudent[j].StudentID)
	})
	sort.Slice(stats.ByClass, func(i, j int) bool {
		return lessByName(stats.ByClass[i].ClassName, stats.ByClass[i].ClassID,
			stats.ByClass[j].ClassName, stats.ByClass[j].ClassID)
	})
	sort.Slice(stats.ByDay, func(i, j int) bool { return stats.ByDay[i].Date.Before(stats.ByDay[j].Date) })
	return stats
}

func lessByName(nameA, idA, nameB, idB string) bool {
	la, lb := strings.ToLower(nameA), strings.ToLower(nameB)
	if la != lb {
		return la < lb
	}
	return idA < idB
}
