package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tutora/backend/core"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   Status
		wantOK bool
	}{
		{in: "present", want: StatusPresent, wantOK: true},
		{in: " Late ", want: StatusLate, wantOK: true},
		{in: "EXCUSED", want: StatusExcused, wantOK: true},
		{in: "sick"},
		{in: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
	assert.True(t, StatusLate.Attended())
	assert.False(t, StatusExcused.Attended())
}

func TestQueryFilter_Match(t *testing.T) {
	day := core.NewDate(2024, time.March, 5)
	rec := Record{StudentID: "s1", ClassID: "c1", Date: day, Status: StatusLate}

	tests := []struct {
		name   string
		filter QueryFilter
		want   bool
	}{
		{name: "empty", want: true},
		{name: "students", filter: QueryFilter{StudentIDs: []string{"s0", "s1"}}, want: true},
		{name: "other students", filter: QueryFilter{StudentIDs: []string{"s0"}}},
		{name: "no students", filter: QueryFilter{StudentIDs: []string{}}},
		{name: "classes", filter: QueryFilter{ClassIDs: []string{"c1"}}, want: true},
		{name: "other classes", filter: QueryFilter{ClassIDs: []string{"c2"}}},
		{name: "status", filter: QueryFilter{Status: StatusLate}, want: true},
		{name: "other status", filter: QueryFilter{Status: StatusPresent}},
		{name: "range, inclusive", filter: QueryFilter{From: day, To: day}, want: true},
		{name: "from later", filter: QueryFilter{From: day.AddDays(1)}},
		{name: "to earlier", filter: QueryFilter{To: day.AddDays(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(rec))
		})
	}

	assert.True(t, QueryFilter{ClassIDs: []string{}}.IsNone())
	assert.False(t, QueryFilter{}.IsNone())
}

func TestSummarizeRecords(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Summary
	}{
		{name: "none", want: Summary{}},
		{name: "all present", statuses: []Status{StatusPresent, StatusPresent}, want: Summary{Total: 2, Present: 2, AttendanceRate: 100}},
		{
			name:     "late counts as attended, excused does not",
			statuses: []Status{StatusPresent, StatusLate, StatusAbsent, StatusExcused},
			want:     Summary{Total: 4, Present: 1, Late: 1, Absent: 1, Excused: 1, AttendanceRate: 50},
		},
		{
			name:     "rounded",
			statuses: []Status{StatusPresent, StatusAbsent, StatusAbsent},
			want:     Summary{Total: 3, Present: 1, Absent: 2, AttendanceRate: 33.33},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := make([]Record, 0, len(tt.statuses))
			for _, st := range tt.statuses {
				recs = append(recs, Record{Status: st})
			}
			assert.Equal(t, tt.want, SummarizeRecords(recs))
		})
	}
}

func TestSummarize(t *testing.T) {
	d1 := core.NewDate(2024, time.March, 4)
	d2 := core.NewDate(2024, time.March, 5)
	entry := func(st, stName, cls, clsName string, day core.Date, status Status) Entry {
		return Entry{
			Record:      Record{StudentID: st, ClassID: cls, Date: day, Status: status},
			StudentName: stName,
			ClassName:   clsName,
		}
	}
	entries := []Entry{
		entry("s2", "bob", "c1", "Maths", d2, StatusAbsent),
		entry("s1", "Alice", "c1", "Maths", d1, StatusPresent),
		entry("s1", "Alice", "c2", "Chemistry", d2, StatusLate),
		entry("s3", "Bob", "c1", "Maths", d1, StatusExcused),
	}

	stats := Summarize(entries)
	assert.Equal(t, Summary{Total: 4, Present: 1, Absent: 1, Late: 1, Excused: 1, AttendanceRate: 50}, stats.Overall)
	assert.Equal(t, []StudentSummary{
		{StudentID: "s1", StudentName: "Alice", Summary: Summary{Total: 2, Present: 1, Late: 1, AttendanceRate: 100}},
		{StudentID: "s2", StudentName: "bob", Summary: Summary{Total: 1, Absent: 1}},
		{StudentID: "s3", StudentName: "Bob", Summary: Summary{Total: 1, Excused: 1}},
	}, stats.ByStudent)
	assert.Equal(t, []ClassSummary{
		{ClassID: "c2", ClassName: "Chemistry", Summary: Summary{Total: 1, Late: 1, AttendanceRate: 100}},
		{ClassID: "c1", ClassName: "Maths", Summary: Summary{Total: 3, Present: 1, Absent: 1, Excused: 1, AttendanceRate: 33.33}},
	}, stats.ByClass)
	assert.Equal(t, []DaySummary{
		{Date: d1, Summary: Summary{Total: 2, Present: 1, Excused: 1, AttendanceRate: 50}},
		{Date: d2, Summary: Summary{Total: 2, Absent: 1, Late: 1, AttendanceRate: 50}},
	}, stats.ByDay)

	t.Run("empty", func(t *testing.T) {
		stats := Summarize(nil)
		assert.Equal(t, Summary{}, stats.Overall)
		assert.Equal(t, []StudentSummary{}, stats.ByStudent)
		assert.Equal(t, []ClassSummary{}, stats.ByClass)
		assert.Equal(t, []DaySummary{}, stats.ByDay)
	})
}
