// Package inmemdb implements the repositories in memory. It backs the tests and DB_ENGINE=inmem.
package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/fee"
	"github.com/tutora/backend/core/recording"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
)

// DB holds every table behind one lock so repositories can join across them.
type DB struct {
	mu sync.RWMutex

	users       map[string]user.User
	students    map[string]student.Student
	classes     map[string]class.Class
	enrollments map[string]map[string]time.Time // {classID: {studentID: assignedAt}}
	attendance  map[string]attendance.Record
	fees        map[string]fee.Fee
	reminders   map[string]fee.Reminder
	lessons     map[string]recording.Lesson
	bundles     map[string]recording.Bundle
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]user.User),
		students:    make(map[string]student.Student),
		classes:     make(map[string]class.Class),
		enrollments: make(map[string]map[string]time.Time),
		attendance:  make(map[string]attendance.Record),
		fees:        make(map[string]fee.Fee),
		reminders:   make(map[string]fee.Reminder),
		lessons:     make(map[string]recording.Lesson),
		bundles:     make(map[string]recording.Bundle),
	}
}

// Reset empties all the tables.
func (db *DB) Reset() {
	fresh := NewDB()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = fresh.users
	db.students = fresh.students
	db.classes = fresh.classes
	db.enrollments = fresh.enrollments
	db.attendance = fresh.attendance
	db.fees = fresh.fees
	db.reminders = fresh.reminders
	db.lessons = fresh.lessons
	db.bundles = fresh.bundles
}

func newID() string { return uuid.New().String() }

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// fieldGetter returns the comparable value of a row field, as used by ORDER BY.
type fieldGetter func(i int, field string) interface{}

// sortRows sorts n rows by the orderings, falling back to def, then by ID so that equal keys come
// back in a stable order. Unknown fields are ignored.
func sortRows(n int, swap func(i, j int), id func(i int) string, get fieldGetter, ordering []core.DBOrdering, def ...core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = def
	}
	sort.Stable(rowSorter{n: n, swap: swap, less: func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(get(i, ord.Field), get(j, ord.Field))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return id(i) < id(j)
	}})
}

type rowSorter struct {
	n    int
	swap func(i, j int)
	less func(i, j int) bool
}

func (rs rowSorter) Len() int           { return rs.n }
func (rs rowSorter) Swap(i, j int)      { rs.swap(i, j) }
func (rs rowSorter) Less(i, j int) bool { return rs.less(i, j) }

func compare(a, b interface{}) int {
	switch va := a.(type) {
	case string:
		vb, _ := b.(string)
		return strings.Compare(strings.ToLower(va), strings.ToLower(vb))
	case int:
		vb, _ := b.(int)
		return compareInt(va, vb)
	case float64:
		vb, _ := b.(float64)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	case bool:
		vb, _ := b.(bool)
		if va == vb {
			return 0
		}
		if !va {
			return -1
		}
		return 1
	case time.Time:
		vb, _ := b.(time.Time)
		switch {
		case va.Before(vb):
			return -1
		case va.After(vb):
			return 1
		}
		return 0
	case core.Date:
		vb, _ := b.(core.Date)
		switch {
		case va.Before(vb):
			return -1
		case va.After(vb):
			return 1
		}
		return 0
	}
	return 0
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
