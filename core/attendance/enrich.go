package attendance

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/student"
)

type (
	StudentLookup interface {
		Lookup(ctx context.Context, ids []string) (map[string]student.Student, error)
	}

	ClassLookup interface {
		GetMany(ctx context.Context, ids []string) (map[string]class.Class, error)
	}

	// Enricher decorates Records with student and class names, resolving each distinct ID once per call.
	Enricher struct {
		students StudentLookup
		classes  ClassLookup
	}
)

func NewEnricher(students StudentLookup, classes ClassLookup) *Enricher {
	return &Enricher{students: students, classes: classes}
}

// Enrich keeps the order of recs. Unknown students or classes leave the names empty.
func (en *Enricher) Enrich(ctx context.Context, recs []Record) ([]Entry, error) {
	entries := make([]Entry, 0, len(recs))
	if len(recs) == 0 {
		return entries, nil
	}

	studentIDs := make([]string, 0, len(recs))
	classIDs := make([]string, 0, len(recs))
	for _, rec := range recs {
		studentIDs = append(studentIDs, rec.StudentID)
		classIDs = append(classIDs, rec.ClassID)
	}

	students, err := en.students.Lookup(ctx, core.UniqueStrings(studentIDs))
	if err != nil {
		return nil, errors.Wrap(err, "looking up students")
	}
	classes, err := en.classes.GetMany(ctx, core.UniqueStrings(classIDs))
	if err != nil {
		return nil, errors.Wrap(err, "looking up classes")
	}

	for _, rec := range recs {
		e := Entry{Record: rec}
		if st, ok := students[rec.StudentID]; ok {
			e.StudentName = st.Name
			e.StudentGrade = st.Grade
		}
		if cls, ok := classes[rec.ClassID]; ok {
			e.ClassName = cls.Name
		}
		entries = append(entries, e)
	}
	return entries, nil
}
