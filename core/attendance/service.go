package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/class"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("attendance record not found")
)

type (
	Repository interface {
		// UpsertRecords inserts the records, or updates status, remarks and marker of the existing record
		// for the same student, class & date. All records are saved in one transaction.
		UpsertRecords(ctx context.Context, recs ...Record) ([]Record, error)
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error)
		GetRecord(ctx context.Context, id string) (Record, error)
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
		DeleteRecord(ctx context.Context, id string) error
	}

	ClassGetter interface {
		GetByID(ctx context.Context, id string) (class.Class, error)
	}

	Service interface {
		Mark(ctx context.Context, nr NewRecord, markedBy string) (Record, error)
		MarkBulk(ctx context.Context, bm BulkMark, markedBy string) ([]Record, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error)
		GetByID(ctx context.Context, id string) (Record, error)
		Update(ctx context.Context, id string, ur UpdateRecord, markedBy string) (Record, error)
		Delete(ctx context.Context, id string) error
		Stats(ctx context.Context, filter *QueryFilter) (Stats, error)
		Summary(ctx context.Context, filter *QueryFilter) (Summary, error)
		Export(ctx context.Context, filter *QueryFilter, format string) (Export, error)
	}

	service struct {
		repo     Repository
		classes  ClassGetter
		enricher *Enricher
		logger   core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, classes ClassGetter, enricher *Enricher, logger core.Logger) Service {
	return &service{
		repo:     repo,
		classes:  classes,
		enricher: enricher,
		logger:   logger,
	}
}

func notAssigned(studentIDs ...string) error {
	return core.NewValidationError(nil, core.FieldError{
		Field: "student_id",
		Error: fmt.Sprintf("students not assigned to the class: %v", studentIDs),
	})
}

func (svc *service) getClass(ctx context.Context, id string) (class.Class, error) {
	cls, err := svc.classes.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return class.Class{}, core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return class.Class{}, errors.Wrap(err, "finding class")
	}
	return cls, nil
}

func (svc *service) Mark(ctx context.Context, nr NewRecord, markedBy string) (Record, error) {
	cls, err := svc.getClass(ctx, nr.ClassID)
	if err != nil {
		return Record{}, err
	}
	if !cls.HasStudent(nr.StudentID) {
		return Record{}, notAssigned(nr.StudentID)
	}
	status, _ := ParseStatus(nr.Status)

	now := time.Now().UTC()
	recs, err := svc.repo.UpsertRecords(ctx, Record{
		StudentID: nr.StudentID,
		ClassID:   nr.ClassID,
		Date:      nr.Date,
		Status:    status,
		Remarks:   nr.Remarks,
		MarkedBy:  markedBy,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Record{}, errors.Wrap(err, "saving record")
	}
	return recs[0], nil
}

func (svc *service) MarkBulk(ctx context.Context, bm BulkMark, markedBy string) ([]Record, error) {
	cls, err := svc.getClass(ctx, bm.ClassID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	recs := make([]Record, 0, len(bm.Marks))
	seen := make(map[string]int, len(bm.Marks))
	var unassigned []string
	for _, m := range bm.Marks {
		if !cls.HasStudent(m.StudentID) {
			unassigned = append(unassigned, m.StudentID)
			continue
		}
		status, _ := ParseStatus(m.Status)
		rec := Record{
			StudentID: m.StudentID,
			ClassID:   bm.ClassID,
			Date:      bm.Date,
			Status:    status,
			Remarks:   m.Remarks,
			MarkedBy:  markedBy,
			CreatedAt: now,
			UpdatedAt: now,
		}
		// the last mark of a student wins
		if idx, ok := seen[m.StudentID]; ok {
			recs[idx] = rec
			continue
		}
		seen[m.StudentID] = len(recs)
		recs = append(recs, rec)
	}
	if len(unassigned) > 0 {
		return nil, notAssigned(unassigned...)
	}

	saved, err := svc.repo.UpsertRecords(ctx, recs...)
	if err != nil {
		return nil, errors.Wrap(err, "saving records")
	}
	return saved, nil
}

func (svc *service) query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	if filter != nil && filter.IsNone() {
		return []Record{}, nil
	}
	recs, err := svc.repo.QueryRecords(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	return recs, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error) {
	recs, err := svc.query(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	return svc.enricher.Enrich(ctx, recs)
}

func (svc *service) GetByID(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetRecord(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ur UpdateRecord, markedBy string) (Record, error) {
	rec, err := svc.repo.GetRecord(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if ur.Status != nil {
		rec.Status, _ = ParseStatus(*ur.Status)
	}
	if ur.Remarks != nil {
		rec.Remarks = *ur.Remarks
	}
	rec.MarkedBy = markedBy
	rec.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRecord(ctx, rec)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteRecord(ctx, id)
}

func (svc *service) Stats(ctx context.Context, filter *QueryFilter) (Stats, error) {
	entries, err := svc.Query(ctx, filter, nil)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(entries), nil
}

// Summary counts the matching records without enriching them.
func (svc *service) Summary(ctx context.Context, filter *QueryFilter) (Summary, error) {
	recs, err := svc.query(ctx, filter, nil)
	if err != nil {
		return Summary{}, err
	}
	return SummarizeRecords(recs), nil
}

func (svc *service) Export(ctx context.Context, filter *QueryFilter, format string) (Export, error) {
	entries, err := svc.Query(ctx, filter, []core.DBOrdering{{Field: "date", Ascending: true}, {Field: "created_at", Ascending: true}})
	if err != nil {
		return Export{}, err
	}
	exp, err := Render(entries, format)
	if err != nil {
		if err == ErrUnknownFormat {
			return Export{}, core.NewValidationError(nil, core.FieldError{Field: "format", Error: err.Error()})
		}
		return Export{}, errors.Wrap(err, "rendering export")
	}
	return exp, nil
}
