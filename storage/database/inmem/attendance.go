package inmemdb

import (
	"context"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

// findRecord returns the ID of the record for the same student, class & date. The caller holds the lock.
func (repo *attendanceRepository) findRecord(rec attendance.Record) (string, bool) {
	for id, r := range repo.db.attendance {
		if r.StudentID == rec.StudentID && r.ClassID == rec.ClassID && r.Date.Equal(rec.Date) {
			return id, true
		}
	}
	return "", false
}

func (repo *attendanceRepository) UpsertRecords(_ context.Context, recs ...attendance.Record) ([]attendance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	saved := make([]attendance.Record, 0, len(recs))
	for _, rec := range recs {
		if id, ok := repo.findRecord(rec); ok {
			existing := repo.db.attendance[id]
			existing.Status = rec.Status
			existing.Remarks = rec.Remarks
			existing.MarkedBy = rec.MarkedBy
			existing.UpdatedAt = rec.UpdatedAt
			repo.db.attendance[id] = existing
			saved = append(saved, existing)
			continue
		}
		rec.ID = newID()
		repo.db.attendance[rec.ID] = rec
		saved = append(saved, rec)
	}
	return saved, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter *attendance.QueryFilter, ordering []core.DBOrdering) ([]attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	recs := make([]attendance.Record, 0)
	for _, rec := range repo.db.attendance {
		if filter == nil || filter.Match(rec) {
			recs = append(recs, rec)
		}
	}

	sortRows(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] },
		func(i int) string { return recs[i].ID },
		func(i int, field string) interface{} {
			rec := recs[i]
			switch field {
			case "date":
				return rec.Date
			case "status":
				return string(rec.Status)
			}
			return rec.CreatedAt
		}, ordering, core.DBOrdering{Field: "date"}, core.DBOrdering{Field: "created_at"})
	return recs, nil
}

func (repo *attendanceRepository) GetRecord(_ context.Context, id string) (attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rec, ok := repo.db.attendance[id]
	if !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return rec, nil
}

func (repo *attendanceRepository) UpdateRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.attendance[rec.ID]; !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	repo.db.attendance[rec.ID] = rec
	return rec, nil
}

func (repo *attendanceRepository) DeleteRecord(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.attendance[id]; !ok {
		return attendance.ErrNotFound
	}
	delete(repo.db.attendance, id)
	return nil
}
