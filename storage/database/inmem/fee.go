package inmemdb

import (
	"context"
	"time"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateFee(_ context.Context, f fee.Fee) (fee.Fee, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	f.ID = newID()
	repo.db.fees[f.ID] = f
	return f, nil
}

func (repo *feeRepository) QueryFees(_ context.Context, filter *fee.FeeFilter) ([]fee.Fee, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	fees := make([]fee.Fee, 0)
	for _, f := range repo.db.fees {
		if filter != nil {
			if filter.TutorID != "" && f.TutorID != filter.TutorID {
				continue
			}
			if filter.ClassID != "" && f.ClassID != filter.ClassID {
				continue
			}
		}
		fees = append(fees, f)
	}
	sortRows(len(fees), func(i, j int) { fees[i], fees[j] = fees[j], fees[i] },
		func(i int) string { return fees[i].ID },
		func(i int, field string) interface{} {
			if field == "name" {
				return fees[i].Name
			}
			return fees[i].CreatedAt
		}, nil, core.DBOrdering{Field: "name", Ascending: true})
	return fees, nil
}

func (repo *feeRepository) GetFee(_ context.Context, id string) (fee.Fee, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	f, ok := repo.db.fees[id]
	if !ok {
		return fee.Fee{}, fee.ErrNotFound
	}
	return f, nil
}

func (repo *feeRepository) UpdateFee(_ context.Context, f fee.Fee) (fee.Fee, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.fees[f.ID]; !ok {
		return fee.Fee{}, fee.ErrNotFound
	}
	repo.db.fees[f.ID] = f
	return f, nil
}

func (repo *feeRepository) DeleteFee(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.fees[id]; !ok {
		return fee.ErrNotFound
	}
	delete(repo.db.fees, id)
	for remID, r := range repo.db.reminders {
		if r.FeeID == id {
			r.FeeID = ""
			repo.db.reminders[remID] = r
		}
	}
	return nil
}

func (repo *feeRepository) CreateReminder(_ context.Context, r fee.Reminder) (fee.Reminder, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r.ID = newID()
	repo.db.reminders[r.ID] = r
	return r, nil
}

func (repo *feeRepository) QueryReminders(_ context.Context, filter *fee.ReminderFilter, ordering []core.DBOrdering) ([]fee.Reminder, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reminders := make([]fee.Reminder, 0)
	for _, r := range repo.db.reminders {
		if filter == nil || filter.Match(r) {
			reminders = append(reminders, r)
		}
	}

	sortRows(len(reminders), func(i, j int) { reminders[i], reminders[j] = reminders[j], reminders[i] },
		func(i int) string { return reminders[i].ID },
		func(i int, field string) interface{} {
			r := reminders[i]
			switch field {
			case "due_date":
				return r.DueDate
			case "amount":
				return r.Amount
			}
			return r.CreatedAt
		}, ordering, core.DBOrdering{Field: "due_date", Ascending: true}, core.DBOrdering{Field: "created_at", Ascending: true})
	return reminders, nil
}

func (repo *feeRepository) GetReminder(_ context.Context, id string) (fee.Reminder, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	r, ok := repo.db.reminders[id]
	if !ok {
		return fee.Reminder{}, fee.ErrReminderNotFound
	}
	return r, nil
}

func (repo *feeRepository) UpdateReminder(_ context.Context, r fee.Reminder) (fee.Reminder, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.reminders[r.ID]; !ok {
		return fee.Reminder{}, fee.ErrReminderNotFound
	}
	repo.db.reminders[r.ID] = r
	return r, nil
}

func (repo *feeRepository) MarkNotified(_ context.Context, id string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.reminders[id]
	if !ok || r.Status != fee.StatusPending {
		return fee.ErrReminderNotFound
	}
	at = at.UTC()
	r.LastNotifiedAt = &at
	r.UpdatedAt = at
	repo.db.reminders[id] = r
	return nil
}

func (repo *feeRepository) DeleteReminder(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.reminders[id]; !ok {
		return fee.ErrReminderNotFound
	}
	delete(repo.db.reminders, id)
	return nil
}
