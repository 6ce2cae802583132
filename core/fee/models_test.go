package fee

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutora/backend/core"
)

func TestReminder_EffectiveStatus(t *testing.T) {
	today := core.NewDate(2024, time.March, 10)
	tests := []struct {
		name   string
		status string
		due    core.Date
		want   string
	}{
		{name: "pending, due later", status: StatusPending, due: today.AddDays(1), want: StatusPending},
		{name: "pending, due today", status: StatusPending, due: today, want: StatusPending},
		{name: "pending, due yesterday", status: StatusPending, due: today.AddDays(-1), want: StatusOverdue},
		{name: "paid late", status: StatusPaid, due: today.AddDays(-30), want: StatusPaid},
		{name: "cancelled", status: StatusCancelled, due: today.AddDays(-30), want: StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Reminder{Status: tt.status, DueDate: tt.due}
			assert.Equal(t, tt.want, r.EffectiveStatus(today))
		})
	}
}

func TestComputeTotals(t *testing.T) {
	today := core.NewDate(2024, time.March, 10)
	reminders := []Reminder{
		{Status: StatusPending, Amount: 10.10, DueDate: today},
		{Status: StatusPending, Amount: 20.20, DueDate: today.AddDays(5)},
		{Status: StatusPending, Amount: 5, DueDate: today.AddDays(-1)},
		{Status: StatusPaid, Amount: 7.5, DueDate: today.AddDays(-3)},
		{Status: StatusCancelled, Amount: 100, DueDate: today},
	}
	assert.Equal(t, Totals{Pending: 30.3, Overdue: 5, Paid: 7.5, Count: 5}, ComputeTotals(reminders, today))
	assert.Equal(t, Totals{}, ComputeTotals(nil, today))
}

func TestReminderFilter(t *testing.T) {
	today := core.NewDate(2024, time.March, 10)
	r := Reminder{StudentID: "s1", TutorID: "t1", Status: StatusPending, DueDate: today.AddDays(-2)}

	tests := []struct {
		name   string
		filter ReminderFilter
		want   bool
	}{
		{name: "empty", want: true},
		{name: "student", filter: ReminderFilter{StudentIDs: []string{"s2", "s1"}}, want: true},
		{name: "other student", filter: ReminderFilter{StudentIDs: []string{"s2"}}},
		{name: "no students", filter: ReminderFilter{StudentIDs: []string{}}},
		{name: "other tutor", filter: ReminderFilter{TutorID: "t2"}},
		{name: "overdue", filter: ReminderFilter{Status: StatusOverdue, Today: today}, want: true},
		{name: "pending", filter: ReminderFilter{Status: StatusPending, Today: today}},
		{name: "due range", filter: ReminderFilter{DueFrom: today.AddDays(-2), DueTo: today}, want: true},
		{name: "due after", filter: ReminderFilter{DueFrom: today.AddDays(-1)}},
		{name: "due before", filter: ReminderFilter{DueTo: today.AddDays(-3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(r))
		})
	}
	assert.True(t, ReminderFilter{StudentIDs: []string{}}.IsNone())
	assert.False(t, ReminderFilter{}.IsNone())
}

func TestNewFee_Validate(t *testing.T) {
	validate := validator.New()

	nf := NewFee{Name: "  Maths tuition ", Amount: 50, Currency: " eur"}
	require.NoError(t, nf.Validate(validate))
	assert.Equal(t, "Maths tuition", nf.Name)
	assert.Equal(t, "EUR", nf.Currency)
	assert.Equal(t, PeriodOnce, nf.Period)

	nf = NewFee{Name: "Maths", Amount: 50}
	require.NoError(t, nf.Validate(validate))
	assert.Equal(t, DefaultCurrency, nf.Currency)

	for _, bad := range []NewFee{
		{Amount: 50},
		{Name: "Maths"},
		{Name: "Maths", Amount: 50, Currency: "EURO"},
		{Name: "Maths", Amount: 50, Period: "weekly"},
	} {
		assert.Error(t, bad.Validate(validate), "%+v", bad)
	}
}

func TestNewReminder_Validate(t *testing.T) {
	validate := validator.New()
	studentID := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	feeID := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	t.Run("without fee", func(t *testing.T) {
		nr := NewReminder{StudentID: studentID}
		err := nr.Validate(validate)
		require.Error(t, err)
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, []core.FieldError{
			{Field: "due_date", Error: "this field is required"},
			{Field: "title", Error: "this field is required"},
			{Field: "amount", Error: "this field is required"},
		}, verr.Fields)
	})

	t.Run("with fee", func(t *testing.T) {
		nr := NewReminder{StudentID: studentID, FeeID: feeID, DueDate: core.NewDate(2024, time.March, 1), Currency: "cdf"}
		require.NoError(t, nr.Validate(validate))
		assert.Equal(t, "CDF", nr.Currency)
	})

	t.Run("bad student", func(t *testing.T) {
		nr := NewReminder{StudentID: "lol", Title: "Books", DueDate: core.NewDate(2024, time.March, 1)}
		_, ok := nr.Validate(validate).(validator.ValidationErrors)
		assert.True(t, ok)
	})
}

func TestUpdateReminder_Validate(t *testing.T) {
	validate := validator.New()
	blank := "  "
	zero := core.Date{}

	assert.Error(t, (&UpdateReminder{Title: &blank}).Validate(validate))
	assert.Error(t, (&UpdateReminder{DueDate: &zero}).Validate(validate))

	amount := 12.345
	ur := UpdateReminder{Amount: &amount}
	require.NoError(t, ur.Validate(validate))
	r := Reminder{Amount: 1}
	ur.apply(&r)
	assert.Equal(t, 12.35, r.Amount)
}
