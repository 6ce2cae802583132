package fee

import (
	"context"
	"net/mail"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/user"
)

type (
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// Counter is satisfied by prometheus.Counter.
	Counter interface {
		Add(float64)
	}

	// Notifier periodically emails the payer of open reminders that are close to, or past, their due date.
	Notifier struct {
		repo     Repository
		students StudentGetter
		users    UserGetter
		mailSvc  core.EmailService
		conf     core.JobsConfig
		logger   core.Logger
		sent     Counter
	}

	reminderMailData struct {
		Name        string
		StudentName string
		Title       string
		Description string
		Amount      string
		Currency    string
		DueDate     string
		Overdue     bool
	}
)

func NewNotifier(
	repo Repository,
	students StudentGetter,
	users UserGetter,
	mailSvc core.EmailService,
	conf core.JobsConfig,
	logger core.Logger,
	sent Counter,
) *Notifier {
	return &Notifier{
		repo:     repo,
		students: students,
		users:    users,
		mailSvc:  mailSvc,
		conf:     conf,
		logger:   logger,
		sent:     sent,
	}
}

// Run notifies every conf.FeeReminderInterval until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	if n.conf.FeeReminderInterval <= 0 {
		n.logger.Info("fee reminder notifier disabled")
		return
	}
	ticker := time.NewTicker(n.conf.FeeReminderInterval)
	defer ticker.Stop()

	n.logger.Info("fee reminder notifier started", map[string]interface{}{"interval": n.conf.FeeReminderInterval.String()})
	for {
		if cnt, err := n.NotifyDue(ctx); err != nil {
			n.logger.Error("notifying fee reminders", err)
		} else if cnt > 0 {
			n.logger.Info("fee reminders notified", map[string]interface{}{"count": cnt})
		}

		select {
		case <-ctx.Done():
			n.logger.Info("fee reminder notifier stopped")
			return
		case <-ticker.C:
		}
	}
}

// NotifyDue sends one email per due reminder and returns how many were sent.
func (n *Notifier) NotifyDue(ctx context.Context) (int, error) {
	now := nowFunc().UTC()
	today := core.DateOf(now)
	leadDays := int(n.conf.FeeReminderLeadTime / (24 * time.Hour))

	reminders, err := n.repo.QueryReminders(ctx, &ReminderFilter{DueTo: today.AddDays(leadDays)}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying reminders")
	}

	var sent int
	for _, r := range reminders {
		if ctx.Err() != nil {
			break
		}
		if !r.IsOpen() {
			continue
		}
		if r.LastNotifiedAt != nil && now.Sub(*r.LastNotifiedAt) < n.conf.FeeReminderRepeatDelay {
			continue
		}

		msg, err := n.message(ctx, r, today)
		if err != nil {
			n.logger.Warn("building fee reminder email", err, map[string]interface{}{"reminder": r.ID})
			continue
		}
		if msg == nil {
			continue
		}

		// paid, cancelled or deleted since the query: nothing to send
		if err = n.repo.MarkNotified(ctx, r.ID, now); err != nil {
			if core.IsNotFound(err) {
				n.logger.Info("fee reminder closed before notifying", map[string]interface{}{"reminder": r.ID})
				continue
			}
			return sent, errors.Wrapf(err, "marking reminder %s notified", r.ID)
		}
		n.mailSvc.SendMessages(msg)
		sent++
	}
	if n.sent != nil && sent > 0 {
		n.sent.Add(float64(sent))
	}
	return sent, nil
}

// message addresses the parent's account, falling back to the student's own email.
// It returns nil when nobody can be reached.
func (n *Notifier) message(ctx context.Context, r Reminder, today core.Date) (*core.EmailMessage, error) {
	st, err := n.students.GetByID(ctx, r.StudentID)
	if err != nil {
		return nil, errors.Wrap(err, "finding student")
	}

	var to mail.Address
	if st.ParentID != "" {
		parent, err := n.users.GetByID(ctx, st.ParentID)
		if err != nil && !core.IsNotFound(err) {
			return nil, errors.Wrap(err, "finding parent")
		}
		if err == nil && parent.IsActive && parent.Email != "" {
			to = mail.Address{Name: parent.Name, Address: parent.Email}
		}
	}
	if to.Address == "" && st.Email != "" {
		to = mail.Address{Name: st.Name, Address: st.Email}
	}
	if to.Address == "" {
		return nil, nil
	}

	overdue := r.EffectiveStatus(today) == StatusOverdue
	subject := "Fee reminder: " + r.Title
	if overdue {
		subject = "Overdue fee: " + r.Title
	}
	return &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      subject,
		TemplateName: "fee_reminder",
		TemplateData: reminderMailData{
			Name:        to.Name,
			StudentName: st.Name,
			Title:       r.Title,
			Description: r.Description,
			Amount:      strconv.FormatFloat(r.Amount, 'f', 2, 64),
			Currency:    r.Currency,
			DueDate:     r.DueDate.String(),
			Overdue:     overdue,
		},
	}, nil
}
