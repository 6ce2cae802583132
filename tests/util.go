// Package testutil holds the fixtures shared by the tests.
package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/fee"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
	"github.com/tutora/backend/services/logger"
)

// NewLogger returns a logger that discards everything; Rollbar is off in test mode.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(ioutil.Discard, "TEST : ", log.LstdFlags), conf)
}

// NewValidator returns a validator with all the app's custom rules and translations.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd), "setting password")
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err, "creating user")
	return usr
}

// CreateStudent saves st as is; Status defaults to active.
func CreateStudent(t *testing.T, repo student.Repository, st student.Student) student.Student {
	now := time.Now().UTC()
	if st.Status == "" {
		st.Status = student.StatusActive
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = st.CreatedAt
	st, err := repo.CreateStudent(context.Background(), st)
	require.NoError(t, err, "creating student")
	return st
}

// CreateClass saves cls and enrolls the students, in order.
func CreateClass(t *testing.T, repo class.Repository, cls class.Class, studentIDs ...string) class.Class {
	ctx := context.Background()
	now := time.Now().UTC()
	if cls.CreatedAt.IsZero() {
		cls.CreatedAt = now
	}
	cls.UpdatedAt = cls.CreatedAt

	cls, err := repo.CreateClass(ctx, cls)
	require.NoError(t, err, "creating class")
	for i, id := range studentIDs {
		require.NoError(t, repo.AssignStudents(ctx, cls.ID, []string{id}, now.Add(time.Duration(i)*time.Millisecond)))
	}
	cls, err = repo.GetClass(ctx, cls.ID)
	require.NoError(t, err, "reloading class")
	return cls
}

// Date is a shorthand for core.NewDate.
func Date(year int, month time.Month, day int) core.Date {
	return core.NewDate(year, month, day)
}
