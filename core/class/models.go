package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tutora/backend/core"
)

type Class struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Subject    string    `json:"subject"`
	TutorID    string    `json:"tutor_id"`
	Schedule   string    `json:"schedule"`
	Room       string    `json:"room"`
	Capacity   int       `json:"capacity"` // 0: unlimited
	StudentIDs []string  `json:"student_ids"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (c Class) HasStudent(studentID string) bool {
	return core.StringInSlice(studentID, c.StudentIDs)
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name     string `json:"name" validate:"required,max=255"`
	Subject  string `json:"subject" validate:"omitempty,max=255"`
	TutorID  string `json:"tutor_id" validate:"omitempty,uuid"`
	Schedule string `json:"schedule" validate:"omitempty,max=255"`
	Room     string `json:"room" validate:"omitempty,max=64"`
	Capacity int    `json:"capacity" validate:"min=0"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Schedule = core.CleanString(nc.Schedule)
	nc.Room = core.CleanString(nc.Room)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify an existing Class.
// Nil fields are left untouched.
type UpdateClass struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Subject  *string `json:"subject" validate:"omitempty,max=255"`
	TutorID  *string `json:"tutor_id" validate:"omitempty,uuid"`
	Schedule *string `json:"schedule" validate:"omitempty,max=255"`
	Room     *string `json:"room" validate:"omitempty,max=64"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=0"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	for _, s := range []*string{uc.Name, uc.Subject, uc.Schedule, uc.Room} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if uc.Name != nil && *uc.Name == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	return validate.Struct(uc)
}

func (uc UpdateClass) apply(cls *Class) {
	if uc.Name != nil {
		cls.Name = *uc.Name
	}
	if uc.Subject != nil {
		cls.Subject = *uc.Subject
	}
	if uc.TutorID != nil {
		cls.TutorID = *uc.TutorID
	}
	if uc.Schedule != nil {
		cls.Schedule = *uc.Schedule
	}
	if uc.Room != nil {
		cls.Room = *uc.Room
	}
	if uc.Capacity != nil {
		cls.Capacity = *uc.Capacity
	}
}

// StudentIDs is the payload of class assignment requests.
type StudentIDs struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,uuid"`
}

// QueryFilter is applied with AND semantics; zero fields are ignored.
// A non-nil empty IDs matches no class.
type QueryFilter struct {
	Search    string
	Subject   string
	TutorID   string
	StudentID string
	IDs       []string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Subject = core.CleanString(qf.Subject)
}

// OrderingFields lists the fields Classes can be ordered by.
var OrderingFields = []string{"name", "subject", "created_at"}
