package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
)

const scopeContextKey = "scope"

// scope lists what the context user may read. Nil slices are unrestricted.
//   - admin: everything
//   - tutor: the classes they teach and the students of those classes
//   - parent: their children
//   - student: themselves
type scope struct {
	UserID     string
	Role       string
	StudentIDs []string
	ClassIDs   []string
}

func (sc scope) IsAdmin() bool { return sc.Role == user.FamilyAdmin }
func (sc scope) IsTutor() bool { return sc.Role == user.FamilyTutor }

func (sc scope) CanSeeStudent(id string) bool {
	return sc.StudentIDs == nil || core.StringInSlice(id, sc.StudentIDs)
}

func (sc scope) CanSeeClass(id string) bool {
	return sc.ClassIDs == nil || core.StringInSlice(id, sc.ClassIDs)
}

// Owns reports whether the context user may change a tutor-owned object.
func (sc scope) Owns(tutorID string) bool {
	return sc.IsAdmin() || tutorID == sc.UserID
}

// restrict narrows requested to allowed. The result is nil only when both are.
func restrict(requested, allowed []string) []string {
	if allowed == nil {
		return requested
	}
	if requested == nil {
		return allowed
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if core.StringInSlice(id, allowed) {
			out = append(out, id)
		}
	}
	return out
}

type access struct {
	students student.Service
	classes  class.Service
}

// scope is resolved once per request.
func (a *access) scope(ctx echo.Context) (scope, error) {
	if sc, ok := ctx.Get(scopeContextKey).(scope); ok {
		return sc, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return scope{}, errors.Wrap(err, "getting context claims")
	}
	sc := scope{UserID: claims.Subject, Role: claims.Role}
	rctx := ctx.Request().Context()

	switch claims.Role {
	case user.FamilyAdmin:
	case user.FamilyTutor:
		classes, err := a.classes.Query(rctx, &class.QueryFilter{TutorID: claims.Subject}, nil)
		if err != nil {
			return scope{}, errors.Wrap(err, "querying tutor classes")
		}
		sc.ClassIDs = make([]string, 0, len(classes))
		var studentIDs []string
		for _, cls := range classes {
			sc.ClassIDs = append(sc.ClassIDs, cls.ID)
			studentIDs = append(studentIDs, cls.StudentIDs...)
		}
		sc.StudentIDs = core.UniqueStrings(studentIDs)
	case user.FamilyParent:
		children, err := a.students.Query(rctx, &student.QueryFilter{ParentID: claims.Subject}, nil)
		if err != nil {
			return scope{}, errors.Wrap(err, "querying children")
		}
		sc.StudentIDs = make([]string, 0, len(children))
		for _, st := range children {
			sc.StudentIDs = append(sc.StudentIDs, st.ID)
		}
	case user.FamilyStudent:
		sc.StudentIDs = []string{}
		st, err := a.students.GetByUserID(rctx, claims.Subject)
		if err == nil {
			sc.StudentIDs = append(sc.StudentIDs, st.ID)
		} else if !core.IsNotFound(err) {
			return scope{}, errors.Wrap(err, "finding student profile")
		}
	default:
		return scope{}, errHttpForbidden
	}

	ctx.Set(scopeContextKey, sc)
	return sc, nil
}
