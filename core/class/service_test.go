package class_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/storage/cache"
	"github.com/tutora/backend/storage/database/inmem"
	"github.com/tutora/backend/tests"
)

func setup(t *testing.T) (class.Service, student.Service, student.Repository) {
	logger := testutil.NewLogger(core.NewTestConfig())
	db := inmemdb.NewDB()
	stRepo := inmemdb.NewStudentRepository(db)
	stSvc := student.NewService(stRepo, cache.NewMemoryStudentCache(time.Minute, 0), logger)
	return class.NewService(inmemdb.NewClassRepository(db), stSvc, logger), stSvc, stRepo
}

func TestService_AssignStudents(t *testing.T) {
	svc, _, stRepo := setup(t)
	ctx := context.Background()
	alice := testutil.CreateStudent(t, stRepo, student.Student{Name: "Alice"})
	bob := testutil.CreateStudent(t, stRepo, student.Student{Name: "Bob"})
	carl := testutil.CreateStudent(t, stRepo, student.Student{Name: "Carl"})

	cls, err := svc.Create(ctx, class.NewClass{Name: "Maths", Capacity: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{}, cls.StudentIDs)

	cls, err = svc.AssignStudents(ctx, cls.ID, []string{alice.ID, alice.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, cls.StudentIDs)

	t.Run("already enrolled", func(t *testing.T) {
		got, err := svc.AssignStudents(ctx, cls.ID, []string{alice.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{alice.ID}, got.StudentIDs)
	})

	t.Run("unknown students", func(t *testing.T) {
		_, err := svc.AssignStudents(ctx, cls.ID, []string{bob.ID, "lol"})
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "%v", err)
		assert.Equal(t, []core.FieldError{{Field: "student_ids", Error: "unknown students: [lol]"}}, verr.Fields)
	})

	t.Run("capacity", func(t *testing.T) {
		_, err := svc.AssignStudents(ctx, cls.ID, []string{bob.ID, carl.ID})
		assert.Equal(t, class.ErrCapacityExceeded, err)
		assert.True(t, core.IsConflict(err))

		got, err := svc.AssignStudents(ctx, cls.ID, []string{alice.ID, bob.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{alice.ID, bob.ID}, got.StudentIDs)
	})

	t.Run("capacity cannot drop below enrolment", func(t *testing.T) {
		one := 1
		_, err := svc.Update(ctx, cls.ID, class.UpdateClass{Capacity: &one})
		require.Error(t, err)
		assert.Equal(t, "capacity: capacity cannot be lower than the 2 enrolled students", err.Error())

		unlimited := 0
		got, err := svc.Update(ctx, cls.ID, class.UpdateClass{Capacity: &unlimited})
		require.NoError(t, err)
		assert.Equal(t, 0, got.Capacity)
	})

	t.Run("students", func(t *testing.T) {
		students, err := svc.ListStudents(ctx, cls.ID, []core.DBOrdering{{Field: "name"}})
		require.NoError(t, err)
		require.Len(t, students, 2)
		assert.Equal(t, bob.ID, students[0].ID)
		assert.Equal(t, alice.ID, students[1].ID)

		st, err := stRepo.GetStudent(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{cls.ID}, st.ClassIDs)
	})

	t.Run("unassigned", func(t *testing.T) {
		got, err := svc.UnassignStudents(ctx, cls.ID, []string{alice.ID, carl.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{bob.ID}, got.StudentIDs)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := svc.AssignStudents(ctx, "lol", []string{alice.ID})
		assert.Equal(t, class.ErrNotFound, err)
		_, err = svc.ListStudents(ctx, "lol", nil)
		assert.Equal(t, class.ErrNotFound, err)
	})
}

func TestService_AssignStudents_concurrent(t *testing.T) {
	svc, _, stRepo := setup(t)
	ctx := context.Background()
	cls, err := svc.Create(ctx, class.NewClass{Name: "Maths", Capacity: 3})
	require.NoError(t, err)

	const n = 12
	ids := make([]string, n)
	for i := range ids {
		ids[i] = testutil.CreateStudent(t, stRepo, student.Student{Name: "Student"}).ID
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.AssignStudents(ctx, cls.ID, []string{id})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	var assigned, rejected int
	for _, err := range errs {
		switch err {
		case nil:
			assigned++
		case class.ErrCapacityExceeded:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, assigned)
	assert.Equal(t, n-3, rejected)

	got, err := svc.GetByID(ctx, cls.ID)
	require.NoError(t, err)
	assert.Len(t, got.StudentIDs, 3)
}

func TestService_membershipRefreshesLookups(t *testing.T) {
	svc, stSvc, stRepo := setup(t)
	ctx := context.Background()
	alice := testutil.CreateStudent(t, stRepo, student.Student{Name: "Alice"})
	cls, err := svc.Create(ctx, class.NewClass{Name: "Maths"})
	require.NoError(t, err)

	classIDs := func() []string {
		found, err := stSvc.Lookup(ctx, []string{alice.ID})
		require.NoError(t, err)
		return found[alice.ID].ClassIDs
	}
	assert.Empty(t, classIDs()) // cached from here on

	_, err = svc.AssignStudents(ctx, cls.ID, []string{alice.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{cls.ID}, classIDs())

	_, err = svc.UnassignStudents(ctx, cls.ID, []string{alice.ID})
	require.NoError(t, err)
	assert.Empty(t, classIDs())
}

func TestService_GetMany(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	maths, err := svc.Create(ctx, class.NewClass{Name: "Maths"})
	require.NoError(t, err)
	physics, err := svc.Create(ctx, class.NewClass{Name: "Physics"})
	require.NoError(t, err)

	found, err := svc.GetMany(ctx, []string{maths.ID, physics.ID, maths.ID, "", "lol"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Physics", found[physics.ID].Name)

	found, err = svc.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, found)

	cnt, err := svc.Delete(ctx, maths.ID, "lol")
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
}
