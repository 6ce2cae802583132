package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/tutora/backend/apps/api/echo"
	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/dashboard"
	"github.com/tutora/backend/core/fee"
	"github.com/tutora/backend/core/recording"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
	"github.com/tutora/backend/services/email"
	"github.com/tutora/backend/services/metrics"
	"github.com/tutora/backend/storage/cache"
	"github.com/tutora/backend/storage/database/inmem"
	"github.com/tutora/backend/tests"
)

var (
	conf    *core.Config
	usrRepo user.Repository
	stRepo  student.Repository
	clsRepo class.Repository
	attRepo attendance.Repository
	feeRepo fee.Repository
	recRepo recording.Repository
	mailSvc *emailsvc.ServiceMock

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

// setup wires a fresh server on an empty in-memory database.
func setup(t *testing.T) Server {
	t.Helper()
	conf = core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := inmemdb.NewDB()
	usrRepo = inmemdb.NewUserRepository(db)
	stRepo = inmemdb.NewStudentRepository(db)
	clsRepo = inmemdb.NewClassRepository(db)
	attRepo = inmemdb.NewAttendanceRepository(db)
	feeRepo = inmemdb.NewFeeRepository(db)
	recRepo = inmemdb.NewRecordingRepository(db)

	// set up services
	mailSvc = emailsvc.NewServiceMock(conf, logger)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf, logger)
	stSvc := student.NewService(stRepo, cache.NewMemoryStudentCache(time.Minute, 0), logger)
	clsSvc := class.NewService(clsRepo, stSvc, logger)
	attSvc := attendance.NewService(attRepo, clsSvc, attendance.NewEnricher(stSvc, clsSvc), logger)
	feeSvc := fee.NewService(feeRepo, clsSvc, stSvc, logger)
	recSvc := recording.NewService(recRepo, logger)

	// set up server
	return NewServer(&Options{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		Metrics:       metrics.New(),
		UserSvc:       usrSvc,
		StudentSvc:    stSvc,
		ClassSvc:      clsSvc,
		AttendanceSvc: attSvc,
		FeeSvc:        feeSvc,
		RecordingSvc:  recSvc,
		DashboardSvc:  dashboard.NewService(usrSvc, stSvc, clsSvc, attSvc, feeSvc, recSvc),
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte   // compared as JSON when set
	wantIDs  []string // compared with the "id" of each listed object when set
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr, conf), conf)
	require.NoError(t, err, "GenerateToken()")
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marshallObj()")
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

// respIDs returns the "id" of every object of a JSON list response.
func respIDs(t *testing.T, rec *httptest.ResponseRecorder) []string {
	var objs []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &objs), "decoding list: %s", rec.Body.String())
	ids := make([]string, 0, len(objs))
	for _, o := range objs {
		ids = append(ids, o.ID)
	}
	return ids
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "decoding: %s", rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData != nil {
		ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
		if assert.NoError(t, err, "jsonBytesEqual() failed to compare") {
			assert.True(t, ok, "data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
		}
	}
	if tt.wantIDs != nil {
		assert.Equal(t, tt.wantIDs, respIDs(t, rec))
	}
}

// runTests serves each test case, defaulting to GET & 200 OK.
func runTests(t *testing.T, app Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// fixtures is the cast shared by most tests:
// one admin, two tutors each teaching a class, one parent with a child, and a student with an account.
type fixtures struct {
	admin, tutor1, tutor2, parent, studentUsr user.User

	alice, bob, carl student.Student // alice: parent's child, carl: studentUsr's profile
	maths, physics   class.Class     // maths: tutor1 (alice, bob), physics: tutor2 (carl)
}

func createFixtures(t *testing.T) fixtures {
	var fx fixtures
	fx.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	fx.tutor1 = testutil.CreateUser(t, usrRepo, "Tina Tutor", "tina", "tina@test.cd", "", []string{user.RoleTutor}, true)
	fx.tutor2 = testutil.CreateUser(t, usrRepo, "Tom Tutor", "tom", "tom@test.cd", "", []string{user.RoleTutor}, true)
	fx.parent = testutil.CreateUser(t, usrRepo, "Paula Parent", "paula", "paula@test.cd", "", []string{user.RoleParent}, true)
	fx.studentUsr = testutil.CreateUser(t, usrRepo, "Carl Student", "carl", "carl@test.cd", "", []string{user.RoleStudent}, true)

	fx.alice = testutil.CreateStudent(t, stRepo, student.Student{Name: "Alice", Grade: 5, ParentID: fx.parent.ID, Email: "alice@test.cd"})
	fx.bob = testutil.CreateStudent(t, stRepo, student.Student{Name: "Bob", Grade: 6})
	fx.carl = testutil.CreateStudent(t, stRepo, student.Student{Name: "Carl", Grade: 6, UserID: fx.studentUsr.ID})

	fx.maths = testutil.CreateClass(t, clsRepo, class.Class{Name: "Maths", Subject: "Maths", TutorID: fx.tutor1.ID}, fx.alice.ID, fx.bob.ID)
	fx.physics = testutil.CreateClass(t, clsRepo, class.Class{Name: "Physics", Subject: "Physics", TutorID: fx.tutor2.ID}, fx.carl.ID)

	// reload the students with their classes
	for _, st := range []*student.Student{&fx.alice, &fx.bob, &fx.carl} {
		reloaded, err := stRepo.GetStudent(context.Background(), st.ID)
		require.NoError(t, err)
		*st = reloaded
	}
	return fx
}
