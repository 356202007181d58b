package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/unicourses/core/course"
	"github.com/trezcool/unicourses/core/user"
	testutil "github.com/trezcool/unicourses/tests"
)

func Test_courseApi_catalog(t *testing.T) {
	deps := setupServer(t)
	student := testutil.CreateUser(t, deps.usrRepo, "Jane Doe", "jane@ucourses.test", "", user.RoleStudent, true)
	admin := testutil.CreateUser(t, deps.usrRepo, "Root", "root@ucourses.test", "", user.RoleAdmin, true)

	testutil.CreateCourse(t, deps.crsRepo, "Algebra", "MATH101", "Ms. Jones", 30, true)
	testutil.CreateCourse(t, deps.crsRepo, "Archived", "OLD001", "Ms. Jones", 30, false)

	t.Run("anonymous gets 401", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/courses")
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("student only sees active courses", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses", getToken(t, student))
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Algebra")
		assert.NotContains(t, rec.Body.String(), "Archived")
	})

	t.Run("admin sees everything", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses", getToken(t, admin))
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Algebra")
		assert.Contains(t, rec.Body.String(), "Archived")
	})
}

func Test_courseApi_adminCRUD(t *testing.T) {
	deps := setupServer(t)
	teacher := testutil.CreateUser(t, deps.usrRepo, "John Smith", "john@ucourses.test", "", user.RoleTeacher, true)
	admin := testutil.CreateUser(t, deps.usrRepo, "Root", "root@ucourses.test", "", user.RoleAdmin, true)
	token := getToken(t, admin)

	t.Run("teacher cannot create", func(t *testing.T) {
		body := marchallObj(t, course.NewCourse{Name: "Biology"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, teacher), body)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	body := marchallObj(t, course.NewCourse{
		Name:            "Biology",
		Code:            "BIO210",
		Category:        "Science",
		AssignedTeacher: "John Smith",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/courses", token, body)
	deps.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	// default capacity applied
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"capacity":%d`, course.DefaultCapacity))

	courses, err := deps.courseSvc.Query(context.Background(), nil)
	assert.NoError(t, err)
	if !assert.Len(t, courses, 1) {
		return
	}
	crs := courses[0]

	t.Run("update", func(t *testing.T) {
		capacity := 10
		body := marchallObj(t, course.UpdateCourse{Capacity: &capacity})
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID, token, body)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"capacity":10`)
	})

	t.Run("teaching list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/teaching", getToken(t, teacher))
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Biology")
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID, token)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID, token)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_courseApi_enroll(t *testing.T) {
	deps := setupServer(t)
	student := testutil.CreateUser(t, deps.usrRepo, "Jane Doe", "jane@ucourses.test", "", user.RoleStudent, true)
	teacher := testutil.CreateUser(t, deps.usrRepo, "John Smith", "john@ucourses.test", "", user.RoleTeacher, true)
	token := getToken(t, student)

	crs := testutil.CreateCourse(t, deps.crsRepo, "Algebra", "MATH101", "Ms. Jones", 2, true)
	full := testutil.CreateCourse(t, deps.crsRepo, "Popular", "POP100", "Ms. Jones", 1, true)
	testutil.EnrollUser(t, deps.crsRepo, "someone-else", full.ID)

	tests := []httpTest{
		{
			name:     "anonymous gets 401",
			path:     "/v1/courses/" + crs.ID + "/enroll",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "teacher gets 403",
			path:     "/v1/courses/" + crs.ID + "/enroll",
			token:    getToken(t, teacher),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "student enrolls",
			path:     "/v1/courses/" + crs.ID + "/enroll",
			token:    token,
			wantCode: http.StatusCreated,
		},
		{
			name:     "duplicate gets 409",
			path:     "/v1/courses/" + crs.ID + "/enroll",
			token:    token,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "already enrolled in this course"}),
		},
		{
			name:     "full course gets 409",
			path:     "/v1/courses/" + full.ID + "/enroll",
			token:    token,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "course is full"}),
		},
		{
			name:     "unknown course gets 404",
			path:     "/v1/courses/nope/enroll",
			token:    token,
			wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token)
			deps.server.ServeHTTP(rec, req)
			if tt.wantData == nil {
				assert.Equal(t, tt.wantCode, rec.Code)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("my courses", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/mine", token)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Algebra")
	})

	t.Run("occupancy", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/occupancy", token)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"enrolled":1`)
	})

	t.Run("students list for staff", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/students", getToken(t, teacher))
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), student.Email)
	})

	t.Run("students list forbidden for students", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/students", token)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unenroll", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID+"/enroll", token)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/occupancy", token)
		deps.server.ServeHTTP(rec, req)
		assert.Contains(t, rec.Body.String(), `"enrolled":0`)
	})
}

func Test_courseApi_modules(t *testing.T) {
	deps := setupServer(t)
	student := testutil.CreateUser(t, deps.usrRepo, "Jane Doe", "jane@ucourses.test", "", user.RoleStudent, true)
	teacher := testutil.CreateUser(t, deps.usrRepo, "John Smith", "john@ucourses.test", "", user.RoleTeacher, true)
	crs := testutil.CreateCourse(t, deps.crsRepo, "Algebra", "MATH101", "John Smith", 30, true)

	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	t.Run("student cannot create modules", func(t *testing.T) {
		body := marchallObj(t, course.NewModule{Title: "Intro"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/modules", studentToken, body)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	body := marchallObj(t, course.NewModule{Title: "Intro"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/modules", teacherToken, body)
	deps.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	body = marchallObj(t, course.NewModule{Title: "Matrices"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/modules", teacherToken, body)
	deps.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	mods, err := deps.courseSvc.Modules(context.Background(), crs.ID)
	assert.NoError(t, err)
	if !assert.Len(t, mods, 2) {
		return
	}

	// hide the first module
	hidden := false
	body = marchallObj(t, course.UpdateModule{Visible: &hidden})
	req, rec = newAuthRequest(http.MethodPut, "/v1/modules/"+strconv.Itoa(mods[0].ID), teacherToken, body)
	deps.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("student only sees visible modules", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/modules", studentToken)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "Intro")
		assert.Contains(t, rec.Body.String(), "Matrices")
	})

	t.Run("teacher sees all modules", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/modules", teacherToken)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Intro")
		assert.Contains(t, rec.Body.String(), "Matrices")
	})

	t.Run("contents", func(t *testing.T) {
		modID := strconv.Itoa(mods[1].ID)

		body := marchallObj(t, course.NewContent{
			Kind:  course.KindVideo,
			Title: "Welcome",
			URL:   "https://example.com/welcome.mp4",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/modules/"+modID+"/contents", teacherToken, body)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)

		t.Run("bad kind", func(t *testing.T) {
			body := marchallObj(t, course.NewContent{Kind: "hologram", Title: "Nope"})
			req, rec := newAuthRequest(http.MethodPost, "/v1/modules/"+modID+"/contents", teacherToken, body)
			deps.server.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "kind")
		})

		req, rec = newAuthRequest(http.MethodGet, "/v1/modules/"+modID+"/contents", studentToken)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Welcome")
	})
}
