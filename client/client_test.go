package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/unicourses/core/course"
	"github.com/trezcool/unicourses/core/session"
	"github.com/trezcool/unicourses/core/user"
)

const (
	testToken  = "tok-student"
	testUserID = "u-1"
)

// newTestServer emulates the slice of the API the SDK talks to.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	authed := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer "+testToken
	}
	writeErr := func(w http.ResponseWriter, code int, msg string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
	}
	writeJSON := func(w http.ResponseWriter, code int, data interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(data)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var payload struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.Email != "awe@test.cd" || payload.Password != "wasd" {
			writeErr(w, http.StatusBadRequest, "authentication failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": testToken})
	})
	mux.HandleFunc("/v1/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeErr(w, http.StatusUnauthorized, "user not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, Session{
			UserID: testUserID,
			Name:   "Awe Some",
			Email:  "awe@test.cd",
			Role:   user.RoleStudent,
		})
	})
	mux.HandleFunc("/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeErr(w, http.StatusUnauthorized, "user not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, []course.CourseWithOccupancy{
			{Course: course.Course{ID: "c-1", Name: "Algebra", Active: true}, Occupancy: course.Occupancy{Enrolled: 1, Capacity: 30}},
		})
	})
	mux.HandleFunc("/v1/courses/c-1/enroll", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeErr(w, http.StatusUnauthorized, "user not authenticated")
			return
		}
		switch r.Method {
		case http.MethodPost:
			writeJSON(w, http.StatusCreated, course.Enrollment{ID: "e-1", ProfileID: testUserID, CourseID: "c-1"})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/v1/courses/c-full/enroll", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusConflict, "course is full")
	})
	mux.HandleFunc("/v1/courses/c-dup/enroll", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusConflict, "already enrolled in this course")
	})
	mux.HandleFunc("/v1/courses/nope/enroll", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "course not found")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientLogin(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	t.Run("bad credentials", func(t *testing.T) {
		err := c.Login(ctx, "awe@test.cd", "nope")
		var apiErr *APIError
		if assert.True(t, errors.As(err, &apiErr)) {
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, "authentication failed", apiErr.Message)
		}
		assert.Empty(t, c.Token())
	})

	t.Run("token is stored and sent", func(t *testing.T) {
		assert.NoError(t, c.Login(ctx, "awe@test.cd", "wasd"))
		assert.Equal(t, testToken, c.Token())

		sess, err := c.Session(ctx)
		assert.NoError(t, err)
		assert.Equal(t, testUserID, sess.UserID)
		assert.Equal(t, user.RoleStudent, sess.Role)
	})
}

func TestClientEnroll(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, WithToken(testToken))
	ctx := context.Background()

	t.Run("enrolls", func(t *testing.T) {
		enr, err := c.Enroll(ctx, "c-1")
		assert.NoError(t, err)
		assert.Equal(t, "c-1", enr.CourseID)
		assert.Equal(t, testUserID, enr.ProfileID)
	})

	t.Run("full course", func(t *testing.T) {
		_, err := c.Enroll(ctx, "c-full")
		assert.Equal(t, course.ErrCourseFull, err)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := c.Enroll(ctx, "c-dup")
		assert.Equal(t, course.ErrAlreadyEnrolled, err)
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := c.Enroll(ctx, "nope")
		assert.Equal(t, course.ErrNotFound, err)
	})

	t.Run("unenroll", func(t *testing.T) {
		assert.NoError(t, c.Unenroll(ctx, "c-1"))
	})
}

func TestClientCourses(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, WithToken(testToken))

	courses, err := c.Courses(context.Background())
	assert.NoError(t, err)
	if assert.Len(t, courses, 1) {
		assert.Equal(t, "Algebra", courses[0].Name)
		assert.Equal(t, course.Occupancy{Enrolled: 1, Capacity: 30}, courses[0].Occupancy)
	}
}

func TestSessionBackend(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("init without a token goes anonymous", func(t *testing.T) {
		store := session.NewStore(NewSessionBackend(New(srv.URL)))
		assert.Equal(t, session.StatusResolving, store.State().Status)

		assert.NoError(t, store.Init(ctx))
		assert.Equal(t, session.StatusAnonymous, store.State().Status)
	})

	t.Run("init with a stale token goes anonymous", func(t *testing.T) {
		store := session.NewStore(NewSessionBackend(New(srv.URL, WithToken("stale"))))
		assert.NoError(t, store.Init(ctx))
		assert.Equal(t, session.StatusAnonymous, store.State().Status)
	})

	t.Run("authenticate resolves the role", func(t *testing.T) {
		store := session.NewStore(NewSessionBackend(New(srv.URL)))

		role, err := store.Authenticate(ctx, "awe@test.cd", "wasd")
		assert.NoError(t, err)
		assert.Equal(t, user.RoleStudent, role)

		st := store.State()
		assert.True(t, st.IsAuthenticated())
		assert.Equal(t, session.OutcomeAllow, session.Decide(st, user.RoleStudent))
		assert.Equal(t, session.OutcomeRedirectUnauthorized, session.Decide(st, user.RoleAdmin))
	})

	t.Run("logout resets to anonymous", func(t *testing.T) {
		c := New(srv.URL)
		store := session.NewStore(NewSessionBackend(c))

		_, err := store.Authenticate(ctx, "awe@test.cd", "wasd")
		assert.NoError(t, err)

		assert.NoError(t, store.Logout(ctx))
		assert.Equal(t, session.StatusAnonymous, store.State().Status)
		assert.Empty(t, c.Token())
	})
}
