package inmemdb

import (
	"sync"

	"github.com/trezcool/unicourses/core/course"
	"github.com/trezcool/unicourses/core/user"
)

// DB is a mutex-guarded in-memory store backing the repositories in this
// package. It is meant for tests and local hacking; the sqlx package is the
// real deal.
type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User
	courses     map[string]*course.Course
	enrollments map[string]*course.Enrollment // keyed by profileID + "/" + courseID
	modules     map[int]*course.Module
	contents    map[int]*course.Content

	modulePK  int
	contentPK int
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		courses:     make(map[string]*course.Course),
		enrollments: make(map[string]*course.Enrollment),
		modules:     make(map[int]*course.Module),
		contents:    make(map[int]*course.Content),
	}
}

func enrollmentKey(profileID, courseID string) string {
	return profileID + "/" + courseID
}
