package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/unicourses/core"
)

// Course is a catalog entry students can enroll into. AssignedTeacher holds
// the teacher profile's display name, which is also how teachers find their
// own courses.
type Course struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Code            string    `json:"code"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	AssignedTeacher string    `json:"assigned_teacher"`
	Capacity        int       `json:"capacity"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
}

// Occupancy reports seat usage for a course.
type Occupancy struct {
	Enrolled int `json:"enrolled"`
	Capacity int `json:"capacity"`
}

func (o Occupancy) SeatsLeft() int {
	if left := o.Capacity - o.Enrolled; left > 0 {
		return left
	}
	return 0
}

func (o Occupancy) Full() bool { return o.Enrolled >= o.Capacity }

// CourseWithOccupancy is a catalog row.
type CourseWithOccupancy struct {
	Course
	Occupancy Occupancy `json:"occupancy"`
}

const DefaultCapacity = 30

type NewCourse struct {
	Name            string `json:"name" validate:"required"`
	Code            string `json:"code"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	AssignedTeacher string `json:"assigned_teacher"`
	Capacity        int    `json:"capacity" validate:"omitempty,min=1"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = core.CleanString(nc.Code)
	nc.Category = core.CleanString(nc.Category)
	nc.AssignedTeacher = core.CleanString(nc.AssignedTeacher)
	if nc.Capacity == 0 {
		nc.Capacity = DefaultCapacity
	}
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Name            string `json:"name"`
	Code            string `json:"code"`
	Description     *string `json:"description"`
	Category        string `json:"category"`
	AssignedTeacher string `json:"assigned_teacher"`
	Capacity        *int   `json:"capacity" validate:"omitempty,min=1"`
	Active          *bool  `json:"active"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	uc.Code = core.CleanString(uc.Code)
	uc.Category = core.CleanString(uc.Category)
	uc.AssignedTeacher = core.CleanString(uc.AssignedTeacher)
	return validate.Struct(uc)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Category string `query:"category"`
	Active   *bool  `query:"active"`
	Teacher  string `query:"teacher"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Category == "" && qf.Active == nil && qf.Teacher == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category)
	qf.Teacher = core.CleanString(qf.Teacher)
}

// Enrollment links a student profile to a course they have joined.
// At most one row may exist per (profile, course) pair, and the number of
// rows per course never exceeds the course's capacity.
type Enrollment struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	CourseID  string    `json:"course_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Module is a content section within a course, ordered and optionally hidden
// from students.
type Module struct {
	ID          int    `json:"id"`
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	Visible     bool   `json:"visible"`
}

type NewModule struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

type UpdateModule struct {
	Title       string `json:"title"`
	Description *string `json:"description"`
	Visible     *bool  `json:"visible"`
}

// ContentKind is the closed set of content types a module may hold.
type ContentKind string

const (
	KindPDF   ContentKind = "pdf"
	KindVideo ContentKind = "video"
	KindLink  ContentKind = "link"
	KindText  ContentKind = "text"
)

func (k ContentKind) Valid() bool {
	switch k {
	case KindPDF, KindVideo, KindLink, KindText:
		return true
	}
	return false
}

// Content is a single item within a module: an uploaded file reference, a
// video/link URL or inline text.
type Content struct {
	ID          int         `json:"id"`
	ModuleID    int         `json:"module_id"`
	Kind        ContentKind `json:"kind"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	URL         string      `json:"url"`
	FileName    string      `json:"file_name"`
	FileSize    int64       `json:"file_size"`
	Order       int         `json:"order"`
	Visible     bool        `json:"visible"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
}

type NewContent struct {
	Kind        ContentKind `json:"kind" validate:"required,contentkind"`
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description"`
	URL         string      `json:"url" validate:"omitempty,url"`
	FileName    string      `json:"file_name"`
	FileSize    int64       `json:"file_size" validate:"omitempty,min=0"`
}

func (nc *NewContent) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	return validate.Struct(nc)
}

type UpdateContent struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url" validate:"omitempty,url"`
	Visible     *bool   `json:"visible"`
}
