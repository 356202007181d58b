// Package client is a Go SDK for the UniCourses REST API. It carries the JWT
// obtained at login on every subsequent request and maps API error responses
// back to the domain sentinels.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/unicourses/core/course"
	"github.com/trezcool/unicourses/core/user"
)

const defaultTimeout = 30 * time.Second

// APIError is an error response the SDK could not map to a domain sentinel.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Client wraps the REST API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken seeds the client with a previously obtained JWT.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the JWT currently held, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return decodeError(res)
	}
	if out != nil && res.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}
	return nil
}

// decodeError maps an API error response to a domain sentinel when the
// message matches one; otherwise it surfaces an *APIError.
func decodeError(res *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(res.Body)
	_ = json.Unmarshal(data, &body)
	msg := body.Error
	if msg == "" {
		msg = string(data)
	}

	for _, sentinel := range []error{
		course.ErrNotFound,
		course.ErrModuleNotFound,
		course.ErrContentNotFound,
		course.ErrAlreadyEnrolled,
		course.ErrCourseFull,
		course.ErrCourseInactive,
		user.ErrNotFound,
	} {
		if msg == sentinel.Error() {
			return sentinel
		}
	}
	return &APIError{StatusCode: res.StatusCode, Message: msg}
}

// Session is the API's view of the authenticated caller.
type Session struct {
	UserID string    `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Role   user.Role `json:"role"`
}

// Login authenticates and stores the returned JWT on the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var res struct {
		Token string `json:"token"`
	}
	payload := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", payload, &res); err != nil {
		return err
	}
	c.setToken(res.Token)
	return nil
}

// Logout drops the stored JWT. Tokens are stateless so there is nothing to
// revoke server-side.
func (c *Client) Logout() {
	c.setToken("")
}

// Session returns the caller's session as seen by the API.
func (c *Client) Session(ctx context.Context) (Session, error) {
	var sess Session
	err := c.do(ctx, http.MethodGet, "/v1/auth/session", nil, &sess)
	return sess, err
}

// Register signs up a new student account.
func (c *Client) Register(ctx context.Context, nu user.NewUser) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodPost, "/v1/auth/register", nu, &usr)
	return usr, err
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodGet, "/v1/users/me", nil, &usr)
	return usr, err
}

// Courses lists the catalog with seat occupancy.
func (c *Client) Courses(ctx context.Context) ([]course.CourseWithOccupancy, error) {
	var courses []course.CourseWithOccupancy
	err := c.do(ctx, http.MethodGet, "/v1/courses", nil, &courses)
	return courses, err
}

// Course returns a single course.
func (c *Client) Course(ctx context.Context, id string) (course.Course, error) {
	var crs course.Course
	err := c.do(ctx, http.MethodGet, "/v1/courses/"+id, nil, &crs)
	return crs, err
}

// Occupancy returns the seat count of a course.
func (c *Client) Occupancy(ctx context.Context, id string) (course.Occupancy, error) {
	var occ course.Occupancy
	err := c.do(ctx, http.MethodGet, "/v1/courses/"+id+"/occupancy", nil, &occ)
	return occ, err
}

// Enroll joins the caller to a course. A full course surfaces
// course.ErrCourseFull; joining twice surfaces course.ErrAlreadyEnrolled.
func (c *Client) Enroll(ctx context.Context, courseID string) (course.Enrollment, error) {
	var enr course.Enrollment
	err := c.do(ctx, http.MethodPost, "/v1/courses/"+courseID+"/enroll", nil, &enr)
	return enr, err
}

// Unenroll frees the caller's seat in a course.
func (c *Client) Unenroll(ctx context.Context, courseID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/courses/"+courseID+"/enroll", nil, nil)
}

// MyCourses lists the courses the caller has joined.
func (c *Client) MyCourses(ctx context.Context) ([]course.Course, error) {
	var courses []course.Course
	err := c.do(ctx, http.MethodGet, "/v1/courses/mine", nil, &courses)
	return courses, err
}

// Modules lists a course's modules; hidden ones are filtered server-side for
// students.
func (c *Client) Modules(ctx context.Context, courseID string) ([]course.Module, error) {
	var modules []course.Module
	err := c.do(ctx, http.MethodGet, "/v1/courses/"+courseID+"/modules", nil, &modules)
	return modules, err
}

// Contents lists a module's contents.
func (c *Client) Contents(ctx context.Context, moduleID int) ([]course.Content, error) {
	var contents []course.Content
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/modules/%d/contents", moduleID), nil, &contents)
	return contents, err
}
