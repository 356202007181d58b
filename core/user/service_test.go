package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/unicourses/core"
	"github.com/trezcool/unicourses/core/user"
	inmemdb "github.com/trezcool/unicourses/storage/database/inmem"
	testutil "github.com/trezcool/unicourses/tests"
)

type mailServiceMock struct {
	sent []*core.EmailMessage
}

func (m *mailServiceMock) SendMessages(messages ...*core.EmailMessage) {
	m.sent = append(m.sent, messages...)
}

func newUserService(t *testing.T) (*user.Service, user.Repository, *mailServiceMock) {
	t.Helper()

	repo := inmemdb.NewUserRepository(inmemdb.NewDB())
	mailSvc := &mailServiceMock{}
	conf := &core.Config{
		AppName:                   "UniCourses",
		SecretKey:                 []byte("s3cr3t"),
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	return user.NewService(nil, repo, mailSvc, conf), repo, mailSvc
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc, _, mailSvc := newUserService(t)

	usr, err := svc.Create(ctx, user.NewUser{
		Name:     "Jane Doe",
		Email:    "jane@ucourses.test",
		Password: "LePassword",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, user.RoleStudent, usr.Role) // self-signup defaults to student
	if assert.NotNil(t, usr.IsActive) {
		assert.True(t, *usr.IsActive)
	}
	assert.NoError(t, usr.CheckPassword("LePassword"))
	assert.Error(t, usr.CheckPassword("nope"))

	if assert.Len(t, mailSvc.sent, 1) {
		assert.Equal(t, "welcome", mailSvc.sent[0].TemplateName)
		assert.Equal(t, "jane@ucourses.test", mailSvc.sent[0].To[0].Address)
	}

	admin, err := svc.Create(ctx, user.NewUser{
		Name:     "Root",
		Email:    "root@ucourses.test",
		Password: "LePassword",
		Role:     user.RoleAdmin,
	})
	assert.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
}

func TestServiceCheckUniqueness(t *testing.T) {
	svc, repo, _ := newUserService(t)
	usr := testutil.CreateUser(t, repo, "Jane Doe", "jane@ucourses.test", "", user.RoleStudent, true)

	err := svc.CheckUniqueness("jane@ucourses.test")
	var vErr *core.ValidationError
	if assert.ErrorAs(t, err, &vErr) {
		assert.Equal(t, "email", vErr.Fields[0].Field)
	}

	// the owner is excluded when updating their own account
	assert.NoError(t, svc.CheckUniqueness("jane@ucourses.test", usr))
	assert.NoError(t, svc.CheckUniqueness("other@ucourses.test"))
}

func TestServiceQuery(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newUserService(t)

	jane := testutil.CreateUser(t, repo, "Jane Doe", "jane@ucourses.test", "", user.RoleStudent, true)
	testutil.CreateUser(t, repo, "John Smith", "john@ucourses.test", "", user.RoleTeacher, true)
	testutil.CreateUser(t, repo, "Inactive Ida", "ida@ucourses.test", "", user.RoleStudent, false)

	all, err := svc.Query(ctx, nil)
	assert.NoError(t, err)
	assert.Len(t, all, 3)

	students, err := svc.Query(ctx, &user.QueryFilter{Role: user.RoleStudent})
	assert.NoError(t, err)
	assert.Len(t, students, 2)

	active := true
	got, err := svc.Query(ctx, &user.QueryFilter{Search: "jane", IsActive: &active})
	assert.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, jane.ID, got[0].ID)
	}
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newUserService(t)
	usr := testutil.CreateUser(t, repo, "Jane Doe", "jane@ucourses.test", "", user.RoleStudent, true)

	bio := "First-year maths student"
	got, err := svc.Update(ctx, usr.ID, user.UpdateUser{
		Name:      "Jane D.",
		Email:     usr.Email,
		Bio:       &bio,
		Interests: []string{"algebra", "chess"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "Jane D.", got.Name)
	assert.Equal(t, bio, got.Bio)
	assert.Equal(t, []string{"algebra", "chess"}, got.Interests)
	assert.Equal(t, user.RoleStudent, got.Role) // unchanged

	_, err = svc.Update(ctx, "nope", user.UpdateUser{})
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestServicePasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, repo, mailSvc := newUserService(t)
	usr := testutil.CreateUser(t, repo, "Jane Doe", "jane@ucourses.test", "0ldPassword", user.RoleStudent, true)

	assert.ErrorIs(t, svc.RequestPasswordReset(ctx, "unknown@ucourses.test"), user.ErrNotFound)

	assert.NoError(t, svc.RequestPasswordReset(ctx, "jane@ucourses.test"))
	if !assert.Len(t, mailSvc.sent, 1) {
		return
	}
	assert.Equal(t, "password_reset", mailSvc.sent[0].TemplateName)

	data := mailSvc.sent[0].TemplateData.(struct {
		Name  string
		UID   string
		Token string
	})
	assert.Equal(t, user.EncodeUID(usr), data.UID)
	assert.NotEmpty(t, data.Token)

	t.Run("garbage uid", func(t *testing.T) {
		err := svc.ResetPassword(ctx, user.ResetUserPassword{
			UID:      "???",
			Token:    data.Token,
			Password: "NewPassword",
		})
		var vErr *core.ValidationError
		if assert.ErrorAs(t, err, &vErr) {
			assert.Equal(t, "uid", vErr.Fields[0].Field)
		}
	})

	t.Run("tampered token", func(t *testing.T) {
		err := svc.ResetPassword(ctx, user.ResetUserPassword{
			UID:      data.UID,
			Token:    data.Token + "x",
			Password: "NewPassword",
		})
		var vErr *core.ValidationError
		if assert.ErrorAs(t, err, &vErr) {
			assert.Equal(t, "token", vErr.Fields[0].Field)
		}
	})

	t.Run("happy path", func(t *testing.T) {
		err := svc.ResetPassword(ctx, user.ResetUserPassword{
			UID:      data.UID,
			Token:    data.Token,
			Password: "NewPassword",
		})
		assert.NoError(t, err)

		got, err := svc.GetByID(ctx, usr.ID)
		assert.NoError(t, err)
		assert.NoError(t, got.CheckPassword("NewPassword"))
		assert.Error(t, got.CheckPassword("0ldPassword"))
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newUserService(t)
	usr1 := testutil.CreateUser(t, repo, "Jane Doe", "jane@ucourses.test", "", user.RoleStudent, true)
	usr2 := testutil.CreateUser(t, repo, "John Smith", "john@ucourses.test", "", user.RoleTeacher, true)

	assert.NoError(t, svc.Delete(ctx, usr1.ID, usr2.ID))

	_, err := svc.GetByID(ctx, usr1.ID)
	assert.ErrorIs(t, err, user.ErrNotFound)
}
