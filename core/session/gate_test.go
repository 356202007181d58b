package session

import (
	"testing"

	"github.com/trezcool/unicourses/core/user"
)

func TestDecide(t *testing.T) {
	anon := State{Status: StatusAnonymous}
	resolving := State{Status: StatusResolving}
	unroled := State{Status: StatusAuthenticated}
	student := State{Status: StatusAuthenticated, Role: user.RoleStudent}
	teacher := State{Status: StatusAuthenticated, Role: user.RoleTeacher}
	admin := State{Status: StatusAuthenticated, Role: user.RoleAdmin}

	tests := []struct {
		name     string
		state    State
		required []user.Role
		want     Outcome
	}{
		{name: "resolving defers", state: resolving, required: []user.Role{user.RoleStudent}, want: OutcomeDefer},
		{name: "resolving defers even without required roles", state: resolving, want: OutcomeDefer},

		// unauthenticated always goes to login, whatever the route requires
		{name: "anonymous on open route", state: anon, want: OutcomeRedirectLogin},
		{name: "anonymous on student route", state: anon, required: []user.Role{user.RoleStudent}, want: OutcomeRedirectLogin},
		{name: "anonymous on admin route", state: anon, required: []user.Role{user.RoleAdmin}, want: OutcomeRedirectLogin},

		// authenticated-only route
		{name: "unroled on authenticated-only route", state: unroled, want: OutcomeAllow},
		{name: "student on authenticated-only route", state: student, want: OutcomeAllow},

		// un-roled users fail every role-gated route
		{name: "unroled on student route", state: unroled, required: []user.Role{user.RoleStudent}, want: OutcomeRedirectUnauthorized},
		{name: "unroled on any-role route", state: unroled, required: user.AllRoles, want: OutcomeRedirectUnauthorized},

		// set membership
		{name: "student on student route", state: student, required: []user.Role{user.RoleStudent}, want: OutcomeAllow},
		{name: "teacher on admin route", state: teacher, required: []user.Role{user.RoleAdmin}, want: OutcomeRedirectUnauthorized},
		{name: "admin on admin route", state: admin, required: []user.Role{user.RoleAdmin}, want: OutcomeAllow},
		{name: "teacher on admin-or-teacher route", state: teacher, required: []user.Role{user.RoleAdmin, user.RoleTeacher}, want: OutcomeAllow},
		{name: "student on admin-or-teacher route", state: student, required: []user.Role{user.RoleAdmin, user.RoleTeacher}, want: OutcomeRedirectUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.state, tt.required...); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}
