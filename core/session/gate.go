package session

import "github.com/trezcool/unicourses/core/user"

// Outcome is what a role-gated route should do with the current state.
type Outcome int

const (
	// OutcomeDefer: the session is still resolving; render nothing yet.
	OutcomeDefer Outcome = iota
	OutcomeRedirectLogin
	OutcomeRedirectUnauthorized
	OutcomeAllow
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDefer:
		return "defer"
	case OutcomeRedirectLogin:
		return "redirect-login"
	case OutcomeRedirectUnauthorized:
		return "redirect-unauthorized"
	case OutcomeAllow:
		return "allow"
	}
	return "unknown"
}

// Decide is the role gate: given a session snapshot and the set of roles a
// route accepts, it picks the render outcome. An empty set means any
// authenticated user. Membership is a set check; a single-role route is the
// one-element set.
//
// Decide is pure; callers must re-evaluate it on every navigation and on
// every Store transition, since role resolution may complete after the
// first render.
func Decide(st State, required ...user.Role) Outcome {
	switch st.Status {
	case StatusResolving:
		return OutcomeDefer
	case StatusAnonymous:
		return OutcomeRedirectLogin
	case StatusAuthenticated:
		if len(required) == 0 {
			return OutcomeAllow
		}
		if !st.Role.Valid() {
			return OutcomeRedirectUnauthorized
		}
		for _, role := range required {
			if role == st.Role {
				return OutcomeAllow
			}
		}
		return OutcomeRedirectUnauthorized
	}
	return OutcomeRedirectLogin // fail closed
}
