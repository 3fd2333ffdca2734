package penilaian

import "github.com/smkgaleri/galeri/core/user"

// Action is the grading affordance offered to an actor for one proyek.
type Action int

// Actions
const (
	ActionNone                Action = iota // no grading UI at all
	ActionBlockedCrossJurusan               // guru of another jurusan
	ActionEdit                              // the actor graded it, may edit
	ActionOverride                          // admin may replace another grader's penilaian
	ActionGrade                             // ungraded, may grade
	ActionReadOnly                          // graded by someone else
)

var actionNames = [...]string{
	ActionNone:                "none",
	ActionBlockedCrossJurusan: "blocked_cross_jurusan",
	ActionEdit:                "edit",
	ActionOverride:            "override",
	ActionGrade:               "grade",
	ActionReadOnly:            "read_only",
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "unknown"
	}
	return actionNames[a]
}

// ShowsForm reports whether the grading form is presented for a.
func (a Action) ShowsForm() bool {
	switch a {
	case ActionEdit, ActionOverride, ActionGrade:
		return true
	}
	return false
}

// Actor is the signed-in user as seen by Decide.
type Actor struct {
	ID   string
	Role user.Role
}

func ActorOf(usr user.User) Actor {
	return Actor{ID: usr.ID, Role: usr.Role}
}

// Decide maps an actor and the server-computed permission to exactly one Action.
// Rules are evaluated in order, the first match wins.
func Decide(actor Actor, perm Permission) Action {
	isGrader := perm.ExistingGraderID != "" && perm.ExistingGraderID == actor.ID

	switch {
	case !actor.Role.CanGrade():
		return ActionNone
	case actor.Role == user.RoleGuru && !perm.SameJurusan:
		return ActionBlockedCrossJurusan
	case perm.AlreadyGraded && isGrader:
		return ActionEdit
	case perm.AlreadyGraded && actor.Role == user.RoleAdmin && perm.CanOverride:
		return ActionOverride
	case !perm.AlreadyGraded && perm.CanGrade:
		return ActionGrade
	default:
		return ActionReadOnly
	}
}
