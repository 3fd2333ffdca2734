package penilaian

import (
	"testing"

	"github.com/smkgaleri/galeri/core/user"
)

func TestDecide(t *testing.T) {
	siti := "Bu Siti"
	admin := Actor{ID: "admin", Role: user.RoleAdmin}
	guru := Actor{ID: "guru", Role: user.RoleGuru}
	siswa := Actor{ID: "siswa", Role: user.RoleSiswa}

	ungraded := Permission{CanGrade: true, SameJurusan: true}
	gradedBy := func(id string, actor Actor) Permission {
		p := Permission{AlreadyGraded: true, SameJurusan: true, ExistingGrader: &siti, ExistingGraderID: id, PenilaianID: "pn"}
		if actor.Role == user.RoleAdmin {
			p.IsAdmin, p.CanOverride = true, true
		}
		return p
	}

	tests := []struct {
		name  string
		actor Actor
		perm  Permission
		want  Action
	}{
		{"siswa", siswa, ungraded, ActionNone},
		{"siswa with a forged permission", siswa, Permission{CanGrade: true, SameJurusan: true, IsAdmin: true}, ActionNone},
		{"unknown role", Actor{ID: "x", Role: "kepsek"}, ungraded, ActionNone},
		{"guru other jurusan ungraded", guru, Permission{}, ActionBlockedCrossJurusan},
		{"guru other jurusan graded", guru, Permission{AlreadyGraded: true, ExistingGrader: &siti, ExistingGraderID: "other"}, ActionBlockedCrossJurusan},
		{"guru ungraded", guru, ungraded, ActionGrade},
		{"guru graded by self", guru, gradedBy("guru", guru), ActionEdit},
		{"guru graded by other", guru, gradedBy("other", guru), ActionReadOnly},
		{"guru same jurusan without can_grade", guru, Permission{SameJurusan: true}, ActionReadOnly},
		{"admin ungraded", admin, Permission{CanGrade: true, SameJurusan: true, IsAdmin: true}, ActionGrade},
		{"admin graded by guru", admin, gradedBy("guru", admin), ActionOverride},
		{"admin graded by self", admin, gradedBy("admin", admin), ActionEdit},
		{"admin graded without can_override", admin, Permission{AlreadyGraded: true, SameJurusan: true, ExistingGraderID: "guru"}, ActionReadOnly},
		{"admin never blocked", admin, Permission{CanGrade: true}, ActionGrade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.actor, tt.perm); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestDecide_exhaustive walks every combination of role and permission flags.
func TestDecide_exhaustive(t *testing.T) {
	bools := []bool{false, true}
	for _, role := range []user.Role{user.RoleAdmin, user.RoleGuru, user.RoleSiswa} {
		actor := Actor{ID: "me", Role: role}
		for _, canGrade := range bools {
			for _, same := range bools {
				for _, graded := range bools {
					for _, canOverride := range bools {
						for _, mine := range bools {
							perm := Permission{CanGrade: canGrade, SameJurusan: same, AlreadyGraded: graded, CanOverride: canOverride}
							if graded {
								perm.ExistingGraderID = "other"
								if mine {
									perm.ExistingGraderID = actor.ID
								}
							}
							got := Decide(actor, perm)

							switch {
							case role == user.RoleSiswa && got != ActionNone:
								t.Errorf("Decide(%s, %+v) = %v, want none", role, perm, got)
							case role == user.RoleGuru && !same && got != ActionBlockedCrossJurusan:
								t.Errorf("Decide(%s, %+v) = %v, want blocked", role, perm, got)
							case role != user.RoleSiswa && got == ActionNone:
								t.Errorf("Decide(%s, %+v) = none for a grader", role, perm)
							case role == user.RoleAdmin && got == ActionBlockedCrossJurusan:
								t.Errorf("Decide(%s, %+v) = blocked for an admin", role, perm)
							case role == user.RoleGuru && got == ActionOverride:
								t.Errorf("Decide(%s, %+v) = override for a guru", role, perm)
							case got == ActionGrade && graded:
								t.Errorf("Decide(%s, %+v) = grade on a graded proyek", role, perm)
							case got == ActionEdit && !(graded && mine):
								t.Errorf("Decide(%s, %+v) = edit without being the grader", role, perm)
							}
						}
					}
				}
			}
		}
	}
}

func TestAction_ShowsForm(t *testing.T) {
	want := map[Action]bool{
		ActionNone:                false,
		ActionBlockedCrossJurusan: false,
		ActionEdit:                true,
		ActionOverride:            true,
		ActionGrade:               true,
		ActionReadOnly:            false,
	}
	for a, w := range want {
		if got := a.ShowsForm(); got != w {
			t.Errorf("%v.ShowsForm() = %v, want %v", a, got, w)
		}
	}
	if got := Action(42).String(); got != "unknown" {
		t.Errorf("Action(42).String() = %q, want unknown", got)
	}
}

func TestValidBintang(t *testing.T) {
	for b := -1; b <= 7; b++ {
		want := b >= 1 && b <= 5
		if got := ValidBintang(b); got != want {
			t.Errorf("ValidBintang(%d) = %v, want %v", b, got, want)
		}
	}
}
