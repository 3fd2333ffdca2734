package penilaian

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smkgaleri/galeri/core"
)

// Star rating bounds
const (
	MinBintang = 1
	MaxBintang = 5
)

// Penilaian is the grade of a Proyek.
// A proyek has at most one active Penilaian; an admin override supersedes the
// previous one, which is kept for audit with SupersededAt and SupersededBy set.
type Penilaian struct {
	ID           string     `json:"id"`
	ProyekID     string     `json:"proyek_id"`
	GuruID       string     `json:"guru_id"`
	GuruName     string     `json:"guru_name,omitempty"`
	Bintang      int        `json:"bintang"`
	Catatan      string     `json:"catatan,omitempty"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
	SupersededBy string     `json:"superseded_by,omitempty"`
}

func (p *Penilaian) IsActive() bool { return p.SupersededAt == nil }

// ValidBintang reports whether b is a valid star rating.
func ValidBintang(b int) bool {
	return b >= MinBintang && b <= MaxBintang
}

type NewPenilaian struct {
	ProyekID string `json:"proyek_id" validate:"required,uuid"`
	Bintang  int    `json:"bintang" validate:"required,min=1,max=5"`
	Catatan  string `json:"catatan" validate:"max=2000"`
}

func (np *NewPenilaian) Validate(validate *validator.Validate) error {
	np.ProyekID = core.CleanString(np.ProyekID)
	np.Catatan = core.CleanString(np.Catatan)
	return validate.Struct(np)
}

// UpdatePenilaian holds the optional changes to a Penilaian.
type UpdatePenilaian struct {
	Bintang *int    `json:"bintang" validate:"omitempty,min=1,max=5"`
	Catatan *string `json:"catatan" validate:"omitempty,max=2000"`
}

func (up *UpdatePenilaian) Validate(validate *validator.Validate) error {
	if up.Catatan != nil {
		*up.Catatan = core.CleanString(*up.Catatan)
	}
	return validate.Struct(up)
}

// Permission is what an actor may do about the grading of one proyek.
type Permission struct {
	CanGrade      bool `json:"can_grade"`
	SameJurusan   bool `json:"same_jurusan"`
	AlreadyGraded bool `json:"already_graded"`
	IsAdmin       bool `json:"is_admin"`
	CanOverride   bool `json:"can_override"`
	// ExistingGrader is the name of the grader of the active penilaian, nil when ungraded.
	ExistingGrader   *string `json:"existing_grader"`
	ExistingGraderID string  `json:"existing_grader_id,omitempty"`
	PenilaianID      string  `json:"penilaian_id,omitempty"`
}

// CheckPermissionRequest is the body of POST /penilaians/check-permission.
type CheckPermissionRequest struct {
	ProyekID string `json:"proyek_id" validate:"required,uuid"`
}
