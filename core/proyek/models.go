package proyek

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smkgaleri/galeri/core"
)

type Status string

// Statuses
const (
	StatusTerkirim Status = "terkirim" // submitted, waiting for a grade
	StatusDinilai  Status = "dinilai"  // graded
)

func (s Status) IsValid() bool {
	return s == StatusTerkirim || s == StatusDinilai
}

// Proyek is a creative project submitted by a siswa.
// JurusanID is copied from the siswa at submission time.
type Proyek struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	JurusanID string    `json:"jurusan_id"`
	Judul     string    `json:"judul"`
	Deskripsi string    `json:"deskripsi"`
	Link      string    `json:"link,omitempty"`
	Gambar    string    `json:"gambar,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (p *Proyek) IsGraded() bool { return p.Status == StatusDinilai }

type NewProyek struct {
	Judul     string `json:"judul" validate:"required,notblank,max=200"`
	Deskripsi string `json:"deskripsi" validate:"required,notblank,max=5000"`
	Link      string `json:"link" validate:"omitempty,url,max=500"`
	Gambar    string `json:"gambar" validate:"omitempty,url,max=500"`
}

func (np *NewProyek) Validate(validate *validator.Validate) error {
	np.Judul = core.CleanString(np.Judul)
	np.Deskripsi = core.CleanString(np.Deskripsi)
	np.Link = core.CleanString(np.Link)
	np.Gambar = core.CleanString(np.Gambar)
	return validate.Struct(np)
}

// UpdateProyek holds the optional changes to a Proyek; nil fields are left untouched.
type UpdateProyek struct {
	Judul     *string `json:"judul" validate:"omitempty,notblank,max=200"`
	Deskripsi *string `json:"deskripsi" validate:"omitempty,notblank,max=5000"`
	Link      *string `json:"link" validate:"omitempty,max=500"`
	Gambar    *string `json:"gambar" validate:"omitempty,max=500"`
}

func (up *UpdateProyek) Validate(validate *validator.Validate) error {
	for _, s := range []*string{up.Judul, up.Deskripsi, up.Link, up.Gambar} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(up)
}

type QueryFilter struct {
	Search    string
	JurusanID string
	UserID    string
	Status    Status
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.JurusanID = core.CleanString(qf.JurusanID)
	qf.UserID = core.CleanString(qf.UserID)
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))
}

// Stat counts the projects of one jurusan per status.
type Stat struct {
	JurusanID string `json:"jurusan_id" db:"jurusan_id"`
	Terkirim  int    `json:"terkirim" db:"terkirim"`
	Dinilai   int    `json:"dinilai" db:"dinilai"`
}

func (s Stat) Total() int { return s.Terkirim + s.Dinilai }
