package akademik

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smkgaleri/galeri/core"
)

// Tingkat (grade levels)
const (
	Tingkat10 = 10
	Tingkat11 = 11
	Tingkat12 = 12
)

// Jurusan is an academic department, e.g. RPL (software engineering) or DKV (visual communication design).
type Jurusan struct {
	ID        string    `json:"id"`
	Kode      string    `json:"kode"`
	Nama      string    `json:"nama"`
	CreatedAt time.Time `json:"created_at"`
}

// Kelas is a class within exactly one Jurusan.
type Kelas struct {
	ID        string    `json:"id"`
	Nama      string    `json:"nama"`
	Tingkat   int       `json:"tingkat"`
	JurusanID string    `json:"jurusan_id"`
	CreatedAt time.Time `json:"created_at"`
}

type NewJurusan struct {
	Kode string `json:"kode" validate:"required,notblank,max=16"`
	Nama string `json:"nama" validate:"required,notblank,max=100"`
}

func (nj *NewJurusan) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nj.Kode = core.CleanString(nj.Kode)
	nj.Nama = core.CleanString(nj.Nama)
	if err := validate.Struct(nj); err != nil {
		return err
	}
	return svc.checkKodeUniqueness(ctx, nj.Kode)
}

type NewKelas struct {
	Nama      string `json:"nama" validate:"required,notblank,max=50"`
	Tingkat   int    `json:"tingkat" validate:"required,oneof=10 11 12"`
	JurusanID string `json:"jurusan_id" validate:"required,uuid"`
}

func (nk *NewKelas) Validate(validate *validator.Validate) error {
	nk.Nama = core.CleanString(nk.Nama)
	return validate.Struct(nk)
}
