package akademik

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smkgaleri/galeri/core"
)

var (
	// errors
	ErrJurusanNotFound = errors.New("jurusan not found")
	ErrKelasNotFound   = errors.New("kelas not found")
	ErrKodeExists      = errors.New("a jurusan with this kode already exists")
)

type (
	Repository interface {
		CreateJurusan(ctx context.Context, j Jurusan) (Jurusan, error)
		QueryJurusan(ctx context.Context) ([]Jurusan, error)
		GetJurusanByID(ctx context.Context, id string) (Jurusan, error)
		GetJurusanByKode(ctx context.Context, kode string) (Jurusan, error)
		CreateKelas(ctx context.Context, k Kelas) (Kelas, error)
		QueryKelasByJurusan(ctx context.Context, jurusanID string) ([]Kelas, error)
		GetKelasByID(ctx context.Context, id string) (Kelas, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkKodeUniqueness(ctx context.Context, kode string) error {
	_, err := svc.repo.GetJurusanByKode(ctx, strings.ToUpper(kode))
	switch err {
	case nil:
		return core.NewValidationError(ErrKodeExists, core.FieldError{Field: "kode", Error: ErrKodeExists.Error()})
	case ErrJurusanNotFound:
		return nil
	default:
		return err
	}
}

func (svc *Service) CreateJurusan(ctx context.Context, nj NewJurusan) (Jurusan, error) {
	return svc.repo.CreateJurusan(ctx, Jurusan{
		Kode:      strings.ToUpper(nj.Kode),
		Nama:      nj.Nama,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) ListJurusan(ctx context.Context) ([]Jurusan, error) {
	return svc.repo.QueryJurusan(ctx)
}

func (svc *Service) GetJurusan(ctx context.Context, id string) (Jurusan, error) {
	return svc.repo.GetJurusanByID(ctx, id)
}

func (svc *Service) CreateKelas(ctx context.Context, nk NewKelas) (Kelas, error) {
	if _, err := svc.repo.GetJurusanByID(ctx, nk.JurusanID); err != nil {
		if err == ErrJurusanNotFound {
			return Kelas{}, core.NewValidationError(err, core.FieldError{Field: "jurusan_id", Error: err.Error()})
		}
		return Kelas{}, err
	}
	return svc.repo.CreateKelas(ctx, Kelas{
		Nama:      nk.Nama,
		Tingkat:   nk.Tingkat,
		JurusanID: nk.JurusanID,
		CreatedAt: time.Now().UTC(),
	})
}

// ListKelasByJurusan returns the classes of a department; an empty id yields an empty list.
func (svc *Service) ListKelasByJurusan(ctx context.Context, jurusanID string) ([]Kelas, error) {
	jurusanID = core.CleanString(jurusanID)
	if jurusanID == "" {
		return []Kelas{}, nil
	}
	return svc.repo.QueryKelasByJurusan(ctx, jurusanID)
}

func (svc *Service) GetKelas(ctx context.Context, id string) (Kelas, error) {
	return svc.repo.GetKelasByID(ctx, id)
}
