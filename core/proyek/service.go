package proyek

import (
	"context"
	"errors"
	"time"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("proyek not found")
	ErrSiswaOnly      = errors.New("only siswa can submit a proyek")
	ErrNotOwner       = errors.New("you can only change your own proyek")
	ErrAlreadyGraded  = errors.New("proyek has already been graded and can no longer be changed")
	ErrMissingJurusan = errors.New("your account is not attached to a jurusan")
)

// Orderings maps the accepted `ordering` query fields to columns.
var Orderings = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"judul":      "judul",
	"status":     "status",
}

type Repository interface {
	CreateProyek(ctx context.Context, p Proyek) (Proyek, error)
	GetProyekByID(ctx context.Context, id string) (Proyek, error)
	// QueryProyeks applies AND operation on available QueryFilter fields.
	// QueryFilter.Search does a case-insensitive match on Proyek.Judul or Proyek.Deskripsi.
	QueryProyeks(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Proyek, error)
	UpdateProyek(ctx context.Context, p Proyek) (Proyek, error)
	// DeleteProyek also removes the penilaian history of the proyek.
	DeleteProyek(ctx context.Context, id string) error
	ProyekStats(ctx context.Context) ([]Stat, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, actor user.User, np NewProyek) (Proyek, error) {
	if !actor.IsSiswa() {
		return Proyek{}, ErrSiswaOnly
	}
	if actor.JurusanID == "" {
		return Proyek{}, ErrMissingJurusan
	}
	now := time.Now().UTC()
	return svc.repo.CreateProyek(ctx, Proyek{
		UserID:    actor.ID,
		JurusanID: actor.JurusanID,
		Judul:     np.Judul,
		Deskripsi: np.Deskripsi,
		Link:      np.Link,
		Gambar:    np.Gambar,
		Status:    StatusTerkirim,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Proyek, error) {
	return svc.repo.GetProyekByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Proyek, error) {
	if filter != nil {
		filter.Clean()
		if filter.Status != "" && !filter.Status.IsValid() {
			return nil, core.NewArgumentError("status must be one of: terkirim, dinilai")
		}
	}
	ordering = core.FilterOrderings(ordering, Orderings)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return svc.repo.QueryProyeks(ctx, filter, ordering)
}

// Update applies up on behalf of the owner, only while the proyek waits for a grade.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, up UpdateProyek) (Proyek, error) {
	p, err := svc.repo.GetProyekByID(ctx, id)
	if err != nil {
		return Proyek{}, err
	}
	if p.UserID != actor.ID {
		return Proyek{}, ErrNotOwner
	}
	if p.IsGraded() {
		return Proyek{}, ErrAlreadyGraded
	}

	if up.Judul != nil {
		p.Judul = *up.Judul
	}
	if up.Deskripsi != nil {
		p.Deskripsi = *up.Deskripsi
	}
	if up.Link != nil {
		p.Link = *up.Link
	}
	if up.Gambar != nil {
		p.Gambar = *up.Gambar
	}
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProyek(ctx, p)
}

// Delete removes a proyek: the owner while it is ungraded, or an admin at any time.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	p, err := svc.repo.GetProyekByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		if p.UserID != actor.ID {
			return ErrNotOwner
		}
		if p.IsGraded() {
			return ErrAlreadyGraded
		}
	}
	return svc.repo.DeleteProyek(ctx, id)
}

func (svc *Service) Stats(ctx context.Context) ([]Stat, error) {
	return svc.repo.ProyekStats(ctx)
}
