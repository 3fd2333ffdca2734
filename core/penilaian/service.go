package penilaian

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("penilaian not found")
	ErrAlreadyGraded  = errors.New("proyek has already been graded")
	ErrCrossJurusan   = errors.New("you can only grade projects of your own jurusan")
	ErrRoleNotAllowed = errors.New("only guru and admin can grade projects")
	ErrNotGrader      = errors.New("only the original grader can edit this penilaian")
	ErrConflict       = errors.New("penilaian was changed concurrently, please reload")
)

type Repository interface {
	// GetActiveByProyek returns the penilaian of a proyek that is not superseded, or ErrNotFound.
	GetActiveByProyek(ctx context.Context, proyekID string) (Penilaian, error)
	GetPenilaianByID(ctx context.Context, id string) (Penilaian, error)
	// CreatePenilaian atomically inserts pn and marks its proyek as graded.
	// When supersededID is empty the proyek must be ungraded (ErrAlreadyGraded otherwise);
	// when set it must be the active penilaian of the proyek (ErrConflict otherwise) and gets superseded by pn.
	CreatePenilaian(ctx context.Context, pn Penilaian, supersededID string) (Penilaian, error)
	// UpdatePenilaian saves bintang and catatan of an active penilaian, or returns ErrConflict.
	UpdatePenilaian(ctx context.Context, pn Penilaian) (Penilaian, error)
	// QueryHistory returns every penilaian of a proyek, superseded ones included, oldest first.
	QueryHistory(ctx context.Context, proyekID string) ([]Penilaian, error)
}

type Service struct {
	repo       Repository
	proyekRepo proyek.Repository
}

func NewService(repo Repository, proyekRepo proyek.Repository) *Service {
	return &Service{repo: repo, proyekRepo: proyekRepo}
}

// CheckPermission computes what actor may do about the grading of a proyek.
func (svc *Service) CheckPermission(ctx context.Context, actor user.User, proyekID string) (Permission, error) {
	p, err := svc.proyekRepo.GetProyekByID(ctx, proyekID)
	if err != nil {
		return Permission{}, err
	}

	var perm Permission
	active, err := svc.repo.GetActiveByProyek(ctx, p.ID)
	switch err {
	case nil:
		perm.AlreadyGraded = true
		name := active.GuruName
		perm.ExistingGrader = &name
		perm.ExistingGraderID = active.GuruID
		perm.PenilaianID = active.ID
	case ErrNotFound:
	default:
		return Permission{}, pkgerrors.Wrap(err, "finding active penilaian")
	}

	switch actor.Role {
	case user.RoleAdmin:
		perm.IsAdmin = true
		perm.SameJurusan = true
	case user.RoleGuru:
		perm.SameJurusan = actor.JurusanID != "" && actor.JurusanID == p.JurusanID
	}
	perm.CanGrade = ((actor.IsGuru() && perm.SameJurusan) || actor.IsAdmin()) && !perm.AlreadyGraded
	perm.CanOverride = perm.AlreadyGraded && actor.IsAdmin()
	return perm, nil
}

// Create grades a proyek. An admin grading an already graded proyek overrides the
// active penilaian: the previous one is kept as superseded.
func (svc *Service) Create(ctx context.Context, actor user.User, np NewPenilaian) (Penilaian, error) {
	if !actor.Role.CanGrade() {
		return Penilaian{}, ErrRoleNotAllowed
	}
	perm, err := svc.CheckPermission(ctx, actor, np.ProyekID)
	if err != nil {
		return Penilaian{}, err
	}

	var supersededID string
	switch {
	case actor.IsGuru() && !perm.SameJurusan:
		return Penilaian{}, ErrCrossJurusan
	case perm.AlreadyGraded && !perm.CanOverride:
		return Penilaian{}, ErrAlreadyGraded
	case perm.CanOverride:
		supersededID = perm.PenilaianID
	}

	now := time.Now().UTC()
	pn, err := svc.repo.CreatePenilaian(ctx, Penilaian{
		ProyekID:  np.ProyekID,
		GuruID:    actor.ID,
		GuruName:  actor.Name,
		Bintang:   np.Bintang,
		Catatan:   np.Catatan,
		CreatedAt: now,
		UpdatedAt: now,
	}, supersededID)
	if err != nil {
		if err == ErrAlreadyGraded || err == ErrConflict {
			return Penilaian{}, err
		}
		return Penilaian{}, pkgerrors.Wrap(err, "creating penilaian")
	}
	return pn, nil
}

// Update edits the active penilaian in place; only its original grader may do so.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, up UpdatePenilaian) (Penilaian, error) {
	if !actor.Role.CanGrade() {
		return Penilaian{}, ErrRoleNotAllowed
	}
	pn, err := svc.repo.GetPenilaianByID(ctx, id)
	if err != nil {
		return Penilaian{}, err
	}
	if pn.GuruID != actor.ID {
		return Penilaian{}, ErrNotGrader
	}
	if !pn.IsActive() {
		return Penilaian{}, ErrConflict
	}

	if up.Bintang != nil {
		pn.Bintang = *up.Bintang
	}
	if up.Catatan != nil {
		pn.Catatan = *up.Catatan
	}
	pn.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePenilaian(ctx, pn)
}

func (svc *Service) GetActive(ctx context.Context, proyekID string) (Penilaian, error) {
	if _, err := svc.proyekRepo.GetProyekByID(ctx, proyekID); err != nil {
		return Penilaian{}, err
	}
	return svc.repo.GetActiveByProyek(ctx, proyekID)
}

func (svc *Service) History(ctx context.Context, proyekID string) ([]Penilaian, error) {
	if _, err := svc.proyekRepo.GetProyekByID(ctx, proyekID); err != nil {
		return nil, err
	}
	return svc.repo.QueryHistory(ctx, proyekID)
}
