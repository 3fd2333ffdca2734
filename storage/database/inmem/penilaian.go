package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
)

type penilaianRepository struct {
	db *DB
}

var _ penilaian.Repository = (*penilaianRepository)(nil) // interface compliance check

func NewPenilaianRepository(db *DB) penilaian.Repository {
	return &penilaianRepository{db: db}
}

// withGrader fills GuruName; must be called with the lock held.
func (repo *penilaianRepository) withGrader(pn penilaian.Penilaian) penilaian.Penilaian {
	if usr, ok := repo.db.user[pn.GuruID]; ok {
		pn.GuruName = usr.Name
	}
	return pn
}

// active must be called with the lock held.
func (repo *penilaianRepository) active(proyekID string) (*penilaian.Penilaian, bool) {
	for _, pn := range repo.db.penilaian {
		if pn.ProyekID == proyekID && pn.IsActive() {
			return pn, true
		}
	}
	return nil, false
}

func (repo *penilaianRepository) GetActiveByProyek(_ context.Context, proyekID string) (penilaian.Penilaian, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if pn, ok := repo.active(proyekID); ok {
		return repo.withGrader(*pn), nil
	}
	return penilaian.Penilaian{}, penilaian.ErrNotFound
}

func (repo *penilaianRepository) GetPenilaianByID(_ context.Context, id string) (penilaian.Penilaian, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if pn, ok := repo.db.penilaian[id]; ok {
		return repo.withGrader(*pn), nil
	}
	return penilaian.Penilaian{}, penilaian.ErrNotFound
}

func (repo *penilaianRepository) CreatePenilaian(_ context.Context, pn penilaian.Penilaian, supersededID string) (penilaian.Penilaian, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.proyek[pn.ProyekID]
	if !ok {
		return penilaian.Penilaian{}, proyek.ErrNotFound
	}

	pn.ID = uuid.New().String()
	prev, graded := repo.active(pn.ProyekID)
	switch {
	case supersededID == "" && graded:
		return penilaian.Penilaian{}, penilaian.ErrAlreadyGraded
	case supersededID != "" && (!graded || prev.ID != supersededID):
		return penilaian.Penilaian{}, penilaian.ErrConflict
	case graded:
		at := pn.CreatedAt
		prev.SupersededAt = &at
		prev.SupersededBy = pn.ID
	}

	repo.db.penilaian[pn.ID] = &pn
	p.Status = proyek.StatusDinilai
	p.UpdatedAt = pn.CreatedAt
	return repo.withGrader(pn), nil
}

func (repo *penilaianRepository) UpdatePenilaian(_ context.Context, pn penilaian.Penilaian) (penilaian.Penilaian, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.penilaian[pn.ID]
	if !ok {
		return penilaian.Penilaian{}, penilaian.ErrNotFound
	}
	if !orig.IsActive() {
		return penilaian.Penilaian{}, penilaian.ErrConflict
	}
	orig.Bintang = pn.Bintang
	orig.Catatan = pn.Catatan
	orig.UpdatedAt = pn.UpdatedAt
	return repo.withGrader(*orig), nil
}

func (repo *penilaianRepository) QueryHistory(_ context.Context, proyekID string) ([]penilaian.Penilaian, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]penilaian.Penilaian, 0)
	for _, pn := range repo.db.penilaian {
		if pn.ProyekID == proyekID {
			res = append(res, repo.withGrader(*pn))
		}
	}
	sortBy(res, []core.DBOrdering{{Field: "created_at", Ascending: true}}, func(a, b penilaian.Penilaian, _ string) (bool, bool) {
		if a.CreatedAt.Equal(b.CreatedAt) {
			// an override may share the timestamp of the row it supersedes
			return a.SupersededBy == b.ID, true
		}
		return a.CreatedAt.Before(b.CreatedAt), true
	})
	return res, nil
}
