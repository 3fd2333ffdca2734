package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/proyek"
)

type proyekRepository struct {
	db *DB
}

var _ proyek.Repository = (*proyekRepository)(nil) // interface compliance check

func NewProyekRepository(db *DB) proyek.Repository {
	return &proyekRepository{db: db}
}

func (repo *proyekRepository) CreateProyek(_ context.Context, p proyek.Proyek) (proyek.Proyek, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = uuid.New().String()
	repo.db.proyek[p.ID] = &p
	return p, nil
}

func (repo *proyekRepository) GetProyekByID(_ context.Context, id string) (proyek.Proyek, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.proyek[id]; ok {
		return *p, nil
	}
	return proyek.Proyek{}, proyek.ErrNotFound
}

func (repo *proyekRepository) QueryProyeks(_ context.Context, filter *proyek.QueryFilter, ordering []core.DBOrdering) ([]proyek.Proyek, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]proyek.Proyek, 0, len(repo.db.proyek))
	for _, p := range repo.db.proyek {
		if filter != nil {
			if filter.Search != "" && !(containsFold(p.Judul, filter.Search) || containsFold(p.Deskripsi, filter.Search)) {
				continue
			}
			if filter.JurusanID != "" && p.JurusanID != filter.JurusanID {
				continue
			}
			if filter.UserID != "" && p.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && p.Status != filter.Status {
				continue
			}
		}
		res = append(res, *p)
	}

	sortBy(res, ordering, func(a, b proyek.Proyek, field string) (bool, bool) {
		switch field {
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt), true
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt), true
		case "judul":
			return a.Judul < b.Judul, true
		case "status":
			return a.Status < b.Status, true
		}
		return false, false
	})
	return res, nil
}

func (repo *proyekRepository) UpdateProyek(_ context.Context, p proyek.Proyek) (proyek.Proyek, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.proyek[p.ID]
	if !ok {
		return proyek.Proyek{}, proyek.ErrNotFound
	}
	if orig.IsGraded() {
		return proyek.Proyek{}, proyek.ErrAlreadyGraded
	}
	orig.Judul = p.Judul
	orig.Deskripsi = p.Deskripsi
	orig.Link = p.Link
	orig.Gambar = p.Gambar
	orig.UpdatedAt = p.UpdatedAt
	return *orig, nil
}

func (repo *proyekRepository) DeleteProyek(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.proyek[id]; !ok {
		return proyek.ErrNotFound
	}
	delete(repo.db.proyek, id)
	for pid, pn := range repo.db.penilaian {
		if pn.ProyekID == id {
			delete(repo.db.penilaian, pid)
		}
	}
	return nil
}

func (repo *proyekRepository) ProyekStats(_ context.Context) ([]proyek.Stat, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	byJurusan := make(map[string]*proyek.Stat)
	for _, p := range repo.db.proyek {
		st, ok := byJurusan[p.JurusanID]
		if !ok {
			st = &proyek.Stat{JurusanID: p.JurusanID}
			byJurusan[p.JurusanID] = st
		}
		if p.IsGraded() {
			st.Dinilai++
		} else {
			st.Terkirim++
		}
	}

	res := make([]proyek.Stat, 0, len(byJurusan))
	for _, st := range byJurusan {
		res = append(res, *st)
	}
	sortBy(res, []core.DBOrdering{{Field: "jurusan_id", Ascending: true}}, func(a, b proyek.Stat, _ string) (bool, bool) {
		return a.JurusanID < b.JurusanID, true
	})
	return res, nil
}
