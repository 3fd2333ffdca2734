package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/smkgaleri/galeri/core/akademik"
)

type akademikRepository struct {
	db *DB
}

var _ akademik.Repository = (*akademikRepository)(nil) // interface compliance check

func NewAkademikRepository(db *DB) akademik.Repository {
	return &akademikRepository{db: db}
}

func (repo *akademikRepository) CreateJurusan(_ context.Context, j akademik.Jurusan) (akademik.Jurusan, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.jurusan {
		if other.Kode == j.Kode {
			return akademik.Jurusan{}, akademik.ErrKodeExists
		}
	}
	j.ID = uuid.New().String()
	repo.db.jurusan[j.ID] = &j
	return j, nil
}

func (repo *akademikRepository) QueryJurusan(_ context.Context) ([]akademik.Jurusan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]akademik.Jurusan, 0, len(repo.db.jurusan))
	for _, j := range repo.db.jurusan {
		res = append(res, *j)
	}
	sort.Slice(res, func(i, k int) bool { return res[i].Nama < res[k].Nama })
	return res, nil
}

func (repo *akademikRepository) GetJurusanByID(_ context.Context, id string) (akademik.Jurusan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if j, ok := repo.db.jurusan[id]; ok {
		return *j, nil
	}
	return akademik.Jurusan{}, akademik.ErrJurusanNotFound
}

func (repo *akademikRepository) GetJurusanByKode(_ context.Context, kode string) (akademik.Jurusan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, j := range repo.db.jurusan {
		if j.Kode == kode {
			return *j, nil
		}
	}
	return akademik.Jurusan{}, akademik.ErrJurusanNotFound
}

func (repo *akademikRepository) CreateKelas(_ context.Context, k akademik.Kelas) (akademik.Kelas, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.jurusan[k.JurusanID]; !ok {
		return akademik.Kelas{}, akademik.ErrJurusanNotFound
	}
	k.ID = uuid.New().String()
	repo.db.kelas[k.ID] = &k
	return k, nil
}

func (repo *akademikRepository) QueryKelasByJurusan(_ context.Context, jurusanID string) ([]akademik.Kelas, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]akademik.Kelas, 0)
	for _, k := range repo.db.kelas {
		if k.JurusanID == jurusanID {
			res = append(res, *k)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Tingkat != res[j].Tingkat {
			return res[i].Tingkat < res[j].Tingkat
		}
		return res[i].Nama < res[j].Nama
	})
	return res, nil
}

func (repo *akademikRepository) GetKelasByID(_ context.Context, id string) (akademik.Kelas, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if k, ok := repo.db.kelas[id]; ok {
		return *k, nil
	}
	return akademik.Kelas{}, akademik.ErrKelasNotFound
}
