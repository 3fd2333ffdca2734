package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core/akademik"
)

type akademikRepository struct {
	db *sqlx.DB
}

var _ akademik.Repository = (*akademikRepository)(nil) // interface compliance check

func NewAkademikRepository(db *sqlx.DB) akademik.Repository {
	return &akademikRepository{db: db}
}

type jurusanRow struct {
	ID        string    `db:"id"`
	Kode      string    `db:"kode"`
	Nama      string    `db:"nama"`
	CreatedAt time.Time `db:"created_at"`
}

func (r jurusanRow) jurusan() akademik.Jurusan {
	return akademik.Jurusan{ID: r.ID, Kode: r.Kode, Nama: r.Nama, CreatedAt: r.CreatedAt.UTC()}
}

type kelasRow struct {
	ID        string    `db:"id"`
	Nama      string    `db:"nama"`
	Tingkat   int       `db:"tingkat"`
	JurusanID string    `db:"jurusan_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r kelasRow) kelas() akademik.Kelas {
	return akademik.Kelas{ID: r.ID, Nama: r.Nama, Tingkat: r.Tingkat, JurusanID: r.JurusanID, CreatedAt: r.CreatedAt.UTC()}
}

func (repo *akademikRepository) CreateJurusan(ctx context.Context, j akademik.Jurusan) (akademik.Jurusan, error) {
	j.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO jurusan (id, kode, nama, created_at) VALUES (:id, :kode, :nama, :created_at)`,
		jurusanRow{ID: j.ID, Kode: j.Kode, Nama: j.Nama, CreatedAt: j.CreatedAt.UTC()})
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return akademik.Jurusan{}, akademik.ErrKodeExists
		}
		return akademik.Jurusan{}, errors.Wrap(err, "inserting jurusan")
	}
	return j, nil
}

func (repo *akademikRepository) QueryJurusan(ctx context.Context) ([]akademik.Jurusan, error) {
	var rows []jurusanRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT id, kode, nama, created_at FROM jurusan ORDER BY nama`); err != nil {
		return nil, errors.Wrap(err, "querying jurusan")
	}
	res := make([]akademik.Jurusan, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.jurusan())
	}
	return res, nil
}

func (repo *akademikRepository) GetJurusanByID(ctx context.Context, id string) (akademik.Jurusan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return akademik.Jurusan{}, akademik.ErrJurusanNotFound
	}
	var row jurusanRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, kode, nama, created_at FROM jurusan WHERE id = $1`, id)
	if err != nil {
		return akademik.Jurusan{}, trapNoRowsErr(err, akademik.ErrJurusanNotFound, "finding jurusan by ID")
	}
	return row.jurusan(), nil
}

func (repo *akademikRepository) GetJurusanByKode(ctx context.Context, kode string) (akademik.Jurusan, error) {
	var row jurusanRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, kode, nama, created_at FROM jurusan WHERE kode = $1`, kode)
	if err != nil {
		return akademik.Jurusan{}, trapNoRowsErr(err, akademik.ErrJurusanNotFound, "finding jurusan by kode")
	}
	return row.jurusan(), nil
}

func (repo *akademikRepository) CreateKelas(ctx context.Context, k akademik.Kelas) (akademik.Kelas, error) {
	k.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO kelas (id, nama, tingkat, jurusan_id, created_at) VALUES (:id, :nama, :tingkat, :jurusan_id, :created_at)`,
		kelasRow{ID: k.ID, Nama: k.Nama, Tingkat: k.Tingkat, JurusanID: k.JurusanID, CreatedAt: k.CreatedAt.UTC()})
	if err != nil {
		return akademik.Kelas{}, errors.Wrap(err, "inserting kelas")
	}
	return k, nil
}

func (repo *akademikRepository) QueryKelasByJurusan(ctx context.Context, jurusanID string) ([]akademik.Kelas, error) {
	if _, err := uuid.Parse(jurusanID); err != nil {
		return []akademik.Kelas{}, nil
	}
	var rows []kelasRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT id, nama, tingkat, jurusan_id, created_at FROM kelas WHERE jurusan_id = $1 ORDER BY tingkat, nama`, jurusanID)
	if err != nil {
		return nil, errors.Wrap(err, "querying kelas")
	}
	res := make([]akademik.Kelas, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.kelas())
	}
	return res, nil
}

func (repo *akademikRepository) GetKelasByID(ctx context.Context, id string) (akademik.Kelas, error) {
	if _, err := uuid.Parse(id); err != nil {
		return akademik.Kelas{}, akademik.ErrKelasNotFound
	}
	var row kelasRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, nama, tingkat, jurusan_id, created_at FROM kelas WHERE id = $1`, id)
	if err != nil {
		return akademik.Kelas{}, trapNoRowsErr(err, akademik.ErrKelasNotFound, "finding kelas by ID")
	}
	return row.kelas(), nil
}
