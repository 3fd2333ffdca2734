package sqlxrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/proyek"
)

const proyekColumns = `id, user_id, jurusan_id, judul, deskripsi, link, gambar, status, created_at, updated_at`

type proyekRepository struct {
	db *sqlx.DB
}

var _ proyek.Repository = (*proyekRepository)(nil) // interface compliance check

func NewProyekRepository(db *sqlx.DB) proyek.Repository {
	return &proyekRepository{db: db}
}

type proyekRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	JurusanID string      `db:"jurusan_id"`
	Judul     string      `db:"judul"`
	Deskripsi string      `db:"deskripsi"`
	Link      null.String `db:"link"`
	Gambar    null.String `db:"gambar"`
	Status    string      `db:"status"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

func toProyekRow(p proyek.Proyek) proyekRow {
	return proyekRow{
		ID:        p.ID,
		UserID:    p.UserID,
		JurusanID: p.JurusanID,
		Judul:     p.Judul,
		Deskripsi: p.Deskripsi,
		Link:      null.NewString(p.Link, p.Link != ""),
		Gambar:    null.NewString(p.Gambar, p.Gambar != ""),
		Status:    string(p.Status),
		CreatedAt: null.NewTime(p.CreatedAt.UTC(), !p.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(p.UpdatedAt.UTC(), !p.UpdatedAt.IsZero()),
	}
}

func (r proyekRow) proyek() proyek.Proyek {
	return proyek.Proyek{
		ID:        r.ID,
		UserID:    r.UserID,
		JurusanID: r.JurusanID,
		Judul:     r.Judul,
		Deskripsi: r.Deskripsi,
		Link:      r.Link.String,
		Gambar:    r.Gambar.String,
		Status:    proyek.Status(r.Status),
		CreatedAt: r.CreatedAt.Time.UTC(),
		UpdatedAt: r.UpdatedAt.Time.UTC(),
	}
}

func (repo *proyekRepository) CreateProyek(ctx context.Context, p proyek.Proyek) (proyek.Proyek, error) {
	p.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO proyek (`+proyekColumns+`) VALUES (
		:id, :user_id, :jurusan_id, :judul, :deskripsi, :link, :gambar, :status, :created_at, :updated_at)`, toProyekRow(p))
	if err != nil {
		return proyek.Proyek{}, errors.Wrap(err, "inserting proyek")
	}
	return p, nil
}

func (repo *proyekRepository) GetProyekByID(ctx context.Context, id string) (proyek.Proyek, error) {
	if _, err := uuid.Parse(id); err != nil {
		return proyek.Proyek{}, proyek.ErrNotFound
	}
	var row proyekRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+proyekColumns+` FROM proyek WHERE id = $1`, id); err != nil {
		return proyek.Proyek{}, trapNoRowsErr(err, proyek.ErrNotFound, "finding proyek by ID")
	}
	return row.proyek(), nil
}

func (repo *proyekRepository) QueryProyeks(ctx context.Context, filter *proyek.QueryFilter, ordering []core.DBOrdering) ([]proyek.Proyek, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, `(judul ILIKE ? OR deskripsi ILIKE ?)`)
			args = append(args, val, val)
		}
		if filter.JurusanID != "" {
			where = append(where, `jurusan_id = ?`)
			args = append(args, filter.JurusanID)
		}
		if filter.UserID != "" {
			where = append(where, `user_id = ?`)
			args = append(args, filter.UserID)
		}
		if filter.Status != "" {
			where = append(where, `status = ?`)
			args = append(args, string(filter.Status))
		}
	}

	q := `SELECT ` + proyekColumns + ` FROM proyek`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += orderBy(ordering, "")

	var rows []proyekRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying proyeks")
	}
	res := make([]proyek.Proyek, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.proyek())
	}
	return res, nil
}

func (repo *proyekRepository) UpdateProyek(ctx context.Context, p proyek.Proyek) (proyek.Proyek, error) {
	res, err := repo.db.NamedExecContext(ctx, `UPDATE proyek SET
		judul = :judul, deskripsi = :deskripsi, link = :link, gambar = :gambar, updated_at = :updated_at
		WHERE id = :id AND status = 'terkirim'`, toProyekRow(p))
	if err != nil {
		return proyek.Proyek{}, errors.Wrap(err, "updating proyek")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err = repo.GetProyekByID(ctx, p.ID); err != nil {
			return proyek.Proyek{}, err
		}
		return proyek.Proyek{}, proyek.ErrAlreadyGraded
	}
	return p, nil
}

// DeleteProyek relies on ON DELETE CASCADE for the penilaian history.
func (repo *proyekRepository) DeleteProyek(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM proyek WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting proyek")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return proyek.ErrNotFound
	}
	return nil
}

func (repo *proyekRepository) ProyekStats(ctx context.Context) ([]proyek.Stat, error) {
	var stats []proyek.Stat
	err := repo.db.SelectContext(ctx, &stats, `SELECT jurusan_id,
		COUNT(*) FILTER (WHERE status = 'terkirim') AS terkirim,
		COUNT(*) FILTER (WHERE status = 'dinilai') AS dinilai
		FROM proyek GROUP BY jurusan_id ORDER BY jurusan_id`)
	if err != nil {
		return nil, errors.Wrap(err, "computing proyek stats")
	}
	if stats == nil {
		stats = []proyek.Stat{}
	}
	return stats, nil
}
