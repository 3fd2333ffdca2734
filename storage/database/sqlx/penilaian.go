package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
)

const selectPenilaian = `SELECT p.id, p.proyek_id, p.guru_id, u.name AS guru_name, p.bintang, p.catatan,
	p.created_at, p.updated_at, p.superseded_at, p.superseded_by
	FROM penilaian p JOIN users u ON u.id = p.guru_id`

const activePenilaianIndex = "penilaian_active_proyek_idx"

type penilaianRepository struct {
	db *sqlx.DB
}

var _ penilaian.Repository = (*penilaianRepository)(nil) // interface compliance check

func NewPenilaianRepository(db *sqlx.DB) penilaian.Repository {
	return &penilaianRepository{db: db}
}

type penilaianRow struct {
	ID           string      `db:"id"`
	ProyekID     string      `db:"proyek_id"`
	GuruID       string      `db:"guru_id"`
	GuruName     null.String `db:"guru_name"`
	Bintang      int         `db:"bintang"`
	Catatan      null.String `db:"catatan"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	SupersededAt null.Time   `db:"superseded_at"`
	SupersededBy null.String `db:"superseded_by"`
}

func toPenilaianRow(pn penilaian.Penilaian) penilaianRow {
	return penilaianRow{
		ID:           pn.ID,
		ProyekID:     pn.ProyekID,
		GuruID:       pn.GuruID,
		Bintang:      pn.Bintang,
		Catatan:      null.NewString(pn.Catatan, pn.Catatan != ""),
		CreatedAt:    pn.CreatedAt.UTC(),
		UpdatedAt:    pn.UpdatedAt.UTC(),
		SupersededAt: null.TimeFromPtr(pn.SupersededAt),
		SupersededBy: null.NewString(pn.SupersededBy, pn.SupersededBy != ""),
	}
}

func (r penilaianRow) penilaian() penilaian.Penilaian {
	pn := penilaian.Penilaian{
		ID:           r.ID,
		ProyekID:     r.ProyekID,
		GuruID:       r.GuruID,
		GuruName:     r.GuruName.String,
		Bintang:      r.Bintang,
		Catatan:      r.Catatan.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		SupersededBy: r.SupersededBy.String,
	}
	if r.SupersededAt.Valid {
		at := r.SupersededAt.Time.UTC()
		pn.SupersededAt = &at
	}
	return pn
}

func (repo *penilaianRepository) GetActiveByProyek(ctx context.Context, proyekID string) (penilaian.Penilaian, error) {
	if _, err := uuid.Parse(proyekID); err != nil {
		return penilaian.Penilaian{}, penilaian.ErrNotFound
	}
	var row penilaianRow
	err := repo.db.GetContext(ctx, &row, selectPenilaian+` WHERE p.proyek_id = $1 AND p.superseded_at IS NULL`, proyekID)
	if err != nil {
		return penilaian.Penilaian{}, trapNoRowsErr(err, penilaian.ErrNotFound, "finding active penilaian")
	}
	return row.penilaian(), nil
}

func (repo *penilaianRepository) GetPenilaianByID(ctx context.Context, id string) (penilaian.Penilaian, error) {
	if _, err := uuid.Parse(id); err != nil {
		return penilaian.Penilaian{}, penilaian.ErrNotFound
	}
	var row penilaianRow
	if err := repo.db.GetContext(ctx, &row, selectPenilaian+` WHERE p.id = $1`, id); err != nil {
		return penilaian.Penilaian{}, trapNoRowsErr(err, penilaian.ErrNotFound, "finding penilaian by ID")
	}
	return row.penilaian(), nil
}

// CreatePenilaian runs the grading as one transaction:
// supersede the previous active row (if any), insert pn, link both rows, flag the proyek as graded.
// The partial unique index on active rows turns a lost race into ErrAlreadyGraded.
func (repo *penilaianRepository) CreatePenilaian(ctx context.Context, pn penilaian.Penilaian, supersededID string) (penilaian.Penilaian, error) {
	pn.ID = uuid.New().String()

	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if supersededID != "" {
			res, err := tx.ExecContext(ctx,
				`UPDATE penilaian SET superseded_at = $1 WHERE id = $2 AND proyek_id = $3 AND superseded_at IS NULL`,
				pn.CreatedAt.UTC(), supersededID, pn.ProyekID)
			if err != nil {
				return errors.Wrap(err, "superseding penilaian")
			}
			if n, err := res.RowsAffected(); err != nil || n != 1 {
				return penilaian.ErrConflict
			}
		}

		_, err := tx.NamedExecContext(ctx, `INSERT INTO penilaian
			(id, proyek_id, guru_id, bintang, catatan, created_at, updated_at)
			VALUES (:id, :proyek_id, :guru_id, :bintang, :catatan, :created_at, :updated_at)`, toPenilaianRow(pn))
		if err != nil {
			if constraint, ok := uniqueConstraint(err); ok && constraint == activePenilaianIndex {
				return penilaian.ErrAlreadyGraded
			}
			return errors.Wrap(err, "inserting penilaian")
		}

		if supersededID != "" {
			if _, err = tx.ExecContext(ctx, `UPDATE penilaian SET superseded_by = $1 WHERE id = $2`, pn.ID, supersededID); err != nil {
				return errors.Wrap(err, "linking superseded penilaian")
			}
		}

		res, err := tx.ExecContext(ctx, `UPDATE proyek SET status = $1, updated_at = $2 WHERE id = $3`,
			string(proyek.StatusDinilai), pn.CreatedAt.UTC(), pn.ProyekID)
		if err != nil {
			return errors.Wrap(err, "updating proyek status")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return proyek.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return penilaian.Penilaian{}, err
	}
	return pn, nil
}

func (repo *penilaianRepository) UpdatePenilaian(ctx context.Context, pn penilaian.Penilaian) (penilaian.Penilaian, error) {
	res, err := repo.db.NamedExecContext(ctx, `UPDATE penilaian SET
		bintang = :bintang, catatan = :catatan, updated_at = :updated_at
		WHERE id = :id AND superseded_at IS NULL`, toPenilaianRow(pn))
	if err != nil {
		return penilaian.Penilaian{}, errors.Wrap(err, "updating penilaian")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return penilaian.Penilaian{}, penilaian.ErrConflict
	}
	return pn, nil
}

func (repo *penilaianRepository) QueryHistory(ctx context.Context, proyekID string) ([]penilaian.Penilaian, error) {
	if _, err := uuid.Parse(proyekID); err != nil {
		return []penilaian.Penilaian{}, nil
	}
	var rows []penilaianRow
	err := repo.db.SelectContext(ctx, &rows,
		selectPenilaian+` WHERE p.proyek_id = $1 ORDER BY p.created_at, p.superseded_at NULLS LAST`, proyekID)
	if err != nil {
		return nil, errors.Wrap(err, "querying penilaian history")
	}
	res := make([]penilaian.Penilaian, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.penilaian())
	}
	return res, nil
}
