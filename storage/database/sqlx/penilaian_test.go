package sqlxrepos_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
	"github.com/smkgaleri/galeri/storage/database"
	sqlxrepos "github.com/smkgaleri/galeri/storage/database/sqlx"
	"github.com/smkgaleri/galeri/tests"
)

// openTestDB connects to TEST_DATABASE_URL, migrates it and empties every table.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB))
	_, err = db.Exec(`TRUNCATE penilaian, proyek, users, kelas, jurusan CASCADE`)
	require.NoError(t, err)
	return db
}

func TestPenilaianRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	akademikRepo := sqlxrepos.NewAkademikRepository(db)
	userRepo := sqlxrepos.NewUserRepository(db)
	proyekRepo := sqlxrepos.NewProyekRepository(db)
	repo := sqlxrepos.NewPenilaianRepository(db)

	rpl := testutil.CreateJurusan(t, akademikRepo, "RPL", "Rekayasa Perangkat Lunak")
	siti := testutil.CreateUser(t, userRepo, "Bu Siti", "siti@smk.sch.id", "", user.RoleGuru,
		testutil.WithNIP("1980010001"), testutil.WithJurusan(rpl.ID))
	admin := testutil.CreateUser(t, userRepo, "Admin", "admin@smk.sch.id", "", user.RoleAdmin)
	rina := testutil.CreateUser(t, userRepo, "Rina", "rina@smk.sch.id", "", user.RoleSiswa,
		testutil.WithNIS("2024001"), testutil.WithJurusan(rpl.ID))
	p := testutil.CreateProyek(t, proyekRepo, rina, "Aplikasi Kasir")

	_, err := repo.GetActiveByProyek(ctx, p.ID)
	assert.Equal(t, penilaian.ErrNotFound, err)

	first := testutil.CreatePenilaian(t, repo, p, siti, 3)

	graded, err := proyekRepo.GetProyekByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, proyek.StatusDinilai, graded.Status)

	now := time.Now().UTC()
	_, err = repo.CreatePenilaian(ctx, penilaian.Penilaian{ProyekID: p.ID, GuruID: admin.ID, Bintang: 5, CreatedAt: now, UpdatedAt: now}, "")
	assert.Equal(t, penilaian.ErrAlreadyGraded, err)

	override, err := repo.CreatePenilaian(ctx, penilaian.Penilaian{ProyekID: p.ID, GuruID: admin.ID, Bintang: 5, CreatedAt: now, UpdatedAt: now}, first.ID)
	require.NoError(t, err)

	// superseding twice is a lost race
	_, err = repo.CreatePenilaian(ctx, penilaian.Penilaian{ProyekID: p.ID, GuruID: admin.ID, Bintang: 4, CreatedAt: now, UpdatedAt: now}, first.ID)
	assert.Equal(t, penilaian.ErrConflict, err)

	first.Bintang = 1
	_, err = repo.UpdatePenilaian(ctx, first)
	assert.Equal(t, penilaian.ErrConflict, err)

	active, err := repo.GetActiveByProyek(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, override.ID, active.ID)
	assert.Equal(t, "Admin", active.GuruName)

	history, err := repo.QueryHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, override.ID, history[0].SupersededBy)
	assert.NotNil(t, history[0].SupersededAt)
	assert.True(t, history[1].IsActive())

	// graders cannot be deleted; owners take their proyeks with them
	assert.Equal(t, user.ErrHasPenilaian, userRepo.DeleteUsersByID(ctx, siti.ID))
	require.NoError(t, userRepo.DeleteUsersByID(ctx, rina.ID))
	_, err = proyekRepo.GetProyekByID(ctx, p.ID)
	assert.Equal(t, proyek.ErrNotFound, err)
	assert.NoError(t, userRepo.DeleteUsersByID(ctx, siti.ID))
}
