package penilaian_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
	"github.com/smkgaleri/galeri/tests"
)

type fixture struct {
	repos testutil.Repos
	svc   *penilaian.Service
	admin user.User
	siti  user.User // guru RPL
	andre user.User // guru RPL
	joko  user.User // guru DKV
	rina  user.User // siswa RPL
	p     proyek.Proyek
}

func setup(t *testing.T) fixture {
	repos := testutil.NewRepos()
	svcs := testutil.NewServices(core.NewTestConfig(), repos)

	rpl := testutil.CreateJurusan(t, repos.Akademik, "RPL", "Rekayasa Perangkat Lunak")
	dkv := testutil.CreateJurusan(t, repos.Akademik, "DKV", "Desain Komunikasi Visual")
	kls := testutil.CreateKelas(t, repos.Akademik, "XII RPL 1", rpl)

	f := fixture{repos: repos, svc: svcs.Penilaian}
	f.admin = testutil.CreateUser(t, repos.User, "Admin", "admin@smk.sch.id", "", user.RoleAdmin)
	f.siti = testutil.CreateUser(t, repos.User, "Bu Siti", "siti@smk.sch.id", "", user.RoleGuru, testutil.WithNIP("1"), testutil.WithJurusan(rpl.ID))
	f.andre = testutil.CreateUser(t, repos.User, "Pak Andre", "andre@smk.sch.id", "", user.RoleGuru, testutil.WithNIP("2"), testutil.WithJurusan(rpl.ID))
	f.joko = testutil.CreateUser(t, repos.User, "Pak Joko", "joko@smk.sch.id", "", user.RoleGuru, testutil.WithNIP("3"), testutil.WithJurusan(dkv.ID))
	f.rina = testutil.CreateUser(t, repos.User, "Rina", "rina@smk.sch.id", "", user.RoleSiswa, testutil.WithNIS("2024001"), testutil.WithKelas(kls))
	f.p = testutil.CreateProyek(t, repos.Proyek, f.rina, "Aplikasi Kasir")
	return f
}

func TestService_CheckPermission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("ungraded", func(t *testing.T) {
		tests := []struct {
			name  string
			actor user.User
			want  penilaian.Permission
		}{
			{"guru same jurusan", f.siti, penilaian.Permission{CanGrade: true, SameJurusan: true}},
			{"guru other jurusan", f.joko, penilaian.Permission{}},
			{"admin", f.admin, penilaian.Permission{CanGrade: true, SameJurusan: true, IsAdmin: true}},
			{"siswa", f.rina, penilaian.Permission{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := f.svc.CheckPermission(ctx, tt.actor, f.p.ID)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	})

	pn := testutil.CreatePenilaian(t, f.repos.Penilaian, f.p, f.siti, 4)

	t.Run("graded", func(t *testing.T) {
		tests := []struct {
			name         string
			actor        user.User
			wantGrade    bool
			wantSame     bool
			wantOverride bool
		}{
			{"grader", f.siti, false, true, false},
			{"other guru same jurusan", f.andre, false, true, false},
			{"guru other jurusan", f.joko, false, false, false},
			{"admin", f.admin, false, true, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := f.svc.CheckPermission(ctx, tt.actor, f.p.ID)
				require.NoError(t, err)
				assert.True(t, got.AlreadyGraded)
				assert.Equal(t, tt.wantGrade, got.CanGrade)
				assert.Equal(t, tt.wantSame, got.SameJurusan)
				assert.Equal(t, tt.wantOverride, got.CanOverride)
				require.NotNil(t, got.ExistingGrader)
				assert.Equal(t, "Bu Siti", *got.ExistingGrader)
				assert.Equal(t, f.siti.ID, got.ExistingGraderID)
				assert.Equal(t, pn.ID, got.PenilaianID)
			})
		}
	})

	t.Run("unknown proyek", func(t *testing.T) {
		_, err := f.svc.CheckPermission(ctx, f.siti, "8a7f0a7e-5e4e-4f36-9a39-0d2a3d3c6c11")
		assert.Equal(t, proyek.ErrNotFound, err)
	})
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	np := func(f fixture, bintang int) penilaian.NewPenilaian {
		return penilaian.NewPenilaian{ProyekID: f.p.ID, Bintang: bintang, Catatan: "ok"}
	}

	t.Run("guru same jurusan", func(t *testing.T) {
		f := setup(t)
		pn, err := f.svc.Create(ctx, f.siti, np(f, 4))
		require.NoError(t, err)
		assert.Equal(t, f.siti.ID, pn.GuruID)
		assert.Equal(t, "Bu Siti", pn.GuruName)
		assert.True(t, pn.IsActive())

		p, err := f.repos.Proyek.GetProyekByID(ctx, f.p.ID)
		require.NoError(t, err)
		assert.Equal(t, proyek.StatusDinilai, p.Status)
	})

	t.Run("cross jurusan", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, f.joko, np(f, 4))
		assert.Equal(t, penilaian.ErrCrossJurusan, err)
	})

	t.Run("siswa", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, f.rina, np(f, 4))
		assert.Equal(t, penilaian.ErrRoleNotAllowed, err)
	})

	t.Run("already graded", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, f.siti, np(f, 4))
		require.NoError(t, err)
		_, err = f.svc.Create(ctx, f.andre, np(f, 5))
		assert.Equal(t, penilaian.ErrAlreadyGraded, err)
		_, err = f.svc.Create(ctx, f.siti, np(f, 5))
		assert.Equal(t, penilaian.ErrAlreadyGraded, err, "the grader edits instead")
	})

	t.Run("admin override", func(t *testing.T) {
		f := setup(t)
		orig, err := f.svc.Create(ctx, f.siti, np(f, 2))
		require.NoError(t, err)

		pn, err := f.svc.Create(ctx, f.admin, np(f, 5))
		require.NoError(t, err)
		assert.Equal(t, f.admin.ID, pn.GuruID)

		active, err := f.svc.GetActive(ctx, f.p.ID)
		require.NoError(t, err)
		assert.Equal(t, pn.ID, active.ID)

		history, err := f.svc.History(ctx, f.p.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, orig.ID, history[0].ID)
		assert.NotNil(t, history[0].SupersededAt)
		assert.Equal(t, pn.ID, history[0].SupersededBy)
		assert.Equal(t, pn.ID, history[1].ID)
		assert.True(t, history[1].IsActive())

		// the superseded penilaian can no longer be edited
		b := 3
		_, err = f.svc.Update(ctx, f.siti, orig.ID, penilaian.UpdatePenilaian{Bintang: &b})
		assert.Equal(t, penilaian.ErrConflict, err)
	})
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pn, err := f.svc.Create(ctx, f.siti, penilaian.NewPenilaian{ProyekID: f.p.ID, Bintang: 3, Catatan: "cukup"})
	require.NoError(t, err)

	five, note := 5, "bagus sekali"
	tests := []struct {
		name    string
		actor   user.User
		id      string
		up      penilaian.UpdatePenilaian
		wantErr error
	}{
		{name: "other guru", actor: f.andre, id: pn.ID, up: penilaian.UpdatePenilaian{Bintang: &five}, wantErr: penilaian.ErrNotGrader},
		{name: "admin", actor: f.admin, id: pn.ID, up: penilaian.UpdatePenilaian{Bintang: &five}, wantErr: penilaian.ErrNotGrader},
		{name: "siswa", actor: f.rina, id: pn.ID, up: penilaian.UpdatePenilaian{Bintang: &five}, wantErr: penilaian.ErrRoleNotAllowed},
		{name: "unknown", actor: f.siti, id: "missing", up: penilaian.UpdatePenilaian{Bintang: &five}, wantErr: penilaian.ErrNotFound},
		{name: "grader", actor: f.siti, id: pn.ID, up: penilaian.UpdatePenilaian{Bintang: &five, Catatan: &note}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Update(ctx, tt.actor, tt.id, tt.up)
			if err != tt.wantErr {
				t.Fatalf("Update() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				assert.Equal(t, pn.ID, got.ID)
				assert.Equal(t, 5, got.Bintang)
				assert.Equal(t, "bagus sekali", got.Catatan)
			}
		})
	}
}

func TestService_GetActive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.GetActive(ctx, f.p.ID)
	assert.Equal(t, penilaian.ErrNotFound, err)

	_, err = f.svc.GetActive(ctx, "missing")
	assert.Equal(t, proyek.ErrNotFound, err)
}

func TestNewPenilaian_Validate(t *testing.T) {
	validate := core.NewValidator(core.NewTranslator())
	tests := []struct {
		name    string
		np      penilaian.NewPenilaian
		wantErr bool
	}{
		{"valid", penilaian.NewPenilaian{ProyekID: "8a7f0a7e-5e4e-4f36-9a39-0d2a3d3c6c11", Bintang: 5}, false},
		{"zero stars", penilaian.NewPenilaian{ProyekID: "8a7f0a7e-5e4e-4f36-9a39-0d2a3d3c6c11", Bintang: 0}, true},
		{"six stars", penilaian.NewPenilaian{ProyekID: "8a7f0a7e-5e4e-4f36-9a39-0d2a3d3c6c11", Bintang: 6}, true},
		{"bad proyek id", penilaian.NewPenilaian{ProyekID: "p1", Bintang: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.np.Validate(validate); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
