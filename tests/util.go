package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
	emailsvc "github.com/smkgaleri/galeri/services/email"
	inmemdb "github.com/smkgaleri/galeri/storage/database/inmem"
)

// Repos bundles the in-memory repositories of one test database.
type Repos struct {
	DB        *inmemdb.DB
	User      user.Repository
	Akademik  akademik.Repository
	Proyek    proyek.Repository
	Penilaian penilaian.Repository
}

func NewRepos() Repos {
	db := inmemdb.Open()
	return Repos{
		DB:        db,
		User:      inmemdb.NewUserRepository(db),
		Akademik:  inmemdb.NewAkademikRepository(db),
		Proyek:    inmemdb.NewProyekRepository(db),
		Penilaian: inmemdb.NewPenilaianRepository(db),
	}
}

// Services bundles the domain services built on Repos.
type Services struct {
	Mail      *emailsvc.ConsoleService
	User      user.ServiceInterface
	Akademik  *akademik.Service
	Proyek    *proyek.Service
	Penilaian *penilaian.Service
}

func NewServices(conf *core.Config, repos Repos) Services {
	mail := emailsvc.NewConsoleServiceMock(conf)
	return Services{
		Mail:      mail,
		User:      user.NewService(repos.User, repos.Akademik, mail, user.NewTokenGenerator(conf)),
		Akademik:  akademik.NewService(repos.Akademik),
		Proyek:    proyek.NewService(repos.Proyek),
		Penilaian: penilaian.NewService(repos.Penilaian, repos.Proyek),
	}
}

func CreateJurusan(t *testing.T, repo akademik.Repository, kode, nama string) akademik.Jurusan {
	j, err := repo.CreateJurusan(context.Background(), akademik.Jurusan{Kode: kode, Nama: nama, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateJurusan() failed: %v", err)
	}
	return j
}

func CreateKelas(t *testing.T, repo akademik.Repository, nama string, jurusan akademik.Jurusan) akademik.Kelas {
	k, err := repo.CreateKelas(context.Background(), akademik.Kelas{
		Nama:      nama,
		Tingkat:   akademik.Tingkat12,
		JurusanID: jurusan.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateKelas() failed: %v", err)
	}
	return k
}

// UserOpt customizes a user before CreateUser stores it.
type UserOpt func(usr *user.User)

func WithJurusan(jurusanID string) UserOpt {
	return func(usr *user.User) { usr.JurusanID = jurusanID }
}

func WithKelas(kls akademik.Kelas) UserOpt {
	return func(usr *user.User) { usr.KelasID, usr.JurusanID = kls.ID, kls.JurusanID }
}

func WithNIS(nis string) UserOpt {
	return func(usr *user.User) { usr.NIS = nis }
}

func WithNIP(nip string) UserOpt {
	return func(usr *user.User) { usr.NIP = nip }
}

func Inactive() UserOpt {
	return func(usr *user.User) { usr.IsActive = false }
}

// Unclaimed turns the user into a pre-seeded siswa record: no email, no password.
func Unclaimed() UserOpt {
	return func(usr *user.User) {
		usr.Claimed = false
		usr.Email = ""
		usr.PasswordHash = nil
	}
}

func CreatedAt(tstamp time.Time) UserOpt {
	return func(usr *user.User) { usr.CreatedAt, usr.UpdatedAt = tstamp.UTC(), tstamp.UTC() }
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd string, role user.Role, opts ...UserOpt) user.User {
	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  true,
		Claimed:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	for _, opt := range opts {
		opt(&usr)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateProyek(t *testing.T, repo proyek.Repository, owner user.User, judul string) proyek.Proyek {
	now := time.Now().UTC()
	p, err := repo.CreateProyek(context.Background(), proyek.Proyek{
		UserID:    owner.ID,
		JurusanID: owner.JurusanID,
		Judul:     judul,
		Deskripsi: "deskripsi " + judul,
		Status:    proyek.StatusTerkirim,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateProyek() failed: %v", err)
	}
	return p
}

func CreatePenilaian(t *testing.T, repo penilaian.Repository, p proyek.Proyek, grader user.User, bintang int) penilaian.Penilaian {
	now := time.Now().UTC()
	pn, err := repo.CreatePenilaian(context.Background(), penilaian.Penilaian{
		ProyekID:  p.ID,
		GuruID:    grader.ID,
		Bintang:   bintang,
		CreatedAt: now,
		UpdatedAt: now,
	}, "")
	if err != nil {
		t.Fatalf("CreatePenilaian() failed: %v", err)
	}
	return pn
}
