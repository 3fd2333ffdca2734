package user_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/user"
	"github.com/smkgaleri/galeri/tests"
)

const pwd = "Galeri#2024"

type fixture struct {
	repos testutil.Repos
	svcs  testutil.Services
	rpl   akademik.Jurusan
	kelas akademik.Kelas
}

func setup(t *testing.T) fixture {
	repos := testutil.NewRepos()
	f := fixture{repos: repos, svcs: testutil.NewServices(core.NewTestConfig(), repos)}
	f.rpl = testutil.CreateJurusan(t, repos.Akademik, "RPL", "Rekayasa Perangkat Lunak")
	f.kelas = testutil.CreateKelas(t, repos.Akademik, "XII RPL 1", f.rpl)
	return f
}

func fieldsOf(t *testing.T, err error) map[string][]string {
	t.Helper()
	fields, ok := core.FieldErrors(errors.Cause(err), core.NewTranslator())
	if !ok {
		t.Fatalf("FieldErrors(%v) is not a validation error", err)
	}
	return fields
}

func TestService_Claim(t *testing.T) {
	ctx := context.Background()
	claim := func(nis, email string) user.ClaimAccount {
		return user.ClaimAccount{NIS: nis, Email: email, Password: pwd, PasswordConfirm: pwd}
	}

	t.Run("unclaimed record", func(t *testing.T) {
		f := setup(t)
		andi := testutil.CreateUser(t, f.repos.User, "Andi", "", "", user.RoleSiswa,
			testutil.WithNIS("2024101"), testutil.WithKelas(f.kelas), testutil.Unclaimed())

		usr, err := f.svcs.User.Claim(ctx, claim("2024101", "andi@smk.sch.id"))
		require.NoError(t, err)
		assert.Equal(t, andi.ID, usr.ID)
		assert.True(t, usr.Claimed)
		assert.Equal(t, "andi@smk.sch.id", usr.Email)
		assert.NoError(t, usr.CheckPassword(pwd))

		msgs := f.svcs.Mail.SentMessages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "andi@smk.sch.id", msgs[0].To[0].Address)
		assert.Contains(t, msgs[0].TextContent, "2024101")

		byLogin, err := f.svcs.User.GetByLogin(ctx, "ANDI@smk.sch.id")
		require.NoError(t, err)
		assert.Equal(t, andi.ID, byLogin.ID)

		_, err = f.svcs.User.Claim(ctx, claim("2024101", "andi2@smk.sch.id"))
		assert.Equal(t, user.ErrAlreadyClaimed, err, "second claim")
	})

	t.Run("unknown NIS", func(t *testing.T) {
		f := setup(t)
		_, err := f.svcs.User.Claim(ctx, claim("9999", "x@smk.sch.id"))
		assert.Equal(t, user.ErrNISNotFound, err)
	})

	t.Run("NIS of a non siswa", func(t *testing.T) {
		f := setup(t)
		testutil.CreateUser(t, f.repos.User, "Odd", "odd@smk.sch.id", pwd, user.RoleGuru, testutil.WithNIS("2024555"))
		_, err := f.svcs.User.Claim(ctx, claim("2024555", "x@smk.sch.id"))
		assert.Equal(t, user.ErrNISNotFound, err)
	})

	t.Run("deactivated record", func(t *testing.T) {
		f := setup(t)
		testutil.CreateUser(t, f.repos.User, "Budi", "", "", user.RoleSiswa,
			testutil.WithNIS("2024102"), testutil.WithKelas(f.kelas), testutil.Unclaimed(), testutil.Inactive())
		_, err := f.svcs.User.Claim(ctx, claim("2024102", "budi@smk.sch.id"))
		assert.Equal(t, user.ErrAccountDeactivated, err)
	})

	t.Run("email taken", func(t *testing.T) {
		f := setup(t)
		testutil.CreateUser(t, f.repos.User, "Rina", "rina@smk.sch.id", pwd, user.RoleSiswa,
			testutil.WithNIS("2024001"), testutil.WithKelas(f.kelas))
		testutil.CreateUser(t, f.repos.User, "Andi", "", "", user.RoleSiswa,
			testutil.WithNIS("2024101"), testutil.WithKelas(f.kelas), testutil.Unclaimed())

		_, err := f.svcs.User.Claim(ctx, claim("2024101", "rina@smk.sch.id"))
		assert.Contains(t, fieldsOf(t, err), "email")
		assert.Empty(t, f.svcs.Mail.SentMessages())
	})
}

func TestService_ImportSiswa(t *testing.T) {
	ctx := context.Background()

	t.Run("imports every row", func(t *testing.T) {
		f := setup(t)
		users, err := f.svcs.User.ImportSiswa(ctx, []user.NewSiswa{
			{Name: " Andi ", NIS: "2024101", KelasID: f.kelas.ID},
			{Name: "Budi", NIS: "2024102", KelasID: f.kelas.ID},
		})
		require.NoError(t, err)
		require.Len(t, users, 2)
		for _, usr := range users {
			assert.True(t, usr.IsUnclaimed())
			assert.True(t, usr.IsActive)
			assert.Empty(t, usr.Email)
			assert.Equal(t, f.rpl.ID, usr.JurusanID)
		}
		assert.Equal(t, "Andi", users[0].Name)

		available, err := f.svcs.User.ListAvailableSiswa(ctx, f.kelas.ID)
		require.NoError(t, err)
		assert.Len(t, available, 2)
	})

	tests := []struct {
		name      string
		rows      func(f fixture) []user.NewSiswa
		wantField string
	}{
		{
			name: "duplicate NIS in the file",
			rows: func(f fixture) []user.NewSiswa {
				return []user.NewSiswa{
					{Name: "Andi", NIS: "2024101", KelasID: f.kelas.ID},
					{Name: "Budi", NIS: "2024101", KelasID: f.kelas.ID},
				}
			},
			wantField: "row 2",
		},
		{
			name: "NIS already stored",
			rows: func(f fixture) []user.NewSiswa {
				return []user.NewSiswa{{Name: "Rina", NIS: "2024001", KelasID: f.kelas.ID}}
			},
			wantField: "row 1",
		},
		{
			name: "unknown kelas",
			rows: func(f fixture) []user.NewSiswa {
				return []user.NewSiswa{
					{Name: "Andi", NIS: "2024101", KelasID: f.kelas.ID},
					{Name: "Budi", NIS: "2024102", KelasID: "8a7f0a7e-5e4e-4f36-9a39-0d2a3d3c6c11"},
				}
			},
			wantField: "row 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			testutil.CreateUser(t, f.repos.User, "Rina", "rina@smk.sch.id", pwd, user.RoleSiswa,
				testutil.WithNIS("2024001"), testutil.WithKelas(f.kelas))

			_, err := f.svcs.User.ImportSiswa(ctx, tt.rows(f))
			assert.Contains(t, fieldsOf(t, err), tt.wantField)

			// nothing is imported
			available, err := f.svcs.User.ListAvailableSiswa(ctx, f.kelas.ID)
			require.NoError(t, err)
			assert.Empty(t, available)
		})
	}
}

// uniquenessFailure is a user.Repository whose uniqueness check always fails with err.
type uniquenessFailure struct {
	user.Repository
	err error
}

func (r uniquenessFailure) CheckUniqueness(context.Context, string, string, string, ...string) error {
	return r.err
}

func TestService_ImportSiswa_storageError(t *testing.T) {
	f := setup(t)
	dbErr := errors.New("connection reset by peer")
	svc := user.NewService(uniquenessFailure{Repository: f.repos.User, err: dbErr}, f.repos.Akademik,
		f.svcs.Mail, user.NewTokenGenerator(core.NewTestConfig()))

	_, err := svc.ImportSiswa(context.Background(), []user.NewSiswa{{Name: "Andi", NIS: "2024101", KelasID: f.kelas.ID}})
	require.Error(t, err)
	assert.Equal(t, dbErr, errors.Cause(err))
	_, isValidation := core.FieldErrors(errors.Cause(err), core.NewTranslator())
	assert.False(t, isValidation, "storage failures are not reported as a duplicate NIS")
}

func TestService_ListAvailableSiswa(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testutil.CreateKelas(t, f.repos.Akademik, "XII RPL 2", f.rpl)

	testutil.CreateUser(t, f.repos.User, "Citra", "", "", user.RoleSiswa, testutil.WithNIS("3"), testutil.WithKelas(f.kelas), testutil.Unclaimed())
	testutil.CreateUser(t, f.repos.User, "Andi", "", "", user.RoleSiswa, testutil.WithNIS("1"), testutil.WithKelas(f.kelas), testutil.Unclaimed())
	testutil.CreateUser(t, f.repos.User, "Budi", "", "", user.RoleSiswa, testutil.WithNIS("2"), testutil.WithKelas(f.kelas), testutil.Unclaimed(), testutil.Inactive())
	testutil.CreateUser(t, f.repos.User, "Rina", "rina@smk.sch.id", pwd, user.RoleSiswa, testutil.WithNIS("4"), testutil.WithKelas(f.kelas))
	testutil.CreateUser(t, f.repos.User, "Dodi", "", "", user.RoleSiswa, testutil.WithNIS("5"), testutil.WithKelas(other), testutil.Unclaimed())

	tests := []struct {
		name    string
		kelasID string
		want    []string
	}{
		{"kelas", f.kelas.ID, []string{"Andi", "Citra"}},
		{"other kelas", other.ID, []string{"Dodi"}},
		{"empty id", "  ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := f.svcs.User.ListAvailableSiswa(ctx, tt.kelasID)
			require.NoError(t, err)
			names := make([]string, 0, len(users))
			for _, usr := range users {
				names = append(names, usr.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	siswa, err := f.svcs.User.Create(ctx, user.NewUser{
		Name: "Rina", Email: "rina@smk.sch.id", Role: user.RoleSiswa, NIS: "2024001", KelasID: f.kelas.ID, Password: pwd,
	})
	require.NoError(t, err)
	assert.Equal(t, f.rpl.ID, siswa.JurusanID, "jurusan follows the kelas")
	assert.True(t, siswa.Claimed)

	guru, err := f.svcs.User.Create(ctx, user.NewUser{
		Name: "Bu Siti", Email: "siti@smk.sch.id", Role: user.RoleGuru, NIP: "1980010001", JurusanID: f.rpl.ID, Password: pwd,
	})
	require.NoError(t, err)
	assert.Equal(t, f.rpl.ID, guru.JurusanID)

	_, err = f.svcs.User.Create(ctx, user.NewUser{
		Name: "Pak Joko", Email: "joko@smk.sch.id", Role: user.RoleGuru, NIP: "1980010002",
		JurusanID: "8a7f0a7e-5e4e-4f36-9a39-0d2a3d3c6c11", Password: pwd,
	})
	assert.Contains(t, fieldsOf(t, err), "jurusan_id")

	err = f.svcs.User.CheckUniqueness(ctx, "rina@smk.sch.id", "", "")
	assert.Contains(t, fieldsOf(t, err), "email")
	err = f.svcs.User.CheckUniqueness(ctx, "", "2024001", "")
	assert.Contains(t, fieldsOf(t, err), "nis")
	err = f.svcs.User.CheckUniqueness(ctx, "", "", "1980010001")
	assert.Contains(t, fieldsOf(t, err), "nip")
	assert.NoError(t, f.svcs.User.CheckUniqueness(ctx, "rina@smk.sch.id", "", "", siswa))
}

func TestService_SetPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.repos.User, "Bu Siti", "siti@smk.sch.id", pwd, user.RoleGuru, testutil.WithNIP("1980010001"))

	require.NoError(t, f.svcs.User.SetPassword(ctx, "1980010001", "NewPass#1"))
	usr, err := f.svcs.User.GetByLogin(ctx, "siti@smk.sch.id")
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("NewPass#1"))

	assert.Equal(t, user.ErrNotFound, f.svcs.User.SetPassword(ctx, "nobody", "NewPass#1"))
}

var resetLinkRegex = regexp.MustCompile(`/password-reset/([A-Za-z0-9_-]+)/([A-Za-z0-9_-]+)`)

func TestService_PasswordReset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rina := testutil.CreateUser(t, f.repos.User, "Rina", "rina@smk.sch.id", pwd, user.RoleSiswa,
		testutil.WithNIS("2024001"), testutil.WithKelas(f.kelas))
	testutil.CreateUser(t, f.repos.User, "Budi", "budi@smk.sch.id", pwd, user.RoleSiswa,
		testutil.WithNIS("2024002"), testutil.WithKelas(f.kelas), testutil.Inactive())

	for _, email := range []string{"nobody@smk.sch.id", "budi@smk.sch.id", "2024001"} {
		assert.Equal(t, user.ErrNotFound, f.svcs.User.RequestPasswordReset(ctx, email), email)
	}
	assert.Empty(t, f.svcs.Mail.SentMessages())

	require.NoError(t, f.svcs.User.RequestPasswordReset(ctx, " RINA@smk.sch.id "))
	msgs := f.svcs.Mail.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "rina@smk.sch.id", msgs[0].To[0].Address)
	link := resetLinkRegex.FindStringSubmatch(msgs[0].TextContent)
	require.Len(t, link, 3, msgs[0].TextContent)
	uid, token := link[1], link[2]
	assert.Equal(t, user.EncodeUID(rina), uid)

	reset := func(uid, token string) user.ResetPassword {
		return user.ResetPassword{UID: uid, Token: token, Password: "Kanvas#88", PasswordConfirm: "Kanvas#88"}
	}
	tests := []struct {
		name      string
		rp        user.ResetPassword
		wantField string
	}{
		{"uid not base64", reset("!!", token), "uid"},
		{"uid not an id", reset(user.EncodeUID(user.User{ID: "lol"}), token), "uid"},
		{"unknown user", reset(user.EncodeUID(user.User{ID: "8a7f0a7e-5e4e-4f36-9a39-0d2a3d3c6c11"}), token), "uid"},
		{"bad token", reset(uid, "HE4TS-sigsig-sig"), "token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svcs.User.ResetPassword(ctx, tt.rp)
			assert.Contains(t, fieldsOf(t, err), tt.wantField)
		})
	}

	require.NoError(t, f.svcs.User.ResetPassword(ctx, reset(uid, token)))
	usr, err := f.svcs.User.GetByID(ctx, rina.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("Kanvas#88"))

	// the link is single use
	err = f.svcs.User.ResetPassword(ctx, reset(uid, token))
	assert.Contains(t, fieldsOf(t, err), "token")
}
