package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smkgaleri/galeri/apps/api/echo"
	"github.com/smkgaleri/galeri/core/user"
	"github.com/smkgaleri/galeri/tests"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.repos.User, "Budi", "budi@smk.sch.id", pwd, user.RoleSiswa,
		testutil.WithNIS("2024002"), testutil.WithKelas(app.rplKelas), testutil.Inactive())

	body := func(login, password string) []byte {
		return marshallObj(t, echoapi.LoginRequest{Login: login, Password: password})
	}
	invalidCreds := marshallObj(t, httpErr{Message: "invalid credentials"})

	tests := []httpTest{
		{name: "wrong password", body: body("siti@smk.sch.id", "Galeri#2025"), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
		{name: "unknown login", body: body("nobody@smk.sch.id", pwd), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
		{name: "deactivated", body: body("budi@smk.sch.id", pwd), wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Message: "account deactivated"})},
		{name: "email", body: body("  SITI@smk.sch.id ", pwd), wantCode: http.StatusOK},
		{name: "NIP", body: body("1980010001", pwd), wantCode: http.StatusOK},
		{name: "NIS", body: body("2024001", pwd), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/api/auth/login", "", tt.body)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp echoapi.AuthResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Token)
				assert.False(t, resp.User.LastLogin.IsZero())

				me := app.do(http.MethodGet, "/api/auth/me", resp.Token)
				assert.Equal(t, http.StatusOK, me.Code)
				var usr user.User
				decodeData(t, me, &usr)
				assert.Equal(t, resp.User.ID, usr.ID)
			}
		})
	}

	t.Run("missing fields", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/auth/login", "", []byte(`{}`))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeErr(t, rec)
		assert.Contains(t, resp.Errors, "login")
		assert.Contains(t, resp.Errors, "password")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/auth/login", "", []byte(`{"login":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_authApi_token(t *testing.T) {
	app := setup(t)
	token := getToken(t, app, app.guruRPL)

	tests := []httpTest{
		{name: "missing token", method: http.MethodGet, path: "/api/auth/me", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "invalid token", method: http.MethodGet, path: "/api/auth/me", token: "not.a.jwt", wantCode: http.StatusUnauthorized},
		{name: "me", method: http.MethodGet, path: "/api/auth/me", token: token, wantCode: http.StatusOK},
		{name: "refresh", method: http.MethodPost, path: "/api/auth/refresh", token: token, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("deleted user", func(t *testing.T) {
		gone := testutil.CreateUser(t, app.repos.User, "Gone", "gone@smk.sch.id", pwd, user.RoleGuru,
			testutil.WithNIP("1980010009"), testutil.WithJurusan(app.rpl.ID))
		goneToken := getToken(t, app, gone)
		require.NoError(t, app.svcs.User.Delete(context.Background(), gone.ID))

		rec := app.do(http.MethodGet, "/api/auth/me", goneToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_authApi_claim(t *testing.T) {
	app := setup(t)
	andi := testutil.CreateUser(t, app.repos.User, "Andi", "", "", user.RoleSiswa,
		testutil.WithNIS("2024101"), testutil.WithKelas(app.rplKelas), testutil.Unclaimed())

	claim := func(nis, email, password, confirm string) []byte {
		return marshallObj(t, user.ClaimAccount{NIS: nis, Email: email, Password: password, PasswordConfirm: confirm})
	}

	t.Run("available before claim", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/siswa/available?kelas_id="+url.QueryEscape(app.rplKelas.ID), "")
		assert.Equal(t, http.StatusOK, rec.Code)
		var available []user.User
		decodeData(t, rec, &available)
		require.Len(t, available, 1)
		assert.Equal(t, andi.ID, available[0].ID)
	})

	t.Run("password mismatch", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/auth/claim", "", claim("2024101", "andi@smk.sch.id", pwd, "Galeri#2025"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decodeErr(t, rec).Errors, "password_confirmation")
	})

	t.Run("weak password", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/auth/claim", "", claim("2024101", "andi@smk.sch.id", "12345678", "12345678"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decodeErr(t, rec).Errors, "password")
	})

	t.Run("unknown NIS", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Message: user.ErrNISNotFound.Error()})}
		rec := app.do(http.MethodPost, "/api/auth/claim", "", claim("9999999", "x@smk.sch.id", pwd, pwd))
		checkCodeAndData(t, tt, rec)
	})

	t.Run("claim", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/auth/claim", "", claim(" 2024101 ", "Andi@SMK.sch.id", pwd, pwd))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, andi.ID, resp.User.ID)
		assert.Equal(t, "andi@smk.sch.id", resp.User.Email)
		assert.True(t, resp.User.Claimed)
		assert.Len(t, app.svcs.Mail.SentMessages(), 1)

		login := app.do(http.MethodPost, "/api/auth/login", "", marshallObj(t, echoapi.LoginRequest{Login: "andi@smk.sch.id", Password: pwd}))
		assert.Equal(t, http.StatusOK, login.Code)
	})

	t.Run("already claimed", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Message: user.ErrAlreadyClaimed.Error()})}
		rec := app.do(http.MethodPost, "/api/auth/claim", "", claim("2024101", "andi2@smk.sch.id", pwd, pwd))
		checkCodeAndData(t, tt, rec)

		avail := app.do(http.MethodGet, "/api/siswa/available?kelas_id="+url.QueryEscape(app.rplKelas.ID), "")
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"success":true,"data":[]}`)}, avail)
	})
}

func Test_userApi(t *testing.T) {
	app := setup(t)
	adminToken := getToken(t, app, app.admin)
	forbidden := marshallObj(t, httpErr{Message: "permission denied"})

	t.Run("admins only", func(t *testing.T) {
		tests := []httpTest{
			{name: "guru", token: getToken(t, app, app.guruRPL), wantCode: http.StatusForbidden, wantData: forbidden},
			{name: "siswa", token: getToken(t, app, app.siswa), wantCode: http.StatusForbidden, wantData: forbidden},
			{name: "anonymous", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				checkCodeAndData(t, tt, app.do(http.MethodGet, "/api/users", tt.token))
			})
		}
	})

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name  string
			query url.Values
			want  []string
		}{
			{"all", nil, []string{"Admin", "Bu Siti", "Pak Joko", "Rina"}},
			{"gurus", url.Values{"role": {"guru"}}, []string{"Bu Siti", "Pak Joko"}},
			{"jurusan", url.Values{"jurusan_id": {app.rpl.ID}}, []string{"Bu Siti", "Rina"}},
			{"search", url.Values{"search": {"joko"}}, []string{"Pak Joko"}},
			{"ordering", url.Values{"role": {"guru"}, "ordering": {"-name"}}, []string{"Pak Joko", "Bu Siti"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := app.do(http.MethodGet, "/api/users?"+tt.query.Encode(), adminToken)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var users []user.User
				decodeData(t, rec, &users)
				names := make([]string, 0, len(users))
				for _, usr := range users {
					names = append(names, usr.Name)
				}
				assert.Equal(t, tt.want, names)
			})
		}

		rec := app.do(http.MethodGet, "/api/users?is_active=maybe", adminToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create", func(t *testing.T) {
		nu := user.NewUser{
			Name: "Pak Andre", Email: "andre@smk.sch.id", Role: user.RoleGuru, NIP: "1980010003",
			JurusanID: app.rpl.ID, Password: pwd, PasswordConfirm: pwd,
		}
		rec := app.do(http.MethodPost, "/api/users", adminToken, marshallObj(t, nu))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		decodeData(t, rec, &usr)
		assert.Equal(t, app.rpl.ID, usr.JurusanID)

		rec = app.do(http.MethodPost, "/api/users", adminToken, marshallObj(t, nu))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decodeErr(t, rec).Errors, "email")
	})

	t.Run("import siswa", func(t *testing.T) {
		body := marshallObj(t, echoapi.ImportSiswaRequest{Siswa: []user.NewSiswa{
			{Name: "Andi", NIS: "2024101", KelasID: app.rplKelas.ID},
			{Name: "Budi", NIS: "2024102", KelasID: app.rplKelas.ID},
		}})
		rec := app.do(http.MethodPost, "/api/users/import", adminToken, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var users []user.User
		decodeData(t, rec, &users)
		assert.Len(t, users, 2)

		rec = app.do(http.MethodPost, "/api/users/import", adminToken, body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("deactivate self", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/api/users/"+app.admin.ID, adminToken, []byte(`{"is_active":false}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: forbidden}, rec)
	})

	t.Run("update", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/api/users/"+app.guruDKV.ID, adminToken, []byte(`{"name":"Pak Joko S."}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		decodeData(t, rec, &usr)
		assert.Equal(t, "Pak Joko S.", usr.Name)
		assert.Equal(t, app.guruDKV.Email, usr.Email)
	})

	t.Run("delete", func(t *testing.T) {
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: forbidden},
			app.do(http.MethodDelete, "/api/users/"+app.admin.ID, adminToken))

		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: forbidden},
			app.do(http.MethodDelete, "/api/users?id="+app.guruDKV.ID+"&id="+app.admin.ID, adminToken))
		rec := app.do(http.MethodGet, "/api/users/"+app.guruDKV.ID, adminToken)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = app.do(http.MethodDelete, "/api/users?id="+app.guruDKV.ID+"&id="+app.siswa.ID, adminToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		for _, id := range []string{app.guruDKV.ID, app.siswa.ID} {
			rec = app.do(http.MethodGet, "/api/users/"+id, adminToken)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		}
	})

	t.Run("roles", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusOK, wantData: marshallObj(t, echoapi.Response{Success: true, Data: user.Roles})}
		checkCodeAndData(t, tt, app.do(http.MethodGet, "/api/users/roles", adminToken))
	})
}

func Test_userApi_deleteGrader(t *testing.T) {
	app := setup(t)
	adminToken := getToken(t, app, app.admin)
	p := testutil.CreateProyek(t, app.repos.Proyek, app.siswa, "Aplikasi Kasir")
	testutil.CreatePenilaian(t, app.repos.Penilaian, p, app.guruRPL, 4)
	hasPenilaian := marshallObj(t, httpErr{Message: user.ErrHasPenilaian.Error()})

	tests := []httpTest{
		{name: "grader", path: "/api/users/" + app.guruRPL.ID, wantCode: http.StatusConflict, wantData: hasPenilaian},
		{name: "grader among others", path: "/api/users?id=" + app.guruDKV.ID + "&id=" + app.guruRPL.ID, wantCode: http.StatusConflict, wantData: hasPenilaian},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(http.MethodDelete, tt.path, adminToken))
		})
	}
	rec := app.do(http.MethodGet, "/api/users/"+app.guruDKV.ID, adminToken)
	assert.Equal(t, http.StatusOK, rec.Code, "nothing is deleted")

	// deleting the siswa removes the proyek and its penilaian
	rec = app.do(http.MethodDelete, "/api/users/"+app.siswa.ID, adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = app.do(http.MethodGet, "/api/proyeks/"+p.ID, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(http.MethodDelete, "/api/users/"+app.guruRPL.ID, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_authApi_passwordReset(t *testing.T) {
	app := setup(t)
	linkRegex := regexp.MustCompile(`/password-reset/([A-Za-z0-9_-]+)/([A-Za-z0-9_-]+)`)
	requested := marshallObj(t, echoapi.MessageResponse{Success: true, Message: "If the email address supplied is associated with an active account, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	tests := []httpTest{
		{name: "invalid email", body: []byte(`{"email":"rina"}`), wantCode: http.StatusUnprocessableEntity},
		{name: "unknown email", body: []byte(`{"email":"nobody@smk.sch.id"}`), wantCode: http.StatusOK, wantData: requested},
		{name: "known email", body: []byte(`{"email":"Rina@smk.sch.id"}`), wantCode: http.StatusOK, wantData: requested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(http.MethodPost, "/api/auth/password-reset", "", tt.body))
		})
	}

	msgs := app.svcs.Mail.SentMessages()
	require.Len(t, msgs, 1)
	link := linkRegex.FindStringSubmatch(msgs[0].HTMLContent)
	require.Len(t, link, 3, msgs[0].HTMLContent)

	confirm := func(token, password string) []byte {
		return marshallObj(t, user.ResetPassword{UID: link[1], Token: token, Password: password, PasswordConfirm: password})
	}

	rec := app.do(http.MethodPost, "/api/auth/password-reset-confirm", "", confirm(link[2], "12345678"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeErr(t, rec).Errors, "password")

	rec = app.do(http.MethodPost, "/api/auth/password-reset-confirm", "", confirm("HE4TS-sigsig-sig", "Kanvas#88"))
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnprocessableEntity, wantData: marshallObj(t, httpErr{
		Message: user.ErrInvalidResetLink.Error(),
		Errors:  map[string][]string{"token": {"invalid value"}},
	})}, rec)

	rec = app.do(http.MethodPost, "/api/auth/password-reset-confirm", "", confirm(link[2], "Kanvas#88"))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallObj(t, echoapi.MessageResponse{Success: true, Message: "password has been reset"})}, rec)

	login := app.do(http.MethodPost, "/api/auth/login", "", marshallObj(t, echoapi.LoginRequest{Login: "rina@smk.sch.id", Password: "Kanvas#88"}))
	assert.Equal(t, http.StatusOK, login.Code)
}
