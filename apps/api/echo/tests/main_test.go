package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smkgaleri/galeri/apps/api/echo"
	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/user"
	logsvc "github.com/smkgaleri/galeri/services/logger"
	"github.com/smkgaleri/galeri/tests"
)

const pwd = "Galeri#2024"

var errMissingToken = httpErr{Message: "missing or malformed jwt"}

// testApp is an API server on a fresh in-memory database holding
// two jurusan (RPL, DKV) with one kelas each, a guru per jurusan, an admin and a siswa in RPL.
type testApp struct {
	*echoapi.Server
	repos testutil.Repos
	svcs  testutil.Services

	rpl, dkv         akademik.Jurusan
	rplKelas         akademik.Kelas
	admin            user.User
	guruRPL, guruDKV user.User
	siswa            user.User
}

func setup(t *testing.T) *testApp {
	conf := core.NewTestConfig()
	repos := testutil.NewRepos()
	svcs := testutil.NewServices(conf, repos)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	app := &testApp{
		Server: echoapi.NewServer(conf, logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf), echoapi.ServerDeps{
			Validate:     validate,
			Translator:   translator,
			UserSvc:      svcs.User,
			AkademikSvc:  svcs.Akademik,
			ProyekSvc:    svcs.Proyek,
			PenilaianSvc: svcs.Penilaian,
		}),
		repos: repos,
		svcs:  svcs,
	}
	t.Cleanup(func() { _ = app.Close() })

	app.rpl = testutil.CreateJurusan(t, repos.Akademik, "RPL", "Rekayasa Perangkat Lunak")
	app.dkv = testutil.CreateJurusan(t, repos.Akademik, "DKV", "Desain Komunikasi Visual")
	app.rplKelas = testutil.CreateKelas(t, repos.Akademik, "XII RPL 1", app.rpl)
	testutil.CreateKelas(t, repos.Akademik, "XII DKV 1", app.dkv)

	app.admin = testutil.CreateUser(t, repos.User, "Admin", "admin@smk.sch.id", pwd, user.RoleAdmin)
	app.guruRPL = testutil.CreateUser(t, repos.User, "Bu Siti", "siti@smk.sch.id", pwd, user.RoleGuru,
		testutil.WithNIP("1980010001"), testutil.WithJurusan(app.rpl.ID))
	app.guruDKV = testutil.CreateUser(t, repos.User, "Pak Joko", "joko@smk.sch.id", pwd, user.RoleGuru,
		testutil.WithNIP("1980010002"), testutil.WithJurusan(app.dkv.ID))
	app.siswa = testutil.CreateUser(t, repos.User, "Rina", "rina@smk.sch.id", pwd, user.RoleSiswa,
		testutil.WithNIS("2024001"), testutil.WithKelas(app.rplKelas))
	return app
}

// do serves a request and returns the recorded response.
func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, app *testApp, usr user.User) string {
	token, err := app.UserToken(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

// decodeData unmarshals the data of a success envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decodeData() failed: %v; body %s", err, rec.Body.String())
	}
	if !resp.Success {
		t.Fatalf("decodeData(): unsuccessful response %s", rec.Body.String())
	}
	if err := json.Unmarshal(resp.Data, dst); err != nil {
		t.Fatalf("decodeData() failed: %v", err)
	}
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) httpErr {
	t.Helper()
	var resp httpErr
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decodeErr() failed: %v; body %s", err, rec.Body.String())
	}
	return resp
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
