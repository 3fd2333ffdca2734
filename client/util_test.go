package client

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/smkgaleri/galeri/apps/api/echo"
	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/user"
	logsvc "github.com/smkgaleri/galeri/services/logger"
	"github.com/smkgaleri/galeri/tests"
)

const pwd = "Galeri#2024"

// school is a running API backed by an in-memory database:
// two jurusan (RPL and DKV), one kelas each, a guru per jurusan and an admin.
type school struct {
	conf   *core.Config
	logger core.Logger
	repos  testutil.Repos
	svcs   testutil.Services
	srv    *httptest.Server
	hits   atomic.Int64

	rpl, dkv           akademik.Jurusan
	rplKelas, dkvKelas akademik.Kelas
	admin              user.User
	guruRPL, guruDKV   user.User
	siswaRPL, siswaDKV user.User
}

func newSchool(t *testing.T) *school {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	repos := testutil.NewRepos()
	svcs := testutil.NewServices(conf, repos)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	api := echoapi.NewServer(conf, logger, echoapi.ServerDeps{
		Validate:     validate,
		Translator:   translator,
		UserSvc:      svcs.User,
		AkademikSvc:  svcs.Akademik,
		ProyekSvc:    svcs.Proyek,
		PenilaianSvc: svcs.Penilaian,
	})

	s := &school{conf: conf, logger: logger, repos: repos, svcs: svcs}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		api.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		s.srv.Close()
		_ = api.Close()
	})
	conf.Client.BaseURL = s.srv.URL + "/api"

	s.rpl = testutil.CreateJurusan(t, repos.Akademik, "RPL", "Rekayasa Perangkat Lunak")
	s.dkv = testutil.CreateJurusan(t, repos.Akademik, "DKV", "Desain Komunikasi Visual")
	s.rplKelas = testutil.CreateKelas(t, repos.Akademik, "XII RPL 1", s.rpl)
	s.dkvKelas = testutil.CreateKelas(t, repos.Akademik, "XII DKV 1", s.dkv)

	s.admin = testutil.CreateUser(t, repos.User, "Admin", "admin@smk.sch.id", pwd, user.RoleAdmin)
	s.guruRPL = testutil.CreateUser(t, repos.User, "Bu Siti", "siti@smk.sch.id", pwd, user.RoleGuru,
		testutil.WithNIP("1980010001"), testutil.WithJurusan(s.rpl.ID))
	s.guruDKV = testutil.CreateUser(t, repos.User, "Pak Joko", "joko@smk.sch.id", pwd, user.RoleGuru,
		testutil.WithNIP("1980010002"), testutil.WithJurusan(s.dkv.ID))
	s.siswaRPL = testutil.CreateUser(t, repos.User, "Rina", "rina@smk.sch.id", pwd, user.RoleSiswa,
		testutil.WithNIS("2024001"), testutil.WithKelas(s.rplKelas))
	s.siswaDKV = testutil.CreateUser(t, repos.User, "Dewi", "dewi@smk.sch.id", pwd, user.RoleSiswa,
		testutil.WithNIS("2024002"), testutil.WithKelas(s.dkvKelas))
	return s
}

// client returns an anonymous client talking to the school API.
func (s *school) client() *Client {
	return New(s.conf.Client, NewSession(nil), s.logger)
}

// login returns a client with a session for usr.
func (s *school) login(t *testing.T, usr user.User) *Client {
	t.Helper()
	c := s.client()
	if _, err := c.Login(context.Background(), usr.Email, pwd); err != nil {
		t.Fatalf("Login(%s) failed: %v", usr.Email, err)
	}
	return c
}

// countingServer answers every request with handler and counts them.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	hits := new(atomic.Int64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func testConf(baseURL string) core.ClientConfig {
	conf := core.NewTestConfig().Client
	conf.BaseURL = baseURL
	return conf
}

func testClient(baseURL string) *Client {
	return New(testConf(baseURL), NewSession(nil), nil)
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}
