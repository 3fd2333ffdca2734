package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/user"
)

func (s *Server) registerAkademikAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc) {
	admin := adminMiddleware()

	// public: used by the claim and registration forms
	g.GET("/jurusans", s.listJurusan)
	g.GET("/jurusans/:id", s.retrieveJurusan)
	g.GET("/kelas/by-jurusan", s.listKelasByJurusan)
	g.GET("/siswa/available", s.listAvailableSiswa)

	g.POST("/jurusans", s.createJurusan, jwt, authed, admin)
	g.POST("/kelas", s.createKelas, jwt, authed, admin)
}

func (s *Server) listJurusan(ctx echo.Context) error {
	jurusans, err := s.deps.AkademikSvc.ListJurusan(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing jurusan")
	}
	if jurusans == nil {
		jurusans = []akademik.Jurusan{}
	}
	return ok(ctx, jurusans)
}

func (s *Server) retrieveJurusan(ctx echo.Context) error {
	jurusan, err := s.deps.AkademikSvc.GetJurusan(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding jurusan by ID")
	}
	return ok(ctx, jurusan)
}

func (s *Server) listKelasByJurusan(ctx echo.Context) error {
	jurusanID := core.CleanString(ctx.QueryParam("jurusan_id"))
	kelas, err := s.deps.AkademikSvc.ListKelasByJurusan(ctx.Request().Context(), jurusanID)
	if err != nil {
		return errors.Wrap(err, "listing kelas")
	}
	if kelas == nil {
		kelas = []akademik.Kelas{}
	}
	return ok(ctx, kelas)
}

// listAvailableSiswa lists the unclaimed, active siswa of a kelas.
func (s *Server) listAvailableSiswa(ctx echo.Context) error {
	kelasID := core.CleanString(ctx.QueryParam("kelas_id"))
	siswa, err := s.deps.UserSvc.ListAvailableSiswa(ctx.Request().Context(), kelasID)
	if err != nil {
		return errors.Wrap(err, "listing available siswa")
	}
	if siswa == nil {
		siswa = []user.User{}
	}
	return ok(ctx, siswa)
}

func (s *Server) createJurusan(ctx echo.Context) error {
	var data akademik.NewJurusan
	if err := bind(ctx, &data); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, s.deps.Validate, s.deps.AkademikSvc); err != nil {
		return err
	}

	jurusan, err := s.deps.AkademikSvc.CreateJurusan(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating jurusan")
	}
	return created(ctx, jurusan, "jurusan created")
}

func (s *Server) createKelas(ctx echo.Context) error {
	var data akademik.NewKelas
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	kelas, err := s.deps.AkademikSvc.CreateKelas(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating kelas")
	}
	return created(ctx, kelas, "kelas created")
}
