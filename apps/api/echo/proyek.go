package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
)

func (s *Server) registerProyekAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc) {
	pg := g.Group("/proyeks", jwt, authed)
	pg.GET("", s.queryProyeks)
	pg.POST("", s.createProyek, roleMiddleware(user.RoleSiswa))
	pg.GET("/stats", s.proyekStats, adminMiddleware())
	pg.GET("/:id", s.retrieveProyek)
	pg.PUT("/:id", s.updateProyek)
	pg.DELETE("/:id", s.destroyProyek)
	pg.GET("/:id/penilaian", s.activePenilaian)
	pg.GET("/:id/penilaians", s.penilaianHistory, roleMiddleware(user.RoleGuru, user.RoleAdmin))
}

func (s *Server) queryProyeks(ctx echo.Context) error {
	filter := &proyek.QueryFilter{
		Search:    ctx.QueryParam("search"),
		JurusanID: ctx.QueryParam("jurusan_id"),
		UserID:    ctx.QueryParam("user_id"),
		Status:    proyek.Status(ctx.QueryParam("status")),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	proyeks, err := s.deps.ProyekSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying proyeks")
	}
	if proyeks == nil {
		proyeks = []proyek.Proyek{}
	}
	return ok(ctx, proyeks)
}

func (s *Server) createProyek(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data proyek.NewProyek
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	p, err := s.deps.ProyekSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating proyek")
	}
	return created(ctx, p, "proyek submitted")
}

func (s *Server) proyekStats(ctx echo.Context) error {
	stats, err := s.deps.ProyekSvc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing proyek stats")
	}
	if stats == nil {
		stats = []proyek.Stat{}
	}
	return ok(ctx, stats)
}

func (s *Server) retrieveProyek(ctx echo.Context) error {
	p, err := s.deps.ProyekSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding proyek by ID")
	}
	return ok(ctx, p)
}

func (s *Server) updateProyek(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data proyek.UpdateProyek
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	p, err := s.deps.ProyekSvc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating proyek")
	}
	return ok(ctx, p, "proyek updated")
}

func (s *Server) destroyProyek(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = s.deps.ProyekSvc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting proyek")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// activePenilaian returns the current grade of a proyek, data is null while ungraded.
func (s *Server) activePenilaian(ctx echo.Context) error {
	pn, err := s.deps.PenilaianSvc.GetActive(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == penilaian.ErrNotFound {
			return ok(ctx, nil)
		}
		return errors.Wrap(err, "finding active penilaian")
	}
	return ok(ctx, pn)
}

func (s *Server) penilaianHistory(ctx echo.Context) error {
	history, err := s.deps.PenilaianSvc.History(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying penilaian history")
	}
	if history == nil {
		history = []penilaian.Penilaian{}
	}
	return ok(ctx, history)
}
