package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/user"
)

func (s *Server) registerPenilaianAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc) {
	pg := g.Group("/penilaians", jwt, authed)
	pg.POST("/check-permission", s.checkPermission)

	graders := roleMiddleware(user.RoleGuru, user.RoleAdmin)
	pg.POST("", s.createPenilaian, graders)
	pg.PUT("/:id", s.updatePenilaian, graders)
}

func (s *Server) checkPermission(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data penilaian.CheckPermissionRequest
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = s.deps.Validate.Struct(data); err != nil {
		return err
	}

	perm, err := s.deps.PenilaianSvc.CheckPermission(ctx.Request().Context(), usr, data.ProyekID)
	if err != nil {
		return errors.Wrap(err, "checking penilaian permission")
	}
	return ok(ctx, perm)
}

func (s *Server) createPenilaian(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data penilaian.NewPenilaian
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	pn, err := s.deps.PenilaianSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating penilaian")
	}
	return created(ctx, pn, "penilaian saved")
}

func (s *Server) updatePenilaian(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data penilaian.UpdatePenilaian
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	pn, err := s.deps.PenilaianSvc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating penilaian")
	}
	return ok(ctx, pn, "penilaian updated")
}
