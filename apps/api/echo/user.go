package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/user"
)

type (
	LoginRequest struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	ImportSiswaRequest struct {
		Siswa []user.NewSiswa `json:"siswa" validate:"required,min=1,dive"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

const passwordResetRequestedMsg = "If the email address supplied is associated with an active account, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Login = core.CleanString(lr.Login, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (s *Server) registerAuthAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc) {
	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", s.login)
	ag.POST("/register", s.register)
	ag.POST("/claim", s.claim)
	// TODO: rate limit the password reset endpoints
	ag.POST("/password-reset", s.requestPasswordReset)
	ag.POST("/password-reset-confirm", s.confirmPasswordReset)

	// authed endpoints
	ag.GET("/me", s.me, jwt, authed)
	ag.POST("/refresh", s.refresh, jwt, authed)
}

func (s *Server) registerUserAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc) {
	ug := g.Group("/users", jwt, authed, adminMiddleware())
	ug.GET("", s.queryUsers)
	ug.POST("", s.createUser)
	ug.DELETE("", s.destroyUsers)
	ug.GET("/roles", s.queryRoles)
	ug.POST("/import", s.importSiswa)
	ug.GET("/:id", s.retrieveUser)
	ug.PUT("/:id", s.updateUser)
	ug.DELETE("/:id", s.destroyUser)
}

// Handlers

func (s *Server) authResponse(ctx echo.Context, code int, usr user.User, message string) error {
	token, err := s.UserToken(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(code, AuthResponse{Success: true, Token: token, User: usr, Message: message})
}

func (s *Server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	usr, err := s.authenticate(ctx, data.Login, data.Password)
	if err != nil {
		return err
	}
	return s.authResponse(ctx, http.StatusOK, usr, "login successful")
}

func (s *Server) register(ctx echo.Context) error {
	var data user.Registration
	if err := bind(ctx, &data); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, s.deps.Validate, s.deps.UserSvc); err != nil {
		return err
	}

	usr, err := s.deps.UserSvc.Register(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return s.authResponse(ctx, http.StatusCreated, usr, "registration successful")
}

func (s *Server) claim(ctx echo.Context) error {
	var data user.ClaimAccount
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	usr, err := s.deps.UserSvc.Claim(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "claiming account")
	}
	return s.authResponse(ctx, http.StatusOK, usr, "account activated")
}

func (s *Server) requestPasswordReset(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	if err := s.deps.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		s.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Success: true, Message: passwordResetRequestedMsg})
}

func (s *Server) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetPassword
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	if err := s.deps.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Success: true, Message: "password has been reset"})
}

func (s *Server) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ok(ctx, usr)
}

func (s *Server) refresh(ctx echo.Context) error {
	token, usr, err := s.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Success: true, Token: token, User: usr})
}

func (s *Server) queryUsers(ctx echo.Context) error {
	filter := &user.QueryFilter{
		Search:    ctx.QueryParam("search"),
		JurusanID: ctx.QueryParam("jurusan_id"),
		KelasID:   ctx.QueryParam("kelas_id"),
	}
	for _, r := range ctx.QueryParams()["role"] {
		filter.Roles = append(filter.Roles, user.Role(r))
	}
	var err error
	if filter.IsActive, err = queryBool(ctx, "is_active"); err != nil {
		return err
	}
	if filter.Claimed, err = queryBool(ctx, "claimed"); err != nil {
		return err
	}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)
	ords := core.FilterOrderings(ordering.Orderings, map[string]string{
		"name": "name", "email": "email", "nis": "nis", "created_at": "created_at", "last_login": "last_login",
	})
	if len(ords) == 0 {
		ords = []core.DBOrdering{{Field: "name", Ascending: true}}
	}

	users, err := s.deps.UserSvc.Query(ctx.Request().Context(), filter, ords)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ok(ctx, users)
}

func (s *Server) createUser(ctx echo.Context) error {
	var data user.NewUser
	if err := bind(ctx, &data); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, s.deps.Validate, s.deps.UserSvc); err != nil {
		return err
	}

	usr, err := s.deps.UserSvc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return created(ctx, usr, "user created")
}

func (s *Server) retrieveUser(ctx echo.Context) error {
	usr, err := s.deps.UserSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if err == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding user by ID")
	}
	return ok(ctx, usr)
}

func (s *Server) updateUser(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	usr, err := s.deps.UserSvc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		if err == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding user by ID")
	}

	var data user.UpdateUser
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(reqCtx, usr, s.deps.Validate, s.deps.UserSvc); err != nil {
		return err
	}

	// admins cannot deactivate themselves
	ctxUsr, _ := getContextUser(ctx)
	if usr.ID == ctxUsr.ID && data.IsActive != nil && !*data.IsActive {
		return errHttpForbidden
	}

	usr, err = s.deps.UserSvc.Update(reqCtx, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ok(ctx, usr, "user updated")
}

func (s *Server) destroyUser(ctx echo.Context) error {
	ctxUsr, _ := getContextUser(ctx)
	id := ctx.Param("id")
	if id == ctxUsr.ID {
		return errHttpForbidden
	}
	if err := s.deps.UserSvc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) destroyUsers(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := bind(ctx, &query); err != nil {
		return err
	}
	if len(query.IDs) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	ctxUsr, _ := getContextUser(ctx)
	for _, id := range query.IDs {
		if id == ctxUsr.ID {
			return errHttpForbidden
		}
	}
	if err := s.deps.UserSvc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) queryRoles(ctx echo.Context) error {
	return ok(ctx, user.Roles)
}

func (s *Server) importSiswa(ctx echo.Context) error {
	var data ImportSiswaRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	for i := range data.Siswa {
		data.Siswa[i].Name = core.CleanString(data.Siswa[i].Name)
		data.Siswa[i].NIS = core.CleanString(data.Siswa[i].NIS)
		data.Siswa[i].KelasID = core.CleanString(data.Siswa[i].KelasID)
	}
	if err := s.deps.Validate.Struct(data); err != nil {
		return err
	}

	users, err := s.deps.UserSvc.ImportSiswa(ctx.Request().Context(), data.Siswa)
	if err != nil {
		return errors.Wrap(err, "importing siswa")
	}
	return created(ctx, users, fmt.Sprintf("%d siswa imported", len(users)))
}
