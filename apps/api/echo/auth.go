package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"`
	JurusanID    string `json:"jurusan_id,omitempty"`
}

// NewClaims returns the claims of usr; origIat keeps the first issue time across refreshes.
func NewClaims(usr user.User, conf *core.Config, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  "galeri",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Role:         string(usr.Role),
		JurusanID:    usr.JurusanID,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (s *Server) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(s.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(s.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// UserToken issues a fresh token for usr.
func (s *Server) UserToken(usr user.User) (string, error) {
	return s.GenerateToken(NewClaims(usr, s.conf))
}

func (s *Server) authenticate(ctx echo.Context, login, pwd string) (user.User, error) {
	svc := s.deps.UserSvc
	usr, err := svc.GetByLogin(ctx.Request().Context(), login)
	if err != nil {
		if err == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by login")
	}
	if usr.IsUnclaimed() || len(usr.PasswordHash) == 0 {
		return user.User{}, errAuthenticationFailed
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx.Request().Context(), usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser returns the user loaded by authMiddleware.
func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

func (s *Server) refreshToken(ctx echo.Context) (string, user.User, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", user.User{}, err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return "", user.User{}, err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(s.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", user.User{}, errRefreshExpired
	}

	token, err := s.GenerateToken(NewClaims(usr, s.conf, claims.OrigIssuedAt))
	if err != nil {
		return "", user.User{}, errors.Wrap(err, "generating token")
	}
	return token, usr, nil
}
