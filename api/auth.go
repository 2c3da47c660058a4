package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/daruliman/pondok/core"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

type authAPI struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
}

func newAuthAPI(conf *core.Config) *authAPI {
	return &authAPI{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    "operatorToken",
			Claims:        new(Claims),
		},
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (api *authAPI) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := core.Validate.Struct(&data); err != nil {
		return err
	}

	op, err := api.authenticate(data.Username, data.Password)
	if err != nil {
		return err
	}
	token, err := api.generateToken(op)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// authenticate checks credentials against the operators defined in config.
func (api *authAPI) authenticate(username, password string) (core.Operator, error) {
	for _, op := range api.conf.Operators {
		if op.Username != username && op.Email != username {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
			return core.Operator{}, errAuthenticationFailed
		}
		return op, nil
	}
	return core.Operator{}, errAuthenticationFailed
}

func (api *authAPI) generateToken(op core.Operator) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    api.conf.AppName,
			Subject:   op.Username,
			ExpiresAt: now.Add(api.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: op.Username,
		Email:    op.Email,
		IsAdmin:  op.Admin,
	}

	method := jwt.GetSigningMethod(api.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(api.jwtConfig.SigningKey.([]byte))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get("operatorToken").(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
