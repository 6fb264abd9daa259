package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/user"
	cachesvc "github.com/trezcool/darasa/services/cache"
)

const (
	tokenContextKey = "userToken"
	userContextKey  = "user"
	actorContextKey = "actor"
	tokenAudience   = "Darasa"
)

// Claims represents the authorization claims transmitted via a JWT.
// StandardClaims.Id is the token id the blacklist works with.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Username     string    `json:"username,omitempty"`
	Role         user.Role `json:"role,omitempty"`
}

type authenticator struct {
	conf      *core.Config
	blacklist cachesvc.TokenBlacklist
	jwtConfig middleware.JWTConfig
}

func newAuthenticator(conf *core.Config, blacklist cachesvc.TokenBlacklist) *authenticator {
	return &authenticator{
		conf:      conf,
		blacklist: blacklist,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    tokenContextKey,
			Claims:        new(Claims),
		},
	}
}

// middleware validates the bearer token and rejects revoked ones.
func (a *authenticator) middleware() echo.MiddlewareFunc {
	jwtMw := middleware.JWTWithConfig(a.jwtConfig)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMw(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			revoked, err := a.blacklist.IsRevoked(ctx.Request().Context(), claims.Id)
			if err != nil {
				return errors.Wrap(err, "checking token blacklist")
			}
			if revoked {
				return errTokenRevoked
			}
			return next(ctx)
		})
	}
}

func (a *authenticator) userClaims(usr user.User, role user.Role, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    a.conf.AppName,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Role:         role,
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func (a *authenticator) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// tokenFor issues a fresh token for usr.
func (a *authenticator) tokenFor(ctx echo.Context, svc *user.Service, usr user.User) (string, error) {
	role, err := svc.RoleOf(ctx.Request().Context(), usr)
	if err != nil {
		return "", errors.Wrap(err, "getting role")
	}
	return a.generateToken(a.userClaims(usr, role))
}

func (a *authenticator) authenticate(ctx echo.Context, uname, pwd string, svc *user.Service) (string, error) {
	rctx := ctx.Request().Context()
	usr, err := svc.GetByUsernameOrEmail(rctx, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return "", errAuthenticationFailed
		}
		return "", errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return "", errAuthenticationFailed
	}
	if !usr.Active() {
		return "", errAccountDeactivated
	}
	if usr, err = svc.SetLastLogin(rctx, usr); err != nil {
		return "", errors.Wrap(err, "setting lastLogin")
	}
	return a.tokenFor(ctx, svc, usr)
}

// refresh issues a new token for the context user as long as the refresh period of the original
// token has not elapsed.
func (a *authenticator) refresh(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	usr, err := contextUser(ctx)
	if err != nil {
		return "", err
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return "", err
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := a.generateToken(a.userClaims(usr, actor.Role, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

// revoke blacklists the context token until it expires.
func (a *authenticator) revoke(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	return errors.Wrap(a.blacklist.Revoke(ctx.Request().Context(), claims.Id, ttl), "revoking token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func contextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

func contextActor(ctx echo.Context) (authz.Actor, error) {
	if actor, ok := ctx.Get(actorContextKey).(authz.Actor); ok {
		return actor, nil
	}
	return authz.Actor{}, errUnauthorized
}
