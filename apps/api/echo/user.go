package echoapi

import (
	"bytes"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	storagesvc "github.com/trezcool/darasa/services/storage"
)

const avatarSize = 256 // px

var avatarTypes = []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff"}

type userApi struct {
	svc      *user.Service
	reset    *user.PasswordReset
	logger   core.Logger
	auth     *authenticator
	files    core.FileStorage
	validate *validator.Validate
	maxSize  int64
}

func registerUserAPI(g *echo.Group, jwt, actor echo.MiddlewareFunc, api *userApi) {
	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/register", api.register)
	ug.POST("/login", api.login)
	ug.GET("/roles", api.queryRoles)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", jwt, actor)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("/logout", api.logout)
	ag.GET("/me", api.me)
	ag.PUT("/me", api.updateMe)
	ag.GET("/me/avatar", api.avatar)
	ag.PUT("/me/avatar", api.setAvatar)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	me, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	token, err := api.auth.generateToken(api.auth.userClaims(me.User, me.Profile.Role))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, RegisterResponse{Me: me, Token: token})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	token, err := api.auth.authenticate(ctx, data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) logout(ctx echo.Context) error {
	if err := api.auth.revoke(ctx); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.reset.Request(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := api.reset.Confirm(ctx.Request().Context(), api.validate, data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	me, err := api.svc.Me(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, me)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}

	me, err := api.svc.UpdateProfile(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, me)
}

func (api *userApi) avatar(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	profile, err := api.svc.GetOrCreateProfile(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	if profile.Avatar == "" {
		return errHttpNotFound
	}

	rc, blob, err := api.files.Open(rctx, profile.Avatar)
	if err != nil {
		if err == core.ErrBlobNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "opening avatar")
	}
	defer rc.Close()
	return ctx.Stream(http.StatusOK, blob.ContentType, rc)
}

// setAvatar crops the uploaded image to a square thumbnail and stores it as JPEG.
func (api *userApi) setAvatar(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	up, err := readUpload(ctx, "avatar", api.maxSize, avatarTypes...)
	if err != nil {
		return err
	}
	if up == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "avatar", Error: "this field is required"})
	}

	img, err := imaging.Decode(bytes.NewReader(up.Data), imaging.AutoOrientation(true))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "avatar", Error: "invalid image"})
	}
	thumb := imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return errors.Wrap(err, "encoding avatar")
	}

	rctx := ctx.Request().Context()
	blob, err := api.files.Save(rctx, storagesvc.NewKey("avatars", ".jpg"), &buf, "image/jpeg")
	if err != nil {
		return errors.Wrap(err, "saving avatar")
	}
	profile, prev, err := api.svc.SetAvatar(rctx, usr, blob.Key)
	if err != nil {
		_ = api.files.Delete(rctx, blob.Key)
		return errors.Wrap(err, "setting avatar")
	}
	if prev != "" {
		if err = api.files.Delete(rctx, prev); err != nil {
			ctx.Logger().Warnf("deleting previous avatar %s: %v", prev, err)
		}
	}
	return ctx.JSON(http.StatusOK, user.Me{User: usr, Profile: profile})
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	RegisterResponse struct {
		user.Me
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
