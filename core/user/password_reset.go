package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// ErrInvalidResetLink is returned when a reset uid or token does not check out.
var ErrInvalidResetLink = core.NewValidationError(
	errors.New("invalid or expired password reset link"),
	core.FieldError{Field: "token", Error: "invalid or expired link"},
)

// ResetPassword confirms a password reset with the uid and token from the reset email.
type ResetPassword struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	// filled from the account during validation, for the password policy
	name, username, email string
}

// PasswordReset runs the forgotten password flow: a signed link is emailed, then exchanged for a new password.
type PasswordReset struct {
	repo   Repository
	tokens *TokenGenerator
	mailer core.EmailService
	logger core.Logger
}

func NewPasswordReset(repo Repository, tokens *TokenGenerator, mailer core.EmailService, logger core.Logger) *PasswordReset {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(tokens, "tokens"),
		vala.IsNotNil(mailer, "mailer"),
	).CheckAndPanic()
	return &PasswordReset{repo: repo, tokens: tokens, mailer: mailer, logger: logger}
}

// Request emails a reset link to the active account using email. Unknown or inactive accounts are
// reported as ErrNotFound.
func (pr *PasswordReset) Request(ctx context.Context, email string) error {
	usr, err := pr.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	to, ok := usr.MailAddress()
	if !ok {
		return ErrNotFound
	}
	token, err := pr.tokens.Make(usr)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}

	pr.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":     usr.DisplayName(),
			"Username": usr.Username,
			"UID":      EncodeUID(usr),
			"Token":    token,
			"Days":     int(pr.tokens.timeout / (24 * time.Hour)),
		},
	})
	return nil
}

// Confirm sets the new password once the link and the password policy check out.
func (pr *PasswordReset) Confirm(ctx context.Context, validate *validator.Validate, rp ResetPassword) error {
	usr, found := pr.lookup(ctx, rp.UID)
	if found {
		rp.name, rp.username, rp.email = usr.Name, usr.Username, usr.Email
	}
	if err := validate.Struct(rp); err != nil {
		return err
	}
	if !found || !usr.Active() {
		return ErrInvalidResetLink
	}
	if err := pr.tokens.Verify(usr, rp.Token); err != nil {
		return ErrInvalidResetLink
	}

	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	if _, err := pr.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

func (pr *PasswordReset) lookup(ctx context.Context, uid string) (User, bool) {
	if uid == "" {
		return User{}, false
	}
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, false
	}
	usr, err := pr.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if !core.IsNotFound(err) && pr.logger != nil {
			pr.logger.Error("user.PasswordReset: getting user", err)
		}
		return User{}, false
	}
	return usr, true
}
