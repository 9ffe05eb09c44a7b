package user

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

const passwordResetTemplate = "password_reset"

var ErrInvalidResetLink = core.NewError(core.KindValidation, "the password reset link is invalid or has expired")

// ResetUserPassword is the payload of a password reset confirmation.
type ResetUserPassword struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.UID = core.CleanString(rp.UID)
	rp.Token = core.CleanString(rp.Token)
	return validate.Struct(rp)
}

// PasswordResetter mails password reset links & applies the new passwords.
type PasswordResetter struct {
	svc      Service
	mailSvc  core.EmailService
	validate *validator.Validate
	tokens   tokenGenerator
	baseURL  string
}

func NewPasswordResetter(svc Service, mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) *PasswordResetter {
	return &PasswordResetter{
		svc:      svc,
		mailSvc:  mailSvc,
		validate: validate,
		tokens:   newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeout),
		baseURL:  conf.FrontendBaseURL,
	}
}

// RequestReset mails a reset link to the active user owning email.
// Returns ErrNotFound when there is none; callers should not leak it.
func (pr *PasswordResetter) RequestReset(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	usr, err := pr.svc.GetByLogin(ctx, email)
	if err != nil {
		return err
	}
	if usr.Email != email || !usr.IsActive {
		return ErrNotFound
	}

	link := pr.baseURL + "/password-reset/" + EncodeUID(usr) + "/" + pr.tokens.makeToken(usr)
	pr.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password reset",
		TemplateName: passwordResetTemplate,
		TemplateData: map[string]interface{}{"Name": usr.Name, "URL": link},
	})
	return nil
}

// Reset sets the new password once the uid & token have been verified.
func (pr *PasswordResetter) Reset(ctx context.Context, data ResetUserPassword) (User, error) {
	id, err := decodeUID(data.UID)
	if err != nil {
		return User{}, ErrInvalidResetLink
	}
	usr, err := pr.svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidResetLink
		}
		return User{}, err
	}
	if !usr.IsActive || pr.tokens.verifyToken(usr, data.Token) != nil {
		return User{}, ErrInvalidResetLink
	}

	uu := UpdateUser{Password: data.Password, PasswordConfirm: data.PasswordConfirm}
	if err := uu.Validate(ctx, usr, pr.validate, pr.svc); err != nil {
		return User{}, err
	}
	return pr.svc.Update(ctx, usr.ID, uu)
}
