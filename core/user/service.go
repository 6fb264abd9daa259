package user

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("user")
	ErrProfileNotFound = core.NewNotFoundError("profile")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrUsernameExists  = errors.New("a user with this username already exists")
)

type Repository interface {
	// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another account uses them.
	// Empty values are not checked.
	CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
	// CreateUser stores the account and its profile atomically.
	CreateUser(ctx context.Context, usr User, profile Profile) (User, Profile, error)
	GetUser(ctx context.Context, filter GetFilter) (User, error)
	QueryUsersByID(ctx context.Context, ids ...string) ([]User, error)
	UpdateUser(ctx context.Context, usr User) (User, error)
	// GetOrCreateProfile returns the account's profile, creating one with defaultRole if absent.
	GetOrCreateProfile(ctx context.Context, accountID string, defaultRole Role) (Profile, error)
	UpdateProfile(ctx context.Context, profile Profile) (Profile, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()
	return &Service{repo: repo}
}

// CheckUniqueness maps uniqueness violations to a core.ValidationError.
func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates an account along with its profile.
func (svc *Service) Register(ctx context.Context, nu NewUser) (Me, error) {
	now := core.Now()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return Me{}, errors.Wrap(err, "setting password")
	}
	profile := Profile{
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr, profile, err := svc.repo.CreateUser(ctx, usr, profile)
	if err != nil {
		return Me{}, errors.Wrap(err, "creating user")
	}
	return Me{User: usr, Profile: profile}, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// QueryByID returns the accounts with the given ids, in no particular order.
func (svc *Service) QueryByID(ctx context.Context, ids ...string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return svc.repo.QueryUsersByID(ctx, ids...)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

// GetOrCreateProfile returns the profile of usr, creating a student profile if it is missing.
// Repeated calls return the same profile.
func (svc *Service) GetOrCreateProfile(ctx context.Context, usr User) (Profile, error) {
	if usr.ID == "" {
		return Profile{}, ErrNotFound
	}
	profile, err := svc.repo.GetOrCreateProfile(ctx, usr.ID, DefaultRole)
	if err != nil {
		return Profile{}, errors.Wrap(err, "getting or creating profile")
	}
	return profile, nil
}

// RoleOf returns the role of usr.
func (svc *Service) RoleOf(ctx context.Context, usr User) (Role, error) {
	profile, err := svc.GetOrCreateProfile(ctx, usr)
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}

// Me returns usr along with its profile.
func (svc *Service) Me(ctx context.Context, usr User) (Me, error) {
	profile, err := svc.GetOrCreateProfile(ctx, usr)
	if err != nil {
		return Me{}, err
	}
	return Me{User: usr, Profile: profile}, nil
}

// UpdateProfile applies a validated UpdateProfile to usr and its profile.
func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (Me, error) {
	profile, err := svc.GetOrCreateProfile(ctx, usr)
	if err != nil {
		return Me{}, err
	}
	now := core.Now()

	usr.Name = up.Name
	if up.Email != nil {
		usr.Email = *up.Email
	}
	if up.Password != "" {
		if err = usr.SetPassword(up.Password); err != nil {
			return Me{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = now
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return Me{}, errors.Wrap(err, "updating user")
	}

	if up.Bio != nil {
		profile.Bio = *up.Bio
	}
	if up.Phone != nil {
		profile.Phone = *up.Phone
	}
	profile.UpdatedAt = now
	if profile, err = svc.repo.UpdateProfile(ctx, profile); err != nil {
		return Me{}, errors.Wrap(err, "updating profile")
	}
	return Me{User: usr, Profile: profile}, nil
}

// SetAvatar points the profile of usr at the blob stored under key, returning the previous key.
func (svc *Service) SetAvatar(ctx context.Context, usr User, key string) (Profile, string, error) {
	profile, err := svc.GetOrCreateProfile(ctx, usr)
	if err != nil {
		return Profile{}, "", err
	}
	prev := profile.Avatar
	profile.Avatar = key
	profile.UpdatedAt = core.Now()
	if profile, err = svc.repo.UpdateProfile(ctx, profile); err != nil {
		return Profile{}, "", errors.Wrap(err, "updating profile avatar")
	}
	return profile, prev, nil
}
