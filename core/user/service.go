package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

var (
	// errors
	ErrNotFound            = core.NewError(core.KindNotFound, "user not found")
	ErrEmailExists         = errors.New("a user with this email already exists")
	ErrUsernameExists      = errors.New("a user with this username already exists")
	ErrStudentNumberExists = errors.New("a student with this student id already exists")
)

type (
	Repository interface {
		// CheckUniqueness returns one of the Err*Exists errors if one of the set unique fields of usr
		// is already taken by a user other than excludedUsers.
		CheckUniqueness(ctx context.Context, usr User, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id int64) (User, error)
		// GetUserByLogin finds a user by username, email or student number.
		GetUserByLogin(ctx context.Context, login string) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		CountUsers(ctx context.Context, filter QueryFilter) (int, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id int64, at time.Time) error
		DeleteUsersByID(ctx context.Context, ids ...int64) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, usr User, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id int64) (User, error)
		GetByLogin(ctx context.Context, login string) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Count(ctx context.Context, filter QueryFilter) (int, error)
		Update(ctx context.Context, id int64, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...int64) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(ctx context.Context, usr User, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, usr, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		case ErrStudentNumberExists:
			field = "student_id"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:          nu.Name,
		Username:      nu.Username,
		Email:         nu.Email,
		Phone:         nu.Phone,
		StudentNumber: nu.StudentNumber,
		DepartmentID:  nu.DepartmentID,
		IsActive:      true,
		Roles:         []string{nu.Role},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByLogin(ctx context.Context, login string) (User, error) {
	return svc.repo.GetUserByLogin(ctx, core.CleanString(login, true /* lower */))
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter QueryFilter) (int, error) {
	return svc.repo.CountUsers(ctx, filter)
}

// Update applies uu to the user with id. uu must have been validated against that user beforehand.
func (svc *service) Update(ctx context.Context, id int64, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Phone = uu.Phone
	usr.DepartmentID = uu.DepartmentID
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = now
	return usr, nil
}

func (svc *service) Delete(ctx context.Context, ids ...int64) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}
