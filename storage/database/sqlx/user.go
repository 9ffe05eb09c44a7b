package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/user"
)

const userColumns = `id, name, username, email, phone, student_number, department_id, is_active, roles,
	password_hash, created_at, updated_at, last_login`

var userOrderColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"student_id": "student_number",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID            int64          `db:"id"`
	Name          string         `db:"name"`
	Username      null.String    `db:"username"`
	Email         null.String    `db:"email"`
	Phone         string         `db:"phone"`
	StudentNumber null.String    `db:"student_number"`
	DepartmentID  null.Int64     `db:"department_id"`
	IsActive      bool           `db:"is_active"`
	Roles         pq.StringArray `db:"roles"`
	PasswordHash  []byte         `db:"password_hash"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	LastLogin     null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:            usr.ID,
		Name:          usr.Name,
		Username:      null.NewString(usr.Username, usr.Username != ""),
		Email:         null.NewString(usr.Email, usr.Email != ""),
		Phone:         usr.Phone,
		StudentNumber: null.NewString(usr.StudentNumber, usr.StudentNumber != ""),
		DepartmentID:  null.NewInt64(usr.DepartmentID, usr.DepartmentID != 0),
		IsActive:      usr.IsActive,
		Roles:         pq.StringArray(usr.Roles),
		PasswordHash:  usr.PasswordHash,
		CreatedAt:     usr.CreatedAt,
		UpdatedAt:     usr.UpdatedAt,
		LastLogin:     null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	roles := []string(r.Roles)
	if roles == nil {
		roles = []string{}
	}
	return user.User{
		ID:            r.ID,
		Name:          r.Name,
		Username:      r.Username.String,
		Email:         r.Email.String,
		Phone:         r.Phone,
		StudentNumber: r.StudentNumber.String,
		DepartmentID:  r.DepartmentID.Int64,
		IsActive:      r.IsActive,
		Roles:         roles,
		PasswordHash:  r.PasswordHash,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		LastLogin:     r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, usr user.User, excludedUsers ...user.User) error {
	excluded := make(pq.Int64Array, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded = append(excluded, u.ID)
	}
	q := `SELECT username, email, student_number FROM users
		WHERE ((username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '') OR (student_number = $3 AND $3 <> ''))
		AND NOT (id = ANY($4))
		LIMIT 1`

	var row userRow
	err := repo.db.QueryRowxContext(ctx, q, usr.Username, usr.Email, usr.StudentNumber, excluded).
		Scan(&row.Username, &row.Email, &row.StudentNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return errors.Wrap(err, "checking uniqueness")
	}
	switch {
	case usr.Username != "" && row.Username.String == usr.Username:
		return user.ErrUsernameExists
	case usr.Email != "" && row.Email.String == usr.Email:
		return user.ErrEmailExists
	default:
		return user.ErrStudentNumberExists
	}
}

// trapUniqueErr maps unique constraint violations that slipped past CheckUniqueness.
func trapUniqueErr(err error) error {
	code, constraint := pgError(err)
	if code != uniqueViolation {
		return err
	}
	var field string
	var cause error
	switch constraint {
	case "users_username_key":
		field, cause = "username", user.ErrUsernameExists
	case "users_email_key":
		field, cause = "email", user.ErrEmailExists
	case "users_student_number_key":
		field, cause = "student_id", user.ErrStudentNumberExists
	default:
		return err
	}
	return core.NewValidationError(cause, core.FieldError{Field: field, Error: cause.Error()})
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO users (name, username, email, phone, student_number, department_id, is_active, roles,
		password_hash, created_at, updated_at, last_login)
		VALUES (:name, :username, :email, :phone, :student_number, :department_id, :is_active, :roles,
		:password_hash, :created_at, :updated_at, :last_login)
		RETURNING id`

	q, args, err := repo.db.BindNamed(q, toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "binding user")
	}
	if err := repo.db.GetContext(ctx, &usr.ID, q, args...); err != nil {
		return user.User{}, errors.Wrap(trapUniqueErr(err), "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) get(ctx context.Context, cond string, args ...interface{}) (user.User, error) {
	var row userRow
	q := "SELECT " + userColumns + " FROM users WHERE " + cond + " LIMIT 1"
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	return repo.get(ctx, "id = $1", id)
}

func (repo *userRepository) GetUserByLogin(ctx context.Context, login string) (user.User, error) {
	if login == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.get(ctx, "username = $1 OR email = $1 OR student_number = $1", login)
}

func userFilter(filter user.QueryFilter) *where {
	w := new(where)
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ? OR student_number ILIKE ?)",
			pattern, pattern, pattern, pattern)
	}
	if len(filter.Roles) > 0 {
		// roles are stored with a scope suffix, e.g. "admin:" matches "admin:superuser"
		patterns := make(pq.StringArray, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			patterns = append(patterns, role+"%")
		}
		w.add("EXISTS (SELECT 1 FROM unnest(roles) AS r WHERE r LIKE ANY(?))", patterns)
	}
	if filter.DepartmentID != 0 {
		w.add("department_id = ?", filter.DepartmentID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	return w
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	w := userFilter(filter)
	q, args := w.build(repo.db, "SELECT "+userColumns+" FROM users"+w.String()+
		core.OrderByClause(ordering, userOrderColumns, "id"))

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) CountUsers(ctx context.Context, filter user.QueryFilter) (int, error) {
	w := userFilter(filter)
	q, args := w.build(repo.db, "SELECT COUNT(*) FROM users"+w.String())

	var count int
	if err := repo.db.GetContext(ctx, &count, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET name = :name, username = :username, email = :email, phone = :phone,
		student_number = :student_number, department_id = :department_id, is_active = :is_active,
		roles = :roles, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(trapUniqueErr(err), "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE users SET last_login = $2 WHERE id = $1", id, at)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id = ANY($1)", pq.Int64Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
