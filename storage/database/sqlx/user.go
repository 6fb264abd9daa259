package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) unboil() user.User {
	isActive := r.IsActive
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     &isActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type profileRow struct {
	ID        string      `db:"id"`
	AccountID string      `db:"account_id"`
	Role      string      `db:"role"`
	Bio       string      `db:"bio"`
	Phone     string      `db:"phone"`
	Avatar    null.String `db:"avatar"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r profileRow) unboil() user.Profile {
	return user.Profile{
		ID:        r.ID,
		AccountID: r.AccountID,
		Role:      user.Role(r.Role),
		Bio:       r.Bio,
		Phone:     r.Phone,
		Avatar:    r.Avatar.String,
		HasAvatar: r.Avatar.String != "",
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

// trapUniqueErr maps unique violations on users to the user package errors.
func trapUniqueErr(err error, msg string) error {
	if pqErr, ok := pqError(err); ok && pqErr.Code == pqUniqueViolation {
		switch pqErr.Constraint {
		case "users_username_key":
			return user.ErrUsernameExists
		case "users_email_key":
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	if username == "" && email == "" {
		return nil
	}
	mods := []qm.QueryMod{
		qm.Select("username", "email"),
		qm.From("users"),
		qm.Where("((? <> '' AND username = ?) OR (? <> '' AND email = ?))", username, username, email, email),
	}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		if valid := validIDs(ids); len(valid) > 0 {
			mods = append(mods, qm.WhereIn("id NOT IN ?", valid...))
		}
	}
	query, args := buildQuery(withLimit(mods, 2)...)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if username != "" && r.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

const (
	insertUserSQL = `
INSERT INTO users (id, name, username, email, is_active, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING *`

	insertProfileSQL = `
INSERT INTO profiles (id, account_id, role, bio, phone, avatar, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING *`
)

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, profile user.Profile) (user.User, user.Profile, error) {
	var (
		ur userRow
		pr profileRow
	)
	if !profile.Role.IsValid() {
		profile.Role = user.DefaultRole
	}
	err := core.RunInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		err := tx.GetContext(ctx, &ur, insertUserSQL,
			newID(), usr.Name, usr.Username, usr.Email, usr.Active(), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt)
		if err != nil {
			return trapUniqueErr(err, "inserting user")
		}
		err = tx.GetContext(ctx, &pr, insertProfileSQL,
			newID(), ur.ID, string(profile.Role), profile.Bio, profile.Phone,
			null.NewString(profile.Avatar, profile.Avatar != ""), profile.CreatedAt, profile.UpdatedAt)
		return errors.Wrap(err, "inserting profile")
	})
	if err != nil {
		return user.User{}, user.Profile{}, err
	}
	return ur.unboil(), pr.unboil(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var mod qm.QueryMod
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		mod = qm.Where("id = ?", filter.ID)
	case filter.Username != "":
		mod = qm.Where("username = ?", filter.Username)
	case filter.Email != "":
		mod = qm.Where("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		mod = qm.Where("(username = ? OR (email <> '' AND email = ?))", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}
	query, args := buildQuery(qm.Select("*"), qm.From("users"), mod, qm.Limit(1))

	var r userRow
	if err := repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "getting user")
	}
	return r.unboil(), nil
}

func (repo *userRepository) QueryUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	valid := validIDs(ids)
	if len(valid) == 0 {
		return []user.User{}, nil
	}
	query, args := buildQuery(
		qm.Select("*"),
		qm.From("users"),
		qm.WhereIn("id IN ?", valid...),
		qm.OrderBy("name, username"),
	)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users by id")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.unboil())
	}
	return users, nil
}

const updateUserSQL = `
UPDATE users SET
    name = $2,
    email = $3,
    is_active = $4,
    password_hash = COALESCE($5, password_hash),
    updated_at = $6,
    last_login = $7
WHERE id = $1
RETURNING *`

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	var hash interface{} // NULL keeps the current hash
	if usr.PasswordHash != nil {
		hash = usr.PasswordHash
	}
	var r userRow
	err := repo.db.GetContext(ctx, &r, updateUserSQL,
		usr.ID, usr.Name, usr.Email, usr.Active(), hash, usr.UpdatedAt,
		null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()))
	switch {
	case err == nil:
		return r.unboil(), nil
	case errors.Cause(err) == sql.ErrNoRows:
		return user.User{}, user.ErrNotFound
	}
	return user.User{}, trapUniqueErr(err, "updating user")
}

const (
	insertDefaultProfileSQL = `
INSERT INTO profiles (id, account_id, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (account_id) DO NOTHING`

	selectProfileSQL = `SELECT * FROM profiles WHERE account_id = $1`
)

func (repo *userRepository) GetOrCreateProfile(ctx context.Context, accountID string, defaultRole user.Role) (user.Profile, error) {
	if !validID(accountID) {
		return user.Profile{}, user.ErrNotFound
	}
	_, err := repo.db.ExecContext(ctx, insertDefaultProfileSQL, newID(), accountID, string(defaultRole), core.Now())
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return user.Profile{}, user.ErrNotFound
		}
		return user.Profile{}, errors.Wrap(err, "inserting default profile")
	}

	var r profileRow
	if err = repo.db.GetContext(ctx, &r, selectProfileSQL, accountID); err != nil {
		return user.Profile{}, trapNoRows(err, user.ErrProfileNotFound, "getting profile")
	}
	return r.unboil(), nil
}

// role is left out: it never changes after creation
const updateProfileSQL = `
UPDATE profiles SET bio = $2, phone = $3, avatar = $4, updated_at = $5
WHERE id = $1
RETURNING *`

func (repo *userRepository) UpdateProfile(ctx context.Context, profile user.Profile) (user.Profile, error) {
	if !validID(profile.ID) {
		return user.Profile{}, user.ErrProfileNotFound
	}
	var r profileRow
	err := repo.db.GetContext(ctx, &r, updateProfileSQL,
		profile.ID, profile.Bio, profile.Phone, null.NewString(profile.Avatar, profile.Avatar != ""), profile.UpdatedAt)
	if err != nil {
		return user.Profile{}, trapNoRows(err, user.ErrProfileNotFound, "updating profile")
	}
	return r.unboil(), nil
}
