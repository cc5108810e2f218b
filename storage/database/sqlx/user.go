package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-connect/core/user"
)

const userColumns = `id, name, username, email, phone, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	Phone        null.String    `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) toRow(usr user.User) userRow {
	roles := pq.StringArray(usr.Roles)
	if roles == nil {
		roles = pq.StringArray{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		Phone:        nullString(usr.Phone),
		IsActive:     usr.IsActive == nil || *usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    nullTime(usr.LastLogin),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Phone:        row.Phone.String,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	usr.SetActive(row.IsActive)
	return usr
}

// trapErr maps psql "no rows" err to user.ErrNotFound, and unique violations to their user errors.
func (repo userRepository) trapErr(err error, msg string) error {
	switch {
	case errors.Cause(err) == sql.ErrNoRows:
		return user.ErrNotFound
	case isUniqueViolation(err, "user_username_key"):
		return user.ErrUsernameExists
	case isUniqueViolation(err, "user_email_key"):
		return user.ErrEmailExists
	case isUniqueViolation(err, "user_phone_key"):
		return user.ErrPhoneExists
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUserUniqueness(ctx context.Context, username, email, phone string, excludedUsers []user.User) error {
	if username == "" && email == "" && phone == "" {
		return nil
	}
	ids := make(pq.StringArray, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		if isUUID(u.ID) {
			ids = append(ids, u.ID)
		}
	}

	q := `SELECT ` + userColumns + ` FROM "user"
		WHERE (username = $1 OR email = $2 OR phone = $3) AND NOT (id = ANY($4::uuid[]))
		LIMIT 1`
	var row userRow
	err := sqlx.GetContext(ctx, repo.db, &row, q, nullString(username), nullString(email), nullString(phone), ids)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}

	switch {
	case username != "" && row.Username.String == username:
		return user.ErrUsernameExists
	case email != "" && row.Email.String == email:
		return user.ErrEmailExists
	case phone != "" && row.Phone.String == phone:
		return user.ErrPhoneExists
	}
	return user.ErrUserExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	r := repo.toRow(usr)

	q := `INSERT INTO "user" (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns
	var row userRow
	err := sqlx.GetContext(ctx, repo.db, &row, q,
		r.ID, r.Name, r.Username, r.Email, r.Phone, r.IsActive, r.Roles, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin)
	if err != nil {
		return user.User{}, repo.trapErr(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var where string
	var args []interface{}

	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		where, args = "id = $1", []interface{}{filter.ID}
	case filter.Username != "":
		where, args = "username = $1", []interface{}{filter.Username}
	case filter.Email != "":
		where, args = "email = $1", []interface{}{filter.Email}
	case filter.Phone != "":
		where, args = "phone = $1", []interface{}{filter.Phone}
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		where, args = "username = $1 OR email = $2", []interface{}{uname, email}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM "user" WHERE ` + where + ` LIMIT 1`
	if err := sqlx.GetContext(ctx, repo.db, &row, q, args...); err != nil {
		return user.User{}, repo.trapErr(err, "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !isUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	r := repo.toRow(usr)

	sets := strings.Join([]string{
		"name = $2", "username = $3", "email = $4", "phone = $5", "is_active = $6", "roles = $7",
		"password_hash = $8", "updated_at = $9", "last_login = $10",
	}, ", ")
	q := `UPDATE "user" SET ` + sets + ` WHERE id = $1 RETURNING ` + userColumns
	var row userRow
	err := sqlx.GetContext(ctx, repo.db, &row, q,
		r.ID, r.Name, r.Username, r.Email, r.Phone, r.IsActive, r.Roles, r.PasswordHash, time.Now().UTC(), r.LastLogin)
	if err != nil {
		return user.User{}, repo.trapErr(err, "updating user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		now := time.Now().UTC()
		if usr.CreatedAt.IsZero() {
			usr.CreatedAt = now
		}
		usr.UpdatedAt = now
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr)
}
