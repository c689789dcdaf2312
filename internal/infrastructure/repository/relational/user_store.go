package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

const userColumns = `id, username, password_hash, email, phone, role, status, created_at, last_login`

type userRow struct {
	ID           int64          `db:"id"`
	Username     string         `db:"username"`
	PasswordHash string         `db:"password_hash"`
	Email        sql.NullString `db:"email"`
	Phone        sql.NullString `db:"phone"`
	Role         string         `db:"role"`
	Status       string         `db:"status"`
	CreatedAt    time.Time      `db:"created_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func (r userRow) toDomain() domain.User {
	u := domain.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Email:        r.Email.String,
		Phone:        r.Phone.String,
		Role:         domain.Role(r.Role),
		Status:       domain.AccountStatus(r.Status),
		CreatedAt:    r.CreatedAt,
	}
	if r.LastLogin.Valid {
		at := r.LastLogin.Time
		u.LastLogin = &at
	}
	return u
}

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	query := s.db.Rebind(`
INSERT INTO users (username, password_hash, email, phone, role, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		user.Username, user.PasswordHash, nullString(user.Email), nullString(user.Phone),
		string(user.Role), string(user.Status), user.CreatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	return nil
}

func (s *UserStore) Exists(ctx context.Context, field ports.UserField, value string) (bool, error) {
	column, err := userColumn(field)
	if err != nil {
		return false, err
	}
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM users WHERE ` + column + ` = ?`)
	if err := s.db.GetContext(ctx, &n, query, value); err != nil {
		return false, fmt.Errorf("count users by %s: %w", column, err)
	}
	return n > 0, nil
}

func (s *UserStore) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users
WHERE username = ? OR email = ? OR phone = ?
ORDER BY id
LIMIT 1`)
	return s.getOne(ctx, "find user", identifier, query, identifier, identifier, identifier)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return s.getOne(ctx, "get user", fmt.Sprintf("id=%d", id), query, id)
}

func (s *UserStore) getOne(ctx context.Context, operation, key, query string, args ...any) (*domain.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("user %s", key))
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	user := row.toDomain()
	return &user, nil
}

func (s *UserStore) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM users WHERE role = ?`), string(role)); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return n, nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET last_login = ? WHERE id = ?`), at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return ensureAffected(res, "update last login", fmt.Sprintf("id=%d", id))
}

func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}

func (s *UserStore) SetStatus(ctx context.Context, username string, status domain.AccountStatus) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET status = ? WHERE username = ?`), string(status), username)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return ensureAffected(res, "update user status", username)
}

func (s *UserStore) Delete(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE username = ?`), username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return ensureAffected(res, "delete user", username)
}

func userColumn(field ports.UserField) (string, error) {
	switch field {
	case ports.UserFieldUsername, ports.UserFieldEmail, ports.UserFieldPhone:
		return string(field), nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "user field", fmt.Errorf("unknown field %q", field))
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func ensureAffected(res sql.Result, operation, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, errors.New(key))
	}
	return nil
}
