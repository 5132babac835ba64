package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type SQLiteUserStore struct {
	db *sql.DB
}

func NewSQLiteUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{
		db: db,
	}
}

func (s *SQLiteUserStore) CreateUser(ctx context.Context, user User) error {
	if err := Validate(&user); err != nil {
		return err
	}

	eu, err := s.GetUserByUsername(ctx, user.Username)
	if err != nil {
		return fmt.Errorf("checking if user exists: %w", err)
	}

	if eu != nil {
		return ErrConflictedUser
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (name, username, password, status, last_active)
		VALUES (@name, @username, @password, @status, @last_active)`,
		sql.Named("name", user.Name), sql.Named("username", user.Username),
		sql.Named("password", string(hashed)), sql.Named("status", StatusOffline),
		sql.Named("last_active", time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

const userColumns = "name, username, status, last_active"

func scanUser(row interface{ Scan(...any) error }) (UserWithoutSecrets, error) {
	var user UserWithoutSecrets
	err := row.Scan(&user.Name, &user.Username, &user.Status, &user.LastActive)
	return user, err
}

func (s *SQLiteUserStore) GetUsersByUsernames(ctx context.Context, usernames ...string) ([]UserWithoutSecrets, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	values := make([]interface{}, 0, len(usernames))
	for _, username := range usernames {
		values = append(values, username)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username IN ("+strings.Repeat("?,", len(usernames)-1)+"?) ORDER BY username",
		values...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var users []UserWithoutSecrets
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return users, nil
}

func (s *SQLiteUserStore) GetUserByUsername(ctx context.Context, username string) (*UserWithoutSecrets, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ? LIMIT 1", username)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	return &user, nil
}

func (s *SQLiteUserStore) ComparePassword(ctx context.Context, username, password string) (bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT password FROM users WHERE username = ? LIMIT 1", username)

	var storedPassword string
	if err := row.Scan(&storedPassword); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("scanning password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(storedPassword), []byte(password)); err != nil {
		return false, nil
	}

	return true, nil
}

func (s *SQLiteUserStore) GetUsers(ctx context.Context, options *GetUsersOptions) ([]UserWithoutSecrets, error) {
	if options == nil {
		options = &GetUsersOptions{}
	}
	where := []string{"1 = 1"}
	values := make([]interface{}, 0, 4)

	if options.Q != "" {
		where = append(where, "(username LIKE @q OR name LIKE @q)")
		values = append(values, sql.Named("q", "%"+options.Q+"%"))
	}
	if options.Exclude != "" {
		where = append(where, "username != @exclude")
		values = append(values, sql.Named("exclude", options.Exclude))
	}

	limit := options.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := max(options.Offset, 0)
	values = append(values, sql.Named("limit", limit), sql.Named("offset", offset))

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+strings.Join(where, " AND ")+
			" ORDER BY username LIMIT @limit OFFSET @offset", values...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	users := []UserWithoutSecrets{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return users, nil
}

func (s *SQLiteUserStore) UpdatePresence(ctx context.Context, username string, status Status, lastActive time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET status = @status, last_active = @last_active WHERE username = @username",
		sql.Named("status", status), sql.Named("last_active", lastActive.UTC()), sql.Named("username", username))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
