package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"kisaanconnect/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns defines the standard set of columns selected for user queries.
// Used consistently across all query methods to avoid column drift.
const userColumns = `u.id, u.username, u.password_hash, u.role, u.name, u.email, u.created_at`

// scanUser scans a single user row into a types.User struct.
// The columns must match the order defined in userColumns.
func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var (
		name  *string
		email *string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Role,
		&name,
		&email,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if name != nil {
		u.Name = *name
	}
	if email != nil {
		u.Email = *email
	}
	return &u, nil
}

// Create inserts a new user and populates the generated ID and created_at.
// Returns ErrCodeConflictUsername (409) if the username is already taken
// (unique constraint violation on users.username).
func (r *UserRepository) Create(ctx context.Context, user *types.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, role, name, email)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		user.Username,
		user.PasswordHash,
		user.Role,
		nilIfEmpty(user.Name),
		nilIfEmpty(user.Email),
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictUsername, "username already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
// Returns ErrCodeNotFoundUser if no user exists.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = $1`,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}

// GetByUsername retrieves a user by their username. Used by the login flow.
// Returns ErrCodeAuthUserNotFound if no user exists; the auth service folds
// this into the generic invalid-credentials response so login does not leak
// which usernames exist.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.username = $1`,
		username,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthUserNotFound, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user by username", err)
	}
	return u, nil
}
