package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	"github.com/garyjia/hr-approval/internal/domain/workflow"
	"github.com/garyjia/hr-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// UserRepository implements port.UserDirectory over the users, roles and user_roles tables
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserDirectory {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the user and grants its roles
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	for _, role := range user.Roles.Slice() {
		if !role.IsValid() {
			return fmt.Errorf("%w: unknown role %q", workflow.ErrValidation, role)
		}
	}
	if strings.TrimSpace(user.Name) == "" || strings.TrimSpace(user.Email) == "" {
		return fmt.Errorf("%w: missing required fields: name, email", workflow.ErrValidation)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	exec := r.getExecutor(ctx)
	result, err := exec.ExecContext(ctx,
		`INSERT INTO users (name, email, lark_open_id, created_at) VALUES (?, ?, ?, ?)`,
		user.Name, strings.ToLower(user.Email), user.LarkOpenID, user.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id

	for _, role := range user.Roles.Slice() {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name = ?`,
			id, string(role))
		if err != nil {
			r.logger.Error("Failed to grant role", zap.Int64("user_id", id), zap.String("role", role.String()), zap.Error(err))
			return fmt.Errorf("failed to grant role %s: %w", role, err)
		}
	}

	return nil
}

// RolesOf returns the roles held by a user; unknown users hold none
func (r *UserRepository) RolesOf(ctx context.Context, userID int64) (identity.RoleSet, error) {
	query := `
		SELECT ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to load roles", zap.Int64("user_id", userID), zap.Error(err))
		return identity.RoleSet{}, fmt.Errorf("failed to load roles: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return identity.RoleSet{}, fmt.Errorf("failed to scan role: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return identity.RoleSet{}, err
	}

	return identity.ParseRoleSet(labels...), nil
}

// GetByID retrieves a user with roles; nil, nil when missing
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByEmail retrieves a user with roles; nil, nil when missing
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// UsersWithRole returns every user holding the role, ordered by id
func (r *UserRepository) UsersWithRole(ctx context.Context, role identity.Role) ([]*entity.User, error) {
	query := `
		SELECT u.id, u.name, u.email, u.lark_open_id, u.created_at
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ro.name = ?
		ORDER BY u.id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, string(role))
	if err != nil {
		r.logger.Error("Failed to list users with role", zap.String("role", role.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list users with role: %w", err)
	}

	var users []*entity.User
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.LarkOpenID, &u.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Roles are loaded after the cursor is closed; sqlite may run on a single connection
	for _, u := range users {
		roles, err := r.RolesOf(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		u.Roles = roles
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users, nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*entity.User, error) {
	query := `SELECT id, name, email, lark_open_id, created_at FROM users WHERE ` + where

	var u entity.User
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.LarkOpenID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	roles, err := r.RolesOf(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles

	return &u, nil
}

// getExecutor returns appropriate executor based on context
func (r *UserRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.UserDirectory = (*UserRepository)(nil)
