package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalife/blister/internal/platform/db"
)

// -- User Repository --

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userColumns = `id, username, password_hash, full_name, role, is_active, created_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		u.ID, u.Username, u.PasswordHash, u.FullName, u.Role, u.IsActive,
	).Scan(&u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET full_name = $2, role = $3, is_active = $4
		WHERE id = $1`,
		u.ID, u.FullName, u.Role, u.IsActive,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the user. user_apps rows go with it via ON DELETE CASCADE.
func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *userRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// -- App Repository --

type appRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppRepo(pool *pgxpool.Pool) AppRepository {
	return &appRepoPG{pool: pool}
}

func (r *appRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const appColumns = `id, app_name, app_key, description, created_at`

func (r *appRepoPG) scanApp(row pgx.Row) (*App, error) {
	var a App
	if err := row.Scan(&a.ID, &a.Name, &a.Key, &a.Description, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *appRepoPG) Create(ctx context.Context, a *App) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO apps (id, app_name, app_key, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		a.ID, a.Name, a.Key, a.Description,
	).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrAppKeyTaken
	}
	return err
}

func (r *appRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*App, error) {
	return r.scanApp(r.conn(ctx).QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE id = $1`, id))
}

func (r *appRepoPG) List(ctx context.Context) ([]*App, error) {
	return r.query(ctx, `SELECT `+appColumns+` FROM apps ORDER BY app_name`)
}

func (r *appRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM apps`).Scan(&n)
	return n, err
}

func (r *appRepoPG) Assign(ctx context.Context, userID, appID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO user_apps (id, user_id, app_id) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, app_id) DO NOTHING`,
		uuid.New(), userID, appID,
	)
	return err
}

func (r *appRepoPG) Unassign(ctx context.Context, userID, appID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM user_apps WHERE user_id = $1 AND app_id = $2`, userID, appID)
	return err
}

func (r *appRepoPG) AssignedAppIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT app_id FROM user_apps WHERE user_id = $1 ORDER BY assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *appRepoPG) UserApps(ctx context.Context, userID uuid.UUID) ([]*App, error) {
	return r.query(ctx, `
		SELECT a.id, a.app_name, a.app_key, a.description, a.created_at
		FROM apps a
		JOIN user_apps ua ON ua.app_id = a.id
		WHERE ua.user_id = $1
		ORDER BY a.app_name`, userID)
}

func (r *appRepoPG) HasActiveAssignment(ctx context.Context, userID uuid.UUID, appKey string) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_apps ua
			JOIN apps a ON a.id = ua.app_id
			JOIN users u ON u.id = ua.user_id
			WHERE ua.user_id = $1 AND a.app_key = $2 AND u.is_active
		)`, userID, appKey,
	).Scan(&ok)
	return ok, err
}

func (r *appRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*App, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*App
	for rows.Next() {
		a, err := r.scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}
