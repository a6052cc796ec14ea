package access

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Update writes full name, role and active flag.
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	Count(ctx context.Context) (int, error)
}

type AppRepository interface {
	Create(ctx context.Context, a *App) error
	GetByID(ctx context.Context, id uuid.UUID) (*App, error)
	List(ctx context.Context) ([]*App, error)
	Count(ctx context.Context) (int, error)
	// Assign is a no-op when the assignment already exists.
	Assign(ctx context.Context, userID, appID uuid.UUID) error
	Unassign(ctx context.Context, userID, appID uuid.UUID) error
	AssignedAppIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	UserApps(ctx context.Context, userID uuid.UUID) ([]*App, error)
	// HasActiveAssignment reports whether an active user is assigned the
	// app with the given key.
	HasActiveAssignment(ctx context.Context, userID uuid.UUID, appKey string) (bool, error)
}
