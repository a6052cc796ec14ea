package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmalife/blister/internal/platform/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrAppKeyTaken        = errors.New("app key already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrAppNotFound        = errors.New("app not found")
	ErrInvalidInput       = errors.New("invalid input")
)

// DefaultAdminUsername is the account Seed creates on an empty users table.
const DefaultAdminUsername = "admin"

// SessionRevoker ends every outstanding session of a user.
// *auth.TokenRevocationStore satisfies it.
type SessionRevoker interface {
	RevokeUser(userID uuid.UUID)
}

type Service struct {
	users   UserRepository
	apps    AppRepository
	revoker SessionRevoker
}

func NewService(users UserRepository, apps AppRepository) *Service {
	return &Service{users: users, apps: apps}
}

// SetRevoker makes deactivation, deletion and password changes end the
// user's existing sessions.
func (s *Service) SetRevoker(r SessionRevoker) {
	s.revoker = r
}

func (s *Service) revoke(id uuid.UUID) {
	if s.revoker != nil {
		s.revoker.RevokeUser(id)
	}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

func validRole(role string) bool {
	return role == auth.RoleAdmin || role == auth.RoleUser
}

// -- Authentication --

// Authenticate checks a username and password. Unknown users, inactive
// users and wrong passwords all yield ErrInvalidCredentials. Hashes in an
// outdated format are replaced with bcrypt on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, needsRehash := auth.VerifyPassword(u.PasswordHash, password)
	if !ok || !u.IsActive {
		return nil, ErrInvalidCredentials
	}

	if needsRehash {
		logger := zerolog.Ctx(ctx)
		hash, err := auth.HashPassword(password)
		if err == nil {
			err = s.users.UpdatePassword(ctx, u.ID, hash)
		}
		if err != nil {
			logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("password rehash skipped")
		} else {
			u.PasswordHash = hash
			logger.Info().Str("user_id", u.ID.String()).Msg("password hash upgraded")
		}
	}
	return u, nil
}

// -- Users --

type CreateUserInput struct {
	Username string
	Password string
	FullName string
	Role     string
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Username == "" {
		return nil, invalid("username is required")
	}
	if in.FullName == "" {
		return nil, invalid("full_name is required")
	}
	if in.Role == "" {
		in.Role = auth.RoleUser
	}
	if !validRole(in.Role) {
		return nil, invalid("role must be admin or user")
	}

	hash, err := auth.HashPassword(in.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return nil, invalid(err.Error())
	}
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:     in.Username,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("user created")
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateUserInput fields left nil are not changed.
type UpdateUserInput struct {
	FullName *string
	Role     *string
	IsActive *bool
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActive, oldRole := u.IsActive, u.Role

	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, invalid("full_name must not be empty")
		}
		u.FullName = name
	}
	if in.Role != nil {
		if !validRole(*in.Role) {
			return nil, invalid("role must be admin or user")
		}
		u.Role = *in.Role
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	// tokens carry the role, so a demotion has to end them too
	if (wasActive && !u.IsActive) || oldRole != u.Role {
		s.revoke(u.ID)
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.revoke(id)
	zerolog.Ctx(ctx).Info().Str("user_id", id.String()).Msg("user deleted")
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, password string) error {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return invalid(err.Error())
	}
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	s.revoke(id)
	return nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// -- Apps --

func (s *Service) ListApps(ctx context.Context) ([]*App, error) {
	return s.apps.List(ctx)
}

func (s *Service) CreateApp(ctx context.Context, a *App) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Key = strings.TrimSpace(a.Key)
	if a.Name == "" {
		return invalid("app_name is required")
	}
	if a.Key == "" {
		return invalid("app_key is required")
	}
	return s.apps.Create(ctx, a)
}

// AssignApp grants the user the app. Assigning twice is not an error.
func (s *Service) AssignApp(ctx context.Context, userID, appID uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if _, err := s.apps.GetByID(ctx, appID); err != nil {
		return err
	}
	return s.apps.Assign(ctx, userID, appID)
}

func (s *Service) RemoveApp(ctx context.Context, userID, appID uuid.UUID) error {
	return s.apps.Unassign(ctx, userID, appID)
}

func (s *Service) AssignedAppIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.apps.AssignedAppIDs(ctx, userID)
}

func (s *Service) UserApps(ctx context.Context, userID uuid.UUID) ([]*App, error) {
	return s.apps.UserApps(ctx, userID)
}

// HasAppAccess implements auth.AppAccessChecker. Admins may open every app;
// other users need an assignment and an active account.
func (s *Service) HasAppAccess(ctx context.Context, userID uuid.UUID, role, appKey string) (bool, error) {
	if role == auth.RoleAdmin {
		return true, nil
	}
	return s.apps.HasActiveAssignment(ctx, userID, appKey)
}

// -- Seeding --

type SeedResult struct {
	AdminCreated bool
	AppCreated   bool
}

// Seed creates the admin account when there are no users and app when
// there are no apps. Running it again changes nothing.
func (s *Service) Seed(ctx context.Context, adminPassword string, app App) (SeedResult, error) {
	var res SeedResult

	n, err := s.users.Count(ctx)
	if err != nil {
		return res, fmt.Errorf("count users: %w", err)
	}
	if n == 0 {
		if _, err := s.CreateUser(ctx, CreateUserInput{
			Username: DefaultAdminUsername,
			Password: adminPassword,
			FullName: "Administrator",
			Role:     auth.RoleAdmin,
		}); err != nil {
			return res, fmt.Errorf("create admin: %w", err)
		}
		res.AdminCreated = true
	}

	n, err = s.apps.Count(ctx)
	if err != nil {
		return res, fmt.Errorf("count apps: %w", err)
	}
	if n == 0 {
		if err := s.CreateApp(ctx, &app); err != nil {
			return res, fmt.Errorf("create app: %w", err)
		}
		res.AppCreated = true
	}
	return res, nil
}
