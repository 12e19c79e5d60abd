package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"church-quiz-service/internal/domain"
	"church-quiz-service/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuthConfig bounds registration and names the bootstrap admin.
type AuthConfig struct {
	RegistrationLimit int
	AdminName         string
	AdminPassword     string
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
}

const (
	DefaultRegistrationLimit = 20
	DefaultAdminName         = "admin"
	DefaultAdminPassword     = "admin123"
)

func (c AuthConfig) withDefaults() AuthConfig {
	if c.RegistrationLimit <= 0 {
		c.RegistrationLimit = DefaultRegistrationLimit
	}
	if c.AdminName == "" {
		c.AdminName = DefaultAdminName
	}
	if c.AdminPassword == "" {
		c.AdminPassword = DefaultAdminPassword
	}
	return c
}

// AuthService owns credentials: registration, verification, password reset.
type AuthService struct {
	users Table[domain.User]
	cfg   AuthConfig

	// mu keeps check-then-append sequences (cap, duplicate name) atomic.
	mu sync.Mutex
}

func NewAuthService(users Table[domain.User], cfg AuthConfig) *AuthService {
	return &AuthService{users: users, cfg: cfg.withDefaults()}
}

// RegistrationOpen reports whether another user may register.
func (s *AuthService) RegistrationOpen(ctx context.Context) (bool, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return false, err
	}
	return len(users) < s.cfg.RegistrationLimit, nil
}

// Register creates a player account.
func (s *AuthService) Register(ctx context.Context, name, password, confirm string) (domain.User, error) {
	if err := requireCredentials(name, password); err != nil {
		return domain.User{}, err
	}
	if password != confirm {
		return domain.User{}, fmt.Errorf("%w: passwords do not match", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users.Load(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if len(users) >= s.cfg.RegistrationLimit {
		return domain.User{}, domain.ErrRegistrationLimitReached
	}
	user, err := s.createLocked(ctx, users, name, password, domain.RoleUser)
	if err != nil {
		return domain.User{}, err
	}
	metrics.Registrations.Inc()
	log.Info().Str("user", user.Name).Msg("user registered")
	return user, nil
}

// Verify reports whether name/password match a stored user. Unknown users
// and wrong passwords both yield false.
func (s *AuthService) Verify(ctx context.Context, name, password string) (bool, error) {
	_, ok, err := s.verify(ctx, name, password)
	return ok, err
}

// Login returns the user on success and ErrInvalidCredentials otherwise.
func (s *AuthService) Login(ctx context.Context, name, password string) (domain.User, error) {
	if err := requireCredentials(name, password); err != nil {
		return domain.User{}, err
	}
	user, ok, err := s.verify(ctx, name, password)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		metrics.LoginFailures.Inc()
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// AdminLogin is Login restricted to admins. A non-admin gets the same
// generic failure as a wrong password.
func (s *AuthService) AdminLogin(ctx context.Context, name, password string) (domain.User, error) {
	user, err := s.Login(ctx, name, password)
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsAdmin() {
		metrics.LoginFailures.Inc()
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// ResetPassword replaces the password of a named user.
func (s *AuthService) ResetPassword(ctx context.Context, name, password, confirm string) error {
	if err := requireCredentials(name, password); err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("%w: passwords do not match", domain.ErrValidation)
	}
	return s.setPassword(ctx, byName(name), password)
}

// Bootstrap creates the default admin when no admin exists. The default
// credential is a known weakness and is logged as such.
func (s *AuthService) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users.Load(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.IsAdmin() {
			return nil
		}
	}
	if _, err := s.createLocked(ctx, users, s.cfg.AdminName, s.cfg.AdminPassword, domain.RoleAdmin); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	log.Warn().Str("user", s.cfg.AdminName).Msg("created default admin account; change its password")
	return nil
}

// AddUser creates a user with any role, bypassing the registration cap.
func (s *AuthService) AddUser(ctx context.Context, name, password string, role domain.Role) (domain.User, error) {
	if err := requireCredentials(name, password); err != nil {
		return domain.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.users.Load(ctx)
	if err != nil {
		return domain.User{}, err
	}
	return s.createLocked(ctx, users, name, password, role)
}

// SetPassword replaces the password of the user with the given id.
func (s *AuthService) SetPassword(ctx context.Context, userID, password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password cannot be empty", domain.ErrValidation)
	}
	return s.setPassword(ctx, byID(userID), password)
}

func (s *AuthService) setPassword(ctx context.Context, match func(int, domain.User) bool, password string) error {
	hash, err := hashPassword(password, s.cfg.HashCost)
	if err != nil {
		return err
	}
	n, err := s.users.UpdateWhere(ctx, match, func(u *domain.User) { u.PasswordHash = hash })
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUnknownUser
	}
	return nil
}

func (s *AuthService) createLocked(ctx context.Context, users []domain.User, name, password string, role domain.Role) (domain.User, error) {
	for _, u := range users {
		if u.Name == name {
			return domain.User{}, domain.ErrDuplicateUser
		}
	}
	hash, err := hashPassword(password, s.cfg.HashCost)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Append(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *AuthService) verify(ctx context.Context, name, password string) (domain.User, bool, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	for _, u := range users {
		if u.Name != name {
			continue
		}
		ok, legacy := checkPassword(u.PasswordHash, password)
		if !ok {
			return domain.User{}, false, nil
		}
		if legacy {
			s.upgradeHash(ctx, u, password)
		}
		return u, true, nil
	}
	return domain.User{}, false, nil
}

// upgradeHash rewrites a legacy digest as bcrypt; failure leaves the old hash in place.
func (s *AuthService) upgradeHash(ctx context.Context, u domain.User, password string) {
	if err := s.setPassword(ctx, byID(u.ID), password); err != nil {
		log.Warn().Err(err).Str("user", u.Name).Msg("could not upgrade legacy password hash")
	}
}

func requireCredentials(name, password string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password cannot be empty", domain.ErrValidation)
	}
	return nil
}
