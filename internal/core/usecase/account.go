package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

var (
	emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

type AccountUseCase struct {
	users    ports.UserStore
	hashCost int
	logger   *slog.Logger
	now      func() time.Time
}

func NewAccountUseCase(users ports.UserStore, hashCost int, logger *slog.Logger) *AccountUseCase {
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		hashCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountUseCase{users: users, hashCost: hashCost, logger: logger, now: time.Now}
}

func (uc *AccountUseCase) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Phone = strings.TrimSpace(reg.Phone)
	if err := validateRegistration(&reg); err != nil {
		return nil, err
	}
	if err := uc.ensureUnique(ctx, reg); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), uc.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Username:     reg.Username,
		PasswordHash: string(hash),
		Email:        reg.Email,
		Phone:        reg.Phone,
		Role:         reg.Role,
		Status:       domain.AccountActive,
		CreatedAt:    uc.now().UTC(),
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func validateRegistration(reg *domain.Registration) error {
	if reg.Username == "" || reg.Password == "" {
		return domain.WrapError(domain.ErrInvalidInput, "register", errors.New("username and password are required"))
	}
	if reg.Email != "" && !emailPattern.MatchString(reg.Email) {
		return domain.WrapError(domain.ErrInvalidInput, "register", errors.New("invalid email format"))
	}
	if reg.Phone != "" && !phonePattern.MatchString(reg.Phone) {
		return domain.WrapError(domain.ErrInvalidInput, "register", errors.New("invalid phone format"))
	}
	switch reg.Role {
	case "":
		reg.Role = domain.RoleUser
	case domain.RoleUser, domain.RoleProfessional:
	default:
		return domain.WrapError(domain.ErrInvalidInput, "register", fmt.Errorf("role %q cannot be self-assigned", reg.Role))
	}
	return nil
}

func (uc *AccountUseCase) ensureUnique(ctx context.Context, reg domain.Registration) error {
	checks := []struct {
		field ports.UserField
		value string
	}{
		{ports.UserFieldUsername, reg.Username},
		{ports.UserFieldEmail, reg.Email},
		{ports.UserFieldPhone, reg.Phone},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		taken, err := uc.users.Exists(ctx, c.field, c.value)
		if err != nil {
			return fmt.Errorf("check %s: %w", c.field, err)
		}
		if taken {
			return domain.WrapError(domain.ErrConflict, "register", fmt.Errorf("%s already registered", c.field))
		}
	}
	return nil
}

// Login accepts a username, email or phone number as identifier.
func (uc *AccountUseCase) Login(ctx context.Context, identifier, password string) (*domain.Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "login", errors.New("identifier and password are required"))
	}

	user, err := uc.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrUnauthorized, "login", errors.New("invalid credentials"))
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.WrapError(domain.ErrUnauthorized, "login", errors.New("invalid credentials"))
	}
	if user.Status == domain.AccountDisabled {
		return nil, domain.WrapError(domain.ErrForbidden, "login", errors.New("account disabled"))
	}

	if err := uc.users.TouchLastLogin(ctx, user.ID, uc.now().UTC()); err != nil {
		uc.logger.Warn("last login not updated", "user_id", user.ID, "error", err)
	}
	return &domain.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// Lookup resolves a session identity against the store, so disabled users lose access.
func (uc *AccountUseCase) Lookup(ctx context.Context, userID int64) (*domain.Identity, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user by id: %w", err)
	}
	if user.Status == domain.AccountDisabled {
		return nil, domain.WrapError(domain.ErrForbidden, "lookup user", errors.New("account disabled"))
	}
	return &domain.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// EnsureAdmin seeds the administrator account when none exists.
func (uc *AccountUseCase) EnsureAdmin(ctx context.Context, username, password string) error {
	n, err := uc.users.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		Status:       domain.AccountActive,
		CreatedAt:    uc.now().UTC(),
	}
	if err := uc.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	uc.logger.Info("admin account created", "username", username)
	return nil
}

func (uc *AccountUseCase) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := uc.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (uc *AccountUseCase) DisableUser(ctx context.Context, username string) error {
	return uc.setStatus(ctx, username, domain.AccountDisabled)
}

func (uc *AccountUseCase) EnableUser(ctx context.Context, username string) error {
	return uc.setStatus(ctx, username, domain.AccountActive)
}

func (uc *AccountUseCase) setStatus(ctx context.Context, username string, status domain.AccountStatus) error {
	if err := uc.users.SetStatus(ctx, username, status); err != nil {
		return fmt.Errorf("set status=%s: %w", status, err)
	}
	return nil
}

// DeleteUser removes a non-admin account.
func (uc *AccountUseCase) DeleteUser(ctx context.Context, username string) error {
	user, err := uc.users.FindByIdentifier(ctx, username)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user.Role == domain.RoleAdmin {
		return domain.WrapError(domain.ErrForbidden, "delete user", errors.New("admin accounts cannot be deleted"))
	}
	if err := uc.users.Delete(ctx, user.Username); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
