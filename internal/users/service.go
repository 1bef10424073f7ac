package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"permit-backend/internal/shared/auth"
	"permit-backend/internal/shared/clock"
	"permit-backend/internal/shared/telemetry"
)

const minPasswordLength = 8

// TokenSigner issues session tokens.
type TokenSigner interface {
	Sign(subject string, claims auth.Claims) (string, error)
}

type Service struct {
	Repo     Repo
	Tokens   TokenSigner
	Clock    clock.Clock
	NewID    func() string
	HashCost int
}

func NewService(repo Repo, tokens TokenSigner) *Service {
	return &Service{Repo: repo, Tokens: tokens}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ProfileUpdate carries the editable profile fields. Nil leaves a field unchanged.
type ProfileUpdate struct {
	Name    *string
	Email   *string
	Phone   *string
	Company *string
	Street  *string
	City    *string
	State   *string
	Zip     *string
}

// Register creates a Customer account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	var issues []string
	if name == "" {
		issues = append(issues, "Name is required.")
	}
	if !validEmail(email) {
		issues = append(issues, "A valid email is required.")
	}
	if len(in.Password) < minPasswordLength {
		issues = append(issues, fmt.Sprintf("Password must be at least %d characters.", minPasswordLength))
	}
	if len(issues) > 0 {
		return User{}, &ValidationError{Issues: issues}
	}

	if _, err := s.Repo.GetByEmail(ctx, email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost())
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := User{
		ID:           s.newID(),
		Email:        strings.ToLower(email),
		Name:         name,
		PasswordHash: string(hash),
		Role:         auth.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	telemetry.Info("users.registered", map[string]any{"user_id": user.ID})
	return user, nil
}

// Login checks the password and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		telemetry.Warn("users.login.rejected", map[string]any{"user_id": user.ID})
		return "", ErrInvalidCredentials
	}
	return s.IssueToken(user)
}

// IssueToken signs a session token for user.
func (s *Service) IssueToken(user User) (string, error) {
	if s.Tokens == nil {
		return "", errors.New("token signer not configured")
	}
	return s.Tokens.Sign(user.ID, auth.Claims{Email: user.Email, Name: user.Name, Role: user.Role})
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < minPasswordLength {
		return &ValidationError{Issues: []string{fmt.Sprintf("Password must be at least %d characters.", minPasswordLength)}}
	}
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.hashCost())
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now()
	return s.Repo.Update(ctx, user)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (User, error) {
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (User, error) {
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return User{}, &ValidationError{Issues: []string{"Name is required."}}
		}
		user.Name = name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if !validEmail(email) {
			return User{}, &ValidationError{Issues: []string{"A valid email is required."}}
		}
		user.Email = strings.ToLower(email)
	}
	assign(&user.Phone, upd.Phone)
	assign(&user.Company, upd.Company)
	assign(&user.Street, upd.Street)
	assign(&user.City, upd.City)
	assign(&user.State, upd.State)
	assign(&user.Zip, upd.Zip)
	user.UpdatedAt = s.now()

	if err := s.Repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpsertExternal finds the account for a verified external email or creates
// a password-less Customer account for it.
func (s *Service) UpsertExternal(ctx context.Context, email, name string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return User{}, &ValidationError{Issues: []string{"A valid email is required."}}
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if err == nil {
		if name = strings.TrimSpace(name); name != "" && user.Name == "" {
			user.Name = name
			user.UpdatedAt = s.now()
			if err := s.Repo.Update(ctx, user); err != nil {
				return User{}, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	now := s.now()
	user = User{
		ID:        s.newID(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      auth.RoleCustomer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return s.Repo.GetByEmail(ctx, email)
		}
		return User{}, err
	}
	telemetry.Info("users.registered", map[string]any{"user_id": user.ID, "source": "external"})
	return user, nil
}

func (s *Service) hashCost() int {
	if s.HashCost > 0 {
		return s.HashCost
	}
	return bcrypt.DefaultCost
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return clock.System{}.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func assign(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
