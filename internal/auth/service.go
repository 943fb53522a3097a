// Package auth owns identity: issuing and verifying bearer tokens,
// the wholesale signup-approval flow, and password resets.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"meatline/internal/profile"
)

var (
	ErrBadCredentials    = errors.New("invalid email or password")
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrInvalidLicense    = errors.New("invalid wholesale license format")
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrSignupNotApproved = errors.New("signup request has not been approved")
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// Wholesale license numbers look like "CA-123456".
	licensePattern = regexp.MustCompile(`^[A-Z]{2}-\d{6}$`)
)

type SignupInput struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Company       string `json:"company"`
	LicenseNumber string `json:"license_number"`
	Password      string `json:"password"`
}

type LoginResult struct {
	Token string        `json:"token"`
	User  *profile.User `json:"user"`
}

type Service struct {
	users    *profile.Repository
	secret   []byte
	tokenTTL time.Duration
	resetTTL time.Duration
}

func NewService(users *profile.Repository, secret []byte) *Service {
	return &Service{
		users:    users,
		secret:   secret,
		tokenTTL: 24 * time.Hour,
		resetTTL: time.Hour,
	}
}

// Login checks credentials and hands back a signed token plus the profile,
// so the storefront gets identity and user info in one round trip.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, profile.ErrUserNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}

	token, err := GenerateToken(s.secret, user.ID, user.Email, user.IsAdmin, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{Token: token, User: user}, nil
}

// Verify parses a bearer token and loads the profile it points at. An
// expired or malformed token fails here, before any handler runs.
func (s *Service) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	return ParseToken(s.secret, tokenString)
}

func (s *Service) GetUser(ctx context.Context, userID string) (*profile.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// Signup files a pending request. Wholesale accounts are approved by an
// admin before they can log in.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*profile.SignupRequest, error) {
	if !emailPattern.MatchString(input.Email) {
		return nil, ErrInvalidEmail
	}
	if !licensePattern.MatchString(input.LicenseNumber) {
		return nil, ErrInvalidLicense
	}
	if len(input.Password) < 8 {
		return nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	request := &profile.SignupRequest{
		ID:            uuid.NewString(),
		Email:         input.Email,
		Name:          input.Name,
		Company:       input.Company,
		LicenseNumber: input.LicenseNumber,
		PasswordHash:  string(hash),
		Status:        profile.SignupStatusPending,
	}
	if err := s.users.CreateSignupRequest(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// ApproveSignup flips a pending request to approved and creates the user.
func (s *Service) ApproveSignup(ctx context.Context, requestID string) (*profile.User, error) {
	request, err := s.users.GetSignupRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetSignupRequestStatus(ctx, requestID, profile.SignupStatusApproved); err != nil {
		return nil, err
	}

	user := &profile.User{
		ID:            uuid.NewString(),
		Email:         request.Email,
		Name:          request.Name,
		Company:       request.Company,
		LicenseNumber: request.LicenseNumber,
		PasswordHash:  request.PasswordHash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) RejectSignup(ctx context.Context, requestID string) error {
	if _, err := s.users.GetSignupRequest(ctx, requestID); err != nil {
		return err
	}
	return s.users.SetSignupRequestStatus(ctx, requestID, profile.SignupStatusRejected)
}

// ListSignupRequests returns signup requests, optionally filtered by status.
func (s *Service) ListSignupRequests(ctx context.Context, status string) ([]*profile.SignupRequest, error) {
	return s.users.ListSignupRequests(ctx, status)
}

// ForgotPassword issues a one-hour reset token. Whether the email exists
// is not revealed to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, profile.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	token := uuid.NewString()
	if err := s.users.CreateResetToken(ctx, user.ID, token, time.Now().Add(s.resetTTL)); err != nil {
		return err
	}

	// TODO: send the token by email once the mailer is picked; until then
	// it is only visible in the server log.
	log.Printf("password reset token for %v: %v", email, token)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	userID, err := s.users.ConsumeResetToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}
