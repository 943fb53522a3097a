// Package profile stores the account-side data: users, their delivery
// addresses, and loyalty points.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrSignupRequestNotFound   = errors.New("signup request not found")
	ErrResetTokenNotFound      = errors.New("reset token not found or expired")
	ErrSignupRequestNotPending = errors.New("signup request is not pending")
)

const (
	SignupStatusPending  = "pending"
	SignupStatusApproved = "approved"
	SignupStatusRejected = "rejected"
)

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Company       string    `json:"company"`
	LicenseNumber string    `json:"license_number"`
	PasswordHash  string    `json:"-"`
	IsAdmin       bool      `json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
}

type Address struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2,omitempty"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zip       string    `json:"zip"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

type PointsEntry struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	Points    decimal.Decimal `json:"points"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

type SignupRequest struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Company       string    `json:"company"`
	LicenseNumber string    `json:"license_number"`
	PasswordHash  string    `json:"-"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, name, company, license_number, password_hash, is_admin, created_at`

func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getUser(ctx, query, id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getUser(ctx, query, email)
}

func (r *Repository) getUser(ctx context.Context, query string, arg interface{}) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.Company, &u.LicenseNumber, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	query := `INSERT INTO users (id, email, name, company, license_number, password_hash, is_admin, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, u.Company, u.LicenseNumber, u.PasswordHash, u.IsAdmin)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) ListAddressesByUserID(ctx context.Context, userID string) ([]*Address, error) {
	query := `SELECT id, user_id, line1, line2, city, state, zip, is_default, created_at
	          FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*Address
	for rows.Next() {
		a := &Address{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Line1, &a.Line2, &a.City, &a.State, &a.Zip, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return addresses, nil
}

func (r *Repository) ListPointsByUserID(ctx context.Context, userID string) ([]*PointsEntry, error) {
	query := `SELECT id, user_id, points, reason, created_at
	          FROM points WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var entries []*PointsEntry
	for rows.Next() {
		p := &PointsEntry{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Points, &p.Reason, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan points entry: %w", err)
		}
		entries = append(entries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

func (r *Repository) GetTotalPoints(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM points WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query total points: %w", err)
	}
	return total, nil
}

func (r *Repository) CreateSignupRequest(ctx context.Context, req *SignupRequest) error {
	query := `INSERT INTO signup_requests (id, email, name, company, license_number, password_hash, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.Email, req.Name, req.Company, req.LicenseNumber, req.PasswordHash, req.Status)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert signup request: %w", err)
	}
	return nil
}

func (r *Repository) GetSignupRequest(ctx context.Context, id string) (*SignupRequest, error) {
	query := `SELECT id, email, name, company, license_number, password_hash, status, created_at
	          FROM signup_requests WHERE id = $1`

	var req SignupRequest
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.Email, &req.Name, &req.Company, &req.LicenseNumber, &req.PasswordHash, &req.Status, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSignupRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query signup request: %w", err)
	}
	return &req, nil
}

func (r *Repository) ListSignupRequests(ctx context.Context, status string) ([]*SignupRequest, error) {
	query := `SELECT id, email, name, company, license_number, password_hash, status, created_at
	          FROM signup_requests WHERE ($1 = '' OR status = $1) ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("query signup requests: %w", err)
	}
	defer rows.Close()

	var requests []*SignupRequest
	for rows.Next() {
		req := &SignupRequest{}
		if err := rows.Scan(&req.ID, &req.Email, &req.Name, &req.Company, &req.LicenseNumber, &req.PasswordHash, &req.Status, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signup request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return requests, nil
}

func (r *Repository) SetSignupRequestStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE signup_requests SET status = $2 WHERE id = $1 AND status = $3`,
		id, status, SignupStatusPending)
	if err != nil {
		return fmt.Errorf("update signup request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrSignupRequestNotPending
	}
	return nil
}

func (r *Repository) CreateResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_resets (token, user_id, expires_at, created_at) VALUES ($1, $2, $3, NOW())`,
		token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken deletes and returns the owning user id in one statement,
// so a token can only ever be spent once.
func (r *Repository) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM password_resets WHERE token = $1 AND expires_at > NOW() RETURNING user_id`,
		token).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrResetTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return userID, nil
}
