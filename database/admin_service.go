package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kavaach/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AdminService handles the admin identity space. Admin tokens are short
// lived and carry the admin role for route restriction.
type AdminService struct {
	db        *sql.DB
	jwtSecret []byte
}

// NewAdminService creates a new admin service instance
func NewAdminService(db *sql.DB, jwtSecret string) *AdminService {
	return &AdminService{db: db, jwtSecret: []byte(jwtSecret)}
}

const adminTokenTTL = 24 * time.Hour

// Login authenticates an admin by email.
func (s *AdminService) Login(ctx context.Context, req *models.AdminLoginRequest) (*models.AdminAuthResponse, error) {
	var (
		admin        models.AdminUser
		passwordHash string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, password_hash, role, city
		FROM admin_users WHERE email = ?`, req.Email).
		Scan(&admin.ID, &admin.Name, &admin.Email, &passwordHash, &admin.Role, &admin.City)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to query admin: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE admin_users SET last_active = NOW() WHERE id = ?`, admin.ID); err != nil {
		return nil, fmt.Errorf("failed to touch last_active: %w", err)
	}

	token, err := s.generateToken(admin.ID, admin.Role)
	if err != nil {
		return nil, err
	}
	return &models.AdminAuthResponse{
		ID:    admin.ID,
		Name:  admin.Name,
		Email: admin.Email,
		Role:  admin.Role,
		City:  admin.City,
		Token: token,
	}, nil
}

// CreateAdmin registers a new admin user.
func (s *AdminService) CreateAdmin(ctx context.Context, req *models.CreateAdminRequest) (*models.AdminUser, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admin_users WHERE email = ?`, req.Email).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, req.Email)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	city := req.City
	if city == "" {
		city = "All Cities"
	}
	perms, err := json.Marshal(req.Perms)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	adminID := generateID()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO admin_users (id, name, email, password_hash, role, city, permissions)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		adminID, req.Name, req.Email, string(passwordHash), req.Role, city, string(perms)); err != nil {
		return nil, fmt.Errorf("failed to insert admin: %w", err)
	}

	return s.GetAdmin(ctx, adminID)
}

// GetAdmin retrieves an admin user by id.
func (s *AdminService) GetAdmin(ctx context.Context, adminID string) (*models.AdminUser, error) {
	var admin models.AdminUser
	var permsRaw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, role, city, permissions, last_active
		FROM admin_users WHERE id = ?`, adminID).
		Scan(&admin.ID, &admin.Name, &admin.Email, &admin.Role, &admin.City, &permsRaw, &admin.LastActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrAdminNotFound, adminID)
		}
		return nil, fmt.Errorf("failed to query admin: %w", err)
	}
	if permsRaw.Valid && permsRaw.String != "" {
		if err := json.Unmarshal([]byte(permsRaw.String), &admin.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}
	return &admin, nil
}

// ValidateToken validates an admin JWT and returns the admin id and role.
func (s *AdminService) ValidateToken(tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid token claims")
	}
	if kind, _ := claims["kind"].(string); kind != "admin" {
		return "", "", errors.New("not an admin token")
	}
	adminID, ok := claims["user_id"].(string)
	if !ok {
		return "", "", errors.New("invalid admin id in token")
	}
	role, _ := claims["role"].(string)
	return adminID, role, nil
}

func (s *AdminService) generateToken(adminID, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": adminID,
		"role":    role,
		"kind":    "admin",
		"exp":     now.Add(adminTokenTTL).Unix(),
		"iat":     now.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
