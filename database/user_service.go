package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"kavaach/models"
	"kavaach/scoring"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles citizen accounts, authentication and the leaderboard.
type UserService struct {
	db        *sql.DB
	jwtSecret []byte
}

// NewUserService creates a new user service instance
func NewUserService(db *sql.DB, jwtSecret string) *UserService {
	return &UserService{db: db, jwtSecret: []byte(jwtSecret)}
}

const citizenTokenTTL = 30 * 24 * time.Hour

// Signup registers a citizen. The civic id and the initial password are
// generated server-side and returned once.
func (s *UserService) Signup(ctx context.Context, req *models.SignupRequest) (*models.SignupResponse, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ?`, req.Email).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, req.Email)
	}

	userID := generateID()
	password := generatePassword()
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = "citizen"
	}
	city := req.City
	if city == "" {
		city = "Mumbai"
	}

	// Civic ids are short and random; retry a few times on collision.
	var civicID string
	for attempt := 0; attempt < 5; attempt++ {
		civicID = generateCivicID()
		_, err = s.db.ExecContext(ctx, `INSERT INTO users (id, name, email, password_hash, phone, city, civic_id, role)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, req.Name, req.Email, string(passwordHash), req.Phone, city, civicID, role)
		if err == nil {
			break
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("failed to insert user: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	token, err := s.generateToken(userID, role)
	if err != nil {
		return nil, err
	}

	return &models.SignupResponse{
		ID:                userID,
		Name:              req.Name,
		Email:             req.Email,
		CivicID:           civicID,
		Role:              role,
		Token:             token,
		GeneratedPassword: password,
	}, nil
}

// Login authenticates by email or civic id.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	var (
		user         models.User
		passwordHash string
		phone        sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, password_hash, phone, city, civic_id, role, civic_score, joined_date
		FROM users WHERE email = ? OR civic_id = ?`, req.UserID, req.UserID).
		Scan(&user.ID, &user.Name, &user.Email, &passwordHash, &phone, &user.City,
			&user.CivicID, &user.Role, &user.CivicScore, &user.JoinedDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.Phone = phone.String

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return s.authResponse(&user, token), nil
}

// GetUser retrieves a citizen profile. Level is derived from the score.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, phone, city, civic_id, role, civic_score, joined_date
		FROM users WHERE id = ?`, userID).
		Scan(&user.ID, &user.Name, &user.Email, &phone, &user.City,
			&user.CivicID, &user.Role, &user.CivicScore, &user.JoinedDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	user.Phone = phone.String
	user.Level = scoring.LevelForScore(user.CivicScore)
	return &user, nil
}

// UpdateProfile updates citizen contact details.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.User, error) {
	updates := []string{}
	args := []interface{}{}

	if req.Name != nil {
		updates = append(updates, "name = ?")
		args = append(args, *req.Name)
	}
	if req.Email != nil {
		var taken int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE email = ? AND id != ?`, *req.Email, userID).Scan(&taken); err != nil {
			return nil, fmt.Errorf("failed to check email existence: %w", err)
		}
		if taken > 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, *req.Email)
		}
		updates = append(updates, "email = ?")
		args = append(args, *req.Email)
	}
	if req.Phone != nil {
		updates = append(updates, "phone = ?")
		args = append(args, *req.Phone)
	}
	if req.City != nil {
		updates = append(updates, "city = ?")
		args = append(args, *req.City)
	}

	if len(updates) > 0 {
		args = append(args, userID)
		query := fmt.Sprintf("UPDATE users SET %s WHERE id = ?", strings.Join(updates, ", "))
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	return s.GetUser(ctx, userID)
}

// Leaderboard returns the top citizens by civic score with per-user report
// counts.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.name, u.city, u.civic_score,
			COUNT(r.report_id) AS reports,
			SUM(IF(r.status = 'Resolved', 1, 0)) AS resolved
		FROM users u
		LEFT JOIN reports r ON r.reporter_id = u.id
		GROUP BY u.id
		ORDER BY u.civic_score DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []models.LeaderboardEntry{}
	rank := 1
	for rows.Next() {
		var entry models.LeaderboardEntry
		var resolved sql.NullInt64
		if err := rows.Scan(&entry.Name, &entry.City, &entry.Score, &entry.Reports, &resolved); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entry.Rank = rank
		entry.Level = scoring.LevelForScore(entry.Score)
		entry.Avatar = avatarInitials(entry.Name)
		entry.Resolved = int(resolved.Int64)
		entries = append(entries, entry)
		rank++
	}
	return entries, rows.Err()
}

// ValidateToken validates a JWT and returns the subject id and role.
func (s *UserService) ValidateToken(tokenString string) (string, string, error) {
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
	// Admin tokens share the signing secret; they do not grant citizen access.
	if kind, _ := claims["kind"].(string); kind == "admin" {
		return "", "", errors.New("not a citizen token")
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", "", errors.New("invalid user id in token")
	}
	role, _ := claims["role"].(string)
	return userID, role, nil
}

func (s *UserService) generateToken(userID, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     now.Add(citizenTokenTTL).Unix(),
		"iat":     now.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *UserService) authResponse(user *models.User, token string) *models.AuthResponse {
	return &models.AuthResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Phone:       user.Phone,
		City:        user.City,
		CivicID:     user.CivicID,
		Role:        user.Role,
		KarmaPoints: user.CivicScore,
		Level:       scoring.LevelForScore(user.CivicScore),
		Token:       token,
		JoinedDate:  user.JoinedDate,
	}
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func generateCivicID() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(9000))
	return fmt.Sprintf("KAV-%d", 1000+n.Int64())
}

const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generatePassword() string {
	b := make([]byte, 8)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		b[i] = passwordAlphabet[n.Int64()]
	}
	return string(b)
}

// avatarInitials builds a two-letter avatar from a display name.
func avatarInitials(name string) string {
	var initials []rune
	for _, part := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(part)
		initials = append(initials, unicode.ToUpper(r))
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "Duplicate entry")
}
