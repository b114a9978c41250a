package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"kavaach/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"
)

func TestLogin(t *testing.T) {
	it(func() {
		service := NewUserService(db, "test-secret")
		hash, _ := bcrypt.GenerateFromPassword([]byte("ABCD2345"), bcrypt.DefaultCost)

		userRows := func() *sqlmock.Rows {
			return sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "phone",
				"city", "civic_id", "role", "civic_score", "joined_date"}).
				AddRow("u1", "Priya Sharma", "priya@example.com", string(hash), nil,
					"Mumbai", "KAV-4821", "citizen", 650, time.Now())
		}

		mock.ExpectQuery("SELECT id, name, email, password_hash").
			WithArgs("priya@example.com", "priya@example.com").
			WillReturnRows(userRows())

		resp, err := service.Login(context.Background(),
			&models.LoginRequest{UserID: "priya@example.com", Password: "ABCD2345"})
		if err != nil {
			t.Fatalf("Login: unexpected error: %v", err)
		}
		if resp.Token == "" {
			t.Error("Login: expected a token")
		}
		if resp.Level != "Silver" {
			t.Errorf("Login: expected Silver at 650 points, got %s", resp.Level)
		}

		// Wrong password
		mock.ExpectQuery("SELECT id, name, email, password_hash").
			WithArgs("priya@example.com", "priya@example.com").
			WillReturnRows(userRows())

		_, err = service.Login(context.Background(),
			&models.LoginRequest{UserID: "priya@example.com", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login: expected ErrInvalidCredentials, got %v", err)
		}

		// Unknown user
		mock.ExpectQuery("SELECT id, name, email, password_hash").
			WithArgs("KAV-0000", "KAV-0000").
			WillReturnError(sql.ErrNoRows)

		_, err = service.Login(context.Background(),
			&models.LoginRequest{UserID: "KAV-0000", Password: "ABCD2345"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login: expected ErrInvalidCredentials, got %v", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestTokenRoundTrip(t *testing.T) {
	it(func() {
		service := NewUserService(db, "test-secret")

		token, err := service.generateToken("u1", "citizen")
		if err != nil {
			t.Fatalf("generateToken: %v", err)
		}

		userID, role, err := service.ValidateToken(token)
		if err != nil {
			t.Fatalf("ValidateToken: %v", err)
		}
		if userID != "u1" || role != "citizen" {
			t.Errorf("ValidateToken: got (%s, %s)", userID, role)
		}

		if _, _, err := service.ValidateToken("not-a-token"); err == nil {
			t.Error("ValidateToken: expected error for garbage token")
		}

		// Citizen tokens are rejected by the admin validator.
		admins := NewAdminService(db, "test-secret")
		if _, _, err := admins.ValidateToken(token); err == nil {
			t.Error("admin ValidateToken: expected rejection of citizen token")
		}

		// And admin tokens are rejected by the citizen validator.
		adminToken, err := admins.generateToken("a1", "ops_admin")
		if err != nil {
			t.Fatalf("generateToken: %v", err)
		}
		if _, _, err := service.ValidateToken(adminToken); err == nil {
			t.Error("ValidateToken: expected rejection of admin token")
		}
	})
}

func TestSignupDuplicateEmail(t *testing.T) {
	it(func() {
		service := NewUserService(db, "test-secret")

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE email = \?`).
			WithArgs("priya@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		_, err := service.Signup(context.Background(), &models.SignupRequest{
			Name:  "Priya Sharma",
			Email: "priya@example.com",
		})
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("expected ErrDuplicateEmail, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestLeaderboard(t *testing.T) {
	it(func() {
		service := NewUserService(db, "test-secret")

		mock.ExpectQuery("SELECT u.name, u.city, u.civic_score").
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"name", "city", "civic_score", "reports", "resolved"}).
				AddRow("Priya Sharma", "Mumbai", 5200, 40, 31).
				AddRow("Arjun Mehta", "Pune", 1800, 12, nil))

		entries, err := service.Leaderboard(context.Background(), 10)
		if err != nil {
			t.Fatalf("Leaderboard: unexpected error: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("Leaderboard: expected 2 entries, got %d", len(entries))
		}
		first := entries[0]
		if first.Rank != 1 || first.Level != "Platinum" || first.Avatar != "PS" {
			t.Errorf("Leaderboard: unexpected first entry: %+v", first)
		}
		if entries[1].Resolved != 0 {
			t.Errorf("Leaderboard: NULL resolved should scan as 0, got %d", entries[1].Resolved)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestAvatarInitials(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{"Priya Sharma", "PS"},
		{"Arjun", "A"},
		{"Ravi Kumar Verma", "RK"},
		{"Åsa Öberg", "ÅÖ"},
		{"josé garcía", "JG"},
	}
	for _, testCase := range testCases {
		if got := avatarInitials(testCase.name); got != testCase.expected {
			t.Errorf("avatarInitials(%q) = %q, expected %q", testCase.name, got, testCase.expected)
		}
	}
}
