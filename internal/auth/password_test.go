package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		expectError bool
	}{
		{
			name:     "Valid password",
			password: "validPassword123",
		},
		{
			name:     "Minimum length password",
			password: "12345678",
		},
		{
			name:        "Too short password",
			password:    "1234567",
			expectError: true,
		},
		{
			name:        "Empty password",
			password:    "",
			expectError: true,
		},
		{
			name:     "Complex password with special characters",
			password: "P@ssw0rd!2023#$%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
				t.Error("Hash doesn't appear to be bcrypt format")
			}

			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(tt.password)); err != nil {
				t.Errorf("Generated hash doesn't validate against original password: %v", err)
			}
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	password := "testPassword123"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	tests := []struct {
		name        string
		password    string
		expectError bool
	}{
		{
			name:     "Correct password",
			password: password,
		},
		{
			name:        "Wrong password",
			password:    "wrongPassword",
			expectError: true,
		},
		{
			name:        "Empty password",
			password:    "",
			expectError: true,
		},
		{
			name:        "Case sensitive - different case",
			password:    "TESTPASSWORD123",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPassword(hash, tt.password)

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		expectError bool
	}{
		{name: "Valid 8 character password", password: "12345678"},
		{name: "Valid long password", password: "thisIsAVeryLongPasswordWithManyCharacters123!@#"},
		{name: "7 characters - too short", password: "1234567", expectError: true},
		{name: "Empty password", password: "", expectError: true},
		{name: "1 character", password: "a", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestHashPasswordBcryptCost(t *testing.T) {
	hash, err := HashPassword("testPassword123")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("Failed to extract cost: %v", err)
	}

	if cost != bcryptCost {
		t.Errorf("Expected cost %d, got %d", bcryptCost, cost)
	}
}

func BenchmarkVerifyPassword(b *testing.B) {
	password := "benchmarkPassword123"
	hash, _ := HashPassword(password)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = VerifyPassword(hash, password)
	}
}
