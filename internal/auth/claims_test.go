package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-32b"

func TestAccessToken_RoundTrip(t *testing.T) {
	op := &Operator{ID: "op-001", Username: "desk", Role: RoleOperator}

	token, err := GenerateAccessToken(op, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "op-001" || claims.Username != "desk" || claims.Role != RoleOperator {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("token has no ID")
	}
	if d := time.Until(claims.ExpiresAt.Time); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expires in %v, want about an hour", d)
	}
}

func TestAccessToken_DefaultTTL(t *testing.T) {
	token, err := GenerateAccessToken(&Operator{ID: "op-001", Role: RoleViewer}, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if d := time.Until(claims.ExpiresAt.Time) - defaultTokenTTL; d < -time.Minute || d > time.Minute {
		t.Errorf("default TTL off by %v", d)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	good, _ := GenerateAccessToken(&Operator{ID: "op-001", Role: RoleAdmin}, testSecret, time.Hour)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "op-001",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleAdmin,
	}).SignedString([]byte(testSecret))
	unknownRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "op-001"},
		Role:             "owner",
	}).SignedString([]byte(testSecret))
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: RoleAdmin}).
		SignedString([]byte(testSecret))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "op-001"},
		Role:             RoleAdmin,
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "another-secret-another-secret-xx"},
		{"expired", expired, testSecret},
		{"unknown role", unknownRole, testSecret},
		{"no subject", noSubject, testSecret},
		{"wrong algorithm", wrongAlg, testSecret},
		{"garbage", "not-a-jwt", testSecret},
		{"empty", "", testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
