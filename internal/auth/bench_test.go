package auth

import (
	"testing"
	"time"
)

func BenchmarkVerifyPassword(b *testing.B) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		b.Fatalf("HashPassword: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		VerifyPassword("correct-horse-battery-staple", hash) //nolint:errcheck // benchmark
	}
}

// ParseToken runs on every authenticated request.
func BenchmarkParseToken(b *testing.B) {
	token, err := GenerateAccessToken(&Operator{ID: "op-bench", Role: RoleOperator}, testSecret, time.Hour)
	if err != nil {
		b.Fatalf("GenerateAccessToken: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseToken(token, testSecret); err != nil {
			b.Fatal(err)
		}
	}
}
