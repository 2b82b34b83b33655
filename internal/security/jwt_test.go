package security

import (
	"testing"
	"time"
)

func TestUserTokenRoundTrip(t *testing.T) {
	token, errGen := GenerateToken("secret", "user-1", "u@example.com", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("user id = %q, want user-1", claims.UserID)
	}
	if claims.Email != "u@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, errGen := GenerateToken("secret", "user-1", "", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	if _, errParse := ParseToken("other", token); errParse != ErrInvalidToken {
		t.Fatalf("got %v, want ErrInvalidToken", errParse)
	}
}

func TestParseExpiredToken(t *testing.T) {
	token, errGen := GenerateToken("secret", "user-1", "", -time.Minute)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	if _, errParse := ParseToken("secret", token); errParse != ErrExpiredToken {
		t.Fatalf("got %v, want ErrExpiredToken", errParse)
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	token, errGen := GenerateAdminToken("secret", "admin-1", "root", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	claims, errParse := ParseAdminToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse admin: %v", errParse)
	}
	if claims.AdminID != "admin-1" || claims.Username != "root" {
		t.Fatalf("claims = %+v", claims)
	}
}
