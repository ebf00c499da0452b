package auth_test

import (
	"testing"
	"time"

	"github.com/voyago/flight-bookings/pkg/auth"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := auth.NewAccessToken("ops@voyago.test", "admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	claims, err := auth.Parse(token, "secret")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Email != "ops@voyago.test" {
		t.Fatalf("email = %q", claims.Email)
	}
	if claims.Role != "admin" {
		t.Fatalf("role = %q", claims.Role)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := auth.NewAccessToken("ops@voyago.test", "admin", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.Parse(token, "other-secret"); err == nil {
		t.Fatal("token signed with a different secret must not parse")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := auth.NewAccessToken("ops@voyago.test", "admin", "secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.Parse(token, "secret"); err == nil {
		t.Fatal("expired token must not parse")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := auth.Parse("not-a-jwt", "secret"); err == nil {
		t.Fatal("garbage must not parse")
	}
}
