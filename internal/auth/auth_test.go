package auth

import (
	"reflect"
	"testing"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("user-1", []string{"admin"}, "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAccessToken(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if !reflect.DeepEqual(claims.Roles, []string{"admin"}) {
		t.Fatalf("roles = %v", claims.Roles)
	}
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("user-1", nil, "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAccessToken(token, "other-secret"); err == nil {
		t.Fatal("token accepted with wrong secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("hunter2", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestUserContext_IsAdmin(t *testing.T) {
	if (&UserContext{Roles: []string{"viewer"}}).IsAdmin() {
		t.Fatal("viewer treated as admin")
	}
	if !(&UserContext{Roles: []string{"viewer", "admin"}}).IsAdmin() {
		t.Fatal("admin role not recognized")
	}
}

func TestExtractRoles(t *testing.T) {
	if got := extractRoles(`["admin","viewer"]`); !reflect.DeepEqual(got, []string{"admin", "viewer"}) {
		t.Fatalf("json roles = %v", got)
	}
	if got := extractRoles(nil); len(got) != 0 {
		t.Fatalf("nil roles = %v", got)
	}
	if got := extractRoles("not json"); len(got) != 0 {
		t.Fatalf("malformed roles = %v", got)
	}
}
