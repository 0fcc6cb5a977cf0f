package service

import (
	"errors"
	"testing"
	"time"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
)

func newAuthService(s *testStack) *AuthService {
	cfg := &config.Config{JWT: config.JWTConfig{
		Secret:     "0123456789abcdef0123456789abcdef",
		ExpireTime: time.Hour,
	}}
	return NewAuthService(s.identityRepo, cfg)
}

func seedLogin(t *testing.T, s *testStack, username, password string, active bool) *model.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	identity := &model.Identity{
		Username: username,
		Password: string(hash),
		Name:     "Test User",
		Role:     model.RoleStudent,
		Timezone: "UTC",
		Active:   active,
	}
	if err := s.db.Create(identity).Error; err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	return identity
}

func TestLogin(t *testing.T) {
	s := newTestStack(t)
	auth := newAuthService(s)
	identity := seedLogin(t, s, "C01-M-G03-0001", "secret-pass", true)
	seedLogin(t, s, "C01-M-G03-0002", "whatever", false)

	res, err := auth.Login("C01-M-G03-0001", "secret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := util.ParseJWT(res.Token, auth.Cfg.JWT.Secret)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != identity.ID || claims.Role != model.RoleStudent {
		t.Errorf("claims = %+v", claims)
	}

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "unknown user", username: "nobody", password: "secret-pass"},
		{name: "wrong password", username: "C01-M-G03-0001", password: "nope"},
		{name: "deactivated account", username: "C01-M-G03-0002", password: "whatever"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.Login(tt.username, tt.password); !errors.Is(err, util.ErrForbidden) {
				t.Errorf("Login error = %v, want forbidden", err)
			}
		})
	}
}

func TestChangePassword(t *testing.T) {
	s := newTestStack(t)
	auth := newAuthService(s)
	identity := seedLogin(t, s, "C01-M-G03-0001", "initial-pass", true)

	if err := auth.ChangePassword(identity.ID, "initial-pass", "short"); !errors.Is(err, util.ErrInvalid) {
		t.Errorf("short password error = %v, want invalid", err)
	}
	if err := auth.ChangePassword(identity.ID, "wrong-old", "long-enough-pass"); !errors.Is(err, util.ErrForbidden) {
		t.Errorf("wrong old password error = %v, want forbidden", err)
	}
	if err := auth.ChangePassword(identity.ID, "initial-pass", "long-enough-pass"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := auth.Login("C01-M-G03-0001", "long-enough-pass"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if _, err := auth.Login("C01-M-G03-0001", "initial-pass"); !errors.Is(err, util.ErrForbidden) {
		t.Error("old password still accepted")
	}
}
