package service

import (
	"errors"
	"testing"

	"github.com/habitloop/internal/db"
)

func TestAuthRegisterAndLogin(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewAuthService(db.DB, "test-secret")

	user, token, err := svc.Register("小明", "ming@example.com", "secret123")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID == "" || token == "" {
		t.Fatal("expected user id and token")
	}
	if user.Password == "secret123" {
		t.Fatal("password must be stored hashed")
	}

	// 重复邮箱
	if _, _, err := svc.Register("小红", "MING@example.com", "another"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// 登录成功并可验证令牌
	logged, token, err := svc.Login("ming@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("unexpected user: %s", logged.ID)
	}

	subject, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken returned error: %v", err)
	}
	if subject != user.ID {
		t.Fatalf("expected subject %s, got %s", user.ID, subject)
	}

	// 密码错误与未知邮箱返回同一个错误
	if _, _, err := svc.Login("ming@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login("ghost@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthVerifyTokenRejectsGarbage(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewAuthService(db.DB, "test-secret")
	if _, err := svc.VerifyToken("not-a-jwt"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// 其他密钥签发的令牌不被接受
	other := NewAuthService(db.DB, "other-secret")
	token, err := other.GenerateToken("user-1")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for foreign signature, got %v", err)
	}
}

func TestAuthChangePassword(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewAuthService(db.DB, "test-secret")
	user, _, err := svc.Register("小林", "lin@example.com", "oldpass1")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if err := svc.ChangePassword(user.ID, "wrong", "newpass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := svc.ChangePassword(user.ID, "oldpass1", "newpass1"); err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}

	if _, _, err := svc.Login("lin@example.com", "newpass1"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
	if _, _, err := svc.Login("lin@example.com", "oldpass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
}

func TestAuthUpdateProfile(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewAuthService(db.DB, "test-secret")
	user, _, err := svc.Register("小周", "zhou@example.com", "secret123")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	updated, err := svc.UpdateProfile(user.ID, "周工", "Asia/Shanghai")
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.Name != "周工" || updated.Timezone != "Asia/Shanghai" {
		t.Fatalf("unexpected profile: %s/%s", updated.Name, updated.Timezone)
	}
	// 邮箱不可从资料接口修改
	if updated.Email != "zhou@example.com" {
		t.Fatalf("email must be unchanged, got %s", updated.Email)
	}

	if _, err := svc.UpdateProfile("missing-id", "x", ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
