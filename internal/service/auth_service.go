package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/habitloop/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// tokenTTL 与产品约定保持一致：签发后 7 天过期
const tokenTTL = 7 * 24 * time.Hour

// AuthService 负责注册、登录与令牌签发/校验
// 密码只存 bcrypt 哈希，令牌为 HS256 签名的 JWT，subject 为用户 ID

type AuthService struct {
	db     *gorm.DB
	secret []byte
}

// NewAuthService 构造 AuthService
func NewAuthService(gdb *gorm.DB, jwtSecret string) *AuthService {
	return &AuthService{db: gdb, secret: []byte(jwtSecret)}
}

// Register 创建新用户并签发令牌，邮箱重复时返回 ErrEmailTaken
func (s *AuthService) Register(name, email, password string) (*db.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user db.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing db.User
		if err := tx.Where("email = ?", email).First(&existing).Error; err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find user: %w", err)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user = db.User{
			Name:     strings.TrimSpace(name),
			Email:    email,
			Password: string(hashed),
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Login 校验邮箱与密码并签发令牌。
// 用户不存在与密码错误返回同一个错误，避免暴露邮箱是否注册。
func (s *AuthService) Login(email, password string) (*db.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user db.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// GetUser 按 ID 加载用户
func (s *AuthService) GetUser(userID string) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile 更新用户资料，邮箱与密码不允许从这里改
func (s *AuthService) UpdateProfile(userID, name, timezone string) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}
	if timezone = strings.TrimSpace(timezone); timezone != "" {
		user.Timezone = timezone
	}

	if err := s.db.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &user, nil
}

// ChangePassword 校验旧密码后换存新哈希
func (s *AuthService) ChangePassword(userID, currentPassword, newPassword string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var user db.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("find user: %w", err)
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
			return ErrInvalidCredentials
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		if err := tx.Model(&user).Update("password", string(hashed)).Error; err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
}

// GenerateToken 为用户签发 7 天有效的 HS256 JWT
func (s *AuthService) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// VerifyToken 校验签名与有效期并返回 subject 中的用户 ID
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidCredentials
	}
	return subject, nil
}
