package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"streamshare/backend/internal/auth/jwt"
	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/storage"
)

var (
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAdminInactive 管理员已被禁用
	ErrAdminInactive = errors.New("admin is inactive")
	// ErrWeakPassword 密码强度不足
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

// Service 管理员认证服务。
type Service struct {
	repo       storage.AdminRepository
	jwtManager *jwt.Manager
}

// NewService 创建认证服务。
func NewService(repo storage.AdminRepository, jwtManager *jwt.Manager) *Service {
	return &Service{repo: repo, jwtManager: jwtManager}
}

// LoginResult 登录成功后的返回内容。
type LoginResult struct {
	Admin  *domain.Admin  `json:"admin"`
	Tokens *jwt.TokenPair `json:"tokens"`
}

// Login 校验管理员凭证并签发令牌对。
// 用户名不存在与密码错误返回同一个错误，避免枚举用户名。
func (s *Service) Login(username, password string) (*LoginResult, error) {
	admin, err := s.repo.GetAdminByUsername(username)
	if err != nil {
		if errors.Is(err, storage.ErrAdminNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !admin.IsActive {
		return nil, ErrAdminInactive
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.jwtManager.GenerateTokenPair(admin.ID, admin.Username)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateAdminLastLogin(admin.ID); err != nil {
		return nil, err
	}

	admin.PasswordHash = ""
	return &LoginResult{Admin: admin, Tokens: tokens}, nil
}

// CreateAdmin 创建管理员账号。
func (s *Service) CreateAdmin(username, password string) (*domain.Admin, error) {
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	admin := &domain.Admin{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateAdmin(admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// ValidateToken 校验访问令牌。
func (s *Service) ValidateToken(token string) (*jwt.Claims, error) {
	return s.jwtManager.ValidateToken(token)
}

// RefreshAccessToken 用刷新令牌换新的访问令牌。
func (s *Service) RefreshAccessToken(refreshToken string) (string, error) {
	return s.jwtManager.RefreshAccessToken(refreshToken)
}
