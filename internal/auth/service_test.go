package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"streamshare/backend/internal/auth/jwt"
	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/storage"
	"streamshare/backend/internal/storage/memory"
)

func newAuthFixture(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	manager := jwt.NewManager("test-secret-key-with-enough-length", "streamshare-test", 15*time.Minute, 24*time.Hour)
	return NewService(store, manager), store
}

func TestCreateAdmin(t *testing.T) {
	t.Run("创建后密码以哈希存储", func(t *testing.T) {
		svc, store := newAuthFixture(t)

		admin, err := svc.CreateAdmin("root", "strong-password")
		require.NoError(t, err)
		assert.True(t, admin.IsActive)

		stored, err := store.GetAdminByUsername("root")
		require.NoError(t, err)
		assert.NotEqual(t, "strong-password", stored.PasswordHash)
		assert.NotEmpty(t, stored.PasswordHash)
	})

	t.Run("密码强度不足被拒绝", func(t *testing.T) {
		svc, _ := newAuthFixture(t)
		_, err := svc.CreateAdmin("root", "short")
		assert.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("用户名重复被拒绝", func(t *testing.T) {
		svc, _ := newAuthFixture(t)
		_, err := svc.CreateAdmin("root", "strong-password")
		require.NoError(t, err)

		_, err = svc.CreateAdmin("root", "another-password")
		assert.ErrorIs(t, err, storage.ErrAdminExists)
	})
}

func TestLogin(t *testing.T) {
	t.Run("凭证正确签发令牌对", func(t *testing.T) {
		svc, store := newAuthFixture(t)
		_, err := svc.CreateAdmin("root", "strong-password")
		require.NoError(t, err)

		result, err := svc.Login("root", "strong-password")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Tokens.AccessToken)
		assert.NotEmpty(t, result.Tokens.RefreshToken)
		// 返回体不携带密码哈希
		assert.Empty(t, result.Admin.PasswordHash)

		stored, err := store.GetAdminByUsername("root")
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLoginAt)
	})

	t.Run("密码错误与用户名不存在返回同一个错误", func(t *testing.T) {
		svc, _ := newAuthFixture(t)
		_, err := svc.CreateAdmin("root", "strong-password")
		require.NoError(t, err)

		_, badPass := svc.Login("root", "wrong-password")
		_, noUser := svc.Login("ghost", "whatever")
		assert.ErrorIs(t, badPass, ErrInvalidCredentials)
		assert.ErrorIs(t, noUser, ErrInvalidCredentials)
	})

	t.Run("禁用的管理员不能登录", func(t *testing.T) {
		svc, store := newAuthFixture(t)
		hash, err := bcrypt.GenerateFromPassword([]byte("strong-password"), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, store.CreateAdmin(&domain.Admin{
			ID:           "adm-frozen",
			Username:     "frozen",
			PasswordHash: string(hash),
			IsActive:     false,
		}))

		_, err = svc.Login("frozen", "strong-password")
		assert.ErrorIs(t, err, ErrAdminInactive)
	})
}

func TestTokenFlow(t *testing.T) {
	svc, _ := newAuthFixture(t)
	_, err := svc.CreateAdmin("root", "strong-password")
	require.NoError(t, err)

	result, err := svc.Login("root", "strong-password")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "root", claims.Username)

	refreshed, err := svc.RefreshAccessToken(result.Tokens.RefreshToken)
	require.NoError(t, err)
	claims, err = svc.ValidateToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, claims.AdminID, result.Admin.ID)
}
