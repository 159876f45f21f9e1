package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/storage"
)

func testAccount(id string) *domain.Account {
	now := time.Now().UTC()
	return &domain.Account{
		ID:        id,
		Username:  "shared@example.com",
		Password:  "secret",
		Profiles:  domain.DefaultProfiles(5),
		Status:    1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testCode(id, accountID string, purpose domain.CodePurpose, createdAt time.Time, validity time.Duration) *domain.VerificationCode {
	return &domain.VerificationCode{
		ID:        id,
		AccountID: accountID,
		Purpose:   purpose,
		Code:      "482913",
		Source:    domain.SourceMailbox,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(validity),
	}
}

func TestAccountCRUD(t *testing.T) {
	t.Run("保存后可按ID读取", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveAccount(testAccount("acct-1")))

		got, err := store.GetAccount("acct-1")
		require.NoError(t, err)
		assert.Equal(t, "shared@example.com", got.Username)
		assert.Len(t, got.Profiles, 5)
	})

	t.Run("重复保存是覆盖更新", func(t *testing.T) {
		store := NewStore()
		account := testAccount("acct-1")
		require.NoError(t, store.SaveAccount(account))

		account.Notes = "更新备注"
		require.NoError(t, store.SaveAccount(account))

		got, err := store.GetAccount("acct-1")
		require.NoError(t, err)
		assert.Equal(t, "更新备注", got.Notes)

		list, err := store.ListAccounts()
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("读取返回副本，外部修改不影响存储", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveAccount(testAccount("acct-1")))

		got, err := store.GetAccount("acct-1")
		require.NoError(t, err)
		got.Username = "tampered"

		again, err := store.GetAccount("acct-1")
		require.NoError(t, err)
		assert.Equal(t, "shared@example.com", again.Username)
	})

	t.Run("不存在的账号返回专用错误", func(t *testing.T) {
		store := NewStore()
		_, err := store.GetAccount("missing")
		assert.ErrorIs(t, err, storage.ErrAccountNotFound)
		assert.ErrorIs(t, store.DeleteAccount("missing"), storage.ErrAccountNotFound)
	})

	t.Run("删除后不可再读取", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveAccount(testAccount("acct-1")))
		require.NoError(t, store.DeleteAccount("acct-1"))

		_, err := store.GetAccount("acct-1")
		assert.ErrorIs(t, err, storage.ErrAccountNotFound)
	})
}

func TestSharePageStore(t *testing.T) {
	newPage := func(id, code string) *domain.SharePage {
		now := time.Now().UTC()
		return &domain.SharePage{
			ID:           id,
			Code:         code,
			AccountID:    "acct-1",
			DurationDays: 30,
			Status:       1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	t.Run("按ID与分享码都能查到", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveSharePage(newPage("page-1", "abcDEF2345")))

		byID, err := store.GetSharePage("page-1")
		require.NoError(t, err)
		assert.Equal(t, "abcDEF2345", byID.Code)

		byCode, err := store.GetSharePageByCode("abcDEF2345")
		require.NoError(t, err)
		assert.Equal(t, "page-1", byCode.ID)
	})

	t.Run("删除同时清理分享码索引", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveSharePage(newPage("page-1", "abcDEF2345")))
		require.NoError(t, store.DeleteSharePage("page-1"))

		_, err := store.GetSharePageByCode("abcDEF2345")
		assert.ErrorIs(t, err, storage.ErrSharePageNotFound)
	})

	t.Run("不存在的分享码返回专用错误", func(t *testing.T) {
		store := NewStore()
		_, err := store.GetSharePageByCode("nope")
		assert.ErrorIs(t, err, storage.ErrSharePageNotFound)
	})
}

func TestGetValidCode(t *testing.T) {
	t.Run("返回同键下最新一条", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		old := testCode("c-1", "acct-1", domain.PurposeLogin, now.Add(-time.Minute), 10*time.Minute)
		old.Code = "111111"
		latest := testCode("c-2", "acct-1", domain.PurposeLogin, now, 10*time.Minute)
		latest.Code = "222222"
		require.NoError(t, store.SaveCode(old))
		require.NoError(t, store.SaveCode(latest))

		got, err := store.GetValidCode("acct-1", domain.PurposeLogin)
		require.NoError(t, err)
		assert.Equal(t, "222222", got.Code)
	})

	t.Run("不同用途互不可见", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		require.NoError(t, store.SaveCode(testCode("c-1", "acct-1", domain.PurposeLogin, now, 10*time.Minute)))

		_, err := store.GetValidCode("acct-1", domain.PurposeDeviceTransfer)
		assert.ErrorIs(t, err, storage.ErrCodeNotFound)
	})

	t.Run("已使用的记录被过滤", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		code := testCode("c-1", "acct-1", domain.PurposeLogin, now, 10*time.Minute)
		require.NoError(t, store.SaveCode(code))

		code.Consumed = true
		code.ConsumedAt = &now
		require.NoError(t, store.UpdateCode(code))

		_, err := store.GetValidCode("acct-1", domain.PurposeLogin)
		assert.ErrorIs(t, err, storage.ErrCodeNotFound)
	})

	t.Run("已过期的记录被过滤", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		require.NoError(t, store.SaveCode(testCode("c-1", "acct-1", domain.PurposeLogin, now.Add(-time.Hour), time.Minute)))

		_, err := store.GetValidCode("acct-1", domain.PurposeLogin)
		assert.ErrorIs(t, err, storage.ErrCodeNotFound)
	})

	t.Run("更新不存在的记录报错", func(t *testing.T) {
		store := NewStore()
		err := store.UpdateCode(testCode("ghost", "acct-1", domain.PurposeLogin, time.Now().UTC(), time.Minute))
		assert.ErrorIs(t, err, storage.ErrCodeNotFound)
	})
}

func TestDeleteExpiredCodes(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()
	require.NoError(t, store.SaveCode(testCode("c-1", "acct-1", domain.PurposeLogin, now.Add(-time.Hour), time.Minute)))
	require.NoError(t, store.SaveCode(testCode("c-2", "acct-2", domain.PurposeLogin, now.Add(-time.Hour), time.Minute)))
	require.NoError(t, store.SaveCode(testCode("c-3", "acct-3", domain.PurposeLogin, now, 10*time.Minute)))

	n, err := store.DeleteExpiredCodes(now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 未过期的记录仍在
	got, err := store.GetValidCode("acct-3", domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "c-3", got.ID)
}

func TestAdminStore(t *testing.T) {
	t.Run("用户名唯一", func(t *testing.T) {
		store := NewStore()
		admin := &domain.Admin{ID: "adm-1", Username: "root", PasswordHash: "x", IsActive: true}
		require.NoError(t, store.CreateAdmin(admin))

		dup := &domain.Admin{ID: "adm-2", Username: "root", PasswordHash: "y", IsActive: true}
		assert.ErrorIs(t, store.CreateAdmin(dup), storage.ErrAdminExists)
	})

	t.Run("记录最近登录时间", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.CreateAdmin(&domain.Admin{ID: "adm-1", Username: "root", PasswordHash: "x", IsActive: true}))
		require.NoError(t, store.UpdateAdminLastLogin("adm-1"))

		got, err := store.GetAdminByUsername("root")
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
	})

	t.Run("不存在的管理员返回专用错误", func(t *testing.T) {
		store := NewStore()
		_, err := store.GetAdminByUsername("ghost")
		assert.ErrorIs(t, err, storage.ErrAdminNotFound)
		assert.ErrorIs(t, store.UpdateAdminLastLogin("ghost"), storage.ErrAdminNotFound)
	})
}
