package sql

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/storage"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）。
type Store struct {
	db         *gorm.DB
	driverName string // "mysql" 或 "postgres"
}

// NewStore 创建 SQL 数据库存储。
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var db *gorm.DB
	var err error
	switch driverName {
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), gormConfig)
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, driverName: driverName}
	if err := store.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate 自动建表。验证码表的 expires_at 带索引，清扫查询走索引。
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Account{},
		&domain.SharePage{},
		&domain.VerificationCode{},
		&domain.Admin{},
	)
}

// ========== 账号 ==========

func (s *Store) SaveAccount(account *domain.Account) error {
	return s.db.Save(account).Error
}

func (s *Store) GetAccount(id string) (*domain.Account, error) {
	var account domain.Account
	if err := s.db.First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *Store) ListAccounts() ([]domain.Account, error) {
	var accounts []domain.Account
	if err := s.db.Order("created_at DESC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) DeleteAccount(id string) error {
	result := s.db.Delete(&domain.Account{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}

// ========== 分享页 ==========

func (s *Store) SaveSharePage(page *domain.SharePage) error {
	return s.db.Save(page).Error
}

func (s *Store) GetSharePage(id string) (*domain.SharePage, error) {
	var page domain.SharePage
	if err := s.db.First(&page, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSharePageNotFound
		}
		return nil, err
	}
	return &page, nil
}

func (s *Store) GetSharePageByCode(code string) (*domain.SharePage, error) {
	var page domain.SharePage
	if err := s.db.First(&page, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSharePageNotFound
		}
		return nil, err
	}
	return &page, nil
}

func (s *Store) ListSharePages() ([]domain.SharePage, error) {
	var pages []domain.SharePage
	if err := s.db.Order("created_at DESC").Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

func (s *Store) DeleteSharePage(id string) error {
	result := s.db.Delete(&domain.SharePage{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrSharePageNotFound
	}
	return nil
}

// ========== 验证码 ==========

func (s *Store) SaveCode(code *domain.VerificationCode) error {
	return s.db.Create(code).Error
}

func (s *Store) UpdateCode(code *domain.VerificationCode) error {
	result := s.db.Save(code)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrCodeNotFound
	}
	return nil
}

// GetValidCode 查询最新的未使用且未过期的验证码。
func (s *Store) GetValidCode(accountID string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	var code domain.VerificationCode
	err := s.db.
		Where("account_id = ? AND purpose = ? AND consumed = ? AND expires_at > ?",
			accountID, purpose, false, time.Now().UTC()).
		Order("created_at DESC").
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

// DeleteExpiredCodes 批量删除过期验证码，等价于 TTL 索引的回收行为。
func (s *Store) DeleteExpiredCodes(before time.Time) (int, error) {
	result := s.db.Delete(&domain.VerificationCode{}, "expires_at < ?", before)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// ========== 管理员 ==========

func (s *Store) CreateAdmin(admin *domain.Admin) error {
	var count int64
	if err := s.db.Model(&domain.Admin{}).Where("username = ?", admin.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrAdminExists
	}
	return s.db.Create(admin).Error
}

func (s *Store) GetAdminByUsername(username string) (*domain.Admin, error) {
	var admin domain.Admin
	if err := s.db.First(&admin, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}

func (s *Store) UpdateAdminLastLogin(id string) error {
	return s.db.Model(&domain.Admin{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now().UTC()).Error
}

// Close 关闭底层连接池。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连通性。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
