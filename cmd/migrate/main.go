package main

import (
	"fmt"
	"os"

	"streamshare/backend/internal/config"
	sqlstore "streamshare/backend/internal/storage/sql"
)

// main 执行数据库结构迁移。
//
// 建表逻辑与服务进程共用（连接时自动迁移），此工具用于
// 部署流水线里在启动服务前单独跑一次迁移并确认连通。
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		fmt.Println("A database must be configured (STREAMSHARE_DATABASE_TYPE / STREAMSHARE_DATABASE_DSN)")
		os.Exit(1)
	}

	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Health(); err != nil {
		fmt.Printf("Post-migration health check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Migration completed for %s database\n", cfg.Database.Type)
}
