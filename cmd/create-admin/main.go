package main

import (
	"fmt"
	"os"

	"streamshare/backend/internal/auth"
	"streamshare/backend/internal/config"
	"streamshare/backend/internal/storage"
	sqlstore "streamshare/backend/internal/storage/sql"
)

// main 创建管理员账号的命令行工具。
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: create-admin <username> <password>")
		os.Exit(1)
	}

	username := os.Args[1]
	password := os.Args[2]

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
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	authService := auth.NewService(store, nil)
	admin, err := authService.CreateAdmin(username, password)
	if err != nil {
		if err == storage.ErrAdminExists {
			fmt.Printf("Admin %q already exists\n", username)
		} else {
			fmt.Printf("Failed to create admin: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("Admin created:\n  ID:       %s\n  Username: %s\n", admin.ID, admin.Username)
}
