package config

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DriverName 把配置里的数据库类型映射为 database/sql 驱动名
func DriverName(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "sqlite", "sqlite3":
		return "sqlite", nil
	case "mysql":
		return "mysql", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	default:
		return "", fmt.Errorf("不支持的数据库类型: %s", kind)
	}
}

// OpenDB 打开连接池并 ping 验证
func OpenDB(ctx context.Context, kind, dsn string) (*sql.DB, error) {
	driver, err := DriverName(kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("OpenDB: %s dsn is empty", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenDB: %w", err)
	}

	// 设置连接池参数
	if driver == "sqlite" {
		// sqlite 单写者
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	// 验证连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenDB ping failed: %w", err)
	}
	return db, nil
}
