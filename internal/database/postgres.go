package database

import (
	"context"
	"database/sql"
	"fmt"

	"whois/internal/config"

	_ "github.com/lib/pq"
)

// NewPostgresDB 创建PostgreSQL数据库连接
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.GetDSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// schemaStatements 目录库表结构（幂等）
// location 必须先于 comp_user 创建（外键）
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS login_account (
		login_id TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS location (
		location_id          SERIAL PRIMARY KEY,
		location_description TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS comp_user (
		user_id     TEXT PRIMARY KEY,
		surname     TEXT NULL,
		title       TEXT NULL,
		location_id INTEGER NULL REFERENCES location (location_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_login (
		user_id  TEXT NOT NULL REFERENCES comp_user (user_id),
		login_id TEXT NOT NULL,
		PRIMARY KEY (user_id, login_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_login_login_id ON user_login (login_id)`,
	`CREATE TABLE IF NOT EXISTS user_forename (
		user_id        TEXT NOT NULL REFERENCES comp_user (user_id),
		forename_order INTEGER NOT NULL,
		forename       TEXT NOT NULL,
		PRIMARY KEY (user_id, forename_order)
	)`,
	`CREATE TABLE IF NOT EXISTS position (
		position_id   SERIAL PRIMARY KEY,
		position_name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS user_position (
		user_id     TEXT NOT NULL REFERENCES comp_user (user_id),
		position_id INTEGER NOT NULL REFERENCES position (position_id),
		PRIMARY KEY (user_id, position_id)
	)`,
	`CREATE TABLE IF NOT EXISTS phone (
		phone_number TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS user_phone (
		user_id      TEXT NOT NULL REFERENCES comp_user (user_id),
		phone_number TEXT NOT NULL REFERENCES phone (phone_number),
		PRIMARY KEY (user_id, phone_number)
	)`,
	`CREATE TABLE IF NOT EXISTS email (
		email_address TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS user_email (
		user_id       TEXT NOT NULL REFERENCES comp_user (user_id),
		email_address TEXT NOT NULL REFERENCES email (email_address),
		PRIMARY KEY (user_id, email_address)
	)`,
}

// EnsureSchema 创建目录库所需的表（已存在则跳过）
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement %d/%d: %w", i+1, len(schemaStatements), err)
		}
	}
	return nil
}

// Close 关闭数据库连接
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
