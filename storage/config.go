package storage

import (
	"fmt"
	"time"
)

// Config 存储配置
//
//	storage:
//	  driver: sqlite          # memory|sqlite|mysql
//	  auto_migrate: true
//	  trace: true
//	  slow_threshold: 200ms
//	  sqlite:
//	    path: paygate.db
//	  mysql:
//	    host: 127.0.0.1
//	    port: 3306
//	    username: paygate
//	    password: secret
//	    database: paygate
type Config struct {
	Driver        string        `mapstructure:"driver"`
	AutoMigrate   bool          `mapstructure:"auto_migrate"`
	Trace         bool          `mapstructure:"trace"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	LogSQL        bool          `mapstructure:"log_sql"`

	SQLite SQLiteConfig `mapstructure:"sqlite"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
}

// SQLiteConfig SQLite 连接配置
type SQLiteConfig struct {
	Path string `mapstructure:"path"` // 文件路径或 "file::memory:?cache=shared"
}

// MySQLConfig MySQL 连接配置
type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"` // 完整 DSN，优先级最高
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = "memory"
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "paygate.db"
	}
	m := &c.MySQL
	if m.Port == 0 {
		m.Port = 3306
	}
	if m.Charset == "" {
		m.Charset = "utf8mb4"
	}
	if m.MaxIdleConns == 0 {
		m.MaxIdleConns = 10
	}
	if m.MaxOpenConns == 0 {
		m.MaxOpenConns = 100
	}
	if m.ConnMaxLifetime == 0 {
		m.ConnMaxLifetime = time.Hour
	}
}

func (c *MySQLConfig) validate() error {
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("mysql host is required")
	}
	if c.Username == "" {
		return fmt.Errorf("mysql username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mysql database is required")
	}
	return nil
}

func (c *MySQLConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}
