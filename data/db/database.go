// Package db 提供批量写入所依赖的数据库抽象接口
//
// 批量写入只需要三种能力：执行语句（含 LastInsertId）、读取 RETURNING 结果集、
// 识别方言名称。事务边界由调用方通过 Begin/BeginTx 控制。
package db

import (
	"context"
	"database/sql"
)

// IDatabase 通用数据库接口
type IDatabase interface {
	// 查询操作
	Query(ctx context.Context, query string, args ...any) (IRows, error)
	QueryRow(ctx context.Context, query string, args ...any) IRow

	// 执行操作
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	// 事务操作
	Begin(ctx context.Context) (ITransaction, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (ITransaction, error)

	// 连接管理
	Ping(ctx context.Context) error
	Close() error

	// 获取原始连接（用于特殊场景）
	Raw() any
}

// IDialectNameProvider 可选接口：提供底层数据库方言名称
//
// 实现方应返回诸如 "mysql"、"sqlite"、"postgres" 等 driver/dialect 名，
// 批量写入据此选择 INSERT 关键字与冲突子句。
type IDialectNameProvider interface {
	// GetDialectName 返回底层数据库方言名称
	GetDialectName() string
}

// ITransaction 事务接口
type ITransaction interface {
	IDatabase

	// 事务控制
	Commit() error
	Rollback() error
}

// IRows 查询结果集接口
type IRows interface {
	// 遍历结果
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error

	// 获取列信息
	Columns() ([]string, error)
	ColumnTypes() ([]*sql.ColumnType, error)
}

// IRow 单行结果接口
type IRow interface {
	Scan(dest ...any) error
	Err() error
}

// DBConfig 数据库配置
type DBConfig struct {
	Driver   string `yaml:"driver"` // mysql, postgres, sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"` // sqlite 下为文件路径或 :memory:
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// DSN 非空时直接使用，忽略上面的连接字段
	DSN string `yaml:"dsn"`

	// 连接池配置
	MaxOpenConns    int `yaml:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int `yaml:"conn_max_idle_time"` // 秒

	// 其他选项
	Charset   string `yaml:"charset"`
	ParseTime bool   `yaml:"parse_time"`
	Location  string `yaml:"location"`
	SSLMode   string `yaml:"ssl_mode"` // 仅 postgres
}
