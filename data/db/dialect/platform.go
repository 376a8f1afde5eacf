package dialect

import (
	stdErrors "errors"
	"fmt"

	core "batchinsert/data/db"
	"batchinsert/errors"
)

// ErrUnsupportedPlatform 方言名称无法映射到任何 Platform
var ErrUnsupportedPlatform = stdErrors.New("dialect: unsupported platform")

// UpsertFields 冲突更新子句需要的列集合
type UpsertFields struct {
	// Update 冲突时以新值覆盖的列
	Update []string
	// Merge 冲突时把新值追加到已有 JSON 数组的列
	Merge []string
	// Conflict 冲突判定列（Postgres/SQLite 的 ON CONFLICT 目标）
	Conflict []string
}

// Platform 批量 INSERT 的方言策略
//
// 每种写入模式由一个 INSERT 关键字和一个 VALUES 之后的子句组成；
// 子句为空时语句中省略。
type Platform interface {
	// Name 标准化方言名
	Name() Name

	DefaultInsertKeyword() string
	IgnoreInsertKeyword() string
	UpsertInsertKeyword() string
	ReplaceInsertKeyword() string

	DefaultPostClause() string
	IgnorePostClause(conflict []string) string
	UpsertPostClause(table string, fields UpsertFields) string
	ReplacePostClause() string

	// FirstGeneratedID 由驱动报告的 LastInsertId 推算一次多行插入分配的第一个自增 ID
	FirstGeneratedID(reported int64, n int) int64
}

// NewPlatform 根据方言名称选择 Platform，未知名称返回配置错误
func NewPlatform(name string) (Platform, error) {
	switch ParseName(name) {
	case NameMySQL:
		return MySQLPlatform{}, nil
	case NamePostgres:
		return PostgresPlatform{}, nil
	case NameSQLite:
		return SQLitePlatform{}, nil
	default:
		return nil, errors.NewErrorWithCause(errors.ErrCodeConfiguration,
			fmt.Sprintf("platform %q is not supported", name), ErrUnsupportedPlatform)
	}
}

// PlatformFor 通过 IDialectNameProvider 为连接选择 Platform
func PlatformFor(db core.IDatabase) (Platform, error) {
	p, ok := db.(core.IDialectNameProvider)
	if !ok {
		return nil, errors.NewErrorWithCause(errors.ErrCodeConfiguration,
			"database does not report its dialect name", ErrUnsupportedPlatform)
	}
	return NewPlatform(p.GetDialectName())
}

// lastBlockStart 驱动报告的是本次插入的最后一个 ID
func lastBlockStart(reported int64, n int) int64 {
	if n <= 0 {
		return reported
	}
	return reported - int64(n) + 1
}
