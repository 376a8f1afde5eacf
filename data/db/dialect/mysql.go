package dialect

import "strings"

// MySQLPlatform MySQL/MariaDB 批量写入策略
//
// 冲突更新使用 ON DUPLICATE KEY UPDATE，冲突列由表上的唯一索引隐式决定。
type MySQLPlatform struct{}

func (MySQLPlatform) Name() Name { return NameMySQL }

func (MySQLPlatform) DefaultInsertKeyword() string { return "INSERT" }
func (MySQLPlatform) IgnoreInsertKeyword() string  { return "INSERT IGNORE" }
func (MySQLPlatform) UpsertInsertKeyword() string  { return "INSERT" }
func (MySQLPlatform) ReplaceInsertKeyword() string { return "REPLACE" }

func (MySQLPlatform) DefaultPostClause() string          { return "" }
func (MySQLPlatform) IgnorePostClause(_ []string) string { return "" }
func (MySQLPlatform) ReplacePostClause() string          { return "" }

// UpsertPostClause 合并列追加到 JSON 数组，更新列取 VALUES() 中的新值
func (MySQLPlatform) UpsertPostClause(_ string, fields UpsertFields) string {
	assignments := make([]string, 0, len(fields.Merge)+len(fields.Update))
	for _, f := range fields.Merge {
		assignments = append(assignments,
			f+" = JSON_ARRAY_APPEND("+f+", '$', JSON_UNQUOTE(JSON_EXTRACT(VALUES("+f+"), '$')))")
	}
	for _, f := range fields.Update {
		assignments = append(assignments, f+" = VALUES("+f+")")
	}
	if len(assignments) == 0 {
		return ""
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(assignments, ", ")
}

// FirstGeneratedID 多行插入时 MySQL 的 LAST_INSERT_ID() 即为第一行的 ID，
// go-sql-driver/mysql 的 Result.LastInsertId 原样返回该值，因此不做 last-n+1 换算
func (MySQLPlatform) FirstGeneratedID(reported int64, _ int) int64 {
	return reported
}
