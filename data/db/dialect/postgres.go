package dialect

import "strings"

// PostgresPlatform PostgreSQL 批量写入策略
type PostgresPlatform struct{}

func (PostgresPlatform) Name() Name { return NamePostgres }

func (PostgresPlatform) DefaultInsertKeyword() string { return "INSERT" }
func (PostgresPlatform) IgnoreInsertKeyword() string  { return "INSERT" }
func (PostgresPlatform) UpsertInsertKeyword() string  { return "INSERT" }

// ReplaceInsertKeyword PostgreSQL 没有 REPLACE 语句，执行时由服务端报错
func (PostgresPlatform) ReplaceInsertKeyword() string { return "REPLACE" }

func (PostgresPlatform) DefaultPostClause() string { return "" }
func (PostgresPlatform) ReplacePostClause() string { return "" }

func (PostgresPlatform) IgnorePostClause(conflict []string) string {
	return "ON CONFLICT (" + strings.Join(conflict, ",") + ") DO NOTHING"
}

// UpsertPostClause 合并列以 || 拼接已有值，更新列取 excluded 中的新值
func (PostgresPlatform) UpsertPostClause(table string, fields UpsertFields) string {
	return onConflictUpdate(fields, func(f string) string {
		return f + " = " + table + "." + f + " || excluded." + f
	})
}

func (PostgresPlatform) FirstGeneratedID(reported int64, n int) int64 {
	return lastBlockStart(reported, n)
}

// onConflictUpdate 组装 ON CONFLICT (...) DO UPDATE SET，merge 决定合并列的赋值形式
func onConflictUpdate(fields UpsertFields, merge func(string) string) string {
	assignments := make([]string, 0, len(fields.Merge)+len(fields.Update))
	for _, f := range fields.Merge {
		assignments = append(assignments, merge(f))
	}
	for _, f := range fields.Update {
		assignments = append(assignments, f+" = excluded."+f)
	}
	if len(assignments) == 0 {
		return "ON CONFLICT (" + strings.Join(fields.Conflict, ", ") + ") DO NOTHING"
	}
	return "ON CONFLICT (" + strings.Join(fields.Conflict, ", ") + ") DO UPDATE SET " +
		strings.Join(assignments, ", ")
}
