package dialect

// SQLitePlatform SQLite 批量写入策略
//
// IGNORE/REPLACE 由 INSERT OR ... 关键字表达，不需要 VALUES 之后的子句。
type SQLitePlatform struct{}

func (SQLitePlatform) Name() Name { return NameSQLite }

func (SQLitePlatform) DefaultInsertKeyword() string { return "INSERT" }
func (SQLitePlatform) IgnoreInsertKeyword() string  { return "INSERT OR IGNORE" }
func (SQLitePlatform) UpsertInsertKeyword() string  { return "INSERT" }
func (SQLitePlatform) ReplaceInsertKeyword() string { return "INSERT OR REPLACE" }

func (SQLitePlatform) DefaultPostClause() string          { return "" }
func (SQLitePlatform) IgnorePostClause(_ []string) string { return "" }
func (SQLitePlatform) ReplacePostClause() string          { return "" }

// UpsertPostClause 合并列用 json_insert 追加到已有 JSON 数组末尾
func (SQLitePlatform) UpsertPostClause(table string, fields UpsertFields) string {
	return onConflictUpdate(fields, func(f string) string {
		return f + " = json_insert(" + table + "." + f + ", '$[#]', json(excluded." + f + "))"
	})
}

func (SQLitePlatform) FirstGeneratedID(reported int64, n int) int64 {
	return lastBlockStart(reported, n)
}
