package batch

import (
	"fmt"
	"strings"

	"batchinsert/data/db/dialect"
	"batchinsert/errors"
)

// UpdateMode 写入模式，用于配置
type UpdateMode string

const (
	ModeDefault              UpdateMode = "default"
	ModeOnDuplicateKeyUpdate UpdateMode = "on_duplicate_key_update"
	ModeIgnore               UpdateMode = "ignore"
	ModeReplace              UpdateMode = "replace"
)

// ParseUpdateMode 解析配置中的写入模式，空串视为 default
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch UpdateMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDefault:
		return ModeDefault, nil
	case ModeOnDuplicateKeyUpdate, "upsert":
		return ModeOnDuplicateKeyUpdate, nil
	case ModeIgnore:
		return ModeIgnore, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", errors.NewConfigurationError(fmt.Sprintf("unknown update mode %q", s))
	}
}

// UpdateStrategy 决定 INSERT 关键字与 VALUES 之后的子句
type UpdateStrategy interface {
	Mode() UpdateMode
	InsertKeyword(p dialect.Platform) string
	PostValuesClause(p dialect.Platform, table string, fields QueryFields) string
}

// DefaultStrategy 普通插入
type DefaultStrategy struct{}

func (DefaultStrategy) Mode() UpdateMode { return ModeDefault }

func (DefaultStrategy) InsertKeyword(p dialect.Platform) string { return p.DefaultInsertKeyword() }

func (DefaultStrategy) PostValuesClause(p dialect.Platform, _ string, _ QueryFields) string {
	return p.DefaultPostClause()
}

// OnDuplicateKeyUpdate 冲突时更新（upsert）
type OnDuplicateKeyUpdate struct{}

func (OnDuplicateKeyUpdate) Mode() UpdateMode { return ModeOnDuplicateKeyUpdate }

func (OnDuplicateKeyUpdate) InsertKeyword(p dialect.Platform) string { return p.UpsertInsertKeyword() }

func (OnDuplicateKeyUpdate) PostValuesClause(p dialect.Platform, table string, fields QueryFields) string {
	return p.UpsertPostClause(table, dialect.UpsertFields{
		Update:   fields.Update,
		Merge:    fields.Merge,
		Conflict: fields.Conflict,
	})
}

// IgnoreStrategy 冲突时跳过
type IgnoreStrategy struct{}

func (IgnoreStrategy) Mode() UpdateMode { return ModeIgnore }

func (IgnoreStrategy) InsertKeyword(p dialect.Platform) string { return p.IgnoreInsertKeyword() }

func (IgnoreStrategy) PostValuesClause(p dialect.Platform, _ string, fields QueryFields) string {
	return p.IgnorePostClause(fields.Conflict)
}

// ReplaceStrategy 冲突时替换整行
type ReplaceStrategy struct{}

func (ReplaceStrategy) Mode() UpdateMode { return ModeReplace }

func (ReplaceStrategy) InsertKeyword(p dialect.Platform) string { return p.ReplaceInsertKeyword() }

func (ReplaceStrategy) PostValuesClause(p dialect.Platform, _ string, _ QueryFields) string {
	return p.ReplacePostClause()
}

// StrategyFor 按模式返回策略，未知模式退回 DefaultStrategy
func StrategyFor(mode UpdateMode) UpdateStrategy {
	switch mode {
	case ModeOnDuplicateKeyUpdate:
		return OnDuplicateKeyUpdate{}
	case ModeIgnore:
		return IgnoreStrategy{}
	case ModeReplace:
		return ReplaceStrategy{}
	default:
		return DefaultStrategy{}
	}
}
