package keygen

import (
	"context"
	"fmt"

	"batchinsert/data/orm"
	"batchinsert/errors"
)

// IdentityGenerator 数据库自增主键策略：写入前只调用钩子，写入后回填
type IdentityGenerator struct {
	provider orm.IMetadataProvider
}

func NewIdentityGenerator(provider orm.IMetadataProvider) *IdentityGenerator {
	return &IdentityGenerator{provider: provider}
}

func (g *IdentityGenerator) Prepare(ctx context.Context, records []any, meta *orm.ModelMeta) error {
	return invokeHooks(ctx, g.provider, records, meta)
}

// Backfill 假定一次多行插入分配了从 firstID 开始的连续 ID，
// 按集合顺序依次赋给缺少主键的记录；已有主键的记录跳过且不占用 ID。
// 返回实际赋值的记录数。
func (g *IdentityGenerator) Backfill(records []any, meta *orm.ModelMeta, firstID int64) (int, error) {
	id, err := meta.IdentifierField()
	if err != nil {
		return 0, err
	}

	next := firstID
	for _, r := range records {
		current, err := g.provider.FieldValue(r, id.Name)
		if err != nil {
			return int(next - firstID), err
		}
		if !orm.IsZero(current) {
			continue
		}
		if err := inject(g.provider, meta, id, r, next); err != nil {
			return int(next - firstID), err
		}
		next++
	}
	return int(next - firstID), nil
}

// BackfillValues 按位置回填 RETURNING 读回的主键值
func (g *IdentityGenerator) BackfillValues(records []any, meta *orm.ModelMeta, ids []any) (int, error) {
	if len(ids) != len(records) {
		return 0, errors.NewValidationError(
			fmt.Sprintf("%s: %d identifiers returned for %d records", meta.TypeName, len(ids), len(records)))
	}

	id, err := meta.IdentifierField()
	if err != nil {
		return 0, err
	}

	assigned := 0
	for i, r := range records {
		current, err := g.provider.FieldValue(r, id.Name)
		if err != nil {
			return assigned, err
		}
		if !orm.IsZero(current) || orm.IsZero(ids[i]) {
			continue
		}
		if err := inject(g.provider, meta, id, r, ids[i]); err != nil {
			return assigned, err
		}
		assigned++
	}
	return assigned, nil
}
