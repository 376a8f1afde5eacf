package keygen

import (
	"context"
	"fmt"

	"batchinsert/data/orm"
	"batchinsert/errors"
)

// SequenceGenerator 客户端整数主键策略，ID 由 IAllocator 批量分配
type SequenceGenerator struct {
	provider  orm.IMetadataProvider
	allocator IAllocator
}

func NewSequenceGenerator(provider orm.IMetadataProvider, allocator IAllocator) *SequenceGenerator {
	return &SequenceGenerator{provider: provider, allocator: allocator}
}

func (g *SequenceGenerator) Prepare(ctx context.Context, records []any, meta *orm.ModelMeta) error {
	id, err := meta.IdentifierField()
	if err != nil {
		return err
	}
	if !id.IsInteger() {
		return errors.NewValidationError(
			fmt.Sprintf("identifier %s of type %s cannot hold a sequence value", id.Name, id.Type))
	}

	targets, err := pending(g.provider, records, id)
	if err != nil {
		return err
	}
	if len(targets) > 0 {
		ids, err := g.allocator.Allocate(ctx, meta.TypeName, len(targets))
		if err != nil {
			return err
		}
		if len(ids) != len(targets) {
			return errors.NewError(errors.ErrCodeInternal,
				fmt.Sprintf("allocator returned %d ids, want %d", len(ids), len(targets)))
		}
		for i, r := range targets {
			if err := inject(g.provider, meta, id, r, ids[i]); err != nil {
				return err
			}
		}
	}

	return invokeHooks(ctx, g.provider, records, meta)
}
