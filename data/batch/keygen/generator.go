// Package keygen 在批量写入前为记录准备主键
//
// 数据库自增主键由 IdentityGenerator 在写入后回填；客户端主键由 UUIDGenerator
// 或 SequenceGenerator 在写入前注入。注入方式取决于类型在元数据中声明的能力。
package keygen

import (
	"context"
	"fmt"

	"batchinsert/data/orm"
	"batchinsert/errors"
)

// IGenerator 主键策略，原地修改记录，必须在构建语句之前执行
type IGenerator interface {
	Prepare(ctx context.Context, records []any, meta *orm.ModelMeta) error
}

// IAllocator 为一批记录分配 n 个整数 ID，key 为类型名
type IAllocator interface {
	Allocate(ctx context.Context, key string, n int) ([]int64, error)
}

// invokeHooks 按元数据声明的顺序调用写入前钩子
func invokeHooks(ctx context.Context, provider orm.IMetadataProvider, records []any, meta *orm.ModelMeta) error {
	if len(meta.LifecycleHooks) == 0 {
		return nil
	}
	for _, r := range records {
		for _, hook := range meta.LifecycleHooks {
			if err := provider.InvokeHook(ctx, r, hook); err != nil {
				return err
			}
		}
	}
	return nil
}

// inject 通过类型能力写入主键：优先 setter，其次直接赋值
func inject(provider orm.IMetadataProvider, meta *orm.ModelMeta, id orm.FieldMeta, record any, value any) error {
	switch {
	case meta.Capabilities.Supports(orm.CapabilityIdentifierSetter):
		return provider.CallSetter(record, id.Name, value)
	case meta.Capabilities.Supports(orm.CapabilityFieldMutation):
		return provider.SetFieldValue(record, id.Name, value)
	default:
		return errors.NewErrorWithCause(errors.ErrCodeValidation,
			fmt.Sprintf("%s supports neither identifier setter nor field mutation", meta.TypeName),
			orm.ErrUnsupported)
	}
}

// pending 返回主键为空的记录
func pending(provider orm.IMetadataProvider, records []any, id orm.FieldMeta) ([]any, error) {
	out := make([]any, 0, len(records))
	for _, r := range records {
		v, err := provider.FieldValue(r, id.Name)
		if err != nil {
			return nil, err
		}
		if orm.IsZero(v) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Selector 按元数据选择主键策略
type Selector struct {
	Identity *IdentityGenerator
	UUID     *UUIDGenerator
	// Sequence 为 nil 时整数客户端主键也走 UUID 策略（注入时报错）
	Sequence *SequenceGenerator
}

// NewSelector 创建默认选择器；allocator 为 nil 时不启用整数序列
func NewSelector(provider orm.IMetadataProvider, allocator IAllocator) *Selector {
	s := &Selector{
		Identity: NewIdentityGenerator(provider),
		UUID:     NewUUIDGenerator(provider),
	}
	if allocator != nil {
		s.Sequence = NewSequenceGenerator(provider, allocator)
	}
	return s
}

// Select 自增主键 → Identity；整数主键且配置了分配器 → Sequence；其余 → UUID
func (s *Selector) Select(meta *orm.ModelMeta) (IGenerator, error) {
	id, err := meta.IdentifierField()
	if err != nil {
		return nil, err
	}
	switch {
	case id.AutoIncrement:
		return s.Identity, nil
	case id.IsInteger() && s.Sequence != nil:
		return s.Sequence, nil
	default:
		return s.UUID, nil
	}
}
