package keygen

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"batchinsert/data/orm"
	"batchinsert/errors"
)

// UUIDGenerator 客户端主键策略：为空主键生成 v4 UUID
type UUIDGenerator struct {
	provider orm.IMetadataProvider
	newID    func() (uuid.UUID, error)
}

func NewUUIDGenerator(provider orm.IMetadataProvider) *UUIDGenerator {
	return &UUIDGenerator{provider: provider, newID: uuid.NewRandom}
}

func (g *UUIDGenerator) Prepare(ctx context.Context, records []any, meta *orm.ModelMeta) error {
	id, err := meta.IdentifierField()
	if err != nil {
		return err
	}

	targets, err := pending(g.provider, records, id)
	if err != nil {
		return err
	}
	for _, r := range targets {
		u, err := g.newID()
		if err != nil {
			return errors.WrapError(err, errors.ErrCodeInternal, "generate uuid")
		}
		value, err := uuidValue(id, u)
		if err != nil {
			return err
		}
		if err := inject(g.provider, meta, id, r, value); err != nil {
			return err
		}
	}

	return invokeHooks(ctx, g.provider, records, meta)
}

// uuidValue 按主键声明类型给出注入值
func uuidValue(id orm.FieldMeta, u uuid.UUID) (any, error) {
	switch id.Type {
	case "uuid.UUID":
		return u, nil
	case "string":
		return u.String(), nil
	case "[]byte", "[]uint8":
		b, _ := u.MarshalBinary()
		return b, nil
	default:
		return nil, errors.NewValidationError(
			fmt.Sprintf("identifier %s of type %s cannot hold a uuid", id.Name, id.Type))
	}
}
