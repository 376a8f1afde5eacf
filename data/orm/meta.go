package orm

import (
	"fmt"

	"batchinsert/errors"
)

// AssociationKind 表示关联类型。
type AssociationKind string

const (
	AssociationBelongsTo  AssociationKind = "belongs_to"
	AssociationHasOne     AssociationKind = "has_one"
	AssociationHasMany    AssociationKind = "has_many"
	AssociationManyToMany AssociationKind = "many_to_many"
)

// ToOne 关联值是否为单个实例
func (k AssociationKind) ToOne() bool {
	return k == AssociationBelongsTo || k == AssociationHasOne
}

// AssociationMeta 描述模型关联元信息。
type AssociationMeta struct {
	// Name 关联字段名
	Name string
	Kind AssociationKind
	// Target 目标类型名，与目标 ModelMeta.TypeName 一致
	Target string
	// Owning 外键列在本侧（拥有方）
	Owning bool
	// CascadePersist 写入本侧时级联写入目标
	CascadePersist bool
	// ForeignKey 外键列名；拥有方的该列出现在本侧的 INSERT 列中
	ForeignKey string
	// ReferenceKey 目标上被引用的字段名，为空时取目标主键字段
	ReferenceKey string
}

// FieldMeta 描述字段元信息。
type FieldMeta struct {
	Name          string
	Column        string
	PrimaryKey    bool
	AutoIncrement bool
	// Type 声明类型（如 int64、string、time.Time），供值转换器参考
	Type     string
	Nullable bool
}

// IsInteger 声明类型是否为整数
func (f FieldMeta) IsInteger() bool {
	switch f.Type {
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64":
		return true
	default:
		return false
	}
}

// ModelMeta 描述模型级别元信息。
type ModelMeta struct {
	// TypeName 运行时类型名，用于同类判断与按名查找
	TypeName     string
	Table        string
	Fields       []FieldMeta
	Associations []AssociationMeta
	// LifecycleHooks 写入前依次调用的钩子方法名
	LifecycleHooks []string
	Capabilities   Capabilities
}

// IdentifierField 返回唯一的主键字段；没有或多于一个主键时返回配置错误
func (m *ModelMeta) IdentifierField() (FieldMeta, error) {
	var (
		id    FieldMeta
		found int
	)
	for _, f := range m.Fields {
		if f.PrimaryKey {
			id = f
			found++
		}
	}
	if found != 1 {
		return FieldMeta{}, errors.NewErrorWithCause(errors.ErrCodeConfiguration,
			fmt.Sprintf("%s must declare exactly one identifier field, found %d", m.TypeName, found),
			ErrIdentifier)
	}
	return id, nil
}

// UsesGeneratedIdentity 主键是否由数据库生成（自增）
func (m *ModelMeta) UsesGeneratedIdentity() bool {
	id, err := m.IdentifierField()
	return err == nil && id.AutoIncrement
}

// Field 按字段名查找
func (m *ModelMeta) Field(name string) (FieldMeta, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldMeta{}, false
}

// FieldByColumn 按列名查找
func (m *ModelMeta) FieldByColumn(column string) (FieldMeta, bool) {
	for _, f := range m.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return FieldMeta{}, false
}

// Association 按关联字段名查找
func (m *ModelMeta) Association(name string) (AssociationMeta, bool) {
	for _, a := range m.Associations {
		if a.Name == name {
			return a, true
		}
	}
	return AssociationMeta{}, false
}
