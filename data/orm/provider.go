package orm

import "context"

// IMetadataProvider 提供模型元数据及按字段读写实例的能力
//
// 批量写入只通过该接口接触具体类型，不直接做反射。
type IMetadataProvider interface {
	// MetadataFor 返回实例所属类型的元数据
	MetadataFor(record any) (*ModelMeta, error)
	// MetadataByName 按 ModelMeta.TypeName 查找元数据
	MetadataByName(typeName string) (*ModelMeta, error)

	// FieldValue 读取字段值（含关联字段）
	FieldValue(record any, field string) (any, error)
	// SetFieldValue 直接为字段赋值
	SetFieldValue(record any, field string, value any) error
	// CallSetter 调用 Set<field> 方法赋值
	CallSetter(record any, field string, value any) error
	// InvokeHook 调用写入前钩子
	InvokeHook(ctx context.Context, record any, hook string) error
}

// ITableNamer 模型可实现该接口自定义表名
type ITableNamer interface {
	TableName() string
}
