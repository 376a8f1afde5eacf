package orm

import (
	"reflect"
)

// IIdentityOracle 判断实例是否已持久化（或已在当前写入中排队）
type IIdentityOracle interface {
	IsKnown(record any) bool
}

// OracleFunc 函数适配器
type OracleFunc func(record any) bool

func (f OracleFunc) IsKnown(record any) bool { return f(record) }

// NewDefaultOracle 主键由数据库生成且已有非零值的实例视为已持久化
//
// 客户端分配主键的类型无法仅凭主键判断，一律视为未知。
func NewDefaultOracle(provider IMetadataProvider) IIdentityOracle {
	return OracleFunc(func(record any) bool {
		meta, err := provider.MetadataFor(record)
		if err != nil || !meta.UsesGeneratedIdentity() {
			return false
		}
		id, _ := meta.IdentifierField()
		value, err := provider.FieldValue(record, id.Name)
		if err != nil {
			return false
		}
		return !IsZero(value)
	})
}

// IdentityMap 单次写入内已排队实例的集合，按指针身份去重
//
// 未命中时回退到 fallback 判断。非并发安全。
type IdentityMap struct {
	seen     map[any]struct{}
	fallback IIdentityOracle
}

// NewIdentityMap 创建 IdentityMap，fallback 可为 nil
func NewIdentityMap(fallback IIdentityOracle) *IdentityMap {
	return &IdentityMap{seen: make(map[any]struct{}), fallback: fallback}
}

// Mark 登记实例；非指针实例无法按身份区分，忽略
func (m *IdentityMap) Mark(records ...any) {
	for _, r := range records {
		if key, ok := identityKey(r); ok {
			m.seen[key] = struct{}{}
		}
	}
}

// Contains 实例是否已登记
func (m *IdentityMap) Contains(record any) bool {
	key, ok := identityKey(record)
	if !ok {
		return false
	}
	_, found := m.seen[key]
	return found
}

// IsKnown 已登记或 fallback 认为已持久化
func (m *IdentityMap) IsKnown(record any) bool {
	if m.Contains(record) {
		return true
	}
	return m.fallback != nil && m.fallback.IsKnown(record)
}

// Len 已登记实例数
func (m *IdentityMap) Len() int { return len(m.seen) }

func identityKey(record any) (any, bool) {
	if record == nil {
		return nil, false
	}
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, false
	}
	return record, true
}

// IsZero 判断值是否为零值（nil、空字符串、0、全零 UUID 等）
func IsZero(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	return v.IsZero()
}
