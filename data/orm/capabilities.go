package orm

// Capability 表示模型可选支持的能力标识。
// 能力在构建元数据时按类型解析一次，写入路径只查询，不再做反射探测。
type Capability string

const (
	// CapabilityIdentifierSetter 模型提供 Set<主键字段> 方法
	CapabilityIdentifierSetter Capability = "identifier_setter"
	// CapabilityFieldMutation 主键字段可直接赋值
	CapabilityFieldMutation Capability = "field_mutation"
	// CapabilityLifecycleHooks 模型声明了写入前钩子
	CapabilityLifecycleHooks Capability = "lifecycle_hooks"
)

// Capabilities 以集合形式表达模型支持的能力。
type Capabilities map[Capability]bool

// Supports 判断是否支持指定能力。
func (c Capabilities) Supports(cap Capability) bool {
	if c == nil {
		return false
	}
	return c[cap]
}

// NewCapabilities 便捷构造能力集合。
func NewCapabilities(caps ...Capability) Capabilities {
	set := make(Capabilities, len(caps))
	for _, cap := range caps {
		set[cap] = true
	}
	return set
}
