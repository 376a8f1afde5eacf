package basic

import (
	"context"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-openapi/inflect"

	"batchinsert/data/orm"
	"batchinsert/errors"
)

// 写入前钩子方法名，按顺序调用
var hookNames = []string{"PrePersist", "BeforeCreate"}

// Provider 基于反射与结构体标签的 orm.IMetadataProvider 实现。
//
// 字段标签沿用 gorm 写法：
//
//	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
//	Name string `db:"name"`
//
// 关联字段使用 batch 标签：
//
//	Author *User   `batch:"belongsTo;foreignKey:author_id;references:ID"`
//	Posts  []*Post `batch:"hasMany;cascade"`
//
// belongsTo 默认为拥有方，hasOne/hasMany 默认为反向方，可用 owning/inverse 覆盖。
// 元数据按 reflect.Type 缓存，关联目标类型在首次解析时一并登记。
type Provider struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*structMeta
	byName map[string]*structMeta
}

// NewProvider 创建 Provider，并预先登记给定模型
func NewProvider(models ...any) (*Provider, error) {
	p := &Provider{
		byType: make(map[reflect.Type]*structMeta),
		byName: make(map[string]*structMeta),
	}
	if err := p.Register(models...); err != nil {
		return nil, err
	}
	return p, nil
}

// Register 登记模型类型，使其可以通过 MetadataByName 查找
func (p *Provider) Register(models ...any) error {
	for _, m := range models {
		if _, err := p.structMetaFor(m); err != nil {
			return err
		}
	}
	return nil
}

// MetadataFor 实现 orm.IMetadataProvider
func (p *Provider) MetadataFor(record any) (*orm.ModelMeta, error) {
	sm, err := p.structMetaFor(record)
	if err != nil {
		return nil, err
	}
	return sm.meta, nil
}

// MetadataByName 实现 orm.IMetadataProvider
func (p *Provider) MetadataByName(typeName string) (*orm.ModelMeta, error) {
	p.mu.RLock()
	sm, ok := p.byName[typeName]
	p.mu.RUnlock()
	if !ok {
		return nil, errors.NewErrorWithCause(errors.ErrCodeConfiguration,
			fmt.Sprintf("no metadata registered for type %q", typeName), orm.ErrMetadataNotFound)
	}
	return sm.meta, nil
}

// FieldValue 实现 orm.IMetadataProvider；内嵌指针为 nil 时返回 nil
func (p *Provider) FieldValue(record any, field string) (any, error) {
	sm, err := p.structMetaFor(record)
	if err != nil {
		return nil, err
	}
	index, ok := sm.index[field]
	if !ok {
		return nil, unknownField(sm, field)
	}

	fv := fieldByIndexSafe(reflect.ValueOf(record), index)
	if !fv.IsValid() {
		return nil, nil
	}
	return fv.Interface(), nil
}

// SetFieldValue 实现 orm.IMetadataProvider，值按需转换为字段类型
func (p *Provider) SetFieldValue(record any, field string, value any) error {
	sm, err := p.structMetaFor(record)
	if err != nil {
		return err
	}
	index, ok := sm.index[field]
	if !ok {
		return unknownField(sm, field)
	}

	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.NewValidationError(fmt.Sprintf("%s: cannot set %s on a non-pointer record", sm.meta.TypeName, field))
	}

	fv := fieldByIndexSafe(rv, index)
	if !fv.IsValid() || !fv.CanSet() {
		return errors.NewErrorWithCause(errors.ErrCodeValidation,
			fmt.Sprintf("%s.%s is not settable", sm.meta.TypeName, field), orm.ErrUnsupported)
	}

	converted, err := convertTo(value, fv.Type())
	if err != nil {
		return errors.NewErrorWithCause(errors.ErrCodeValidation,
			fmt.Sprintf("%s.%s", sm.meta.TypeName, field), err)
	}
	fv.Set(converted)
	return nil
}

// CallSetter 实现 orm.IMetadataProvider；setter 可以返回 error
func (p *Provider) CallSetter(record any, field string, value any) error {
	sm, err := p.structMetaFor(record)
	if err != nil {
		return err
	}
	name, ok := sm.setters[field]
	if !ok {
		return errors.NewErrorWithCause(errors.ErrCodeValidation,
			fmt.Sprintf("%s has no setter for %s", sm.meta.TypeName, field), orm.ErrUnsupported)
	}

	method := reflect.ValueOf(record).MethodByName(name)
	if !method.IsValid() {
		return errors.NewErrorWithCause(errors.ErrCodeValidation,
			fmt.Sprintf("%s.%s requires a pointer record", sm.meta.TypeName, name), orm.ErrUnsupported)
	}

	arg, err := convertTo(value, method.Type().In(0))
	if err != nil {
		return errors.NewErrorWithCause(errors.ErrCodeValidation,
			fmt.Sprintf("%s.%s", sm.meta.TypeName, name), err)
	}
	return errorResult(method.Call([]reflect.Value{arg}))
}

// InvokeHook 实现 orm.IMetadataProvider
//
// 支持 func()、func() error、func(context.Context) error 三种签名。
func (p *Provider) InvokeHook(ctx context.Context, record any, hook string) error {
	rv := reflect.ValueOf(record)
	if !rv.IsValid() {
		return errors.NewValidationError("cannot invoke hook on nil record")
	}
	method := rv.MethodByName(hook)
	if !method.IsValid() {
		return errors.NewErrorWithCause(errors.ErrCodeValidation,
			fmt.Sprintf("%T has no hook %s", record, hook), orm.ErrUnsupported)
	}

	var args []reflect.Value
	if method.Type().NumIn() == 1 {
		args = []reflect.Value{reflect.ValueOf(ctx)}
	}
	return errorResult(method.Call(args))
}

// ------------------------------------------------------------------------
// 结构体元信息
// ------------------------------------------------------------------------

type structMeta struct {
	typ  reflect.Type
	meta *orm.ModelMeta
	// index 字段名（含关联字段）到反射下标
	index map[string][]int
	// setters 字段名到 setter 方法名
	setters map[string]string
}

// structMetaFor 构建或获取指定值类型的 structMeta
func (p *Provider) structMetaFor(v any) (*structMeta, error) {
	t, err := modelType(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	sm, ok := p.byType[t]
	p.mu.RUnlock()
	if ok {
		return sm, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buildLocked(t)
}

// buildLocked 解析类型并递归登记关联目标，调用方持有写锁
func (p *Provider) buildLocked(t reflect.Type) (*structMeta, error) {
	if sm, ok := p.byType[t]; ok {
		return sm, nil
	}

	sm := &structMeta{
		typ: t,
		meta: &orm.ModelMeta{
			TypeName: t.String(),
			Table:    tableName(t),
		},
		index:   make(map[string][]int),
		setters: make(map[string]string),
	}

	var targets []reflect.Type
	var walk func(reflect.Type, []int) error
	walk = func(cur reflect.Type, prefix []int) error {
		for i := 0; i < cur.NumField(); i++ {
			f := cur.Field(i)
			index := append(append([]int(nil), prefix...), i)

			// 未导出的内嵌结构体，其导出字段仍可经反射读写
			if f.Anonymous && f.Type.Kind() == reflect.Struct && !isValueStruct(f.Type) {
				if err := walk(f.Type, index); err != nil {
					return err
				}
				continue
			}
			if f.PkgPath != "" {
				continue
			}
			if isIgnored(f) {
				continue
			}

			if tag, ok := f.Tag.Lookup("batch"); ok {
				assoc, target, err := parseAssociation(t, f, tag)
				if err != nil {
					return err
				}
				sm.meta.Associations = append(sm.meta.Associations, assoc)
				sm.index[f.Name] = index
				targets = append(targets, target)
				continue
			}

			col, pk, auto := parseColumnTag(f)
			if col == "" {
				col = toSnakeCase(f.Name)
			}
			sm.meta.Fields = append(sm.meta.Fields, orm.FieldMeta{
				Name:          f.Name,
				Column:        col,
				PrimaryKey:    pk,
				AutoIncrement: auto,
				Type:          declaredType(f.Type),
				Nullable:      f.Type.Kind() == reflect.Ptr,
			})
			sm.index[f.Name] = index
		}
		return nil
	}
	if err := walk(t, nil); err != nil {
		return nil, err
	}

	resolveCapabilities(sm)

	p.byType[t] = sm
	p.byName[sm.meta.TypeName] = sm

	for _, target := range targets {
		if _, err := p.buildLocked(target); err != nil {
			return nil, err
		}
	}
	fillReferenceKeys(p, sm)
	return sm, nil
}

// resolveCapabilities 一次性探测 setter、主键可写性与钩子
func resolveCapabilities(sm *structMeta) {
	ptr := reflect.PointerTo(sm.typ)
	caps := orm.NewCapabilities()

	for _, f := range sm.meta.Fields {
		name := "Set" + f.Name
		m, ok := ptr.MethodByName(name)
		if !ok || m.Type.NumIn() != 2 || m.Type.NumOut() > 1 {
			continue
		}
		if m.Type.NumOut() == 1 && !m.Type.Out(0).Implements(errorType) {
			continue
		}
		sm.setters[f.Name] = name
	}

	if id, err := sm.meta.IdentifierField(); err == nil {
		if _, ok := sm.setters[id.Name]; ok {
			caps[orm.CapabilityIdentifierSetter] = true
		}
		caps[orm.CapabilityFieldMutation] = true
	}

	for _, hook := range hookNames {
		m, ok := ptr.MethodByName(hook)
		if !ok || !isHookSignature(m.Type) {
			continue
		}
		sm.meta.LifecycleHooks = append(sm.meta.LifecycleHooks, hook)
		caps[orm.CapabilityLifecycleHooks] = true
	}

	sm.meta.Capabilities = caps
}

// fillReferenceKeys 未声明 references 的关联引用目标主键
func fillReferenceKeys(p *Provider, sm *structMeta) {
	for i, a := range sm.meta.Associations {
		if a.ReferenceKey != "" {
			continue
		}
		target, ok := p.byName[a.Target]
		if !ok {
			continue
		}
		if id, err := target.meta.IdentifierField(); err == nil {
			sm.meta.Associations[i].ReferenceKey = id.Name
		}
	}
}

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// isHookSignature 方法类型首个入参为接收者
func isHookSignature(mt reflect.Type) bool {
	if mt.NumOut() > 1 || (mt.NumOut() == 1 && !mt.Out(0).Implements(errorType)) {
		return false
	}
	switch mt.NumIn() {
	case 1:
		return true
	case 2:
		return mt.In(1) == contextType
	default:
		return false
	}
}

func errorResult(out []reflect.Value) error {
	if len(out) == 0 || out[0].IsNil() {
		return nil
	}
	return out[0].Interface().(error)
}

func modelType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, errors.NewErrorWithCause(errors.ErrCodeConfiguration, "nil record has no metadata", orm.ErrMetadataNotFound)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.NewErrorWithCause(errors.ErrCodeConfiguration,
			fmt.Sprintf("type %s is not a struct model", t), orm.ErrMetadataNotFound)
	}
	return t, nil
}

func unknownField(sm *structMeta, field string) error {
	return errors.NewConfigurationError(fmt.Sprintf("%s has no field %q", sm.meta.TypeName, field))
}

// parseAssociation 解析 batch 标签，返回关联元数据与目标结构体类型
func parseAssociation(owner reflect.Type, f reflect.StructField, tag string) (orm.AssociationMeta, reflect.Type, error) {
	assoc := orm.AssociationMeta{Name: f.Name}
	owningSet := false

	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		key, value, _ := strings.Cut(part, ":")
		switch strings.ToLower(key) {
		case "":
		case "belongsto":
			assoc.Kind = orm.AssociationBelongsTo
		case "hasone":
			assoc.Kind = orm.AssociationHasOne
		case "hasmany":
			assoc.Kind = orm.AssociationHasMany
		case "manytomany":
			assoc.Kind = orm.AssociationManyToMany
		case "foreignkey":
			assoc.ForeignKey = value
		case "references":
			assoc.ReferenceKey = value
		case "cascade":
			assoc.CascadePersist = true
		case "owning":
			assoc.Owning, owningSet = true, true
		case "inverse":
			assoc.Owning, owningSet = false, true
		default:
			return assoc, nil, errors.NewConfigurationError(
				fmt.Sprintf("%s.%s: unknown batch tag option %q", owner, f.Name, part))
		}
	}
	if assoc.Kind == "" {
		return assoc, nil, errors.NewConfigurationError(fmt.Sprintf("%s.%s: association kind is required", owner, f.Name))
	}
	if !owningSet {
		assoc.Owning = assoc.Kind == orm.AssociationBelongsTo
	}

	target := f.Type
	if target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	if assoc.Kind.ToOne() != (target.Kind() == reflect.Struct) {
		return assoc, nil, errors.NewConfigurationError(
			fmt.Sprintf("%s.%s: %s association cannot hold %s", owner, f.Name, assoc.Kind, f.Type))
	}
	if target.Kind() == reflect.Slice {
		target = target.Elem()
		for target.Kind() == reflect.Ptr {
			target = target.Elem()
		}
	}
	if target.Kind() != reflect.Struct {
		return assoc, nil, errors.NewConfigurationError(
			fmt.Sprintf("%s.%s: association target %s is not a struct", owner, f.Name, f.Type))
	}
	assoc.Target = target.String()

	if assoc.ForeignKey == "" {
		if assoc.Owning {
			assoc.ForeignKey = toSnakeCase(f.Name) + "_id"
		} else {
			assoc.ForeignKey = toSnakeCase(owner.Name()) + "_id"
		}
	}
	return assoc, target, nil
}

func parseColumnTag(f reflect.StructField) (column string, primaryKey, autoIncrement bool) {
	gormTag := f.Tag.Get("gorm")
	if gormTag != "" {
		for _, part := range strings.Split(gormTag, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if strings.HasPrefix(part, "column:") {
				column = strings.TrimPrefix(part, "column:")
			}
			if strings.EqualFold(part, "primaryKey") || strings.EqualFold(part, "primary_key") {
				primaryKey = true
			}
			if strings.EqualFold(part, "autoIncrement") {
				autoIncrement = true
			}
		}
	}

	if column == "" {
		if dbTag := f.Tag.Get("db"); dbTag != "" {
			column = strings.Split(dbTag, ",")[0]
		} else if jsonTag := f.Tag.Get("json"); jsonTag != "" {
			column = strings.Split(jsonTag, ",")[0]
		}
	}

	return column, primaryKey, autoIncrement
}

func isIgnored(f reflect.StructField) bool {
	return f.Tag.Get("gorm") == "-" || f.Tag.Get("db") == "-"
}

// isValueStruct 作为单列存储的结构体（time.Time、uuid.UUID 等带 Valuer 的类型）
func isValueStruct(t reflect.Type) bool {
	if t.PkgPath() == "time" && t.Name() == "Time" {
		return true
	}
	return reflect.PointerTo(t).Implements(valuerType) || t.Implements(valuerType)
}

func declaredType(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" && t.PkgPath() == "" {
		return t.Name()
	}
	return t.String()
}

// tableName 优先使用 TableName()，否则取类型名的蛇形复数
func tableName(t reflect.Type) string {
	if tn, ok := reflect.New(t).Interface().(orm.ITableNamer); ok {
		return tn.TableName()
	}
	return inflect.Pluralize(toSnakeCase(t.Name()))
}

// toSnakeCase 驼峰转蛇形，连续大写视为缩写：UserID -> user_id，HTTPServer -> http_server
func toSnakeCase(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func fieldByIndexSafe(v reflect.Value, index []int) reflect.Value {
	for _, i := range index {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct || i < 0 || i >= v.NumField() {
			return reflect.Value{}
		}
		v = v.Field(i)
	}
	return v
}

// convertTo 将 value 转换为目标类型；nil 转为零值，指针字段自动取址
func convertTo(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if target.Kind() == reflect.Ptr {
		inner, err := convertTo(value, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(inner)
		return ptr, nil
	}
	if v.Type().ConvertibleTo(target) && convertibleKinds(v.Kind(), target.Kind()) {
		return v.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", value, target)
}

// convertibleKinds 禁止数字到字符串这类语义不同的转换
func convertibleKinds(from, to reflect.Kind) bool {
	if to == reflect.String {
		return from == reflect.String
	}
	return true
}
