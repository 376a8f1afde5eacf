package batch

import (
	"fmt"
	"strings"

	"batchinsert/data/db/dialect"
	"batchinsert/data/orm"
	"batchinsert/errors"
)

const valuesSeparator = ", "

// column 语句中的一列：直接字段或拥有方 to-one 关联的外键
type column struct {
	name  string
	field *orm.FieldMeta
	assoc *orm.AssociationMeta
}

// Builder 组装内嵌字面量的多行 INSERT 语句
//
// 使用方式：WithType → WithUpdateStrategy → WithRecords → WithFields → Build。
// Build 无论成功与否都会清空已累积的状态。非并发安全。
type Builder struct {
	platform dialect.Platform
	provider orm.IMetadataProvider
	encoder  *Encoder

	meta     *orm.ModelMeta
	strategy UpdateStrategy
	records  []any
	fields   QueryFields
	related  map[string]*orm.ModelMeta
}

func NewBuilder(platform dialect.Platform, provider orm.IMetadataProvider, encoder *Encoder) *Builder {
	if encoder == nil {
		encoder = NewEncoder(nil)
	}
	return &Builder{
		platform: platform,
		provider: provider,
		encoder:  encoder,
		related:  make(map[string]*orm.ModelMeta),
	}
}

func (b *Builder) WithType(meta *orm.ModelMeta) *Builder {
	b.meta = meta
	return b
}

func (b *Builder) WithUpdateStrategy(s UpdateStrategy) *Builder {
	b.strategy = s
	return b
}

func (b *Builder) WithRecords(records []any) *Builder {
	b.records = append(b.records, records...)
	return b
}

// WithFields 未指定的字段集合在 Build 时按列补全默认值
func (b *Builder) WithFields(fields QueryFields) *Builder {
	b.fields = fields
	return b
}

// Columns 返回类型的插入列：直接字段（自增主键除外）加拥有方 to-one 外键列
func (b *Builder) Columns(meta *orm.ModelMeta) []string {
	cols := b.columns(meta)
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

func (b *Builder) columns(meta *orm.ModelMeta) []column {
	generated := meta.UsesGeneratedIdentity()
	out := make([]column, 0, len(meta.Fields)+len(meta.Associations))
	for i := range meta.Fields {
		f := &meta.Fields[i]
		if generated && f.PrimaryKey {
			continue
		}
		out = append(out, column{name: f.Column, field: f})
	}
	for i := range meta.Associations {
		a := &meta.Associations[i]
		if !a.Owning || !a.Kind.ToOne() || a.ForeignKey == "" {
			continue
		}
		out = append(out, column{name: a.ForeignKey, assoc: a})
	}
	return out
}

// Build 生成语句：<keyword> INTO <table> (<cols>) VALUES (...), (...) [<post>] RETURNING <ret>
func (b *Builder) Build() (string, error) {
	defer b.reset()

	if b.meta == nil {
		return "", errors.NewConfigurationError("builder: type metadata not set")
	}
	if len(b.records) == 0 {
		return "", errors.NewValidationError(fmt.Sprintf("builder: no records for %s", b.meta.TypeName))
	}
	strategy := b.strategy
	if strategy == nil {
		strategy = DefaultStrategy{}
	}

	id, err := b.meta.IdentifierField()
	if err != nil {
		return "", err
	}
	cols := b.columns(b.meta)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	fields := resolveFields(b.fields, names, []string{id.Column})

	if err := checkIdentifiers(b.meta.Table, names, fields); err != nil {
		return "", err
	}
	for _, m := range fields.Merge {
		if _, ok := b.meta.FieldByColumn(m); !ok {
			return "", errors.NewConfigurationError(fmt.Sprintf("merge field %q is not a column of %s", m, b.meta.TypeName))
		}
	}

	rows := make([]string, 0, len(b.records))
	for i, r := range b.records {
		row, err := b.row(r, cols)
		if err != nil {
			return "", errors.WrapError(err, errors.GetErrorCode(err),
				fmt.Sprintf("build row %d of %s", i, b.meta.TypeName))
		}
		rows = append(rows, row)
	}

	parts := []string{
		strategy.InsertKeyword(b.platform),
		"INTO", b.meta.Table,
		"(" + strings.Join(names, valuesSeparator) + ")",
		"VALUES", strings.Join(rows, valuesSeparator),
	}
	if post := strategy.PostValuesClause(b.platform, b.meta.Table, fields); post != "" {
		parts = append(parts, post)
	}
	parts = append(parts, "RETURNING", strings.Join(fields.Return, valuesSeparator))

	return strings.Join(parts, " "), nil
}

func (b *Builder) row(record any, cols []column) (string, error) {
	values := make([]string, len(cols))
	for i, c := range cols {
		var (
			literal string
			err     error
		)
		if c.field != nil {
			literal, err = b.directValue(record, c.field)
		} else {
			literal, err = b.relatedValue(record, c.assoc)
		}
		if err != nil {
			return "", err
		}
		values[i] = literal
	}
	return "(" + strings.Join(values, valuesSeparator) + ")", nil
}

func (b *Builder) directValue(record any, f *orm.FieldMeta) (string, error) {
	value, err := b.provider.FieldValue(record, f.Name)
	if err != nil {
		return "", err
	}
	return b.encoder.Encode(value, f.Type)
}

// relatedValue 取关联实例上被引用字段的值；关联为空时为 null
func (b *Builder) relatedValue(record any, a *orm.AssociationMeta) (string, error) {
	value, err := b.provider.FieldValue(record, a.Name)
	if err != nil {
		return "", err
	}
	if isNilRelation(value) {
		return "null", nil
	}

	target, err := b.relatedMeta(a.Target)
	if err != nil {
		return "", err
	}
	refName := a.ReferenceKey
	if refName == "" {
		id, err := target.IdentifierField()
		if err != nil {
			return "", err
		}
		refName = id.Name
	}
	ref, ok := target.Field(refName)
	if !ok {
		return "", errors.NewConfigurationError(
			fmt.Sprintf("%s has no field %s referenced by %s", target.TypeName, refName, a.Name))
	}

	refValue, err := b.provider.FieldValue(value, ref.Name)
	if err != nil {
		return "", err
	}
	// 被引用的实例尚未分配主键
	if orm.IsZero(refValue) {
		return "null", nil
	}
	return b.encoder.Encode(refValue, ref.Type)
}

func (b *Builder) relatedMeta(typeName string) (*orm.ModelMeta, error) {
	if m, ok := b.related[typeName]; ok {
		return m, nil
	}
	m, err := b.provider.MetadataByName(typeName)
	if err != nil {
		return nil, err
	}
	b.related[typeName] = m
	return m, nil
}

func (b *Builder) reset() {
	b.meta = nil
	b.strategy = nil
	b.records = nil
	b.fields = QueryFields{}
	b.related = make(map[string]*orm.ModelMeta)
}

// checkIdentifiers 表名与列名直接拼接进语句，必须是安全标识符
func checkIdentifiers(table string, columns []string, fields QueryFields) error {
	groups := [][]string{{table}, columns, fields.Return, fields.Update, fields.Merge, fields.Conflict}
	for _, group := range groups {
		for _, name := range group {
			if !dialect.IsSafeIdentifier(name) {
				return errors.NewConfigurationError(fmt.Sprintf("unsafe identifier %q", name))
			}
		}
	}
	return nil
}
