package batch

import (
	"reflect"

	"batchinsert/data/orm"
)

// Bucket 同一类型的待写入关联记录
type Bucket struct {
	TypeName string
	Records  []any
}

// RelatedEntities 关联分析结果
//
// Before 为拥有方关联（外键在本侧），必须先于本集合写入；
// After 为反向关联，在本集合写入并回填主键之后写入。
type RelatedEntities struct {
	Before []Bucket
	After  []Bucket
}

func (r *RelatedEntities) Empty() bool {
	return r == nil || (len(r.Before) == 0 && len(r.After) == 0)
}

// RelationAnalyzer 找出集合中尚未持久化的关联实例
type RelationAnalyzer struct {
	provider orm.IMetadataProvider
	oracle   orm.IIdentityOracle
}

// NewRelationAnalyzer oracle 为 nil 时使用 orm.NewDefaultOracle
func NewRelationAnalyzer(provider orm.IMetadataProvider, oracle orm.IIdentityOracle) *RelationAnalyzer {
	if oracle == nil {
		oracle = orm.NewDefaultOracle(provider)
	}
	return &RelationAnalyzer{provider: provider, oracle: oracle}
}

// Analyze 只考虑拥有方或级联写入的 belongs_to/has_one/has_many 关联
func (a *RelationAnalyzer) Analyze(records []any, meta *orm.ModelMeta) (*RelatedEntities, error) {
	assocs := make([]orm.AssociationMeta, 0, len(meta.Associations))
	for _, assoc := range meta.Associations {
		if assoc.Kind == orm.AssociationManyToMany {
			continue
		}
		if assoc.Owning || assoc.CascadePersist {
			assocs = append(assocs, assoc)
		}
	}

	before := newBucketSet()
	after := newBucketSet()
	for _, r := range records {
		for _, assoc := range assocs {
			value, err := a.provider.FieldValue(r, assoc.Name)
			if err != nil {
				return nil, err
			}
			target := before
			if !assoc.Owning {
				target = after
			}
			for _, instance := range expand(value) {
				if a.oracle.IsKnown(instance) {
					continue
				}
				related, err := a.provider.MetadataFor(instance)
				if err != nil {
					return nil, err
				}
				target.add(related.TypeName, instance)
			}
		}
	}

	return &RelatedEntities{Before: before.buckets, After: after.buckets}, nil
}

// expand 把关联值展开为实例列表；空值返回 nil，切片元素取地址以便回填主键
func expand(value any) []any {
	if isNilRelation(value) {
		return nil
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []any{value}
	}

	out := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		switch {
		case elem.Kind() == reflect.Interface || elem.Kind() == reflect.Ptr:
			if elem.IsNil() {
				continue
			}
			out = append(out, elem.Interface())
		case elem.CanAddr():
			out = append(out, elem.Addr().Interface())
		default:
			out = append(out, elem.Interface())
		}
	}
	return out
}

// isNilRelation 关联值为空：nil、nil 指针或 nil 切片；指向零值结构体的指针不算空
func isNilRelation(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	default:
		return false
	}
}

// bucketSet 按首次出现顺序分组，同一指针只收录一次
type bucketSet struct {
	buckets []Bucket
	index   map[string]int
	seen    *orm.IdentityMap
}

func newBucketSet() *bucketSet {
	return &bucketSet{index: make(map[string]int), seen: orm.NewIdentityMap(nil)}
}

func (s *bucketSet) add(typeName string, record any) {
	if s.seen.Contains(record) {
		return
	}
	s.seen.Mark(record)

	i, ok := s.index[typeName]
	if !ok {
		i = len(s.buckets)
		s.index[typeName] = i
		s.buckets = append(s.buckets, Bucket{TypeName: typeName})
	}
	s.buckets[i].Records = append(s.buckets[i].Records, record)
}
