package batch

// Request 一次元数据路径的批量写入
type Request struct {
	// Records 同一类型的记录指针
	Records []any

	ReturnFields   []string
	UpdateFields   []string
	MergeFields    []string
	ConflictFields []string

	// WithRelations 先写拥有方关联、后写反向关联，并回填自增主键
	WithRelations bool
	// UpdateMode 为空时使用 Config.DefaultMode；关联写入沿用该模式
	UpdateMode UpdateMode
}

// NewRequest 创建默认请求
func NewRequest(records ...any) *Request {
	return &Request{Records: records}
}

// Collect 把类型化切片转换为 []any
func Collect[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

func (r *Request) fields() QueryFields {
	return QueryFields{
		Return:   r.ReturnFields,
		Update:   r.UpdateFields,
		Merge:    r.MergeFields,
		Conflict: r.ConflictFields,
	}
}
