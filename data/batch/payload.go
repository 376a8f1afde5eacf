package batch

// Column 导出数据中的一列，Name 为列名
type Column struct {
	Name  string
	Value any
}

// Payload 按列顺序排列的导出数据
type Payload []Column

// Columns 列名列表
func (p Payload) Columns() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Name
	}
	return out
}

// IBatchInsertable 轻量写入路径的数据来源：记录自行导出列值，不经过元数据
type IBatchInsertable interface {
	BatchInsertData() Payload
}
