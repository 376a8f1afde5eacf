package batch

import stdErrors "errors"

var (
	// ErrHeterogeneousCollection 集合中出现了不同类型的记录
	ErrHeterogeneousCollection = stdErrors.New("batch: heterogeneous collection")
	// ErrRelationDepth 关联写入层级超过 Config.MaxDepth
	ErrRelationDepth = stdErrors.New("batch: relation depth exceeded")
	// ErrPayloadMismatch 导出数据的列与第一条记录不一致
	ErrPayloadMismatch = stdErrors.New("batch: payload columns mismatch")
)
