package orm

import "errors"

var (
	// ErrMetadataNotFound 表示类型没有可用的元数据。
	ErrMetadataNotFound = errors.New("orm: metadata not found")
	// ErrIdentifier 表示主键声明不合法（缺失或多个）。
	ErrIdentifier = errors.New("orm: invalid identifier declaration")
	// ErrUnsupported 表示模型不具备请求的能力。
	ErrUnsupported = errors.New("orm: capability unsupported")
)
