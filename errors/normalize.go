package errors

import (
	"context"
	"database/sql"
	stdErrors "errors"
)

// Normalize 将 database/sql 与 context 的哨兵错误规范化为 AppError。
//
// 已经是 IError 的错误原样返回；未识别的错误保持原样，交由调用方决定是否 Wrap。
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := err.(IError); ok {
		return err
	}

	switch {
	case stdErrors.Is(err, sql.ErrNoRows):
		return NewErrorWithCause(ErrCodeNotFound, "记录不存在", err)
	case stdErrors.Is(err, context.DeadlineExceeded):
		return NewErrorWithCause(ErrCodeTimeout, "操作超时", err)
	case stdErrors.Is(err, sql.ErrConnDone), stdErrors.Is(err, sql.ErrTxDone):
		return NewErrorWithCause(ErrCodeDatabase, "连接或事务已关闭", err)
	}

	return err
}
