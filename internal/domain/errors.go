package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotKnown 登录名未绑定任何人员
	ErrUserNotKnown = errors.New("user not known")
	// ErrNoSuchField 字段不在白名单内
	ErrNoSuchField = errors.New("no such field")
	// ErrNoValue 字段存在但值为 NULL
	ErrNoValue = errors.New("no value")
	// ErrReadOnlyField 字段不可更新（UserID）
	ErrReadOnlyField = errors.New("field is read-only")
)

// OperationError 存储层失败（连接、约束冲突等），附带操作名与排查提示
type OperationError struct {
	Op    string // dump / lookup / update / delete
	Login string
	Check string // 建议检查的表
	Err   error
}

func (e *OperationError) Error() string {
	if e.Check == "" {
		return fmt.Sprintf("%s %q failed: %v", e.Op, e.Login, e.Err)
	}
	return fmt.Sprintf("%s %q failed (check %s): %v", e.Op, e.Login, e.Check, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
