package repository

import (
	"context"
	"errors"

	"whois/internal/domain"
)

// ErrNotFound 登录名没有绑定人员
var ErrNotFound = errors.New("not found")

// DirectoryRepository 人员目录存储接口
// 所有"整体替换"操作先删除旧关联再插入新值，空列表表示清空
type DirectoryRepository interface {
	// 登录名 -> 人员
	FindPersonID(ctx context.Context, login string) (string, error)
	// EnsurePerson 查找或创建人员（同时登记 login_account 与 user_login），幂等
	EnsurePerson(ctx context.Context, login string) (string, error)

	// 标量列（可为 NULL）
	ReadScalar(ctx context.Context, personID string, s domain.Scalar) (*string, error)
	WriteScalar(ctx context.Context, personID string, s domain.Scalar, value *string) error

	// 名（有序）
	ReadForenames(ctx context.Context, personID string) ([]string, error)
	ReplaceForenames(ctx context.Context, personID string, names []string) error

	// 多值关联：职位按名称读取；电话/邮箱先写入共享池再关联
	ReadSet(ctx context.Context, personID string, rel domain.Relation) ([]string, error)
	ReplaceSet(ctx context.Context, personID string, rel domain.Relation, values []string) error

	// 共享引用值
	GetOrCreateReference(ctx context.Context, kind domain.ReferenceKind, name string) (int64, error)
	ReplacePositions(ctx context.Context, personID string, positionIDs []int64) error
	ReadLocation(ctx context.Context, personID string) (*string, error)
	AssignLocation(ctx context.Context, personID string, locationID int64) error

	// DeleteLogin 在一次操作内删除登录名对应人员的全部关联、登录绑定、人员本身及登录名登记
	// 人员不存在时只删除登记，返回 personDeleted=false；不删除共享引用值
	DeleteLogin(ctx context.Context, login string) (personDeleted bool, err error)
}
