package domain

// Field 可查询/可更新的字段（封闭集合）
type Field int

const (
	FieldUserID Field = iota + 1
	FieldSurname
	FieldForenames
	FieldTitle
	FieldPosition
	FieldPhone
	FieldEmail
	FieldLocation
)

// FieldKind 字段的读写策略
type FieldKind int

const (
	KindIdentity  FieldKind = iota + 1 // 只读：内部 UserID
	KindScalar                         // comp_user 上的可空列，直接覆盖
	KindSequence                       // 有序列表，整体替换（名）
	KindPooledSet                      // 先写入共享池再关联，整体替换（电话、邮箱）
	KindReference                      // 共享引用值，get-or-create 后关联（职位、地点）
)

// Scalar comp_user 上的标量列
type Scalar int

const (
	ScalarSurname Scalar = iota + 1
	ScalarTitle
)

// Relation 多值关联
type Relation int

const (
	RelationPosition Relation = iota + 1
	RelationPhone
	RelationEmail
)

// ReferenceKind 共享引用值类型
type ReferenceKind int

const (
	ReferencePosition ReferenceKind = iota + 1
	ReferenceLocation
)

// Fields Dump 输出顺序
var Fields = []Field{
	FieldUserID,
	FieldSurname,
	FieldForenames,
	FieldTitle,
	FieldPosition,
	FieldPhone,
	FieldEmail,
	FieldLocation,
}

// 字段名区分大小写，沿用既有客户端的拼写（"Fornames"、"location"）
var fieldNames = map[Field]string{
	FieldUserID:    "UserID",
	FieldSurname:   "Surname",
	FieldForenames: "Fornames",
	FieldTitle:     "Title",
	FieldPosition:  "Position",
	FieldPhone:     "Phone",
	FieldEmail:     "Email",
	FieldLocation:  "location",
}

// ParseField 按名称查找字段；不在白名单内返回 false
func ParseField(name string) (Field, bool) {
	for f, n := range fieldNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// String 返回字段在命令协议中的名称
func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return "unknown"
}

// Kind 返回字段的读写策略
func (f Field) Kind() FieldKind {
	switch f {
	case FieldUserID:
		return KindIdentity
	case FieldSurname, FieldTitle:
		return KindScalar
	case FieldForenames:
		return KindSequence
	case FieldPhone, FieldEmail:
		return KindPooledSet
	case FieldPosition, FieldLocation:
		return KindReference
	}
	return 0
}

// Scalar 标量字段对应的列；非标量字段返回 false
func (f Field) Scalar() (Scalar, bool) {
	switch f {
	case FieldSurname:
		return ScalarSurname, true
	case FieldTitle:
		return ScalarTitle, true
	}
	return 0, false
}

// Relation 多值字段对应的关联；职位虽是引用值，读取时也按关联集合处理
func (f Field) Relation() (Relation, bool) {
	switch f {
	case FieldPosition:
		return RelationPosition, true
	case FieldPhone:
		return RelationPhone, true
	case FieldEmail:
		return RelationEmail, true
	}
	return 0, false
}

// Reference 引用字段对应的共享值类型
func (f Field) Reference() (ReferenceKind, bool) {
	switch f {
	case FieldPosition:
		return ReferencePosition, true
	case FieldLocation:
		return ReferenceLocation, true
	}
	return 0, false
}

// Check 出错时提示排查的表
func (f Field) Check() string {
	switch f {
	case FieldUserID:
		return "user_login"
	case FieldSurname, FieldTitle:
		return "comp_user"
	case FieldForenames:
		return "user_forename"
	case FieldPosition:
		return "position, user_position"
	case FieldPhone:
		return "phone, user_phone"
	case FieldEmail:
		return "email, user_email"
	case FieldLocation:
		return "location, comp_user"
	}
	return ""
}

func (s Scalar) String() string {
	switch s {
	case ScalarSurname:
		return "surname"
	case ScalarTitle:
		return "title"
	}
	return "unknown"
}

func (r Relation) String() string {
	switch r {
	case RelationPosition:
		return "position"
	case RelationPhone:
		return "phone"
	case RelationEmail:
		return "email"
	}
	return "unknown"
}

func (k ReferenceKind) String() string {
	switch k {
	case ReferencePosition:
		return "position"
	case ReferenceLocation:
		return "location"
	}
	return "unknown"
}
