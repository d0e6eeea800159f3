package domain

import (
	"strings"
)

// Person 目录中的人员记录（Dump 的读取结果）
type Person struct {
	UserID    string
	Surname   *string
	Forenames []string
	Title     *string
	Positions []string
	Phones    []string
	Emails    []string
	Location  *string
}

// SplitForenames 按空白拆分名，丢弃空段
func SplitForenames(value string) []string {
	return strings.Fields(value)
}

// JoinForenames 按原顺序以单个空格拼接
func JoinForenames(names []string) string {
	return strings.Join(names, " ")
}

// JoinSet 多值字段以 ", " 拼接
func JoinSet(values []string) string {
	return strings.Join(values, ", ")
}

// Value 以命令协议的文本形式返回字段值；值为 NULL 时 ok 为 false
func (p *Person) Value(f Field) (value string, ok bool) {
	switch f {
	case FieldUserID:
		return p.UserID, true
	case FieldSurname:
		return deref(p.Surname)
	case FieldForenames:
		return JoinForenames(p.Forenames), true
	case FieldTitle:
		return deref(p.Title)
	case FieldPosition:
		return JoinSet(p.Positions), true
	case FieldPhone:
		return JoinSet(p.Phones), true
	case FieldEmail:
		return JoinSet(p.Emails), true
	case FieldLocation:
		return deref(p.Location)
	}
	return "", false
}

// Lines 按固定顺序输出 "Label=value"，值为空也保留标签
func (p *Person) Lines() []string {
	lines := make([]string, 0, len(Fields))
	for _, f := range Fields {
		v, _ := p.Value(f)
		lines = append(lines, f.String()+"="+v)
	}
	return lines
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
