// Package command 解析 whois 命令字符串：
//
//	<login>                 输出全部字段
//	<login>?                删除
//	<login>?<field>         查询单个字段
//	<login>?<field>=<value> 更新单个字段（不存在则创建人员）
//
// 只有第一个 '?' 和其后的第一个 '=' 是分隔符，其余字符原样属于后一部分。
package command

import (
	"fmt"
	"strings"
)

// Kind 请求类型
type Kind int

const (
	KindDump Kind = iota + 1
	KindDelete
	KindLookup
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindDump:
		return "dump"
	case KindDelete:
		return "delete"
	case KindLookup:
		return "lookup"
	case KindUpdate:
		return "update"
	}
	return "unknown"
}

// Request 解析后的请求；Field 为原始字段名，白名单校验在执行时进行
type Request struct {
	Kind  Kind
	Login string
	Field string
	Value string
}

// Parse 解析单条命令
func Parse(raw string) Request {
	login, rest, hasQuery := strings.Cut(raw, "?")
	if !hasQuery {
		return Request{Kind: KindDump, Login: login}
	}
	if rest == "" {
		return Request{Kind: KindDelete, Login: login}
	}
	field, value, hasValue := strings.Cut(rest, "=")
	if !hasValue {
		return Request{Kind: KindLookup, Login: login, Field: field}
	}
	return Request{Kind: KindUpdate, Login: login, Field: field, Value: value}
}

// String 还原为命令字符串（日志用）
func (r Request) String() string {
	switch r.Kind {
	case KindDump:
		return r.Login
	case KindDelete:
		return r.Login + "?"
	case KindLookup:
		return r.Login + "?" + r.Field
	case KindUpdate:
		return r.Login + "?" + r.Field + "=" + r.Value
	}
	return fmt.Sprintf("<invalid request %d>", r.Kind)
}
