// Package httpapi 在原始 TCP 连接上实现精简的 HTTP/1.1 子集：
//
//	GET /?name=<login> HTTP/1.1            查询 location
//	POST / HTTP/1.1 + name=<login>&location=<value>  更新 location
//
// 其它请求一律返回 400；每个连接只处理一次请求。
package httpapi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedRequest 请求行、请求头或请求体不符合约定格式
var ErrMalformedRequest = errors.New("malformed request")

const (
	getPrefix   = "GET " + getTarget
	getTarget   = "/?name="
	getSuffix   = " HTTP/1.1"
	postLine    = "POST / HTTP/1.1"
	namePrefix  = "name="
	valuePrefix = "location="

	maxLineBytes   = 8 << 10
	maxHeaderLines = 100
)

// RequestKind 请求类型
type RequestKind int

const (
	RequestLookup RequestKind = iota + 1
	RequestUpdate
)

// Request 解析后的请求
type Request struct {
	Kind     RequestKind
	Login    string
	Location string // 仅 RequestUpdate
}

// ReadRequest 从连接读取一个请求
// 连接在发送任何数据前关闭时返回 io.EOF
// 请求体按 Content-Length 精确读取字节后再解析，与按行读取的请求头分开处理
func ReadRequest(r *bufio.Reader, maxBody int64) (*Request, error) {
	line, err := readLine(r)
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return nil, io.EOF
		}
		if !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	switch {
	case line == postLine:
		n, err := readContentLength(r, maxBody)
		if err != nil {
			return nil, err
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("%w: short body: %v", ErrMalformedRequest, err)
		}
		return parseUpdateBody(string(body))

	case strings.HasPrefix(line, getPrefix) && strings.HasSuffix(line, getSuffix):
		// 登录名取按空格切分后的第二段，遇到空格即截断
		target := strings.Split(line, " ")[1]
		login := strings.TrimPrefix(target, getTarget)
		return &Request{Kind: RequestLookup, Login: login}, nil
	}

	return nil, fmt.Errorf("%w: unrecognised request line %q", ErrMalformedRequest, line)
}

// readContentLength 读取请求头直到空行，返回 Content-Length（缺省为 0）
func readContentLength(r *bufio.Reader, maxBody int64) (int64, error) {
	var length int64
	for i := 0; ; i++ {
		if i >= maxHeaderLines {
			return 0, fmt.Errorf("%w: too many header lines", ErrMalformedRequest)
		}
		line, err := readLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: headers not terminated", ErrMalformedRequest)
			}
			return 0, err
		}
		if line == "" {
			return length, nil
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 || n > maxBody {
			return 0, fmt.Errorf("%w: invalid Content-Length %q", ErrMalformedRequest, value)
		}
		length = n
	}
}

// parseUpdateBody 解析 name=<login>&location=<value>，location 值中可以再包含 '&'
func parseUpdateBody(body string) (*Request, error) {
	first, second, ok := strings.Cut(body, "&")
	if !ok || !strings.HasPrefix(first, namePrefix) || !strings.HasPrefix(second, valuePrefix) {
		return nil, fmt.Errorf("%w: unrecognised body %q", ErrMalformedRequest, body)
	}
	return &Request{
		Kind:     RequestUpdate,
		Login:    first[len(namePrefix):],
		Location: second[len(valuePrefix):],
	}, nil
}

// readLine 读取一行（去掉 \r\n），超过 maxLineBytes 视为格式错误
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		buf = append(buf, chunk...)
		if len(buf) > maxLineBytes {
			return "", fmt.Errorf("%w: line too long", ErrMalformedRequest)
		}
		if err != nil {
			return string(buf), err
		}
		if !isPrefix {
			return string(buf), nil
		}
	}
}
