package httpapi

import (
	"fmt"
	"io"
	"net/http"
)

// WriteResponse 写出完整响应；响应后连接即关闭，不支持 keep-alive
func WriteResponse(w io.Writer, status int, body string) error {
	_, err := fmt.Fprintf(w,
		"HTTP/1.1 %d %s\r\nContent-Type: text/plain\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, http.StatusText(status), len(body), body,
	)
	return err
}
