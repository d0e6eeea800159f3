package httpapi

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"whois/internal/domain"

	"go.uber.org/zap"
)

const locationField = "location"

// Directory 处理请求所需的目录操作（仅限 location 字段）
type Directory interface {
	Lookup(ctx context.Context, login, field string) (string, error)
	Update(ctx context.Context, login, field, value string) error
}

// Handler 单连接请求处理
type Handler struct {
	dir     Directory
	maxBody int64
	logger  *zap.Logger
}

// NewHandler 创建 Handler
func NewHandler(dir Directory, maxBody int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{dir: dir, maxBody: maxBody, logger: logger}
}

// ServeConn 在连接上处理一次请求/响应；返回的错误只用于记录日志
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) error {
	req, err := ReadRequest(bufio.NewReader(conn), h.maxBody)
	if err != nil {
		if errors.Is(err, io.EOF) {
			h.logger.Debug("ignoring empty request", zap.String("remote", remoteAddr(conn)))
			return nil
		}
		if errors.Is(err, ErrMalformedRequest) {
			h.logger.Info("bad request", zap.String("remote", remoteAddr(conn)), zap.Error(err))
			return WriteResponse(conn, http.StatusBadRequest, "")
		}
		return err
	}

	switch req.Kind {
	case RequestLookup:
		return h.lookup(ctx, conn, req)
	case RequestUpdate:
		return h.update(ctx, conn, req)
	}
	return WriteResponse(conn, http.StatusBadRequest, "")
}

func (h *Handler) lookup(ctx context.Context, conn net.Conn, req *Request) error {
	h.logger.Debug("received a lookup request", zap.String("login", req.Login))

	v, err := h.dir.Lookup(ctx, req.Login, locationField)
	switch {
	case err == nil:
		h.logger.Info("performed lookup", zap.String("login", req.Login), zap.String("result", v))
		return WriteResponse(conn, http.StatusOK, v)
	case errors.Is(err, domain.ErrUserNotKnown), errors.Is(err, domain.ErrNoValue):
		h.logger.Info("performed lookup", zap.String("login", req.Login), zap.String("result", "404 Not Found"))
		return WriteResponse(conn, http.StatusNotFound, "")
	}
	return WriteResponse(conn, http.StatusInternalServerError, err.Error())
}

func (h *Handler) update(ctx context.Context, conn net.Conn, req *Request) error {
	h.logger.Debug("received an update request",
		zap.String("login", req.Login),
		zap.String("location", req.Location),
	)

	if err := h.dir.Update(ctx, req.Login, locationField, req.Location); err != nil {
		return WriteResponse(conn, http.StatusInternalServerError, err.Error())
	}
	return WriteResponse(conn, http.StatusOK, "OK")
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
