package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	lingerTimeout  = 500 * time.Millisecond
	lingerMaxBytes = 64 << 10
	maxAcceptDelay = time.Second
)

// ConnHandler 处理单个连接上的一次请求
type ConnHandler interface {
	ServeConn(ctx context.Context, conn net.Conn) error
}

// ServerConfig TCP 服务参数
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxConns     int
}

// Server TCP 服务：每个连接一个 goroutine，并发数受 MaxConns 限制
type Server struct {
	cfg     ServerConfig
	handler ConnHandler
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	closing  bool
	done     chan struct{}
}

// NewServer 创建 Server
func NewServer(cfg ServerConfig, handler ConnHandler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start 监听 cfg.Addr 并开始服务；绑定失败时返回错误，Stop 之后返回 nil
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(l)
}

// Serve 在给定 listener 上接受连接，直到 Stop 或出现不可恢复的 accept 错误
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		l.Close()
		return nil
	}
	s.listener = l
	s.mu.Unlock()
	defer close(s.done)

	s.logger.Info("Starting whois server", zap.String("addr", l.Addr().String()))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConns)

	var (
		serveErr error
		delay    time.Duration
	)
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				break
			}
			if !isTransientAcceptError(err) {
				serveErr = fmt.Errorf("failed to accept connection: %w", err)
				break
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			s.logger.Warn("accept failed, retrying", zap.Duration("delay", delay), zap.Error(err))
			time.Sleep(delay)
			continue
		}
		delay = 0

		g.Go(func() error {
			s.serveConn(conn)
			return nil
		})
	}

	l.Close()
	_ = g.Wait()
	return serveErr
}

// Addr 返回监听地址；尚未开始监听时返回 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop 停止接受新连接，等待进行中的请求完成或 ctx 超时
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping whois server")

	s.mu.Lock()
	s.closing = true
	l := s.listener
	s.mu.Unlock()

	if l == nil {
		s.cancel()
		return nil
	}
	l.Close()

	select {
	case <-s.done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	start := time.Now()
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(s.cfg.ReadTimeout))
	}
	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(start.Add(s.cfg.ReadTimeout + s.cfg.WriteTimeout))
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while serving connection",
				zap.String("remote", remote),
				zap.Any("panic", r),
			)
		}
	}()

	if err := s.handler.ServeConn(s.ctx, conn); err != nil {
		s.logger.Warn("request failed",
			zap.String("remote", remote),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
	lingerClose(conn)
}

// lingerClose 关闭写端后在 lingerTimeout 内丢弃客户端剩余数据
func lingerClose(conn net.Conn) {
	type closeWriter interface{ CloseWrite() error }
	cw, ok := conn.(closeWriter)
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, lingerMaxBytes))
}

func isTransientAcceptError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET)
}
