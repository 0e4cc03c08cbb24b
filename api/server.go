package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// Server HTTP 服务，负责监听与优雅关闭
type Server struct {
	cfg    Config
	srv    *http.Server
	logger clog.Logger
}

// NewServer 创建 HTTP 服务
func NewServer(cfg *Config, router *gin.Engine, logger clog.Logger) *Server {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	gin.SetMode(c.Mode)
	if logger == nil {
		logger = clog.Discard()
	}

	return &Server{
		cfg: c,
		srv: &http.Server{
			Addr:         c.Addr,
			Handler:      router,
			ReadTimeout:  c.ReadTimeout,
			WriteTimeout: c.WriteTimeout,
		},
		logger: logger.WithNamespace("api"),
	}
}

// Run 阻塞服务直到 ctx 取消，随后在 ShutdownTimeout 内等待进行中的请求完成
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return xerrors.Wrapf(err, "api: listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定的 listener 上服务
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", clog.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return xerrors.Wrap(err, "api: serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return xerrors.Wrap(err, "api: shutdown")
	}
	return nil
}
