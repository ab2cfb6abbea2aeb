// Package wsecho implements an echo server for WebSocket messages.
package wsecho

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"

	"github.com/framewire/websocket"
	"github.com/framewire/websocket/internal/errd"
)

// Loop echos every msg received from c until an error
// occurs or the context expires.
// Each message waits on l before it is echoed.
func Loop(ctx context.Context, c *websocket.Conn, l *rate.Limiter) error {
	defer c.Close(websocket.StatusInternalError, "")

	for {
		m, err := c.Read(ctx)
		if err != nil {
			return err
		}

		err = l.Wait(ctx)
		if err != nil {
			return err
		}

		err = c.Write(ctx, m.Type(), m.Payload)
		if err != nil {
			return err
		}
		recordMessage(m.Type(), len(m.Payload))
	}
}

// Server accepts WebSocket connections and echos their messages.
type Server struct {
	cfg Config
	log zerolog.Logger
}

// NewServer returns a Server for cfg.
func NewServer(cfg Config, log zerolog.Logger) *Server {
	RegisterMetrics()
	return &Server{
		cfg: cfg,
		log: log,
	}
}

// Handler accepts a connection and runs Loop on it.
func (s *Server) Handler() gin.HandlerFunc {
	return func(ginCtx *gin.Context) {
		err := s.serve(ginCtx.Writer, ginCtx.Request)
		recordConnection(err)

		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			s.log.Debug().Err(err).Msg("connection closed")
		default:
			s.log.Warn().Err(err).Str("client_ip", ginCtx.ClientIP()).Msg("connection failed")
		}
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) (err error) {
	defer errd.Wrap(&err, "echo server failed")

	log := s.log
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
		Stream: websocket.StreamOptions{
			MaxBufferedPayload: s.cfg.MaxBufferedPayload,
		},
		Logger: &log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	l := rate.NewLimiter(rate.Every(s.cfg.MessageInterval), s.cfg.Burst)
	return Loop(ctx, c, l)
}

// Router returns the server's routes: the echo endpoint at cfg.Path,
// /metrics and /health.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(s.cfg.Path, s.Handler())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	return r
}

// ListenAndServe serves Router on cfg.Addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) (err error) {
	hs := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: time.Second * 10,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- hs.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.cfg.Addr).Str("path", s.cfg.Path).Msg("listening")

	select {
	case err := <-serveErr:
		return xerrors.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err = multierr.Append(err, hs.Shutdown(shutdownCtx))
	if serr := <-serveErr; !xerrors.Is(serr, http.ErrServerClosed) {
		err = multierr.Append(err, serr)
	}
	if err != nil {
		return xerrors.Errorf("failed to shut down: %w", err)
	}
	return nil
}
