// Package bridge exposes map-reduce jobs over HTTP. Every HTTP call runs one
// job on its own remote connection.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/riakmr/internal/auth"
	"github.com/danmuck/riakmr/internal/config"
	"github.com/danmuck/riakmr/internal/mapreduce"
	"github.com/danmuck/riakmr/internal/node"
	"github.com/danmuck/riakmr/internal/observability"
	"github.com/danmuck/riakmr/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	HeaderReturnCode = "X-Riak-Return-Code"
	maxArgs          = 5
)

var _ node.Node = (*Server)(nil)

var ErrTooManyArgs = fmt.Errorf("bridge: at most %d args: %w", maxArgs, protocol.ErrEncoding)

type Server struct {
	ID string

	cfg      config.Config
	client   *mapreduce.Client
	router   *gin.Engine
	appeared time.Time
}

// jobRequest is the POST /mapreduce body. Empty fields fall back to the
// [request] config section; an absent timeout_ms does too, while 0 is sent.
type jobRequest struct {
	Bucket    string   `json:"bucket"`
	Key       string   `json:"key"`
	Module    string   `json:"module"`
	Function  string   `json:"function"`
	Args      []string `json:"args"`
	TimeoutMS *int64   `json:"timeout_ms"`
}

func New(cfg config.Config) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetrics(cfg.Bridge.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.Bridge.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", observability.HeaderRequestID},
		ExposeHeaders: []string{
			HeaderReturnCode,
			observability.HeaderRequestID,
		},
		MaxAge: 12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       cfg.Bridge.ID,
		cfg:      cfg,
		client:   mapreduce.NewClient(cfg.Riak.Addr, cfg.Transport(), mapreduce.DefaultConfig()),
		router:   r,
		appeared: time.Now(),
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) NodeID() string { return s.ID }

func (s *Server) Kind() string { return "bridge" }

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.ID,
			"remote":  s.cfg.Riak.Addr,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jobs := s.router.Group("/")
	if s.cfg.Bridge.Token != "" {
		jobs.Use(requireToken(auth.StaticToken{Token: s.cfg.Bridge.Token}))
	}
	jobs.POST("/mapreduce", s.handleMapReduce)
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Check(v, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func (s *Server) handleMapReduce(c *gin.Context) {
	var body jobRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := s.query(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.client.Do(c.Request.Context(), q, mapreduce.ToMemory())
	if err != nil {
		observability.SetErrorKind(c, protocol.Kind(err))
		log.Debug().
			Str("request_id", observability.GetRequestID(c)).
			Err(err).
			Msg("bridge.Server mapreduce failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": protocol.Kind(err)})
		return
	}

	c.Header(HeaderReturnCode, strconv.Itoa(int(res.StatusCode)))
	c.Data(http.StatusOK, "application/octet-stream", res.Payload)
}

func (s *Server) query(body jobRequest) (mapreduce.Query, error) {
	if len(body.Args) > maxArgs {
		return mapreduce.Query{}, ErrTooManyArgs
	}
	args := make([]string, maxArgs)
	copy(args, body.Args)

	q := s.cfg.Query(mapreduce.WalkArgs{
		Serial:  args[0],
		Version: args[1],
		App:     args[2],
		CRC:     args[3],
		Buffer:  args[4],
	})
	if v := strings.TrimSpace(body.Bucket); v != "" {
		q.Bucket = v
	}
	if v := strings.TrimSpace(body.Key); v != "" {
		q.Key = v
	}
	if v := strings.TrimSpace(body.Module); v != "" {
		q.Module = v
	}
	if v := strings.TrimSpace(body.Function); v != "" {
		q.Function = v
	}
	if body.TimeoutMS != nil {
		q.TimeoutMS = *body.TimeoutMS
	}
	return q, q.Validate()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrEncoding):
		return http.StatusBadRequest
	case errors.Is(err, protocol.ErrProtocolMismatch):
		return http.StatusBadGateway
	case errors.Is(err, protocol.ErrCommunication):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Bridge.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("remote", s.cfg.Riak.Addr).Msg("bridge.Server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
