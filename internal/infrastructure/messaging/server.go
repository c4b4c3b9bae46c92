package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pharmaerp/receiving/internal/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dispatcher routes a decoded request to its handler
type Dispatcher interface {
	Dispatch(ctx context.Context, pattern string, data jsoniter.RawMessage) (any, error)
}

// ServerConfig holds the queue and worker settings of a Server
type ServerConfig struct {
	Queue          string
	Workers        int
	RequestTimeout time.Duration
	PollTimeout    time.Duration
	ReplyTTL       time.Duration
}

// Server consumes requests from one Redis list with a fixed worker pool
type Server struct {
	queue      Queue
	cfg        ServerConfig
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server; call Start to begin consuming
func NewServer(queue Queue, cfg ServerConfig, dispatcher Dispatcher, log *zap.Logger) *Server {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.ReplyTTL <= 0 {
		cfg.ReplyTTL = time.Minute
	}
	return &Server{
		queue:      queue,
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     log.Named("rpc"),
		now:        time.Now,
	}
}

// Start launches the workers
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.work(ctx, i)
	}

	s.logger.Info("rpc server started",
		zap.String("queue", s.cfg.Queue),
		zap.Int("workers", s.cfg.Workers),
	)
	return nil
}

// Stop stops polling and waits for in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("rpc server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) work(ctx context.Context, worker int) {
	defer s.wg.Done()

	for ctx.Err() == nil {
		res, err := s.queue.BLPop(ctx, s.cfg.PollTimeout, s.cfg.Queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			s.logger.Error("poll failed", zap.Int("worker", worker), zap.Error(err))
			s.backoff(ctx)
			continue
		}
		if len(res) != 2 {
			continue
		}

		// replies must go out even while shutting down
		s.serve(context.WithoutCancel(ctx), []byte(res[1]))
	}
}

func (s *Server) backoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.cfg.PollTimeout):
	}
}

// serve handles one raw message and pushes the reply
func (s *Server) serve(ctx context.Context, raw []byte) {
	req, reply, ok := s.HandleMessage(ctx, raw)
	if !ok {
		return
	}

	if err := s.queue.RPush(ctx, req.ReplyTo, reply).Err(); err != nil {
		s.logger.Error("failed to push reply",
			zap.String("request_id", req.ID),
			zap.String("reply_to", req.ReplyTo),
			zap.Error(err),
		)
		return
	}
	if err := s.queue.Expire(ctx, req.ReplyTo, s.cfg.ReplyTTL).Err(); err != nil {
		s.logger.Warn("failed to set reply ttl", zap.String("reply_to", req.ReplyTo), zap.Error(err))
	}
}

// HandleMessage decodes raw, dispatches it and encodes the response.
// ok is false when no reply should be sent: the envelope is unreadable or
// the caller's deadline has already passed.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) (req *Request, reply []byte, ok bool) {
	req, err := DecodeRequest(raw)
	if err != nil {
		s.logger.Warn("dropping malformed request", zap.Error(err))
		return nil, nil, false
	}

	ctx = logger.WithContext(ctx, s.logger)
	ctx = logger.WithOperation(logger.WithRequestID(ctx, req.ID), req.Pattern)
	log := logger.L(ctx)

	now := s.now()
	if req.Expired(now) {
		log.Warn("dropping expired request", zap.Time("deadline", req.Deadline))
		return req, nil, false
	}

	callCtx, cancel := s.callContext(ctx, req, now)
	defer cancel()

	start := time.Now()
	result, err := s.dispatcher.Dispatch(callCtx, req.Pattern, req.Data)
	resp := &Response{ID: req.ID}
	if err != nil {
		resp.Error = NewErrorBody(err)
		if resp.Error.Kind == KindInternal {
			log.Error("request failed", zap.Error(err))
		} else {
			log.Info("request rejected", zap.String("code", resp.Error.Code), zap.String("message", resp.Error.Message))
		}
	} else if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			resp.Error = NewErrorBody(fmt.Errorf("encode result: %w", err))
			log.Error("failed to encode result", zap.Error(err))
		} else {
			resp.Data = data
		}
	}

	reply, err = EncodeResponse(resp)
	if err != nil {
		log.Error("failed to encode response", zap.Error(err))
		return req, nil, false
	}

	log.Debug("request served", zap.Duration("duration", time.Since(start)))
	return req, reply, true
}

// callContext bounds a handler by the server timeout and the caller's deadline, whichever is sooner
func (s *Server) callContext(ctx context.Context, req *Request, now time.Time) (context.Context, context.CancelFunc) {
	deadline := req.Deadline
	if s.cfg.RequestTimeout > 0 {
		if limit := now.Add(s.cfg.RequestTimeout); deadline.IsZero() || limit.Before(deadline) {
			deadline = limit
		}
	}
	if deadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline)
}
