package server

import (
	"context"
	"log/slog"
	"sync"

	iolib "webstack/lib/io"
	"webstack/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Server accepts connections from a listener and answers each with a [Handler].
type Server struct {
	l transport.ConnListener

	closeListener func()
	done          chan struct{}
	wg            sync.WaitGroup

	logger *slog.Logger
	opts   Options

	handler *Handler
	clock   clock.Clock
}

func New(
	l transport.ConnListener,
	logger *slog.Logger,
	clock clock.Clock,
	handler *Handler,
	opts Options,
) *Server {
	return &Server{
		l:       l,
		logger:  logger,
		opts:    opts,
		handler: handler,
		clock:   clock,
	}
}

// Start begins accepting in the background. It must be called once.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.closeListener = cancel
	s.done = make(chan struct{})

	s.logger.Info("accepting connections", "addr", s.l.Addr())

	go func() {
		defer close(s.done)

		connCtx, connCancel := context.WithCancel(context.Background())
		defer connCancel()

		for {
			conn, err := s.acceptConn(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, transport.ErrConnListenerClosed) {
					s.logger.Error(
						"unexpected error when accepting connection",
						"error", err.Error(),
					)
				}
				return
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				conn.start(connCtx)
			}()
		}
	}()
}

func (s *Server) acceptConn(ctx context.Context) (*conn, error) {
	con, err := s.l.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listening for connection")
	}

	conn := &conn{
		con:     con,
		r:       iolib.NewUntilReader(con),
		handler: s.handler,
		opts:    s.opts,
		logger:  s.logger.With("conn", con.RemoteAddr()),
		clock:   s.clock,
	}

	return conn, nil
}

// Close stops accepting, cancels connections waiting for a request
// and waits for the ones in flight. The listener is closed too.
func (s *Server) Close() error {
	if s.closeListener == nil {
		return s.l.Close()
	}

	s.closeListener()
	<-s.done
	s.wg.Wait()

	if err := s.l.Close(); err != nil && !errors.Is(err, transport.ErrConnListenerClosed) {
		return errors.Wrap(err, "closing listener")
	}
	return nil
}
