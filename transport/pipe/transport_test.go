package pipe

import (
	"context"
	"sync"
	"testing"
	"time"

	"webstack/transport"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type TransportTestSuite struct {
	suite.Suite

	transport *Transport
}

func TestTransportTestSuite(t *testing.T) {
	suite.Run(t, new(TransportTestSuite))
}

func (s *TransportTestSuite) SetupTest() {
	s.transport = NewTransport(clock.New())
}

func (s *TransportTestSuite) TearDownTest() {
	goleak.VerifyNone(s.T())
}

func (s *TransportTestSuite) TestListen() {
	lis, err := s.transport.Listen("server:80")
	s.Require().NoError(err)
	s.Require().NotNil(lis)
	defer lis.Close()

	s.Equal("server:80", lis.Addr().String())

	again, err := s.transport.Listen("server:80")
	s.ErrorIs(err, transport.ErrAddrAlreadyInUse)
	s.Nil(again)
}

func (s *TransportTestSuite) TestDial() {
	lis, err := s.transport.Listen("server:80")
	s.Require().NoError(err)
	defer lis.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := lis.Accept(context.Background())
		s.Require().NoError(err)
		s.Equal("dialer", conn.RemoteAddr().String())
		s.NoError(conn.Close())
	}()

	conn, err := s.transport.Dial(context.Background(), Addr{Name: "server:80"})
	s.Require().NoError(err)
	s.Equal("server:80", conn.RemoteAddr().String())
	s.NoError(conn.Close())
}

func (s *TransportTestSuite) TestDialUnknown() {
	conn, err := s.transport.Dial(context.Background(), Addr{Name: "nowhere"})
	s.ErrorIs(err, transport.ErrConnRefused)
	s.Nil(conn)
}

func (s *TransportTestSuite) TestDialCancels() {
	lis, err := s.transport.Listen("server:80")
	s.Require().NoError(err)
	defer lis.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	conn, err := s.transport.Dial(ctx, lis.Addr())
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Nil(conn)
}

func (s *TransportTestSuite) TestAcceptCancels() {
	lis, err := s.transport.Listen("server:80")
	s.Require().NoError(err)
	defer lis.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	conn, err := lis.Accept(ctx)
	s.Nil(conn)
	s.ErrorIs(err, context.Canceled)
}

func (s *TransportTestSuite) TestClose() {
	lis, err := s.transport.Listen("server:80")
	s.Require().NoError(err)

	s.Require().NoError(lis.Close())
	s.ErrorIs(lis.Close(), transport.ErrConnListenerClosed)

	conn, err := lis.Accept(context.Background())
	s.ErrorIs(err, transport.ErrConnListenerClosed)
	s.Nil(conn)

	_, err = s.transport.Dial(context.Background(), lis.Addr())
	s.ErrorIs(err, transport.ErrConnRefused)

	// The name is free again.
	lis, err = s.transport.Listen("server:80")
	s.Require().NoError(err)
	s.NoError(lis.Close())
}
