// Package test holds a suite every [transport.Conn] implementation should pass.
package test

import (
	"bytes"
	"sync"
	"time"

	"webstack/transport"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// ConnTestSuite expects C1 and C2 to be the two ends of one synchronous
// connection. Embedding suites assign them in SetupTest after calling
// the embedded SetupTest.
type ConnTestSuite struct {
	suite.Suite
	C1, C2 transport.Conn
	Clock  clock.Clock

	watchdog *time.Timer
	finished chan struct{}
}

const testTimeout = time.Second

func (s *ConnTestSuite) SetupTest() {
	s.Clock = clock.New()
	s.finished = make(chan struct{})

	finished := s.finished
	s.watchdog = time.AfterFunc(testTimeout, func() {
		select {
		case <-finished:
		default:
			s.FailNow("timeout exceeded")
		}
	})
}

func (s *ConnTestSuite) TearDownTest() {
	defer goleak.VerifyNone(s.T())

	s.NoError(s.C1.Close())
	s.NoError(s.C2.Close())

	close(s.finished)
	s.watchdog.Stop()
}

// concurrently runs every fn in its own goroutine and waits for all of them.
func (s *ConnTestSuite) concurrently(fns ...func()) {
	var wg sync.WaitGroup
	for _, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	wg.Wait()
}

// closeSoon closes conn after a blocked operation has had time to start.
func (s *ConnTestSuite) closeSoon(conn transport.Conn) {
	time.Sleep(50 * time.Millisecond)
	s.Require().NoError(conn.Close())
}

func (s *ConnTestSuite) TestPartialRead() {
	line := []byte("GET / HTTP/1.1\r\n")
	const bufSize = 10

	s.concurrently(
		func() {
			n, err := s.C1.Write(line)
			s.Require().NoError(err)
			s.Equal(len(line), n)
		},
		func() {
			buf := make([]byte, bufSize)

			n, err := s.C2.Read(buf)
			s.Require().NoError(err)
			s.Equal(line[:bufSize], buf[:n])

			n, err = s.C2.Read(buf)
			s.Require().NoError(err)
			s.Equal(line[bufSize:], buf[:n])
		},
	)
}

func (s *ConnTestSuite) TestConcurrentWrites() {
	chunk := []byte("ABCD")
	const writers = 10

	var received []byte
	reader := func() {
		buf := make([]byte, 3)
		for {
			n, err := s.C2.Read(buf)
			if err != nil {
				s.Require().ErrorIs(err, transport.ErrConnClosed)
				return
			}
			received = append(received, buf[:n]...)
		}
	}

	write := func() {
		n, err := s.C1.Write(chunk)
		s.Require().NoError(err)
		s.Equal(len(chunk), n)
	}
	writeAll := func() {
		fns := make([]func(), writers)
		for i := range fns {
			fns[i] = write
		}
		s.concurrently(fns...)
		s.Require().NoError(s.C1.Close())
	}

	s.concurrently(reader, writeAll)
	s.Equal(bytes.Repeat(chunk, writers), received)
}

func (s *ConnTestSuite) TestClose() {
	requireClosed := func(conn transport.Conn) {
		buf := make([]byte, 8)

		n, err := conn.Read(buf)
		s.Require().ErrorIs(err, transport.ErrConnClosed)
		s.Zero(n)

		n, err = conn.Write(buf)
		s.Require().ErrorIs(err, transport.ErrConnClosed)
		s.Zero(n)
	}

	s.Require().NoError(s.C1.Close())

	requireClosed(s.C1)
	requireClosed(s.C2)
}

func (s *ConnTestSuite) TestCloseUnblocksRead() {
	s.concurrently(
		func() {
			_, err := s.C1.Read(nil)
			s.ErrorIs(err, transport.ErrConnClosed)
		},
		func() { s.closeSoon(s.C1) },
	)
}

func (s *ConnTestSuite) TestCloseUnblocksWrite() {
	s.concurrently(
		func() {
			_, err := s.C1.Write([]byte("hey"))
			s.ErrorIs(err, transport.ErrConnClosed)
		},
		func() { s.closeSoon(s.C2) },
	)
}

func (s *ConnTestSuite) TestReadDeadLine() {
	s.C1.SetReadDeadLine(s.Clock.Now().Add(-time.Second))

	n, err := s.C1.Read(make([]byte, 1))
	s.ErrorIs(err, transport.ErrDeadLineExceeded)
	s.Zero(n)
}

func (s *ConnTestSuite) TestWriteDeadLine() {
	s.C1.SetWriteDeadLine(s.Clock.Now().Add(-time.Second))

	n, err := s.C1.Write(make([]byte, 1))
	s.ErrorIs(err, transport.ErrDeadLineExceeded)
	s.Zero(n)
}

func (s *ConnTestSuite) TestDeadLineReset() {
	b := make([]byte, 1)

	s.C1.SetReadDeadLine(s.Clock.Now().Add(-time.Second))
	_, err := s.C1.Read(b)
	s.Require().ErrorIs(err, transport.ErrDeadLineExceeded)

	s.C1.SetReadDeadLine(time.Time{})

	s.concurrently(
		func() {
			_, err := s.C2.Write([]byte("x"))
			s.NoError(err)
		},
		func() {
			n, err := s.C1.Read(b)
			s.Require().NoError(err)
			s.Equal("x", string(b[:n]))
		},
	)
}

func (s *ConnTestSuite) TestAddr() {
	s.Equal(s.C1.LocalAddr(), s.C2.RemoteAddr())
	s.Equal(s.C2.LocalAddr(), s.C1.RemoteAddr())
}
