package pipe

import (
	"testing"
	"time"

	"webstack/transport"
	"webstack/transport/test"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type PipeTestSuite struct {
	test.ConnTestSuite
}

func TestPipeTestSuite(t *testing.T) {
	suite.Run(t, new(PipeTestSuite))
}

func (s *PipeTestSuite) SetupTest() {
	s.ConnTestSuite.SetupTest()
	s.C1, s.C2 = Pipe("A", "B", s.Clock)
}

func TestDeadLineFollowsClock(t *testing.T) {
	clk := clock.NewMock()
	c1, c2 := Pipe("server:8000", "client:4000", clk)
	defer c1.Close()
	defer c2.Close()

	c1.SetReadDeadLine(clk.Now().Add(5 * time.Second))

	errc := make(chan error, 1)
	go func() {
		_, err := c1.Read(make([]byte, 1))
		errc <- err
	}()

	clk.Add(4 * time.Second)
	select {
	case err := <-errc:
		t.Fatalf("read returned before the deadline: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	clk.Add(time.Second)
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, transport.ErrDeadLineExceeded)
	case <-time.After(time.Second):
		t.Fatal("read was not interrupted by the deadline")
	}
}

func TestDeadLineReplacedBeforeFiring(t *testing.T) {
	clk := clock.NewMock()
	c1, c2 := Pipe("A", "B", clk)
	defer c1.Close()
	defer c2.Close()

	c1.SetWriteDeadLine(clk.Now().Add(time.Second))
	c1.SetWriteDeadLine(time.Time{})
	clk.Add(2 * time.Second)

	go func() {
		b := make([]byte, 4)
		c2.Read(b)
	}()

	n, err := c1.Write([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPipeAddrSplits(t *testing.T) {
	c1, c2 := Pipe("server:8000", "client:4000", clock.New())
	defer c1.Close()
	defer c2.Close()

	host, port := transport.HostPort(c1.LocalAddr())
	assert.Equal(t, "server", host)
	assert.Equal(t, "8000", port)
	assert.Equal(t, "pipe", c2.RemoteAddr().Network())
}
