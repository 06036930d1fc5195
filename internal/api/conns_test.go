package api

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	mu     sync.Mutex
	closed []websocket.StatusCode
	// block, when set, holds Close until it is closed.
	block chan struct{}
}

func (c *fakeConn) Close(code websocket.StatusCode, _ string) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, code)
	return nil
}

func (c *fakeConn) codes() []websocket.StatusCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]websocket.StatusCode(nil), c.closed...)
}

func TestConnManagerRegister(t *testing.T) {
	m := NewConnManager()
	conn := &fakeConn{}

	m.Register("s1", conn)

	assert.Same(t, conn, m.GetActive("s1"))
	assert.Equal(t, 1, m.Len())
}

func TestConnManagerReplaceClosesOld(t *testing.T) {
	m := NewConnManager()
	old, next := &fakeConn{}, &fakeConn{}

	m.Register("s1", old)
	m.Register("s1", next)
	m.Wait()

	assert.Equal(t, []websocket.StatusCode{websocket.StatusPolicyViolation}, old.codes())
	assert.Empty(t, next.codes())
	assert.Same(t, next, m.GetActive("s1"))
}

func TestConnManagerUnregisterStale(t *testing.T) {
	m := NewConnManager()
	old, next := &fakeConn{}, &fakeConn{}

	m.Register("s1", old)
	m.Register("s1", next)
	m.Unregister("s1", old)

	assert.Same(t, next, m.GetActive("s1"))

	m.Unregister("s1", next)
	assert.Nil(t, m.GetActive("s1"))
}

func TestConnManagerCloseSession(t *testing.T) {
	m := NewConnManager()
	conn := &fakeConn{}
	m.Register("s1", conn)

	m.CloseSession("s1", "session ttl")
	m.CloseSession("s1", "session ttl")
	m.Wait()

	assert.Equal(t, []websocket.StatusCode{websocket.StatusNormalClosure}, conn.codes())
	assert.Zero(t, m.Len())
}

func TestConnManagerCloseDoesNotBlockCaller(t *testing.T) {
	m := NewConnManager()
	conn := &fakeConn{block: make(chan struct{})}
	m.Register("s1", conn)

	returned := make(chan struct{})
	go func() {
		m.CloseSession("s1", "session capacity")
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("CloseSession waited for the close handshake")
	}
	assert.Nil(t, m.GetActive("s1"))
	assert.Empty(t, conn.codes())

	close(conn.block)
	m.Wait()
	assert.Equal(t, []websocket.StatusCode{websocket.StatusNormalClosure}, conn.codes())
}

func TestConnManagerConcurrentAccess(t *testing.T) {
	m := NewConnManager()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 1000 {
			m.Register("s-"+strconv.Itoa(i), &fakeConn{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 1000 {
			m.GetActive("s-" + strconv.Itoa(i))
		}
	}()
	wg.Wait()
	assert.Equal(t, 1000, m.Len())
}
