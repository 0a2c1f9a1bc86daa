package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv) }
func (l *testLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv) }
func (l *testLogger) Warn(msg string, kv ...any)  { l.log("WARN", msg, kv) }
func (l *testLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv) }

func (l *testLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Command
	d.Register("control_state", func(c Command) (any, error) {
		got = c
		return "applied", nil
	})

	result, err := d.Dispatch(Command{Name: "control_state", Payload: 0.5, Source: "peer-1"})
	require.NoError(t, err)
	assert.Equal(t, "applied", result)
	assert.Equal(t, 0.5, got.Payload)
	assert.Equal(t, "peer-1", got.Source)
	assert.False(t, got.Timestamp.IsZero(), "timestamp is stamped on dispatch")
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Command{Name: "warp"})
	assert.EqualError(t, err, "unknown command: warp")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("shift", func(c Command) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Command{Name: "shift"})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	wg.Wait()
	assert.Equal(t, int32(3), processed.Load())
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, logger := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register("full", func(c Command) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(2))
	defer close(block)

	_, err := d.Dispatch(Command{Name: "full"}) // being processed
	require.NoError(t, err)
	<-started
	_, err = d.Dispatch(Command{Name: "full"}) // queued
	require.NoError(t, err)
	_, err = d.Dispatch(Command{Name: "full"}) // queued
	require.NoError(t, err)

	_, err = d.Dispatch(Command{Name: "full"})
	assert.EqualError(t, err, "queue full: full")
	assert.Equal(t, 1, logger.count("WARN"))
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register("blocking", func(c Command) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	_, _ = d.Dispatch(Command{Name: "blocking"})
	<-started
	_, _ = d.Dispatch(Command{Name: "blocking"})

	done := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(Command{Name: "blocking"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("logged", func(c Command) (any, error) {
		return "ok", nil
	}, Logged())

	_, err := d.Dispatch(Command{Name: "logged", Source: "cli"})
	require.NoError(t, err)
	assert.Equal(t, 2, logger.count("DEBUG"))
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("broken", func(c Command) (any, error) {
		return nil, errors.New("test error")
	}, Logged())

	_, err := d.Dispatch(Command{Name: "broken"})
	require.Error(t, err)
	assert.Equal(t, 1, logger.count("ERROR"))
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("exists", func(c Command) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler("exists"))
	assert.False(t, d.HasHandler("missing"))
}

func TestDispatcher_CloseDrainsBuffers(t *testing.T) {
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)

	var processed atomic.Int32
	d.Register("sample", func(c Command) (any, error) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil, nil
	}, Buffered(16), Logged())

	for i := 0; i < 10; i++ {
		_, err := d.Dispatch(Command{Name: "sample"})
		require.NoError(t, err)
	}
	d.Close()
	d.Close()

	assert.Equal(t, int32(10), processed.Load())
	_, err = d.Dispatch(Command{Name: "sample"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 20, logger.count("DEBUG"))
}
