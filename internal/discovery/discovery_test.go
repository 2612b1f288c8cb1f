package discovery

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestServiceType(t *testing.T) {
	require.Equal(t, "_paanalyzer._tcp", ServiceType)
}

func TestAnnounce_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	a, err := Announce(ctx, "test-analyzer", 18080, testLogger())
	require.NoError(t, err)
	require.NotNil(t, a)

	// The responder goroutine exits once ctx is cancelled; give it a
	// moment before the test process tears down.
	cancel()
	time.Sleep(50 * time.Millisecond)
}
