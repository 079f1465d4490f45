package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/regia-app/launcher/internal/domain"
)

// TestHeadlessProvider_MainWindow verifies resolution against the declared flag.
func TestHeadlessProvider_MainWindow(t *testing.T) {
	p := NewHeadlessProvider(true)

	w, err := p.MainWindow()
	require.NoError(t, err)
	require.NotNil(t, w)

	// Resolution is stable: the same window comes back.
	again, err := p.MainWindow()
	require.NoError(t, err)
	assert.Same(t, w, again)
}

// TestHeadlessProvider_Undeclared verifies the sentinel error.
func TestHeadlessProvider_Undeclared(t *testing.T) {
	p := NewHeadlessProvider(false)

	_, err := p.MainWindow()
	assert.True(t, errors.Is(err, domain.ErrWindowNotFound))
}

// TestHeadlessWindow_Lifecycle verifies Run blocks until Close and that
// closing twice is safe.
func TestHeadlessWindow_Lifecycle(t *testing.T) {
	w := NewHeadlessWindow()
	require.NoError(t, w.SetTitle("Regia"))
	assert.Equal(t, "Regia", w.Title())

	ran := make(chan struct{})
	go func() {
		w.Run()
		close(ran)
	}()

	select {
	case <-ran:
		t.Fatal("Run returned before Close")
	case <-time.After(20 * time.Millisecond):
	}

	w.Close()
	w.Close() // idempotent

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Run never returned after Close")
	}

	select {
	case <-w.Closed():
	default:
		t.Fatal("Closed channel not closed")
	}
}

// TestLogNotifier_WritesToLog verifies notifications land in the log with
// their title and body.
func TestLogNotifier_WritesToLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify("Regia backend unavailable", "spawn failed"))

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Regia backend unavailable", fields["title"])
	assert.Equal(t, "spawn failed", fields["body"])
}
