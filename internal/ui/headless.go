package ui

import (
	"sync"

	"go.uber.org/zap"

	"github.com/regia-app/launcher/internal/domain"
)

// HeadlessProvider serves environments without a display (CI, tests, the
// status command). Windows exist as lifecycle objects only.
type HeadlessProvider struct {
	declared bool

	mu   sync.Mutex
	main *HeadlessWindow
}

// NewHeadlessProvider creates a provider; declared mirrors whether the config
// declares a "main" window.
func NewHeadlessProvider(declared bool) *HeadlessProvider {
	return &HeadlessProvider{declared: declared}
}

// MainWindow returns the main window or ErrWindowNotFound.
func (p *HeadlessProvider) MainWindow() (domain.Window, error) {
	if !p.declared {
		return nil, domain.ErrWindowNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.main == nil {
		p.main = NewHeadlessWindow()
	}
	return p.main, nil
}

// HeadlessWindow is a window with no rendering. Run blocks until Close.
type HeadlessWindow struct {
	mu     sync.Mutex
	title  string
	closed chan struct{}
	once   sync.Once
}

// NewHeadlessWindow creates an open headless window.
func NewHeadlessWindow() *HeadlessWindow {
	return &HeadlessWindow{closed: make(chan struct{})}
}

func (w *HeadlessWindow) SetTitle(title string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.title = title
	return nil
}

// Title returns the current title.
func (w *HeadlessWindow) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

func (w *HeadlessWindow) Run() {
	<-w.closed
}

func (w *HeadlessWindow) Closed() <-chan struct{} {
	return w.closed
}

func (w *HeadlessWindow) Close() {
	w.once.Do(func() { close(w.closed) })
}

// LogNotifier writes notifications to the log; headless runs have no desktop
// notification surface.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(title, body string) error {
	n.logger.Info("notification",
		zap.String("title", title),
		zap.String("body", body))
	return nil
}

var (
	_ domain.WindowProvider = (*HeadlessProvider)(nil)
	_ domain.Window         = (*HeadlessWindow)(nil)
	_ domain.Notifier       = (*LogNotifier)(nil)
)
