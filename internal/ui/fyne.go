// Package ui provides the desktop window and notification implementations.
package ui

import (
	"sync"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/regia-app/launcher/internal/config"
	"github.com/regia-app/launcher/internal/domain"
)

// appID is the fyne application identifier, used for preferences and
// notification routing.
const appID = "com.regia.launcher"

// FyneProvider resolves statically declared windows to fyne windows.
type FyneProvider struct {
	app   fyne.App
	decls []config.WindowDecl

	mu   sync.Mutex
	main *FyneWindow
}

// NewFyneProvider creates the fyne application. Must be called on the main
// goroutine before any window work.
func NewFyneProvider(decls []config.WindowDecl) *FyneProvider {
	return &FyneProvider{
		app:   fyneapp.NewWithID(appID),
		decls: decls,
	}
}

// App exposes the underlying fyne app for the notifier.
func (p *FyneProvider) App() fyne.App { return p.app }

// MainWindow builds (once) and returns the window declared as "main".
func (p *FyneProvider) MainWindow() (domain.Window, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.main != nil {
		return p.main, nil
	}

	var decl *config.WindowDecl
	for i := range p.decls {
		if p.decls[i].Name == "main" {
			decl = &p.decls[i]
			break
		}
	}
	if decl == nil {
		return nil, domain.ErrWindowNotFound
	}

	w := p.app.NewWindow(decl.Title)
	w.Resize(fyne.NewSize(decl.Width, decl.Height))

	status := widget.NewLabel("Starting...")
	w.SetContent(container.NewVBox(
		widget.NewLabelWithStyle(domain.ProductTitle, fyne.TextAlignCenter,
			fyne.TextStyle{Bold: true}),
		status,
	))

	closed := make(chan struct{})
	w.SetOnClosed(func() {
		close(closed)
	})

	p.main = &FyneWindow{win: w, status: status, closed: closed}
	return p.main, nil
}

// FyneWindow adapts a fyne window to the domain contract.
type FyneWindow struct {
	win    fyne.Window
	status *widget.Label
	closed chan struct{}
}

// SetTitle sets the window title.
func (w *FyneWindow) SetTitle(title string) error {
	w.win.SetTitle(title)
	return nil
}

// SetStatus updates the status line shown in the window body.
func (w *FyneWindow) SetStatus(text string) {
	fyne.Do(func() {
		w.status.SetText(text)
	})
}

// Run shows the window and blocks until the application exits.
func (w *FyneWindow) Run() {
	w.win.ShowAndRun()
}

// Closed is closed once the user has closed the window.
func (w *FyneWindow) Closed() <-chan struct{} {
	return w.closed
}

// Close closes the window programmatically (signal-triggered shutdown).
func (w *FyneWindow) Close() {
	fyne.Do(func() {
		w.win.Close()
	})
}

// FyneNotifier delivers desktop notifications through the fyne app.
type FyneNotifier struct {
	app fyne.App
}

// NewFyneNotifier wraps the fyne app as a domain.Notifier.
func NewFyneNotifier(app fyne.App) *FyneNotifier {
	return &FyneNotifier{app: app}
}

// Notify sends a desktop notification.
func (n *FyneNotifier) Notify(title, body string) error {
	n.app.SendNotification(fyne.NewNotification(title, body))
	return nil
}

var (
	_ domain.WindowProvider = (*FyneProvider)(nil)
	_ domain.Window         = (*FyneWindow)(nil)
	_ domain.Notifier       = (*FyneNotifier)(nil)
)
