package browser

import (
	"context"
	"time"
)

// WaitPolicy controls what a navigation waits for before returning.
type WaitPolicy struct {
	// Timeout bounds the navigation itself.
	Timeout time.Duration
	// ReadySelector, when set, must be present before the navigation is considered complete.
	ReadySelector string
	// Settle is an extra pause after load for script-rendered content.
	Settle time.Duration
}

// Box is the layout rectangle of a rendered node, in CSS pixels.
type Box struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// CenterX is the horizontal midpoint of the box.
func (b Box) CenterX() float64 { return b.Left + b.Width/2 }

// Page is one tab of the rendering backend.
type Page interface {
	Navigate(ctx context.Context, url string, wait WaitPolicy) error
	// WaitForContent blocks until selector matches at least one node.
	WaitForContent(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	// HTML returns the rendered document as markup.
	HTML(ctx context.Context) (string, error)
	// Boxes returns the layout boxes of all nodes matching selector, in document order.
	Boxes(ctx context.Context, selector string) ([]Box, error)
	URL(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Browser is one running instance of the rendering backend.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Launcher starts a new Browser. The Session Manager calls it with the same
// configuration on every relaunch.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Browser, error)

func (f LauncherFunc) Launch(ctx context.Context) (Browser, error) { return f(ctx) }
