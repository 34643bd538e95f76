package cmd

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/minghsuy/pixel-detector-v2/pkg/browser"
	"github.com/minghsuy/pixel-detector-v2/pkg/scan"
)

// newSessionFactory wires the shared browser pool into the scan executor:
// each attempt borrows a browser, opens an isolated session on it and
// returns the browser to the pool when the session closes.
func newSessionFactory(manager *browser.PoolManager) scan.SessionFactory {
	return func(ctx context.Context) (scan.Session, error) {
		b, err := manager.NewBrowser()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", scan.ErrBrowserUnavailable, err)
		}
		sess, err := browser.NewSession(ctx, b, browser.UserAgent())
		if err != nil {
			manager.ReleaseBrowser(b)
			return nil, fmt.Errorf("%w: %v", scan.ErrBrowserUnavailable, err)
		}
		return &pooledSession{Session: sess, manager: manager, browser: b}, nil
	}
}

type pooledSession struct {
	*browser.Session
	manager *browser.PoolManager
	browser *rod.Browser
}

func (p *pooledSession) Close() {
	p.Session.Close()
	p.manager.ReleaseBrowser(p.browser)
}
