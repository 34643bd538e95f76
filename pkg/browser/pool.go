package browser

import (
	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

type PoolManagerConfig struct {
	PoolSize int
}

// PoolManager hands out connected browsers from a bounded pool. Each scan
// worker borrows one browser, opens an isolated incognito session on it and
// returns it when done.
type PoolManager struct {
	pool   rod.Pool[rod.Browser]
	config PoolManagerConfig
}

func NewPoolManager(config PoolManagerConfig) *PoolManager {
	manager := PoolManager{
		config: config,
	}
	manager.Start()

	return &manager
}

func (b *PoolManager) Start() {
	poolSize := 4
	if b.config.PoolSize > 0 {
		poolSize = b.config.PoolSize
	}

	b.pool = rod.NewBrowserPool(poolSize)
}

func (b *PoolManager) NewBrowser() (browser *rod.Browser, err error) {
	return b.pool.Get(b.createBrowser)
}

func (b *PoolManager) ReleaseBrowser(browser *rod.Browser) {
	b.pool.Put(browser)
}

func (b *PoolManager) createBrowser() (browser *rod.Browser, err error) {
	err = rod.Try(func() {
		l := GetBrowserLauncher()
		controlURL := l.MustLaunch()
		browser = rod.New().ControlURL(controlURL).MustConnect()
	})
	return browser, err
}

func (b *PoolManager) Close() {
	b.pool.Cleanup(func(browser *rod.Browser) {
		if err := browser.Close(); err != nil {
			log.Debug().Err(err).Msg("Error closing pooled browser")
		}
	})
}
