/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// hideAutomation runs before any page script so sites do not see navigator.webdriver.
const hideAutomation = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// RodConfig configures the browser backed driver.
type RodConfig struct {
	Bin         string // empty lets rod locate or download a browser
	Headless    bool
	ControlURL  string // attach to a running browser instead of launching one
	LoadTimeout time.Duration
	UserAgent   string
}

type rodHandle struct {
	id       string
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher // nil when attached through ControlURL

	mu       sync.Mutex
	released bool
}

func (h *rodHandle) ID() string { return h.id }

// RodDriver shows destinations in a full screen Chromium window driven over CDP.
type RodDriver struct {
	cfg    RodConfig
	logger zerolog.Logger
}

// NewRodDriver creates a RodDriver.
func NewRodDriver(cfg RodConfig, logger zerolog.Logger) *RodDriver {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &RodDriver{cfg: cfg, logger: logger.With().Str("driver", "rod").Logger()}
}

// Name implements Driver.
func (d *RodDriver) Name() string { return "rod" }

func (d *RodDriver) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(d.cfg.Headless).
		Set(flags.Flag("kiosk")).
		Set(flags.Flag("start-maximized")).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("disable-extensions")).
		Set(flags.Flag("disable-default-apps")).
		Set(flags.Flag("disable-infobars")).
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.NoSandbox).
		Delete(flags.Flag("enable-automation"))
	if d.cfg.Bin != "" {
		l = l.Bin(d.cfg.Bin)
	}
	return l
}

// Acquire implements Driver. It launches (or attaches to) a browser and opens the kiosk page.
func (d *RodDriver) Acquire(ctx context.Context) (Handle, error) {
	h := &rodHandle{id: uuid.NewString()}

	controlURL := d.cfg.ControlURL
	if controlURL == "" {
		h.launcher = d.newLauncher().Context(ctx)
		u, err := h.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: launch browser: %v", ErrAcquire, err)
		}
		controlURL = u
	}

	h.browser = rod.New().ControlURL(controlURL)
	if err := h.browser.Connect(); err != nil {
		d.cleanup(h)
		return nil, fmt.Errorf("%w: connect browser: %v", ErrAcquire, err)
	}

	page, err := h.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		d.cleanup(h)
		return nil, fmt.Errorf("%w: open page: %v", ErrAcquire, err)
	}
	h.page = page

	if _, err := page.EvalOnNewDocument(hideAutomation); err != nil {
		d.logger.Warn().Err(err).Msg("failed to install automation mask")
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: d.cfg.UserAgent}); err != nil {
		d.logger.Warn().Err(err).Msg("failed to override user agent")
	}

	d.logger.Info().
		Str("handle", h.id).
		Bool("attached", d.cfg.ControlURL != "").
		Bool("headless", d.cfg.Headless).
		Msg("browser acquired")
	return h, nil
}

// Show implements Driver. It navigates and waits for the load event, bounded by LoadTimeout.
func (d *RodDriver) Show(ctx context.Context, h Handle, locator string) error {
	rh, ok := h.(*rodHandle)
	if !ok {
		return ErrForeignHandle
	}
	rh.mu.Lock()
	released := rh.released
	rh.mu.Unlock()
	if released {
		return ErrReleased
	}

	page := rh.page.Context(ctx).Timeout(d.cfg.LoadTimeout)
	if err := page.Navigate(locator); err != nil {
		return fmt.Errorf("%w: navigate %s: %v", ErrShowFailed, locator, err)
	}
	if err := page.WaitLoad(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Slow pages are still on screen; treat a load timeout as shown.
			d.logger.Warn().Str("url", locator).Dur("timeout", d.cfg.LoadTimeout).Msg("page load timed out")
			return nil
		}
		return fmt.Errorf("%w: wait load %s: %v", ErrShowFailed, locator, err)
	}
	return nil
}

// Release implements Driver. Calling it twice is safe.
func (d *RodDriver) Release(h Handle) error {
	rh, ok := h.(*rodHandle)
	if !ok {
		return ErrForeignHandle
	}
	rh.mu.Lock()
	if rh.released {
		rh.mu.Unlock()
		return nil
	}
	rh.released = true
	rh.mu.Unlock()

	err := d.cleanup(rh)
	if err != nil {
		d.logger.Warn().Err(err).Str("handle", rh.id).Msg("browser release incomplete")
	} else {
		d.logger.Info().Str("handle", rh.id).Msg("browser released")
	}
	return err
}

func (d *RodDriver) cleanup(h *rodHandle) error {
	var errs []error
	if h.launcher == nil {
		// Attached browsers outlive the kiosk; only close our own page.
		if h.page != nil {
			if err := h.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		return errors.Join(errs...)
	}

	if h.browser != nil {
		if err := h.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	h.launcher.Kill()
	h.launcher.Cleanup()
	return errors.Join(errs...)
}
