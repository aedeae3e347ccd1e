package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Default values for page engines.
const (
	DefaultTimeoutMs      = 30000.0
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// Runner owns the Playwright driver process and hands out page engines.
type Runner struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool
}

// NewRunner creates an uninitialized runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Initialize installs and starts the Playwright driver. Must be called before
// creating page engines. Driver output is discarded so it never interleaves
// with the caller's own streams.
func (r *Runner) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	r.playwright = pw
	r.initialized = true
	return nil
}

// LaunchOptions configures a new page engine.
type LaunchOptions struct {
	// Headless controls whether the browser runs without a visible window.
	Headless bool

	// ViewportWidth and ViewportHeight set the initial viewport size.
	ViewportWidth  int
	ViewportHeight int

	// TimeoutMs sets the default timeout for page operations.
	TimeoutMs float64
}

// NewPageEngine launches a browser, creates an isolated context and page, and
// wraps them as an Engine.
func (r *Runner) NewPageEngine(opts LaunchOptions) (*PageEngine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, fmt.Errorf("runner not initialized")
	}

	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.TimeoutMs == 0 {
		opts.TimeoutMs = DefaultTimeoutMs
	}

	browser, err := r.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(opts.TimeoutMs)

	return &PageEngine{
		browser:    browser,
		browserCtx: browserCtx,
		page:       page,
	}, nil
}

// Shutdown stops the Playwright driver. Page engines created by this runner
// must be disposed first.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized || r.playwright == nil {
		return nil
	}
	if err := r.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	r.initialized = false
	return nil
}

// PageEngine adapts a Playwright page to the Engine boundary.
type PageEngine struct {
	mu         sync.Mutex
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page
	disposed   bool
}

var _ Engine = (*PageEngine)(nil)
var _ Navigator = (*PageEngine)(nil)

// ErrEngineDisposed is returned on any use of a disposed page engine.
var ErrEngineDisposed = errors.New("page engine disposed")

func (e *PageEngine) checkLive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrEngineDisposed
	}
	return nil
}

// Evaluate runs a script on the page.
func (e *PageEngine) Evaluate(ctx context.Context, script string) (interface{}, error) {
	if err := e.checkLive(ctx); err != nil {
		return nil, err
	}
	result, err := e.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", err)
	}
	return result, nil
}

// FindAll returns handles for all elements matching the selector.
func (e *PageEngine) FindAll(ctx context.Context, selector string) ([]Handle, error) {
	if err := e.checkLive(ctx); err != nil {
		return nil, err
	}
	elements, err := e.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	handles := make([]Handle, 0, len(elements))
	for _, el := range elements {
		handles = append(handles, &elementHandle{element: el})
	}
	return handles, nil
}

// Navigate loads a URL and waits for the load event.
func (e *PageEngine) Navigate(ctx context.Context, url string) error {
	if err := e.checkLive(ctx); err != nil {
		return err
	}
	if _, err := e.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Dispose closes the page, context, and browser. Every close runs regardless
// of sibling failures; errors are aggregated. Idempotent.
func (e *PageEngine) Dispose(ctx context.Context) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil
	}
	e.disposed = true
	e.mu.Unlock()

	var errs []error
	if err := e.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close page: %w", err))
	}
	if err := e.browserCtx.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close context: %w", err))
	}
	if err := e.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	return errors.Join(errs...)
}

// elementHandle adapts a Playwright element handle to the Handle boundary.
type elementHandle struct {
	mu       sync.Mutex
	element  playwright.ElementHandle
	disposed bool
}

var _ Handle = (*elementHandle)(nil)

func (h *elementHandle) Evaluate(ctx context.Context, script string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return nil, errors.New("element handle disposed")
	}
	h.mu.Unlock()

	result, err := h.element.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("element evaluate failed: %w", err)
	}
	return result, nil
}

func (h *elementHandle) Dispose(ctx context.Context) error {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return nil
	}
	h.disposed = true
	h.mu.Unlock()

	if err := h.element.Dispose(); err != nil {
		return fmt.Errorf("failed to dispose element handle: %w", err)
	}
	return nil
}
