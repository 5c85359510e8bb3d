package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Print settings for the Chrome backend. The page format in the document's
// @page rule wins over the Letter default.
const (
	viewportWidth  = 1024
	viewportHeight = 1440
	viewportScale  = 2
	letterWidth    = 8.5
	letterHeight   = 11

	// Chrome refuses to navigate to URLs longer than 2MB.
	maxDataURL = 2 << 20
)

// ChromeOptions configures a Chrome backend.
type ChromeOptions struct {
	// ExecPath overrides the browser executable. Empty uses chromedp's lookup.
	ExecPath string
	Timeout  time.Duration
}

// Chrome prints documents with a headless browser. The browser process is
// started on the first render and shared by every later one; each render
// gets its own tab.
type Chrome struct {
	opts ChromeOptions

	once        sync.Once
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelBrow  context.CancelFunc
	startErr    error
}

// NewChrome returns a Chrome backend. No browser is launched until Render.
func NewChrome(opts ChromeOptions) *Chrome {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Chrome{opts: opts}
}

func (c *Chrome) start() error {
	c.once.Do(func() {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.DisableGPU,
			chromedp.NoSandbox,
		)
		if c.opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
		}
		c.allocCtx, c.cancelAlloc = chromedp.NewExecAllocator(context.Background(), allocOpts...)
		c.browserCtx, c.cancelBrow = chromedp.NewContext(c.allocCtx)
		// Running with no actions launches the browser so that later
		// contexts open tabs in it instead of starting their own.
		if err := chromedp.Run(c.browserCtx); err != nil {
			c.startErr = fmt.Errorf("start chrome: %w", err)
		}
	})
	return c.startErr
}

// Render loads doc into a fresh tab, waits for the load event and for the
// network to go idle, and prints it.
func (c *Chrome) Render(ctx context.Context, doc string) ([]byte, error) {
	if err := c.start(); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, c.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var pdf []byte
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(viewportWidth, viewportHeight, chromedp.EmulateScale(viewportScale)),
		load(doc),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(letterWidth).
				WithPaperHeight(letterHeight).
				WithMarginTop(marginInches).
				WithMarginBottom(marginInches).
				WithMarginLeft(marginInches).
				WithMarginRight(marginInches).
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			pdf = buf
			return err
		}),
	)
	if err != nil {
		if errors.Is(tabCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("chrome print after %s: %w", c.opts.Timeout, context.DeadlineExceeded)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("chrome print: %w", err)
	}
	return pdf, nil
}

// Close shuts the browser down if it was started.
func (c *Chrome) Close() error {
	if c.cancelBrow != nil {
		c.cancelBrow()
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
	}
	return nil
}

// load navigates the tab to doc and waits until the page has fired its load
// event and gone network idle, so remote images and fonts are in place
// before printing. Documents too large for a data URL are written into a
// blank page instead; those only wait for the body.
func load(doc string) chromedp.Action {
	u, ok := dataURL(doc)
	if !ok {
		return chromedp.Tasks{
			chromedp.Navigate("about:blank"),
			chromedp.ActionFunc(func(ctx context.Context) error {
				tree, err := page.GetFrameTree().Do(ctx)
				if err != nil {
					return err
				}
				return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
			}),
			chromedp.WaitReady("body", chromedp.ByQuery),
		}
	}

	return chromedp.ActionFunc(func(ctx context.Context) error {
		lc := newLifecycle()
		listenCtx, stop := context.WithCancel(ctx)
		defer stop()
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok {
				lc.record(e.LoaderID, e.Name)
			}
		})

		_, loaderID, errText, err := page.Navigate(u).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("page load error %s", errText)
		}
		return lc.wait(ctx, loaderID, "load", "networkIdle")
	})
}

func dataURL(doc string) (string, bool) {
	u := "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(doc))
	return u, len(u) <= maxDataURL
}

// lifecycle collects page lifecycle events per loader. Events can arrive
// before Navigate returns the loader ID, so they are kept until asked for.
type lifecycle struct {
	mu      sync.Mutex
	seen    map[cdp.LoaderID]map[string]bool
	changed chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		seen:    make(map[cdp.LoaderID]map[string]bool),
		changed: make(chan struct{}, 1),
	}
}

func (l *lifecycle) record(loader cdp.LoaderID, name string) {
	l.mu.Lock()
	if l.seen[loader] == nil {
		l.seen[loader] = make(map[string]bool)
	}
	l.seen[loader][name] = true
	l.mu.Unlock()

	select {
	case l.changed <- struct{}{}:
	default:
	}
}

func (l *lifecycle) has(loader cdp.LoaderID, names []string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range names {
		if !l.seen[loader][n] {
			return false
		}
	}
	return true
}

// wait blocks until every named event has been seen for loader.
func (l *lifecycle) wait(ctx context.Context, loader cdp.LoaderID, names ...string) error {
	for !l.has(loader, names) {
		select {
		case <-l.changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
