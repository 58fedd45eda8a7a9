package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const pdfTimeout = 30 * time.Second

// browsers are tried in order when looking for a headless Chrome.
var browsers = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// paper is A4 with half-inch margins, in inches.
var paper = struct {
	width, height, margin float64
}{8.27, 11.69, 0.5}

// htmlDataURL wraps a page in a data: URL. Spaces become %20, never '+'.
func htmlDataURL(markup string) string {
	var b strings.Builder
	b.WriteString("data:text/html;charset=utf-8,")
	for i := 0; i < len(markup); i++ {
		c := markup[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func exportPDF(parent context.Context, html string, title string) (*Result, error) {
	browser := findBrowser()
	if browser == "" {
		return nil, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
	}

	ctx, cancel := context.WithTimeout(parent, pdfTimeout)
	defer cancel()

	// Containers have no usable sandbox or /dev/shm.
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(browser),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var data []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(htmlDataURL(html)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			data, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paper.width).
				WithPaperHeight(paper.height).
				WithMarginTop(paper.margin).
				WithMarginBottom(paper.margin).
				WithMarginLeft(paper.margin).
				WithMarginRight(paper.margin).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}

	return &Result{
		Data:     data,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

func findBrowser() string {
	for _, name := range browsers {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

const maxFilenameRunes = 50

// sanitizeFilename keeps letters (any script), digits, '-' and '_', turns
// spaces into '-' and caps the result at 50 runes.
func sanitizeFilename(title string) string {
	var b strings.Builder
	n := 0
	for _, r := range title {
		if n == maxFilenameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		default:
			continue
		}
		n++
	}
	if b.Len() == 0 {
		return defaultName
	}
	return b.String()
}
