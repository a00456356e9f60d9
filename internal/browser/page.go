package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

func (b *Browser) URL() string {
	return b.page.URL()
}

func (b *Browser) Content() (string, error) {
	return b.page.Content()
}

func (b *Browser) Goto(url, referer string) error {
	opts := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
	}
	if referer != "" {
		opts.Referer = playwright.String(referer)
	}

	if _, err := b.page.Goto(url, opts); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (b *Browser) Reload() error {
	_, err := b.page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	return nil
}

func (b *Browser) GoBack() error {
	_, err := b.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("failed to go back: %w", err)
	}
	return nil
}

func (b *Browser) locator(selector, hasText string) playwright.Locator {
	if hasText == "" {
		return b.page.Locator(selector).First()
	}
	return b.page.Locator(selector, playwright.PageLocatorOptions{HasText: hasText}).First()
}

// Reveal scrolls the first element matching selector (and containing
// hasText, when set) into view.
func (b *Browser) Reveal(selector, hasText string, timeout time.Duration) error {
	return b.locator(selector, hasText).ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (b *Browser) Click(selector, hasText string, timeout time.Duration) error {
	return b.locator(selector, hasText).Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (b *Browser) Fill(selector, value string, timeout time.Duration) error {
	return b.locator(selector, "").Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (b *Browser) Type(text string) error {
	return b.page.Keyboard().Type(text)
}

func (b *Browser) Press(key string) error {
	return b.page.Keyboard().Press(key)
}

func (b *Browser) ScrollTo(y int) error {
	_, err := b.page.Evaluate("y => window.scrollTo(0, y)", y)
	return err
}
