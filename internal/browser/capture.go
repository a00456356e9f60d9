package browser

import (
	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

// Captures delivers intercepted listing-search and detail-fetch bodies.
func (b *Browser) Captures() <-chan models.CapturedPayload {
	return b.captures
}

// onResponse runs on the playwright dispatcher. Reading the body is a
// round trip to the driver, so it happens on its own goroutine.
func (b *Browser) onResponse(resp playwright.Response) {
	url := resp.URL()
	kind, ok := models.ClassifyEndpoint(url)
	if !ok {
		return
	}

	go func() {
		body, err := resp.Body()
		if err != nil {
			b.logger.Debug("failed to read intercepted body", "url", url, "error", err)
			return
		}
		b.deliver(models.CapturedPayload{Kind: kind, URL: url, Body: body})
	}()
}

func (b *Browser) deliver(p models.CapturedPayload) {
	select {
	case b.captures <- p:
	default:
		b.logger.Warn("capture buffer full, dropping payload", "kind", p.Kind, "url", p.URL)
	}
}
