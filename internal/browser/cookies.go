package browser

import (
	"fmt"
	"net/http"
	"time"

	"github.com/playwright-community/playwright-go"
)

// AddCookies loads stored cookies into the context. Expiry is dropped and
// SameSite forced to Lax, which is what the marketplace accepts on restore.
func (b *Browser) AddCookies(cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := b.context.AddCookies(toPlaywright(cookies)); err != nil {
		return fmt.Errorf("failed to add cookies: %w", err)
	}
	return nil
}

func (b *Browser) Cookies() ([]*http.Cookie, error) {
	cookies, err := b.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return fromPlaywright(cookies, time.Now()), nil
}

func toPlaywright(cookies []*http.Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		oc := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			HttpOnly: playwright.Bool(c.HttpOnly),
			Secure:   playwright.Bool(c.Secure),
			SameSite: playwright.SameSiteAttributeLax,
		}
		if c.Domain != "" {
			oc.Domain = playwright.String(c.Domain)
			path := c.Path
			if path == "" {
				path = "/"
			}
			oc.Path = playwright.String(path)
		} else {
			oc.URL = playwright.String("https://shopee.co.id/")
		}
		out = append(out, oc)
	}
	return out
}

// fromPlaywright converts context cookies for storage. Session cookies get
// now as their expiry.
func fromPlaywright(cookies []playwright.Cookie, now time.Time) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		expires := now
		if c.Expires > 0 {
			expires = time.Unix(int64(c.Expires), 0)
		}

		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: sameSite(c.SameSite),
		})
	}
	return out
}

func sameSite(s *playwright.SameSiteAttribute) http.SameSite {
	if s == nil {
		return http.SameSiteDefaultMode
	}
	switch *s {
	case *playwright.SameSiteAttributeStrict:
		return http.SameSiteStrictMode
	case *playwright.SameSiteAttributeLax:
		return http.SameSiteLaxMode
	case *playwright.SameSiteAttributeNone:
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
