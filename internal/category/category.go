// Package category builds the category and facet link list used to seed
// scrape targets.
package category

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultFacetURL = "https://seller.shopee.co.id/help/api/v3/global_category/list/"
	facetReferer    = "https://seller.shopee.co.id/edu/category-guide/"
	facetPageSize   = 48
	probePageSize   = 16
	shopURL         = "https://shopee.co.id/"
)

// Node is one entry of the category tree file.
type Node struct {
	CatID       int64  `json:"catid"`
	ParentCatID int64  `json:"parent_catid"`
	DisplayName string `json:"display_name"`
	Children    []Node `json:"children"`
}

// Facet is a leaf category from the seller help API together with the name
// of the second level category it belongs to.
type Facet struct {
	ID      int64
	Name    string
	CatName string
}

// Row is one line of the generated category CSV.
type Row struct {
	Type       string
	ParentName string
	Name       string
	Link       string
	Status     string
}

func LoadTree(path string) ([]Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category tree: %w", err)
	}

	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse category tree %s: %w", path, err)
	}
	return nodes, nil
}

// Link is the storefront URL of a child category.
func Link(child Node) string {
	name := strings.ReplaceAll(strings.TrimSpace(child.DisplayName), " ", "-") + "-cat"
	return fmt.Sprintf("%s%s.%d.%d", shopURL, name, child.ParentCatID, child.CatID)
}

// Build emits a category row for every child of every top level node,
// followed by one facet row per facet whose parent name matches the child.
func Build(tree []Node, facets []Facet) []Row {
	var rows []Row
	for _, top := range tree {
		for _, child := range top.Children {
			link := Link(child)
			rows = append(rows, Row{
				Type:       "category",
				ParentName: top.DisplayName,
				Name:       child.DisplayName,
				Link:       link,
			})

			childName := strings.TrimSpace(child.DisplayName)
			for _, f := range facets {
				if strings.TrimSpace(f.CatName) != childName {
					continue
				}
				rows = append(rows, Row{
					Type:       "facet",
					ParentName: child.DisplayName,
					Name:       f.Name,
					Link:       link + "?facet=" + strconv.FormatInt(f.ID, 10),
				})
			}
		}
	}
	return rows
}

// Client pages through the seller help category API.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	logger    *slog.Logger
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(httpClient *http.Client, logger *slog.Logger, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		baseURL:   DefaultFacetURL,
		http:      httpClient,
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		logger:    logger.With("component", "category_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type facetResponse struct {
	Data struct {
		Total      int `json:"total"`
		GlobalCats []struct {
			CategoryID   int64  `json:"category_id"`
			CategoryName string `json:"category_name"`
			Path         []struct {
				CategoryName string `json:"category_name"`
			} `json:"path"`
		} `json:"global_cats"`
	} `json:"data"`
}

// Facets reads the total from a small first page and then walks every page
// of facetPageSize entries.
func (c *Client) Facets(ctx context.Context) ([]Facet, error) {
	probe, err := c.fetch(ctx, 1, probePageSize)
	if err != nil {
		return nil, err
	}

	pages := probe.Data.Total/facetPageSize + 1
	c.logger.Info("fetching facets", "total", probe.Data.Total, "pages", pages)

	var facets []Facet
	for page := 1; page <= pages; page++ {
		resp, err := c.fetch(ctx, page, facetPageSize)
		if err != nil {
			return nil, err
		}
		for _, gc := range resp.Data.GlobalCats {
			if len(gc.Path) < 2 {
				c.logger.Debug("facet without second level path", "id", gc.CategoryID)
				continue
			}
			facets = append(facets, Facet{
				ID:      gc.CategoryID,
				Name:    gc.CategoryName,
				CatName: gc.Path[1].CategoryName,
			})
		}
	}
	return facets, nil
}

func (c *Client) fetch(ctx context.Context, page, size int) (*facetResponse, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse facet url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build facet request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9,id;q=0.8")
	req.Header.Set("Referer", facetReferer)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch facet page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facet page %d returned status %d", page, resp.StatusCode)
	}

	var out facetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode facet page %d: %w", page, err)
	}
	return &out, nil
}
