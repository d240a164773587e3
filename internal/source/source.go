package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pbaille/nutriscan/internal/nutrient"
	"golang.org/x/net/html"
)

// MaxSize caps how much of a catalog source is read (5MB)
const MaxSize = 5 * 1024 * 1024

var client = &http.Client{Timeout: 30 * time.Second}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

// Open reads a catalog source from a local path or an http(s) URL
func Open(ctx context.Context, location string) ([]byte, error) {
	if !IsURL(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		defer f.Close()
		return readLimited(f)
	}

	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + strings.TrimSpace(location))
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "nutriscan/1.0 (catalog)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxSize {
		return nil, fmt.Errorf("source larger than %d bytes", MaxSize)
	}
	return body, nil
}

// LoadCatalog builds a catalog from a CSV file or an HTML page holding
// a nutrient table. An empty location yields the bundled catalog.
func LoadCatalog(ctx context.Context, location string) (*nutrient.Catalog, error) {
	if strings.TrimSpace(location) == "" {
		return nutrient.Default()
	}

	body, err := Open(ctx, location)
	if err != nil {
		return nil, err
	}

	if looksLikeHTML(body) {
		header, rows, err := ExtractTable(string(body))
		if err != nil {
			return nil, err
		}
		return nutrient.FromRows(header, rows)
	}

	return nutrient.LoadCSV(bytes.NewReader(body))
}

func looksLikeHTML(b []byte) bool {
	head := strings.ToLower(strings.TrimSpace(string(b[:min(len(b), 512)])))
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<table")
}

// ExtractTable parses HTML and returns the first table that has a
// header row, as CSV-shaped rows
func ExtractTable(htmlContent string) ([]string, [][]string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	var tables []*html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			tables = append(tables, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	for _, t := range tables {
		var rows [][]string
		var header []string
		for _, tr := range collect(t, "tr") {
			cells, isHeader := rowCells(tr)
			if len(cells) == 0 {
				continue
			}
			if header == nil && isHeader {
				header = cells
				continue
			}
			rows = append(rows, cells)
		}
		if header != nil {
			return header, rows, nil
		}
	}

	return nil, nil, fmt.Errorf("no table with a header row found")
}

// collect finds descendant elements by tag without entering nested tables
func collect(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.Data == tag {
				out = append(out, c)
				continue
			}
			if c.Data == "table" {
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func rowCells(tr *html.Node) ([]string, bool) {
	var cells []string
	header := true
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		if c.Data == "td" {
			header = false
		}
		cells = append(cells, textOf(c))
	}
	return cells, header && len(cells) > 0
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
