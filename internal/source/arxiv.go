package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const arxivAPIBase = "http://export.arxiv.org/api/query"

var arxivIDPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d+\.\d+)(?:v\d+)?`)

// Paper holds the metadata the arXiv export API returns for one entry.
type Paper struct {
	ID       string
	Title    string
	Abstract string
	Authors  []string
	PDFURL   string
}

type ArxivClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewArxivClient() *ArxivClient {
	return &ArxivClient{
		baseURL:    arxivAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func IsArxivURL(url string) bool {
	return arxivIDPattern.MatchString(url)
}

// ExtractArxivID pulls the paper ID out of an abs or pdf URL.
func ExtractArxivID(url string) (string, error) {
	m := arxivIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("invalid arXiv URL: %s", url)
	}
	return m[1], nil
}

// Lookup fetches a paper's metadata by its abs/pdf URL.
func (c *ArxivClient) Lookup(ctx context.Context, url string) (*Paper, error) {
	id, err := ExtractArxivID(url)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?id_list="+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create arxiv request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("arxiv query failed (%d)", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read arxiv response: %w", err)
	}

	return parseFeed(body, id)
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Authors []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
}

func parseFeed(data []byte, id string) (*Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, fmt.Errorf("paper %s not found on arXiv", id)
	}

	entry := feed.Entries[0]
	if strings.TrimSpace(entry.Title) == "" {
		return nil, fmt.Errorf("paper %s not found on arXiv", id)
	}

	paper := &Paper{
		ID:       id,
		Title:    strings.TrimSpace(entry.Title),
		Abstract: strings.TrimSpace(entry.Summary),
		PDFURL:   fmt.Sprintf("https://arxiv.org/pdf/%s", id),
	}
	for _, a := range entry.Authors {
		paper.Authors = append(paper.Authors, a.Name)
	}
	for _, l := range entry.Links {
		if l.Type == "application/pdf" {
			paper.PDFURL = l.Href
		}
	}
	return paper, nil
}
