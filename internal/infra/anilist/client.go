// Package anilist provides a client for the AniList GraphQL API.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// MediaType selects the media category for a search.
type MediaType string

const (
	MediaAnime MediaType = "ANIME"
	MediaManga MediaType = "MANGA"
)

const searchQuery = `
query($page: Int!, $perPage: Int!, $search: String!, $medium: MediaType!) {
  Page(page: $page, perPage: $perPage) {
    pageInfo {
      total
      currentPage
      lastPage
      hasNextPage
      perPage
    }
    media(search: $search, type: $medium) {
      id
      title {
        english
        romaji
      }
      type
      format
      status
      description(asHtml: false)
      startDate { year month day }
      endDate { year month day }
      episodes
      chapters
      volumes
      meanScore
      siteUrl
      coverImage { large }
    }
  }
}`

const defaultPerPage = 10

// Client is an AniList GraphQL API client.
type Client struct {
	endpoint   string
	token      string
	perPage    int
	httpClient *http.Client
}

// Config represents AniList client configuration.
type Config struct {
	Endpoint string
	Token    string
	PerPage  int
}

// FuzzyDate is AniList's partial date. Any component may be zero.
type FuzzyDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// IsZero reports whether no component is set.
func (d FuzzyDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date as YYYY-M-D.
func (d FuzzyDate) String() string {
	var b strings.Builder
	b.WriteString(datePart(d.Year))
	b.WriteByte('-')
	b.WriteString(datePart(d.Month))
	b.WriteByte('-')
	b.WriteString(datePart(d.Day))
	return b.String()
}

func datePart(n int) string {
	if n == 0 {
		return "?"
	}
	return strconv.Itoa(n)
}

// Media represents a single AniList entry.
type Media struct {
	ID    int `json:"id"`
	Title struct {
		English string `json:"english"`
		Romaji  string `json:"romaji"`
	} `json:"title"`
	Type        string    `json:"type"`
	Format      string    `json:"format"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	StartDate   FuzzyDate `json:"startDate"`
	EndDate     FuzzyDate `json:"endDate"`
	Episodes    int       `json:"episodes"`
	Chapters    int       `json:"chapters"`
	Volumes     int       `json:"volumes"`
	MeanScore   int       `json:"meanScore"`
	SiteURL     string    `json:"siteUrl"`
	CoverImage  struct {
		Large string `json:"large"`
	} `json:"coverImage"`
}

// DisplayTitle prefers the English title, falling back to romaji.
func (m Media) DisplayTitle() string {
	if m.Title.English != "" {
		return m.Title.English
	}
	return m.Title.Romaji
}

// PageInfo represents AniList pagination metadata.
type PageInfo struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"currentPage"`
	LastPage    int  `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
	PerPage     int  `json:"perPage"`
}

// Page is one page of search results.
type Page struct {
	Info  PageInfo
	Media []Media
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type searchResponse struct {
	Data struct {
		Page struct {
			PageInfo PageInfo `json:"pageInfo"`
			Media    []Media  `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// New creates a new AniList client. The token is optional; without it
// requests are unauthenticated.
func New(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://graphql.anilist.co"
	}
	perPage := cfg.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	return &Client{
		endpoint:   endpoint,
		token:      cfg.Token,
		perPage:    perPage,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Search queries AniList for media matching search. Pages are 1-based.
func (c *Client) Search(ctx context.Context, search string, medium MediaType, page int) (*Page, error) {
	if search == "" {
		return nil, errors.New("search term is required")
	}
	if page < 1 {
		page = 1
	}

	payload, err := json.Marshal(graphqlRequest{
		Query: searchQuery,
		Variables: map[string]any{
			"page":    page,
			"perPage": c.perPage,
			"search":  search,
			"medium":  string(medium),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	if len(response.Errors) > 0 {
		return nil, errors.Errorf("anilist API error: %s", response.Errors[0].Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("anilist API returned status %d", resp.StatusCode)
	}

	return &Page{
		Info:  response.Data.Page.PageInfo,
		Media: response.Data.Page.Media,
	}, nil
}

// StripHTML removes markup tags from an AniList description and decodes
// the handful of entities the API emits.
func StripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	out := b.String()
	replacer := strings.NewReplacer(
		"&quot;", `"`,
		"&#039;", "'",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
	)
	return replacer.Replace(out)
}
