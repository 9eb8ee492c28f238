// Package youtube resolves user input into playable tracks. Direct URLs
// go through yt-dlp metadata extraction; anything else becomes a YouTube
// search.
package youtube

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	zlog "github.com/rs/zerolog/log"

	"github.com/yukina-bot/yukina/internal/app/music"
	"github.com/yukina-bot/yukina/internal/domain/track"
)

const defaultSearchLimit = 5

// Resolver turns play-command input into track metadata.
type Resolver struct {
	limit int
}

// NewResolver creates a resolver considering at most searchLimit results
// per search query.
func NewResolver(searchLimit int) *Resolver {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &Resolver{limit: searchLimit}
}

// Resolve returns the track for input. URLs resolve to their own
// metadata; free text resolves to the first video search result.
func (r *Resolver) Resolve(ctx context.Context, input string) (track.Track, error) {
	if isURL(input) {
		return r.fromURL(ctx, input)
	}
	return r.fromSearch(ctx, input)
}

func (r *Resolver) fromURL(ctx context.Context, rawURL string) (track.Track, error) {
	res, err := ytdlp.New().
		Quiet().
		NoWarnings().
		NoPlaylist().
		Print("%(id)s\t%(title)s\t%(duration)s\t%(thumbnail)s").
		Run(ctx, rawURL)
	if err != nil {
		return track.Track{}, errors.Wrapf(music.ErrResolution, "yt-dlp failed for %s: %v", rawURL, err)
	}

	line := strings.SplitN(strings.TrimSpace(res.Stdout), "\n", 2)[0]
	parts := strings.Split(line, "\t")
	if len(parts) < 2 || parts[1] == "" {
		return track.Track{}, errors.Wrapf(music.ErrResolution, "yt-dlp returned no metadata for %s", rawURL)
	}

	t := track.Track{
		URL:   rawURL,
		Title: parts[1],
	}
	if len(parts) > 2 {
		t.Duration = parseSeconds(parts[2])
	}
	if len(parts) > 3 {
		t.ThumbnailURL = parts[3]
	}
	if t.ThumbnailURL == "" && parts[0] != "" {
		t.ThumbnailURL = thumbnailURL(parts[0])
	}
	return t, nil
}

func (r *Resolver) fromSearch(ctx context.Context, query string) (track.Track, error) {
	c := ytsearch.NewClient(nil)
	res, err := c.Search(ctx, query)
	if err != nil {
		return track.Track{}, errors.Wrapf(music.ErrResolution, "youtube search failed for %q: %v", query, err)
	}

	limit := r.limit
	if limit > len(res.Results) {
		limit = len(res.Results)
	}
	for _, v := range res.Results[:limit] {
		// Channel and playlist entries carry no video ID.
		if v.VideoID == "" {
			continue
		}
		zlog.Debug().Str("query", query).Str("video", v.VideoID).Msg("youtube: search hit")
		return track.Track{
			URL:          watchURL(v.VideoID),
			Title:        v.Title,
			Duration:     parseClockDuration(v.Duration),
			ThumbnailURL: thumbnailURL(v.VideoID),
		}, nil
	}
	return track.Track{}, music.ErrNoResults
}

// isURL reports whether input is an absolute http(s) URL.
func isURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func thumbnailURL(videoID string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID)
}

// parseSeconds parses a yt-dlp duration, given in (possibly fractional)
// seconds. Live streams print "NA"; those come back as zero.
func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// parseClockDuration parses a colon-separated duration such as "3:45"
// or "1:02:33". Malformed input comes back as zero.
func parseClockDuration(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0
	}
	var total time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + time.Duration(n)*time.Second
	}
	return total
}
