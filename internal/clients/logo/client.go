package logo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
	"github.com/vicentsargues/FACTURAFACIL/pkg/transport"
)

const (
	maxLogoSize         = 5 << 20
	defaultRetryWaitMax = time.Second * 5
	failureTTL          = time.Minute
)

type failure struct {
	err   error
	until time.Time
}

// Client loads images from a local path or an http(s) URL. Successful loads are kept in memory,
// failed ones are remembered for a minute.
type Client struct {
	client *http.Client
	now    func() time.Time

	mu       sync.Mutex
	cache    map[string]entity.Image
	failures map[string]failure
}

func NewClient(timeout time.Duration, retryAttempts int) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryAttempts
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = defaultRetryWaitMax
	retryClient.HTTPClient.Timeout = timeout
	retryClient.HTTPClient.Transport = transport.NewLoggingRoundTripper(retryClient.HTTPClient.Transport)
	retryClient.Logger = nil

	return &Client{
		client:   retryClient.StandardClient(),
		now:      time.Now,
		cache:    make(map[string]entity.Image),
		failures: make(map[string]failure),
	}
}

// WithClock replaces the clock used to expire remembered failures.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) Load(ctx context.Context, ref string) (entity.Image, error) {
	ref = strings.TrimSpace(ref)

	c.mu.Lock()
	img, ok := c.cache[ref]
	f, failed := c.failures[ref]
	c.mu.Unlock()

	if ok {
		return img, nil
	}

	if failed && c.now().Before(f.until) {
		return entity.Image{}, f.err
	}

	img, err := c.load(ctx, ref)
	if err != nil {
		// A cancelled request says nothing about the logo itself.
		if ctx.Err() == nil {
			c.mu.Lock()
			c.failures[ref] = failure{err: err, until: c.now().Add(failureTTL)}
			c.mu.Unlock()
		}

		return entity.Image{}, err
	}

	c.mu.Lock()
	c.cache[ref] = img
	delete(c.failures, ref)
	c.mu.Unlock()

	return img, nil
}

func (c *Client) load(ctx context.Context, ref string) (entity.Image, error) {
	var (
		data []byte
		err  error
	)

	if isURL(ref) {
		data, err = c.download(ctx, ref)
	} else {
		data, err = os.ReadFile(ref)
	}

	if err != nil {
		return entity.Image{}, err
	}

	imgType, err := detectType(ref, data)
	if err != nil {
		return entity.Image{}, err
	}

	return entity.Image{Data: data, Type: imgType}, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download logo: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download logo: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoSize+1))
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}

	if len(data) > maxLogoSize {
		return nil, fmt.Errorf("logo is larger than %d bytes", maxLogoSize)
	}

	return data, nil
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// detectType sniffs the content first and falls back to the file extension.
func detectType(ref string, data []byte) (string, error) {
	switch http.DetectContentType(data) {
	case "image/png":
		return "png", nil
	case "image/jpeg":
		return "jpg", nil
	case "image/gif":
		return "gif", nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(ref), "."))

	switch ext {
	case "png", "gif":
		return ext, nil
	case "jpg", "jpeg":
		return "jpg", nil
	}

	return "", fmt.Errorf("unsupported logo format %q", ref)
}
