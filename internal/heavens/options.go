package heavens

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL   = "https://www.heavens-above.com/"
	defaultTimeout   = 20 * time.Second
	defaultUserAgent = "skywatch/1.0 (+https://github.com/star/skywatch)"
)

// Observer is the ground location every heavens-above page is computed for.
type Observer struct {
	Lat      float64 `yaml:"lat"`
	Lng      float64 `yaml:"lng"`
	Alt      int     `yaml:"alt"`
	Location string  `yaml:"location"`
	TZ       string  `yaml:"tz"`
}

// DefaultObserver is Beijing at sea level in China Standard Time.
func DefaultObserver() Observer {
	return Observer{
		Lat:      39.9042,
		Lng:      116.4074,
		Alt:      0,
		Location: "Unnamed",
		TZ:       "ChST",
	}
}

// query returns the observer as heavens-above query parameters.
func (o Observer) query() url.Values {
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(o.Lat, 'f', -1, 64))
	v.Set("lng", strconv.FormatFloat(o.Lng, 'f', -1, 64))
	v.Set("loc", o.Location)
	v.Set("alt", strconv.Itoa(o.Alt))
	v.Set("tz", o.TZ)
	return v
}

// RequestOptions describes a single outgoing request. It is built fresh per
// call and carries no connection state.
type RequestOptions struct {
	Method  string
	URL     string
	Header  http.Header
	Timeout time.Duration
}

// NewRequest builds the *http.Request described by o.
func (o RequestOptions) NewRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, o.Method, o.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range o.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// OptionBuilder assembles GET options against a base URL for one observer.
type OptionBuilder struct {
	BaseURL   string
	Observer  Observer
	Timeout   time.Duration
	UserAgent string
}

// DefaultOptionBuilder targets heavens-above.com for the default observer.
func DefaultOptionBuilder() OptionBuilder {
	return OptionBuilder{
		BaseURL:   defaultBaseURL,
		Observer:  DefaultObserver(),
		Timeout:   defaultTimeout,
		UserAgent: defaultUserAgent,
	}
}

// BuildGetOptions returns GET options for target using DefaultOptionBuilder.
func BuildGetOptions(target string) RequestOptions {
	return DefaultOptionBuilder().GetOptions(target)
}

// GetOptions resolves target (a page path with an optional query) against
// the base URL and appends the observer parameters the target does not
// already set. The method is always GET.
func (b OptionBuilder) GetOptions(target string) RequestOptions {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := b.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	header := http.Header{}
	header.Set("User-Agent", ua)
	header.Set("Accept", "text/html,application/xhtml+xml")
	header.Set("Accept-Language", "en-US,en;q=0.8")

	return RequestOptions{
		Method:  http.MethodGet,
		URL:     b.resolve(target),
		Header:  header,
		Timeout: timeout,
	}
}

func (b OptionBuilder) resolve(target string) string {
	baseStr := b.BaseURL
	if baseStr == "" {
		baseStr = defaultBaseURL
	}
	base, err := url.Parse(baseStr)
	if err != nil {
		base, _ = url.Parse(defaultBaseURL)
	}

	ref, err := url.Parse(target)
	if err != nil {
		ref = &url.URL{Path: target}
	}
	u := base.ResolveReference(ref)

	q := u.Query()
	for k, vs := range b.Observer.query() {
		if !q.Has(k) {
			q[k] = vs
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
