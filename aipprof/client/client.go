// Package client fetches profiles from a running aipprof endpoint and summarizes them.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/pprof/profile"
	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
	"github.com/volcengine/apminsight-pprof-go/logger"
)

const DefaultPrefix = "/debug/pprof"

type Client struct {
	baseURL string
	hc      *http.Client
	logger  logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Collections block for their duration, so keep any
// client timeout above the longest seconds requested.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New returns a client for the endpoints under baseURL, e.g. http://127.0.0.1:8080/debug/pprof.
// A baseURL without a path gets DefaultPrefix.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q needs a scheme and host", baseURL)
	}
	if strings.Trim(u.Path, "/") == "" {
		u.Path = DefaultPrefix
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		hc:      &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrNoop(c.logger)
	return c, nil
}

// StatusError is a non-200 reply. It unwraps to the error class of its status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusPreconditionFailed:
		return common.ErrPreconditionFailed
	case http.StatusBadRequest:
		return common.ErrInvalidRequest
	case http.StatusNotFound:
		return common.ErrUnknownProfile
	}
	return nil
}

// Fetch collects one profile. seconds applies to the cpu and wall kinds; 0 leaves the server default.
func (c *Client) Fetch(ctx context.Context, kind common.ProfileKind, seconds int) (*profile.Profile, error) {
	q := url.Values{}
	switch kind.Canonical() {
	case common.ProfileKindCPU, common.ProfileKindWall:
		if seconds > 0 {
			q.Set("seconds", strconv.Itoa(seconds))
		}
	}
	body, err := c.get(ctx, kind.ToString(), q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	p, err := profile.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pprof profile: %w", err)
	}
	c.logger.Debug("[Client.Fetch] %s profile: %d samples, %d locations", kind, len(p.Sample), len(p.Location))
	return p, nil
}

// Cmdline returns the arguments of the profiled process.
func (c *Client) Cmdline(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "cmdline", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(b), "\x00"), nil
}

func (c *Client) get(ctx context.Context, route string, q url.Values) (io.ReadCloser, error) {
	u := c.baseURL + "/" + route
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", route, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp.Body, nil
}

// FunctionStat is the flat (leaf) and cumulative (anywhere on the stack) total of one function.
type FunctionStat struct {
	Function string
	Flat     int64
	Cum      int64
	FlatPct  float64
}

// TopFunctions ranks functions by flat value of sampleType, the default sample type if empty.
// n <= 0 returns every function.
func TopFunctions(p *profile.Profile, sampleType string, n int) ([]FunctionStat, error) {
	if sampleType == "" {
		sampleType = p.DefaultSampleType
	}
	idx := -1
	for i, st := range p.SampleType {
		if st.Type == sampleType {
			idx = i
		}
	}
	if idx < 0 && sampleType == "" && len(p.SampleType) > 0 {
		idx = len(p.SampleType) - 1
	}
	if idx < 0 {
		return nil, fmt.Errorf("profile has no sample type %q", sampleType)
	}

	var total int64
	stats := make(map[string]*FunctionStat)
	stat := func(name string) *FunctionStat {
		s, ok := stats[name]
		if !ok {
			s = &FunctionStat{Function: name}
			stats[name] = s
		}
		return s
	}
	for _, s := range p.Sample {
		v := s.Value[idx]
		total += v
		seen := make(map[string]bool)
		leaf := true
		for _, loc := range s.Location {
			for _, ln := range loc.Line {
				name := "unknown"
				if ln.Function != nil {
					name = ln.Function.Name
				}
				if leaf {
					stat(name).Flat += v
					leaf = false
				}
				if !seen[name] {
					seen[name] = true
					stat(name).Cum += v
				}
			}
		}
	}

	out := make([]FunctionStat, 0, len(stats))
	for _, s := range stats {
		if total > 0 {
			s.FlatPct = float64(s.Flat) / float64(total) * 100
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Flat != out[j].Flat {
			return out[i].Flat > out[j].Flat
		}
		if out[i].Cum != out[j].Cum {
			return out[i].Cum > out[j].Cum
		}
		return out[i].Function < out[j].Function
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
