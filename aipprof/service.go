// Package aipprof serves pprof-compatible profiles of the running process over HTTP.
//
// Routes, relative to the path prefix (/debug/pprof by default):
//
//	/            index of the available profiles
//	/profile     CPU profile, ?seconds=N (default 30)
//	/wall        wall-clock profile, ?seconds=N (default 30)
//	/heap        in-use heap profile, ?gc=1 collects garbage first
//	/thread      goroutine stacks, ?debug=1 for a text dump; /goroutine is an alias
//	/cmdline     the command line, NUL separated
package aipprof

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/volcengine/apminsight-pprof-go/aipprof/collectors"
	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
	"github.com/volcengine/apminsight-pprof-go/aipprof/p_runtime"
	"github.com/volcengine/apminsight-pprof-go/logger"
)

const (
	RouteIndex   = ""
	RouteCmdline = "cmdline"
)

// Routes lists every route the Service answers, relative to the path prefix.
func Routes() []string {
	return []string{
		RouteIndex,
		RouteCmdline,
		common.ProfileKindCPU.ToString(),
		common.ProfileKindWall.ToString(),
		common.ProfileKindHeap.ToString(),
		common.ProfileKindThread.ToString(),
		common.ProfileKindGoroutine.ToString(),
	}
}

const (
	HeaderProfileID = "X-Profile-Id"

	contentTypeText    = "text/plain; charset=utf-8"
	contentTypeProfile = "application/octet-stream"
)

// Response is a transport-neutral reply. Transports copy it onto their own writer.
type Response struct {
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

// Write copies r onto w.
func (r *Response) Write(w http.ResponseWriter) {
	h := w.Header()
	for k, vs := range r.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Set("Content-Type", r.ContentType)
	w.WriteHeader(r.StatusCode)
	_, _ = w.Write(r.Body)
}

func textResponse(body string) *Response {
	return &Response{
		StatusCode:  http.StatusOK,
		ContentType: contentTypeText,
		Header:      http.Header{"X-Content-Type-Options": []string{"nosniff"}},
		Body:        []byte(body),
	}
}

func profileResponse(pd *common.ProfileData) *Response {
	return &Response{
		StatusCode:  http.StatusOK,
		ContentType: contentTypeProfile,
		Header: http.Header{
			"Content-Disposition": []string{`attachment; filename="profile"`},
			HeaderProfileID:       []string{pd.ID},
		},
		Body: pd.Data,
	}
}

// Service maps a route and its query to a Response. It holds no transport.
type Service struct {
	cfg      *Config
	registry *collectors.Registry
	logger   logger.Logger
}

// NewService builds the collectors for every route. It registers the process-wide wall sampler
// on first use.
func NewService(opts ...Option) *Service {
	return newService(newConfig(opts...))
}

func newService(cfg *Config) *Service {
	wall := collectors.RegisterWallSampler(cfg.WallHz)
	return &Service{
		cfg: cfg,
		registry: collectors.NewRegistry(
			collectors.NewCPUCollector(),
			collectors.NewWallCollector(wall),
			collectors.NewHeapCollector(cfg.HeapTracer),
			collectors.NewThreadCollector(),
		),
		logger: cfg.Logger,
	}
}

// Handle serves route (relative to the prefix, surrounding slashes ignored).
// ctx bounds CPU and wall collections; cancel it when the client goes away.
func (s *Service) Handle(ctx context.Context, route string, query url.Values) *Response {
	route = strings.Trim(route, "/")
	switch route {
	case RouteIndex:
		return s.index()
	case RouteCmdline:
		return textResponse(p_runtime.Cmdline())
	}

	kind, ok := common.FromString(route)
	if !ok {
		return s.NotFound(route)
	}
	if kind.Canonical() == common.ProfileKindThread && flagSet(query.Get("debug")) {
		return textResponse(string(collectors.StackDump()))
	}
	c := s.registry.Get(kind)
	if c == nil {
		return s.NotFound(route)
	}

	opts, err := s.options(kind, query)
	if err != nil {
		return s.errorResponse(kind.ToString(), err)
	}

	start := time.Now()
	pd, err := collectors.Collect(ctx, c, opts)
	if err != nil {
		return s.errorResponse(kind.ToString(), err)
	}
	s.logger.Info("[Service.Handle] collected %s profile, id=%s samples=%d bytes=%d cost=%s",
		kind, pd.ID, pd.SampleCount, len(pd.Data), time.Since(start))
	return profileResponse(pd)
}

// NotFound is the reply for any path outside the route table.
func (s *Service) NotFound(path string) *Response {
	return s.errorResponse(path, fmt.Errorf("%w: %q", common.ErrUnknownProfile, path))
}

func (s *Service) options(kind common.ProfileKind, query url.Values) (collectors.Options, error) {
	var opts collectors.Options
	switch kind.Canonical() {
	case common.ProfileKindCPU, common.ProfileKindWall:
		d, err := s.duration(query.Get("seconds"))
		if err != nil {
			return opts, err
		}
		opts.Duration = d
	case common.ProfileKindHeap:
		opts.GC = flagSet(query.Get("gc"))
	}
	return opts, nil
}

func (s *Service) duration(seconds string) (time.Duration, error) {
	if seconds == "" {
		return s.cfg.DefaultDuration, nil
	}
	sec, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return 0, common.InvalidParam("seconds", seconds, "not an integer")
	}
	if sec <= 0 {
		return 0, common.InvalidParam("seconds", seconds, "must be positive")
	}
	if sec > int64(s.cfg.MaxDuration/time.Second) {
		return 0, common.InvalidParam("seconds", seconds, "exceeds "+s.cfg.MaxDuration.String())
	}
	return time.Duration(sec) * time.Second, nil
}

// flagSet treats absent, "0" and "false" as off.
func flagSet(v string) bool {
	switch strings.ToLower(v) {
	case "", "0", "false":
		return false
	}
	return true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, common.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, common.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnknownProfile):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) errorResponse(route string, err error) *Response {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("[Service.Handle] %s failed: %v", route, err)
	} else {
		s.logger.Debug("[Service.Handle] %s rejected with %d: %v", route, status, err)
	}
	return &Response{
		StatusCode:  status,
		ContentType: contentTypeText,
		Header: http.Header{
			"X-Content-Type-Options": []string{"nosniff"},
			"X-Go-Pprof":             []string{"1"},
		},
		Body: []byte(err.Error() + "\n"),
	}
}

func (s *Service) index() *Response {
	prefix := s.cfg.PathPrefix
	var b strings.Builder
	fmt.Fprintf(&b, "%s/\n\n", prefix)
	fmt.Fprintf(&b, "Types of profiles available:\n")
	fmt.Fprintf(&b, "%d\tgoroutine\n", p_runtime.GetGoRoutineNum())
	fmt.Fprintf(&b, "\tcmdline\n\theap\n\tprofile\n\tthread\n\twall\n\n")
	fmt.Fprintf(&b, "Profile Descriptions:\n\n")
	for _, d := range indexDescriptions {
		fmt.Fprintf(&b, "%s/%s\n\t%s\n", prefix, d.route, d.text)
	}
	fmt.Fprintf(&b, "\nRuntime:\n%s\n", p_runtime.GetRuntimeInfo())
	if rss := p_runtime.GetRss(); rss > 0 {
		fmt.Fprintf(&b, "rss_bytes: %d\n", rss)
	}
	return textResponse(b.String())
}

var indexDescriptions = []struct {
	route, text string
}{
	{"cmdline", "The command line invocation of the current program."},
	{"goroutine", "Stack traces of all current goroutines. Same as thread."},
	{"heap", "A sampling of memory allocations of live objects. Requires a heap tracer; add ?gc=1 to run GC first."},
	{"profile", "CPU profile. Specify the duration in the seconds GET parameter (default 30)."},
	{"thread", "Stack traces of all current goroutines. Add ?debug=1 for a plain text dump."},
	{"wall", "Wall-clock profile, sampling every goroutine whether running or blocked. Specify the duration in the seconds GET parameter."},
}
