// Package preflight checks that a site answers plain HTTP before a browser
// tab is spent on it.
package preflight

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config controls the reachability check.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize caps how much of the document is downloaded.
	MaxBodySize int
}

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxBodySize = 512 * 1024
)

// Result is the outcome of one check.
type Result struct {
	Status   int
	FinalURL string
	Duration time.Duration
}

// Checker issues a single GET per address through a colly collector.
type Checker struct {
	cfg  Config
	base *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Checker.
func New(cfg Config) *Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Checker{cfg: cfg, base: c}
}

// Check fetches addr once. Responses with any status are returned as a
// Result; transport failures are returned as errors.
func (c *Checker) Check(ctx context.Context, addr string) (Result, error) {
	var (
		result   Result
		checkErr error
	)
	collector := c.buildCollector()
	c.configureHooks(collector, time.Now(), &result, &checkErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(addr)
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("preflight canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Result{}, fmt.Errorf("preflight %s: %w", addr, err)
		}
		if checkErr != nil {
			return Result{}, fmt.Errorf("preflight %s: %w", addr, checkErr)
		}
		return result, nil
	}
}

func (c *Checker) buildCollector() *colly.Collector {
	collector := c.base.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = c.cfg.MaxBodySize
	collector.SetRequestTimeout(c.cfg.Timeout)
	return collector
}

func (c *Checker) configureHooks(hooks collectorHooks, start time.Time, result *Result, checkErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = Result{
			Status:   r.StatusCode,
			FinalURL: r.Request.URL.String(),
			Duration: time.Since(start),
		}
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*checkErr = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
