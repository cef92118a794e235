package whttp

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/radiantsdao/burnwatch/pkg/logging"
)

const (
	DefaultConnectTimeout = 120 * time.Second
	DefaultRetries        = 3
	DefaultRetryWaitMin   = 500 * time.Millisecond
	DefaultRetryWaitMax   = 5 * time.Second
)

// ClientConfig controls the HTTP client used for ledger RPC calls.
type ClientConfig struct {
	// ConnectTimeout bounds connection establishment only. Requests
	// themselves are not given a deadline.
	ConnectTimeout time.Duration
	// Retries is the number of retries on 429/5xx and connection errors.
	Retries int
	// Proxy is an optional HTTP proxy URL (useful for debugging).
	Proxy string
	Log   logging.Logger
}

// NewClient builds a standard *http.Client whose transport retries
// rate-limited and transient failures with backoff.
func NewClient(cfg ClientConfig) (*http.Client, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = DefaultRetries
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport}
	rc.RetryMax = retries
	rc.RetryWaitMin = DefaultRetryWaitMin
	rc.RetryWaitMax = DefaultRetryWaitMax
	rc.Logger = leveledLogger{log: logging.OrNop(cfg.Log)}

	return rc.StandardClient(), nil
}

// leveledLogger adapts a logging.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log logging.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Errorf("%s%s", msg, formatKV(kv)) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warnf("%s%s", msg, formatKV(kv)) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debugf("%s%s", msg, formatKV(kv)) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugf("%s%s", msg, formatKV(kv)) }

func formatKV(kv []interface{}) string {
	out := ""
	for i := 0; i+1 < len(kv); i += 2 {
		out += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	return out
}
