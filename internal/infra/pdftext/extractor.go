package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

const (
	// DefaultMaxBytes caps a single document download.
	DefaultMaxBytes int64 = 32 << 20
	// DefaultParseTimeout bounds the time spent decoding one document.
	DefaultParseTimeout = 30 * time.Second

	maxRedirects = 5
)

var errPrivateHost = errors.New("private or loopback address")

// Extractor fetches a PDF over HTTP and returns the text of every page,
// joined with newlines in page order.
type Extractor struct {
	client       *http.Client
	parser       parser.Parser
	maxBytes     int64
	parseTimeout time.Duration
	allowPrivate bool
	logger       *slog.Logger
}

type Option func(*Extractor)

// WithHTTPClient replaces the client used to fetch documents.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) { e.client = c }
}

// WithMaxBytes sets the download cap. Values <= 0 keep the default.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithParseTimeout bounds a single parse. Values <= 0 keep the default.
func WithParseTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.parseTimeout = d
		}
	}
}

// WithAllowPrivateHosts lets the default client reach loopback and private
// addresses, directly or through redirects.
func WithAllowPrivateHosts(allow bool) Option {
	return func(e *Extractor) { e.allowPrivate = allow }
}

// WithParser replaces the PDF parser.
func WithParser(p parser.Parser) Option {
	return func(e *Extractor) { e.parser = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

func New(ctx context.Context, opts ...Option) (*Extractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser: %w", err)
	}
	e := &Extractor{
		parser:       p,
		maxBytes:     DefaultMaxBytes,
		parseTimeout: DefaultParseTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = newHTTPClient(e.allowPrivate)
	}
	return e, nil
}

// newHTTPClient checks every dialed address, so hostnames that resolve to
// private ranges and redirects into them are refused as well.
func newHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = rejectPrivate
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	tr.DialContext = dialer.DialContext
	return &http.Client{
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to %s scheme", req.URL.Scheme)
			}
			if !allowPrivate && blockedHost(req.URL.Hostname()) {
				return fmt.Errorf("redirect to %s: %w", req.URL.Hostname(), errPrivateHost)
			}
			return nil
		},
	}
}

func rejectPrivate(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	if blockedHost(host) {
		return fmt.Errorf("dial %s: %w", host, errPrivateHost)
	}
	return nil
}

func blockedHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified() || ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast()
}

// ExtractText implements contracts.TextExtractor.
func (e *Extractor) ExtractText(ctx context.Context, fileURL string) (string, error) {
	start := time.Now()
	data, err := e.fetch(ctx, fileURL)
	if err != nil {
		return "", err
	}

	docs, err := e.parse(ctx, data, fileURL)
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		pages = append(pages, d.Content)
	}
	text := strings.Join(pages, "\n")
	if strings.TrimSpace(text) == "" {
		return "", contracts.ErrNoExtractableText
	}

	e.logger.Debug("pdf.extract.ok",
		"source", fileURL,
		"pages", len(pages),
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

type parseResult struct {
	docs []*schema.Document
	err  error
}

// parse runs the parser off the request goroutine. Malformed documents can
// make the underlying reader panic or loop; a panic becomes ErrExtraction and
// the caller is released on ctx cancellation or after parseTimeout.
func (e *Extractor) parse(ctx context.Context, data []byte, uri string) ([]*schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan parseResult, 1)
	go func() {
		var res parseResult
		defer func() {
			if r := recover(); r != nil {
				res = parseResult{err: fmt.Errorf("%w: parse pdf: %v", contracts.ErrExtraction, r)}
			}
			done <- res
		}()
		docs, err := e.parser.Parse(ctx, bytes.NewReader(data), parser.WithURI(uri))
		if err != nil {
			err = fmt.Errorf("%w: parse pdf: %v", contracts.ErrExtraction, err)
		}
		res = parseResult{docs: docs, err: err}
	}()

	timer := time.NewTimer(e.parseTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.docs, res.err
	case <-ctx.Done():
		e.logger.Warn("pdf.parse.abandoned", "source", uri, "reason", ctx.Err())
		return nil, ctx.Err()
	case <-timer.C:
		e.logger.Warn("pdf.parse.abandoned", "source", uri, "reason", "timeout")
		return nil, fmt.Errorf("%w: parse pdf: gave up after %s", contracts.ErrExtraction, e.parseTimeout)
	}
}

func (e *Extractor) fetch(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", contracts.ErrExtraction, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, errPrivateHost) {
			return nil, contracts.Invalid("file URL points to a private or loopback address")
		}
		return nil, fmt.Errorf("%w: fetch document: %v", contracts.ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: fetch document: status %d", contracts.ErrExtraction, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read document: %v", contracts.ErrExtraction, err)
	}
	if int64(len(data)) > e.maxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", contracts.ErrExtraction, e.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", contracts.ErrExtraction)
	}
	return data, nil
}
