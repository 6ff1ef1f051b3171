package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// maxRedirects mirrors the teacher's CheckURL redirect-loop guard.
const maxRedirects = 10

// HTTPAdapter is the fast static-HTML fetch path: a direct GET, no
// JavaScript execution, generalized from the teacher's CheckURL.
type HTTPAdapter struct {
	client         *http.Client
	requestTimeout time.Duration
}

// NewHTTPAdapter builds an HTTPAdapter using client as the transport and
// requestTimeout as the per-request deadline.
func NewHTTPAdapter(client *http.Client, requestTimeout time.Duration) *HTTPAdapter {
	return &HTTPAdapter{client: client, requestTimeout: requestTimeout}
}

// Fetch performs a single GET of rawURL, always retrieving the body
// (unlike the teacher's HEAD-for-external-links shortcut, which does not
// apply here — every scraped page needs its content).
func (a *HTTPAdapter) Fetch(ctx context.Context, rawURL string, opts Options) (*FetchResult, *Error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	var isRedirectLoop bool
	var visited []string
	loopClient := &http.Client{
		Transport: a.client.Transport,
		Timeout:   a.client.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			current := req.URL.String()
			for _, v := range visited {
				if v == current {
					isRedirectLoop = true
					return http.ErrUseLastResponse
				}
			}
			visited = append(visited, current)
			if len(via) >= maxRedirects {
				isRedirectLoop = true
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Retryable: false, Message: err.Error()}
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := loopClient.Do(req)
	if err != nil {
		return nil, classifyDoError(err)
	}
	defer resp.Body.Close()

	if isRedirectLoop {
		return nil, &Error{Kind: KindNetwork, Retryable: false, Message: "redirect loop detected"}
	}

	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode)
	}

	body, truncated, err := readLimited(resp.Body, opts.MaxBodyBytes)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Retryable: true, Message: fmt.Sprintf("read body: %v", err)}
	}
	if truncated {
		return nil, &Error{Kind: KindOversize, Retryable: false, Message: "response body exceeded max size", StatusCode: resp.StatusCode}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	contentType := resp.Header.Get("Content-Type")

	return &FetchResult{
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		BodyBytes:   body,
		FinalURL:    finalURL,
		ContentType: baseContentType(contentType),
		Encoding:    charsetOf(contentType),
	}, nil
}

// readLimited reads up to maxBytes+1 bytes, reporting truncated=true if
// the body exceeded maxBytes. maxBytes <= 0 means unlimited.
func readLimited(r io.Reader, maxBytes int64) (body []byte, truncated bool, err error) {
	if maxBytes <= 0 {
		body, err = io.ReadAll(r)
		return body, false, err
	}
	limited := io.LimitReader(r, maxBytes+1)
	body, err = io.ReadAll(limited)
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > maxBytes {
		return body[:maxBytes], true, nil
	}
	return body, false, nil
}

func baseContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}

func charsetOf(contentType string) string {
	idx := strings.Index(strings.ToLower(contentType), "charset=")
	if idx == -1 {
		return ""
	}
	charset := contentType[idx+len("charset="):]
	charset = strings.Trim(charset, `"' `)
	if semi := strings.Index(charset, ";"); semi != -1 {
		charset = charset[:semi]
	}
	return strings.TrimSpace(charset)
}

func classifyStatus(status int) *Error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return &Error{Kind: KindHTTP5xx, Retryable: true, Message: http.StatusText(status), StatusCode: status}
	}
	return &Error{Kind: KindHTTP4xx, Retryable: false, Message: http.StatusText(status), StatusCode: status}
}

func classifyDoError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Retryable: true, Message: err.Error()}
	}

	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) {
		return &Error{Kind: KindTLS, Retryable: false, Message: err.Error()}
	}
	var certErr *tls.RecordHeaderError
	if errors.As(err, &certErr) {
		return &Error{Kind: KindTLS, Retryable: false, Message: err.Error()}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindNetwork, Retryable: true, Message: err.Error()}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return &Error{Kind: KindTimeout, Retryable: true, Message: err.Error()}
		}
		return &Error{Kind: KindNetwork, Retryable: true, Message: err.Error()}
	}

	return &Error{Kind: KindNetwork, Retryable: true, Message: err.Error()}
}
