package fetcher

import "context"

// BrowserAdapter is the headless-browser fetch path. Full JS-execution
// semantics are an explicit spec non-goal; this adapter exists only to
// satisfy the Fetcher interface and the --scraper=browser selection
// switch. When no real backend is wired in, every fetch is terminal
// with KindUnsupportedType.
type BrowserAdapter struct {
	backend Fetcher
}

// NewBrowserAdapter wraps an optional real headless-browser Fetcher.
// Passing a nil backend yields an adapter that always reports
// unsupportedType, which is the only behavior this module implements.
func NewBrowserAdapter(backend Fetcher) *BrowserAdapter {
	return &BrowserAdapter{backend: backend}
}

func (a *BrowserAdapter) Fetch(ctx context.Context, rawURL string, opts Options) (*FetchResult, *Error) {
	if a.backend != nil {
		return a.backend.Fetch(ctx, rawURL, opts)
	}
	return nil, &Error{
		Kind:      KindUnsupportedType,
		Retryable: false,
		Message:   "headless browser backend is not configured",
	}
}
