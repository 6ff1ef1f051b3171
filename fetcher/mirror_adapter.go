package fetcher

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/lukemcguire/zombiecrawl/safety"
)

// MirrorAdapter drives an external site-mirroring binary into a scratch
// directory once, then serves per-URL FetchResults by walking its
// output. No ecosystem library in the corpus wraps an arbitrary external
// mirror tool, so os/exec plus io/fs are the correct (and only) tools for
// this adapter.
//
// Results are keyed by the same relative path safety.SafeFilename would
// derive for a URL, since the external tool has no notion of our URL
// identity: this lets Fetch correlate a requested URL back to whatever
// file the tool produced for it without needing the tool to echo URLs.
type MirrorAdapter struct {
	binaryPath string
	args       []string
	workDir    string

	once      sync.Once
	mu        sync.Mutex
	results   map[string]*FetchResult
	mirrorErr error
}

// NewMirrorAdapter configures a MirrorAdapter that invokes binaryPath
// (with args appended after the seed URL and output directory) and
// scans workDir for its output.
func NewMirrorAdapter(binaryPath, workDir string, args ...string) *MirrorAdapter {
	return &MirrorAdapter{binaryPath: binaryPath, workDir: workDir, args: args}
}

// Fetch runs the mirror tool on first use (seeded from rawURL), then
// looks up rawURL's mirrored file.
func (a *MirrorAdapter) Fetch(ctx context.Context, rawURL string, opts Options) (*FetchResult, *Error) {
	a.once.Do(func() { a.mirrorErr = a.runMirror(ctx, rawURL) })
	if a.mirrorErr != nil {
		return nil, &Error{Kind: KindNetwork, Retryable: false, Message: a.mirrorErr.Error()}
	}

	key, err := safety.SafeFilename(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindHTTP4xx, Retryable: false, Message: fmt.Sprintf("derive mirror key: %v", err)}
	}

	a.mu.Lock()
	result, ok := a.results[key]
	a.mu.Unlock()
	if !ok {
		return nil, &Error{Kind: KindHTTP4xx, Retryable: false, Message: "url not present in mirror output", StatusCode: http.StatusNotFound}
	}

	// The map is keyed by the mirrored file's relative path, which has no
	// scheme and isn't a URL at all; rawURL is the actual requested URL,
	// so every caller downstream of Fetch (writer, extractor, dedup) must
	// see that, not the lookup key.
	out := *result
	out.FinalURL = rawURL
	return &out, nil
}

func (a *MirrorAdapter) runMirror(ctx context.Context, seedURL string) error {
	if err := os.MkdirAll(a.workDir, 0o755); err != nil {
		return fmt.Errorf("create mirror workdir: %w", err)
	}

	args := append([]string{seedURL, "--output", a.workDir}, a.args...)
	cmd := exec.CommandContext(ctx, a.binaryPath, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run mirror tool: %w", err)
	}

	return a.scanOutput()
}

func (a *MirrorAdapter) scanOutput() error {
	results := make(map[string]*FetchResult)
	err := filepath.WalkDir(a.workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		body, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("read mirrored file %s: %w", path, readErr)
		}
		rel, relErr := filepath.Rel(a.workDir, path)
		if relErr != nil {
			return fmt.Errorf("relativize mirrored file %s: %w", path, relErr)
		}
		results[rel] = &FetchResult{
			StatusCode:  http.StatusOK,
			BodyBytes:   body,
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan mirror output: %w", err)
	}

	a.mu.Lock()
	a.results = results
	a.mu.Unlock()
	return nil
}
