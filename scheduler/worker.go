package scheduler

import (
	"context"
	"time"

	"github.com/lukemcguire/zombiecrawl/extractor"
	"github.com/lukemcguire/zombiecrawl/fetcher"
	"github.com/lukemcguire/zombiecrawl/safety"
	"github.com/lukemcguire/zombiecrawl/store"
	"github.com/lukemcguire/zombiecrawl/writer"
)

// processJob runs one URL through fetch, extract, dedup, and write. It
// suspends only at the per-host delay gate, at fetch I/O, and at store
// I/O, per the spec's concurrency model.
func (s *Scheduler) processJob(ctx context.Context, j job) jobResult {
	res := jobResult{job: j}

	if err := s.waitUntil(ctx, j.notBefore); err != nil {
		return res
	}
	if err := s.waitForSlot(ctx); err != nil {
		return res
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return res
	}

	start := time.Now()
	result, fetchErr := fetcher.FetchWithRetry(ctx, s.fetch, j.url, fetcher.Options{
		UserAgent:    s.cfg.UserAgent,
		MaxBodyBytes: s.cfg.MaxBodyBytes,
	}, s.cfg.RetryPolicy)
	s.limiter.ObserveRTT(time.Since(start))

	// A run cancelled while the fetch was in flight discards its result
	// instead of recording it.
	if ctx.Err() != nil {
		return res
	}

	if fetchErr != nil {
		res.err = fetchErr
		res.statusCode = fetchErr.StatusCode
		res.internalErr = s.recordScrape(j, fetchErr.StatusCode, "", "", "", fetchErr.Error())
		return res
	}
	res.statusCode = result.StatusCode

	if allow, reason := safety.ExtensionGate(j.url, result.ContentType); !allow {
		res.skipped = true
		res.internalErr = s.recordScrape(j, result.StatusCode, "", "", "", "blocked: "+reason)
		return res
	}

	page, extractErr := extractor.Extract(result.FinalURL, result.BodyBytes, result.ContentType, result.Encoding, extractor.Options{
		IgnoreGetParams: s.cfg.DedupConfig.IgnoreGetParams,
	})
	if extractErr != nil {
		res.internalErr = s.recordScrape(j, result.StatusCode, "", "", "", "extract: "+extractErr.Error())
		return res
	}
	res.links = page.OutboundLinks

	canonical := page.Meta["canonical"]
	canonDecision, err := s.dedup.CheckCanonical(result.FinalURL, canonical)
	if err != nil {
		res.internalErr = s.recordScrape(j, result.StatusCode, "", "", "", "canonical check: "+err.Error())
		return res
	}
	if !canonDecision.Materialize {
		res.skipped = true
		if canonDecision.EnqueueCanonical != "" {
			res.enqueueExtra = append(res.enqueueExtra, canonDecision.EnqueueCanonical)
		}
		res.internalErr = s.recordScrape(j, result.StatusCode, "", canonical, "", "")
		return res
	}

	contentDecision, err := s.dedup.CheckContent(page.ContentChecksum)
	if err != nil {
		res.internalErr = s.recordScrape(j, result.StatusCode, "", "", "", "content check: "+err.Error())
		return res
	}
	if contentDecision.SkipWrite {
		res.skipped = true
		res.internalErr = s.recordScrape(j, result.StatusCode, "", canonical, page.ContentChecksum, "")
		return res
	}

	if err := s.store.RecordChecksum(page.ContentChecksum, result.FinalURL); err != nil {
		res.internalErr = err
		return res
	}

	writeResult, writeErr := s.write.Write(result.FinalURL, result.BodyBytes, writer.Metadata{
		URL:        result.FinalURL,
		Title:      page.Title,
		Encoding:   result.Encoding,
		StatusCode: result.StatusCode,
		Headers:    subsetHeaders(result),
		Fields:     page.Meta,
	})
	if writeErr != nil {
		res.internalErr = s.recordScrape(j, result.StatusCode, "", canonical, page.ContentChecksum, "write: "+writeErr.Error())
		return res
	}
	res.written = true
	res.internalErr = s.recordScrape(j, result.StatusCode, writeResult.RelativePath, canonical, page.ContentChecksum, "")
	return res
}

func (s *Scheduler) recordScrape(j job, statusCode int, targetFilename, canonicalURL, checksum, scrapeErr string) error {
	row := store.ScrapedURL{
		URL:             j.url,
		SessionID:       s.session.ID,
		StatusCode:      statusCode,
		TargetFilename:  targetFilename,
		ScrapedAt:       time.Now(),
		Error:           scrapeErr,
		CanonicalURL:    canonicalURL,
		ContentChecksum: checksum,
		Depth:           j.depth,
	}
	if err := s.store.RecordScrape(row); err != nil {
		return err
	}
	if statusCode >= 200 && statusCode < 400 {
		s.pagesSuccess.Add(1)
	}
	return nil
}

func subsetHeaders(result *fetcher.FetchResult) map[string]string {
	headers := make(map[string]string)
	for _, key := range []string{"Content-Type", "Last-Modified", "ETag"} {
		if v := result.Headers.Get(key); v != "" {
			headers[key] = v
		}
	}
	return headers
}

// waitUntil suspends the calling worker until notBefore, honoring
// cancellation — the spec's "per-host delay gate" suspension point.
func (s *Scheduler) waitUntil(ctx context.Context, notBefore time.Time) error {
	d := time.Until(notBefore)
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return ctx.Err()
	}
}
