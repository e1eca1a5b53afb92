// Package paginate walks the site's paginated listings. Two
// termination strategies exist: listings whose first page states the
// total page count, and listings that only reveal a "next page" link
// one page at a time.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lunaboxd/lib/report"
	"lunaboxd/lib/scrapers/letterboxd/core"
)

var tracer = otel.Tracer("scrapers/letterboxd/paginate")

const (
	// ResultsPerPage is how many records the site puts on one listing page.
	ResultsPerPage = 20

	// NoLimit collects every record the listing has.
	NoLimit = -1

	// DefaultLookahead is how many page fetches may be in flight at
	// once while walking a listing with a known page count.
	DefaultLookahead = 4
)

// FetchFunc fetches one page of a listing as a parsed document.
type FetchFunc func(ctx context.Context, page int) (*goquery.Document, error)

// ExtractFunc pulls the records out of one listing page.
type ExtractFunc[T any] func(doc *goquery.Document) ([]T, error)

// KnownLastPage walks a listing whose first page exposes the total
// page count in its pagination control.
type KnownLastPage[T any] struct {
	Fetch   FetchFunc
	Extract ExtractFunc[T]
	// NoResults recognizes an empty listing from its first page, e.g.
	// a "no tags yet" heading. Optional.
	NoResults func(doc *goquery.Document) bool
	// Limit caps the number of records collected. NoLimit (or any
	// negative value) collects everything; zero collects nothing.
	Limit int
	// Lookahead bounds concurrent page fetches, DefaultLookahead when
	// zero or negative.
	Lookahead int
	// Report receives walk diagnostics, report.NoopAPI{} when unset.
	Report report.API
}

// CollectKnownLastPage fetches pages 1..min(lastPage,
// ceil(limit/pageSize)) and returns their records concatenated in
// strict page order. Pages after the first are fetched with bounded
// look-ahead concurrency and reassembled into page order, so record
// order never depends on fetch completion order. The concatenation is
// truncated to the limit afterwards: page boundaries do not line up
// with arbitrary limits, so the last page is always fetched whole. A
// not-found first page means an empty listing, not an error.
func CollectKnownLastPage[T any](ctx context.Context, p KnownLastPage[T]) ([]T, error) {
	ctx, span := tracer.Start(ctx, "CollectKnownLastPage")
	defer span.End()

	rep := p.Report
	if rep == nil {
		rep = report.NoopAPI{}
	}

	first, err := p.Fetch(ctx, 1)
	if err != nil {
		var notFound core.NotFoundError
		if errors.As(err, &notFound) {
			span.AddEvent("listing does not exist")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch first page")
		return nil, err
	}
	if p.NoResults != nil && p.NoResults(first) {
		span.AddEvent("no results")
		return nil, nil
	}

	lastPage := LastPage(first)
	if p.Limit == 0 {
		return nil, nil
	}

	pageStop := lastPage
	if p.Limit > 0 {
		wanted := (p.Limit + ResultsPerPage - 1) / ResultsPerPage
		if wanted < pageStop {
			pageStop = wanted
		}
	}
	span.SetAttributes(
		attribute.Int("last_page", lastPage),
		attribute.Int("page_stop", pageStop),
	)
	rep.ReportDebug("walking listing", lastPage, pageStop)

	out, err := p.Extract(first)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract first page")
		return nil, err
	}

	if pageStop > 1 {
		lookahead := p.Lookahead
		if lookahead <= 0 {
			lookahead = DefaultLookahead
		}

		// each page writes its own slot, so reassembly is just a scan
		// in index order
		fetched := make([][]T, pageStop+1)
		var errList []error
		errLock := sync.Mutex{}
		wg := sync.WaitGroup{}
		sem := make(chan struct{}, lookahead)

		for page := 2; page <= pageStop; page++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(page int) {
				defer wg.Done()
				defer func() { <-sem }()

				doc, err := p.Fetch(ctx, page)
				if err != nil {
					errLock.Lock()
					defer errLock.Unlock()
					errList = append(errList, fmt.Errorf("page %d: %w", page, err))
					return
				}
				records, err := p.Extract(doc)
				if err != nil {
					errLock.Lock()
					defer errLock.Unlock()
					errList = append(errList, fmt.Errorf("page %d: %w", page, err))
					return
				}
				fetched[page] = records
			}(page)
		}
		wg.Wait()

		if len(errList) > 0 {
			err := errors.Join(errList...)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch pages")
			return nil, err
		}
		for page := 2; page <= pageStop; page++ {
			out = append(out, fetched[page]...)
		}
	}

	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	rep.ReportCount("paginate.records", int64(len(out)))
	return out, nil
}

// SentinelLink walks a listing that reveals pages one at a time
// through a "next page" link.
type SentinelLink[T any] struct {
	Fetch   FetchFunc
	Extract ExtractFunc[T]
	// NoResults recognizes an empty listing from its first page. Optional.
	NoResults func(doc *goquery.Document) bool
	// HasNext reports whether a page links to a successor. Defaults to
	// the package HasNext.
	HasNext func(doc *goquery.Document) bool
	// Report receives walk diagnostics, report.NoopAPI{} when unset.
	Report report.API
}

// CollectSentinelLink fetches pages sequentially until one carries no
// "next page" link; the next page's existence is unknown until the
// current page is parsed, so there is nothing to parallelize. This
// strategy applies no record limit: the listings it serves are walked
// to exhaustion.
func CollectSentinelLink[T any](ctx context.Context, p SentinelLink[T]) ([]T, error) {
	ctx, span := tracer.Start(ctx, "CollectSentinelLink")
	defer span.End()

	hasNext := p.HasNext
	if hasNext == nil {
		hasNext = HasNext
	}
	rep := p.Report
	if rep == nil {
		rep = report.NoopAPI{}
	}

	var out []T
	for page := 1; ; page++ {
		doc, err := p.Fetch(ctx, page)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, fmt.Sprintf("failed to fetch page %d", page))
			return nil, err
		}
		if page == 1 && p.NoResults != nil && p.NoResults(doc) {
			span.AddEvent("no results")
			return nil, nil
		}

		records, err := p.Extract(doc)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, fmt.Sprintf("failed to extract page %d", page))
			return nil, err
		}
		out = append(out, records...)

		if !hasNext(doc) {
			span.SetAttributes(attribute.Int("pages", page))
			rep.ReportDebug("walked listing", page)
			rep.ReportCount("paginate.records", int64(len(out)))
			return out, nil
		}
	}
}

// LastPage reads the total page count from a document's pagination
// control. Documents without the control are single pages.
func LastPage(doc *goquery.Document) int {
	pagination := doc.Find("div.pagination").First()
	if pagination.Length() == 0 {
		return 1
	}

	text := pagination.Find("li.paginate-page").Last().Find("a").First().Text()
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// HasNext reports whether the document links to a next page.
func HasNext(doc *goquery.Document) bool {
	return doc.Find("a.next").Length() > 0
}
