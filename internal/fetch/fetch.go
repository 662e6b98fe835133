// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch materializes catalog entries as local files. Files already
// on disk are skipped unless overwrite is requested; transient failures
// are retried; completed downloads are recorded in a ledger.
package fetch

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/xsfetch/internal/httputil"
	"github.com/pdiddy/xsfetch/pkg/types"
)

// chunkSize is the copy buffer used when streaming a response to disk.
const chunkSize = 16 * 1024

// Outcome is what happened to one entry.
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
	OutcomeCancelled  Outcome = "cancelled" // never attempted after an abort
)

// Item is the per-entry outcome of a fetch.
type Item struct {
	Entry   types.Entry
	Path    string
	Outcome Outcome
	Size    int64
	Err     error
}

// Result holds the outcome of a FetchAll run. Paths and Items are in input
// order regardless of completion order.
type Result struct {
	Paths      []string
	Items      []Item
	Downloaded int
	Skipped    int
	Failed     int
}

// Total returns the number of entries attempted.
func (r *Result) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any entry failed.
func (r *Result) HasFailures() bool {
	return r.Failed > 0
}

// Failures returns the errors of failed items in input order.
func (r *Result) Failures() []error {
	var errs []error
	for _, it := range r.Items {
		if it.Outcome == OutcomeFailed {
			errs = append(errs, it.Err)
		}
	}
	return errs
}

// Observer is called once per entry when it finishes. Calls are
// serialized.
type Observer func(Item)

// DefaultConfig returns the fetch settings used when nothing is
// configured: sequential, three attempts, trust existing files, stop on
// the first failure, keep a ledger.
func DefaultConfig() types.FetchConfig {
	return types.FetchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   10 * time.Minute,
			UserAgent: "xsfetch",
		},
		Attempts:      3,
		Concurrency:   1,
		Verify:        types.VerifyExists,
		FailurePolicy: types.FailAbort,
		Ledger:        true,
	}
}

// Fetcher downloads entries into a destination directory.
type Fetcher struct {
	client   *http.Client
	cfg      types.FetchConfig
	log      *zap.SugaredLogger
	out      io.Writer
	observer Observer
	limiter  *rate.Limiter

	outMu   sync.Mutex
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client. The default honours cfg.Timeout.
func WithClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }

// WithLogger sets the structured logger.
func WithLogger(l *zap.SugaredLogger) Option { return func(f *Fetcher) { f.log = l } }

// WithOutput sets where progress lines are printed. Defaults to io.Discard.
func WithOutput(w io.Writer) Option { return func(f *Fetcher) { f.out = w } }

// WithObserver registers a per-entry completion callback.
func WithObserver(o Observer) Option { return func(f *Fetcher) { f.observer = o } }

// New returns a Fetcher. Zero fields of cfg take the DefaultConfig values.
func New(cfg types.FetchConfig, opts ...Option) *Fetcher {
	def := DefaultConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Verify == "" {
		cfg.Verify = def.Verify
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = def.FailurePolicy
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	f := &Fetcher{
		cfg:   cfg,
		log:   zap.NewNop().Sugar(),
		out:   io.Discard,
		locks: make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return f
}

// Config returns the effective configuration.
func (f *Fetcher) Config() types.FetchConfig { return f.cfg }

// FetchAll materializes entries under destination ("" means the working
// directory) and returns their local paths in input order.
//
// Under the abort policy the first failure cancels the remaining work and
// is returned. Under the continue policy every entry is attempted and the
// failures are returned joined. The Result is always non-nil.
func (f *Fetcher) FetchAll(ctx context.Context, entries []types.Entry, destination string, overwrite bool) (*Result, error) {
	result := &Result{
		Paths: make([]string, len(entries)),
		Items: make([]Item, len(entries)),
	}
	if destination == "" {
		destination = "."
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return result, fmt.Errorf("creating destination %s: %w", destination, err)
	}
	if len(entries) == 0 {
		return result, nil
	}

	var ledger *lazyLedger
	if f.cfg.Ledger {
		ledger = &lazyLedger{destination: destination, log: f.log}
		defer ledger.Close()
	} else if f.cfg.Verify != types.VerifyExists {
		f.log.Warnw("verify mode needs the ledger; existing files will be downloaded again", "verify", f.cfg.Verify)
	}

	abort := f.cfg.FailurePolicy == types.FailAbort
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)

	for i, e := range entries {
		path := filepath.Join(destination, e.LocalFile)
		result.Paths[i] = path
		g.Go(func() error {
			item := f.fetchOne(gctx, ledger, e, path, overwrite)
			result.Items[i] = item
			f.report(item)
			if abort && item.Outcome == OutcomeFailed {
				return item.Err
			}
			return nil
		})
	}
	firstErr := g.Wait()

	for _, it := range result.Items {
		switch it.Outcome {
		case OutcomeDownloaded:
			result.Downloaded++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeFailed:
			result.Failed++
		}
	}
	f.printf("\nBatch summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if abort {
		return result, firstErr
	}
	return result, errors.Join(result.Failures()...)
}

func (f *Fetcher) fetchOne(ctx context.Context, ledger *lazyLedger, e types.Entry, path string, overwrite bool) Item {
	item := Item{Entry: e, Path: path}
	if ctx.Err() != nil {
		item.Outcome = OutcomeCancelled
		item.Err = ctx.Err()
		return item
	}

	unlock := f.lock(path)
	defer unlock()

	if !overwrite {
		if size, ok := f.present(ctx, ledger, e, path); ok {
			item.Outcome = OutcomeSkipped
			item.Size = size
			return item
		}
	}

	attempts := 0
	var size int64
	var digest string
	err := httputil.Retry(ctx, f.cfg.Attempts, f.log, func(attempt int) error {
		attempts = attempt
		if attempt == 1 {
			f.printf("downloading: %s (%s)\n", e.LocalFile, e.URL)
		} else {
			f.printf("retrying:    %s (attempt %d/%d)\n", e.LocalFile, attempt, f.cfg.Attempts)
		}
		var err error
		size, digest, err = f.download(ctx, e.URL, path)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			item.Outcome = OutcomeCancelled
			item.Err = ctx.Err()
			return item
		}
		item.Outcome = OutcomeFailed
		item.Err = &DownloadFailedError{URL: e.URL, Attempts: attempts, Err: err}
		return item
	}

	item.Outcome = OutcomeDownloaded
	item.Size = size
	if l := ledger.get(); l != nil {
		rec := Record{
			LocalFile:    e.LocalFile,
			URL:          e.URL,
			Library:      e.Library,
			Size:         size,
			Digest:       digest,
			DownloadedAt: time.Now(),
		}
		if err := l.Put(ctx, rec); err != nil {
			f.log.Warnw("ledger write failed", "file", e.LocalFile, "error", err)
		}
	}
	return item
}

// present reports whether path holds a file that passes the configured
// skip check.
func (f *Fetcher) present(ctx context.Context, ledger *lazyLedger, e types.Entry, path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	if f.cfg.Verify == types.VerifyExists {
		return info.Size(), true
	}
	l := ledger.get()
	if l == nil {
		return 0, false
	}

	rec, ok, err := l.Get(ctx, e.LocalFile)
	if err != nil {
		f.log.Warnw("ledger read failed", "file", e.LocalFile, "error", err)
		return 0, false
	}
	if !ok || rec.Size != info.Size() {
		f.log.Debugw("existing file does not match ledger", "file", e.LocalFile, "recorded", ok)
		return 0, false
	}
	if f.cfg.Verify == types.VerifyDigest {
		digest, err := HashFile(path)
		if err != nil || digest != rec.Digest {
			f.log.Debugw("digest mismatch", "file", e.LocalFile, "error", err)
			return 0, false
		}
	}
	return info.Size(), true
}

// download fetches url to path using a temporary file in the same
// directory and returns the size and BLAKE3 digest of the body.
func (f *Fetcher) download(ctx context.Context, url, path string) (int64, string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return 0, "", err
		}
	}

	resp, err := httputil.Get(ctx, f.client, url, httputil.Request{
		UserAgent: f.cfg.UserAgent,
		AuthToken: f.cfg.AuthToken,
	})
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".xsfetch-*.tmp")
	if err != nil {
		return 0, "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	hasher := blake3.New()
	n, copyErr := io.CopyBuffer(io.MultiWriter(tmpFile, hasher), resp.Body, make([]byte, chunkSize))
	closeErr := tmpFile.Close()
	if copyErr == nil && resp.ContentLength >= 0 && n != resp.ContentLength {
		copyErr = fmt.Errorf("%w: received %d of %d bytes", io.ErrUnexpectedEOF, n, resp.ContentLength)
	}
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("renaming temp file: %w", err)
	}
	return n, hex.EncodeToString(hasher.Sum(nil)), nil
}

// lazyLedger opens the destination ledger on first use, so a run that
// only trusts existing files never creates it. An open failure is logged
// once and the run continues without a ledger.
type lazyLedger struct {
	destination string
	log         *zap.SugaredLogger

	once   sync.Once
	ledger *Ledger
}

func (z *lazyLedger) get() *Ledger {
	if z == nil {
		return nil
	}
	z.once.Do(func() {
		l, err := OpenLedger(z.destination)
		if err != nil {
			z.log.Warnw("ledger unavailable, continuing without it", "destination", z.destination, "error", err)
			return
		}
		z.ledger = l
	})
	return z.ledger
}

// Close closes the ledger if it was opened. It must not race with get.
func (z *lazyLedger) Close() error {
	if z == nil || z.ledger == nil {
		return nil
	}
	return z.ledger.Close()
}

// lock serializes writers of one destination path.
func (f *Fetcher) lock(path string) func() {
	f.locksMu.Lock()
	mu, ok := f.locks[path]
	if !ok {
		mu = &sync.Mutex{}
		f.locks[path] = mu
	}
	f.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (f *Fetcher) report(it Item) {
	f.outMu.Lock()
	defer f.outMu.Unlock()
	switch it.Outcome {
	case OutcomeSkipped:
		fmt.Fprintf(f.out, "skipped: %s (already exists)\n", it.Entry.LocalFile)
	case OutcomeFailed:
		fmt.Fprintf(f.out, "failed:  %s (%v)\n", it.Entry.LocalFile, it.Err)
	}
	if f.observer != nil {
		f.observer(it)
	}
}

func (f *Fetcher) printf(format string, args ...any) {
	f.outMu.Lock()
	defer f.outMu.Unlock()
	fmt.Fprintf(f.out, format, args...)
}

// HashFile returns the hex BLAKE3 digest of the file at path.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.CopyBuffer(hasher, file, make([]byte, chunkSize)); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
