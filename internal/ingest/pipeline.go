package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"certificatePortal/internal/common"
	"certificatePortal/internal/logging"
	"certificatePortal/models"
	"certificatePortal/repository"
)

// Result describes the record set produced by an ingest.
type Result struct {
	RecordCount int
	Generation  string
}

// Notifier is told the new record count after every successful replace.
type Notifier interface {
	RecordsChanged(count int)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(count int)

func (f NotifierFunc) RecordsChanged(count int) { f(count) }

// Pipeline parses uploads, stages them and replaces the record store.
// Replacements are serialized so the staged file always matches the last
// committed record set.
type Pipeline struct {
	mu        sync.Mutex
	store     repository.RecordStore
	stager    *Stager
	notifiers []Notifier
	log       logging.Logger
}

func NewPipeline(store repository.RecordStore, stager *Stager, log logging.Logger, notifiers ...Notifier) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{store: store, stager: stager, notifiers: notifiers, log: log.With("component", "ingest")}
}

// AddNotifier registers n. Not safe for use once the pipeline is serving.
func (p *Pipeline) AddNotifier(n Notifier) {
	p.notifiers = append(p.notifiers, n)
}

// Ingest parses r, replaces the record store and then stages the bytes.
// Nothing is staged when parsing or the replace fails.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader, filename string) (Result, error) {
	if !Supported(filename) {
		return Result{}, common.Wrap(common.ErrIngestion, ErrUnsupportedFormat, "Error processing Excel file")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, common.Wrap(common.ErrIngestion, err, "Error processing Excel file")
	}
	recs, err := Parse(bytes.NewReader(data), filename)
	if err != nil {
		p.log.Warn(ctx, "parse upload failed", "file", filename, "err", err)
		return Result{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var pending *Pending
	if p.stager != nil {
		pending, err = p.stager.Prepare(filename, data)
		if err != nil {
			return Result{}, common.Wrap(common.ErrIngestion, err, "Error processing Excel file")
		}
	}
	res, err := p.replace(ctx, recs, filename)
	if err != nil {
		if pending != nil {
			pending.Discard()
		}
		return Result{}, err
	}
	if pending != nil {
		// The records are committed; a staging failure only loses the copy
		// used by reload and startup.
		path, err := pending.Commit()
		if err != nil {
			p.log.Error(ctx, "stage upload failed", "file", filename, "err", err)
		} else {
			p.log.Debug(ctx, "upload staged", "path", path)
		}
	}
	return res, nil
}

// IngestIfPresent loads the staged file when the store is empty. The bool
// reports whether an ingest happened.
func (p *Pipeline) IngestIfPresent(ctx context.Context) (Result, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.store.Count(ctx)
	if err != nil {
		return Result{}, false, common.Wrap(common.ErrStore, err, "Error reading records")
	}
	if n > 0 {
		p.notify(n)
		return Result{RecordCount: n}, false, nil
	}
	path, err := p.staged()
	if err != nil || path == "" {
		return Result{}, false, err
	}
	res, err := p.ingestFile(ctx, path)
	if err != nil {
		return Result{}, false, err
	}
	return res, true, nil
}

// Reload re-ingests the staged file. With nothing staged the record set is
// replaced by the empty set.
func (p *Pipeline) Reload(ctx context.Context) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, err := p.staged()
	if err != nil {
		return Result{}, err
	}
	if path == "" {
		p.log.Info(ctx, "no staged file, clearing records")
		return p.replace(ctx, []models.Record{}, "")
	}
	return p.ingestFile(ctx, path)
}

func (p *Pipeline) staged() (string, error) {
	if p.stager == nil {
		return "", nil
	}
	path, err := p.stager.Lookup()
	if err != nil {
		return "", common.Wrap(common.ErrIngestion, err, "Error reloading data")
	}
	return path, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, common.Wrap(common.ErrIngestion, err, "Error reloading data")
	}
	defer f.Close()
	recs, err := Parse(f, filepath.Base(path))
	if err != nil {
		return Result{}, err
	}
	return p.replace(ctx, recs, path)
}

func (p *Pipeline) replace(ctx context.Context, recs []models.Record, source string) (Result, error) {
	gen, err := p.store.Replace(ctx, recs)
	if err != nil {
		p.log.Error(ctx, "replace records failed", "source", source, "err", err)
		return Result{}, common.Wrap(common.ErrStore, fmt.Errorf("replace records: %w", err), "Error saving data")
	}
	p.log.Info(ctx, "records replaced", "source", source, "count", len(recs), "generation", gen)
	p.notify(len(recs))
	return Result{RecordCount: len(recs), Generation: gen}, nil
}

func (p *Pipeline) notify(n int) {
	for _, nt := range p.notifiers {
		nt.RecordsChanged(n)
	}
}
