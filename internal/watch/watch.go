// Package watch optimizes images dropped into an inbox directory.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coproportal/imageopt/internal/optimizer"
)

// DefaultDebounce is how long a file must stay quiet before it is processed
const DefaultDebounce = 500 * time.Millisecond

// ErrOverwriteSource is returned when the output path resolves to the input file
var ErrOverwriteSource = errors.New("output would overwrite the source file")

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".avif": true, ".heic": true, ".heif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// IsImageFile reports whether path looks like an image worth processing.
// Hidden and temporary files are skipped.
func IsImageFile(path string) bool {
	base := filepath.Base(path)
	if base == "" || base[0] == '.' || strings.HasSuffix(base, "~") {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(base))]
}

// ProcessFile optimizes the file at path when it needs it and writes the
// outcome to outdir/<basename>.<ext>. Files that are already small and modern
// are copied unchanged. The source is never replaced: ProcessFile fails with
// ErrOverwriteSource when the output would land on it.
func ProcessFile(ctx context.Context, opt *optimizer.Optimizer, path, outdir string) (optimizer.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return optimizer.Report{Name: path}, errors.Wrapf(err, "read %s", path)
	}

	src := optimizer.Source{
		Name:     filepath.Base(path),
		MIMEType: mimetype.Detect(data).String(),
		Data:     data,
	}

	var res *optimizer.Result
	if optimizer.NeedsOptimization(src.Size(), src.MIMEType, opt.Options().Threshold) {
		res, err = opt.Optimize(ctx, src)
		if err != nil {
			report := optimizer.NewReport(src, nil)
			report.Name = path
			return report, errors.Wrapf(err, "optimize %s", path)
		}
	}

	report := optimizer.NewReport(src, res)
	report.Name = path

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	blob := data
	if res != nil {
		ext = res.Format.Extension()
		blob = res.Blob
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(outdir, stem+"."+ext)
	if sameFile(path, out) {
		return report, errors.Wrap(ErrOverwriteSource, out)
	}
	if err := writeFile(out, blob); err != nil {
		return report, err
	}
	report.Output = out

	return report, nil
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// writeFile writes through a temp file so readers never see partial output
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".imageopt-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename to %s", path)
}

// Watcher monitors an inbox directory and optimizes new images into outdir
type Watcher struct {
	inbox    string
	outdir   string
	opt      *optimizer.Optimizer
	debounce time.Duration

	fs      *fsnotify.Watcher
	reports chan optimizer.Report

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// New creates a watcher. outdir is created when missing and must differ from
// inbox, otherwise outputs would be picked up again.
func New(inbox, outdir string, opt *optimizer.Optimizer) (*Watcher, error) {
	inAbs, err := filepath.Abs(inbox)
	if err != nil {
		return nil, errors.Wrap(err, "resolve inbox")
	}
	outAbs, err := filepath.Abs(outdir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve outdir")
	}
	if inAbs == outAbs {
		return nil, errors.New("inbox and output directory must differ")
	}
	if err := os.MkdirAll(outAbs, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsWatcher.Add(inAbs); err != nil {
		fsWatcher.Close()
		return nil, errors.Wrapf(err, "failed to watch folder %s", inAbs)
	}

	return &Watcher{
		inbox:    inAbs,
		outdir:   outAbs,
		opt:      opt,
		debounce: DefaultDebounce,
		fs:       fsWatcher,
		reports:  make(chan optimizer.Report, 100),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// SetDebounce changes the quiet period; call before Run
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Reports delivers one report per processed file. Reports are dropped when
// nobody reads them.
func (w *Watcher) Reports() <-chan optimizer.Report {
	return w.reports
}

// Run processes events until ctx is done, then waits for in-flight files
func (w *Watcher) Run(ctx context.Context) error {
	log.Info().Str("inbox", w.inbox).Str("outdir", w.outdir).Msg("watching inbox")
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsImageFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

// schedule restarts the debounce timer for path
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(ctx, path)
}

// scheduleLocked requires w.mu
func (w *Watcher) scheduleLocked(ctx context.Context, path string) {
	if timer, exists := w.timers[path]; exists && timer.Stop() {
		w.wg.Done()
	}

	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()

		w.mu.Lock()
		// a newer event may already own the entry
		if w.timers[path] == timer {
			delete(w.timers, path)
		}
		w.mu.Unlock()

		w.handle(ctx, path)
	})
	w.timers[path] = timer
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	report, err := ProcessFile(ctx, w.opt, path, w.outdir)
	if err != nil {
		// keep watching, one bad file must not stop the batch
		log.Error().Err(err).Str("file", path).Msg("failed to process image")
		report.Error = err.Error()
	} else {
		log.Info().
			Str("file", path).
			Str("output", report.Output).
			Str("format", report.Format).
			Int("reduction", report.ReductionPercent).
			Msg("image processed")
	}

	select {
	case w.reports <- report:
	default:
	}
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	for path, timer := range w.timers {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	if err := w.fs.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close watcher")
	}
}
