package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coproportal/imageopt/pkg/metrics"
)

// Source is an uploaded file as the client declared it.
type Source struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the original byte length.
func (s Source) Size() int64 { return int64(len(s.Data)) }

// Result is a fully encoded image. It is never returned partially built.
type Result struct {
	Blob          []byte
	Format        Format
	OriginalSize  int64
	OptimizedSize int64
	Width         int
	Height        int
	// Placeholder is a blurhash of the output, empty unless requested.
	Placeholder string
}

// ContentType returns the MIME type of Blob.
func (r *Result) ContentType() string { return r.Format.MIMEType() }

// Reduction returns the size saving in whole percent.
func (r *Result) Reduction() int { return CalculateReduction(r.OriginalSize, r.OptimizedSize) }

// Optimizer runs the decode, plan, render and encode pipeline. It holds no
// per-call state and may be shared between goroutines.
type Optimizer struct {
	opts    Options
	decoder Decoder
	chain   []Encoder
	caps    Capabilities
}

// Option customises an Optimizer.
type Option func(*Optimizer)

// WithDecoder replaces the image decoder.
func WithDecoder(d Decoder) Option {
	return func(o *Optimizer) { o.decoder = d }
}

// WithChain replaces the encoder fallback chain.
func WithChain(chain ...Encoder) Option {
	return func(o *Optimizer) { o.chain = chain }
}

// WithCapabilities replaces the capability probe.
func WithCapabilities(c Capabilities) Option {
	return func(o *Optimizer) { o.caps = c }
}

// New creates an Optimizer with the default decoder, chain and probe.
func New(opts Options, options ...Option) *Optimizer {
	o := &Optimizer{
		opts:    opts,
		decoder: ImageDecoder{},
		chain:   DefaultChain(),
		caps:    Probe{},
	}
	for _, fn := range options {
		fn(o)
	}
	return o
}

// Options returns the pipeline configuration.
func (o *Optimizer) Options() Options { return o.opts }

// WithOptions returns a copy of o using opts. Used for per-call overrides.
func (o *Optimizer) WithOptions(opts Options) *Optimizer {
	cp := *o
	cp.opts = opts
	return &cp
}

// Formats lists the chain's formats in preference order.
func (o *Optimizer) Formats() []Format {
	out := make([]Format, 0, len(o.chain))
	for _, enc := range o.chain {
		out = append(out, enc.Format)
	}
	return out
}

// Capabilities reports which of the chain's formats the runtime supports.
func (o *Optimizer) Capabilities() map[Format]bool {
	return SupportReport(o.caps, o.Formats()...)
}

// Optimize decodes src, bounds it to the configured dimensions and encodes it
// with the first format in the chain that yields output. Every resource it
// acquires is released before it returns, whatever the outcome.
func (o *Optimizer) Optimize(ctx context.Context, src Source) (*Result, error) {
	start := time.Now()

	res, err := o.optimize(ctx, src)

	status, format, outBytes := "success", "", 0
	if err != nil {
		status = errorStatus(err)
		log.Debug().Err(err).Str("name", src.Name).Str("status", status).Msg("optimization failed")
	} else {
		format, outBytes = string(res.Format), len(res.Blob)
	}
	metrics.RecordOptimization(status, format, time.Since(start).Seconds(), len(src.Data), outBytes)

	return res, err
}

func (o *Optimizer) optimize(ctx context.Context, src Source) (*Result, error) {
	if err := ValidateSource(src); err != nil {
		return nil, err
	}
	if err := o.opts.validate(); err != nil {
		return nil, err
	}

	bm, err := o.decoder.Decode(ctx, src.Data)
	defer bm.Release()
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &DecodeError{MIMEType: src.MIMEType, Err: err}
	}
	if bm == nil || bm.Image == nil {
		return nil, &DecodeError{MIMEType: src.MIMEType, Err: ErrUnsupportedImage}
	}

	plan, err := PlanDimensions(bm.Width(), bm.Height(), o.opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	surface := Render(bm.Image, plan)
	defer surface.Release()
	bm.Release()

	var placeholder string
	if o.opts.Placeholder {
		placeholder = Placeholder(surface.RGBA)
	}

	blob, format, err := o.encode(ctx, surface)
	if err != nil {
		return nil, err
	}

	return &Result{
		Blob:          blob,
		Format:        format,
		OriginalSize:  src.Size(),
		OptimizedSize: int64(len(blob)),
		Width:         plan.Width,
		Height:        plan.Height,
		Placeholder:   placeholder,
	}, nil
}

// encode walks the chain in order and returns the first non-empty blob.
// Failed attempts are logged and skipped; nothing is retried.
func (o *Optimizer) encode(ctx context.Context, s *Surface) ([]byte, Format, error) {
	var (
		tried   []Format
		lastErr error
	)

	for _, enc := range o.chain {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if enc.Probe && !o.caps.Supports(enc.Format) {
			log.Debug().Str("format", string(enc.Format)).Msg("format not supported, skipping")
			continue
		}

		tried = append(tried, enc.Format)
		blob, err := attempt(enc, s.RGBA, o.opts.Quality)
		if err != nil {
			log.Warn().Err(err).Str("format", string(enc.Format)).Msg("encoder failed, trying next format")
			metrics.RecordFallback(string(enc.Format))
			lastErr = err
			continue
		}
		if len(blob) == 0 {
			log.Debug().Str("format", string(enc.Format)).Msg("encoder produced no output")
			metrics.RecordFallback(string(enc.Format))
			continue
		}
		return blob, enc.Format, nil
	}

	err := ErrNoEncoding
	if lastErr != nil {
		err = fmt.Errorf("%w: %v", ErrNoEncoding, lastErr)
	}
	return nil, "", &EncodeError{Attempts: tried, Err: err}
}

func errorStatus(err error) string {
	var (
		ve *ValidationError
		de *DecodeError
		ee *EncodeError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &de):
		return "decode_error"
	case errors.As(err, &ee):
		return "encode_error"
	default:
		return "error"
	}
}
