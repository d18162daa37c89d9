package optimizer

// Report summarises one file for API responses and CLI output.
type Report struct {
	Name               string `json:"name,omitempty" yaml:"name,omitempty"`
	Optimized          bool   `json:"optimized" yaml:"optimized"`
	Format             string `json:"format,omitempty" yaml:"format,omitempty"`
	ContentType        string `json:"contentType" yaml:"content_type"`
	OriginalSize       int64  `json:"originalSize" yaml:"original_size"`
	OptimizedSize      int64  `json:"optimizedSize" yaml:"optimized_size"`
	OriginalSizeHuman  string `json:"originalSizeHuman" yaml:"original_size_human"`
	OptimizedSizeHuman string `json:"optimizedSizeHuman" yaml:"optimized_size_human"`
	ReductionPercent   int    `json:"reductionPercent" yaml:"reduction_percent"`
	Width              int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height             int    `json:"height,omitempty" yaml:"height,omitempty"`
	Placeholder        string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	URL                string `json:"url,omitempty" yaml:"url,omitempty"`
	Output             string `json:"-" yaml:"output,omitempty"`
	Error              string `json:"-" yaml:"error,omitempty"`
}

// NewReport describes the outcome of optimizing src. A nil res means the file
// was passed through untouched.
func NewReport(src Source, res *Result) Report {
	r := Report{
		Name:              src.Name,
		ContentType:       src.MIMEType,
		OriginalSize:      src.Size(),
		OptimizedSize:     src.Size(),
		OriginalSizeHuman: FormatFileSize(src.Size()),
	}
	if res != nil {
		r.Optimized = true
		r.Format = string(res.Format)
		r.ContentType = res.ContentType()
		r.OptimizedSize = res.OptimizedSize
		r.Width = res.Width
		r.Height = res.Height
		r.Placeholder = res.Placeholder
	}
	r.OptimizedSizeHuman = FormatFileSize(r.OptimizedSize)
	r.ReductionPercent = CalculateReduction(r.OriginalSize, r.OptimizedSize)
	return r
}
