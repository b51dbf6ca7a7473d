package tagscan

// Options configures a Get call. The zero value requests neither tags nor
// duration, which Get rejects; start from DefaultOptions instead.
type Options struct {
	// Tags requests tag-field parsing. Defaults to true via DefaultOptions.
	Tags bool
	// Duration requests audio-property/duration parsing. Defaults to true.
	Duration bool
	// Image requests embedded-picture parsing; skipped by default since
	// images can be large and many callers only want text fields.
	Image bool
	// Encoding overrides the default text encoding for formats where the
	// container leaves it ambiguous (ID3v1, ID3v2 latin-1 frames, RIFF
	// INFO, AIFF text chunks). Empty means "latin-1", the format default.
	Encoding string
	// MP3EstimationSeconds bounds how many seconds of audio the MPEG
	// frame-walk duration estimator samples before extrapolating. The
	// legacy implementation this library reimplements exposed this as a
	// process-wide mutable tunable used only by its own tests; here it is
	// a per-call option instead; 0 means "use the default of 30".
	MP3EstimationSeconds int
}

// DefaultOptions returns the Options Get uses when none are supplied:
// tags and duration on, images off, default encoding, 30s estimation bound.
func DefaultOptions() Options {
	return Options{Tags: true, Duration: true, MP3EstimationSeconds: defaultEstimationSeconds}
}

const defaultEstimationSeconds = 30

func (o Options) estimationSeconds() int {
	if o.MP3EstimationSeconds <= 0 {
		return defaultEstimationSeconds
	}

	return o.MP3EstimationSeconds
}
