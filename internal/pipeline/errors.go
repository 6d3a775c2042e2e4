package pipeline

// Error taxonomy for the pipeline. Kinds are modeled as unexported structs
// with exported Is* predicates so the serving boundary can map them to
// status codes without importing error values.

// assetLoadError is process-fatal: no job can be served without resident models.
type assetLoadError struct{ msg string }

func (e assetLoadError) Error() string { return "asset load: " + e.msg }

// ErrAssetLoad constructs an assetLoadError.
func ErrAssetLoad(msg string) error { return assetLoadError{msg: msg} }

// IsAssetLoad reports whether err is a model asset load failure.
func IsAssetLoad(err error) bool {
	_, ok := err.(assetLoadError)
	return ok
}

// invalidRequestError rejects a request before any device work starts.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.msg }

func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err is a pre-admission validation failure.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// encodingError signals a prompt the text encoder cannot tokenize.
// Job-level and recoverable: the caller may retry with sanitized input.
type encodingError struct{ msg string }

func (e encodingError) Error() string { return "encoding: " + e.msg }

func ErrEncoding(msg string) error { return encodingError{msg: msg} }

// IsEncoding reports whether err is a tokenization failure.
func IsEncoding(err error) bool {
	_, ok := err.(encodingError)
	return ok
}

// samplingError signals a numeric failure (non-finite values) in the sampler
// or upscaler denoising loops. Fatal to the job, not the process.
type samplingError struct {
	stage string
	msg   string
}

func (e samplingError) Error() string { return "sampling (" + e.stage + "): " + e.msg }

func errSampling(stage, msg string) error { return samplingError{stage: stage, msg: msg} }

// IsSampling reports whether err is a denoising numeric failure.
func IsSampling(err error) bool {
	_, ok := err.(samplingError)
	return ok
}

// decodeError signals a stage contract violation at the frame decoder.
// Indicates an internal pipeline bug; never silently coerced.
type decodeError struct{ msg string }

func (e decodeError) Error() string { return "decode: " + e.msg }

func ErrDecode(msg string) error { return decodeError{msg: msg} }

// IsDecode reports whether err is a decoder contract failure.
func IsDecode(err error) bool {
	_, ok := err.(decodeError)
	return ok
}

// timeoutError signals a stage exceeding its wall-clock ceiling, or a caller
// cancellation observed between denoising steps.
type timeoutError struct {
	stage     string
	cancelled bool
}

func (e timeoutError) Error() string {
	if e.cancelled {
		return "cancelled during " + e.stage
	}
	return "timeout in " + e.stage
}

func errTimeout(stage string) error   { return timeoutError{stage: stage} }
func errCancelled(stage string) error { return timeoutError{stage: stage, cancelled: true} }

// IsTimeout reports whether err is a stage timeout or cancellation.
func IsTimeout(err error) bool {
	_, ok := err.(timeoutError)
	return ok
}

// IsCancelled reports whether err is specifically a caller cancellation.
func IsCancelled(err error) bool {
	te, ok := err.(timeoutError)
	return ok && te.cancelled
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{}

func (tooBusyError) Error() string { return "too busy: job queue full" }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// outputError signals a failure reported by the external encoder collaborator
// after all pipeline stages completed.
type outputError struct{ msg string }

func (e outputError) Error() string { return "output: " + e.msg }

func errOutput(msg string) error { return outputError{msg: msg} }

// IsOutputFailure reports whether err came from the encoder collaborator.
func IsOutputFailure(err error) bool {
	_, ok := err.(outputError)
	return ok
}

// ErrorKind maps a pipeline error to the stable kind string carried by
// JobResult. Unknown errors map to "internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAssetLoad(err):
		return "asset_load"
	case IsInvalidRequest(err):
		return "invalid_request"
	case IsEncoding(err):
		return "encoding"
	case IsSampling(err):
		return "sampling"
	case IsDecode(err):
		return "decode"
	case IsCancelled(err):
		return "cancelled"
	case IsTimeout(err):
		return "timeout"
	case IsTooBusy(err):
		return "too_busy"
	case IsOutputFailure(err):
		return "output"
	default:
		return "internal"
	}
}
