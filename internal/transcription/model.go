package transcription

import "context"

// Params are the decoding parameters handed to every Session run.
type Params struct {
	// Language is empty for auto-detection.
	Language      string
	Translate     bool
	Threads       int
	Temperature   float32
	InitialPrompt string
	Debug         bool
}

// Token is one decoded token. Unreadable tokens carry no usable probability.
type Token struct {
	Text        string
	Probability float32
	Readable    bool
}

// RawSegment is a segment as reported by the inference backend, with times
// relative to the samples passed to Run.
type RawSegment struct {
	StartMS uint64
	EndMS   uint64
	Text    string
	Tokens  []Token
}

// Hooks are invoked synchronously by a Session on the goroutine that called Run.
// Nil hooks are skipped.
type Hooks struct {
	Progress func(percent int)
	Segment  func(RawSegment)
	Abort    func() bool
}

// Model holds loaded weights. Implementations must allow concurrent NewSession calls.
type Model interface {
	NewSession() (Session, error)
	Close() error
}

// Session is per-call decoder state. A session is used by one goroutine at a time.
type Session interface {
	// Run decodes 16 kHz mono samples. When Hooks.Abort reports true the
	// session stops and returns ErrAborted.
	Run(ctx context.Context, samples []float32, params Params, hooks Hooks) ([]RawSegment, error)
	Close() error
}

// LanguageReporter is implemented by sessions that detect the spoken language.
type LanguageReporter interface {
	DetectedLanguage() string
}

// Loader loads a model for a validated config.
type Loader func(Config) (Model, error)
