package llm

// ChatOptions holds per-call generation settings.
type ChatOptions struct {
	Model          string
	Temperature    float32
	TopP           float32
	MaxTokens      int
	Stop           []string
	User           string
	ResponseFormat *ResponseFormat
}

// Option configures a chat call
type Option func(*ChatOptions)

// DefaultOptions returns the baseline options; providers set their own model.
func DefaultOptions() *ChatOptions {
	return &ChatOptions{
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// Apply folds opts into a fresh copy of base.
func Apply(base *ChatOptions, opts ...Option) *ChatOptions {
	o := *base
	for _, opt := range opts {
		opt(&o)
	}
	return &o
}

func WithModel(model string) Option {
	return func(o *ChatOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithTemperature(t float32) Option {
	return func(o *ChatOptions) { o.Temperature = t }
}

func WithTopP(p float32) Option {
	return func(o *ChatOptions) { o.TopP = p }
}

func WithMaxTokens(n int) Option {
	return func(o *ChatOptions) { o.MaxTokens = n }
}

func WithStop(stop ...string) Option {
	return func(o *ChatOptions) { o.Stop = stop }
}

// WithUser tags the request with an end-user id for provider abuse tracking.
func WithUser(user string) Option {
	return func(o *ChatOptions) { o.User = user }
}

// IsJSON reports whether a JSON object response was requested.
func (o *ChatOptions) IsJSON() bool {
	return o.ResponseFormat != nil && o.ResponseFormat.Type == JSONObject
}
