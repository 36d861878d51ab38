package notifx

// SendOptions carry provider hints.
type SendOptions struct {
	Tags      map[string]string
	ConfigSet string
}

type Option func(*SendOptions)

// WithTags attaches tags the provider may record with the message.
func WithTags(tags map[string]string) Option {
	return func(o *SendOptions) { o.Tags = tags }
}

// WithConfigSet names a provider configuration set, such as an SES
// configuration set for delivery events.
func WithConfigSet(name string) Option {
	return func(o *SendOptions) { o.ConfigSet = name }
}

// ApplyOptions folds opts for providers.
func ApplyOptions(opts []Option) SendOptions {
	var so SendOptions
	for _, o := range opts {
		o(&so)
	}
	return so
}
