package sessions

// Config holds configuration for conversation stores
type Config struct {
	// DefaultModel is recorded on conversations created without a model
	DefaultModel string

	// DefaultTitle is the title a conversation carries until its first user message
	DefaultTitle string

	// MaxHistory is the maximum number of messages to keep per conversation
	// 0 means unlimited
	MaxHistory int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DefaultTitle: DefaultTitle,
		MaxHistory:   0, // Unlimited by default
	}
}

func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	if c.DefaultModel != "" {
		out.DefaultModel = c.DefaultModel
	}
	if c.DefaultTitle != "" {
		out.DefaultTitle = c.DefaultTitle
	}
	out.MaxHistory = c.MaxHistory
	return out
}
