// Package config provides configuration types and loading for stepwise.
package config

// Config is the root configuration struct.
// Top-level groups: Paths, Loop, Backends, Providers, Trace, Profile, Tools.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Loop      LoopConfig      `json:"loop"`
	Backends  []BackendConfig `json:"backends"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Providers ProvidersConfig `json:"providers"`
	Trace     TraceConfig     `json:"trace"`
	Profile   ProfileConfig   `json:"profile"`
	Tools     ToolsConfig     `json:"tools"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	Workspace    string   `json:"workspace" envconfig:"WORKSPACE"`
	SandboxRoots []string `json:"sandboxRoots"`
	BackupDir    string   `json:"backupDir" envconfig:"BACKUP_DIR"`
}

// ---------------------------------------------------------------------------
// Loop – step loop behaviour
// ---------------------------------------------------------------------------

// LoopConfig groups step-loop settings.
type LoopConfig struct {
	MaxSteps        int     `json:"maxSteps" envconfig:"MAX_STEPS"`
	ToolTimeoutSecs int     `json:"toolTimeoutSecs" envconfig:"TOOL_TIMEOUT_SECS"`
	MaxTokens       int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature     float64 `json:"temperature" envconfig:"TEMPERATURE"`
	Persona         string  `json:"persona" envconfig:"PERSONA"`
}

// ---------------------------------------------------------------------------
// Backends – model pool, ordered most-capable to cheapest
// ---------------------------------------------------------------------------

// BackendConfig describes one model backend in the pool.
type BackendConfig struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"` // "openai", "anthropic", "gemini"
	Model       string `json:"model"`
	QuotaPerMin int    `json:"quotaPerMin"`
	RichInput   bool   `json:"richInput"`
}

// DispatchConfig configures the parallel dispatch variant. Models is a
// round-robin list distinct from the primary pool, used to spread cost
// across cheap and expensive tiers.
type DispatchConfig struct {
	Models []string `json:"models"`
}

// ---------------------------------------------------------------------------
// Providers – LLM API keys & endpoints
// ---------------------------------------------------------------------------

// ProvidersConfig contains LLM provider credentials.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai"`
	Anthropic ProviderConfig `json:"anthropic"`
	Gemini    ProviderConfig `json:"gemini"`
}

// ProviderConfig contains settings for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ---------------------------------------------------------------------------
// Trace – step/span persistence and publishing
// ---------------------------------------------------------------------------

// TraceConfig configures the sqlite trace store and the optional Kafka span
// publisher. Empty DBPath disables persistence; empty Brokers disables
// publishing.
type TraceConfig struct {
	DBPath  string   `json:"dbPath" envconfig:"TRACE_DB_PATH"`
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic" envconfig:"TRACE_TOPIC"`
}

// ---------------------------------------------------------------------------
// Profile – user profile/notes store
// ---------------------------------------------------------------------------

// ProfileConfig locates the JSON-backed profile store.
type ProfileConfig struct {
	Path string `json:"path" envconfig:"PROFILE_PATH"`
}

// ---------------------------------------------------------------------------
// Tools – tool-specific behaviour
// ---------------------------------------------------------------------------

// ToolsConfig contains tool-specific settings.
type ToolsConfig struct {
	CriticalFiles []string `json:"criticalFiles"`
	LogPath       string   `json:"logPath" envconfig:"LOG_PATH"`
	SearchBaseURL string   `json:"searchBaseUrl" envconfig:"SEARCH_BASE_URL"`
}

// DefaultConfig returns the baseline configuration used when no config file
// exists yet.
func DefaultConfig() *Config {
	return &Config{
		// SandboxRoots stays empty here: normalize derives it from the
		// workspace so a file that overrides only the workspace still gets
		// a sandbox that covers it.
		Paths: PathsConfig{
			Workspace: "~/stepwise",
		},
		Loop: LoopConfig{
			MaxSteps:        12,
			ToolTimeoutSecs: 60,
			MaxTokens:       4096,
			Temperature:     0.7,
		},
		Backends: []BackendConfig{
			{Name: "primary", Kind: "anthropic", Model: "claude-sonnet-4-5", QuotaPerMin: 50, RichInput: false},
			{Name: "vision", Kind: "gemini", Model: "gemini-2.0-flash", QuotaPerMin: 60, RichInput: true},
			{Name: "fallback", Kind: "openai", Model: "gpt-4o-mini", QuotaPerMin: 200, RichInput: false},
		},
		Dispatch: DispatchConfig{
			Models: []string{"primary", "fallback"},
		},
		Trace: TraceConfig{
			Topic: "stepwise.traces",
		},
		Tools: ToolsConfig{
			CriticalFiles: []string{"config.json", "profile.json", ".env"},
		},
	}
}
