package domain

// Config mirrors ~/.opsagent/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version"`
	Server              ServerSettings    `yaml:"server"`
	Preferences         Preferences       `yaml:"preferences"`
	Models              []ModelDefinition `yaml:"models"`
	Registry            RegistrySettings  `yaml:"registry"`
	Security            SecuritySettings  `yaml:"security"`
	Execution           ExecutionSettings `yaml:"execution"`
	History             HistorySettings   `yaml:"history"`
}

// ServerSettings configures the HTTP/WebSocket listener.
// AllowedOrigins lists browser origins accepted for WebSocket and API calls;
// "*" accepts any origin.
type ServerSettings struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// Preferences captures model selection.
type Preferences struct {
	ActiveModel  string `yaml:"active_model,omitempty"`
	DefaultModel string `yaml:"default_model"`
}

// RegistrySettings points at the target registry file.
type RegistrySettings struct {
	Path string `yaml:"path"`
}

// SecuritySettings defines advisory guardrail behavior.
type SecuritySettings struct {
	Enabled   bool   `yaml:"enabled"`
	RulesFile string `yaml:"rules_file"`
}

// ExecutionSettings controls how remote commands run.
// Durations use Go duration syntax ("10m", "15s"); "0" disables a bound.
type ExecutionSettings struct {
	CommandTimeout     string `yaml:"command_timeout"`
	ConnectTimeout     string `yaml:"connect_timeout"`
	InstructionTimeout string `yaml:"instruction_timeout"`
	KnownHostsFile     string `yaml:"known_hosts,omitempty"`
}

// HistorySettings controls session history retention.
type HistorySettings struct {
	RecentInteractions int             `yaml:"recent_interactions"`
	GraceWindow        string          `yaml:"grace_window"`
	Archive            ArchiveSettings `yaml:"archive"`
}

// ArchiveSettings configures the durable interaction archive.
type ArchiveSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}
