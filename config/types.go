package config

type ChatlineConfModel struct {
	LogLevel         string   `mapstructure:"log_level"`
	Mode             string   `mapstructure:"mode"`
	LocalHandle      string   `mapstructure:"local_handle"`
	LoginTokenExpiry string   `mapstructure:"login_token_expiry"`
	Server           Server   `mapstructure:"server"`
	Store            Store    `mapstructure:"store"`
	Media            Media    `mapstructure:"media"`
	Presence         Presence `mapstructure:"presence"`
	Call             Call     `mapstructure:"call"`
	Cursor           Cursor   `mapstructure:"cursor"`
}

type Server struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIPrefix  string `mapstructure:"api_prefix"`
	APIVersion string `mapstructure:"api_version"`
}

// Store points at the shared realtime database holding all durable chat
// state. Driver "memory" keeps everything in-process (local mode and tests).
type Store struct {
	Driver          string `mapstructure:"driver"`
	DatabaseURL     string `mapstructure:"database_url"`
	CredentialsFile string `mapstructure:"credentials_file"`
	AuthToken       string `mapstructure:"auth_token"`
}

type Media struct {
	UploadURL    string `mapstructure:"upload_url"`
	UploadPreset string `mapstructure:"upload_preset"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes"`
}

type Presence struct {
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
	OfflineAfter     int `mapstructure:"offline_after_seconds"`
}

type Call struct {
	RingTimeoutSeconds int `mapstructure:"ring_timeout_seconds"`
}

type Cursor struct {
	Path string `mapstructure:"path"`
}
