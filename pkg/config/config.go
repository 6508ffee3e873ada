package config

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WebSocketConfig holds WebSocket-specific configuration
type WebSocketConfig struct {
	WriteTimeout time.Duration // Timeout for writing messages to WebSocket
	ReadTimeout  time.Duration // Timeout for reading messages from WebSocket (keepalive)
	PingInterval time.Duration // Interval for sending ping messages
}

// LoopbackConfig drives the in-process simulated call SDK.
type LoopbackConfig struct {
	StepDelay  time.Duration
	FailJoins  int
	EchoSender string
}

// LogFileConfig controls the rotating log file used for diagnostic reports.
type LogFileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type Config struct {
	// Server configuration
	HTTPAddr string
	LogLevel string
	LogFile  LogFileConfig

	// Storage
	DataDir   string
	ExportDir string

	// Room overrides; empty values fall back to the stored settings
	RoomID    string
	RoomEnv   string
	RoomRole  string
	AuthToken string

	AutoStart bool

	WebSocket WebSocketConfig
	Loopback  LoopbackConfig
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "meeting-client")
	}
	return ".meeting-client"
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		HTTPAddr:  ":8080",
		LogLevel:  "info",
		DataDir:   dataDir,
		ExportDir: filepath.Join(dataDir, "exports"),
		LogFile: LogFileConfig{
			Path:       filepath.Join(dataDir, "logs", "meeting-client.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},

		// WebSocket defaults
		WebSocket: WebSocketConfig{
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  3 * time.Minute,
			PingInterval: 60 * time.Second,
		},

		Loopback: LoopbackConfig{
			StepDelay: 500 * time.Millisecond,
		},
	}
}

// Load builds the configuration from defaults, then environment variables,
// then the flags in args. The flags are registered on fs.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := Default()
	cfg.loadEnv(os.Getenv)

	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP server address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFile.Path, "log-file", cfg.LogFile.Path, "Rotating log file (empty to disable)")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the settings database")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Directory for exported log reports")
	fs.StringVar(&cfg.RoomID, "room", cfg.RoomID, "Room ID to join")
	fs.StringVar(&cfg.RoomEnv, "env", cfg.RoomEnv, "Room environment")
	fs.StringVar(&cfg.RoomRole, "role", cfg.RoomRole, "Role to join with")
	fs.StringVar(&cfg.AuthToken, "token", cfg.AuthToken, "Auth token for the room")
	fs.BoolVar(&cfg.AutoStart, "join", cfg.AutoStart, "Join the room on startup")
	fs.DurationVar(&cfg.Loopback.StepDelay, "step-delay", cfg.Loopback.StepDelay, "Delay between simulated join stages")
	fs.IntVar(&cfg.Loopback.FailJoins, "fail-joins", cfg.Loopback.FailJoins, "Number of simulated joins that fail")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadEnv(getenv func(string) string) {
	if addr := getenv("HTTP_ADDR"); addr != "" {
		c.HTTPAddr = addr
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if dir := getenv("DATA_DIR"); dir != "" {
		c.DataDir = dir
		c.ExportDir = filepath.Join(dir, "exports")
		c.LogFile.Path = filepath.Join(dir, "logs", "meeting-client.log")
	}
	if file := getenv("LOG_FILE"); file != "" {
		c.LogFile.Path = file
	}
	if dir := getenv("EXPORT_DIR"); dir != "" {
		c.ExportDir = dir
	}
	if room := getenv("ROOM_ID"); room != "" {
		c.RoomID = room
	}
	if env := getenv("ROOM_ENV"); env != "" {
		c.RoomEnv = env
	}
	if role := getenv("ROOM_ROLE"); role != "" {
		c.RoomRole = role
	}
	if token := getenv("AUTH_TOKEN"); token != "" {
		c.AuthToken = token
	}
	if v := getenv("LOG_MAX_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LogFile.MaxSizeMB = n
		}
	}
	if v := getenv("LOG_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LogFile.MaxBackups = n
		}
	}

	// WebSocket configuration from environment variables (timeout values in seconds)
	if timeout := getenv("WEBSOCKET_WRITE_TIMEOUT"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil {
			c.WebSocket.WriteTimeout = time.Duration(seconds) * time.Second
		}
	}
	if timeout := getenv("WEBSOCKET_READ_TIMEOUT"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil {
			c.WebSocket.ReadTimeout = time.Duration(seconds) * time.Second
		}
	}
	if interval := getenv("WEBSOCKET_PING_INTERVAL"); interval != "" {
		if seconds, err := strconv.Atoi(interval); err == nil {
			c.WebSocket.PingInterval = time.Duration(seconds) * time.Second
		}
	}

	if delay := getenv("LOOPBACK_STEP_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			c.Loopback.StepDelay = d
		}
	}
	if fails := getenv("LOOPBACK_FAIL_JOINS"); fails != "" {
		if n, err := strconv.Atoi(fails); err == nil {
			c.Loopback.FailJoins = n
		}
	}
	if sender := getenv("LOOPBACK_ECHO_SENDER"); sender != "" {
		c.Loopback.EchoSender = sender
	}
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return ErrMissingHTTPAddr
	}
	if c.DataDir == "" {
		return ErrMissingDataDir
	}
	if c.ExportDir == "" {
		return ErrMissingExportDir
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return ErrInvalidKeepalive
	}
	if c.Loopback.StepDelay < 0 || c.Loopback.FailJoins < 0 {
		return ErrInvalidLoopback
	}
	return nil
}
