// Package config holds the dev server configuration: defaults, the optional
// devserver.yaml file in the served directory, and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort = 8000

	// FileName is looked up inside the served directory.
	FileName = "devserver.yaml"
)

// Config is fixed for the lifetime of the process.
type Config struct {
	Host string `yaml:"host"` // Bind address, empty means all interfaces
	Port int    `yaml:"port"` // TCP port (default: 8000)
	Root string `yaml:"root"` // Served directory (default: directory of the executable)

	OpenBrowser  bool          `yaml:"openBrowser"`  // Open the default browser after startup (default: true)
	BrowserDelay time.Duration `yaml:"browserDelay"` // Delay before opening it (default: 2s)

	Watch            bool          `yaml:"watch"`            // Live reload via /events (default: false)
	DebounceDuration time.Duration `yaml:"debounceDuration"` // File watcher debounce (default: 300ms)

	Compress  bool `yaml:"compress"`  // Gzip responses (default: false)
	Minify    bool `yaml:"minify"`    // Minify HTML/CSS/JS on the fly (default: false)
	AccessLog bool `yaml:"accessLog"` // Log every request (default: true)

	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // Server shutdown timeout (default: 5s)
}

// DefaultConfig returns the configuration used when nothing is overridden.
// Root is left empty; Load fills it in.
func DefaultConfig() Config {
	return Config{
		Port:             DefaultPort,
		OpenBrowser:      true,
		BrowserDelay:     2 * time.Second,
		DebounceDuration: 300 * time.Millisecond,
		AccessLog:        true,
		ShutdownTimeout:  5 * time.Second,
	}
}

// Addr is the host:port the server binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL is what gets opened in the browser.
func (c Config) URL() string {
	return fmt.Sprintf("http://localhost:%d/", c.Port)
}

// Load builds the configuration from defaults, the YAML file in the root
// directory and args, in that order of precedence (flags win).
func Load(args []string) (Config, error) {
	def := DefaultConfig()

	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	host := fs.String("host", def.Host, "The host/IP to bind to (empty for all interfaces)")
	port := fs.Int("port", def.Port, "The port to listen on")
	root := fs.String("root", "", "Directory to serve (default: directory of the executable)")
	open := fs.Bool("open", def.OpenBrowser, "Open the default browser after startup")
	openDelay := fs.Duration("open-delay", def.BrowserDelay, "Delay before opening the browser")
	watch := fs.Bool("watch", def.Watch, "Enable live reload via /events")
	debounce := fs.Duration("debounce", def.DebounceDuration, "File watcher debounce")
	compress := fs.Bool("compress", def.Compress, "Gzip responses")
	minify := fs.Bool("minify", def.Minify, "Minify HTML, CSS and JS on the fly")
	accessLog := fs.Bool("access-log", def.AccessLog, "Log every request")
	shutdown := fs.Duration("shutdown-timeout", def.ShutdownTimeout, "Server shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	dir := *root
	if dir == "" {
		exeDir, err := ExecutableDir()
		if err != nil {
			return Config{}, err
		}
		dir = exeDir
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Config{}, fmt.Errorf("invalid root directory: %w", err)
	}

	cfg := def
	if err := cfg.loadFile(filepath.Join(dir, FileName)); err != nil {
		return Config{}, err
	}
	// The file may not move the root it was found in.
	cfg.Root = dir

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "open":
			cfg.OpenBrowser = *open
		case "open-delay":
			cfg.BrowserDelay = *openDelay
		case "watch":
			cfg.Watch = *watch
		case "debounce":
			cfg.DebounceDuration = *debounce
		case "compress":
			cfg.Compress = *compress
		case "minify":
			cfg.Minify = *minify
		case "access-log":
			cfg.AccessLog = *accessLog
		case "shutdown-timeout":
			cfg.ShutdownTimeout = *shutdown
		}
	})

	cfg.validate()
	return cfg, nil
}

// loadFile overlays path onto c. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// ExecutableDir returns the directory containing the running binary.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// validate ensures configuration values are within reasonable bounds
func (c *Config) validate() {
	if c.Port < 1 || c.Port > 65535 {
		c.Port = DefaultPort
	}

	if c.BrowserDelay < 0 {
		c.BrowserDelay = 0
	}
	if c.BrowserDelay > time.Minute {
		c.BrowserDelay = time.Minute
	}

	if c.DebounceDuration < 10*time.Millisecond {
		c.DebounceDuration = 10 * time.Millisecond
	}
	if c.DebounceDuration > 5*time.Second {
		c.DebounceDuration = 5 * time.Second
	}

	if c.ShutdownTimeout < 1*time.Second {
		c.ShutdownTimeout = 1 * time.Second
	}
	if c.ShutdownTimeout > 60*time.Second {
		c.ShutdownTimeout = 60 * time.Second
	}
}
