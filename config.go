package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the client configuration.
//
// Sources, highest priority first:
//  1. command line flags;
//  2. environment (including .env);
//  3. the YAML file named by -config or FLUXPAY_CONFIG;
//  4. env-default tags.
type Config struct {
	ServerURL string `yaml:"server_url" env:"SERVER_URL" env-default:"http://localhost:8080/api"`
	Email     string `yaml:"email"      env:"FLUXPAY_EMAIL"`
	Password  string `yaml:"password"   env:"FLUXPAY_PASSWORD"`

	Env      string `yaml:"env"       env:"APP_ENV"   env-default:"development"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFile  string `yaml:"log_file"  env:"LOG_FILE"`

	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"15s"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"REFRESH_TIMEOUT" env-default:"10s"`
	RetryReads     bool          `yaml:"retry_reads"     env:"RETRY_READS"`
}

// loadConfig builds the configuration and returns the remaining positional
// arguments (the command). It returns flag.ErrHelp when -h was given.
func loadConfig(args []string, stderr io.Writer) (*Config, []string, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	fs := flag.NewFlagSet("fluxpay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(fs) }

	flagConfig := fs.String("config", "", "YAML config file (or FLUXPAY_CONFIG env)")
	flagServerURL := fs.String(
		"server-url",
		"",
		"Ledger API base URL (default: http://localhost:8080/api or SERVER_URL env)",
	)
	flagEmail := fs.String("email", "", "Sign-in email (or FLUXPAY_EMAIL env)")
	flagPassword := fs.String("password", "", "Sign-in password (or FLUXPAY_PASSWORD env)")
	flagLogLevel := fs.String("log-level", "", "debug, info, warning or error (or LOG_LEVEL env)")
	flagLogFile := fs.String("log-file", "", "Also write logs to this file (or LOG_FILE env)")
	flagTimeout := fs.Duration("timeout", 0, "Per-request timeout (or REQUEST_TIMEOUT env)")
	flagRetryReads := fs.Bool(
		"retry-reads",
		false,
		"Retry reads rejected with 429 Too Many Requests (or RETRY_READS env)",
	)

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := readConfig(getConfig(*flagConfig, "FLUXPAY_CONFIG", ""))
	if err != nil {
		return nil, nil, err
	}

	// Priority: flag > env > file > default
	cfg.ServerURL = getConfig(*flagServerURL, "", cfg.ServerURL)
	cfg.Email = getConfig(*flagEmail, "", cfg.Email)
	cfg.Password = getConfig(*flagPassword, "", cfg.Password)
	cfg.LogLevel = getConfig(*flagLogLevel, "", cfg.LogLevel)
	cfg.LogFile = getConfig(*flagLogFile, "", cfg.LogFile)
	if *flagTimeout > 0 {
		cfg.RequestTimeout = *flagTimeout
	}
	if *flagRetryReads {
		cfg.RetryReads = true
	}

	if err := validateServerURL(cfg.ServerURL); err != nil {
		return nil, nil, fmt.Errorf("invalid SERVER_URL: %w", err)
	}

	return cfg, fs.Args(), nil
}

func readConfig(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env: %w", err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
	}
	// ReadConfig overlays the environment on top of the file.
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return &cfg, nil
}

// getConfig returns value with priority: flag > env > default.
// An empty envKey skips the environment lookup.
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envKey == "" {
		return defaultValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// warnPlainHTTP prints a warning when tokens would travel unencrypted.
func warnPlainHTTP(w io.Writer, serverURL string) {
	if !strings.HasPrefix(strings.ToLower(serverURL), "http://") {
		return
	}
	fmt.Fprintln(
		w,
		"⚠️  WARNING: Using HTTP instead of HTTPS. Passwords and tokens will be transmitted in plaintext!",
	)
	fmt.Fprintln(
		w,
		"⚠️  This is only safe for local development. Use HTTPS in production.",
	)
	fmt.Fprintln(w)
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "Usage: fluxpay [flags] [command [args...]]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Without a command, commands are read line by line from stdin.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	printCommands(out)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	fs.PrintDefaults()
}
