package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: Password is prompted at runtime and stored in memory - use GetPasswordBytes()
type Config struct {
	Host      string `envconfig:"HOST" default:"127.0.0.1"`
	Port      string `envconfig:"PORT" default:"8080"`
	StorePath string `envconfig:"XDAG_STORE_PATH" default:"./xdaghub-data"`
	// UIToken authenticates the wallet UI. A random token is issued at
	// startup when empty.
	UIToken string `envconfig:"UI_TOKEN"`

	// Network picks the startup environment and RPCURL, when set, replaces
	// its node.
	Network       string `envconfig:"XDAG_NETWORK" default:"mainnet"`
	RPCURL        string `envconfig:"XDAG_RPC_URL"`
	MainnetRPCURL string `envconfig:"XDAG_MAINNET_RPC_URL" default:"https://mainnet-rpc.xdagj.org"`
	TestnetRPCURL string `envconfig:"XDAG_TESTNET_RPC_URL" default:"https://testnet-rpc.xdagj.org"`
	LocalRPCURL   string `envconfig:"XDAG_LOCAL_RPC_URL" default:"http://127.0.0.1:10001"`

	PayCooldownMinutes int `envconfig:"PAY_COOLDOWN_MINUTES" default:"0"`

	AutoLockMinMinutes     int `envconfig:"AUTO_LOCK_MIN_MINUTES" default:"1"`
	AutoLockMaxMinutes     int `envconfig:"AUTO_LOCK_MAX_MINUTES" default:"30"`
	AutoLockDefaultMinutes int `envconfig:"AUTO_LOCK_DEFAULT_MINUTES" default:"15"`

	// VaultScryptN is the scrypt cost of newly sealed vaults.
	VaultScryptN int `envconfig:"VAULT_SCRYPT_N" default:"262144"`

	InscriptionAwardRatio  float64       `envconfig:"INSCRIPTION_AWARD_RATIO" default:"0"`
	InscriptionGroupWindow time.Duration `envconfig:"INSCRIPTION_GROUP_WINDOW" default:"3m"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	c, err := Load()
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Load reads and validates a configuration without touching the global one.
func Load() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks value ranges envconfig cannot express.
func (c *Config) Validate() error {
	if c.AutoLockMinMinutes < 1 || c.AutoLockMinMinutes > c.AutoLockMaxMinutes {
		return fmt.Errorf("invalid auto-lock bounds [%d, %d]", c.AutoLockMinMinutes, c.AutoLockMaxMinutes)
	}
	if c.AutoLockDefaultMinutes < c.AutoLockMinMinutes || c.AutoLockDefaultMinutes > c.AutoLockMaxMinutes {
		return fmt.Errorf("AUTO_LOCK_DEFAULT_MINUTES %d outside [%d, %d]",
			c.AutoLockDefaultMinutes, c.AutoLockMinMinutes, c.AutoLockMaxMinutes)
	}
	if c.VaultScryptN < 2 || c.VaultScryptN&(c.VaultScryptN-1) != 0 {
		return fmt.Errorf("VAULT_SCRYPT_N must be a power of two, got %d", c.VaultScryptN)
	}
	if c.InscriptionAwardRatio < 0 {
		return errors.New("INSCRIPTION_AWARD_RATIO must not be negative")
	}
	if c.InscriptionGroupWindow <= 0 {
		return errors.New("INSCRIPTION_GROUP_WINDOW must be positive")
	}
	if c.PayCooldownMinutes < 0 {
		return errors.New("PAY_COOLDOWN_MINUTES must not be negative")
	}
	if !IsLoopback(c.Host) {
		return fmt.Errorf("HOST must be a loopback address, got %q", c.Host)
	}
	if c.UIToken != "" && len(c.UIToken) < 16 {
		return errors.New("UI_TOKEN must be at least 16 characters")
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// Addr returns the listen address of the HTTP API.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// PayCooldown returns the pause enforced between transfers of one account.
func (c *Config) PayCooldown() time.Duration {
	return time.Duration(c.PayCooldownMinutes) * time.Minute
}

// IsLoopback reports whether host names the local machine only.
func IsLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

var passwordBytes []byte

// PromptForPassword prompts the user for the vault password in the terminal.
// The password is read without echoing (hidden input) and stored in memory.
// Call this at startup before the server begins handling requests.
func PromptForPassword(prompt string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run the app interactively to enter password")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("password cannot be empty")
	}

	ClearPassword()
	passwordBytes = make([]byte, len(raw))
	copy(passwordBytes, raw)
	clear(raw)
	return nil
}

// GetPasswordBytes returns the password stored in memory (from PromptForPassword).
// Returns an error if the password was not set.
// Caller must zero the returned slice after use for security.
func GetPasswordBytes() ([]byte, error) {
	if len(passwordBytes) == 0 {
		return nil, errors.New("password not set: call PromptForPassword at startup")
	}
	out := make([]byte, len(passwordBytes))
	copy(out, passwordBytes)
	return out, nil
}

// ClearPassword zeroes the password held in memory.
func ClearPassword() {
	clear(passwordBytes)
	passwordBytes = nil
}
