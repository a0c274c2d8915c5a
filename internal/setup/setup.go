// Package setup registers the stdio MCP server with a desktop MCP client.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	// ServerName is the key the server is registered under
	ServerName = "biomatch"
	// BinaryName is the stdio MCP server executable
	BinaryName = "mcp-server"
	// DataDirEnv configures the server's data directory
	DataDirEnv = "BIOMATCH_DATA_DIR"
)

// ClientConfig is the desktop client configuration file.
// Keys other than mcpServers are preserved on save.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry is a single MCP server launch definition
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for registration
type Options struct {
	ConfigPath string // defaults to DefaultConfigPath
	BinaryPath string // searched for when empty
	DataDir    string // omitted from the entry when empty
}

// DefaultConfigPath returns the desktop client's config file for this OS
func DefaultConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// Load reads the client configuration; a missing file is an empty config
func Load(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		MCPServers: make(map[string]ServerEntry),
		extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerEntry)
	}
	return cfg, nil
}

// Save writes the configuration, creating its directory
func Save(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]interface{}, len(cfg.extra)+1)
	for k, v := range cfg.extra {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the server entry and returns it
func Register(opts Options) (*ServerEntry, error) {
	path, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = findBinary(); err != nil {
			return nil, fmt.Errorf("could not find server binary: %w", err)
		}
	} else if binary, err = filepath.Abs(binary); err != nil {
		return nil, err
	}

	entry := ServerEntry{Command: binary}
	if opts.DataDir != "" {
		entry.Env = map[string]string{DataDirEnv: opts.DataDir}
	}
	cfg.MCPServers[ServerName] = entry

	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return &entry, nil
}

// findBinary looks on PATH, then in common install locations
func findBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + BinaryName,
		"./bin/" + BinaryName,
		filepath.Join(home, ".local", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", BinaryName)
}

// Status describes the current registration
type Status struct {
	ConfigPath string   `json:"config_path"`
	Registered bool     `json:"registered"`
	Command    string   `json:"command,omitempty"`
	DataDir    string   `json:"data_dir"`
	Issues     []string `json:"issues,omitempty"`
}

// Inspect reports whether the server is registered and runnable
func Inspect(configPath string) (*Status, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	status := &Status{ConfigPath: path, DataDir: DefaultDataDir()}
	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "server is not registered")
		return status, nil
	}

	status.Registered = true
	status.Command = entry.Command
	if dir := entry.Env[DataDirEnv]; dir != "" {
		status.DataDir = dir
	}

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case runtime.GOOS != "windows" && info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	return status, nil
}

// DefaultDataDir mirrors the server's default data directory
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".biomatch")
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultConfigPath()
}
