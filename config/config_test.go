package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ManagementHost != "127.0.0.1" {
		t.Errorf("ManagementHost = %v, want 127.0.0.1", cfg.ManagementHost)
	}
	if cfg.ManagementPort != 7505 {
		t.Errorf("ManagementPort = %v, want 7505", cfg.ManagementPort)
	}
	if len(cfg.ACSPorts) != 1 || cfg.ACSPorts[0] != 35001 {
		t.Errorf("ACSPorts = %v, want [35001]", cfg.ACSPorts)
	}
	if cfg.ProbeTimeout.Std() != 30*time.Second {
		t.Errorf("ProbeTimeout = %v, want 30s", cfg.ProbeTimeout.Std())
	}
	if cfg.AuthTimeout.Std() != 3*time.Minute {
		t.Errorf("AuthTimeout = %v, want 3m", cfg.AuthTimeout.Std())
	}
	if cfg.ConnectTimeout != 0 {
		t.Errorf("ConnectTimeout = %v, want 0", cfg.ConnectTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != common.LogFormatAuto {
		t.Errorf("LogFormat = %v, want auto", cfg.LogFormat)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ManagementPort != 7505 {
		t.Errorf("ManagementPort = %v, want default 7505", cfg.ManagementPort)
	}

	// Load must not create the file.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Load() should not write a missing config file")
	}
}

func TestLoad_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `openvpn_path: /usr/local/sbin/openvpn
management_port: 7600
acs_ports: [35001, 35002]
browser_command: firefox
probe_timeout: 15s
auth_timeout: 300
log_level: debug
log_format: json
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.OpenVPNPath != "/usr/local/sbin/openvpn" {
		t.Errorf("OpenVPNPath = %v", cfg.OpenVPNPath)
	}
	if cfg.ManagementPort != 7600 {
		t.Errorf("ManagementPort = %v, want 7600", cfg.ManagementPort)
	}
	if len(cfg.ACSPorts) != 2 || cfg.ACSPorts[1] != 35002 {
		t.Errorf("ACSPorts = %v, want [35001 35002]", cfg.ACSPorts)
	}
	if cfg.BrowserCommand != "firefox" {
		t.Errorf("BrowserCommand = %v, want firefox", cfg.BrowserCommand)
	}
	if cfg.ProbeTimeout.Std() != 15*time.Second {
		t.Errorf("ProbeTimeout = %v, want 15s", cfg.ProbeTimeout.Std())
	}
	if cfg.AuthTimeout.Std() != 300*time.Second {
		t.Errorf("AuthTimeout = %v, want 300s", cfg.AuthTimeout.Std())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %v, want json", cfg.LogFormat)
	}
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("no_such_setting: true\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should reject unknown fields")
	}
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("Load() error = %v, want ErrInvalidInput", err)
	}
}

func TestValidate_FallsBackPerField(t *testing.T) {
	cfg := &Config{
		ManagementPort: -1,
		ACSPorts:       []int{0, 99999},
		ProbeTimeout:   Duration(-time.Second),
		LogLevel:       "loud",
		LogFormat:      "xml",
	}

	cfg.validate()

	if cfg.ManagementHost != "127.0.0.1" {
		t.Errorf("ManagementHost = %v, want default", cfg.ManagementHost)
	}
	if cfg.ManagementPort != 7505 {
		t.Errorf("ManagementPort = %v, want default 7505", cfg.ManagementPort)
	}
	if len(cfg.ACSPorts) != 1 || cfg.ACSPorts[0] != 35001 {
		t.Errorf("ACSPorts = %v, want [35001]", cfg.ACSPorts)
	}
	if cfg.ProbeTimeout.Std() != 30*time.Second {
		t.Errorf("ProbeTimeout = %v, want default 30s", cfg.ProbeTimeout.Std())
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != common.LogFormatAuto {
		t.Errorf("LogFormat = %v, want auto", cfg.LogFormat)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	original := DefaultConfig()
	original.OpenVPNPath = "/opt/openvpn/sbin/openvpn"
	original.ConnectTimeout = Duration(90 * time.Second)

	if err := original.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.OpenVPNPath != original.OpenVPNPath {
		t.Errorf("OpenVPNPath = %v, want %v", loaded.OpenVPNPath, original.OpenVPNPath)
	}
	if loaded.ConnectTimeout.Std() != 90*time.Second {
		t.Errorf("ConnectTimeout = %v, want 90s", loaded.ConnectTimeout.Std())
	}
}
