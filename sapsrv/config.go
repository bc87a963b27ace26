// Package sapsrv wraps the protocol-only sap package with the multicast
// socket and scope handling a real SAP daemon needs: which zones to join
// (link/site/org/global per the scope flags on the teacher's sapdump
// command), which interface to bind, and config-file loading.
package sapsrv

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for a SAP service instance.
type Config struct {
	// Scopes names the multicast zones to join: "link", "site", "org",
	// "global" and/or "v4" (teacher's sapdump -4/-6/-group flags,
	// promoted from CLI-only flags into a reusable config struct).
	Scopes []string `mapstructure:"scopes"`
	// SendScopes names the multicast zones to announce locally
	// registered sessions on, independently of Scopes: a host may need
	// to listen on more zones than it is authorized to announce into.
	// Empty means "same as Scopes".
	SendScopes []string `mapstructure:"send_scopes"`
	// Interface, if set, restricts multicast group membership to this
	// network interface instead of the system default.
	Interface string `mapstructure:"interface"`
	// Port is the UDP port to listen/announce on; 0 means SAPPort.
	Port int `mapstructure:"port"`
	// BandwidthBps is decoded from the config file but not read by New or
	// the engine; the announcement interval is always computed with
	// sap.DefaultBandwidthBps.
	BandwidthBps int `mapstructure:"bandwidth_bps"`
	// Channels is a list of session names decoded from the config file;
	// New does not read it, and no filter is applied from it automatically.
	Channels []string `mapstructure:"channels"`
}

// DefaultConfig returns a Config with the default "global" and "v4" scopes
// and SAPPort, bandwidth and channel list left at their zero value.
func DefaultConfig() Config {
	return Config{Scopes: []string{"global", "v4"}, Port: SAPPort}
}

// LoadConfig reads a YAML config file at path and decodes it into a
// Config, applying DefaultConfig for any field the file leaves unset.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("sapsrv: parsing config: %w", err)
	}

	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("sapsrv: decoding config: %w", err)
	}
	return cfg, nil
}
