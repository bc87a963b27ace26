package rtsp

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the conventional RTSP port named in spec §6.3.
const DefaultPort = 554

// ServerConfig is the on-disk configuration for a describe-server
// instance, decoded the same way sapsrv.Config is: a generic map
// (typically unmarshalled from YAML) run through mapstructure so the
// tagged struct doesn't care whether the source was YAML, a flag set,
// or a hand-built map in a test.
type ServerConfig struct {
	// ListenAddr is host:port to bind; an empty host binds all
	// interfaces. The address is passed to net.Listen unchanged.
	ListenAddr string `mapstructure:"listen_addr"`
	// HTTPEnabled turns on delegated HTTP method handling alongside
	// RTSP on the same listener (spec §4.7's optional HTTP methods).
	HTTPEnabled bool `mapstructure:"http_enabled"`
	// HTTPMethods lists the HTTP methods to accept when HTTPEnabled:
	// any of "get", "post", "put", "delete".
	HTTPMethods []string `mapstructure:"http_methods"`
}

// DefaultServerConfig returns a ServerConfig bound to DefaultPort on all
// interfaces with HTTP support disabled.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{ListenAddr: fmt.Sprintf(":%d", DefaultPort)}
}

// LoadServerConfig reads a YAML config file at path and decodes it into
// a ServerConfig, applying DefaultServerConfig for any field the file
// leaves unset.
func LoadServerConfig(path string) (ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ServerConfig{}, fmt.Errorf("rtsp: parsing config: %w", err)
	}

	cfg := DefaultServerConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return ServerConfig{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return ServerConfig{}, fmt.Errorf("rtsp: decoding config: %w", err)
	}
	return cfg, nil
}

// methodMask translates the config's method name list into a Method
// bitmask for Server.EnableHTTP.
func (c ServerConfig) methodMask() Method {
	var mask Method
	for _, name := range c.HTTPMethods {
		switch name {
		case "get":
			mask |= MethodGet
		case "post":
			mask |= MethodPost
		case "put":
			mask |= MethodPut
		case "delete":
			mask |= MethodDelete
		}
	}
	return mask
}
