package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServiceSpec describes one managed tunnel service: the systemd unit to
// control and the port it should listen on.
type ServiceSpec struct {
	Kind string `yaml:"kind"`
	Unit string `yaml:"unit"`
	Port int    `yaml:"port"`
}

// ServiceCatalog is the set of tunnel services the panel manages. A catalog
// file can override units and ports per deployment; anything it omits keeps
// the compiled-in default.
type ServiceCatalog struct {
	Services []ServiceSpec `yaml:"services"`
}

// DefaultCatalog returns the built-in service set matching a stock Debian
// host: stunnel4 wrapping sshd on 443, dropbear on 2222 and the x-ui proxy
// panel on 54321.
func DefaultCatalog(stunnelPort, dropbearPort int) ServiceCatalog {
	return ServiceCatalog{
		Services: []ServiceSpec{
			{Kind: "stunnel", Unit: "stunnel4", Port: stunnelPort},
			{Kind: "dropbear", Unit: "dropbear", Port: dropbearPort},
			{Kind: "v2ray", Unit: "x-ui", Port: 54321},
		},
	}
}

// LoadCatalog reads a YAML catalog file and merges it over the defaults.
// A missing path returns the defaults unchanged.
func LoadCatalog(path string, defaults ServiceCatalog) (ServiceCatalog, error) {
	if path == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("read service catalog: %w", err)
	}

	var loaded ServiceCatalog
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return defaults, fmt.Errorf("parse service catalog: %w", err)
	}

	merged := defaults
	for _, svc := range loaded.Services {
		replaced := false
		for i, def := range merged.Services {
			if def.Kind == svc.Kind {
				if svc.Unit != "" {
					merged.Services[i].Unit = svc.Unit
				}
				if svc.Port != 0 {
					merged.Services[i].Port = svc.Port
				}
				replaced = true
				break
			}
		}
		if !replaced {
			return defaults, fmt.Errorf("unknown service kind %q in catalog", svc.Kind)
		}
	}
	return merged, nil
}

// Lookup returns the spec for a service kind, if present.
func (c ServiceCatalog) Lookup(kind string) (ServiceSpec, bool) {
	for _, svc := range c.Services {
		if svc.Kind == kind {
			return svc, true
		}
	}
	return ServiceSpec{}, false
}
