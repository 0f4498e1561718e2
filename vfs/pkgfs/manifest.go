package pkgfs

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasi-vfs/errors"
)

// ManifestName is the manifest file at the package root.
const ManifestName = "wasi.yaml"

// Manifest describes a package.
type Manifest struct {
	Name       string         `yaml:"name"`
	Entrypoint string         `yaml:"entrypoint"`
	Wasi       WasiAnnotation `yaml:"wasi"`
	Digest     string         `yaml:"digest,omitempty"`
}

// WasiAnnotation holds the arguments and environment a package program
// expects before any user-supplied ones.
type WasiAnnotation struct {
	MainArgs []string `yaml:"main-args,omitempty"`
	// Env entries are "KEY=VALUE"; a bare "KEY" sets an empty value.
	Env []string `yaml:"env,omitempty"`
}

// EnvPairs splits Env into key/value pairs, keeping their order.
func (w WasiAnnotation) EnvPairs() [][2]string {
	pairs := make([][2]string, 0, len(w.Env))
	for _, item := range w.Env {
		k, v, _ := strings.Cut(item, "=")
		pairs = append(pairs, [2]string{k, v})
	}
	return pairs
}

// ParseManifest decodes a wasi.yaml document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Package("parse "+ManifestName, err)
	}
	if m.Entrypoint != "" && !strings.HasPrefix(m.Entrypoint, "/") {
		m.Entrypoint = "/" + m.Entrypoint
	}
	return &m, nil
}
