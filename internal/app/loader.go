package app

import (
	"path/filepath"
	"strings"

	"github.com/vk/gridrun/internal/config"
	"github.com/vk/gridrun/internal/hcl"
	"github.com/vk/gridrun/internal/yaml"
)

// LoaderFor picks the pipeline loader matching the given path. A .yml or
// .yaml file gets the YAML compatibility loader; everything else,
// directories included, gets the native HCL loader.
func LoaderFor(path string) config.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return yaml.NewLoader()
	default:
		return hcl.NewLoader()
	}
}
