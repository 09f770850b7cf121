package catalog

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Holder exposes the active catalog and hot-reloads it when the override
// file changes. Invalid overrides are rejected and the previous catalog
// stays in effect.
type Holder struct {
	current atomic.Value // holds *Catalog
}

// NewHolder loads the catalog from a `catalog.yml` override when present,
// falling back to the compiled-in defaults.
func NewHolder() (*Holder, error) {
	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/gradpath/config")
	v.AddConfigPath("/etc/gradpath")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GRADPATH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cat, err := catalogFromViper(v, fileFound)
	if err != nil {
		return nil, err
	}

	holder := &Holder{}
	holder.current.Store(cat)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := catalogFromViper(v, true)
			if err != nil {
				zap.L().Warn("invalid catalog override ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			zap.L().Info("catalog reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// StaticHolder wraps a fixed catalog with no file watching.
func StaticHolder(c *Catalog) *Holder {
	holder := &Holder{}
	holder.current.Store(c)
	return holder
}

// Get returns the active catalog.
func (h *Holder) Get() *Catalog {
	return h.current.Load().(*Catalog)
}

func catalogFromViper(v *viper.Viper, fileFound bool) (*Catalog, error) {
	if !fileFound || !v.IsSet("features") {
		return New(DefaultPolicies())
	}
	var policies []FeaturePolicy
	if err := v.UnmarshalKey("features", &policies); err != nil {
		return nil, err
	}
	return New(policies)
}
