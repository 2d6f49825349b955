package storage

import (
	"testing"

	"github.com/objstream/objstream-go/internal/config"
)

func configWithLocalMount(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Mounts = []config.Mount{{
		Prefix:  "file://data",
		Backend: "local",
		Local:   config.LocalMount{Root: t.TempDir()},
	}}
	return cfg
}
