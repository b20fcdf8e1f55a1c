// Package config loads the collaborator-supplied server options (§6 of the
// spec): service identification strings, paging limits, filesystem
// locations and the admin credential. The core treats admin_user/admin_pass
// as opaque values it never reads.
package config

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Config holds the recognised options from §6.
type Config struct {
	ServiceTitle    string `toml:"service_title"`
	ServiceAbstract string `toml:"service_abstract"`
	ServiceURL      string `toml:"service_url"`

	MaxFeaturesPerRequest int `toml:"max_features_per_request"`

	DBPath     string `toml:"db_path"`
	UploadsDir string `toml:"uploads_dir"`

	AdminUser string `toml:"admin_user"`
	AdminPass string `toml:"admin_pass"`
}

// Default returns the zero-config defaults used when no file is supplied.
func Default() Config {
	return Config{
		ServiceTitle:          "GeoFeatureService",
		ServiceAbstract:       "Lightweight WFS 2.0.0 feature server",
		ServiceURL:            "http://localhost:8080/wfs",
		MaxFeaturesPerRequest: 10000,
		DBPath:                "data/geofeatures.db",
		UploadsDir:            "uploads",
		AdminUser:             "admin",
		AdminPass:             "changeme",
	}
}

var envVarRE = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

// replaceEnvVars substitutes $VAR tokens in the config document with the
// corresponding environment variable's value (empty string if unset).
// Tokens that aren't a valid shell-style identifier (e.g. "$32.78") are
// left untouched.
func replaceEnvVars(r io.Reader) (io.Reader, error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	replaced := envVarRE.ReplaceAllFunc(raw, func(tok []byte) []byte {
		name := string(tok[1:])
		return []byte(os.Getenv(name))
	})

	return bytes.NewReader(replaced), nil
}

// Load reads a TOML config file from path, applying $ENV_VAR substitution,
// and overlays it onto the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	rdr, err := replaceEnvVars(f)
	if err != nil {
		return cfg, err
	}

	raw, err := ioutil.ReadAll(rdr)
	if err != nil {
		return cfg, err
	}

	if _, err := toml.Decode(string(raw), &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
