// Package config loads bakthat's profile-based configuration.
//
// One YAML file holds any number of named profiles (credentials, containers,
// rotation policy), the catalog mirror settings and the local catalog path.
// Lookup order for the file itself: explicit path, -c/-config flag, then
// ~/.bakthat.yml.
package config

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yoyama/bakthat/internal/common"
	"github.com/yoyama/bakthat/internal/models"
)

// DefaultProfile is the profile used when the caller does not name one.
const DefaultProfile = "default"

// Rotation holds grandfather-father-son retention parameters.
type Rotation struct {
	Days         int    `yaml:"days"`
	Weeks        int    `yaml:"weeks"`
	Months       int    `yaml:"months"`
	FirstWeekDay string `yaml:"first_week_day"`
}

// Profile carries the credentials and container names for one account.
type Profile struct {
	AccessKey          string    `yaml:"access_key"`
	SecretKey          string    `yaml:"secret_key"`
	Region             string    `yaml:"region_name"`
	S3Bucket           string    `yaml:"s3_bucket"`
	GlacierVault       string    `yaml:"glacier_vault"`
	DefaultDestination string    `yaml:"default_destination"`
	S3Endpoint         string    `yaml:"s3_endpoint"`
	Rotation           *Rotation `yaml:"rotation"`
}

// Sync configures the remote catalog mirror.
type Sync struct {
	URL      string `yaml:"api_url"`
	Username string `yaml:"username"`
	APIKey   string `yaml:"api_key"`
}

// Config is the root configuration document.
type Config struct {
	DBPath   string              `yaml:"db_path"`
	Sync     Sync                `yaml:"sync"`
	Profiles map[string]*Profile `yaml:"profiles"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.DBPath = filepath.Join(home, ".bakthat.sqlite")
	if c.Profiles == nil {
		c.Profiles = map[string]*Profile{}
	}
}

// Profile returns the named profile, or common.ErrProfileNotFound.
func (c *Config) Profile(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrProfileNotFound, name)
	}
	return p, nil
}

// Container returns the remote container name for the given backend.
func (p *Profile) Container(b models.Backend) string {
	if b == models.BackendGlacier {
		return p.GlacierVault
	}
	return p.S3Bucket
}

// BackendHash fingerprints the credentials+container pair so that records
// from different accounts or containers sharing one catalog stay apart.
func (p *Profile) BackendHash(b models.Backend) string {
	sum := sha512.Sum512([]byte(p.AccessKey + p.Container(b)))
	return hex.EncodeToString(sum[:])
}

// Destination resolves the profile's default backend, falling back to s3.
func (p *Profile) Destination() (models.Backend, error) {
	if p.DefaultDestination == "" {
		return models.BackendS3, nil
	}
	return models.ParseBackend(p.DefaultDestination)
}
