package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoyama/bakthat/internal/common"
	"github.com/yoyama/bakthat/internal/models"
)

const sampleYAML = `
db_path: /tmp/test-catalog.sqlite
sync:
  api_url: https://mirror.example.com/api
  username: alice
  api_key: sekrit
profiles:
  default:
    access_key: AKIA123
    secret_key: shh
    region_name: us-east-1
    s3_bucket: my-bucket
    glacier_vault: my-vault
    default_destination: s3
    rotation:
      days: 7
      weeks: 4
      months: 6
      first_week_day: saturday
  work:
    access_key: AKIA456
    secret_key: shh2
    region_name: eu-west-1
    s3_bucket: work-bucket
    glacier_vault: work-vault
    default_destination: glacier
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bakthat.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ParsesProfiles(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-catalog.sqlite", cfg.DBPath)
	assert.Equal(t, "https://mirror.example.com/api", cfg.Sync.URL)

	p, err := cfg.Profile("default")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", p.S3Bucket)
	require.NotNil(t, p.Rotation)
	assert.Equal(t, 7, p.Rotation.Days)
	assert.Equal(t, "saturday", p.Rotation.FirstWeekDay)

	work, err := cfg.Profile("work")
	require.NoError(t, err)
	dest, err := work.Destination()
	require.NoError(t, err)
	assert.Equal(t, models.BackendGlacier, dest)
	assert.Nil(t, work.Rotation)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Empty(t, cfg.Profiles)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "profiles: [not a map"))
	require.Error(t, err)
}

func TestProfile_NotFound(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	_, err = cfg.Profile("missing")
	require.ErrorIs(t, err, common.ErrProfileNotFound)
}

func TestProfile_EmptyNameUsesDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	p, err := cfg.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "AKIA123", p.AccessKey)
}

func TestProfile_BackendHash(t *testing.T) {
	p := &Profile{AccessKey: "ak", S3Bucket: "bucket", GlacierVault: "vault"}

	h1 := p.BackendHash(models.BackendS3)
	h2 := p.BackendHash(models.BackendGlacier)

	assert.Len(t, h1, 128, "sha512 hex digest")
	assert.NotEqual(t, h1, h2, "different containers must hash differently")
	assert.Equal(t, h1, p.BackendHash(models.BackendS3), "hash must be stable")
}

func TestProfile_DestinationDefaultsToS3(t *testing.T) {
	p := &Profile{}
	dest, err := p.Destination()
	require.NoError(t, err)
	assert.Equal(t, models.BackendS3, dest)

	p.DefaultDestination = "tape"
	_, err = p.Destination()
	require.Error(t, err)
}
