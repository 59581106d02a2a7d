package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "bakthat.yml", "-p", "default"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c", "bakthat.yml"},
		},
		{
			name:         "long flag with equals",
			args:         []string{"--config=alt.yml", "-p", "default"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=alt.yml"},
		},
		{
			name:         "both forms present, order preserved",
			args:         []string{"--config=first.yml", "-c", "second.yml", "-x", "1"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=first.yml", "-c", "second.yml"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{},
		},
		{
			name:         "flag without value at end is kept as-is",
			args:         []string{"-c"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c"},
		},
		{
			name:         "flag followed by another flag keeps only the flag",
			args:         []string{"-c", "-notvalue"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterArgs(tc.args, tc.allowedFlags)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExcludeArgs(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		excludedFlags []string
		want          []string
	}{
		{
			name:          "short flag with separate value removed",
			args:          []string{"-c", "bakthat.yml", "backup", "/tmp/data"},
			excludedFlags: []string{"-c", "-config"},
			want:          []string{"backup", "/tmp/data"},
		},
		{
			name:          "equals form removed",
			args:          []string{"--config=alt.yml", "show", "-t", "docs"},
			excludedFlags: []string{"-c", "--config"},
			want:          []string{"show", "-t", "docs"},
		},
		{
			name:          "nothing to exclude",
			args:          []string{"ls", "-d", "glacier"},
			excludedFlags: []string{"-c", "--config"},
			want:          []string{"ls", "-d", "glacier"},
		},
		{
			name:          "excluded flag followed by another flag drops only the flag",
			args:          []string{"-c", "-d", "s3"},
			excludedFlags: []string{"-c"},
			want:          []string{"-d", "s3"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExcludeArgs(tc.args, tc.excludedFlags)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConfigFileFlags(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"bakthat", "-c", "custom.yml", "backup", "/tmp/data"}
	assert.Equal(t, "custom.yml", ConfigFileFlags())

	os.Args = []string{"bakthat", "backup", "/tmp/data"}
	assert.Equal(t, "", ConfigFileFlags())
}
