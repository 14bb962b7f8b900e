package scope

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesFromFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config")
	credentialsPath := filepath.Join(dir, "credentials")

	config := `[default]
region = us-east-1

[profile prod]
region = eu-west-1

[sso-session corp]
sso_start_url = https://example.awsapps.com/start

[profile staging]
source_profile = prod
`
	credentials := `[default]
aws_access_key_id = AKIAEXAMPLE

[legacy]
aws_access_key_id = AKIAEXAMPLE2

[prod]
aws_access_key_id = AKIAEXAMPLE3
`
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	require.NoError(t, os.WriteFile(credentialsPath, []byte(credentials), 0o600))

	profiles, err := profilesFromFiles(configPath, credentialsPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "prod", "staging", "legacy"}, profiles)
}

func TestProfilesFromFiles_Missing(t *testing.T) {
	dir := t.TempDir()
	profiles, err := profilesFromFiles(filepath.Join(dir, "config"), filepath.Join(dir, "credentials"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestListProfiles_Env(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(configPath, []byte("[profile only]\nregion = us-west-2\n"), 0o600))
	t.Setenv("AWS_CONFIG_FILE", configPath)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "missing"))

	profiles, err := ListProfiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, profiles)
}
