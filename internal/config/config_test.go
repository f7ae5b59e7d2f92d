package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
session:
  current_user: "me"
server:
  base_url: "http://chat.local"
`), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "me", cfg.Session.CurrentUser)
	assert.Equal(t, 3*time.Second, cfg.Polling.ChatInterval)
	assert.Equal(t, 5*time.Second, cfg.Polling.ChatListInterval)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.SuccessIndicator)
	assert.Equal(t, "trimer-cache-v1", cfg.Cache.Name)
	assert.Equal(t, "/chat/{username}/get-messages/", cfg.Server.MessagesPath)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("CURRENT_USER", "")
	t.Setenv("CHAT_SERVER_URL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: dev\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
