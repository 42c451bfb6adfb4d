package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mcdev12/watchroom/go/internal/room/coordinator"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, coordinator.DefaultConfig(), cfg.Room)

	ob := cfg.outboxConfig("lobby")
	require.Equal(t, "lobby", ob.RoomID)
	require.Equal(t, 1024, ob.QueueSize)
}

func TestLoadConfigOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
room:
  ready_up_deadline: 15
  exempt_joiners_from_deadline: true
outbox:
  queue_size: 64
connections:
  send_buffer_size: 32
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 15.0, cfg.Room.ReadyUpDeadline)
	require.True(t, cfg.Room.ExemptJoinersFromDeadline)
	require.Equal(t, coordinator.DefaultConfig().SyncTolerance, cfg.Room.SyncTolerance)
	require.Equal(t, 64, cfg.outboxConfig("x").QueueSize)
	require.Equal(t, 32, cfg.connectionConfig().SendBufferSize)
}

func TestLoadConfigRejectsInvalidRoom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("room:\n  sync_tolerance: -1\n"), 0o600))

	_, err := loadConfig(path)
	require.Error(t, err)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("WATCHROOM_TEST_INT", "7")
	t.Setenv("WATCHROOM_TEST_BOOL", "true")
	t.Setenv("WATCHROOM_TEST_BAD", "nope")

	require.Equal(t, 7, getEnvAsInt("WATCHROOM_TEST_INT", 1))
	require.Equal(t, 1, getEnvAsInt("WATCHROOM_TEST_BAD", 1))
	require.True(t, getEnvAsBool("WATCHROOM_TEST_BOOL", false))
	require.False(t, getEnvAsBool("WATCHROOM_TEST_BAD", false))
	require.Equal(t, "fallback", getEnv("WATCHROOM_TEST_UNSET", "fallback"))
}
