package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndYAML(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":8080"
  allowedOrigins: ["http://localhost:5173"]
postgres:
  dsn: "postgres://chat@localhost/ijara"
  maxConns: 8
badger:
  path: "/var/lib/chat"
auth:
  publicKeyPath: "/etc/chat/jwt.pub"
  issuer: "ijara-auth"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.HTTP.AllowedOrigins)
	require.Equal(t, 30*time.Second, cfg.HTTP.RequestTimeout)
	require.Equal(t, int32(8), cfg.Postgres.ToPGConfig().MaxConns)
	require.Equal(t, "chat-service", cfg.Logging.Service)
	require.Equal(t, "std", cfg.Logging.Backend)
	require.Equal(t, 4000, cfg.Chat.MaxMessageLength)
	require.Equal(t, "chat:changes", cfg.Redis.Channel)
	require.False(t, cfg.Redis.Enabled())
	require.Equal(t, 30*time.Second, cfg.Auth.ClockSkew)
	require.False(t, cfg.GRPC.Enabled())
	require.Equal(t, 10*time.Second, cfg.GRPC.RequestTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":8080"
  requestTimeout: 5s
postgres:
  dsn: "postgres://yaml"
badger:
  inMemory: true
`)
	t.Setenv("CHAT_HTTP_ADDR", ":9090")
	t.Setenv("CHAT_POSTGRES_DSN", "postgres://env")
	t.Setenv("CHAT_REDIS_ADDRESS", "redis:6379")
	t.Setenv("CHAT_CHAT_MAX_MESSAGE_LENGTH", "500")
	t.Setenv("CHAT_LOGGING_BACKEND", "zap")
	t.Setenv("CHAT_GRPC_ADDR", ":9091")
	t.Setenv("CHAT_GRPC_REQUEST_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	require.Equal(t, "postgres://env", cfg.Postgres.DSN)
	require.True(t, cfg.Redis.Enabled())
	require.Equal(t, "redis:6379", cfg.Redis.ToRedisConfig().Address)
	require.Equal(t, 500, cfg.Chat.MaxMessageLength)
	require.Equal(t, "zap", cfg.Logging.Backend)
	require.True(t, cfg.Badger.ToBadgerConfig().InMemory)
	require.True(t, cfg.GRPC.Enabled())
	require.Equal(t, ":9091", cfg.GRPC.Addr)
	require.Equal(t, 3*time.Second, cfg.GRPC.RequestTimeout)
}

func TestLoad_Validation(t *testing.T) {
	tests := map[string]string{
		"no http addr": `
postgres: {dsn: "x"}
badger: {inMemory: true}
`,
		"no dsn": `
http: {addr: ":8080"}
badger: {inMemory: true}
`,
		"no badger path": `
http: {addr: ":8080"}
postgres: {dsn: "x"}
`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_UsesConfigPath(t *testing.T) {
	path := writeConfig(t, `
http: {addr: ":7070"}
postgres: {dsn: "x"}
badger: {inMemory: true}
`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.HTTP.Addr)
}
