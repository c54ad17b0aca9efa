package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("COURSEREG_AUTH_JWT_SECRET", "0123456789abcdef-secret")
	t.Setenv("COURSEREG_REGISTRATION_RATE_LIMIT", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0123456789abcdef-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, "registration", cfg.Registration.PhaseName)
	assert.Equal(t, 5, cfg.Registration.RateLimit)
	assert.Equal(t, time.Minute, cfg.Registration.RateLimitWindow)
	assert.Equal(t, 30*time.Minute, cfg.Timetable.CacheTTL)
	assert.Equal(t, "08:00", cfg.Timetable.FirstPeriodAt)
	assert.Equal(t, 45*time.Minute, cfg.Timetable.PeriodLength)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
auth:
  jwt_secret: file-secret-at-least-16
registration:
  phase_name: add-drop
timetable:
  warm_cron: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "add-drop", cfg.Registration.PhaseName)
	assert.Empty(t, cfg.Timetable.WarmCron)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:       ServerConfig{Port: 8080},
			Auth:         AuthConfig{JWTSecret: "0123456789abcdef"},
			Registration: RegistrationConfig{PhaseName: "registration"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"合法", func(c *Config) {}, false},
		{"缺少密钥", func(c *Config) { c.Auth.JWTSecret = "" }, true},
		{"密钥过短", func(c *Config) { c.Auth.JWTSecret = "short" }, true},
		{"端口越界", func(c *Config) { c.Server.Port = 70000 }, true},
		{"阶段名为空", func(c *Config) { c.Registration.PhaseName = "  " }, true},
		{"限流为负", func(c *Config) { c.Registration.RateLimit = -1 }, true},
		{"节次时间格式错误", func(c *Config) { c.Timetable.FirstPeriodAt = "8点" }, true},
		{"时区无效", func(c *Config) { c.Timetable.Timezone = "Mars/Olympus" }, true},
		{"节次时长为负", func(c *Config) { c.Timetable.PeriodLength = -time.Minute }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}
}
