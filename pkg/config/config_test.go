package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default("/srv/hub")
	require.NoError(t, c.Validate())
	assert.Equal(t, "/srv/hub/public/users", c.PublicDirectory)
	assert.Equal(t, "127.0.0.1:9900", c.Backend.Address())
	assert.Equal(t, "zdb://hub.grid.tf:9900", c.PublicBackend.Display())
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		errs   string
	}{
		{name: "no public dir", mutate: func(c *Config) { c.PublicDirectory = "" }, errs: "public-directory"},
		{name: "no workers", mutate: func(c *Config) { c.Workers = 0 }, errs: "workers"},
		{name: "no extension", mutate: func(c *Config) { c.AllowedExtensions = nil }, errs: "extension"},
		{name: "bad tool", mutate: func(c *Config) { c.Tool.Kind = "magic" }, errs: "unknown tool"},
		{name: "zflist without binary", mutate: func(c *Config) { c.Tool = Tool{Kind: ToolZflist} }, errs: "tool.binary"},
	} {
		c := Default("/srv")
		tc.mutate(c)
		err := c.Validate()
		require.Errorf(t, err, tc.name)
		assert.Containsf(t, err.Error(), tc.errs, tc.name)
	}
}

func TestLoad(t *testing.T) {
	v := viper.New()
	SetDefaults(v, "/srv")
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
public-directory: /data/users
official-repositories: [tf-official]
backend:
  host: zdb.local
  port: 9900
  namespace: hub
lock-timeout: 5s
metrics:
  influxdb: http://influx:8086
`)))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/data/users", c.PublicDirectory)
	assert.Equal(t, "/srv/workdir/temp", c.WorkDirectory)
	assert.Equal(t, "zdb.local:9900/hub", c.Backend.Address())
	assert.Equal(t, 5*time.Second, c.LockTimeout)
	assert.True(t, c.IsOfficial("tf-official"))
	assert.False(t, c.IsOfficial("bob"))
	assert.Equal(t, ToolNative, c.Tool.Kind)
	assert.Equal(t, "http://influx:8086", c.Metrics.InfluxDB)
	assert.Equal(t, "flisthub", c.Metrics.Database)
	assert.Equal(t, 10*time.Second, c.Metrics.Period)
}

func TestBackendAddress(t *testing.T) {
	assert.Equal(t, "file:///var/blocks", Backend{Path: "/var/blocks"}.Address())
	assert.Equal(t, "[::1]:9900", Backend{Host: "::1", Port: 9900}.Address())
}
