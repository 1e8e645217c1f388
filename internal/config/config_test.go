package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"playback": { "file": "race.db", "speed": "fast" },
		"camera": { "pitLaneGroup": "Pit Lane 3" }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "race.db", viper.GetString("playback.file"))
	assert.Equal(t, "fast", viper.GetString("playback.speed"))
	assert.Equal(t, "Pit Lane 3", viper.GetString("camera.pitLaneGroup"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./pitcamlogs", viper.GetString("logsDir"))
	assert.Equal(t, "1s", viper.GetString("poll.interval"))
	assert.Equal(t, 5, viper.GetInt("poll.retryCeiling"))
	assert.Equal(t, "normal", viper.GetString("playback.speed"))
	assert.Equal(t, "sqlite", viper.GetString("storage.type"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "pitcam", viper.GetString("otel.serviceName"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	// defaults still apply
	assert.Equal(t, 5, GetPollConfig().RetryCeiling)
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetPollConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	pc := GetPollConfig()
	assert.Equal(t, time.Second, pc.Interval)
	assert.Equal(t, 60.0, pc.ReferenceRate)
	assert.Equal(t, 5, pc.RetryCeiling)
}

func TestGetPlaybackConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"playback": { "file": "/tmp/s.db", "speed": "slow", "skipTo": 0.5 }
	}`)))

	pc := GetPlaybackConfig()
	assert.Equal(t, "/tmp/s.db", pc.File)
	assert.Equal(t, "slow", pc.Speed)
	assert.Equal(t, 0.5, pc.SkipTo)
	assert.Equal(t, "wrap", pc.SkipPolicy)
}

func TestGetCameraConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cc := GetCameraConfig()
	assert.True(t, cc.Enabled)
	assert.Equal(t, -1, cc.TrackedCarIdx)
	assert.Equal(t, "Pit Lane", cc.PitLaneGroup)
	assert.Equal(t, "Pit Lane 2", cc.PitStallGroup)
	assert.Equal(t, "Chase", cc.PitExitGroup)
	assert.True(t, cc.DriveThrough)
}

func TestGetCameraConfig_DriveThroughOff(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"camera": {"driveThrough": false}}`)))

	assert.False(t, GetCameraConfig().DriveThrough)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"storage": { "type": "postgres", "dsn": "host=db user=pit" }
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "postgres", sc.Type)
	assert.Equal(t, "host=db user=pit", sc.DSN)
	assert.Equal(t, "./recordings/session.db", sc.Path)
}

func TestGetRecordConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	rc := GetRecordConfig()
	assert.False(t, rc.Enabled)
	assert.Equal(t, DefaultRecordVars, rc.Vars)
	assert.Equal(t, 5*time.Second, rc.FlushInterval)
	assert.Equal(t, 500, rc.BatchSize)
}

func TestGetInfluxAndGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"influx": { "enabled": true, "host": "influx", "org": "team" },
		"graylog": { "enabled": true, "address": "gray:12201" }
	}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "influx", ic.Host)
	assert.Equal(t, "8086", ic.Port)
	assert.Equal(t, "team", ic.Org)

	gc := GetGraylogConfig()
	assert.True(t, gc.Enabled)
	assert.Equal(t, "gray:12201", gc.Address)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestBindFlags_ExplicitFlagOverridesFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"playback": { "speed": "slow", "file": "from-config.db" }
	}`)))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("file", "", "")
	fs.String("playback-speed", "normal", "")
	fs.Float64("skip", 0, "")
	require.NoError(t, fs.Parse([]string{"--playback-speed", "fast"}))
	require.NoError(t, BindFlags(fs))

	pc := GetPlaybackConfig()
	assert.Equal(t, "fast", pc.Speed)
	assert.Equal(t, "from-config.db", pc.File)
}
