package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "pitcam.cfg.json"

// PollConfig controls the tick loop.
type PollConfig struct {
	Interval      time.Duration `json:"interval" mapstructure:"interval"`
	ReferenceRate float64       `json:"referenceRate" mapstructure:"referenceRate"`
	RetryCeiling  int           `json:"retryCeiling" mapstructure:"retryCeiling"`
}

// PlaybackConfig selects and positions the telemetry source.
type PlaybackConfig struct {
	File   string  `json:"file" mapstructure:"file"`
	Speed  string  `json:"speed" mapstructure:"speed"`
	SkipTo float64 `json:"skipTo" mapstructure:"skipTo"`
	// SkipPolicy is "wrap" or "clamp" and decides where skipTo=1 lands.
	SkipPolicy string `json:"skipPolicy" mapstructure:"skipPolicy"`
}

// CameraConfig holds the camera groups used by pit-stop automation. Groups
// are matched by name against the session's camera list; the numeric
// fallbacks are used when no name matches.
type CameraConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	TrackedCarIdx  int    `json:"trackedCarIdx" mapstructure:"trackedCarIdx"`
	PitLaneGroup   string `json:"pitLaneGroup" mapstructure:"pitLaneGroup"`
	PitStallGroup  string `json:"pitStallGroup" mapstructure:"pitStallGroup"`
	PitExitGroup   string `json:"pitExitGroup" mapstructure:"pitExitGroup"`
	PitLaneGroupID int    `json:"pitLaneGroupId" mapstructure:"pitLaneGroupId"`
	PitStallID     int    `json:"pitStallGroupId" mapstructure:"pitStallGroupId"`
	PitExitGroupID int    `json:"pitExitGroupId" mapstructure:"pitExitGroupId"`
	// DriveThrough restores the previous camera when the car rejoins the
	// track from the pit lane without stopping.
	DriveThrough bool `json:"driveThrough" mapstructure:"driveThrough"`
}

// StorageConfig locates the recording database.
type StorageConfig struct {
	Type string `json:"type" mapstructure:"type"` // sqlite or postgres
	Path string `json:"path" mapstructure:"path"`
	DSN  string `json:"dsn" mapstructure:"dsn"`
}

// RecordConfig controls capture of live telemetry into a recording.
type RecordConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	Vars          []string      `json:"vars" mapstructure:"vars"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	BatchSize     int           `json:"batchSize" mapstructure:"batchSize"`
}

// InfluxConfig holds InfluxDB sink settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// DefaultRecordVars are captured when record.vars is not configured.
var DefaultRecordVars = []string{
	"SessionTime", "SessionNum", "SessionState", "SessionFlags",
	"PlayerCarIdx", "CarIdxTrackSurface", "CarIdxOnPitRoad",
	"CamCarIdx", "CamGroupNumber", "CamCameraNumber",
	"Lat", "Lon", "Alt", "Lap", "LapCompleted", "LapDistPct", "RaceLaps",
	"OnPitRoad", "PitstopActive", "PlayerCarTowTime", "PitRepairLeft", "PitOptRepairLeft",
	"PlayerCarMyIncidentCount", "PlayerCarTeamIncidentCount", "PlayerCarDriverIncidentCount",
	"DriverInfo", "CameraInfo",
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./pitcamlogs")
	viper.SetDefault("statusFile", "")

	viper.SetDefault("poll.interval", "1s")
	viper.SetDefault("poll.referenceRate", 60.0)
	viper.SetDefault("poll.retryCeiling", 5)

	viper.SetDefault("playback.file", "")
	viper.SetDefault("playback.speed", "normal")
	viper.SetDefault("playback.skipTo", 0.0)
	viper.SetDefault("playback.skipPolicy", "wrap")

	viper.SetDefault("camera.enabled", true)
	viper.SetDefault("camera.trackedCarIdx", -1)
	viper.SetDefault("camera.pitLaneGroup", "Pit Lane")
	viper.SetDefault("camera.pitStallGroup", "Pit Lane 2")
	viper.SetDefault("camera.pitExitGroup", "Chase")
	viper.SetDefault("camera.pitLaneGroupId", 0)
	viper.SetDefault("camera.pitStallGroupId", 0)
	viper.SetDefault("camera.pitExitGroupId", 0)
	viper.SetDefault("camera.driveThrough", true)

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.path", "./recordings/session.db")
	viper.SetDefault("storage.dsn", "")

	viper.SetDefault("record.enabled", false)
	viper.SetDefault("record.vars", DefaultRecordVars)
	viper.SetDefault("record.flushInterval", "5s")
	viper.SetDefault("record.batchSize", 500)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "pitcam")
	viper.SetDefault("influx.backupPath", "./pitcamlogs/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "pitcam")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults stay in
// effect when the file cannot be read.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// BindFlags maps command line flags onto their config keys. Flags only
// override the file when they were set explicitly.
func BindFlags(fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"playback.file":       "file",
		"playback.speed":      "playback-speed",
		"playback.skipTo":     "skip",
		"playback.skipPolicy": "skip-policy",
		"logLevel":            "log-level",
		"record.enabled":      "record",
	}
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetPollConfig returns the tick loop settings.
func GetPollConfig() PollConfig {
	return PollConfig{
		Interval:      viper.GetDuration("poll.interval"),
		ReferenceRate: viper.GetFloat64("poll.referenceRate"),
		RetryCeiling:  viper.GetInt("poll.retryCeiling"),
	}
}

// GetPlaybackConfig returns the source selection settings.
func GetPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		File:       viper.GetString("playback.file"),
		Speed:      viper.GetString("playback.speed"),
		SkipTo:     viper.GetFloat64("playback.skipTo"),
		SkipPolicy: viper.GetString("playback.skipPolicy"),
	}
}

// GetCameraConfig returns the pit camera automation settings.
func GetCameraConfig() CameraConfig {
	return CameraConfig{
		Enabled:        viper.GetBool("camera.enabled"),
		TrackedCarIdx:  viper.GetInt("camera.trackedCarIdx"),
		PitLaneGroup:   viper.GetString("camera.pitLaneGroup"),
		PitStallGroup:  viper.GetString("camera.pitStallGroup"),
		PitExitGroup:   viper.GetString("camera.pitExitGroup"),
		PitLaneGroupID: viper.GetInt("camera.pitLaneGroupId"),
		PitStallID:     viper.GetInt("camera.pitStallGroupId"),
		PitExitGroupID: viper.GetInt("camera.pitExitGroupId"),
		DriveThrough:   viper.GetBool("camera.driveThrough"),
	}
}

// GetStorageConfig returns the recording database settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Path: viper.GetString("storage.path"),
		DSN:  viper.GetString("storage.dsn"),
	}
}

// GetRecordConfig returns the capture settings.
func GetRecordConfig() RecordConfig {
	return RecordConfig{
		Enabled:       viper.GetBool("record.enabled"),
		Vars:          viper.GetStringSlice("record.vars"),
		FlushInterval: viper.GetDuration("record.flushInterval"),
		BatchSize:     viper.GetInt("record.batchSize"),
	}
}

// GetInfluxConfig returns the InfluxDB sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetGraylogConfig returns the GELF settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
