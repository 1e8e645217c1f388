package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// cliOptions are the flags that are not config keys.
type cliOptions struct {
	ConfigDir string
	Debug     bool
	Version   bool
}

// newFlagSet declares the command line. Flags that mirror config keys are
// bound onto viper by config.BindFlags after the file is loaded.
func newFlagSet(out io.Writer) (*pflag.FlagSet, *cliOptions) {
	opts := &cliOptions{}
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [flags]\n\n", AppName)
		fmt.Fprintln(out, "Polls live or recorded sim telemetry and automates pit-stop camera switching.")
		fmt.Fprintln(out)
		fs.PrintDefaults()
	}

	fs.String("file", "", "replay a recording (sqlite file or postgres DSN) instead of the live sim")
	fs.String("playback-speed", "normal", "playback speed: normal, fast or faster")
	fs.Float64("skip", 0, "start playback at this fraction of the recording, 0 to 1")
	fs.String("skip-policy", "wrap", "where --skip=1 lands: wrap (first frame) or clamp (last frame)")
	fs.Bool("record", false, "capture live telemetry into the recording database")
	fs.String("log-level", "info", "log level: debug, info, warn or error")

	fs.StringVar(&opts.ConfigDir, "config", ".", "directory holding "+configFileHint)
	fs.BoolVar(&opts.Debug, "debug", false, "show session, car and player sections in the status screen")
	fs.BoolVar(&opts.Version, "version", false, "print the version and exit")
	return fs, opts
}
