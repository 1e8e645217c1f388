package telemetry

import (
	"fmt"
	"log/slog"

	"github.com/irtelemetry/pitcam/internal/recording"
	"github.com/irtelemetry/pitcam/pkg/irsdk"
)

// Options selects and configures the store for this run.
type Options struct {
	// File switches to recorded playback when set.
	File          string
	Speed         string
	SkipTo        float64
	SkipPolicy    SkipPolicy
	ReferenceRate float64
	Logger        *slog.Logger

	// Recording overrides the recording reader. Defaults to the database
	// backed reader.
	Recording irsdk.Recording
	// Live overrides the live handle source. Defaults to irsdk.NewLive.
	Live func() (irsdk.Handle, error)
}

// New returns the one store for this run: a RecordedStore when File is set,
// a LiveStore otherwise. Playback options are validated here so a bad speed
// or skip fraction fails at startup.
func New(opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.File != "" {
		rec := opts.Recording
		if rec == nil {
			rec = recording.NewReader(recording.ReaderOptions{})
		}
		store, err := NewRecordedStore(rec, opts.File, RecordedOptions{
			Speed:         opts.Speed,
			SkipTo:        opts.SkipTo,
			SkipPolicy:    opts.SkipPolicy,
			ReferenceRate: opts.ReferenceRate,
			Logger:        logger.With("source", "recorded"),
		})
		if err != nil {
			return nil, fmt.Errorf("error configuring playback of %s: %w", opts.File, err)
		}
		return store, nil
	}

	newLive := opts.Live
	if newLive == nil {
		newLive = irsdk.NewLive
	}
	h, err := newLive()
	if err != nil {
		return nil, fmt.Errorf("error creating live handle: %w", err)
	}
	return NewLiveStore(h, logger.With("source", "live")), nil
}

// Capture reads keys from the store for the current tick, skipping absent
// ones.
func Capture(s Store, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := s.Read(k); ok {
			out[k] = v
		}
	}
	return out
}
