// Package recording stores captured telemetry sessions in a SQL database
// and replays them through the irsdk.Recording contract.
package recording

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/irtelemetry/pitcam/internal/cache"
	"github.com/irtelemetry/pitcam/internal/database"
	"github.com/irtelemetry/pitcam/internal/model"
	"github.com/irtelemetry/pitcam/pkg/irsdk"
)

// ErrNoSession is returned when the database holds no matching session.
var ErrNoSession = errors.New("recording: no session found")

// ReaderOptions selects what a Reader replays.
type ReaderOptions struct {
	// SessionUUID picks a session; empty means the most recent one.
	SessionUUID   string
	CacheCapacity int
	Logger        zerolog.Logger
}

// Reader replays one recorded session.
type Reader struct {
	mu      sync.Mutex
	opts    ReaderOptions
	db      *database.Manager
	session model.RecordingSession
	vars    []string
	frames  *cache.FrameCache
}

var _ irsdk.Recording = (*Reader)(nil)

func NewReader(opts ReaderOptions) *Reader {
	return &Reader{
		opts:   opts,
		frames: cache.NewFrameCache(opts.CacheCapacity),
	}
}

// Open connects to path (sqlite file or Postgres DSN) and loads the
// session header. The record count is the number of stored frames, and
// frames are addressed by their position in frame_no order so that gaps
// left by a dropped capture do not leave unreachable rows.
func (r *Reader) Open(path string) (irsdk.Header, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		_ = r.db.Close()
	}

	cfg := database.ConfigFor(path)
	if cfg.Type == database.TypeSQLite {
		if _, err := os.Stat(path); err != nil {
			return irsdk.Header{}, fmt.Errorf("opening recording: %w", err)
		}
	}

	db := database.NewManager(r.opts.Logger)
	if err := db.Connect(cfg); err != nil {
		return irsdk.Header{}, err
	}

	session, err := findSession(db.DB, r.opts.SessionUUID)
	if err != nil {
		_ = db.Close()
		return irsdk.Header{}, err
	}

	var count int64
	if err := db.DB.Model(&model.Frame{}).Where("session_id = ?", session.ID).Count(&count).Error; err != nil {
		_ = db.Close()
		return irsdk.Header{}, fmt.Errorf("counting frames: %w", err)
	}

	vars, err := session.VarNames()
	if err != nil {
		_ = db.Close()
		return irsdk.Header{}, err
	}

	r.db = db
	r.session = session
	r.vars = vars
	r.frames.Reset()

	r.opts.Logger.Debug().
		Str("session", session.UUID).
		Int64("frames", count).
		Int("tickRate", session.TickRate).
		Msg("Loaded recording header")

	return irsdk.Header{
		TickRate:      session.TickRate,
		RecordCount:   int(count),
		SessionName:   session.Name,
		ReferenceRate: session.PollRate,
	}, nil
}

func findSession(db *gorm.DB, uuid string) (model.RecordingSession, error) {
	var session model.RecordingSession
	q := db.Model(&model.RecordingSession{})
	if uuid != "" {
		q = q.Where("uuid = ?", uuid)
	}
	err := q.Order("start_time DESC").First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session, ErrNoSession
	}
	if err != nil {
		return session, fmt.Errorf("loading session: %w", err)
	}
	return session, nil
}

// ReadAt returns key at frame. Frames that are missing or fail to decode
// read as absent.
func (r *Reader) ReadAt(frame int, key string) (any, bool) {
	values, ok := r.frame(frame)
	if !ok {
		return nil, false
	}
	v, ok := values[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (r *Reader) frame(frame int) (map[string]any, bool) {
	if frame < 0 {
		return nil, false
	}
	if values, ok := r.frames.Get(frame); ok {
		return values, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil, false
	}

	var f model.Frame
	err := r.db.DB.Where("session_id = ?", r.session.ID).
		Order("frame_no").
		Offset(frame).
		Take(&f).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.opts.Logger.Warn().Err(err).Int("frame", frame).Msg("Failed to load frame")
		}
		return nil, false
	}
	values, err := f.Decode()
	if err != nil {
		r.opts.Logger.Warn().Err(err).Int("frame", frame).Msg("Failed to decode frame")
		return nil, false
	}
	r.frames.Put(frame, values)
	return values, true
}

func (r *Reader) VarNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.vars...)
}

// Session returns the loaded session row.
func (r *Reader) Session() model.RecordingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		r.frames.Reset()
		return nil
	}
	hits, misses := r.frames.Stats()
	r.opts.Logger.Debug().
		Str("session", r.session.UUID).
		Int("cacheHits", hits).
		Int("cacheMisses", misses).
		Msg("Closed recording")
	r.frames.Reset()
	err := r.db.Close()
	r.db = nil
	return err
}
