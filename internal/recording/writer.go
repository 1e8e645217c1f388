package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/irtelemetry/pitcam/internal/model"
	"github.com/irtelemetry/pitcam/internal/queue"
)

const (
	defaultBatchSize  = 500
	defaultQueueLimit = 100000
)

// WriterOptions describes the session being captured.
type WriterOptions struct {
	Name      string
	Source    string
	TrackName string
	// TickRate is the number of frames captured per second.
	TickRate int
	// PollRate is the poll loop rate in Hz. Replay uses it as the reference
	// rate so that one captured frame maps to one tick at normal speed.
	PollRate   float64
	Vars       []string
	BatchSize  int
	QueueLimit int
	Logger     zerolog.Logger
}

// Sample is one tick of captured telemetry.
type Sample struct {
	Time        time.Time
	SessionTime float64
	Values      map[string]any
}

// Writer appends captured frames to a recording session. Rows are queued
// by the caller and written in batches by Flush.
type Writer struct {
	db        *gorm.DB
	logger    zerolog.Logger
	batchSize int

	mu        sync.Mutex
	session   model.RecordingSession
	nextFrame int
	written   int

	frames       *queue.Queue[model.Frame]
	cameraEvents *queue.Queue[model.CameraEvent]
	trackPoints  *queue.Queue[model.TrackPoint]
}

// NewWriter creates the session row. The schema must already be migrated.
func NewWriter(db *gorm.DB, opts WriterOptions) (*Writer, error) {
	if opts.TickRate <= 0 {
		return nil, fmt.Errorf("recording tick rate must be positive, got %d", opts.TickRate)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = defaultQueueLimit
	}

	session := model.RecordingSession{
		UUID:      uuid.NewString(),
		Name:      opts.Name,
		Source:    opts.Source,
		TrackName: opts.TrackName,
		TickRate:  opts.TickRate,
		PollRate:  opts.PollRate,
		StartTime: time.Now().UTC(),
	}
	if err := session.SetVarNames(opts.Vars); err != nil {
		return nil, err
	}
	if err := db.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("creating recording session: %w", err)
	}

	opts.Logger.Info().
		Str("session", session.UUID).
		Int("tickRate", session.TickRate).
		Int("vars", len(opts.Vars)).
		Msg("Recording session started")

	return &Writer{
		db:           db,
		logger:       opts.Logger,
		batchSize:    opts.BatchSize,
		session:      session,
		frames:       queue.NewBounded[model.Frame](opts.QueueLimit),
		cameraEvents: queue.NewBounded[model.CameraEvent](opts.QueueLimit),
		trackPoints:  queue.NewBounded[model.TrackPoint](opts.QueueLimit),
	}, nil
}

// AddSample queues s as the next frame.
func (w *Writer) AddSample(s Sample) error {
	b, err := json.Marshal(s.Values)
	if err != nil {
		return fmt.Errorf("encoding sample: %w", err)
	}

	w.mu.Lock()
	frame := model.Frame{
		SessionID:   w.session.ID,
		FrameNo:     w.nextFrame,
		Time:        s.Time.UTC(),
		SessionTime: s.SessionTime,
		Values:      b,
	}
	w.nextFrame++
	w.mu.Unlock()

	w.frames.Push(frame)
	return nil
}

// AddCameraEvent queues e against the last captured frame.
func (w *Writer) AddCameraEvent(e model.CameraEvent) {
	e.SessionID, e.FrameNo = w.stamp()
	w.cameraEvents.Push(e)
}

// AddTrackPoint queues p against the last captured frame.
func (w *Writer) AddTrackPoint(p model.TrackPoint) {
	p.SessionID, p.FrameNo = w.stamp()
	w.trackPoints.Push(p)
}

func (w *Writer) stamp() (uint, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	frame := w.nextFrame - 1
	if frame < 0 {
		frame = 0
	}
	return w.session.ID, frame
}

// Pending is the number of queued, unwritten rows.
func (w *Writer) Pending() int {
	return w.frames.Len() + w.cameraEvents.Len() + w.trackPoints.Len()
}

// Flush writes all queued rows.
func (w *Writer) Flush() error {
	start := time.Now()

	n, err := flushQueue(w.db, w.frames, w.batchSize)
	w.mu.Lock()
	w.written += n
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("writing frames: %w", err)
	}
	if _, err := flushQueue(w.db, w.cameraEvents, w.batchSize); err != nil {
		return fmt.Errorf("writing camera events: %w", err)
	}
	if _, err := flushQueue(w.db, w.trackPoints, w.batchSize); err != nil {
		return fmt.Errorf("writing track points: %w", err)
	}

	if n > 0 {
		w.logger.Debug().Int("frames", n).Dur("duration", time.Since(start)).Msg("Flushed recording")
	}
	if dropped := w.frames.Dropped(); dropped > 0 {
		w.logger.Warn().Int("dropped", dropped).Msg("Recording queue overflowed")
	}
	return nil
}

func flushQueue[T any](db *gorm.DB, q *queue.Queue[T], batchSize int) (int, error) {
	total := 0
	for !q.Empty() {
		batch := q.TakeBatch(batchSize)
		if len(batch) == 0 {
			break
		}
		if err := db.Omit(clause.Associations).CreateInBatches(&batch, batchSize).Error; err != nil {
			q.Requeue(batch...)
			return total, err
		}
		total += len(batch)
	}
	return total, nil
}

// Run flushes every interval until ctx is done, then flushes once more.
func (w *Writer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.Flush()
		case <-ticker.C:
			if err := w.Flush(); err != nil {
				w.logger.Error().Err(err).Msg("Periodic flush failed")
			}
		}
	}
}

// Close flushes and finalizes the session row.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	w.mu.Lock()
	w.session.RecordCount = w.written
	w.session.EndTime = time.Now().UTC()
	session := w.session
	w.mu.Unlock()

	err := w.db.Model(&model.RecordingSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{"record_count": session.RecordCount, "end_time": session.EndTime}).Error
	if err != nil {
		return fmt.Errorf("finalizing session: %w", err)
	}

	w.logger.Info().Str("session", session.UUID).Int("frames", session.RecordCount).Msg("Recording session closed")
	return nil
}

// Session returns the session row being written.
func (w *Writer) Session() model.RecordingSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}
