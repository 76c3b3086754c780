package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrInvalidEvent is returned for events without an ID or kind.
var ErrInvalidEvent = errors.New("history: event id and kind are required")

// Entry is one stored event.
type Entry struct {
	ID          string            `json:"id"`
	Kind        fridge.EventKind  `json:"kind"`
	At          time.Time         `json:"at"`
	Detail      string            `json:"detail,omitempty"`
	Lock        fridge.LockState  `json:"lock"`
	Alarm       fridge.AlarmState `json:"alarm"`
	LockFault   bool              `json:"lock_fault"`
	SensorFault bool              `json:"sensor_fault"`

	// TemperatureC and HumidityPct are nil when no reading existed yet.
	TemperatureC *float64 `json:"temperature_c"`
	HumidityPct  *float64 `json:"humidity_pct"`

	Snapshot fridge.Snapshot `json:"snapshot"`
}

// Store reads and writes the events table.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *Store: Store instance ready for use
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts one event. Recording the same event ID twice is a no-op.
func (s *Store) Record(ctx context.Context, ev fridge.Event) error {
	if ev.ID == "" || ev.Kind == "" {
		return ErrInvalidEvent
	}

	snapJSON, err := json.Marshal(ev.Snapshot)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	var temp, hum sql.NullFloat64
	if ev.Snapshot.HasReading {
		temp = sql.NullFloat64{Float64: ev.Snapshot.Reading.TemperatureC, Valid: true}
		hum = sql.NullFloat64{Float64: ev.Snapshot.Reading.HumidityPct, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events
		 (id, kind, at, detail, lock, alarm, lock_fault, sensor_fault, temperature_c, humidity_pct, snapshot)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		string(ev.Kind),
		ev.At.UTC().Format(timeLayout),
		ev.Detail,
		string(ev.Snapshot.Lock),
		string(ev.Snapshot.Alarm),
		boolToInt(ev.Snapshot.LockFault),
		boolToInt(ev.Snapshot.SensorFault),
		temp,
		hum,
		string(snapJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Entries ordered by time descending (may be empty)
//   - error: nil on success, otherwise the underlying query error
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, at, detail, lock, alarm, lock_fault, sensor_fault, temperature_c, humidity_pct, snapshot
		 FROM events
		 ORDER BY at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e                      Entry
			kind, at, lock, alarm  string
			lockFault, sensorFault int
			temp, hum              sql.NullFloat64
			snapJSON               string
		)
		if err := rows.Scan(&e.ID, &kind, &at, &e.Detail, &lock, &alarm, &lockFault, &sensorFault, &temp, &hum, &snapJSON); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		e.Kind = fridge.EventKind(kind)
		e.Lock = fridge.LockState(lock)
		e.Alarm = fridge.AlarmState(alarm)
		e.LockFault = lockFault != 0
		e.SensorFault = sensorFault != 0
		if temp.Valid {
			e.TemperatureC = &temp.Float64
		}
		if hum.Valid {
			e.HumidityPct = &hum.Float64
		}
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parsing event time: %w", err)
		}
		if err := json.Unmarshal([]byte(snapJSON), &e.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshalling snapshot: %w", err)
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
