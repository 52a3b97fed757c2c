package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
	"github.com/ironsheep/board-tracker-mcp/internal/pipeline"
)

//go:embed schema.sql
var schemaSQL string

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// ErrUnknownBoard is returned when a board ID has no recorded acquisition.
var ErrUnknownBoard = errors.New("unknown board")

// Store is a SQLite-backed pipeline.Recorder.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ pipeline.Recorder = (*Store)(nil)

// BoardRecord is one recorded board acquisition.
type BoardRecord struct {
	BoardID    string    `json:"board_id"`
	Generation uint64    `json:"generation"`
	Box        geom.Rect `json:"box"`
	GridSize   int       `json:"grid_size"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// TrackRecord is one recorded track table change.
type TrackRecord struct {
	ID         int64                   `json:"id"`
	BoardID    string                  `json:"board_id"`
	Generation uint64                  `json:"generation"`
	Kind       pipeline.TrackEventKind `json:"kind"`
	Row        int                     `json:"row"`
	Col        int                     `json:"col"`
	Box        geom.Rect               `json:"box"`
	Confidence float64                 `json:"confidence"`
	RecordedAt time.Time               `json:"recorded_at"`
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordBoard stores a board acquisition. Recording the same board ID twice
// replaces the earlier row.
func (s *Store) RecordBoard(ctx context.Context, e pipeline.BoardEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boards (board_id, generation, box_x, box_y, box_width, box_height, grid_size, acquired_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(board_id) DO UPDATE SET
			generation = excluded.generation,
			box_x = excluded.box_x,
			box_y = excluded.box_y,
			box_width = excluded.box_width,
			box_height = excluded.box_height,
			grid_size = excluded.grid_size,
			acquired_at_ns = excluded.acquired_at_ns
	`, e.BoardID, int64(e.Generation), e.Box.X, e.Box.Y, e.Box.W, e.Box.H, e.GridSize, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert board: %w", err)
	}
	return nil
}

// RecordTrack appends a track table change. The board must have been
// recorded first.
func (s *Store) RecordTrack(ctx context.Context, e pipeline.TrackEvent) error {
	box := e.Detection.Box
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO track_events (board_id, generation, kind, region_row, region_col,
			box_x, box_y, box_width, box_height, confidence, recorded_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.BoardID, int64(e.Generation), string(e.Kind), e.Region.Row, e.Region.Col,
		box.X, box.Y, box.W, box.H, e.Detection.Confidence, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert track event: %w", err)
	}
	return nil
}

// Boards returns all recorded boards, oldest first.
func (s *Store) Boards(ctx context.Context) ([]BoardRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT board_id, generation, box_x, box_y, box_width, box_height, grid_size, acquired_at_ns
		FROM boards
		ORDER BY acquired_at_ns, generation
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query boards: %w", err)
	}
	defer rows.Close()

	var out []BoardRecord
	for rows.Next() {
		var (
			b   BoardRecord
			gen int64
			ns  int64
		)
		if err := rows.Scan(&b.BoardID, &gen, &b.Box.X, &b.Box.Y, &b.Box.W, &b.Box.H, &b.GridSize, &ns); err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		b.Generation = uint64(gen)
		b.AcquiredAt = time.Unix(0, ns).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// Board returns the recorded acquisition for boardID.
func (s *Store) Board(ctx context.Context, boardID string) (BoardRecord, error) {
	var (
		b   = BoardRecord{BoardID: boardID}
		gen int64
		ns  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT generation, box_x, box_y, box_width, box_height, grid_size, acquired_at_ns
		FROM boards WHERE board_id = ?
	`, boardID).Scan(&gen, &b.Box.X, &b.Box.Y, &b.Box.W, &b.Box.H, &b.GridSize, &ns)
	if errors.Is(err, sql.ErrNoRows) {
		return BoardRecord{}, fmt.Errorf("%w: %s", ErrUnknownBoard, boardID)
	}
	if err != nil {
		return BoardRecord{}, fmt.Errorf("failed to query board: %w", err)
	}
	b.Generation = uint64(gen)
	b.AcquiredAt = time.Unix(0, ns).UTC()
	return b, nil
}

// TrackEvents returns the changes recorded for boardID in insertion order.
func (s *Store) TrackEvents(ctx context.Context, boardID string) ([]TrackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, board_id, generation, kind, region_row, region_col,
			box_x, box_y, box_width, box_height, confidence, recorded_at_ns
		FROM track_events
		WHERE board_id = ?
		ORDER BY event_id
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track events: %w", err)
	}
	defer rows.Close()

	var out []TrackRecord
	for rows.Next() {
		var (
			r    TrackRecord
			gen  int64
			kind string
			ns   int64
		)
		if err := rows.Scan(&r.ID, &r.BoardID, &gen, &kind, &r.Row, &r.Col,
			&r.Box.X, &r.Box.Y, &r.Box.W, &r.Box.H, &r.Confidence, &ns); err != nil {
			return nil, fmt.Errorf("failed to scan track event: %w", err)
		}
		r.Generation = uint64(gen)
		r.Kind = pipeline.TrackEventKind(kind)
		r.RecordedAt = time.Unix(0, ns).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestTracks replays the events of boardID and returns the last change of
// every region whose final event was not a drop, ordered by row then column.
func (s *Store) LatestTracks(ctx context.Context, boardID string) ([]TrackRecord, error) {
	events, err := s.TrackEvents(ctx, boardID)
	if err != nil {
		return nil, err
	}

	latest := make(map[[2]int]TrackRecord)
	for _, e := range events {
		key := [2]int{e.Row, e.Col}
		if e.Kind == pipeline.TrackDropped {
			delete(latest, key)
			continue
		}
		latest[key] = e
	}

	out := make([]TrackRecord, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sortByRegion(out)
	return out, nil
}

func sortByRegion(rs []TrackRecord) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Row != rs[j].Row {
			return rs[i].Row < rs[j].Row
		}
		return rs[i].Col < rs[j].Col
	})
}
