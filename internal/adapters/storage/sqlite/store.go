package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PabloGalante/worksession/internal/domain"
)

// Store provides SQLite-backed persistence for work sessions.
type Store struct {
	db *sql.DB
}

var _ domain.Store = (*Store)(nil)

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers, which keeps the read-check-write
	// transactions below atomic.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL DEFAULT '',
		github_url TEXT NOT NULL,
		role_track TEXT NOT NULL,
		level TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		repository TEXT
	);

	CREATE INDEX IF NOT EXISTS sessions_candidate ON sessions (candidate_id, started_at);

	CREATE TABLE IF NOT EXISTS session_stages (
		session_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		PRIMARY KEY (session_id, stage),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS session_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (session_id, seq),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS evidence_packs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		share_id TEXT NOT NULL UNIQUE,
		summary TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sessionStatus returns the status of a session, or ErrSessionNotFound.
func sessionStatus(ctx context.Context, q queryer, id domain.SessionID) (domain.SessionStatus, error) {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, string(id)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select session status: %w", err)
	}
	return domain.SessionStatus(status), nil
}

func requireActive(ctx context.Context, q queryer, id domain.SessionID) error {
	status, err := sessionStatus(ctx, q, id)
	if err != nil {
		return err
	}
	if status != domain.StatusActive {
		return domain.ErrSessionNotActive
	}
	return nil
}

// ─────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────

const sessionColumns = `id, candidate_id, github_url, role_track, level, duration_minutes, status, started_at, ended_at, repository`

func (s *Store) CreateSession(ctx context.Context, session *domain.WorkSession) error {
	var repo sql.NullString
	if session.Repository != nil {
		data, err := json.Marshal(session.Repository)
		if err != nil {
			return fmt.Errorf("encode repository: %w", err)
		}
		repo = sql.NullString{String: string(data), Valid: true}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (`+sessionColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
			string(session.ID), string(session.CandidateID), session.GitHubURL,
			string(session.RoleTrack), string(session.Level), session.DurationMinutes,
			string(session.Status), session.StartedAt, repo,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_stages (session_id, stage, started_at) VALUES (?, ?, ?)`,
			string(session.ID), string(domain.FirstStage), session.StartedAt,
		)
		if err != nil {
			return fmt.Errorf("insert first stage: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.WorkSession, error) {
	var (
		sess                                    domain.WorkSession
		id, candidate, roleTrack, level, status string
		endedAt                                 sql.NullTime
		repo                                    sql.NullString
	)
	err := row.Scan(&id, &candidate, &sess.GitHubURL, &roleTrack, &level,
		&sess.DurationMinutes, &status, &sess.StartedAt, &endedAt, &repo)
	if err != nil {
		return nil, err
	}

	sess.ID = domain.SessionID(id)
	sess.CandidateID = domain.CandidateID(candidate)
	sess.RoleTrack = domain.RoleTrack(roleTrack)
	sess.Level = domain.Level(level)
	sess.Status = domain.SessionStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	if repo.Valid {
		var info domain.RepositoryInfo
		if err := json.Unmarshal([]byte(repo.String), &info); err != nil {
			return nil, fmt.Errorf("decode repository: %w", err)
		}
		sess.Repository = &info
	}
	return &sess, nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.WorkSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, string(id))

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}

func (s *Store) ListSessionsByCandidate(
	ctx context.Context,
	candidateID domain.CandidateID,
	limit int,
) ([]*domain.WorkSession, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE candidate_id = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		string(candidateID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.WorkSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) AbandonSession(ctx context.Context, id domain.SessionID, at time.Time) (*domain.WorkSession, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireActive(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
			string(domain.StatusAbandoned), at, string(id)); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return closeOpenStage(ctx, tx, id, at)
	})
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, id)
}

// ─────────────────────────────────────────
// Stages
// ─────────────────────────────────────────

func (s *Store) ListStageRecords(ctx context.Context, id domain.SessionID) ([]domain.StageRecord, error) {
	if _, err := sessionStatus(ctx, s.db, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, started_at, completed_at FROM session_stages
		 WHERE session_id = ?
		 ORDER BY started_at ASC, rowid ASC`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var out []domain.StageRecord
	for rows.Next() {
		var (
			stage       string
			rec         domain.StageRecord
			completedAt sql.NullTime
		)
		if err := rows.Scan(&stage, &rec.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		rec.SessionID = id
		rec.Stage = domain.Stage(stage)
		if completedAt.Valid {
			t := completedAt.Time
			rec.CompletedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) AdvanceStage(ctx context.Context, id domain.SessionID, from, to domain.Stage, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireActive(ctx, tx, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE session_stages SET completed_at = ?
			 WHERE session_id = ? AND stage = ? AND completed_at IS NULL`,
			at, string(id), string(from),
		)
		if err != nil {
			return fmt.Errorf("close stage: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrStageMismatch
		}

		if to == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_stages (session_id, stage, started_at) VALUES (?, ?, ?)`,
			string(id), string(to), at); err != nil {
			return fmt.Errorf("open stage: %w", err)
		}
		return nil
	})
}

func closeOpenStage(ctx context.Context, tx *sql.Tx, id domain.SessionID, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE session_stages SET completed_at = ? WHERE session_id = ? AND completed_at IS NULL`,
		at, string(id),
	)
	if err != nil {
		return fmt.Errorf("close open stage: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// Events
// ─────────────────────────────────────────

func (s *Store) AppendEvent(ctx context.Context, event *domain.Event) error {
	content, err := domain.EncodeContent(event.Content)
	if err != nil {
		return err
	}

	var seq int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireActive(ctx, tx, event.SessionID); err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM session_events WHERE session_id = ?`,
			string(event.SessionID)).Scan(&seq); err != nil {
			return fmt.Errorf("next event seq: %w", err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO session_events (id, session_id, seq, type, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(event.ID), string(event.SessionID), seq,
			string(event.Type()), string(content), event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	event.Seq = seq
	return nil
}

func (s *Store) ListEvents(ctx context.Context, id domain.SessionID) ([]*domain.Event, error) {
	if _, err := sessionStatus(ctx, s.db, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, type, content, created_at FROM session_events
		 WHERE session_id = ?
		 ORDER BY seq ASC`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			ev                 domain.Event
			evID, typ, content string
		)
		if err := rows.Scan(&evID, &ev.Seq, &typ, &content, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		decoded, err := domain.DecodeContent(domain.EventType(typ), []byte(content))
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", evID, err)
		}
		ev.ID = domain.EventID(evID)
		ev.SessionID = id
		ev.Content = decoded
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────
// Evidence packs
// ─────────────────────────────────────────

func (s *Store) CompleteSession(ctx context.Context, pack *domain.EvidencePack) (*domain.EvidencePack, error) {
	summary, err := json.Marshal(pack.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}

	var existing *domain.EvidencePack
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		status, err := sessionStatus(ctx, tx, pack.SessionID)
		if err != nil {
			return err
		}
		switch status {
		case domain.StatusCompleted:
			existing, err = getPack(ctx, tx, `session_id = ?`, string(pack.SessionID))
			if errors.Is(err, domain.ErrEvidencePackNotFound) {
				return domain.ErrSessionNotActive
			}
			return err
		case domain.StatusAbandoned:
			return domain.ErrSessionNotActive
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO evidence_packs (id, session_id, share_id, summary, generated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			string(pack.ID), string(pack.SessionID), string(pack.ShareID),
			string(summary), pack.GeneratedAt); err != nil {
			return fmt.Errorf("insert evidence pack: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
			string(domain.StatusCompleted), pack.GeneratedAt, string(pack.SessionID)); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return closeOpenStage(ctx, tx, pack.SessionID, pack.GeneratedAt)
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	out := *pack
	out.Summary.Normalize()
	return &out, nil
}

func (s *Store) GetEvidencePackByShareID(ctx context.Context, shareID domain.ShareID) (*domain.EvidencePack, error) {
	return getPack(ctx, s.db, `share_id = ?`, string(shareID))
}

func (s *Store) GetEvidencePackBySessionID(ctx context.Context, sessionID domain.SessionID) (*domain.EvidencePack, error) {
	return getPack(ctx, s.db, `session_id = ?`, string(sessionID))
}

func getPack(ctx context.Context, q queryer, where string, arg string) (*domain.EvidencePack, error) {
	var (
		pack                            domain.EvidencePack
		id, sessionID, shareID, summary string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, session_id, share_id, summary, generated_at FROM evidence_packs WHERE `+where, arg,
	).Scan(&id, &sessionID, &shareID, &summary, &pack.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEvidencePackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan evidence pack: %w", err)
	}

	if err := json.Unmarshal([]byte(summary), &pack.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	pack.Summary.Normalize()
	pack.ID = domain.EvidencePackID(id)
	pack.SessionID = domain.SessionID(sessionID)
	pack.ShareID = domain.ShareID(shareID)
	return &pack, nil
}
