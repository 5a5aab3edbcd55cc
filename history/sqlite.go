package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps history for any number of keys in one SQLite database.
// Rows in runs are only ever appended; undecodable rows are moved to
// runs_corrupt.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the database at path and applies Schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Load returns the runs stored under key, oldest first. Rows that cannot be
// decoded are moved to runs_corrupt; the remaining runs are returned together
// with an error wrapping ErrCorrupt.
func (s *SQLiteStore) Load(key string) (State, error) {
	return s.load(key, true)
}

// Inspect is Load without moving bad rows.
func (s *SQLiteStore) Inspect(key string) (State, error) {
	return s.load(key, false)
}

// rawRun is a runs row scanned without trusting column types.
type rawRun struct {
	seq        int64
	runID      sql.NullString
	created    sql.NullString
	regime     sql.NullString
	tradeCount any
	score      any
	violations sql.NullString
	summary    sql.NullString
}

type badRow struct {
	seq    int64
	reason string
}

func (s *SQLiteStore) load(key string, repair bool) (State, error) {
	rows, err := s.db.Query(`
		SELECT seq, run_id, created_at, regime, trade_count, compliance_score, violations, violation_summary
		FROM runs
		WHERE store_key = ?
		ORDER BY seq ASC`, key)
	if err != nil {
		return Empty(), fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer rows.Close()

	st := Empty()
	var bad []badRow
	for rows.Next() {
		var r rawRun
		if err := rows.Scan(
			&r.seq,
			&r.runID,
			&r.created,
			&r.regime,
			&r.tradeCount,
			&r.score,
			&r.violations,
			&r.summary,
		); err != nil {
			return Empty(), fmt.Errorf("%w: %v", ErrUnreadable, err)
		}

		rec, err := r.decode()
		if err != nil {
			bad = append(bad, badRow{seq: r.seq, reason: err.Error()})
			continue
		}
		st.Append(rec)
	}
	if err := rows.Err(); err != nil {
		return Empty(), fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	rows.Close()

	if len(bad) == 0 {
		return st, nil
	}
	if !repair {
		return st, fmt.Errorf("%w: %d of %d runs under %q: seq %d: %s",
			ErrCorrupt, len(bad), len(bad)+len(st.History), key, bad[0].seq, bad[0].reason)
	}
	if err := s.quarantine(key, bad); err != nil {
		// The bad rows are still in runs, so Save will refuse to write over them.
		return Empty(), fmt.Errorf("%w: %d runs under %q (quarantine: %v)", ErrCorrupt, len(bad), key, err)
	}
	return st, fmt.Errorf("%w: moved %d runs under %q to runs_corrupt: seq %d: %s",
		ErrCorrupt, len(bad), key, bad[0].seq, bad[0].reason)
}

func (r rawRun) decode() (RunRecord, error) {
	rec := RunRecord{
		RunID:  r.runID.String,
		Regime: r.regime.String,
	}

	n, err := asFloat(r.tradeCount)
	if err != nil || n != float64(int(n)) {
		return rec, fmt.Errorf("trade_count: bad value %v", r.tradeCount)
	}
	rec.TradeCount = int(n)

	if rec.ComplianceScore, err = asFloat(r.score); err != nil {
		return rec, fmt.Errorf("compliance_score: %v", err)
	}
	if rec.ComplianceScore < 0 || rec.ComplianceScore > 1 {
		return rec, fmt.Errorf("compliance_score %v out of range", rec.ComplianceScore)
	}

	if r.created.String != "" {
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, r.created.String); err != nil {
			return rec, fmt.Errorf("created_at: %v", err)
		}
	}
	if err := json.Unmarshal([]byte(r.violations.String), &rec.Violations); err != nil {
		return rec, fmt.Errorf("violations: %v", err)
	}
	if err := json.Unmarshal([]byte(r.summary.String), &rec.ViolationSummary); err != nil {
		return rec, fmt.Errorf("violation_summary: %v", err)
	}
	return rec, nil
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	case nil:
		return 0, errors.New("missing")
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func (s *SQLiteStore) quarantine(key string, bad []badRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	at := s.now().UTC().Format(time.RFC3339)
	for _, b := range bad {
		if _, err := tx.Exec(`
			INSERT INTO runs_corrupt
			(store_key, seq, run_id, created_at, regime, trade_count, compliance_score, violations, violation_summary, reason, quarantined_at)
			SELECT store_key, seq, run_id, created_at, regime, trade_count, compliance_score, violations, violation_summary, ?, ?
			FROM runs WHERE store_key = ? AND seq = ?`, b.reason, at, key, b.seq); err != nil {
			return fmt.Errorf("copy run %d: %w", b.seq, err)
		}
		if _, err := tx.Exec(`DELETE FROM runs WHERE store_key = ? AND seq = ?`, key, b.seq); err != nil {
			return fmt.Errorf("remove run %d: %w", b.seq, err)
		}
	}
	return tx.Commit()
}

// Save appends the runs of st that are not stored yet. st must extend what
// Load returned: stored rows are never rewritten, and a state with fewer runs
// than are stored is refused.
func (s *SQLiteStore) Save(key string, st State) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		stored int
		maxSeq sql.NullInt64
	)
	if err := tx.QueryRow(`SELECT COUNT(*), MAX(seq) FROM runs WHERE store_key = ?`, key).Scan(&stored, &maxSeq); err != nil {
		return fmt.Errorf("count runs: %w", err)
	}
	if len(st.History) < stored {
		return fmt.Errorf("history: refusing to shrink %q from %d to %d runs", key, stored, len(st.History))
	}
	next := int64(0)
	if maxSeq.Valid {
		next = maxSeq.Int64 + 1
	}

	stmt, err := tx.Prepare(`
		INSERT INTO runs
		(store_key, seq, run_id, created_at, regime, trade_count, compliance_score, violations, violation_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range st.History[stored:] {
		violations, err := json.Marshal(orEmpty(rec.Violations))
		if err != nil {
			return err
		}
		summary, err := json.Marshal(rec.ViolationSummary)
		if err != nil {
			return err
		}
		created := ""
		if !rec.CreatedAt.IsZero() {
			created = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
		}

		seq := next + int64(i)
		if _, err := stmt.Exec(
			key, seq, rec.RunID, created, rec.Regime, rec.TradeCount,
			rec.ComplianceScore, string(violations), string(summary),
		); err != nil {
			return fmt.Errorf("insert run %d: %w", seq, err)
		}
	}

	return tx.Commit()
}

// Keys lists the store keys that have at least one run.
func (s *SQLiteStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT store_key FROM runs ORDER BY store_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
