package tournament

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Tournament is a shared seeded session players compete on.
type Tournament struct {
	ID        string    `json:"id"`
	Seed      string    `json:"seed"` // canonical seed token, limit suffix included
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result is one player's submitted outcome for a tournament.
type Result struct {
	TournamentID string `json:"tournamentId"`
	UserID       string `json:"userId"`
	Correct      int    `json:"correct"`
	Played       int    `json:"played"`
	ElapsedMs    int    `json:"elapsedMs"`
}

// LBRow is one leaderboard entry.
type LBRow struct {
	UserID    string `json:"userId"`
	Correct   int    `json:"correct"`
	Played    int    `json:"played"`
	ElapsedMs int    `json:"elapsedMs"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Create registers a tournament for a seed token.
func (s *Store) Create(ctx context.Context, seed, createdBy string) (Tournament, error) {
	t := Tournament{
		ID:        uuid.NewString(),
		Seed:      seed,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tournaments (id, seed, created_by, created_at) VALUES (?,?,?,?)`,
		t.ID, t.Seed, t.CreatedBy, t.CreatedAt.Format(time.RFC3339),
	)
	return t, err
}

// Get loads a tournament by id.
func (s *Store) Get(ctx context.Context, id string) (Tournament, error) {
	var t Tournament
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, seed, created_by, created_at FROM tournaments WHERE id=?`, id,
	).Scan(&t.ID, &t.Seed, &t.CreatedBy, &created)
	if err != nil {
		return Tournament{}, err
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return t, nil
}

// AlreadySubmitted reports whether a user has a result for a tournament.
func (s *Store) AlreadySubmitted(ctx context.Context, tournamentID, userID string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tournament_results WHERE tournament_id=? AND user_id=?`,
		tournamentID, userID,
	).Scan(&cnt)
	return cnt > 0, err
}

// SubmitResult inserts a result row. Respects UNIQUE(tournament_id, user_id);
// a second submission from the same user is ignored, not an error.
func (s *Store) SubmitResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tournament_results (tournament_id, user_id, correct, played, elapsed_ms)
		 VALUES (?,?,?,?,?)`,
		r.TournamentID, r.UserID, r.Correct, r.Played, r.ElapsedMs,
	)
	return err
}

// Leaderboard fetches the top players: most correct first, fastest first on
// ties, earliest submission breaking remaining ties.
func (s *Store) Leaderboard(ctx context.Context, tournamentID string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, correct, played, elapsed_ms
		 FROM tournament_results
		 WHERE tournament_id=?
		 ORDER BY correct DESC, elapsed_ms ASC, created_at ASC
		 LIMIT ?`, tournamentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.UserID, &r.Correct, &r.Played, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
