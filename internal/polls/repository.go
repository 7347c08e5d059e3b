package polls

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minimeet/backend/internal/models"
)

// Repository handles poll persistence. Votes live in poll_votes, one row per
// voter, so tallies are always counted from voter sets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new active poll.
func (r *Repository) Create(ctx context.Context, p *models.Poll) error {
	texts := make([]string, len(p.Options))
	for i, o := range p.Options {
		texts[i] = o.Text
	}
	const query = `INSERT INTO polls (meeting_id, created_by, question, options, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at`
	return r.pool.QueryRow(ctx, query, p.MeetingID, p.CreatedBy, p.Question, texts).
		Scan(&p.ID, &p.IsActive, &p.CreatedAt)
}

const pollColumns = `id, meeting_id, created_by, question, options, is_active, created_at, ended_at`

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var (
		p     models.Poll
		texts []string
	)
	err := row.Scan(&p.ID, &p.MeetingID, &p.CreatedBy, &p.Question, &texts, &p.IsActive, &p.CreatedAt, &p.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Options = make([]models.PollOption, len(texts))
	for i, t := range texts {
		p.Options[i] = models.PollOption{Text: t, Voters: []uuid.UUID{}}
	}
	return &p, nil
}

// GetByID returns a poll with its voter sets.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	p, err := scanPoll(r.pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT user_id, option_index FROM poll_votes WHERE poll_id = $1 ORDER BY voted_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID uuid.UUID
			index  int
		)
		if err := rows.Scan(&userID, &index); err != nil {
			return nil, err
		}
		if index < len(p.Options) {
			p.Options[index].Voters = append(p.Options[index].Voters, userID)
		}
	}
	return p, rows.Err()
}

// ListByMeeting returns the meeting's polls, newest first, with voter sets.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*models.Poll, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pollColumns+` FROM polls WHERE meeting_id = $1 ORDER BY created_at DESC`, meetingID)
	if err != nil {
		return nil, err
	}
	list := []*models.Poll{}
	byID := make(map[uuid.UUID]*models.Poll)
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, p)
		byID[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const votes = `SELECT v.poll_id, v.user_id, v.option_index FROM poll_votes v
		JOIN polls p ON p.id = v.poll_id WHERE p.meeting_id = $1 ORDER BY v.voted_at`
	vrows, err := r.pool.Query(ctx, votes, meetingID)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var (
			pollID, userID uuid.UUID
			index          int
		)
		if err := vrows.Scan(&pollID, &userID, &index); err != nil {
			return nil, err
		}
		if p, ok := byID[pollID]; ok && index < len(p.Options) {
			p.Options[index].Voters = append(p.Options[index].Voters, userID)
		}
	}
	return list, vrows.Err()
}

// SaveVote records the user's current choice, replacing any earlier one.
// It fails with models.ErrPollClosed once the poll has ended.
func (r *Repository) SaveVote(ctx context.Context, pollID, userID uuid.UUID, index int) error {
	const query = `INSERT INTO poll_votes (poll_id, user_id, option_index)
		SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM polls WHERE id = $1 AND is_active)
		ON CONFLICT (poll_id, user_id) DO UPDATE SET option_index = EXCLUDED.option_index, voted_at = NOW()`
	tag, err := r.pool.Exec(ctx, query, pollID, userID, index)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPollClosed
	}
	return nil
}

// End closes an active poll.
func (r *Repository) End(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE polls SET is_active = FALSE, ended_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPollClosed
	}
	return nil
}
