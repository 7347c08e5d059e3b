package questions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minimeet/backend/internal/models"
)

// Repository handles Q&A persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const questionColumns = `q.id, q.meeting_id, q.user_id, COALESCE(u.full_name, ''), q.question, q.answer,
	q.answered_by, q.answered_at, q.is_answered, q.upvotes, q.created_at`

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.MeetingID, &q.User.ID, &q.User.Name, &q.Text, &q.Answer,
		&q.AnsweredBy, &q.AnsweredAt, &q.IsAnswered, &q.Upvotes, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Create inserts a question and fills in its id, creation time and asker name.
func (r *Repository) Create(ctx context.Context, q *models.Question) error {
	const query = `INSERT INTO questions (meeting_id, user_id, question)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, COALESCE((SELECT full_name FROM users WHERE id = $2), '')`
	return r.pool.QueryRow(ctx, query, q.MeetingID, q.User.ID, q.Text).Scan(&q.ID, &q.CreatedAt, &q.User.Name)
}

// GetByID returns a question.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	const query = `SELECT ` + questionColumns + ` FROM questions q
		LEFT JOIN users u ON u.id = q.user_id WHERE q.id = $1`
	return scanQuestion(r.pool.QueryRow(ctx, query, id))
}

// ListByMeeting returns the meeting's questions, most upvoted first.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*models.Question, error) {
	const query = `SELECT ` + questionColumns + ` FROM questions q
		LEFT JOIN users u ON u.id = q.user_id
		WHERE q.meeting_id = $1 ORDER BY q.upvotes DESC, q.created_at DESC`
	rows, err := r.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// Answer stores the answer text. Answering again replaces the earlier answer.
func (r *Repository) Answer(ctx context.Context, id, answeredBy uuid.UUID, answer string) (*models.Question, error) {
	const query = `UPDATE questions SET answer = $2, answered_by = $3, answered_at = NOW(), is_answered = TRUE
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, answer, answeredBy)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// ToggleUpvote adds the user's upvote, or removes it if already present, and
// returns the new count.
func (r *Repository) ToggleUpvote(ctx context.Context, questionID, userID uuid.UUID) (upvotes int, upvoted bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM question_upvotes WHERE question_id = $1 AND user_id = $2`, questionID, userID)
	if err != nil {
		return 0, false, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `INSERT INTO question_upvotes (question_id, user_id) VALUES ($1, $2)`, questionID, userID); err != nil {
			return 0, false, err
		}
		upvoted = true
	}

	const count = `UPDATE questions SET upvotes = (SELECT COUNT(*) FROM question_upvotes WHERE question_id = $1)
		WHERE id = $1 RETURNING upvotes`
	if err := tx.QueryRow(ctx, count, questionID).Scan(&upvotes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, models.ErrNotFound
		}
		return 0, false, err
	}
	return upvotes, upvoted, tx.Commit(ctx)
}
