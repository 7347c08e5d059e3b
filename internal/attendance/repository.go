package attendance

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minimeet/backend/internal/models"
)

// Summary aggregates a meeting's closed attendance spans.
type Summary struct {
	TotalSeconds  int64 `json:"total_seconds"`
	DistinctUsers int   `json:"distinct_users"`
}

// Repository handles attendances.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogJoin opens a span for the user.
func (r *Repository) LogJoin(ctx context.Context, meetingID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attendances (meeting_id, user_id, joined_at) VALUES ($1, $2, NOW())`,
		meetingID, userID)
	return err
}

// LogLeave closes the user's most recent open span.
func (r *Repository) LogLeave(ctx context.Context, meetingID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attendances a SET left_at = NOW(), duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM (NOW() - a.joined_at))::BIGINT)
		 FROM (SELECT id FROM attendances WHERE meeting_id = $1 AND user_id = $2 AND left_at IS NULL ORDER BY joined_at DESC LIMIT 1) AS sub
		 WHERE a.id = sub.id`,
		meetingID, userID)
	return err
}

// CloseOpen closes every open span of the meeting. Used when the meeting ends.
func (r *Repository) CloseOpen(ctx context.Context, meetingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attendances SET left_at = NOW(), duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM (NOW() - joined_at))::BIGINT)
		 WHERE meeting_id = $1 AND left_at IS NULL`,
		meetingID)
	return err
}

// ListByMeeting returns every span of the meeting, latest join first.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.Attendance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.meeting_id, a.user_id, COALESCE(u.full_name, ''), a.joined_at, a.left_at, a.duration_seconds
		 FROM attendances a LEFT JOIN users u ON u.id = a.user_id
		 WHERE a.meeting_id = $1 ORDER BY a.joined_at DESC`,
		meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Attendance{}
	for rows.Next() {
		var a models.Attendance
		if err := rows.Scan(&a.ID, &a.MeetingID, &a.UserID, &a.UserName, &a.JoinedAt, &a.LeftAt, &a.DurationSeconds); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Summary returns total attended time and distinct attendees over closed spans.
func (r *Repository) Summary(ctx context.Context, meetingID uuid.UUID) (*Summary, error) {
	const q = `SELECT COALESCE(SUM(duration_seconds), 0), COUNT(DISTINCT user_id) FROM attendances WHERE meeting_id = $1 AND left_at IS NOT NULL`
	var s Summary
	if err := r.pool.QueryRow(ctx, q, meetingID).Scan(&s.TotalSeconds, &s.DistinctUsers); err != nil {
		return nil, err
	}
	return &s, nil
}
