package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minimeet/backend/internal/models"
)

// Repository persists meeting chat messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a message and fills in its id and timestamp.
func (r *Repository) Create(ctx context.Context, m *models.ChatMessage) error {
	if m.Type == "" {
		m.Type = models.ChatTypeText
	}
	const q = `INSERT INTO chat_messages (meeting_id, user_id, message, type)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, m.MeetingID, m.User.ID, m.Message, m.Type).Scan(&m.ID, &m.CreatedAt)
}

// ListByMeeting returns the latest limit messages in chronological order.
// A limit of zero returns the whole history.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	const q = `SELECT * FROM (
			SELECT c.id, c.meeting_id, c.user_id, COALESCE(u.full_name, ''), c.message, c.type, c.created_at
			FROM chat_messages c LEFT JOIN users u ON u.id = c.user_id
			WHERE c.meeting_id = $1
			ORDER BY c.created_at DESC
			LIMIT NULLIF($2, 0)
		) latest ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, meetingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.MeetingID, &m.User.ID, &m.User.Name, &m.Message, &m.Type, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
