package meetings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minimeet/backend/internal/models"
)

// ErrDuplicateCode is returned by Create when the generated code or link is taken.
var ErrDuplicateCode = errors.New("meeting code already in use")

// Repository handles meeting persistence: the meeting row, its co-host set and
// its durable participant list.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meeting repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const meetingColumns = `m.id, m.title, m.description, m.code, m.link, m.host_id,
	m.requires_approval, m.is_locked, m.is_active, m.chat_enabled, m.screen_share_enabled,
	m.ended_at, m.created_at, m.updated_at,
	COALESCE((SELECT array_agg(ch.user_id ORDER BY ch.added_at) FROM meeting_co_hosts ch WHERE ch.meeting_id = m.id), '{}')`

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Code, &m.Link, &m.HostID,
		&m.RequiresApproval, &m.IsLocked, &m.IsActive, &m.Settings.ChatEnabled, &m.Settings.ScreenShareEnabled,
		&m.EndedAt, &m.CreatedAt, &m.UpdatedAt, &m.CoHostIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new meeting. The caller supplies Code and Link.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (title, description, code, link, host_id, requires_approval, chat_enabled, screen_share_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, is_locked, is_active, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, m.Title, m.Description, m.Code, m.Link, m.HostID, m.RequiresApproval,
		m.Settings.ChatEnabled, m.Settings.ScreenShareEnabled).
		Scan(&m.ID, &m.IsLocked, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	m.CoHostIDs = []uuid.UUID{}
	m.Participants = []models.MeetingParticipant{}
	return nil
}

// GetByID returns a meeting with its co-hosts and participants.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	return r.getBy(ctx, "m.id = $1", id)
}

// GetByCode returns a meeting by its join code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Meeting, error) {
	return r.getBy(ctx, "m.code = upper($1)", code)
}

// GetByLink returns a meeting by its link slug.
func (r *Repository) GetByLink(ctx context.Context, link string) (*models.Meeting, error) {
	return r.getBy(ctx, "m.link = $1", link)
}

func (r *Repository) getBy(ctx context.Context, cond string, arg interface{}) (*models.Meeting, error) {
	m, err := scanMeeting(r.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings m WHERE `+cond, arg))
	if err != nil {
		return nil, err
	}
	if m.Participants, err = r.participants(ctx, m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repository) participants(ctx context.Context, meetingID uuid.UUID) ([]models.MeetingParticipant, error) {
	const q = `SELECT user_id, joined_at, left_at FROM meeting_participants WHERE meeting_id = $1 ORDER BY joined_at`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.MeetingParticipant{}
	for rows.Next() {
		var p models.MeetingParticipant
		if err := rows.Scan(&p.UserID, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListForUser returns meetings the user hosts, co-hosts or has joined, newest first.
// Participants are not loaded.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Meeting, error) {
	const q = `SELECT ` + meetingColumns + ` FROM meetings m
		WHERE m.host_id = $1
		   OR EXISTS (SELECT 1 FROM meeting_co_hosts ch WHERE ch.meeting_id = m.id AND ch.user_id = $1)
		   OR EXISTS (SELECT 1 FROM meeting_participants p WHERE p.meeting_id = m.id AND p.user_id = $1)
		ORDER BY m.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		m.Participants = []models.MeetingParticipant{}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// ToggleLock flips is_locked and returns the new value.
func (r *Repository) ToggleLock(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE meetings SET is_locked = NOT is_locked, updated_at = NOW() WHERE id = $1 RETURNING is_locked`
	var locked bool
	err := r.pool.QueryRow(ctx, q, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, models.ErrNotFound
	}
	return locked, err
}

// AddParticipant records userID as a durable participant. Rejoining clears left_at.
func (r *Repository) AddParticipant(ctx context.Context, meetingID, userID uuid.UUID) error {
	const q = `INSERT INTO meeting_participants (meeting_id, user_id, joined_at) VALUES ($1, $2, NOW())
		ON CONFLICT (meeting_id, user_id) DO UPDATE SET left_at = NULL`
	_, err := r.pool.Exec(ctx, q, meetingID, userID)
	return err
}

// MarkParticipantLeft sets left_at on the participant's record.
func (r *Repository) MarkParticipantLeft(ctx context.Context, meetingID, userID uuid.UUID) error {
	const q = `UPDATE meeting_participants SET left_at = NOW() WHERE meeting_id = $1 AND user_id = $2 AND left_at IS NULL`
	_, err := r.pool.Exec(ctx, q, meetingID, userID)
	return err
}

// ToggleCoHost adds userID to the co-host set, or removes it if present.
// It reports whether the user is a co-host afterwards.
func (r *Repository) ToggleCoHost(ctx context.Context, meetingID, userID uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM meeting_co_hosts WHERE meeting_id = $1 AND user_id = $2`, meetingID, userID)
	if err != nil {
		return false, err
	}
	added := tag.RowsAffected() == 0
	if added {
		if _, err := tx.Exec(ctx, `INSERT INTO meeting_co_hosts (meeting_id, user_id) VALUES ($1, $2)`, meetingID, userID); err != nil {
			return false, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE meetings SET updated_at = NOW() WHERE id = $1`, meetingID); err != nil {
		return false, err
	}
	return added, tx.Commit(ctx)
}

// SetChatEnabled updates the meeting's chat setting.
func (r *Repository) SetChatEnabled(ctx context.Context, meetingID uuid.UUID, enabled bool) error {
	return r.setFlag(ctx, "chat_enabled", meetingID, enabled)
}

// SetScreenShareEnabled updates the meeting's screen share setting.
func (r *Repository) SetScreenShareEnabled(ctx context.Context, meetingID uuid.UUID, enabled bool) error {
	return r.setFlag(ctx, "screen_share_enabled", meetingID, enabled)
}

func (r *Repository) setFlag(ctx context.Context, column string, meetingID uuid.UUID, v bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE meetings SET `+column+` = $1, updated_at = NOW() WHERE id = $2`, v, meetingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// End marks the meeting inactive and closes every open participant record.
func (r *Repository) End(ctx context.Context, meetingID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE meetings SET is_active = FALSE, ended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_active`, meetingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE meeting_participants SET left_at = NOW() WHERE meeting_id = $1 AND left_at IS NULL`, meetingID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
