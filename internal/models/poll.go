package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPollClosed    = errors.New("poll is not active")
	ErrInvalidOption = errors.New("invalid option index")
)

// PollOption is one choice of a poll with the set of users who picked it.
type PollOption struct {
	Text   string      `json:"text"`
	Voters []uuid.UUID `json:"-"`
}

// Votes is derived from the voter set.
func (o PollOption) Votes() int { return len(o.Voters) }

// Poll is a multiple-choice poll inside a meeting.
type Poll struct {
	ID        uuid.UUID    `json:"id"`
	MeetingID uuid.UUID    `json:"meeting_id"`
	CreatedBy uuid.UUID    `json:"created_by"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// VotedFor returns the option index the user currently has a vote on, or -1.
func (p *Poll) VotedFor(userID uuid.UUID) int {
	for i, o := range p.Options {
		for _, v := range o.Voters {
			if v == userID {
				return i
			}
		}
	}
	return -1
}

// Vote moves the user's vote to option index. Any previous vote is retracted first,
// so a user appears in at most one option's voter set.
func (p *Poll) Vote(userID uuid.UUID, index int) error {
	if !p.IsActive {
		return ErrPollClosed
	}
	if index < 0 || index >= len(p.Options) {
		return ErrInvalidOption
	}
	for i := range p.Options {
		voters := p.Options[i].Voters[:0]
		for _, v := range p.Options[i].Voters {
			if v != userID {
				voters = append(voters, v)
			}
		}
		p.Options[i].Voters = voters
	}
	p.Options[index].Voters = append(p.Options[index].Voters, userID)
	return nil
}

// PollOptionView is the public shape of a poll option.
type PollOptionView struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// PollView is the public shape of a poll broadcast to a meeting.
type PollView struct {
	ID         uuid.UUID        `json:"id"`
	MeetingID  uuid.UUID        `json:"meeting_id"`
	Question   string           `json:"question"`
	Options    []PollOptionView `json:"options"`
	TotalVotes int              `json:"total_votes"`
	IsActive   bool             `json:"is_active"`
	CreatedAt  time.Time        `json:"created_at"`
}

// View returns the poll with tallies counted from the voter sets.
func (p *Poll) View() PollView {
	v := PollView{
		ID:        p.ID,
		MeetingID: p.MeetingID,
		Question:  p.Question,
		Options:   make([]PollOptionView, len(p.Options)),
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
	for i, o := range p.Options {
		v.Options[i] = PollOptionView{Text: o.Text, Votes: o.Votes()}
		v.TotalVotes += o.Votes()
	}
	return v
}
