package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"quiz-builder/internal/domain"
)

// ParticipantInput registers a participant.
type ParticipantInput struct {
	FullName   string
	RollNumber string
	Class      string
	Department string
}

// ParticipantService handles idempotent participant registration.
type ParticipantService struct {
	repo ParticipantRepository
	now  func() time.Time
}

func NewParticipantService(repo ParticipantRepository) *ParticipantService {
	return &ParticipantService{repo: repo, now: time.Now}
}

// Register returns the participant holding the roll number, creating it when absent.
// The boolean reports whether a new record was created.
func (s *ParticipantService) Register(ctx context.Context, in ParticipantInput) (domain.Participant, bool, error) {
	in.RollNumber = strings.TrimSpace(in.RollNumber)
	if in.RollNumber == "" {
		return domain.Participant{}, false, domain.NewValidationError("rollNumber", "roll number is required")
	}

	existing, err := s.repo.GetParticipantByRoll(ctx, in.RollNumber)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Participant{}, false, err
	}

	created, err := s.repo.CreateParticipant(ctx, domain.Participant{
		FullName:   strings.TrimSpace(in.FullName),
		RollNumber: in.RollNumber,
		Class:      in.Class,
		Department: in.Department,
		CreatedAt:  s.now().UTC(),
	})
	if errors.Is(err, domain.ErrConflict) {
		// Lost a race with a concurrent registration of the same roll number.
		existing, err := s.repo.GetParticipantByRoll(ctx, in.RollNumber)
		return existing, false, err
	}
	if err != nil {
		return domain.Participant{}, false, err
	}
	return created, true, nil
}

func (s *ParticipantService) Get(ctx context.Context, id int64) (domain.Participant, error) {
	return s.repo.GetParticipant(ctx, id)
}

func (s *ParticipantService) GetByRoll(ctx context.Context, rollNumber string) (domain.Participant, error) {
	return s.repo.GetParticipantByRoll(ctx, strings.TrimSpace(rollNumber))
}
