package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
)

// Store keeps every entity in process memory. It backs local runs and the service tests.
type Store struct {
	mu sync.RWMutex

	nextID       int64
	participants map[int64]domain.Participant
	rolls        map[string]int64
	quizzes      map[int64]domain.Quiz
	questions    map[int64]domain.Question
	results      map[int64]domain.Result
	users        map[int64]domain.User
}

func NewStore() *Store {
	return &Store{
		participants: make(map[int64]domain.Participant),
		rolls:        make(map[string]int64),
		quizzes:      make(map[int64]domain.Quiz),
		questions:    make(map[int64]domain.Question),
		results:      make(map[int64]domain.Result),
		users:        make(map[int64]domain.User),
	}
}

var (
	_ app.ParticipantRepository = (*Store)(nil)
	_ app.QuizStore             = (*Store)(nil)
	_ app.ResultRepository      = (*Store)(nil)
	_ app.UserRepository        = (*Store)(nil)
)

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateParticipant(_ context.Context, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rolls[p.RollNumber]; ok {
		return domain.Participant{}, domain.ErrConflict
	}
	p.ID = s.id()
	s.participants[p.ID] = p
	s.rolls[p.RollNumber] = p.ID
	return p, nil
}

func (s *Store) GetParticipant(_ context.Context, id int64) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

func (s *Store) GetParticipantByRoll(_ context.Context, rollNumber string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.rolls[rollNumber]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return s.participants[id], nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz.ID = s.id()
	quiz.Questions = nil
	s.quizzes[quiz.ID] = quiz
	return s.withQuestionsLocked(quiz), nil
}

func (s *Store) GetQuiz(_ context.Context, id int64, includeInactive bool) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok || (!quiz.IsActive && !includeInactive) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return s.withQuestionsLocked(quiz), nil
}

// LoadQuiz returns a quiz regardless of its active flag; it feeds the read-through caches.
func (s *Store) LoadQuiz(ctx context.Context, id int64) (domain.Quiz, error) {
	return s.GetQuiz(ctx, id, true)
}

func (s *Store) ListQuizzes(_ context.Context, includeInactive bool) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		if !quiz.IsActive && !includeInactive {
			continue
		}
		out = append(out, s.withQuestionsLocked(quiz))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	quiz.Questions = nil
	s.quizzes[quiz.ID] = quiz
	return s.withQuestionsLocked(quiz), nil
}

func (s *Store) DeactivateQuiz(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.IsActive = false
	s.quizzes[id] = quiz
	return nil
}

func (s *Store) ListQuestions(_ context.Context, quizID int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	return s.questionsLocked(quizID), nil
}

func (s *Store) GetQuestion(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (s *Store) CreateQuestions(_ context.Context, quizID int64, questions []domain.Question) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	return s.insertQuestionsLocked(quizID, questions), nil
}

func (s *Store) ReplaceQuestions(_ context.Context, quizID int64, questions []domain.Question) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	for id, q := range s.questions {
		if q.QuizID == quizID {
			delete(s.questions, id)
		}
	}
	return s.insertQuestionsLocked(quizID, questions), nil
}

func (s *Store) UpdateQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.questions[q.ID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	q.QuizID = existing.QuizID
	q.CreatedAt = existing.CreatedAt
	q = cloneQuestion(q)
	s.questions[q.ID] = q
	return cloneQuestion(q), nil
}

func (s *Store) DeleteQuestion(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.questions, id)
	return nil
}

func (s *Store) insertQuestionsLocked(quizID int64, questions []domain.Question) []domain.Question {
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		q = cloneQuestion(q)
		q.ID = s.id()
		q.QuizID = quizID
		s.questions[q.ID] = q
		out = append(out, cloneQuestion(q))
	}
	return out
}

func (s *Store) questionsLocked(quizID int64) []domain.Question {
	out := make([]domain.Question, 0)
	for _, q := range s.questions {
		if q.QuizID == quizID {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) withQuestionsLocked(quiz domain.Quiz) domain.Quiz {
	quiz.Questions = s.questionsLocked(quiz.ID)
	return quiz
}

// CreateAttempt holds the store lock across the decision and the writes, so concurrent
// attempts for a pair are serialized.
func (s *Store) CreateAttempt(_ context.Context, participantID, quizID int64, decide app.AttemptDecider) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := make([]domain.Result, 0)
	for _, r := range s.results {
		if r.ParticipantID == participantID && r.QuizID == quizID {
			previous = append(previous, cloneResult(r))
		}
	}
	sort.Slice(previous, func(i, j int) bool { return previous[i].ID < previous[j].ID })

	plan, err := decide(previous)
	if err != nil {
		return domain.Result{}, err
	}
	if plan.ConsumeGrant != 0 {
		granted, ok := s.results[plan.ConsumeGrant]
		if !ok || !granted.CanRetake {
			return domain.Result{}, domain.ErrAlreadyCompleted
		}
		granted.CanRetake = false
		s.results[granted.ID] = granted
	}

	result := cloneResult(plan.Result)
	result.ID = s.id()
	result.ParticipantID = participantID
	result.QuizID = quizID
	s.results[result.ID] = result
	return cloneResult(result), nil
}

func (s *Store) GetResult(_ context.Context, id int64) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return cloneResult(r), nil
}

func (s *Store) ListResultsByParticipant(_ context.Context, participantID int64) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Result, 0)
	for _, r := range s.results {
		if r.ParticipantID == participantID {
			out = append(out, cloneResult(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i], out[j]) })
	return out, nil
}

func (s *Store) ListResultSummaries(_ context.Context, q app.ResultQuery) ([]domain.ResultSummary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.ResultSummary, 0, len(s.results))
	for _, r := range s.results {
		if q.QuizID != 0 && r.QuizID != q.QuizID {
			continue
		}
		quiz := s.quizzes[r.QuizID]
		quiz.Questions = nil
		all = append(all, domain.ResultSummary{
			Result:      cloneResult(r),
			Participant: s.participants[r.ParticipantID],
			Quiz:        quiz,
		})
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch q.SortBy {
		case app.SortByScore:
			if a.Score != b.Score {
				return a.Score > b.Score
			}
		case app.SortByTime:
			if a.TimeTaken != b.TimeTaken {
				return a.TimeTaken < b.TimeTaken
			}
		}
		return newerFirst(a.Result, b.Result)
	})

	total := len(all)
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < total {
		end = start + q.Limit
	}
	return all[start:end], total, nil
}

func (s *Store) SetCanRetake(_ context.Context, id int64, canRetake bool) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	r.CanRetake = canRetake
	s.results[id] = r
	return cloneResult(r), nil
}

func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return domain.User{}, domain.ErrUsernameTaken
		}
	}
	u.ID = s.id()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func newerFirst(a, b domain.Result) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.After(b.SubmittedAt)
	}
	return a.ID > b.ID
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

func cloneResult(r domain.Result) domain.Result {
	r.Answers = append([]domain.Answer(nil), r.Answers...)
	return r
}
