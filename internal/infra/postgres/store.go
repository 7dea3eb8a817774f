package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
)

const uniqueViolation = "23505"

// Open returns a bun handle over pgdriver for the given DSN.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store implements the repositories on top of bun.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

var (
	_ app.ParticipantRepository = (*Store)(nil)
	_ app.QuizStore             = (*Store)(nil)
	_ app.ResultRepository      = (*Store)(nil)
	_ app.UserRepository        = (*Store)(nil)
)

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

func affected(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}

func (s *Store) CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	row := participantRow{
		FullName:   p.FullName,
		RollNumber: p.RollNumber,
		Class:      p.Class,
		Department: p.Department,
		CreatedAt:  p.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Participant{}, fmt.Errorf("roll number %q: %w", p.RollNumber, domain.ErrConflict)
		}
		return domain.Participant{}, fmt.Errorf("insert participant: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetParticipant(ctx context.Context, id int64) (domain.Participant, error) {
	var row participantRow
	if err := s.db.NewSelect().Model(&row).Where("p.id = ?", id).Scan(ctx); err != nil {
		return domain.Participant{}, notFound(err, domain.ErrParticipantNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) GetParticipantByRoll(ctx context.Context, rollNumber string) (domain.Participant, error) {
	var row participantRow
	if err := s.db.NewSelect().Model(&row).Where("p.roll_number = ?", rollNumber).Scan(ctx); err != nil {
		return domain.Participant{}, notFound(err, domain.ErrParticipantNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	row := newQuizRow(quiz)
	row.ID = 0
	if _, err := s.db.NewInsert().Model(&row).Returning("*").Exec(ctx); err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetQuiz(ctx context.Context, id int64, includeInactive bool) (domain.Quiz, error) {
	var row quizRow
	q := s.db.NewSelect().Model(&row).Where("q.id = ?", id)
	if !includeInactive {
		q = q.Where("q.is_active")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Quiz{}, notFound(err, domain.ErrQuizNotFound)
	}
	quiz := row.toDomain()
	questions, err := s.questionsFor(ctx, s.db, id)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Questions = questions
	return quiz, nil
}

func (s *Store) ListQuizzes(ctx context.Context, includeInactive bool) ([]domain.Quiz, error) {
	var rows []quizRow
	q := s.db.NewSelect().Model(&rows).OrderExpr("q.created_at DESC").OrderExpr("q.id DESC")
	if !includeInactive {
		q = q.Where("q.is_active")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	if len(rows) == 0 {
		return []domain.Quiz{}, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var questionRows []questionRow
	if err := s.db.NewSelect().Model(&questionRows).
		Where("qs.quiz_id IN (?)", bun.In(ids)).
		OrderExpr("qs.id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	byQuiz := make(map[int64][]domain.Question, len(rows))
	for _, qr := range questionRows {
		byQuiz[qr.QuizID] = append(byQuiz[qr.QuizID], qr.toDomain())
	}

	out := make([]domain.Quiz, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
		if qs, ok := byQuiz[r.ID]; ok {
			out[i].Questions = qs
		}
	}
	return out, nil
}

func (s *Store) UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	row := newQuizRow(quiz)
	res, err := s.db.NewUpdate().Model(&row).
		Column("title", "description", "time_limit", "passing_score", "is_active", "password", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	if err := affected(res, domain.ErrQuizNotFound); err != nil {
		return domain.Quiz{}, err
	}
	return s.GetQuiz(ctx, quiz.ID, true)
}

func (s *Store) DeactivateQuiz(ctx context.Context, id int64) error {
	res, err := s.db.NewUpdate().Model((*quizRow)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate quiz: %w", err)
	}
	return affected(res, domain.ErrQuizNotFound)
}

func (s *Store) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	if err := s.quizExists(ctx, s.db, quizID); err != nil {
		return nil, err
	}
	return s.questionsFor(ctx, s.db, quizID)
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	var row questionRow
	if err := s.db.NewSelect().Model(&row).Where("qs.id = ?", id).Scan(ctx); err != nil {
		return domain.Question{}, notFound(err, domain.ErrQuestionNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) CreateQuestions(ctx context.Context, quizID int64, questions []domain.Question) ([]domain.Question, error) {
	var out []domain.Question
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.quizExists(ctx, tx, quizID); err != nil {
			return err
		}
		created, err := insertQuestions(ctx, tx, quizID, questions)
		out = created
		return err
	})
	return out, err
}

func (s *Store) ReplaceQuestions(ctx context.Context, quizID int64, questions []domain.Question) ([]domain.Question, error) {
	var out []domain.Question
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.quizExists(ctx, tx, quizID); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		created, err := insertQuestions(ctx, tx, quizID, questions)
		out = created
		return err
	})
	return out, err
}

func insertQuestions(ctx context.Context, db bun.IDB, quizID int64, questions []domain.Question) ([]domain.Question, error) {
	if len(questions) == 0 {
		return []domain.Question{}, nil
	}
	rows := make([]questionRow, len(questions))
	for i, q := range questions {
		rows[i] = newQuestionRow(q)
		rows[i].ID = 0
		rows[i].QuizID = quizID
	}
	if _, err := db.NewInsert().Model(&rows).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert questions: %w", err)
	}
	out := make([]domain.Question, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	row := newQuestionRow(q)
	res, err := s.db.NewUpdate().Model(&row).
		Column("text", "options", "correct_answer").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	if err := affected(res, domain.ErrQuestionNotFound); err != nil {
		return domain.Question{}, err
	}
	return s.GetQuestion(ctx, q.ID)
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*questionRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return affected(res, domain.ErrQuestionNotFound)
}

func (s *Store) quizExists(ctx context.Context, db bun.IDB, quizID int64) error {
	ok, err := db.NewSelect().Model((*quizRow)(nil)).Where("q.id = ?", quizID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check quiz: %w", err)
	}
	if !ok {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) questionsFor(ctx context.Context, db bun.IDB, quizID int64) ([]domain.Question, error) {
	var rows []questionRow
	if err := db.NewSelect().Model(&rows).Where("qs.quiz_id = ?", quizID).OrderExpr("qs.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	out := make([]domain.Question, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// CreateAttempt locks the participant row so attempts for a participant run one at a time.
// The unique (participant_id, quiz_id, attempt) index backs the lock.
func (s *Store) CreateAttempt(ctx context.Context, participantID, quizID int64, decide app.AttemptDecider) (domain.Result, error) {
	var created domain.Result
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var owner participantRow
		if err := tx.NewSelect().Model(&owner).
			Column("id").
			Where("p.id = ?", participantID).
			For("UPDATE").
			Scan(ctx); err != nil {
			return notFound(err, domain.ErrParticipantNotFound)
		}

		var rows []resultRow
		if err := tx.NewSelect().Model(&rows).
			Where("r.participant_id = ? AND r.quiz_id = ?", participantID, quizID).
			OrderExpr("r.id ASC").
			Scan(ctx); err != nil {
			return fmt.Errorf("load previous results: %w", err)
		}
		previous := make([]domain.Result, len(rows))
		for i, r := range rows {
			previous[i] = r.toDomain()
		}

		plan, err := decide(previous)
		if err != nil {
			return err
		}

		if plan.ConsumeGrant != 0 {
			res, err := tx.NewUpdate().Model((*resultRow)(nil)).
				Set("can_retake = FALSE").
				Where("id = ? AND can_retake", plan.ConsumeGrant).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("consume retake grant: %w", err)
			}
			if err := affected(res, domain.ErrAlreadyCompleted); err != nil {
				return err
			}
		}

		row := newResultRow(plan.Result)
		row.ID = 0
		row.ParticipantID = participantID
		row.QuizID = quizID
		row.Attempt = len(rows) + 1
		if _, err := tx.NewInsert().Model(&row).Returning("*").Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyCompleted
			}
			return fmt.Errorf("insert result: %w", err)
		}
		created = row.toDomain()
		return nil
	})
	return created, err
}

func (s *Store) GetResult(ctx context.Context, id int64) (domain.Result, error) {
	var row resultRow
	if err := s.db.NewSelect().Model(&row).Where("r.id = ?", id).Scan(ctx); err != nil {
		return domain.Result{}, notFound(err, domain.ErrResultNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) ListResultsByParticipant(ctx context.Context, participantID int64) ([]domain.Result, error) {
	var rows []resultRow
	if err := s.db.NewSelect().Model(&rows).
		Where("r.participant_id = ?", participantID).
		OrderExpr("r.submitted_at DESC").
		OrderExpr("r.id DESC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list participant results: %w", err)
	}
	out := make([]domain.Result, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) ListResultSummaries(ctx context.Context, rq app.ResultQuery) ([]domain.ResultSummary, int, error) {
	var rows []resultRow
	q := s.db.NewSelect().Model(&rows).Relation("Participant").Relation("Quiz")
	if rq.QuizID != 0 {
		q = q.Where("r.quiz_id = ?", rq.QuizID)
	}
	switch rq.SortBy {
	case app.SortByScore:
		q = q.OrderExpr("r.score DESC")
	case app.SortByTime:
		q = q.OrderExpr("r.time_taken ASC")
	}
	q = q.OrderExpr("r.submitted_at DESC").OrderExpr("r.id DESC")
	if rq.Limit > 0 {
		q = q.Limit(rq.Limit)
	}
	if rq.Offset > 0 {
		q = q.Offset(rq.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	out := make([]domain.ResultSummary, len(rows))
	for i, r := range rows {
		out[i] = domain.ResultSummary{Result: r.toDomain()}
		if r.Participant != nil {
			out[i].Participant = r.Participant.toDomain()
		}
		if r.Quiz != nil {
			out[i].Quiz = r.Quiz.toDomain()
		}
	}
	return out, total, nil
}

func (s *Store) SetCanRetake(ctx context.Context, id int64, canRetake bool) (domain.Result, error) {
	res, err := s.db.NewUpdate().Model((*resultRow)(nil)).
		Set("can_retake = ?", canRetake).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("set can_retake: %w", err)
	}
	if err := affected(res, domain.ErrResultNotFound); err != nil {
		return domain.Result{}, err
	}
	return s.GetResult(ctx, id)
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	row := userRow{Username: u.Username, Password: u.Password, IsAdmin: u.IsAdmin, CreatedAt: u.CreatedAt}
	if _, err := s.db.NewInsert().Model(&row).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var row userRow
	if err := s.db.NewSelect().Model(&row).Where("u.id = ?", id).Scan(ctx); err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var row userRow
	if err := s.db.NewSelect().Model(&row).Where("lower(u.username) = lower(?)", username).Scan(ctx); err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return row.toDomain(), nil
}
