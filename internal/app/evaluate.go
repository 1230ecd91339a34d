package app

import (
	"context"
	"errors"

	"quiz-pipeline-service/internal/difficulty"
	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/evaluation"
	"quiz-pipeline-service/internal/rewards"
)

// EvaluateRequest is a submission graded against the given questions.
type EvaluateRequest struct {
	UserID           string            `json:"user_id"`
	Questions        []domain.Question `json:"questions"`
	Answers          []int             `json:"answers"`
	Topic            string            `json:"topic"`
	Difficulty       domain.Tier       `json:"difficulty"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
}

// EvaluationSummary is the payload of a successful EvaluateQuiz.
type EvaluationSummary struct {
	AttemptID        string                        `json:"attempt_id"`
	Score            int                           `json:"score"`
	Percentage       float64                       `json:"percentage"`
	CorrectCount     int                           `json:"correct_count"`
	MaxScore         int                           `json:"max_score"`
	Feedback         string                        `json:"feedback"`
	QuestionFeedback []evaluation.QuestionFeedback `json:"question_feedback"`
	PointsEarned     int                           `json:"points_earned"`
	TotalPoints      int                           `json:"total_points"`
	BadgesEarned     []domain.Badge                `json:"badges_earned"`
	NewLevel         int                           `json:"new_level"`
	LeveledUp        bool                          `json:"leveled_up"`
	Progress         rewards.Progress              `json:"progress"`
	NextDifficulty   difficulty.Recommendation     `json:"next_difficulty"`
}

type evaluateInput struct {
	UserID     string      `json:"user_id"`
	Topic      string      `json:"topic"`
	Difficulty domain.Tier `json:"difficulty"`
	Questions  int         `json:"questions"`
	Answers    []int       `json:"answers"`
}

// EvaluateQuiz grades a submission, applies rewards and persists the
// attempt. The user must already exist.
func (o *Orchestrator) EvaluateQuiz(ctx context.Context, req EvaluateRequest) Result[EvaluationSummary] {
	res, _ := o.evaluate(ctx, req)
	return res
}

// evaluate also reports whether the attempt row was written, which decides
// if a claimed quiz may go back into the cache after a failure.
func (o *Orchestrator) evaluate(ctx context.Context, req EvaluateRequest) (Result[EvaluationSummary], bool) {
	var stored bool
	in := evaluateInput{
		UserID:     req.UserID,
		Topic:      req.Topic,
		Difficulty: domain.ParseTier(string(req.Difficulty)),
		Questions:  len(req.Questions),
		Answers:    req.Answers,
	}

	res := run(ctx, o, "evaluate quiz", in, func(ctx context.Context, t *tracer) (EvaluationSummary, error) {
		user, err := traced(ctx, t, 1, agentDatabase, map[string]string{"user_id": req.UserID}, func() (domain.UserProfile, error) {
			u, err := o.repo.GetUser(ctx, req.UserID)
			if errors.Is(err, domain.ErrUserNotFound) {
				return u, domain.E(domain.KindNotFound, "load user", err)
			}
			if err != nil {
				return u, domain.E(domain.KindPersistence, "load user", err)
			}
			return u, nil
		})
		if err != nil {
			return EvaluationSummary{}, err
		}

		graded, err := traced(ctx, t, 2, agentEvaluator, in, func() (evaluation.Result, error) {
			r, err := o.evaluator.Evaluate(req.Questions, req.Answers, user.Name)
			return r, domain.E(domain.KindValidation, "evaluate answers", err)
		})
		if err != nil {
			return EvaluationSummary{}, err
		}

		outcome, err := traced(ctx, t, 3, agentRewards, map[string]any{"percentage": graded.Percentage, "points": user.Points, "level": user.Level}, func() (rewards.Outcome, error) {
			count, err := o.repo.CountQuizAttempts(ctx, req.UserID)
			if err != nil {
				return rewards.Outcome{}, domain.E(domain.KindPersistence, "count attempts", err)
			}
			return o.rewards.Process(rewards.Event{
				Type:          domain.EventQuizCompleted,
				CurrentPoints: user.Points,
				CurrentLevel:  user.Level,
				Percentage:    graded.Percentage,
				QuizCount:     count + 1,
				OwnedBadges:   user.Badges,
			}), nil
		})
		if err != nil {
			return EvaluationSummary{}, err
		}

		attemptID, err := traced(ctx, t, 4, agentDatabase, map[string]any{"points_delta": outcome.PointsEarned, "new_level": outcome.NewLevel}, func() (string, error) {
			return o.persist(ctx, req, in.Difficulty, graded, outcome, &stored)
		})
		if err != nil {
			return EvaluationSummary{}, err
		}

		return EvaluationSummary{
			AttemptID:        attemptID,
			Score:            graded.Score,
			Percentage:       graded.Percentage,
			CorrectCount:     graded.CorrectCount,
			MaxScore:         graded.MaxScore,
			Feedback:         graded.Feedback,
			QuestionFeedback: graded.QuestionFeedback,
			PointsEarned:     outcome.PointsEarned,
			TotalPoints:      outcome.TotalPoints,
			BadgesEarned:     outcome.Badges,
			NewLevel:         outcome.NewLevel,
			LeveledUp:        outcome.LeveledUp,
			Progress:         outcome.Progress,
			NextDifficulty:   o.recommender.Recommend([]float64{float64(graded.Score)}, user.Age),
		}, nil
	})
	if res.OK() {
		o.publishLeaderboard(ctx)
	}
	return res, stored
}

// persist writes the attempt first: if it cannot be stored no reward is
// applied. Event log failures are logged only.
func (o *Orchestrator) persist(ctx context.Context, req EvaluateRequest, tier domain.Tier, graded evaluation.Result, outcome rewards.Outcome, stored *bool) (string, error) {
	now := o.now().UTC()
	responses := make([]domain.ResponseRecord, len(graded.QuestionFeedback))
	for i, fb := range graded.QuestionFeedback {
		responses[i] = domain.ResponseRecord{
			Question:      fb.Question,
			Topic:         req.Topic,
			Difficulty:    tier,
			UserAnswer:    fb.UserAnswer,
			CorrectAnswer: fb.CorrectAnswer,
			IsCorrect:     fb.IsCorrect,
			Options:       req.Questions[i].Options,
		}
	}
	attempt := domain.QuizAttempt{
		ID:               o.newID(),
		UserID:           req.UserID,
		Topic:            req.Topic,
		Difficulty:       tier,
		Score:            graded.Score,
		MaxScore:         graded.MaxScore,
		Responses:        responses,
		Feedback:         graded.Feedback,
		TimeTakenSeconds: req.TimeTakenSeconds,
		CreatedAt:        now,
	}
	if err := o.repo.CreateQuizAttempt(ctx, attempt); err != nil {
		return "", domain.E(domain.KindPersistence, "create quiz attempt", err)
	}
	*stored = true
	if err := o.repo.UpdateUserPoints(ctx, req.UserID, outcome.PointsEarned); err != nil {
		return "", domain.E(domain.KindPersistence, "update points", err)
	}
	if err := o.repo.UpdateUserLevel(ctx, req.UserID, outcome.NewLevel); err != nil {
		return "", domain.E(domain.KindPersistence, "update level", err)
	}

	o.appendEvent(ctx, domain.GamificationEvent{
		ID:        o.newID(),
		UserID:    req.UserID,
		Type:      domain.EventQuizCompleted,
		Points:    outcome.PointsEarned,
		CreatedAt: now,
	})
	for _, b := range outcome.Badges {
		if err := o.repo.AddBadge(ctx, req.UserID, b.ID); err != nil {
			return "", domain.E(domain.KindPersistence, "add badge", err)
		}
		o.appendEvent(ctx, domain.GamificationEvent{
			ID:        o.newID(),
			UserID:    req.UserID,
			Type:      domain.EventBadgeEarned,
			BadgeName: b.Name,
			CreatedAt: now,
		})
	}
	return attempt.ID, nil
}

func (o *Orchestrator) appendEvent(ctx context.Context, ev domain.GamificationEvent) {
	if err := o.repo.CreateGamificationEvent(ctx, ev); err != nil {
		o.log.Warn("gamification event write failed", "user_id", ev.UserID, "type", ev.Type, "error", err)
	}
}

// EvaluateQuizByRequest grades answers against a quiz this service
// generated earlier. The quiz is claimed from the cache before grading, so
// concurrent submissions of one request id score it at most once. A failed
// grading that wrote no attempt puts the quiz back for another try.
func (o *Orchestrator) EvaluateQuizByRequest(ctx context.Context, userID, requestID string, answers []int, timeTaken int) Result[EvaluationSummary] {
	if o.cache == nil {
		return failure[EvaluationSummary](requestID, 0, domain.E(domain.KindNotFound, "load quiz", domain.ErrQuizNotFound))
	}
	quiz, err := o.cache.Get(ctx, requestID)
	if err != nil {
		return failure[EvaluationSummary](requestID, 0, cacheError("load quiz", err))
	}
	if quiz.UserID != userID {
		return failure[EvaluationSummary](requestID, 0, domain.E(domain.KindValidation, "load quiz", errors.New("quiz belongs to another user")))
	}
	quiz, err = o.cache.Take(ctx, requestID)
	if err != nil {
		return failure[EvaluationSummary](requestID, 0, cacheError("claim quiz", err))
	}

	res, stored := o.evaluate(ctx, EvaluateRequest{
		UserID:           userID,
		Questions:        quiz.Questions,
		Answers:          answers,
		Topic:            quiz.Topic,
		Difficulty:       quiz.Difficulty,
		TimeTakenSeconds: timeTaken,
	})
	if !res.OK() && !stored {
		if err := o.cache.Save(ctx, quiz); err != nil {
			o.log.Warn("quiz cache restore failed", "request_id", requestID, "error", err)
		}
	}
	return res
}

func cacheError(op string, err error) error {
	if errors.Is(err, domain.ErrQuizNotFound) {
		return domain.E(domain.KindNotFound, op, err)
	}
	return domain.E(domain.KindPersistence, op, err)
}

func (o *Orchestrator) publishLeaderboard(ctx context.Context) {
	users, err := o.repo.TopUsers(ctx, o.opts.LeaderboardTop)
	if err != nil {
		o.log.Warn("leaderboard refresh failed", "error", err)
		return
	}
	o.leaderboard.Publish(users)
}
