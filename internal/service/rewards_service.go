package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/kidcode-rewards-api/internal/dto"
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/internal/repository"
	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
)

type ledgerStore interface {
	Record(ctx context.Context, entry models.XPEntry, guards ...repository.TxFunc) (*models.XPTransaction, error)
	ListRecent(ctx context.Context, studentID string, limit int) ([]models.XPTransaction, error)
	GetStudent(ctx context.Context, studentID string) (*models.Student, error)
}

type activityLog interface {
	LessonWriter(completion models.LessonCompletion) repository.TxFunc
	GameWriter(session models.GameSession) repository.TxFunc
	ChallengeClaimGuard(claim models.ChallengeClaim) repository.TxFunc
}

type quizStore interface {
	FindQuestion(ctx context.Context, questionID string) (*models.QuizQuestion, error)
	ListQuestions(ctx context.Context, quizIndex int) ([]models.QuizQuestion, error)
	CreditAnswerGuard(studentID, questionID string) repository.TxFunc
	AttemptWriter(attempt models.QuizAttempt) repository.TxFunc
}

type badgeCatalog interface {
	ListAll(ctx context.Context) ([]models.Badge, error)
	ListEarned(ctx context.Context, studentID string) ([]models.EarnedBadge, error)
}

type badgeEvaluator interface {
	Evaluate(ctx context.Context, studentID string, activity models.ActivityType, facts models.ActivityFacts) ([]models.Badge, error)
}

type loginTracker interface {
	RecordDailyLogin(ctx context.Context, studentID, displayName string) (*models.LoginOutcome, error)
	Get(ctx context.Context, studentID string) (*models.DailyStreak, error)
}

type stageGate interface {
	State(ctx context.Context, studentID string) (models.ProgressState, error)
	Complete(ctx context.Context, studentID string, stage models.StageType, index int, signals models.SignalSet) error
}

type boardInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Enrichment steps reported as warnings when they fail after the XP write.
const (
	stepBadges      = "badges"
	stepProgress    = "progress"
	stepLeaderboard = "leaderboard"
)

var stepWarnings = map[string]string{
	stepBadges:      "badge evaluation failed; badges will be checked on the next activity",
	stepProgress:    "progress update failed",
	stepLeaderboard: "leaderboard refresh failed",
}

// RewardsServiceParams groups constructor dependencies.
type RewardsServiceParams struct {
	Ledger      ledgerStore
	Activities  activityLog
	Quizzes     quizStore
	Badges      badgeCatalog
	Evaluator   badgeEvaluator
	Streaks     loginTracker
	Gate        stageGate
	Leaderboard boardInvalidator
	Calculator  *XPCalculator
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Location    *time.Location
	RecentLimit int
}

// RewardsService turns learning activity into XP, badges, streaks and
// progress. The ledger write is the operation of record; everything after it
// is best effort and reported through warnings.
type RewardsService struct {
	ledger      ledgerStore
	activities  activityLog
	quizzes     quizStore
	badges      badgeCatalog
	evaluator   badgeEvaluator
	streaks     loginTracker
	gate        stageGate
	leaderboard boardInvalidator
	calc        *XPCalculator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
	recentLimit int
	now         func() time.Time
}

// NewRewardsService constructs the facade with defaults applied.
func NewRewardsService(p RewardsServiceParams) *RewardsService {
	if p.Validator == nil {
		p.Validator = NewValidator()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.RecentLimit <= 0 {
		p.RecentLimit = 10
	}
	return &RewardsService{
		ledger:      p.Ledger,
		activities:  p.Activities,
		quizzes:     p.Quizzes,
		badges:      p.Badges,
		evaluator:   p.Evaluator,
		streaks:     p.Streaks,
		gate:        p.Gate,
		leaderboard: p.Leaderboard,
		calc:        p.Calculator,
		metrics:     p.Metrics,
		validator:   p.Validator,
		logger:      p.Logger,
		loc:         p.Location,
		recentLimit: p.RecentLimit,
		now:         time.Now,
	}
}

func requireActor(claims *models.JWTClaims) error {
	if claims == nil || claims.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	return nil
}

// record appends entry to the ledger. It reports false when a guard found the
// event already credited.
func (s *RewardsService) record(ctx context.Context, entry models.XPEntry, guards ...repository.TxFunc) (bool, error) {
	if !entry.Activity.Valid() {
		return false, appErrors.Clone(appErrors.ErrValidation, "activity type is invalid")
	}
	if entry.XP < 0 {
		return false, appErrors.Clone(appErrors.ErrValidation, "xp must not be negative")
	}
	if entry.EarnedAt.IsZero() {
		entry.EarnedAt = s.now().UTC()
	}
	_, err := s.ledger.Record(ctx, entry, guards...)
	if errors.Is(err, repository.ErrDuplicate) {
		s.metrics.RecordXP(entry.Activity, 0, "duplicate")
		return false, nil
	}
	if err != nil {
		s.logger.Error("record xp failed",
			zap.String("student_id", entry.StudentID),
			zap.String("activity", string(entry.Activity)),
			zap.Int("xp", entry.XP),
			zap.Error(err),
		)
		return false, appErrors.Internal(err, "failed to record xp")
	}
	s.metrics.RecordXP(entry.Activity, entry.XP, "credited")
	return true, nil
}

// enrichmentFailed logs and counts a failed best-effort step and returns the
// warnings with the step's message appended.
func (s *RewardsService) enrichmentFailed(warnings []string, step, studentID string, err error) []string {
	s.logger.Warn("enrichment step failed",
		zap.String("step", step),
		zap.String("student_id", studentID),
		zap.Error(err),
	)
	s.metrics.RecordEnrichmentFailure(step)
	return append(warnings, stepWarnings[step])
}

// evaluateBadges keeps partial awards when the evaluator also reports an error.
func (s *RewardsService) evaluateBadges(ctx context.Context, studentID string, activity models.ActivityType, facts models.ActivityFacts, warnings []string) ([]models.Badge, []string) {
	awarded, err := s.evaluator.Evaluate(ctx, studentID, activity, facts)
	if err != nil {
		warnings = s.enrichmentFailed(warnings, stepBadges, studentID, err)
	}
	if awarded == nil {
		awarded = []models.Badge{}
	}
	return awarded, warnings
}

func (s *RewardsService) refreshLeaderboard(ctx context.Context, studentID string, warnings []string) []string {
	if s.leaderboard == nil {
		return warnings
	}
	if err := s.leaderboard.Invalidate(ctx); err != nil {
		return s.enrichmentFailed(warnings, stepLeaderboard, studentID, err)
	}
	return warnings
}

// CompleteLesson credits a finished lesson, evaluates lesson badges and marks
// the lesson stage complete when the lesson id maps onto the 1..5 chain.
func (s *RewardsService) CompleteLesson(ctx context.Context, req dto.CompleteLessonRequest, claims *models.JWTClaims) (*dto.RewardResult, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	now := s.now().UTC()
	award := s.calc.Calculate(models.ActivityLesson, models.Performance{
		IsFirstAttempt:    req.IsFirstAttempt,
		IsPerfect:         req.IsPerfect,
		CompletionSeconds: req.CompletionTime,
	})
	if _, err := s.record(ctx, models.XPEntry{
		StudentID:   claims.UserID,
		DisplayName: claims.FullName,
		XP:          award.Total,
		Activity:    models.ActivityLesson,
		Reason:      "lesson:" + req.LessonID,
		EarnedAt:    now,
	}, s.activities.LessonWriter(models.LessonCompletion{
		StudentID:         claims.UserID,
		LessonID:          req.LessonID,
		IsFirstAttempt:    req.IsFirstAttempt,
		IsPerfect:         req.IsPerfect,
		CompletionSeconds: req.CompletionTime,
		CreatedAt:         now,
	})); err != nil {
		return nil, err
	}

	result := &dto.RewardResult{XPEarned: award.Total, BaseXP: award.BaseXP, BonusXP: award.BonusXP}
	result.NewBadges, result.Warnings = s.evaluateBadges(ctx, claims.UserID, models.ActivityLesson,
		models.ActivityFacts{CompletionSeconds: req.CompletionTime}, result.Warnings)

	if index, ok := LessonIndex(req.LessonID); ok {
		signals := models.SignalSet(0).With(models.SignalStepCompleted)
		if err := s.gate.Complete(ctx, claims.UserID, models.StageLesson, index, signals); err != nil {
			result.Warnings = s.enrichmentFailed(result.Warnings, stepProgress, claims.UserID, err)
		} else {
			result.ProgressUpdated = true
		}
	}
	result.Warnings = s.refreshLeaderboard(ctx, claims.UserID, result.Warnings)
	return result, nil
}

// CompleteGame credits a finished mini-game and evaluates game badges.
func (s *RewardsService) CompleteGame(ctx context.Context, req dto.CompleteGameRequest, claims *models.JWTClaims) (*dto.RewardResult, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	now := s.now().UTC()
	award := s.calc.Calculate(models.ActivityGame, models.Performance{
		Score:             req.Score,
		IsHighScore:       req.IsHighScore,
		CompletionSeconds: req.CompletionTime,
	})
	if _, err := s.record(ctx, models.XPEntry{
		StudentID:   claims.UserID,
		DisplayName: claims.FullName,
		XP:          award.Total,
		Activity:    models.ActivityGame,
		Reason:      "game:" + req.GameType + ":" + req.LessonID,
		EarnedAt:    now,
	}, s.activities.GameWriter(models.GameSession{
		StudentID:         claims.UserID,
		LessonID:          req.LessonID,
		GameType:          req.GameType,
		Score:             req.Score,
		IsHighScore:       req.IsHighScore,
		Attempts:          req.Attempts,
		CompletionSeconds: req.CompletionTime,
		CreatedAt:         now,
	})); err != nil {
		return nil, err
	}

	result := &dto.RewardResult{XPEarned: award.Total, BaseXP: award.BaseXP, BonusXP: award.BonusXP}
	result.NewBadges, result.Warnings = s.evaluateBadges(ctx, claims.UserID, models.ActivityGame,
		models.ActivityFacts{Score: req.Score, CompletionSeconds: req.CompletionTime}, result.Warnings)
	result.Warnings = s.refreshLeaderboard(ctx, claims.UserID, result.Warnings)
	return result, nil
}

// CompleteWeeklyChallenge credits a challenge at most once per ISO week.
func (s *RewardsService) CompleteWeeklyChallenge(ctx context.Context, req dto.WeeklyChallengeRequest, claims *models.JWTClaims) (*dto.RewardResult, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	now := s.now()
	award := s.calc.Calculate(models.ActivityWeeklyChallenge, models.Performance{})
	credited, err := s.record(ctx, models.XPEntry{
		StudentID:   claims.UserID,
		DisplayName: claims.FullName,
		XP:          award.Total,
		Activity:    models.ActivityWeeklyChallenge,
		Reason:      "weekly_challenge:" + req.ChallengeID,
		EarnedAt:    now.UTC(),
	}, s.activities.ChallengeClaimGuard(models.ChallengeClaim{
		StudentID:   claims.UserID,
		ChallengeID: req.ChallengeID,
		WeekStart:   models.WeekStart(now.In(s.loc)),
	}))
	if err != nil {
		return nil, err
	}
	if !credited {
		return &dto.RewardResult{AlreadyCredited: true, NewBadges: []models.Badge{}}, nil
	}

	result := &dto.RewardResult{XPEarned: award.Total, BaseXP: award.BaseXP, BonusXP: award.BonusXP}
	result.NewBadges, result.Warnings = s.evaluateBadges(ctx, claims.UserID, models.ActivityWeeklyChallenge, models.ActivityFacts{}, result.Warnings)
	result.Warnings = s.refreshLeaderboard(ctx, claims.UserID, result.Warnings)
	return result, nil
}

// RecordDailyLogin credits today's login and evaluates streak badges. A second
// call on the same calendar day earns nothing and leaves the streak unchanged.
func (s *RewardsService) RecordDailyLogin(ctx context.Context, claims *models.JWTClaims) (*dto.DailyLoginResult, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	outcome, err := s.streaks.RecordDailyLogin(ctx, claims.UserID, claims.FullName)
	if err != nil {
		s.logger.Error("record daily login failed", zap.String("student_id", claims.UserID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to record daily login")
	}

	result := &dto.DailyLoginResult{
		XPEarned:        outcome.XPEarned,
		CurrentStreak:   outcome.Streak.CurrentStreak,
		LongestStreak:   outcome.Streak.LongestStreak,
		AlreadyCredited: outcome.AlreadyCredited,
		NewBadges:       []models.Badge{},
	}
	if outcome.AlreadyCredited {
		s.metrics.RecordXP(models.ActivityDailyLogin, 0, "duplicate")
		return result, nil
	}
	s.metrics.RecordXP(models.ActivityDailyLogin, outcome.XPEarned, "credited")

	result.NewBadges, result.Warnings = s.evaluateBadges(ctx, claims.UserID, models.ActivityDailyLogin, models.ActivityFacts{}, result.Warnings)
	result.Warnings = s.refreshLeaderboard(ctx, claims.UserID, result.Warnings)
	return result, nil
}

// ProgressSummary gathers stats, the recent XP feed, earned badges and the
// streak concurrently. A student with no activity gets zeroed values.
func (s *RewardsService) ProgressSummary(ctx context.Context, claims *models.JWTClaims) (*dto.ProgressSummary, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	studentID := claims.UserID
	summary := &dto.ProgressSummary{
		RecentXP: []models.XPTransaction{},
		Badges:   []models.EarnedBadge{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		student, err := s.ledger.GetStudent(gctx, studentID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		summary.Stats = dto.StudentStats{
			TotalXP:      student.TotalXP,
			WeeklyXP:     student.WeeklyXP,
			MonthlyXP:    student.MonthlyXP,
			TotalBadges:  student.TotalBadges,
			LastActivity: student.LastActivity,
		}
		return nil
	})
	g.Go(func() error {
		recent, err := s.ledger.ListRecent(gctx, studentID, s.recentLimit)
		if err != nil {
			return err
		}
		if recent != nil {
			summary.RecentXP = recent
		}
		return nil
	})
	g.Go(func() error {
		earned, err := s.badges.ListEarned(gctx, studentID)
		if err != nil {
			return err
		}
		if earned != nil {
			summary.Badges = earned
		}
		return nil
	})
	g.Go(func() error {
		streak, err := s.streaks.Get(gctx, studentID)
		if err != nil {
			return err
		}
		summary.Streak = dto.StreakView{
			CurrentStreak:  streak.CurrentStreak,
			LongestStreak:  streak.LongestStreak,
			TotalLoginDays: streak.TotalLoginDays,
		}
		if streak.LastLoginDate != nil {
			day := streak.LastLoginDate.Format("2006-01-02")
			summary.Streak.LastLoginDate = &day
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("load progress summary failed", zap.String("student_id", studentID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load progress summary")
	}
	return summary, nil
}

// ProgressStatus returns the stage completion view with unlock flags.
func (s *RewardsService) ProgressStatus(ctx context.Context, claims *models.JWTClaims) (*dto.ProgressStatus, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	state, err := s.gate.State(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load progress")
	}
	view := StatusView(state)
	return &view, nil
}

// UpdateProgress marks a stage complete. Lesson signals default to
// step_completed when none are sent.
func (s *RewardsService) UpdateProgress(ctx context.Context, req dto.UpdateProgressRequest, claims *models.JWTClaims) (*dto.UpdateProgressResult, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	var signals models.SignalSet
	for _, name := range req.Signals {
		sig, err := models.ParseSignal(name)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		signals = signals.With(sig)
	}
	if !signals.Any() {
		signals = signals.With(models.SignalStepCompleted)
	}

	if err := s.gate.Complete(ctx, claims.UserID, models.StageType(req.Type), req.ID, signals); err != nil {
		return nil, err
	}
	status, err := s.ProgressStatus(ctx, claims)
	if err != nil {
		return nil, err
	}
	return &dto.UpdateProgressResult{Success: true, Progress: *status}, nil
}

// Badges lists the catalog with the caller's earned flags.
func (s *RewardsService) Badges(ctx context.Context, claims *models.JWTClaims) ([]dto.BadgeStatus, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	catalog, err := s.badges.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load badges")
	}
	earned, err := s.badges.ListEarned(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load badges")
	}
	earnedAt := make(map[string]time.Time, len(earned))
	for _, b := range earned {
		earnedAt[b.BadgeID] = b.EarnedAt
	}

	out := make([]dto.BadgeStatus, 0, len(catalog))
	for _, badge := range catalog {
		status := dto.BadgeStatus{Badge: badge}
		if at, ok := earnedAt[badge.BadgeID]; ok {
			at := at
			status.Earned = true
			status.EarnedAt = &at
		}
		out = append(out, status)
	}
	return out, nil
}
