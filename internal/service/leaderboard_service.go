package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kidcode-rewards-api/internal/dto"
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
	"github.com/noah-isme/kidcode-rewards-api/pkg/export"
)

// DefaultLeaderboardLimit caps every returned board.
const DefaultLeaderboardLimit = 50

const leaderboardCachePrefix = "lb:"

type leaderboardStore interface {
	Candidates(ctx context.Context, board models.LeaderboardType, since time.Time, limit int) ([]models.LeaderboardCandidate, error)
}

// RankCandidates drops non-positive metrics, orders by metric descending while
// keeping the input order among ties, and numbers rows 1..n. A positive limit
// caps the result.
func RankCandidates(cands []models.LeaderboardCandidate, limit int) []models.LeaderboardEntry {
	kept := make([]models.LeaderboardCandidate, 0, len(cands))
	for _, c := range cands {
		if c.Value > 0 {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Value > kept[j].Value })
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	entries := make([]models.LeaderboardEntry, len(kept))
	for i, c := range kept {
		name := c.Name
		if name == "" {
			name = c.StudentID
		}
		entries[i] = models.LeaderboardEntry{Rank: i + 1, StudentID: c.StudentID, Name: name, MetricValue: c.Value}
	}
	return entries
}

// LeaderboardConfig tunes ranking output.
type LeaderboardConfig struct {
	Limit    int
	CacheTTL time.Duration
	Location *time.Location
}

// LeaderboardService ranks students per board with a read-through cache.
type LeaderboardService struct {
	store  leaderboardStore
	cache  *CacheService
	logger *zap.Logger
	cfg    LeaderboardConfig
	now    func() time.Time
}

// NewLeaderboardService constructs the service with defaults applied.
func NewLeaderboardService(store leaderboardStore, cache *CacheService, cfg LeaderboardConfig, logger *zap.Logger) *LeaderboardService {
	if cfg.Limit <= 0 || cfg.Limit > DefaultLeaderboardLimit {
		cfg.Limit = DefaultLeaderboardLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardService{store: store, cache: cache, logger: logger, cfg: cfg, now: time.Now}
}

func parseBoard(raw string) (models.LeaderboardType, error) {
	board := models.LeaderboardType(strings.TrimSpace(raw))
	if board == "" {
		board = models.LeaderboardAllTime
	}
	if !board.Valid() {
		names := make([]string, len(models.LeaderboardTypes))
		for i, t := range models.LeaderboardTypes {
			names[i] = string(t)
		}
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("type must be one of [%s]", strings.Join(names, " ")))
	}
	return board, nil
}

// monthStart is the first instant of the current month on the rewards calendar.
func (s *LeaderboardService) monthStart() time.Time {
	now := s.now().In(s.cfg.Location)
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.cfg.Location)
}

func (s *LeaderboardService) rank(ctx context.Context, board models.LeaderboardType, limit int) ([]models.LeaderboardEntry, error) {
	cands, err := s.store.Candidates(ctx, board, s.monthStart(), limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load leaderboard")
	}
	return RankCandidates(cands, limit), nil
}

// Get returns the ranked board and whether it was served from cache. An
// empty type means all_time.
func (s *LeaderboardService) Get(ctx context.Context, rawType string) (*dto.LeaderboardResponse, bool, error) {
	board, err := parseBoard(rawType)
	if err != nil {
		return nil, false, err
	}
	var resp dto.LeaderboardResponse
	hit, err := s.cache.Fetch(ctx, leaderboardCachePrefix+string(board), s.cfg.CacheTTL, &resp, func(ctx context.Context) error {
		entries, err := s.rank(ctx, board, s.cfg.Limit)
		if err != nil {
			return err
		}
		resp = dto.LeaderboardResponse{Type: board, Leaderboard: entries, GeneratedAt: s.now().UTC()}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &resp, hit, nil
}

// MyRank finds studentID on the uncapped ranking; Rank is nil when the
// student has no positive metric.
func (s *LeaderboardService) MyRank(ctx context.Context, rawType, studentID string) (*dto.MyRankResponse, error) {
	board, err := parseBoard(rawType)
	if err != nil {
		return nil, err
	}
	entries, err := s.rank(ctx, board, 0)
	if err != nil {
		return nil, err
	}
	resp := &dto.MyRankResponse{Type: board}
	for _, e := range entries {
		if e.StudentID == studentID {
			rank := e.Rank
			resp.Rank = &rank
			resp.MetricValue = e.MetricValue
			break
		}
	}
	return resp, nil
}

// LeaderboardExport is a rendered board ready for download.
type LeaderboardExport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// Export renders the capped board as csv (default) or pdf.
func (s *LeaderboardService) Export(ctx context.Context, rawType, rawFormat string) (*LeaderboardExport, error) {
	board, err := parseBoard(rawType)
	if err != nil {
		return nil, err
	}
	renderer, err := export.ForFormat(export.Format(strings.ToLower(strings.TrimSpace(rawFormat))))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be one of [csv pdf]")
	}
	resp, _, err := s.Get(ctx, string(board))
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("Leaderboard %s (%s)", board, resp.GeneratedAt.In(s.cfg.Location).Format("2006-01-02 15:04")),
		Headers: []string{"Rank", "Student ID", "Name", "Value"},
		Rows:    make([]map[string]string, 0, len(resp.Leaderboard)),
	}
	for _, e := range resp.Leaderboard {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Rank":       strconv.Itoa(e.Rank),
			"Student ID": e.StudentID,
			"Name":       e.Name,
			"Value":      strconv.Itoa(e.MetricValue),
		})
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render leaderboard")
	}
	return &LeaderboardExport{
		Filename:    fmt.Sprintf("leaderboard-%s-%s.%s", board, s.now().In(s.cfg.Location).Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Payload:     payload,
	}, nil
}

// Invalidate drops every cached board.
func (s *LeaderboardService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, leaderboardCachePrefix+"*")
}
