package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidahmann/counterpoint/internal/analysis"
	"github.com/davidahmann/counterpoint/internal/archive"
	"github.com/davidahmann/counterpoint/internal/config"
	"github.com/davidahmann/counterpoint/internal/dashboard"
	"github.com/davidahmann/counterpoint/internal/decision"
	"github.com/davidahmann/counterpoint/internal/digest"
	"github.com/davidahmann/counterpoint/internal/generation"
	"github.com/davidahmann/counterpoint/internal/language"
	"github.com/davidahmann/counterpoint/internal/policy"
	"github.com/davidahmann/counterpoint/internal/safety"
	"github.com/davidahmann/counterpoint/internal/tablestore"
	"github.com/davidahmann/counterpoint/pkg/types"
)

const (
	MediaText  = "text"
	MediaImage = "image"

	// ModerationPartition holds moderation records next to the session rows.
	ModerationPartition = "ModerationPartition"

	EmptyInputMessage = "Please enter some text."
)

var (
	ErrEmptyInput    = errors.New(EmptyInputMessage)
	ErrNotConfigured = errors.New("service not configured")
	ErrPersist       = errors.New("persist failed")
)

// CollaboratorError is a failure of a remote service other than a content
// policy refusal.
type CollaboratorError struct {
	Service string
	Err     error
}

func (e *CollaboratorError) Error() string { return e.Service + ": " + e.Err.Error() }

func (e *CollaboratorError) Unwrap() error { return e.Err }

// ThresholdSource yields the thresholds in force; *policy.Watcher satisfies it.
type ThresholdSource interface {
	Current() policy.LoadedThresholds
}

// StaticThresholds never changes.
type StaticThresholds policy.LoadedThresholds

func (s StaticThresholds) Current() policy.LoadedThresholds { return policy.LoadedThresholds(s) }

type Service struct {
	Generator  generation.Generator
	Analyzer   language.Analyzer
	Detector   safety.Detector
	Store      tablestore.Store
	Archiver   archive.Archiver
	Thresholds ThresholdSource
	Blocklists []string
	Partition  string
	Logger     *zap.Logger
	Now        func() time.Time
}

type TextResult struct {
	RowKey          string          `json:"row_key"`
	Record          analysis.Record `json:"record"`
	KeyPhrases      []string        `json:"key_phrases"`
	Highlighted     string          `json:"highlighted"`
	PolicyViolation bool            `json:"policy_violation"`
}

type CategoryResult struct {
	Category string `json:"category"`
	Severity int    `json:"severity"`
	Band     string `json:"band"`
	Action   string `json:"action"`
}

type ModerationResult struct {
	Record     types.ModerationRecord `json:"record"`
	Categories []CategoryResult       `json:"categories"`
	Archived   string                 `json:"archived,omitempty"`
}

// SubmitText generates a counter-narrative and analyzes the text concurrently,
// then stores the shaped record. A generation refusal or failure becomes the
// stored counter-narrative; an analysis failure aborts.
func (s *Service) SubmitText(ctx context.Context, text string) (TextResult, error) {
	if strings.TrimSpace(text) == "" {
		return TextResult{}, ErrEmptyInput
	}
	if s.Generator == nil || s.Analyzer == nil || s.Store == nil {
		return TextResult{}, ErrNotConfigured
	}

	var (
		narrative string
		genErr    error
		result    language.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		narrative, genErr = s.Generator.Generate(gctx, text)
		return nil
	})
	g.Go(func() error {
		res, err := s.Analyzer.Analyze(gctx, text)
		if err != nil {
			return &CollaboratorError{Service: "language", Err: err}
		}
		result = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return TextResult{}, err
	}

	out := TextResult{KeyPhrases: result.KeyPhrases}
	if genErr != nil {
		out.PolicyViolation = errors.Is(genErr, generation.ErrPolicyViolation)
		narrative = generation.Describe(genErr)
		s.logger().Warn("counter-narrative generation failed",
			zap.Bool("policy_violation", out.PolicyViolation), zap.Error(genErr))
	}

	out.Record = analysis.Shape(analysis.Input{
		Text:             text,
		Sentiment:        result.Sentiment,
		Scores:           result.Scores,
		KeyPhrases:       result.KeyPhrases,
		CounterNarrative: narrative,
	})
	out.Highlighted = Highlight(text, result.KeyPhrases)
	out.RowKey = tablestore.NewRowKey()

	row := tablestore.Row{PartitionKey: s.partition(), RowKey: out.RowKey, Properties: out.Record.Row()}
	if err := s.Store.Upsert(ctx, row); err != nil {
		s.logger().Error("session row not stored", zap.String("row_key", out.RowKey), zap.Error(err))
		return out, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.logger().Info("session stored",
		zap.String("row_key", out.RowKey),
		zap.String("sentiment", out.Record.Sentiment),
		zap.String("severity", out.Record.Severity))
	return out, nil
}

// ModerateImage archives the upload, then detects and decides like ModerateText.
func (s *Service) ModerateImage(ctx context.Context, name string, content []byte) (ModerationResult, error) {
	if len(content) == 0 {
		return ModerationResult{}, fmt.Errorf("%w: empty image", policy.ErrInvalidArgument)
	}
	if s.Detector == nil {
		return ModerationResult{}, ErrNotConfigured
	}

	var archived string
	if s.Archiver != nil {
		loc, err := s.Archiver.Archive(ctx, name, content)
		if err != nil {
			s.logger().Warn("image archive failed", zap.String("name", name), zap.Error(err))
		}
		archived = loc
	}

	det, err := s.Detector.DetectImage(ctx, content)
	if err != nil {
		return ModerationResult{}, detectionError(err)
	}
	res, err := s.decide(ctx, MediaImage, content, det, nil)
	res.Archived = archived
	return res, err
}

func (s *Service) ModerateText(ctx context.Context, text string, blocklists []string) (ModerationResult, error) {
	if strings.TrimSpace(text) == "" {
		return ModerationResult{}, ErrEmptyInput
	}
	if s.Detector == nil {
		return ModerationResult{}, ErrNotConfigured
	}
	if len(blocklists) == 0 {
		blocklists = s.Blocklists
	}
	det, err := s.Detector.DetectText(ctx, text, blocklists)
	if err != nil {
		return ModerationResult{}, detectionError(err)
	}
	return s.decide(ctx, MediaText, []byte(text), det, blocklists)
}

// Sessions returns every stored analysis record in insertion order.
func (s *Service) Sessions(ctx context.Context) ([]analysis.Record, error) {
	if s.Store == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.Store.Query(ctx, s.partition())
	if err != nil {
		return nil, &CollaboratorError{Service: "table store", Err: err}
	}
	out := make([]analysis.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, analysis.FromRow(row.Properties))
	}
	return out, nil
}

func (s *Service) Dashboard(ctx context.Context) (dashboard.Summary, error) {
	records, err := s.Sessions(ctx)
	if err != nil {
		return dashboard.Summary{}, err
	}
	return dashboard.Summarize(records), nil
}

func (s *Service) decide(ctx context.Context, mediaType string, content []byte, det safety.Detection, blocklists []string) (ModerationResult, error) {
	thresholds := s.thresholds()
	dec, err := thresholds.Decide(det.Severities)
	if err != nil {
		return ModerationResult{}, err
	}

	record, err := decision.BuildDecision(decision.Input{
		ContentDigest:    digest.WithPrefix(content),
		MediaType:        mediaType,
		Severities:       det.Severities,
		Decision:         dec,
		Policy:           types.DecisionPolicy{PolicyID: thresholds.PolicyID, PolicyVersion: thresholds.PolicyVersion, PolicyHash: thresholds.Hash},
		Blocklists:       blocklists,
		BlocklistMatches: det.BlocklistMatches,
		CreatedAt:        s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return ModerationResult{}, err
	}

	res := ModerationResult{Record: record}
	for _, category := range policy.Categories {
		severity, ok := det.Severities[category]
		if !ok {
			continue
		}
		res.Categories = append(res.Categories, CategoryResult{
			Category: category.String(),
			Severity: int(severity),
			Band:     severity.Band(),
			Action:   dec.ActionByCategory[category].String(),
		})
	}

	if s.Store != nil {
		row := tablestore.Row{PartitionKey: ModerationPartition, RowKey: record.DecisionID, Properties: moderationRow(record)}
		if err := s.Store.Upsert(ctx, row); err != nil {
			s.logger().Error("moderation record not stored", zap.String("decision_id", record.DecisionID), zap.Error(err))
			return res, fmt.Errorf("%w: %v", ErrPersist, err)
		}
	}
	s.logger().Info("moderation decided",
		zap.String("media_type", mediaType),
		zap.String("decision_id", record.DecisionID),
		zap.String("suggested_action", record.SuggestedAction))
	return res, nil
}

// moderationRow flattens a moderation record to primitive columns.
func moderationRow(rec types.ModerationRecord) map[string]any {
	props := map[string]any{
		"schema":           rec.Schema,
		"created_at":       rec.CreatedAt,
		"content_digest":   rec.ContentDigest,
		"media_type":       rec.MediaType,
		"policy_id":        rec.Policy.PolicyID,
		"policy_version":   rec.Policy.PolicyVersion,
		"policy_hash":      rec.Policy.PolicyHash,
		"suggested_action": rec.SuggestedAction,
		"blocklists":       strings.Join(rec.Blocklists, ","),
	}
	for category, severity := range rec.Severities {
		props["severity_"+category] = severity
	}
	for category, action := range rec.ActionByCategory {
		props["action_"+category] = action
	}
	return props
}

func detectionError(err error) error {
	if errors.Is(err, policy.ErrInvalidArgument) {
		return err
	}
	return &CollaboratorError{Service: "content safety", Err: err}
}

func (s *Service) thresholds() policy.LoadedThresholds {
	if s.Thresholds == nil {
		return policy.DefaultThresholds()
	}
	return s.Thresholds.Current()
}

func (s *Service) partition() string {
	if s.Partition == "" {
		return config.DefaultPartition
	}
	return s.Partition
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
