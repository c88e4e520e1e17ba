package contracts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bryanwahyu/contract-analysis/internal/application"
	domain "github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
	"github.com/bryanwahyu/contract-analysis/internal/domain/failures"
	"github.com/bryanwahyu/contract-analysis/internal/logging"
)

// Recorder receives pipeline outcomes. Implemented by the metrics middleware.
type Recorder interface {
	AnalysisStarted()
	AnalysisFinished(failed domain.Stage)
}

// Service implements the contract analysis use-cases.
// Service is safe for concurrent use as long as its collaborators are.
type Service struct {
	Repo       domain.Repository
	Extractor  domain.TextExtractor
	Classifier domain.TypeClassifier
	Analyzer   domain.Analyzer
	Users      domain.UserDirectory // optional
	Files      domain.FileStore     // optional, needed by Upload
	Failures   failures.Repository  // optional
	Clock      application.Clock
	IDs        application.IDGenerator
	Metrics    Recorder
	Logger     *slog.Logger
}

// AnalyzeCommand is one pipeline run request.
type AnalyzeCommand struct {
	FileURL      string
	FileName     string
	UserID       string
	ContractType string // empty means detect
}

// Analyze runs extract, classify (only when no type was given), analyze and
// persist, in that order. Each stage fails fast with a *domain.StageError.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*domain.ContractAnalysis, error) {
	start := time.Now()
	log := s.logger(ctx).With("source", cmd.FileURL, "user_id", cmd.UserID)

	ct, err := validateAnalyze(&cmd)
	if err != nil {
		log.Warn("pipeline.run.rejected", "err", err)
		return nil, &domain.StageError{Stage: domain.StageInput, Source: cmd.FileURL, Err: err}
	}

	s.recorder().AnalysisStarted()
	log.Info("pipeline.run.start", "contract_type", string(ct), "detect", ct == "")

	fail := func(stage domain.Stage, err error) error {
		se := &domain.StageError{Stage: stage, Source: cmd.FileURL, Err: err}
		log.Error("pipeline.run.failed",
			"stage", string(stage),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"retryable", se.Retryable(),
			"err", err,
		)
		s.recordFailure(ctx, se, cmd.UserID)
		s.recorder().AnalysisFinished(stage)
		return se
	}

	// 1) extract
	if err := ctx.Err(); err != nil {
		return nil, fail(domain.StageExtract, err)
	}
	text, err := s.Extractor.ExtractText(ctx, cmd.FileURL)
	if err != nil {
		return nil, fail(domain.StageExtract, err)
	}
	log.Info("pipeline.extract.ok", "chars", len(text))

	// 2) classify, only when the caller did not name a type
	if ct == "" {
		if err := ctx.Err(); err != nil {
			return nil, fail(domain.StageClassify, err)
		}
		ct, err = s.Classifier.DetectType(ctx, text)
		if err != nil {
			return nil, fail(domain.StageClassify, err)
		}
		log.Info("pipeline.classify.ok", "contract_type", string(ct))
	}

	// 3) analyze
	if err := ctx.Err(); err != nil {
		return nil, fail(domain.StageAnalyze, err)
	}
	payload, err := s.Analyzer.Analyze(ctx, text, ct)
	if err != nil {
		return nil, fail(domain.StageAnalyze, err)
	}
	log.Info("pipeline.analyze.ok", "contract_type", string(ct), "score", payload.OverallScore, "model", payload.AIModel)

	// 4) persist
	rec := domain.NewAnalysis(cmd.UserID, ct, text,
		domain.Attachment{FileName: cmd.FileName, FileURL: cmd.FileURL}, *payload)
	rec.ID = domain.AnalysisID(s.ids().NewID())
	rec.CreatedAt = s.clock().Now().UTC()

	if err := ctx.Err(); err != nil {
		return nil, fail(domain.StagePersist, err)
	}
	if err := s.Repo.Save(ctx, rec); err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return nil, fail(domain.StagePersist, err)
	}

	s.recorder().AnalysisFinished("")
	log.Info("pipeline.persist.ok",
		"id", string(rec.ID),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// DetectCommand carries either a document URL or raw text. Text wins.
type DetectCommand struct {
	FileURL string
	Text    string
}

// DetectType classifies a document without analyzing or storing it.
// Failures past input validation are logged like pipeline runs.
func (s *Service) DetectType(ctx context.Context, cmd DetectCommand) (domain.ContractType, error) {
	source := strings.TrimSpace(cmd.FileURL)
	log := s.logger(ctx).With("source", source)
	text := cmd.Text

	fail := func(stage domain.Stage, err error) error {
		se := &domain.StageError{Stage: stage, Source: source, Err: err}
		log.Error("detect.failed", "stage", string(stage), "retryable", se.Retryable(), "err", err)
		s.recordFailure(ctx, se, "")
		return se
	}

	if strings.TrimSpace(text) == "" {
		if source == "" {
			return "", &domain.StageError{Stage: domain.StageInput, Err: domain.Invalid("fileUrl or text is required")}
		}
		if err := checkURL(source); err != nil {
			log.Warn("detect.rejected", "err", err)
			return "", &domain.StageError{Stage: domain.StageInput, Source: source, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return "", fail(domain.StageExtract, err)
		}
		var err error
		text, err = s.Extractor.ExtractText(ctx, source)
		if err != nil {
			return "", fail(domain.StageExtract, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", fail(domain.StageClassify, err)
	}
	ct, err := s.Classifier.DetectType(ctx, text)
	if err != nil {
		return "", fail(domain.StageClassify, err)
	}
	log.Info("detect.ok", "contract_type", string(ct))
	return ct, nil
}

// Get returns one stored analysis.
func (s *Service) Get(ctx context.Context, id domain.AnalysisID) (*domain.ContractAnalysis, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, domain.Invalid("id is required")
	}
	return s.Repo.FindByID(ctx, id)
}

// ListByOwner returns a user's analyses, newest first.
func (s *Service) ListByOwner(ctx context.Context, userID string, page, pageSize int) ([]*domain.ContractAnalysis, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("userId is required")
	}
	page, pageSize = clampPage(page, pageSize)
	return s.Repo.ListByOwner(ctx, userID, page, pageSize)
}

// ListAll returns every analysis with its owner's display name. Names that
// cannot be resolved, including on directory errors, become "Unknown".
func (s *Service) ListAll(ctx context.Context, page, pageSize int) ([]*domain.OwnedAnalysis, error) {
	page, pageSize = clampPage(page, pageSize)
	recs, err := s.Repo.ListAll(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	return s.withNames(ctx, recs), nil
}

func (s *Service) withNames(ctx context.Context, recs []*domain.ContractAnalysis) []*domain.OwnedAnalysis {
	names := map[string]string{}
	out := make([]*domain.OwnedAnalysis, 0, len(recs))
	for _, r := range recs {
		name, seen := names[r.UserID]
		if !seen {
			name = s.displayName(ctx, r.UserID)
			names[r.UserID] = name
		}
		out = append(out, &domain.OwnedAnalysis{ContractAnalysis: *r, UserName: name})
	}
	return out
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	if s.Users == nil {
		return domain.UnknownUserName
	}
	name, ok, err := s.Users.DisplayName(ctx, userID)
	if err != nil {
		s.logger(ctx).Warn("directory.lookup.failed", "user_id", userID, "err", err)
		return domain.UnknownUserName
	}
	if !ok || strings.TrimSpace(name) == "" {
		return domain.UnknownUserName
	}
	return name
}

// ListFailures returns the most recent failed runs.
func (s *Service) ListFailures(ctx context.Context, limit int) ([]*failures.Failure, error) {
	if s.Failures == nil {
		return []*failures.Failure{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.Failures.ListRecent(ctx, limit)
}

// recordFailure is best effort and never replaces the pipeline error.
func (s *Service) recordFailure(ctx context.Context, se *domain.StageError, userID string) {
	if s.Failures == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	details := fmt.Sprintf(`{"retryable":%t,"request_id":%q}`, se.Retryable(), logging.RequestID(ctx))
	f := &failures.Failure{
		Stage:       string(se.Stage),
		Source:      se.Source,
		UserID:      userID,
		Message:     se.Err.Error(),
		DetailsJSON: details,
		CreatedAt:   s.clock().Now().UTC(),
	}
	if err := s.Failures.Save(ctx, f); err != nil {
		s.logger(ctx).Warn("failure.log.save", "stage", string(se.Stage), "err", err)
	}
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// validateAnalyze trims cmd in place and returns the explicit type, or "" to detect.
func validateAnalyze(cmd *AnalyzeCommand) (domain.ContractType, error) {
	cmd.FileURL = strings.TrimSpace(cmd.FileURL)
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	cmd.FileName = strings.TrimSpace(cmd.FileName)
	if cmd.FileURL == "" {
		return "", domain.Invalid("fileUrl is required")
	}
	if cmd.UserID == "" {
		return "", domain.Invalid("userId is required")
	}
	if err := checkURL(cmd.FileURL); err != nil {
		return "", err
	}
	if cmd.FileName == "" {
		cmd.FileName = fileNameFromURL(cmd.FileURL)
	}
	raw := strings.TrimSpace(cmd.ContractType)
	if raw == "" {
		return "", nil
	}
	ct, ok := domain.ParseType(raw)
	if !ok {
		return "", domain.Invalid("unknown contractType %q", raw)
	}
	return ct, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return domain.Invalid("fileUrl is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.Invalid("fileUrl must be http or https")
	}
	return nil
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return "contract.pdf"
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	base := s.Logger
	if base == nil {
		base = slog.Default()
	}
	return logging.FromContext(ctx, base)
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

func (s *Service) ids() application.IDGenerator {
	if s.IDs == nil {
		return application.UUIDGenerator{}
	}
	return s.IDs
}

type nopRecorder struct{}

func (nopRecorder) AnalysisStarted()              {}
func (nopRecorder) AnalysisFinished(domain.Stage) {}

func (s *Service) recorder() Recorder {
	if s.Metrics == nil {
		return nopRecorder{}
	}
	return s.Metrics
}
