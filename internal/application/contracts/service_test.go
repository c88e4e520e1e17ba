package contracts_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/contract-analysis/internal/application"
	appai "github.com/bryanwahyu/contract-analysis/internal/application/ai"
	app "github.com/bryanwahyu/contract-analysis/internal/application/contracts"
	domai "github.com/bryanwahyu/contract-analysis/internal/domain/ai"
	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
	"github.com/bryanwahyu/contract-analysis/internal/infra/ai/prompt"
	"github.com/bryanwahyu/contract-analysis/internal/infra/db/sqlite"
	"github.com/bryanwahyu/contract-analysis/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/contract-analysis/internal/infra/pdftext"
	"github.com/bryanwahyu/contract-analysis/internal/middleware"
	"github.com/bryanwahyu/contract-analysis/internal/testutil"
)

const analysisReply = `{
  "contractType": "Employment",
  "risks": [{"description": "Unpaid overtime", "explanation": "No cap", "severity": "high"}],
  "opportunities": [{"description": "Bonus", "explanation": "Annual", "impact": "medium"}],
  "summary": "Standard employment agreement.",
  "recommendations": ["Clarify overtime"],
  "keyClauses": ["Working hours"],
  "overallScore": 72
}`

// scriptedAI answers classification and analysis prompts separately.
type scriptedAI struct {
	mu            sync.Mutex
	label         string
	analysis      string
	err           error
	classifyCalls int
	analyzeCalls  int
	analyzeSystem []string
}

func (s *scriptedAI) Complete(_ context.Context, req domai.Request) (*domai.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.System == prompt.ClassifySystemPrompt() {
		s.classifyCalls++
		if s.err != nil {
			return nil, s.err
		}
		return &domai.Response{Content: `{"contractType": "` + s.label + `"}`, Model: "fake"}, nil
	}
	s.analyzeCalls++
	s.analyzeSystem = append(s.analyzeSystem, req.System)
	if s.err != nil {
		return nil, s.err
	}
	return &domai.Response{Content: s.analysis, Model: "fake"}, nil
}

func (s *scriptedAI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classifyCalls + s.analyzeCalls
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "an-" + string(rune('0'+g.n))
}

type harness struct {
	svc      *app.Service
	ai       *scriptedAI
	repo     *sqlstore.AnalysisRepository
	failures *sqlstore.FailureRepository
	files    *testutil.FileServer
	metrics  *middleware.Metrics
}

func newHarness(t *testing.T, ai *scriptedAI) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlstore.Migrate(ctx, db, sqlite.Dialect); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	files := testutil.ServeFiles(t, map[string][]byte{
		"/employment.pdf": testutil.BuildPDF("Employee shall work 40 hours per week.", "Salary is paid monthly."),
		"/lease.pdf":      testutil.BuildPDF("Tenant shall pay rent on the first day of each month."),
		"/scan.pdf":       testutil.BuildPDF("", ""),
		"/corrupt.pdf":    testutil.Corrupt(testutil.BuildPDF("Employee shall work 40 hours per week."), 13),
	})

	ext, err := pdftext.New(ctx, pdftext.WithAllowPrivateHosts(true), pdftext.WithParseTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("pdftext.New: %v", err)
	}
	analyzer, err := appai.NewAnalyzer(ai, 0, nil)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	repo := sqlstore.NewAnalysisRepository(db, sqlite.Dialect)
	fails := sqlstore.NewFailureRepository(db, sqlite.Dialect)
	metrics := middleware.NewMetrics()
	return &harness{
		svc: &app.Service{
			Repo:       repo,
			Extractor:  ext,
			Classifier: appai.NewClassifier(ai, 0, nil),
			Analyzer:   analyzer,
			Failures:   fails,
			Clock:      application.FixedClock{T: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
			IDs:        &seqIDs{},
			Metrics:    metrics,
		},
		ai:       ai,
		repo:     repo,
		failures: fails,
		files:    files,
		metrics:  metrics,
	}
}

func TestAnalyze_ScenarioA_ExplicitType(t *testing.T) {
	ai := &scriptedAI{analysis: analysisReply}
	h := newHarness(t, ai)
	ctx := context.Background()

	rec, err := h.svc.Analyze(ctx, app.AnalyzeCommand{
		FileURL:      h.files.URL + "/employment.pdf",
		UserID:       "u1",
		ContractType: "Employment",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rec.ContractType != contracts.TypeEmployment {
		t.Errorf("ContractType = %q", rec.ContractType)
	}
	if !strings.Contains(rec.ContractText, "Employee shall work 40 hours") {
		t.Errorf("ContractText = %q", rec.ContractText)
	}
	if rec.OverallScore < contracts.MinScore || rec.OverallScore > contracts.MaxScore {
		t.Errorf("OverallScore = %d", rec.OverallScore)
	}
	if ai.classifyCalls != 0 {
		t.Errorf("classifier called %d times with an explicit type", ai.classifyCalls)
	}
	if got := rec.Attachments; len(got) != 1 || got[0].FileName != "employment.pdf" {
		t.Errorf("Attachments = %+v", got)
	}

	stored, err := h.svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get(%s): %v", rec.ID, err)
	}
	if stored.Summary != rec.Summary || stored.ContractType != rec.ContractType || stored.UserID != "u1" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestAnalyze_ScenarioB_UnfetchableURL(t *testing.T) {
	ai := &scriptedAI{label: "Lease", analysis: analysisReply}
	h := newHarness(t, ai)

	_, err := h.svc.Analyze(context.Background(), app.AnalyzeCommand{
		FileURL: h.files.URL + "/missing.pdf",
		UserID:  "u1",
	})
	if !errors.Is(err, contracts.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
	if contracts.StageOf(err) != contracts.StageExtract {
		t.Errorf("stage = %q", contracts.StageOf(err))
	}
	if n := ai.calls(); n != 0 {
		t.Errorf("AI backend called %d times", n)
	}
}

func TestAnalyze_ScenarioC_TextlessPDF(t *testing.T) {
	ai := &scriptedAI{analysis: analysisReply}
	h := newHarness(t, ai)
	ctx := context.Background()

	_, err := h.svc.Analyze(ctx, app.AnalyzeCommand{
		FileURL:      h.files.URL + "/scan.pdf",
		UserID:       "u1",
		ContractType: "Lease",
	})
	if !errors.Is(err, contracts.ErrNoExtractableText) {
		t.Fatalf("err = %v, want ErrNoExtractableText", err)
	}
	if !strings.Contains(err.Error(), "no extractable text") {
		t.Errorf("message = %q", err.Error())
	}
	assertNoRecords(t, h)

	fails, err := h.svc.ListFailures(ctx, 10)
	if err != nil {
		t.Fatalf("ListFailures: %v", err)
	}
	if len(fails) != 1 || fails[0].Stage != "extract" || fails[0].UserID != "u1" {
		t.Errorf("failures = %+v", fails)
	}
}

func TestAnalyze_ScenarioD_DetectsTypeWhenAbsent(t *testing.T) {
	ai := &scriptedAI{label: "Lease", analysis: analysisReply}
	h := newHarness(t, ai)

	rec, err := h.svc.Analyze(context.Background(), app.AnalyzeCommand{
		FileURL: h.files.URL + "/lease.pdf",
		UserID:  "u2",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if ai.classifyCalls != 1 || ai.analyzeCalls != 1 {
		t.Errorf("calls = classify %d, analyze %d", ai.classifyCalls, ai.analyzeCalls)
	}
	if !strings.Contains(ai.analyzeSystem[0], `"contractType" must be "Lease"`) {
		t.Errorf("analyzer prompt was not parameterized with Lease")
	}
	if rec.ContractType != contracts.TypeLease {
		t.Errorf("ContractType = %q, want Lease", rec.ContractType)
	}
	stored, err := h.repo.FindByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.ContractType != contracts.TypeLease {
		t.Errorf("stored ContractType = %q, want Lease", stored.ContractType)
	}
}

func TestAnalyze_ScenarioE_MissingSummary(t *testing.T) {
	ai := &scriptedAI{analysis: `{"contractType":"Employment","risks":[],"opportunities":[],"overallScore":50}`}
	h := newHarness(t, ai)

	_, err := h.svc.Analyze(context.Background(), app.AnalyzeCommand{
		FileURL:      h.files.URL + "/employment.pdf",
		UserID:       "u1",
		ContractType: "Employment",
	})
	if !errors.Is(err, contracts.ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
	var se *contracts.StageError
	if !errors.As(err, &se) || se.Stage != contracts.StageAnalyze || se.Retryable() {
		t.Errorf("stage error = %+v", se)
	}
	assertNoRecords(t, h)
}

func TestAnalyze_BackendUnavailableIsRetryable(t *testing.T) {
	ai := &scriptedAI{err: domai.ErrQuotaExceeded}
	h := newHarness(t, ai)

	_, err := h.svc.Analyze(context.Background(), app.AnalyzeCommand{
		FileURL:      h.files.URL + "/employment.pdf",
		UserID:       "u1",
		ContractType: "Employment",
	})
	var se *contracts.StageError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StageError", err)
	}
	if !se.Retryable() || !errors.Is(err, domai.ErrQuotaExceeded) {
		t.Errorf("err = %v, retryable = %v", err, se.Retryable())
	}
}

func TestAnalyze_InputRejectedBeforeAnyCall(t *testing.T) {
	tests := map[string]app.AnalyzeCommand{
		"missing url":  {UserID: "u1"},
		"missing user": {FileURL: "http://files.local/a.pdf"},
		"bad scheme":   {FileURL: "ftp://files.local/a.pdf", UserID: "u1"},
		"unknown type": {FileURL: "http://files.local/a.pdf", UserID: "u1", ContractType: "Spaceship"},
	}
	for name, cmd := range tests {
		t.Run(name, func(t *testing.T) {
			ai := &scriptedAI{analysis: analysisReply}
			h := newHarness(t, ai)
			_, err := h.svc.Analyze(context.Background(), cmd)
			if !errors.Is(err, contracts.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			if contracts.StageOf(err) != contracts.StageInput {
				t.Errorf("stage = %q", contracts.StageOf(err))
			}
			if h.files.Hits.Load() != 0 || ai.calls() != 0 {
				t.Errorf("external calls made: fetch %d, ai %d", h.files.Hits.Load(), ai.calls())
			}
		})
	}
}

func TestAnalyze_CanceledContextStopsBeforeFetch(t *testing.T) {
	ai := &scriptedAI{analysis: analysisReply}
	h := newHarness(t, ai)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.Analyze(ctx, app.AnalyzeCommand{FileURL: h.files.URL + "/employment.pdf", UserID: "u1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if h.files.Hits.Load() != 0 || ai.calls() != 0 {
		t.Errorf("external calls made after cancel")
	}
}

// flakyRepo fails the first Save and then delegates.
type flakyRepo struct {
	contracts.Repository
	failed bool
}

func (r *flakyRepo) Save(ctx context.Context, a *contracts.ContractAnalysis) error {
	if !r.failed {
		r.failed = true
		return errors.New("connection reset")
	}
	return r.Repository.Save(ctx, a)
}

func TestAnalyze_PersistenceFailureThenRetry(t *testing.T) {
	ai := &scriptedAI{analysis: analysisReply}
	h := newHarness(t, ai)
	h.svc.Repo = &flakyRepo{Repository: h.repo}
	cmd := app.AnalyzeCommand{FileURL: h.files.URL + "/employment.pdf", UserID: "u1", ContractType: "Employment"}

	_, err := h.svc.Analyze(context.Background(), cmd)
	if !errors.Is(err, contracts.ErrPersistence) || contracts.StageOf(err) != contracts.StagePersist {
		t.Fatalf("err = %v, want persist-stage ErrPersistence", err)
	}
	assertNoRecords(t, h)

	rec, err := h.svc.Analyze(context.Background(), cmd)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	all, err := h.repo.ListAll(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || all[0].ID != rec.ID {
		t.Errorf("records after retry = %d", len(all))
	}
}

type fakeDirectory map[string]string

func (d fakeDirectory) DisplayName(_ context.Context, id string) (string, bool, error) {
	if id == "broken" {
		return "", false, errors.New("directory down")
	}
	name, ok := d[id]
	return name, ok, nil
}

func TestListAll_UnknownFallback(t *testing.T) {
	ai := &scriptedAI{analysis: analysisReply}
	h := newHarness(t, ai)
	h.svc.Users = fakeDirectory{"u1": "Alice"}
	ctx := context.Background()

	for _, user := range []string{"u1", "ghost", "broken"} {
		if _, err := h.svc.Analyze(ctx, app.AnalyzeCommand{
			FileURL: h.files.URL + "/employment.pdf", UserID: user, ContractType: "Employment",
		}); err != nil {
			t.Fatalf("Analyze(%s): %v", user, err)
		}
	}

	list, err := h.svc.ListAll(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	got := map[string]string{}
	for _, r := range list {
		got[r.UserID] = r.UserName
	}
	want := map[string]string{"u1": "Alice", "ghost": contracts.UnknownUserName, "broken": contracts.UnknownUserName}
	for id, name := range want {
		if got[id] != name {
			t.Errorf("UserName[%s] = %q, want %q", id, got[id], name)
		}
	}

	own, err := h.svc.ListByOwner(ctx, "u1", 0, 0)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(own) != 1 {
		t.Errorf("ListByOwner = %d records", len(own))
	}
}

func TestAnalyze_MalformedPDFIsExtractionFailure(t *testing.T) {
	ai := &scriptedAI{analysis: analysisReply}
	h := newHarness(t, ai)
	ctx := context.Background()

	_, err := h.svc.Analyze(ctx, app.AnalyzeCommand{
		FileURL:      h.files.URL + "/corrupt.pdf",
		UserID:       "u1",
		ContractType: "Employment",
	})
	if !errors.Is(err, contracts.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
	if contracts.StageOf(err) != contracts.StageExtract {
		t.Errorf("stage = %q", contracts.StageOf(err))
	}
	if ai.calls() != 0 {
		t.Errorf("backend called %d times", ai.calls())
	}
	if got := h.metrics.AnalysesRunning.Load(); got != 0 {
		t.Errorf("AnalysesRunning = %d, want 0", got)
	}
	if got := h.metrics.StageFailures(contracts.StageExtract); got != 1 {
		t.Errorf("extract failures = %d, want 1", got)
	}
	assertNoRecords(t, h)

	fails, err := h.svc.ListFailures(ctx, 10)
	if err != nil {
		t.Fatalf("ListFailures: %v", err)
	}
	if len(fails) != 1 || fails[0].Stage != "extract" {
		t.Errorf("failures = %+v", fails)
	}
}

func TestDetectType_FailuresAreRecorded(t *testing.T) {
	ai := &scriptedAI{label: "Lease"}
	h := newHarness(t, ai)
	ctx := context.Background()

	_, err := h.svc.DetectType(ctx, app.DetectCommand{FileURL: h.files.URL + "/scan.pdf", Text: "   "})
	if !errors.Is(err, contracts.ErrNoExtractableText) {
		t.Fatalf("err = %v, want ErrNoExtractableText", err)
	}

	ai.err = domai.ErrUnavailable
	_, err = h.svc.DetectType(ctx, app.DetectCommand{Text: "This Lease is made between..."})
	if !errors.Is(err, contracts.ErrClassification) {
		t.Fatalf("err = %v, want ErrClassification", err)
	}

	fails, err := h.svc.ListFailures(ctx, 10)
	if err != nil {
		t.Fatalf("ListFailures: %v", err)
	}
	stages := map[string]bool{}
	for _, f := range fails {
		stages[f.Stage] = true
	}
	if len(fails) != 2 || !stages["extract"] || !stages["classify"] {
		t.Errorf("failures = %+v", fails)
	}
}

func TestDetectType(t *testing.T) {
	ai := &scriptedAI{label: "Lease"}
	h := newHarness(t, ai)
	ctx := context.Background()

	ct, err := h.svc.DetectType(ctx, app.DetectCommand{FileURL: h.files.URL + "/lease.pdf"})
	if err != nil || ct != contracts.TypeLease {
		t.Fatalf("DetectType(url) = %q, %v", ct, err)
	}
	ct, err = h.svc.DetectType(ctx, app.DetectCommand{Text: "This Lease is made between..."})
	if err != nil || ct != contracts.TypeLease {
		t.Fatalf("DetectType(text) = %q, %v", ct, err)
	}
	if ai.analyzeCalls != 0 {
		t.Errorf("detect ran the analyzer")
	}
	if _, err := h.svc.DetectType(ctx, app.DetectCommand{}); !errors.Is(err, contracts.ErrInvalidInput) {
		t.Errorf("empty command err = %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	h := newHarness(t, &scriptedAI{})
	if _, err := h.svc.Get(context.Background(), "nope"); !errors.Is(err, contracts.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := h.svc.Get(context.Background(), ""); !errors.Is(err, contracts.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestExportXLSX(t *testing.T) {
	ai := &scriptedAI{analysis: analysisReply}
	h := newHarness(t, ai)
	h.svc.Users = fakeDirectory{"u1": "Alice"}
	ctx := context.Background()
	if _, err := h.svc.Analyze(ctx, app.AnalyzeCommand{
		FileURL: h.files.URL + "/employment.pdf", UserID: "u1", ContractType: "Employment",
	}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	data, err := h.svc.ExportXLSX(ctx)
	if err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Analyses")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "Created At" || rows[1][1] != "Alice" || rows[1][2] != "Employment" || rows[1][3] != "72" {
		t.Errorf("row = %v", rows[1])
	}
}

func assertNoRecords(t *testing.T, h *harness) {
	t.Helper()
	all, err := h.repo.ListAll(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("found %d persisted records, want 0", len(all))
	}
}
