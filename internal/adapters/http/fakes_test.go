package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/pollen-vision/internal/config"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

type accountsFake struct {
	users    map[string]domain.Identity
	disabled map[string]bool
	actions  []string
}

func newAccountsFake() *accountsFake {
	return &accountsFake{
		users: map[string]domain.Identity{
			"alice": {UserID: 1, Username: "alice", Role: domain.RoleUser},
			"bob":   {UserID: 2, Username: "bob", Role: domain.RoleProfessional},
			"root":  {UserID: 3, Username: "root", Role: domain.RoleAdmin},
		},
		disabled: map[string]bool{},
	}
}

func (f *accountsFake) Register(_ context.Context, reg domain.Registration) (*domain.User, error) {
	if _, ok := f.users[reg.Username]; ok {
		return nil, domain.WrapError(domain.ErrConflict, "register", errors.New("username taken"))
	}
	return &domain.User{ID: 10, Username: reg.Username, Role: domain.RoleUser, Status: domain.AccountActive}, nil
}

func (f *accountsFake) Login(_ context.Context, identifier, password string) (*domain.Identity, error) {
	identity, ok := f.users[identifier]
	if !ok || password != "secret" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "login", errors.New("invalid credentials"))
	}
	return &identity, nil
}

func (f *accountsFake) Lookup(_ context.Context, userID int64) (*domain.Identity, error) {
	for name, identity := range f.users {
		if identity.UserID == userID {
			if f.disabled[name] {
				return nil, domain.WrapError(domain.ErrForbidden, "lookup", errors.New("disabled"))
			}
			return &identity, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "lookup", errors.New("no user"))
}

func (f *accountsFake) ListUsers(context.Context) ([]domain.User, error) {
	return []domain.User{{ID: 1, Username: "alice", Role: domain.RoleUser, Status: domain.AccountActive}}, nil
}

func (f *accountsFake) DisableUser(_ context.Context, username string) error {
	if _, ok := f.users[username]; !ok {
		return domain.WrapError(domain.ErrNotFound, "disable user", errors.New(username))
	}
	f.disabled[username] = true
	f.actions = append(f.actions, "disable:"+username)
	return nil
}

func (f *accountsFake) EnableUser(_ context.Context, username string) error {
	delete(f.disabled, username)
	f.actions = append(f.actions, "enable:"+username)
	return nil
}

func (f *accountsFake) DeleteUser(_ context.Context, username string) error {
	f.actions = append(f.actions, "delete:"+username)
	return nil
}

type analyzerFake struct {
	lastReq  ports.AnalyzeRequest
	lastBody []byte
	err      error
}

func (f *analyzerFake) Analyze(_ context.Context, req ports.AnalyzeRequest) (*domain.AnalysisResult, error) {
	f.lastReq = req
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	f.lastBody = raw
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnalysisResult{
		Analysis:     domain.Analysis{ID: "an-1", Filename: req.Filename},
		HistorySaved: true,
	}, nil
}

func (f *analyzerFake) GetAnalysis(_ context.Context, id string) (*domain.Analysis, error) {
	if id != "an-1" {
		return nil, domain.WrapError(domain.ErrNotFound, "get analysis", errors.New(id))
	}
	return &domain.Analysis{ID: id, Filename: "a.jpg"}, nil
}

func (f *analyzerFake) OpenAnnotated(_ context.Context, id string) (io.ReadCloser, error) {
	if id != "an-1" {
		return nil, domain.WrapError(domain.ErrNotFound, "open annotated", errors.New(id))
	}
	return io.NopCloser(strings.NewReader("\x89PNG")), nil
}

type batchesFake struct {
	filenames []string
	threshold *float64
}

func (f *batchesFake) Submit(_ context.Context, identity domain.Identity, threshold *float64, files []ports.UploadFile) (*domain.BatchJob, error) {
	f.threshold = threshold
	for _, file := range files {
		f.filenames = append(f.filenames, file.Filename)
	}
	return &domain.BatchJob{ID: "b-1", UserID: identity.UserID, Status: domain.BatchStatusUploaded, Total: len(files)}, nil
}

func (f *batchesFake) GetBatch(_ context.Context, id string) (*domain.BatchJob, error) {
	return &domain.BatchJob{ID: id, Status: domain.BatchStatusUploaded}, nil
}

type historyFake struct {
	load       domain.HistoryLoad
	lastWindow domain.Window
	lastLimit  int
	control    domain.ClassName
}

func (f *historyFake) Recent(_ context.Context, limit int) domain.HistoryLoad {
	f.lastLimit = limit
	return f.load
}

func (f *historyFake) Window(_ context.Context, window domain.Window) domain.HistoryLoad {
	f.lastWindow = window
	return f.load
}

func (f *historyFake) Series(_ context.Context, window domain.Window) (domain.TrendSeries, domain.HistorySummary) {
	f.lastWindow = window
	return domain.TrendSeries{domain.ClassWT: {{Timestamp: "2024-05-01 10:00:00", Rate: 50}}}, domain.SummarizeHistory(f.load)
}

func (f *historyFake) Compare(_ context.Context, window domain.Window, control domain.ClassName) (*domain.GroupComparison, error) {
	f.lastWindow = window
	f.control = control
	if len(f.load.Records) < 2 {
		return nil, domain.WrapError(domain.ErrInsufficientData, "compare", errors.New("need two records"))
	}
	return &domain.GroupComparison{Control: control}, nil
}

func (f *historyFake) ExportWorkbook(context.Context) ([]byte, error) {
	return []byte("xlsx"), nil
}

type reportsFake struct{}

func (reportsFake) AnalysisReport(_ context.Context, id string) (domain.ReportDocument, error) {
	return domain.ReportDocument{Sample: domain.SampleInfo{AnalysisID: id}}, nil
}

func (reportsFake) AnalysisWorkbook(context.Context, string) ([]byte, error) {
	return []byte("xlsx"), nil
}

func (reportsFake) BatchReport(_ context.Context, id string) (domain.BatchReport, error) {
	return domain.BatchReport{Batch: domain.BatchInfo{BatchID: id}}, nil
}

func (reportsFake) BatchWorkbook(context.Context, string) ([]byte, error) {
	return []byte("xlsx"), nil
}

type casesFake struct {
	filter    domain.CaseFilter
	published domain.CaseStudy
	author    domain.Identity
	liked     int64
}

func (f *casesFake) Publish(_ context.Context, author domain.Identity, c domain.CaseStudy) (*domain.CaseStudy, error) {
	if strings.TrimSpace(c.Title) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "publish case", errors.New("title is required"))
	}
	f.author = author
	f.published = c
	c.ID = 7
	c.Author = author.Username
	return &c, nil
}

func (f *casesFake) AttachImage(context.Context, int64, string) error { return nil }

func (f *casesFake) Comment(_ context.Context, author domain.Identity, caseID int64, content string) (*domain.CaseComment, error) {
	return &domain.CaseComment{ID: 1, CaseID: caseID, Content: content, Username: author.Username}, nil
}

func (f *casesFake) Like(_ context.Context, caseID int64) error {
	if caseID != 7 {
		return domain.WrapError(domain.ErrNotFound, "like case", errors.New("no case"))
	}
	f.liked = caseID
	return nil
}

func (f *casesFake) List(_ context.Context, filter domain.CaseFilter) ([]domain.CaseStudy, error) {
	f.filter = filter
	return nil, nil
}

func (f *casesFake) Comments(context.Context, int64) ([]domain.CaseComment, error) {
	return nil, nil
}

type backupFake struct{ err error }

func (f backupFake) Backup(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "backups/history_20240501.json", nil
}

type testEnv struct {
	handler  http.Handler
	accounts *accountsFake
	analyzer *analyzerFake
	batches  *batchesFake
	history  *historyFake
	cases    *casesFake
}

func newTestEnv(cfg config.Config) *testEnv {
	env := &testEnv{
		accounts: newAccountsFake(),
		analyzer: &analyzerFake{},
		batches:  &batchesFake{},
		history:  &historyFake{},
		cases:    &casesFake{},
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "test-secret"
	}
	if cfg.SessionMaxAge == 0 {
		cfg.SessionMaxAge = time.Hour
	}
	env.handler = NewRouter(cfg, Services{
		Analyzer: env.analyzer,
		Batches:  env.batches,
		History:  env.history,
		Reports:  reportsFake{},
		Accounts: env.accounts,
		Cases:    env.cases,
		Backup:   backupFake{},
	}).Handler()
	return env
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestEnv(cfg).handler
}

// login returns the session cookie for username.
func (env *testEnv) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"identifier": username, "password": "secret"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, res.Code, res.Body.String())
	}
	for _, c := range res.Result().Cookies() {
		if c.Name == sessionName {
			return c
		}
	}
	t.Fatalf("login %s: no session cookie", username)
	return nil
}

func (env *testEnv) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	return res
}
