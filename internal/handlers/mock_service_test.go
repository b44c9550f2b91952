package handlers

import (
	"context"
	"net/http"
	"time"

	"controlling_hottub/internal/models"
	"controlling_hottub/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockJobs struct {
	job     models.Job
	views   []models.JobView
	skip    models.SkipRecord
	reaped  []string
	err     error
	lastReq service.JobRequest
	lastID  string
	calls   []string
}

func (m *mockJobs) ScheduleJob(ctx context.Context, req service.JobRequest) (models.Job, error) {
	m.calls = append(m.calls, "schedule")
	m.lastReq = req
	return m.job, m.err
}
func (m *mockJobs) ListJobs(ctx context.Context) ([]models.JobView, error) {
	m.calls = append(m.calls, "list")
	return m.views, m.err
}
func (m *mockJobs) CancelJob(ctx context.Context, id string) error {
	m.calls = append(m.calls, "cancel")
	m.lastID = id
	return m.err
}
func (m *mockJobs) SkipNext(ctx context.Context, id string) (models.SkipRecord, error) {
	m.calls = append(m.calls, "skip")
	m.lastID = id
	return m.skip, m.err
}
func (m *mockJobs) UnskipNext(ctx context.Context, id string) error {
	m.calls = append(m.calls, "unskip")
	m.lastID = id
	return m.err
}
func (m *mockJobs) CleanupOrphans(ctx context.Context, minAge time.Duration) ([]string, error) {
	m.calls = append(m.calls, "cleanup")
	return m.reaped, m.err
}

type mockTarget struct {
	result     models.CheckResult
	state      models.ControlState
	startErr   error
	stopErr    error
	lastTarget float64
	stopCalled int
}

func (m *mockTarget) Start(ctx context.Context, targetF float64) (models.CheckResult, error) {
	m.lastTarget = targetF
	return m.result, m.startErr
}
func (m *mockTarget) CheckAndAdjust(ctx context.Context) (models.CheckResult, error) {
	return m.result, nil
}
func (m *mockTarget) Stop(ctx context.Context) error {
	m.stopCalled++
	return m.stopErr
}
func (m *mockTarget) Status(ctx context.Context) (models.ControlState, error) {
	return m.state, nil
}

type mockReadyBy struct {
	job         models.Job
	err         error
	lastReadyBy string
	lastTarget  float64
}

func (m *mockReadyBy) CreateReadyBySchedule(ctx context.Context, readyBy string, targetF float64) (models.Job, error) {
	m.lastReadyBy = readyBy
	m.lastTarget = targetF
	return m.job, m.err
}
func (m *mockReadyBy) HandleWakeUp(ctx context.Context, readyBy string, targetF float64) (service.WakeUpResult, error) {
	return service.WakeUpResult{}, m.err
}

type mockChars struct {
	chars      models.Characteristics
	getErr     error
	genErr     error
	lastParams service.GenerateParams
}

func (m *mockChars) GenerateCharacteristics(ctx context.Context, p service.GenerateParams) (models.Characteristics, error) {
	m.lastParams = p
	return m.chars, m.genErr
}
func (m *mockChars) GetCharacteristics(ctx context.Context) (models.Characteristics, error) {
	return m.chars, m.getErr
}
func (m *mockChars) EnsureRegenerationCron(ctx context.Context) (bool, error) {
	return false, nil
}

type mockReadings struct {
	latest   models.TemperatureReading
	err      error
	recorded []models.TemperatureReading
}

func (m *mockReadings) RecordReading(ctx context.Context, r models.TemperatureReading) (models.TemperatureReading, error) {
	if m.err != nil {
		return models.TemperatureReading{}, m.err
	}
	r.ID = int64(len(m.recorded) + 1)
	m.recorded = append(m.recorded, r)
	return r, nil
}
func (m *mockReadings) LatestReading(ctx context.Context) (models.TemperatureReading, error) {
	return m.latest, m.err
}
func (m *mockReadings) CurrentReading(ctx context.Context) (models.TemperatureReading, error) {
	return m.latest, m.err
}

type mockMonitoring struct {
	status models.TubStatus
	err    error
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (models.TubStatus, error) {
	return m.status, m.err
}

type mockEventLog struct {
	resp     []models.EquipmentEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.EquipmentEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
