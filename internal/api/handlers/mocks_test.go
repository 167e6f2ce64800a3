package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"visionsync/backend/internal/currency"
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/services"
	"visionsync/backend/internal/utils"
)

// --- Mocks ---

// MockTaskClient
type MockTaskClient struct {
	mock.Mock
}

func (m *MockTaskClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// MockLeadService
type MockLeadService struct {
	mock.Mock
}

func (m *MockLeadService) SaveLead(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	args := m.Called(ctx, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}
func (m *MockLeadService) GetLead(ctx context.Context, id utils.SixID) (*models.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}
func (m *MockLeadService) GetAllLeads(ctx context.Context, filter services.LeadFilter) ([]models.Lead, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lead), args.Error(1)
}
func (m *MockLeadService) UpdateLead(ctx context.Context, id utils.SixID, update services.LeadUpdate) (*models.Lead, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}
func (m *MockLeadService) DeleteLead(ctx context.Context, id utils.SixID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockLeadService) GetLeadStats(ctx context.Context) (*models.LeadStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LeadStats), args.Error(1)
}
func (m *MockLeadService) ExportLeads(ctx context.Context, filter services.LeadFilter) ([]byte, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *MockLeadService) MarkConversion(ctx context.Context, email string, at time.Time) (*models.Lead, error) {
	args := m.Called(ctx, email, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}
func (m *MockLeadService) MarkNotified(ctx context.Context, id utils.SixID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAnalyticsService
type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) TrackPageView(ctx context.Context, ev models.PageViewEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
func (m *MockAnalyticsService) TrackInteraction(ctx context.Context, ev models.InteractionEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
func (m *MockAnalyticsService) TrackConversion(ctx context.Context, ev models.ConversionEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
func (m *MockAnalyticsService) GetPageViews(ctx context.Context) ([]models.PageViewEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PageViewEvent), args.Error(1)
}
func (m *MockAnalyticsService) GetInteractions(ctx context.Context) ([]models.InteractionEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InteractionEvent), args.Error(1)
}
func (m *MockAnalyticsService) GetConversions(ctx context.Context) ([]models.ConversionEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversionEvent), args.Error(1)
}
func (m *MockAnalyticsService) GetAnalyticsData(ctx context.Context) (*models.AnalyticsData, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalyticsData), args.Error(1)
}
func (m *MockAnalyticsService) Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalyticsSnapshot), args.Error(1)
}
func (m *MockAnalyticsService) GetLatestSnapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalyticsSnapshot), args.Error(1)
}
func (m *MockAnalyticsService) ClearEvents(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockQuoteService
type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) CreateQuote(ctx context.Context, leadID utils.SixID, items []models.QuoteLineItem, currencyCode string, discountAmount float64, taxRate *float64) (*models.Quote, error) {
	args := m.Called(ctx, leadID, items, currencyCode, discountAmount, taxRate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}
func (m *MockQuoteService) GetQuote(ctx context.Context, id utils.SixID) (*models.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}
func (m *MockQuoteService) GetQuotesForLead(ctx context.Context, leadID utils.SixID) ([]models.Quote, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Quote), args.Error(1)
}
func (m *MockQuoteService) UpdateQuoteItems(ctx context.Context, id utils.SixID, items []models.QuoteLineItem, discountAmount float64, taxRate float64) (*models.Quote, error) {
	args := m.Called(ctx, id, items, discountAmount, taxRate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}
func (m *MockQuoteService) TransitionQuote(ctx context.Context, id utils.SixID, to models.QuoteStatus) (*models.Quote, error) {
	args := m.Called(ctx, id, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}
func (m *MockQuoteService) ExpireStaleQuotes(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *MockQuoteService) DeleteQuote(ctx context.Context, id utils.SixID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProjectService
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	args := m.Called(ctx, project)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}
func (m *MockProjectService) GetProject(ctx context.Context, id utils.SixID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}
func (m *MockProjectService) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}
func (m *MockProjectService) ListProjects(ctx context.Context, filter services.ProjectFilter) ([]models.Project, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Project), args.Error(1)
}
func (m *MockProjectService) UpdateProject(ctx context.Context, id utils.SixID, project *models.Project) (*models.Project, error) {
	args := m.Called(ctx, id, project)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}
func (m *MockProjectService) PublishProject(ctx context.Context, id utils.SixID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}
func (m *MockProjectService) DeleteProject(ctx context.Context, id utils.SixID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockProjectService) CreateTemplate(ctx context.Context, tmpl *models.Template) (*models.Template, error) {
	args := m.Called(ctx, tmpl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Template), args.Error(1)
}
func (m *MockProjectService) ListTemplates(ctx context.Context, industry string) ([]models.Template, error) {
	args := m.Called(ctx, industry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Template), args.Error(1)
}
func (m *MockProjectService) GetTemplateBySlug(ctx context.Context, slug string) (*models.Template, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Template), args.Error(1)
}
func (m *MockProjectService) ListIndustries(ctx context.Context) ([]models.Industry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Industry), args.Error(1)
}

// MockCurrencyService
type MockCurrencyService struct {
	mock.Mock
}

func (m *MockCurrencyService) GetSelection(ctx context.Context, clientID string) (currency.Info, error) {
	args := m.Called(ctx, clientID)
	return args.Get(0).(currency.Info), args.Error(1)
}
func (m *MockCurrencyService) SetSelection(ctx context.Context, clientID string, code string) (currency.Info, error) {
	args := m.Called(ctx, clientID, code)
	return args.Get(0).(currency.Info), args.Error(1)
}

// MockConfigService
type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}
func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}
func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	args := m.Called(ctx, key, defaultValue)
	return args.Int(0)
}
func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	args := m.Called(ctx, key, defaultValue)
	return args.String(0)
}
func (m *MockConfigService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	args := m.Called(ctx, key, defaultValue)
	return args.Bool(0)
}
func (m *MockConfigService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	args := m.Called(ctx, key, defaultValue)
	return args.Get(0).(float64)
}
func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	args := m.Called(ctx, key, defaultValue)
	return args.Get(0).(time.Duration)
}
func (m *MockConfigService) Load(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	args := m.Called(ctx, key, value, isPublic)
	return args.Error(0)
}
func (m *MockConfigService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	args := m.Called(ctx, apiType, endpoint, isAuthenticated)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIEndpointConfig), args.Error(1)
}
