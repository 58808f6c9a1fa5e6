// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Vendor() config.VendorConfig {
	args := m.Called()
	return args.Get(0).(config.VendorConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Report() config.ReportConfig {
	args := m.Called()
	return args.Get(0).(config.ReportConfig)
}

func (m *MockConfig) Pool() config.PoolConfig {
	args := m.Called()
	return args.Get(0).(config.PoolConfig)
}

func (m *MockConfig) Metrics() config.MetricsConfig {
	args := m.Called()
	return args.Get(0).(config.MetricsConfig)
}

func (m *MockConfig) SetVendorCredentials(url, username, password string) {
	m.Called(url, username, password)
}

func (m *MockConfig) SetBrowserHeadless(b bool) { m.Called(b) }
func (m *MockConfig) SetPoolEnabled(b bool)     { m.Called(b) }

// NewMockConfigFrom returns a MockConfig whose getters return the sections of cfg.
func NewMockConfigFrom(cfg *config.Config) *MockConfig {
	m := new(MockConfig)
	m.On("Logger").Return(cfg.Logger()).Maybe()
	m.On("Vendor").Return(cfg.Vendor()).Maybe()
	m.On("Browser").Return(cfg.Browser()).Maybe()
	m.On("Report").Return(cfg.Report()).Maybe()
	m.On("Pool").Return(cfg.Pool()).Maybe()
	m.On("Metrics").Return(cfg.Metrics()).Maybe()
	return m
}

// -- Vendor Client Mock --

// MockPoster mocks client.Poster. Expectations usually match on the request
// path with mock.MatchedBy.
type MockPoster struct {
	mock.Mock
}

var _ client.Poster = (*MockPoster)(nil)

func (m *MockPoster) Post(ctx context.Context, req client.Request) (*client.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*client.Response)
	return resp, args.Error(1)
}

// ForPath matches a client.Request by path.
func ForPath(path string) interface{} {
	return mock.MatchedBy(func(req client.Request) bool { return req.Path == path })
}

// JSONResponse builds a response for path carrying body.
func JSONResponse(path, body string) *client.Response {
	return &client.Response{Endpoint: path, StatusCode: 200, Body: []byte(body)}
}
