package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexivanou/geoquery/internal/cache"
	"github.com/alexivanou/geoquery/internal/model"
	"github.com/alexivanou/geoquery/internal/repository"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockService is a mock implementation of ServiceInterface
type MockService struct {
	mock.Mock
}

func (m *MockService) Search(ctx context.Context, q model.SearchQuery) ([]model.RankedResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RankedResult), args.Error(1)
}

func (m *MockService) GetCityByID(ctx context.Context, id int64) (*model.City, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.City), args.Error(1)
}

func (m *MockService) GetCitiesByCoordinates(ctx context.Context, lat, lng, radiusKm float64) ([]model.Candidate, error) {
	args := m.Called(ctx, lat, lng, radiusKm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Candidate), args.Error(1)
}

func (m *MockService) GetCountries(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockService) GetStates(ctx context.Context, country string) ([]string, error) {
	args := m.Called(ctx, country)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockService) GetCitiesInState(ctx context.Context, state, country string) ([]model.City, error) {
	args := m.Called(ctx, state, country)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.City), args.Error(1)
}

func (m *MockService) InvalidateCache() {
	m.Called()
}

func (m *MockService) CacheStats() (cache.Stats, bool) {
	args := m.Called()
	return args.Get(0).(cache.Stats), args.Bool(1)
}

func (m *MockService) Capabilities() repository.Capabilities {
	return repository.Capabilities{Backend: "mock"}
}

func newHandler(ms *MockService) *Handler {
	return NewHandler(ms, zap.NewNop())
}

func TestHandler_Search(t *testing.T) {
	tests := []struct {
		name           string
		params         string
		mockSetup      func(*MockService)
		expectedStatus int
		expectedCount  int
	}{
		{
			name:   "successful request",
			params: "q=New&limit=3&user_country=US",
			mockSetup: func(ms *MockService) {
				ms.On("Search", mock.Anything, model.SearchQuery{Text: "New", UserCountry: "US", Limit: 3}).Return([]model.RankedResult{
					{City: model.City{ID: 1, Name: "New York"}, TextScore: 1},
					{City: model.City{ID: 2, Name: "Newark"}, TextScore: 1},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:   "with user location",
			params: "q=New&lat=40.7&lng=-74.0&country=US",
			mockSetup: func(ms *MockService) {
				ms.On("Search", mock.Anything, mock.MatchedBy(func(q model.SearchQuery) bool {
					return q.Text == "New" && q.Country == "US" && q.UserLocation != nil &&
						q.UserLocation.Lat == 40.7 && q.UserLocation.Lng == -74.0
				})).Return([]model.RankedResult{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing query parameter",
			params:         "",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid limit",
			params:         "q=New&limit=abc",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "latitude without longitude",
			params:         "q=New&lat=40.7",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "query too short",
			params: "q=N",
			mockSetup: func(ms *MockService) {
				ms.On("Search", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: too short", model.ErrInvalidQuery))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "backend timeout",
			params: "q=New",
			mockSetup: func(ms *MockService) {
				ms.On("Search", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("failed to fetch: %w", model.ErrTimeout))
			},
			expectedStatus: http.StatusGatewayTimeout,
		},
		{
			name:   "backend unavailable",
			params: "q=New",
			mockSetup: func(ms *MockService) {
				ms.On("Search", mock.Anything, mock.Anything).Return(nil, model.ErrBackendUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:   "unexpected error",
			params: "q=New",
			mockSetup: func(ms *MockService) {
				ms.On("Search", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			if tt.mockSetup != nil {
				tt.mockSetup(mockService)
			}

			handler := newHandler(mockService)

			req, _ := http.NewRequest("GET", "/api/v1/search?"+tt.params, nil)
			rr := httptest.NewRecorder()
			handler.Search(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
			if tt.expectedStatus == http.StatusOK {
				var resp model.SearchResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedCount, resp.Count)
				assert.NotNil(t, resp.Results)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_Nearby(t *testing.T) {
	tests := []struct {
		name           string
		params         string
		mockSetup      func(*MockService)
		expectedStatus int
	}{
		{
			name:   "successful request",
			params: "lat=40.7128&lng=-74.0060&radius=10",
			mockSetup: func(ms *MockService) {
				ms.On("GetCitiesByCoordinates", mock.Anything, 40.7128, -74.0060, 10.0).Return([]model.Candidate{
					{City: model.City{ID: 1, Name: "New York"}, DistanceKm: 0},
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "default radius",
			params: "lat=40.7128&lng=-74.0060",
			mockSetup: func(ms *MockService) {
				ms.On("GetCitiesByCoordinates", mock.Anything, 40.7128, -74.0060, 0.0).Return([]model.Candidate{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing lng",
			params:         "lat=40.7128",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid radius",
			params:         "lat=40.7128&lng=-74.0060&radius=-3",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "radius above max",
			params: "lat=40.7128&lng=-74.0060&radius=900",
			mockSetup: func(ms *MockService) {
				ms.On("GetCitiesByCoordinates", mock.Anything, 40.7128, -74.0060, 900.0).Return(nil, model.ErrInvalidFilter)
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			if tt.mockSetup != nil {
				tt.mockSetup(mockService)
			}
			handler := newHandler(mockService)
			req, _ := http.NewRequest("GET", "/api/v1/nearby?"+tt.params, nil)
			rr := httptest.NewRecorder()
			handler.Nearby(rr, req)
			assert.Equal(t, tt.expectedStatus, rr.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_GetCity(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)

	tests := []struct {
		name           string
		cityID         string
		mockSetup      func(*MockService)
		expectedStatus int
	}{
		{
			name:   "successful request",
			cityID: "2950159",
			mockSetup: func(ms *MockService) {
				ms.On("GetCityByID", mock.Anything, int64(2950159)).Return(&model.City{
					ID:          2950159,
					Name:        "Berlin",
					Country:     "Germany",
					CountryCode: "DE",
					Lat:         52.5200,
					Lng:         13.4050,
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "not found",
			cityID: "42",
			mockSetup: func(ms *MockService) {
				ms.On("GetCityByID", mock.Anything, int64(42)).Return(nil, nil)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid id",
			cityID:         "abc",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mockSetup != nil {
				tt.mockSetup(mockService)
			}
			req, _ := http.NewRequest("GET", "/api/v1/city/"+tt.cityID, nil)
			req = mux.SetURLVars(req, map[string]string{"id": tt.cityID})
			rr := httptest.NewRecorder()
			handler.GetCity(rr, req)
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestRouter_Hierarchy(t *testing.T) {
	mockService := new(MockService)
	mockService.On("GetCountries", mock.Anything).Return([]string{"India", "United States"}, nil)
	mockService.On("GetStates", mock.Anything, "US").Return(nil, nil)
	mockService.On("GetCitiesInState", mock.Anything, "New York", "US").Return([]model.City{{ID: 1, Name: "New York"}}, nil)
	mockService.On("InvalidateCache").Return()

	router := NewRouter(mockService, nil, zap.NewNop())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/countries", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var names model.NamesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &names))
	assert.Equal(t, 2, names.Count)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/countries/US/states", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &names))
	assert.Equal(t, []string{}, names.Results)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/countries/US/states/New%20York/cities", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var cities model.CitiesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cities))
	assert.Equal(t, 1, cities.Count)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("DELETE", "/api/v1/cache", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	mockService.AssertExpectations(t)
}
