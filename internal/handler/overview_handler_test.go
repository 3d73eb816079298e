package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/lumen-edu/posgrad-api/internal/middleware"
	"github.com/lumen-edu/posgrad-api/internal/models"
)

type fakeOverviewSrv struct {
	stats         *models.OverviewStats
	overview      *models.CoordinatorOverview
	statsCalls    int
	overviewCalls int
	lastCoordID   string
}

func (f *fakeOverviewSrv) AdminStats(context.Context) (*models.OverviewStats, error) {
	f.statsCalls++
	return f.stats, nil
}

func (f *fakeOverviewSrv) CoordinatorOverview(_ context.Context, coordinatorID string) (*models.CoordinatorOverview, error) {
	f.overviewCalls++
	f.lastCoordID = coordinatorID
	return f.overview, nil
}

func TestOverviewHandlerRequiresSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewOverviewHandler(&fakeOverviewSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/overview", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOverviewHandlerAdminGetsStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeOverviewSrv{stats: &models.OverviewStats{Courses: 4, Disciplines: 12}}
	handler := NewOverviewHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/overview", nil)
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "p1", Role: models.RoleAdministrador})

	handler.Overview(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, service.statsCalls)
	assert.Equal(t, 0, service.overviewCalls)

	var envelope struct {
		Data models.OverviewStats `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 4, envelope.Data.Courses)
	assert.Equal(t, 12, envelope.Data.Disciplines)
}

func TestOverviewHandlerCoordinatorScopedView(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeOverviewSrv{overview: &models.CoordinatorOverview{
		Courses: []models.Course{{ID: "c1", Name: "Mestrado CC"}},
	}}
	handler := NewOverviewHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/overview", nil)
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "coord-9", Role: models.RoleCoordenador})

	handler.Overview(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "coord-9", service.lastCoordID)
	assert.Equal(t, 0, service.statsCalls)
}
