package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mesa/internal/app"
	"mesa/internal/database"
	"mesa/internal/handlers"
	"mesa/internal/services"
	"mesa/pkg/cache"
	"mesa/pkg/config"
	"mesa/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type envelope struct {
	Code    int               `json:"code"`
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type testServer struct {
	engine *gin.Engine
	c      *services.Container
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	c := services.NewContainer(services.Options{
		DB:      db,
		Store:   cache.NewMemoryStore(100, time.Minute, time.Hour),
		Cache:   config.CacheConfig{PermissionTTL: time.Minute},
		Billing: config.BillingConfig{DefaultPlan: "basic", SuspendAfterFailures: 3, GraceDays: 7},
	})
	require.NoError(t, app.Seed(context.Background(), c))

	engine := SetupRouter(Dependencies{
		Services:   c,
		JWTManager: jwt.NewJWTManager("test-secret", time.Hour, 2*time.Hour),
		CORS: config.CORSConfig{
			AllowOrigins: []string{"http://localhost:3000"},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders: []string{"Authorization", "Content-Type"},
		},
		HealthChecks: map[string]handlers.HealthCheck{
			"database": func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
		},
	})
	return &testServer{engine: engine, c: c}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (s *testServer) signup(t *testing.T, code string) (token string, restaurantID uint) {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"restaurant_name": "Restaurant " + code,
		"restaurant_code": code,
		"email":           code + "@example.com",
		"owner_name":      "Owner " + code,
		"username":        code + "_owner",
		"password":        "password123",
	})
	require.True(t, resp.Success, resp.Message)

	var data struct {
		Token      string `json:"token"`
		Restaurant struct {
			ID uint `json:"id"`
		} `json:"restaurant"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.Token, data.Restaurant.ID
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": "password123"})
	require.True(t, resp.Success, resp.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.Token
}

func (s *testServer) createUser(t *testing.T, token, username string, roleIDs ...uint) uint {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/users", token, gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
		"name":     "User " + username,
		"role_ids": roleIDs,
	})
	require.True(t, resp.Success, resp.Message)
	var data struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.ID
}

func (s *testServer) roleID(t *testing.T, slug string) uint {
	t.Helper()
	role, err := s.c.Repos.Roles.FindBySlug(context.Background(), nil, slug)
	require.NoError(t, err)
	return role.ID
}

func TestDeleteUser_RequiresPermission(t *testing.T) {
	s := newTestServer(t)
	ownerToken, _ := s.signup(t, "bistro")

	s.createUser(t, ownerToken, "waiter_amy", s.roleID(t, "waiter"))
	victim := s.createUser(t, ownerToken, "cashier_ben", s.roleID(t, "cashier"))

	waiterToken := s.login(t, "waiter_amy")
	resp := s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", victim), waiterToken, nil)
	assert.Equal(t, 403, resp.Code)
	assert.False(t, resp.Success)

	resp = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", victim), ownerToken, nil)
	assert.True(t, resp.Success)

	resp = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", victim), ownerToken, nil)
	assert.True(t, resp.Success, resp.Message)
	resp = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", victim), ownerToken, nil)
	assert.Equal(t, 404, resp.Code)
}

func TestAuth_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/v1/users", "", nil)
	assert.Equal(t, 401, resp.Code)

	resp = s.do(t, http.MethodGet, "/api/v1/users", "not-a-token", nil)
	assert.Equal(t, 401, resp.Code)
}

func TestMe_ReturnsEffectivePermissions(t *testing.T) {
	s := newTestServer(t)
	ownerToken, _ := s.signup(t, "bistro")
	s.createUser(t, ownerToken, "viewer_cat", s.roleID(t, "viewer"))

	resp := s.do(t, http.MethodGet, "/api/v1/auth/me", s.login(t, "viewer_cat"), nil)
	require.True(t, resp.Success)
	var me struct {
		Username    string   `json:"username"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &me))
	assert.Equal(t, "viewer_cat", me.Username)
	assert.Contains(t, me.Permissions, "orders.view")
	assert.NotContains(t, me.Permissions, "orders.edit")
}

func TestCrossTenantAccessIsNotFound(t *testing.T) {
	s := newTestServer(t)
	tokenA, _ := s.signup(t, "bistro")
	tokenB, _ := s.signup(t, "trattoria")
	userA := s.createUser(t, tokenA, "alice_a")

	resp := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", userA), tokenB, nil)
	assert.Equal(t, 404, resp.Code)
}

func TestRoleAssignment_LevelGuard(t *testing.T) {
	s := newTestServer(t)
	ownerToken, _ := s.signup(t, "bistro")
	s.createUser(t, ownerToken, "admin_max", s.roleID(t, "admin"))
	target := s.createUser(t, ownerToken, "staff_sue")

	// 管理员不能授予所有者角色
	adminToken := s.login(t, "admin_max")
	resp := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/roles", target), adminToken, gin.H{"role_id": s.roleID(t, "owner")})
	assert.Equal(t, 403, resp.Code)

	resp = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/roles", target), adminToken, gin.H{"role_id": s.roleID(t, "waiter")})
	assert.True(t, resp.Success, resp.Message)
}

func TestSignup_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"restaurant_name": "x"})
	assert.Equal(t, 400, resp.Code)
	assert.NotEmpty(t, resp.Errors)
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/health", "", nil)
	assert.True(t, resp.Success)

	resp = s.do(t, http.MethodGet, "/api/v1/plans", "", nil)
	require.True(t, resp.Success)
	var plans []struct {
		Slug string `json:"slug"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &plans))
	assert.Len(t, plans, 3)
}
