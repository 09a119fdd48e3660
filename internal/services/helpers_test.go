package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mesa/internal/database"
	"mesa/internal/models"
	"mesa/pkg/cache"
	"mesa/pkg/config"
	apperrors "mesa/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testClock 可手动推进的时钟
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeGateway 记录扣款请求，fail 不为空时全部失败，failFor 只让指定订阅失败
type fakeGateway struct {
	mu      sync.Mutex
	calls   []ChargeRequest
	fail    error
	failFor map[uint]error
}

func (g *fakeGateway) Charge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.fail != nil {
		return nil, g.fail
	}
	if err, ok := g.failFor[req.SubscriptionID]; ok {
		return nil, err
	}
	return &ChargeResult{Reference: fmt.Sprintf("test-%d", len(g.calls))}, nil
}

func (g *fakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// fakeNotifier 记录已发送的提醒
type fakeNotifier struct {
	mu   sync.Mutex
	sent []Notification
	fail error
}

func (n *fakeNotifier) Notify(_ context.Context, notification Notification) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return "", n.fail
	}
	n.sent = append(n.sent, notification)
	return fmt.Sprintf("msg-%d", len(n.sent)), nil
}

func (n *fakeNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

type testEnv struct {
	db       *gorm.DB
	store    cache.Store
	clock    *testClock
	gateway  *fakeGateway
	notifier *fakeNotifier
	c        *Container
	owners   map[uint]Actor // 餐厅ID -> 所有者
}

type envOption func(*Options)

func withStore(store cache.Store) envOption {
	return func(o *Options) { o.Store = store }
}

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		SuspendAfterFailures: 3,
		GraceDays:            7,
		SuspendedExpireDays:  30,
		NotifyDays:           []int{7, 3, 1},
		DefaultPlan:          "basic",
	}
}

// newTestEnv 内存数据库 + 进程内缓存，并写入种子数据
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	env := &testEnv{
		db:       db,
		clock:    newTestClock(),
		gateway:  &fakeGateway{},
		notifier: &fakeNotifier{},
		owners:   make(map[uint]Actor),
	}
	options := Options{
		DB:       db,
		Store:    cache.NewMemoryStore(1000, time.Minute, 48*time.Hour),
		Gateway:  env.gateway,
		Notifier: env.notifier,
		Cache:    config.CacheConfig{Driver: "memory", PermissionTTL: 10 * time.Minute},
		Billing:  testBillingConfig(),
		Now:      env.clock.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	env.store = options.Store
	env.c = NewContainer(options)

	ctx := context.Background()
	_, err = env.c.Permissions.CreateSystemPermissions(ctx)
	require.NoError(t, err)
	_, _, err = env.c.Roles.CreateSystemRoles(ctx)
	require.NoError(t, err)
	_, err = env.c.Subscriptions.SeedPlans(ctx)
	require.NoError(t, err)
	return env
}

// signup 注册一家餐厅，返回注册结果
func (e *testEnv) signup(t *testing.T, code string) *SignupResult {
	t.Helper()
	result, err := e.c.Restaurants.Signup(context.Background(), SignupInput{
		RestaurantName:  "Restaurant " + code,
		RestaurantCode:  code,
		RestaurantEmail: code + "@example.com",
		OwnerName:       "Owner " + code,
		Username:        code + "_owner",
		Password:        "password123",
	})
	require.NoError(t, err)
	e.owners[result.Restaurant.ID] = e.owner(result)
	return result
}

func (e *testEnv) owner(result *SignupResult) Actor {
	return Actor{UserID: result.Owner.ID, RestaurantID: result.Restaurant.ID}
}

// ownerOf 以餐厅所有者身份操作
func (e *testEnv) ownerOf(t *testing.T, restaurantID uint) Actor {
	t.Helper()
	actor, ok := e.owners[restaurantID]
	require.True(t, ok, "restaurant %d was not created by signup", restaurantID)
	return actor
}

// actorWithRole 创建一个持有指定系统角色的用户并返回其身份
func (e *testEnv) actorWithRole(t *testing.T, restaurantID uint, username, roleSlug string) Actor {
	t.Helper()
	user := e.createUser(t, restaurantID, username)
	_, err := e.c.Assignments.Assign(context.Background(), e.ownerOf(t, restaurantID), user.ID, e.systemRole(t, roleSlug).ID, nil)
	require.NoError(t, err)
	return Actor{UserID: user.ID, RestaurantID: restaurantID}
}

func (e *testEnv) createUser(t *testing.T, restaurantID uint, username string, custom ...string) *models.User {
	t.Helper()
	user, err := e.c.Users.Create(context.Background(), e.ownerOf(t, restaurantID), CreateUserInput{
		Username:          username,
		Email:             username + "@example.com",
		Password:          "password123",
		Name:              "User " + username,
		CustomPermissions: custom,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) systemRole(t *testing.T, slug string) *models.Role {
	t.Helper()
	role, err := e.c.Repos.Roles.FindBySlug(context.Background(), nil, slug)
	require.NoError(t, err)
	return role
}

func (e *testEnv) subscription(t *testing.T, id uint) *models.Subscription {
	t.Helper()
	sub, err := e.c.Repos.Subscriptions.FindByID(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func (e *testEnv) saveSubscription(t *testing.T, sub *models.Subscription) {
	t.Helper()
	require.NoError(t, e.c.Repos.Subscriptions.Update(context.Background(), sub))
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %T: %v", err, err)
	assert.Equal(t, kind, appErr.Kind, "unexpected kind for %v", err)
}
