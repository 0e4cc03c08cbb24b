package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/testkit"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStandaloneForTest(t *testing.T, clock *fakeClock) Limiter {
	t.Helper()
	l, err := New(&Config{Rate: 1, Burst: 2}, withClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestNewDefaults(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, Limit{Rate: 50, Burst: 100}, l.Limit())
}

func TestNewValidation(t *testing.T) {
	_, err := New(&Config{Driver: DriverRedis})
	assert.ErrorIs(t, err, ErrClientNil)
	assert.Equal(t, "redis_client_required", xerrors.GetCode(err))

	_, err = New(&Config{Driver: "etcd"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestStandaloneBurstAndRefill(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newStandaloneForTest(t, clock)
	ctx := context.Background()
	limit := l.Limit()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "tenant:acme", limit)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "tenant:acme", limit)
	require.NoError(t, err)
	assert.False(t, ok)

	// 其他租户有独立的桶
	ok, _ = l.Allow(ctx, "tenant:globex", limit)
	assert.True(t, ok)

	clock.Advance(time.Second)
	ok, _ = l.Allow(ctx, "tenant:acme", limit)
	assert.True(t, ok)
}

func TestStandaloneInvalidInput(t *testing.T) {
	l := newStandaloneForTest(t, &fakeClock{now: time.Now()})

	_, err := l.Allow(context.Background(), "", l.Limit())
	assert.ErrorIs(t, err, ErrKeyEmpty)

	_, err = l.Allow(context.Background(), "k", Limit{})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestStandaloneSweepIdleBuckets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newStandaloneForTest(t, clock).(*standaloneLimiter)

	_, _ = l.Allow(context.Background(), "tenant:acme", l.Limit())
	assert.Zero(t, l.sweep(clock.Now()))

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, l.sweep(clock.Now()))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l, err := New(&Config{Rate: 1, Burst: 1}, withClock(clock.Now))
	require.NoError(t, err)
	defer l.Close()

	r := gin.New()
	r.Use(GinMiddleware(l, l.Limit(), nil))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	do := func(tenant string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(TenantHeader, tenant)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("acme").Code)
	w := do("acme")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, w.Body.String(), "rate_limited")
	assert.Equal(t, http.StatusOK, do("globex").Code)
}

func TestTenantKeyFallsBackToIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.0.0.7:1234"

	assert.Equal(t, "ip:10.0.0.7", TenantKey(c))
	c.Request.Header.Set(TenantHeader, "acme")
	assert.Equal(t, "tenant:acme", TenantKey(c))
}

func TestRedisLimiter(t *testing.T) {
	client := testkit.NewRedisClient(t)
	prefix := "paygate:test:ratelimit:" + testkit.NewID() + ":"
	l, err := New(&Config{Driver: DriverRedis, Rate: 1, Burst: 2, Prefix: prefix}, WithRedisClient(client))
	require.NoError(t, err)

	ctx := context.Background()
	limit := l.Limit()
	ok, err := l.Allow(ctx, "acme", limit)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "acme", limit)
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "acme", limit)
	assert.False(t, ok)
}
