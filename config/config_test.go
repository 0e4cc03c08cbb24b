package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/compliance"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

const baseYAML = `
server:
  addr: ":9090"
breaker:
  failure_threshold: 3
  cooldown: 30s
retry:
  max_retries: 2
  base_delay: 100ms
limits:
  max_amount: 5000
routing:
  regions:
    us:
      primary: [stripe]
      fallback: [adyen]
  default: [adyen]
tenants:
  Acme:
    max_amount: 2000
    provider_preference: [stripe]
providers:
  - name: stripe
    driver: http
    capabilities:
      currencies: [USD]
      payment_methods: [card]
      countries: [global]
    http:
      base_url: http://127.0.0.1:9999
      timeout: 2s
  - name: adyen
    sandbox:
      failure_rate: 0.1
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader(t *testing.T, dir string) Loader {
	t.Helper()
	l, err := New(&Config{Name: "paygate", Paths: []string{dir}, EnvPrefix: "PAYGATE_TEST"})
	require.NoError(t, err)
	return l
}

func TestNewDefaults(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)

	impl := l.(*loader)
	assert.Equal(t, "paygate", impl.cfg.Name)
	assert.Equal(t, []string{".", "./config"}, impl.cfg.Paths)
	assert.Equal(t, "yaml", impl.cfg.FileType)
	assert.Equal(t, "PAYGATE", impl.cfg.EnvPrefix)
}

func TestLoadApp(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "paygate.yaml", baseYAML)

	l := newTestLoader(t, dir)
	require.NoError(t, l.Load(context.Background()))

	cfg, err := LoadApp(l)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, uint32(3), cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Cooldown)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 5000.0, cfg.Limits.MaxAmount)
	assert.Equal(t, []string{"stripe"}, cfg.Routing.Regions["us"].Primary)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, ProviderDriverHTTP, cfg.Providers[0].Driver)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Providers[0].HTTP.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Providers[0].HTTP.Timeout)
	assert.Equal(t, []string{"USD"}, cfg.Providers[0].Capabilities.Currencies)
	assert.Equal(t, ProviderDriverSandbox, cfg.Providers[1].Driver)
	assert.Equal(t, 0.1, cfg.Providers[1].Sandbox.FailureRate)

	tenant, ok := cfg.Tenants["acme"]
	require.True(t, ok)
	assert.Equal(t, 2000.0, tenant.MaxAmount)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "paygate", cfg.Metrics.ServiceName)
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "paygate.yaml", baseYAML)
	writeFile(t, dir, "paygate.staging.yaml", "limits:\n  max_amount: 750\n")
	writeFile(t, dir, ".env", "PAYGATE_TEST_BREAKER_FAILURE_THRESHOLD=9\n")

	t.Setenv("PAYGATE_TEST_ENV", "staging")
	t.Setenv("PAYGATE_TEST_SERVER_ADDR", ":7070")
	t.Cleanup(func() { os.Unsetenv("PAYGATE_TEST_BREAKER_FAILURE_THRESHOLD") })

	l := newTestLoader(t, dir)
	require.NoError(t, l.Load(context.Background()))

	assert.Equal(t, ":7070", l.Get("server.addr"))
	assert.EqualValues(t, 750, l.Get("limits.max_amount"))
	assert.Equal(t, "9", l.Get("breaker.failure_threshold"))

	cfg, err := LoadApp(l)
	require.NoError(t, err)
	assert.Equal(t, 750.0, cfg.Limits.MaxAmount)
}

func TestLoadWithoutFile(t *testing.T) {
	l := newTestLoader(t, t.TempDir())
	err := l.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.True(t, IsInvalidInput(err))
}

func TestAppValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AppConfig
		wantErr string
	}{
		{
			name:    "no providers",
			cfg:     AppConfig{},
			wantErr: "at least one provider is required",
		},
		{
			name: "unknown driver",
			cfg: AppConfig{Providers: []ProviderConfig{
				{Name: "stripe", Driver: "grpc"},
			}},
			wantErr: `unknown driver "grpc"`,
		},
		{
			name: "http without base url",
			cfg: AppConfig{Providers: []ProviderConfig{
				{Name: "stripe", Driver: ProviderDriverHTTP},
			}},
			wantErr: "http.base_url is required",
		},
		{
			name: "duplicate provider",
			cfg: AppConfig{Providers: []ProviderConfig{
				{Name: "stripe", Driver: ProviderDriverSandbox},
				{Name: "stripe", Driver: ProviderDriverSandbox},
			}},
			wantErr: "declared twice",
		},
		{
			name: "routing references unknown provider",
			cfg: AppConfig{
				Providers: []ProviderConfig{{Name: "stripe", Driver: ProviderDriverSandbox}},
				Tenants: map[string]compliance.TenantConfig{
					"acme": {ProviderPreference: []string{"paypal"}},
				},
			},
			wantErr: "unknown provider paypal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
		})
	}
}

func TestWatchEmptyKey(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)
	_, err = l.Watch(context.Background(), "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestWatchReloadable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "paygate.yaml", baseYAML)

	l := newTestLoader(t, dir)
	require.NoError(t, l.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Reloadable, 4)
	require.NoError(t, WatchReloadable(ctx, l, func(r Reloadable) { reloaded <- r }, nil))

	updated := strings.Replace(baseYAML, "primary: [stripe]", "primary: [adyen]", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case r := <-reloaded:
		assert.Equal(t, []string{"adyen"}, r.Routing.Regions["us"].Primary)
		assert.Contains(t, r.Tenants, "acme")
	case <-time.After(3 * time.Second):
		t.Fatal("reload was not applied")
	}
}
