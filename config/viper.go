package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// loader 实现 Loader 接口
type loader struct {
	v      *viper.Viper
	cfg    *Config
	logger clog.Logger

	mu        sync.Mutex
	watches   map[string][]chan Event
	oldValues map[string]any
}

func newLoader(cfg *Config, opts ...Option) *loader {
	l := &loader{
		v:         viper.New(),
		cfg:       cfg,
		logger:    clog.Discard(),
		watches:   make(map[string][]chan Event),
		oldValues: make(map[string]any),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 初始化并从所有来源加载配置
func (l *loader) Load(_ context.Context) error {
	l.v.SetConfigName(l.cfg.Name)
	l.v.SetConfigType(l.cfg.FileType)
	for _, path := range l.cfg.Paths {
		l.v.AddConfigPath(path)
	}

	// 环境变量优先级最高：PAYGATE_STORAGE_DRIVER 覆盖 storage.driver
	l.v.SetEnvPrefix(l.cfg.EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.loadDotEnv(); err != nil {
		l.logger.Debug("no .env file loaded", clog.Error(err))
	}

	fileFound := true
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return xerrors.Wrapf(err, "config: read %s", l.cfg.Name)
		}
		fileFound = false
		l.logger.Warn("no configuration file found, using defaults and environment",
			clog.String("name", l.cfg.Name))
	}

	if err := l.loadEnvironmentConfig(); err != nil {
		return err
	}
	if err := l.Validate(); err != nil {
		return err
	}

	if !fileFound {
		return nil
	}
	l.logger.Info("configuration loaded", clog.String("file", l.v.ConfigFileUsed()))

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if err := l.loadEnvironmentConfig(); err != nil {
			l.logger.Error("reload environment config failed", clog.Error(err))
		}
		l.notifyWatches(e)
	})
	l.v.WatchConfig()
	return nil
}

// loadDotEnv 从工作目录与搜索路径加载 .env，已存在的环境变量不会被覆盖
func (l *loader) loadDotEnv() error {
	var (
		loaded  bool
		lastErr error
	)
	candidates := []string{".env"}
	for _, path := range l.cfg.Paths {
		candidates = append(candidates, filepath.Join(path, ".env"))
	}
	for _, file := range candidates {
		if err := godotenv.Load(file); err != nil {
			lastErr = err
			continue
		}
		loaded = true
	}
	if !loaded {
		return lastErr
	}
	return nil
}

// loadEnvironmentConfig 合并 <name>.<ENV> 配置文件
func (l *loader) loadEnvironmentConfig() error {
	env := os.Getenv(l.cfg.EnvPrefix + "_ENV")
	if env == "" {
		return nil
	}

	name := fmt.Sprintf("%s.%s", l.cfg.Name, env)
	l.v.SetConfigName(name)
	defer l.v.SetConfigName(l.cfg.Name)

	if err := l.v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return xerrors.Wrapf(err, "config: merge %s", name)
		}
		l.logger.Info("no environment configuration file", clog.String("env", env))
		return nil
	}
	l.logger.Info("environment configuration merged", clog.String("env", env))
	return nil
}

func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

func (l *loader) Unmarshal(v any) error {
	return l.v.Unmarshal(v)
}

func (l *loader) UnmarshalKey(key string, v any) error {
	return l.v.UnmarshalKey(key, v)
}

// Watch 订阅 key 的变更，ctx 取消后通道关闭
func (l *loader) Watch(ctx context.Context, key string) (<-chan Event, error) {
	if key == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "config: watch key is empty")
	}

	l.mu.Lock()
	ch := make(chan Event, 10)
	l.watches[key] = append(l.watches[key], ch)
	l.oldValues[key] = l.v.Get(key)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.removeWatch(key, ch)
	}()
	return ch, nil
}

// removeWatch 移除并关闭通道；通知与关闭都在锁内进行，不会向已关闭的通道发送
func (l *loader) removeWatch(key string, ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chans := l.watches[key]
	for i, c := range chans {
		if c == ch {
			l.watches[key] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(l.watches[key]) == 0 {
		delete(l.watches, key)
		delete(l.oldValues, key)
	}
	close(ch)
}

// Validate 配置不能为空
func (l *loader) Validate() error {
	if len(l.v.AllSettings()) == 0 {
		return xerrors.Wrap(ErrValidationFailed, "configuration is empty")
	}
	return nil
}

// notifyWatches 比较订阅 key 的新旧值，有变化时通知
func (l *loader) notifyWatches(e fsnotify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, channels := range l.watches {
		newValue := l.v.Get(key)
		oldValue := l.oldValues[key]
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}

		event := Event{
			Key:       key,
			Value:     newValue,
			OldValue:  oldValue,
			Source:    "file",
			Timestamp: time.Now(),
		}
		l.oldValues[key] = newValue
		l.logger.Info("configuration changed", clog.String("key", key), clog.String("file", e.Name))

		for _, ch := range channels {
			select {
			case ch <- event:
			default:
				l.logger.Warn("watch channel is full, event dropped", clog.String("key", key))
			}
		}
	}
}
