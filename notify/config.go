package notify

import (
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// Config 事件发布配置
//
//	notify:
//	  driver: nats           # none|memory|nats
//	  url: nats://127.0.0.1:4222
//	  subject_prefix: paygate.events
//	  encoding: json         # json|msgpack
type Config struct {
	Driver         string        `mapstructure:"driver"`
	URL            string        `mapstructure:"url"`
	Name           string        `mapstructure:"name"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	Encoding       string        `mapstructure:"encoding"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = "none"
	}
	if c.Name == "" {
		c.Name = "paygate"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "paygate.events"
	}
	if c.Encoding == "" {
		c.Encoding = "json"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case "none", "memory":
	case "nats":
		if c.URL == "" {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "notify: nats url is required")
		}
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "notify: unsupported driver: %s", c.Driver)
	}
	switch c.Encoding {
	case "json", "msgpack":
		return nil
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "notify: unsupported encoding: %s", c.Encoding)
	}
}
