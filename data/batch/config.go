package batch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	core "batchinsert/data/db"
	"batchinsert/data/db/dialect"
	"batchinsert/errors"
	"batchinsert/logging"
)

// DefaultMaxDepth 关联写入的默认最大层级
const DefaultMaxDepth = 32

// IdentityReadback 自增主键的读回方式
type IdentityReadback string

const (
	// ReadbackAuto Postgres 使用 RETURNING（lib/pq 不支持 LastInsertId），其余使用 LastInsertId
	ReadbackAuto         IdentityReadback = "auto"
	ReadbackLastInsertID IdentityReadback = "last_insert_id"
	ReadbackReturning    IdentityReadback = "returning"
)

// Config 批量写入配置
type Config struct {
	// Dialect 为空时从连接的 IDialectNameProvider 推断
	Dialect string `yaml:"dialect"`
	// MaxDepth 关联写入最大层级，<=0 时取 DefaultMaxDepth
	MaxDepth         int              `yaml:"max_depth"`
	DefaultMode      UpdateMode       `yaml:"default_mode"`
	IdentityReadback IdentityReadback `yaml:"identity_readback"`

	Logger logging.Logger `yaml:"-"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxDepth:         DefaultMaxDepth,
		DefaultMode:      ModeDefault,
		IdentityReadback: ReadbackAuto,
	}
}

// normalize 补全默认值并校验枚举
func (c Config) normalize() (Config, error) {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}

	mode, err := ParseUpdateMode(string(c.DefaultMode))
	if err != nil {
		return c, err
	}
	c.DefaultMode = mode

	switch c.IdentityReadback {
	case "":
		c.IdentityReadback = ReadbackAuto
	case ReadbackAuto, ReadbackLastInsertID, ReadbackReturning:
	default:
		return c, errors.NewConfigurationError(fmt.Sprintf("unknown identity readback %q", c.IdentityReadback))
	}

	if c.Dialect != "" {
		if _, err := dialect.NewPlatform(c.Dialect); err != nil {
			return c, err
		}
	}
	return c, nil
}

// FileConfig 配置文件结构
//
//	database:
//	  driver: sqlite
//	  database: ":memory:"
//	batch:
//	  max_depth: 16
//	  default_mode: ignore
type FileConfig struct {
	Database core.DBConfig `yaml:"database"`
	Batch    Config        `yaml:"batch"`
}

// LoadConfig 从 YAML 文件读取配置
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfiguration, fmt.Sprintf("read config %s", path))
	}
	return ParseConfig(data)
}

// ParseConfig 解析 YAML 配置；batch.dialect 为空时沿用 database.driver
func ParseConfig(data []byte) (*FileConfig, error) {
	cfg := &FileConfig{Batch: DefaultConfig()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfiguration, "parse config")
	}
	if cfg.Batch.Dialect == "" && cfg.Database.Driver != "" {
		cfg.Batch.Dialect = cfg.Database.Driver
	}

	batchCfg, err := cfg.Batch.normalize()
	if err != nil {
		return nil, err
	}
	cfg.Batch = batchCfg
	return cfg, nil
}
