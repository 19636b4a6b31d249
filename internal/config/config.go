package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/boxdmatch/internal/logging"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingCatalog 表示 CLI 与配置文件都没有给出目录数据集路径。
	ErrCodeMissingCatalog = "config_missing_catalog"
)

const (
	DefaultBaseURL         = "https://letterboxd.com"
	DefaultMaxPages        = 10
	DefaultConcurrency     = 3
	MaxConcurrency         = 8
	DefaultRequestInterval = time.Second
	DefaultFetchTimeout    = 3 * time.Minute
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
	DefaultSoloCap         = 20
	DefaultPairCap         = 15
	DefaultPopularityFloor = 1000
	DefaultPartnerPicks    = 10
	DefaultListen          = ":8080"
)

// discoverNames 是 cwd 下自动发现的配置文件名（按顺序取第一个存在的）。
var discoverNames = []string{"boxdmatch.yaml", "boxdmatch.yml", "boxdmatch.json"}

// CLIArgs 是 CLI 能覆盖的配置项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --max-pages=0 必须能覆盖 config.max_pages=10。
type CLIArgs struct {
	ConfigPath string

	Catalog    string
	CatalogSet bool

	MaxPages    int
	MaxPagesSet bool

	Listen    string
	ListenSet bool
}

// FileConfig 对应 boxdmatch.yaml 的解析结构（JSON 作为 YAML 子集同样可读）。
//
// 指针字段用于区分“未填写”与“显式写 0”。时长字段使用 time.ParseDuration 的写法（如 "1s"）。
type FileConfig struct {
	Catalog         string           `yaml:"catalog" json:"catalog"`
	BaseURL         string           `yaml:"base_url" json:"base_url"`
	MaxPages        *int             `yaml:"max_pages" json:"max_pages"`
	Concurrency     int              `yaml:"concurrency" json:"concurrency"`
	RequestInterval string           `yaml:"request_interval" json:"request_interval"`
	FetchTimeout    string           `yaml:"fetch_timeout" json:"fetch_timeout"`
	Proxy           *ProxyConfig     `yaml:"proxy" json:"proxy"`
	Breaker         *BreakerConfig   `yaml:"breaker" json:"breaker"`
	Recommend       *RecommendConfig `yaml:"recommend" json:"recommend"`
	Log             *LogConfig       `yaml:"log" json:"log"`
	Listen          string           `yaml:"listen" json:"listen"`
}

type ProxyConfig struct {
	URL string `yaml:"url" json:"url"`
}

type BreakerConfig struct {
	Failures *int   `yaml:"failures" json:"failures"` // 0 表示关闭熔断
	Cooldown string `yaml:"cooldown" json:"cooldown"`
}

type RecommendConfig struct {
	SoloCap         int `yaml:"solo_cap" json:"solo_cap"`
	PairCap         int `yaml:"pair_cap" json:"pair_cap"`
	PopularityFloor int `yaml:"popularity_floor" json:"popularity_floor"`
	PartnerPicks    int `yaml:"partner_picks" json:"partner_picks"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json | console；空表示由 CLI 按 TTY 决定
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；没有读取任何文件时为空。
	ConfigPath  string
	CatalogPath string

	BaseURL         string
	MaxPages        int // 0 表示不截断
	Concurrency     int
	RequestInterval time.Duration
	FetchTimeout    time.Duration
	ProxyURL        string

	BreakerFailures int
	BreakerCooldown time.Duration

	SoloCap         int
	PairCap         int
	PopularityFloor int
	PartnerPicks    int

	LogLevel  string
	LogFormat string

	Listen string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingCatalog:
		if e.Path == "" {
			return fmt.Sprintf("%s：缺少目录数据集（--catalog 或配置项 catalog）", e.Code)
		}
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 catalog", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在，否则 config_not_found
// 2) 否则依次尝试 <cwd>/boxdmatch.yaml、.yml、.json（都不存在也不报错）
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认。
// 相对路径：CLI 给的相对 cwd；配置文件里的相对该文件所在目录。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		return merge(cwdAbs, cli, fc, cfgPath)
	}

	for _, name := range discoverNames {
		p := filepath.Join(cwdAbs, name)
		f, exists, err := readFileConfig(p)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if exists {
			cfgPath, fc = p, f
			break
		}
	}
	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	// catalog：CLI > config；两者都没有则报错
	catalogPath := ""
	if cli.CatalogSet && strings.TrimSpace(cli.Catalog) != "" {
		catalogPath = absCleanFrom(cwdAbs, cli.Catalog)
	} else if strings.TrimSpace(fc.Catalog) != "" {
		catalogPath = absCleanFrom(filepath.Dir(cfgPath), fc.Catalog)
	}
	if catalogPath == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingCatalog, Path: cfgPath}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(fc.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if err := validateHTTPURL(baseURL); err != nil {
		return EffectiveConfig{}, invalid("base_url %v", err)
	}

	// max_pages：CLI > config > 默认；0 表示不截断
	maxPages := DefaultMaxPages
	if cli.MaxPagesSet {
		maxPages = cli.MaxPages
	} else if fc.MaxPages != nil {
		maxPages = *fc.MaxPages
	}
	if maxPages < 0 {
		return EffectiveConfig{}, invalid("max_pages 不能为负数：%d", maxPages)
	}

	concurrency := fc.Concurrency
	if concurrency < 0 {
		return EffectiveConfig{}, invalid("concurrency 不能为负数：%d", concurrency)
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 超出截断：对同一站点过高的并发没有意义。
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	interval, err := parseDuration(fc.RequestInterval, DefaultRequestInterval)
	if err != nil {
		return EffectiveConfig{}, invalid("request_interval %v", err)
	}
	fetchTimeout, err := parseDuration(fc.FetchTimeout, DefaultFetchTimeout)
	if err != nil {
		return EffectiveConfig{}, invalid("fetch_timeout %v", err)
	}
	if fetchTimeout == 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, invalid("proxy.url 无效：%w", err)
		}
	}

	failures := DefaultBreakerFailures
	cooldown := DefaultBreakerCooldown
	if fc.Breaker != nil {
		if fc.Breaker.Failures != nil {
			failures = *fc.Breaker.Failures
		}
		if cooldown, err = parseDuration(fc.Breaker.Cooldown, DefaultBreakerCooldown); err != nil {
			return EffectiveConfig{}, invalid("breaker.cooldown %v", err)
		}
	}
	if failures < 0 {
		return EffectiveConfig{}, invalid("breaker.failures 不能为负数：%d", failures)
	}

	var rc RecommendConfig
	if fc.Recommend != nil {
		rc = *fc.Recommend
	}
	for name, v := range map[string]int{
		"recommend.solo_cap":         rc.SoloCap,
		"recommend.pair_cap":         rc.PairCap,
		"recommend.popularity_floor": rc.PopularityFloor,
		"recommend.partner_picks":    rc.PartnerPicks,
	} {
		if v < 0 {
			return EffectiveConfig{}, invalid("%s 不能为负数：%d", name, v)
		}
	}

	var lc LogConfig
	if fc.Log != nil {
		lc = *fc.Log
	}
	if !logging.ValidLevel(lc.Level) {
		return EffectiveConfig{}, invalid("log.level 无法识别：%q", lc.Level)
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "", "json", "console":
	default:
		return EffectiveConfig{}, invalid("log.format 只能是 json 或 console，实际是 %q", lc.Format)
	}

	listen := strings.TrimSpace(fc.Listen)
	if cli.ListenSet {
		listen = strings.TrimSpace(cli.Listen)
	}
	if listen == "" {
		listen = DefaultListen
	}

	return EffectiveConfig{
		ConfigPath:      cfgPath,
		CatalogPath:     catalogPath,
		BaseURL:         baseURL,
		MaxPages:        maxPages,
		Concurrency:     concurrency,
		RequestInterval: interval,
		FetchTimeout:    fetchTimeout,
		ProxyURL:        proxyURL,
		BreakerFailures: failures,
		BreakerCooldown: cooldown,
		SoloCap:         orDefault(rc.SoloCap, DefaultSoloCap),
		PairCap:         orDefault(rc.PairCap, DefaultPairCap),
		PopularityFloor: orDefault(rc.PopularityFloor, DefaultPopularityFloor),
		PartnerPicks:    orDefault(rc.PartnerPicks, DefaultPartnerPicks),
		LogLevel:        strings.ToLower(strings.TrimSpace(lc.Level)),
		LogFormat:       strings.ToLower(strings.TrimSpace(lc.Format)),
		Listen:          listen,
	}, nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("无效：%q", s)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", s)
	}
	return nil
}

// parseDuration 解析时长；空串返回 def。负数视为错误。
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("无法解析：%q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("不能为负数：%q", s)
	}
	return d, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML/JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
