package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/John-Robertt/boxdmatch/internal/app"
	"github.com/John-Robertt/boxdmatch/internal/catalog"
	"github.com/John-Robertt/boxdmatch/internal/config"
	"github.com/John-Robertt/boxdmatch/internal/fetch"
	"github.com/John-Robertt/boxdmatch/internal/infra/httpx"
	"github.com/John-Robertt/boxdmatch/internal/logging"
	"github.com/John-Robertt/boxdmatch/internal/source"
	"github.com/John-Robertt/boxdmatch/internal/source/letterboxd"
)

// env 是一次进程运行所需的全部组件（启动时装配一次）。
type env struct {
	eff      config.EffectiveConfig
	pipeline *app.Pipeline
}

// bootstrap 读取配置、初始化日志、加载目录并装配抓取流水线。
// 返回非 0 时调用方应以该退出码结束（错误信息已写到 stderr）。
func bootstrap(ca cliArgs, progressW io.Writer, interactive bool) (*env, int) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return nil, 1
	}

	eff, err := config.LoadEffective(cwd, ca.configArgs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return nil, 1
	}

	initLogging(eff, interactive)

	store, st, err := catalog.Load(eff.CatalogPath)
	if err != nil {
		logging.Error().Err(err).Str("path", eff.CatalogPath).Msg("加载目录数据集失败")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return nil, 1
	}
	logging.Info().Str("path", eff.CatalogPath).Int("rows", st.Rows).Int("loaded", st.Loaded).Int("skipped", st.Skipped).Msg("目录已加载")

	client, err := httpx.NewSourceClient(eff.ProxyURL, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s：proxy.url 无效：%v\n", config.ErrCodeInvalid, err)
		return nil, 1
	}

	var src source.Source = letterboxd.Source{BaseURL: eff.BaseURL, Client: client}
	src = source.WithBreaker(src, source.BreakerSettings{
		Failures: uint32(eff.BreakerFailures),
		Cooldown: eff.BreakerCooldown,
	})

	opt := fetch.Options{
		Concurrency: eff.Concurrency,
		Interval:    eff.RequestInterval,
		MaxPages:    eff.MaxPages,
	}
	if interactive && progressW != nil {
		opt.Observer = newProgressUI(progressW)
	}

	engine := &app.Engine{
		Catalog:         store,
		SoloCap:         eff.SoloCap,
		PairCap:         eff.PairCap,
		PopularityFloor: eff.PopularityFloor,
		PartnerPicks:    eff.PartnerPicks,
	}
	if ca.SeedSet {
		engine.NewRand = app.SeededRand(ca.Seed)
	}

	return &env{
		eff:      eff,
		pipeline: &app.Pipeline{
			Fetcher:      fetch.New(src, opt),
			Engine:       engine,
			FetchTimeout: eff.FetchTimeout,
		},
	}, 0
}

// initLogging：未显式配置时，交互终端使用 console 格式且只显示 warn 以上（进度行已足够）。
func initLogging(eff config.EffectiveConfig, interactive bool) {
	level := eff.LogLevel
	format := eff.LogFormat
	if format == "" {
		format = "json"
		if isTTY(os.Stderr) {
			format = "console"
		}
	}
	if strings.TrimSpace(level) == "" && interactive {
		level = "warn"
	}
	logging.Init(logging.Config{Level: level, Format: format, Output: os.Stderr})
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；只走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	return nil, false
}
