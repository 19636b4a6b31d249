package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/John-Robertt/boxdmatch/internal/api"
	"github.com/John-Robertt/boxdmatch/internal/config"
	"github.com/John-Robertt/boxdmatch/internal/infra/fsx"
	"github.com/John-Robertt/boxdmatch/internal/logging"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "compare":
		code = compareCmd(args[1:])
	case "analyze":
		code = analyzeCmd(args[1:])
	case "serve":
		code = serveCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

func compareCmd(args []string) int {
	if wantsHelp(args) {
		printCompareUsage()
		return 0
	}
	ca, err := parseArgs(args, 2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printCompareUsage()
		return 2
	}

	progressW, interactive := pickProgressWriter()
	env, code := bootstrap(ca, progressW, interactive)
	if code != 0 {
		return code
	}

	rep := env.pipeline.CompareUsers(context.Background(), ca.Positionals[0], ca.Positionals[1])

	if ca.Out != "" {
		if err := fsx.WriteJSON(ca.Out, rep); err != nil {
			fmt.Fprintf(os.Stderr, "写入 %s 失败：%v\n", ca.Out, err)
			emitCompare(os.Stdout, isTTY(os.Stdout), rep)
			return 1
		}
	}
	emitCompare(os.Stdout, isTTY(os.Stdout), rep)
	if interactive && ca.Out != "" {
		fmt.Fprintf(progressW, "out: %s\n", ca.Out)
	}

	if rep.EntriesA == 0 {
		fmt.Fprintf(os.Stderr, "未能获取 %s 的评分（用户不存在、主页私密或来源不可用）\n", rep.UserA)
	}
	if rep.EntriesB == 0 {
		fmt.Fprintf(os.Stderr, "未能获取 %s 的评分（用户不存在、主页私密或来源不可用）\n", rep.UserB)
	}
	if rep.Empty() {
		return 1
	}
	return 0
}

func analyzeCmd(args []string) int {
	if wantsHelp(args) {
		printAnalyzeUsage()
		return 0
	}
	ca, err := parseArgs(args, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printAnalyzeUsage()
		return 2
	}

	progressW, interactive := pickProgressWriter()
	env, code := bootstrap(ca, progressW, interactive)
	if code != 0 {
		return code
	}

	rep := env.pipeline.AnalyzeUser(context.Background(), ca.Positionals[0])

	if ca.Out != "" {
		if err := fsx.WriteJSON(ca.Out, rep); err != nil {
			fmt.Fprintf(os.Stderr, "写入 %s 失败：%v\n", ca.Out, err)
			emitSolo(os.Stdout, isTTY(os.Stdout), rep)
			return 1
		}
	}
	emitSolo(os.Stdout, isTTY(os.Stdout), rep)

	if rep.Entries == 0 {
		fmt.Fprintf(os.Stderr, "未能获取 %s 的评分（用户不存在、主页私密或来源不可用）\n", rep.Username)
		return 1
	}
	return 0
}

func serveCmd(args []string) int {
	if wantsHelp(args) {
		printServeUsage()
		return 0
	}
	ca, err := parseArgs(args, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printServeUsage()
		return 2
	}

	// serve 模式没有交互进度；日志即输出。
	env, code := bootstrap(ca, nil, false)
	if code != 0 {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(env.eff.Listen, api.NewRouter(env.pipeline))
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("listen", env.eff.Listen).Msg("serve 启动")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("serve 失败")
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("serve 关闭失败")
		return 1
	}
	logging.Info().Msg("serve 已停止")
	return 0
}

// cliArgs 是所有子命令共用的参数；positional 的个数由子命令决定。
type cliArgs struct {
	Positionals []string

	ConfigPath string

	Catalog    string
	CatalogSet bool

	MaxPages    int
	MaxPagesSet bool

	Listen    string
	ListenSet bool

	Out string

	Seed    int64
	SeedSet bool
}

func (ca cliArgs) configArgs() config.CLIArgs {
	return config.CLIArgs{
		ConfigPath:  ca.ConfigPath,
		Catalog:     ca.Catalog,
		CatalogSet:  ca.CatalogSet,
		MaxPages:    ca.MaxPages,
		MaxPagesSet: ca.MaxPagesSet,
		Listen:      ca.Listen,
		ListenSet:   ca.ListenSet,
	}
}

// parseArgs 解析 `--flag value` 与 `--flag=value` 两种写法；want 为必需的 positional 个数。
func parseArgs(args []string, want int) (cliArgs, error) {
	ca := cliArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			ca.Positionals = append(ca.Positionals, a)
			continue
		}

		name, val, hasVal := strings.Cut(a, "=")
		switch name {
		case "--config", "--catalog", "--max-pages", "--out", "--listen", "--seed":
		default:
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		}
		if !hasVal {
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("%s 需要一个值", name)
			}
			i++
			val = args[i]
		}
		val = strings.TrimSpace(val)

		switch name {
		case "--config":
			ca.ConfigPath = val
		case "--catalog":
			ca.Catalog = val
			ca.CatalogSet = true
		case "--max-pages":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return cliArgs{}, fmt.Errorf("--max-pages 必须是非负整数，实际是 %q", val)
			}
			ca.MaxPages = n
			ca.MaxPagesSet = true
		case "--out":
			ca.Out = val
		case "--listen":
			ca.Listen = val
			ca.ListenSet = true
		case "--seed":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return cliArgs{}, fmt.Errorf("--seed 必须是整数，实际是 %q", val)
			}
			ca.Seed = n
			ca.SeedSet = true
		}
		if val == "" {
			return cliArgs{}, fmt.Errorf("%s 不能为空", name)
		}
	}

	if len(ca.Positionals) != want {
		return cliArgs{}, fmt.Errorf("需要 %d 个用户名参数，实际 %d 个", want, len(ca.Positionals))
	}
	for _, u := range ca.Positionals {
		if strings.TrimSpace(u) == "" {
			return cliArgs{}, fmt.Errorf("用户名不能为空")
		}
	}
	return ca, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func wantsHelp(args []string) bool {
	for _, a := range args {
		if isHelp(a) {
			return true
		}
	}
	return false
}

const commonFlags = `  --config <file>    配置文件（默认自动发现 ./boxdmatch.yaml|.yml|.json）
  --catalog <csv>    电影目录数据集（覆盖配置项 catalog）
  --max-pages <n>    每个用户最多抓取的列表页数（0 表示不限；默认 10）
  --seed <n>         固定随机种子（推荐结果可复现）
  -h, --help         显示帮助
`

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  boxdmatch compare <userA> <userB> [flags]
  boxdmatch analyze <user> [flags]
  boxdmatch serve [flags]

命令：
  compare  对比两位 Letterboxd 用户的口味并给出推荐
  analyze  分析单个用户的评分并给出个人推荐
  serve    以 HTTP 服务运行（POST /api/compare、/api/analyze）

使用 "boxdmatch <命令> --help" 查看详细说明。
`)
}

func printCompareUsage() {
	fmt.Fprint(os.Stdout, "用法：\n  boxdmatch compare <userA> <userB> [flags]\n\n参数：\n"+commonFlags+
		"  --out <file>       同时把 JSON 结果原子写入文件\n")
}

func printAnalyzeUsage() {
	fmt.Fprint(os.Stdout, "用法：\n  boxdmatch analyze <user> [flags]\n\n参数：\n"+commonFlags+
		"  --out <file>       同时把 JSON 结果原子写入文件\n")
}

func printServeUsage() {
	fmt.Fprint(os.Stdout, "用法：\n  boxdmatch serve [flags]\n\n参数：\n"+commonFlags+
		"  --listen <addr>    监听地址（默认 :8080）\n")
}
