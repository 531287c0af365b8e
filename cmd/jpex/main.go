package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/JPEX/internal/app/resolve"
	"github.com/John-Robertt/JPEX/internal/config"
	"github.com/John-Robertt/JPEX/internal/domain"
	"github.com/John-Robertt/JPEX/internal/export"
	"github.com/John-Robertt/JPEX/internal/infra/cache"
	"github.com/John-Robertt/JPEX/internal/infra/fsx"
	"github.com/John-Robertt/JPEX/internal/infra/httpx"
	"github.com/John-Robertt/JPEX/internal/provider"
	"github.com/John-Robertt/JPEX/internal/provider/gplaces"
	"github.com/John-Robertt/JPEX/internal/provider/japanmapcode"
	"github.com/John-Robertt/JPEX/internal/store"
)

// demoText 是内置的演示输入（--demo）。
const demoText = `
Itoshima Guesthouse Tomo
Ambicia Sasebo
Nagasaki House Burabura
Obama Business Hotel, Unzen
Tap Stay Hotel Saga
Hiiragi Cottage, Hita
Hotel New Tsuruta, Beppu
The Grand Residence Hotel Hakata
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "run":
		code = runCmd(args[1:])
	case "list":
		code = listCmd(args[1:])
	case "set":
		code = setCmd(args[1:])
	case "select":
		code = selectCmd(args[1:])
	case "remove":
		code = removeCmd(args[1:])
	case "restore":
		code = restoreCmd(args[1:])
	case "clear":
		code = clearCmd(args[1:])
	case "export":
		code = exportCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

// env 是所有命令共用的运行环境：生效配置 + 工作集 + 已装配的编排器。
type env struct {
	eff    config.EffectiveConfig
	store  *store.Store
	runner *resolve.Runner
}

// setup 加载配置并装配 store/provider/runner。
// 配置错误直接打到 stderr（带 error_code），由调用方决定退出码。
func setup(cli config.CLIArgs, workers int, obs resolve.Observer) (*env, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("读取当前目录失败：%w", err)
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		return nil, err
	}

	st := store.Open(eff.Path, func(e error) {
		fmt.Fprintf(os.Stderr, "持久化失败（继续以内存状态运行）：%v\n", e)
	})

	client, err := httpx.NewClient(eff.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 客户端失败：%w", err)
	}

	reg, err := provider.NewRegistry(gplaces.Provider{
		APIKey:  eff.APIKey,
		BaseURL: eff.PlacesBaseURL,
		Mapcode: japanmapcode.Client{BaseURL: eff.MapcodeBaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 provider registry 失败：%w", err)
	}
	p, ok := reg.Get(eff.Provider)
	if !ok {
		return nil, fmt.Errorf("未注册的 provider：%q", eff.Provider)
	}

	if workers <= 0 {
		workers = eff.Concurrency
	}
	rn, err := resolve.New(resolve.Options{
		Path:     eff.Path,
		Provider: p,
		Client:   client,
		Cache:    cache.New(),
		Store:    st,
		Workers:  workers,
		Observer: obs,
	})
	if err != nil {
		return nil, err
	}
	return &env{eff: eff, store: st, runner: rn}, nil
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	rawText, err := readInput(ra)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取输入失败：%v\n", err)
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs resolve.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	e, err := setup(config.CLIArgs{
		Path:           ra.Path,
		Provider:       ra.Provider,
		ProviderSet:    ra.ProviderSet,
		Concurrency:    ra.Concurrency,
		ConcurrencySet: ra.ConcurrencySet,
	}, 0, obs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	if interactive {
		printEffective(progressW, e.eff)
	}

	rr := e.runner.Run(context.Background(), rawText)

	// 消歧：仅在交互终端逐行询问；非交互环境保持 paused，由 select 子命令补选。
	if interactive && isTTY(os.Stdin) {
		promptDisambiguations(context.Background(), e.runner, e.store, os.Stdin, progressW)
		rr = reportFrom(e)
	}

	emitReport(e.store, rr)
	if rr.Summary.Errored == 0 && rr.Summary.Invalid == 0 {
		return 0
	}
	return 1
}

func listCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			fmt.Fprint(os.Stdout, "用法：\n  jpex list [path]\n")
			return 0
		}
	}
	path, err := onlyPathArg(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n", err)
		return 2
	}
	e, err := setup(config.CLIArgs{Path: path}, 1, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	emitReport(e.store, reportFrom(e))
	return 0
}

func setCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			fmt.Fprint(os.Stdout, "用法：\n  jpex set <id> <mapcode|telephone|address> <value> [path]\n")
			return 0
		}
	}
	if len(args) < 3 || len(args) > 4 {
		fmt.Fprint(os.Stderr, "参数错误：需要 <id> <field> <value> [path]\n")
		return 2
	}
	path := ""
	if len(args) == 4 {
		path = args[3]
	}
	e, err := setup(config.CLIArgs{Path: path}, 1, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	r, err := e.store.SetOverride(args[0], args[1], args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if r.MapcodeInvalid {
		fmt.Fprintf(os.Stderr, "警告：行 %s 的有效 mapcode 非法，导出将被拒绝\n", r.ID)
	}
	return 0
}

func selectCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			fmt.Fprint(os.Stdout, "用法：\n  jpex select <id> <n> [path]\n\nn 是 list/run 展示的候选序号（从 1 开始）。\n")
			return 0
		}
	}
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprint(os.Stderr, "参数错误：需要 <id> <n> [path]\n")
		return 2
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		fmt.Fprintf(os.Stderr, "参数错误：序号必须是正整数，实际是 %q\n", args[1])
		return 2
	}
	path := ""
	if len(args) == 3 {
		path = args[2]
	}
	e, err := setup(config.CLIArgs{Path: path}, 1, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	r, ok := e.store.Get(args[0])
	if !ok || r.State.Status != domain.StatusDisambiguation {
		fmt.Fprintf(os.Stderr, "行 %q 不存在或不在待消歧状态\n", args[0])
		return 1
	}
	if n > len(r.State.Matches) {
		fmt.Fprintf(os.Stderr, "序号超界：行 %s 只有 %d 个候选\n", r.ID, len(r.State.Matches))
		return 2
	}
	if err := e.runner.Select(context.Background(), r.ID, r.State.Matches[n-1].ExternalID); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	r, _ = e.store.Get(args[0])
	if r.State.Status == domain.StatusError {
		fmt.Fprintf(os.Stderr, "行 %s 补全失败：%s\n", r.ID, r.State.Message)
		return 1
	}
	return 0
}

func removeCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			fmt.Fprint(os.Stdout, "用法：\n  jpex remove <id> [path]\n")
			return 0
		}
	}
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprint(os.Stderr, "参数错误：需要 <id> [path]\n")
		return 2
	}
	path := ""
	if len(args) == 2 {
		path = args[1]
	}
	e, err := setup(config.CLIArgs{Path: path}, 1, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if _, ok := e.store.Remove(args[0]); !ok {
		fmt.Fprintf(os.Stderr, "行 %q 不存在\n", args[0])
		return 1
	}
	fmt.Fprintf(os.Stderr, "已删除行 %s（jpex restore 可恢复最近一次删除）\n", args[0])
	return 0
}

func restoreCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			fmt.Fprint(os.Stdout, "用法：\n  jpex restore [path]\n")
			return 0
		}
	}
	path, err := onlyPathArg(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n", err)
		return 2
	}
	e, err := setup(config.CLIArgs{Path: path}, 1, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	r, ok := e.store.Restore()
	if !ok {
		fmt.Fprint(os.Stderr, "没有可恢复的删除\n")
		return 1
	}
	fmt.Fprintf(os.Stderr, "已恢复行 %s\n", r.ID)
	return 0
}

func clearCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			fmt.Fprint(os.Stdout, "用法：\n  jpex clear [path]\n")
			return 0
		}
	}
	path, err := onlyPathArg(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n", err)
		return 2
	}
	e, err := setup(config.CLIArgs{Path: path}, 1, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	e.store.Clear()
	return 0
}

func exportCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printExportUsage()
			return 0
		}
	}
	ea, err := parseExportArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printExportUsage()
		return 2
	}
	e, err := setup(config.CLIArgs{Path: ea.Path}, 1, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	serialize := export.TSV
	if ea.Format == "csv" {
		serialize = export.CSV
	}
	text, err := serialize(e.store.Rows())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	if ea.Out == "" {
		fmt.Fprintln(os.Stdout, text)
		return 0
	}
	dir, name := filepath.Split(ea.Out)
	if dir == "" {
		dir = "."
	}
	if err := fsx.WriteFileAtomicReplace(dir, name, []byte(text+"\n")); err != nil {
		fmt.Fprintf(os.Stderr, "写入 %s 失败：%v\n", ea.Out, err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "已写入 %s\n", ea.Out)
	return 0
}

type runArgs struct {
	Path           string
	Provider       string
	ProviderSet    bool
	Concurrency    int
	ConcurrencySet bool
	Input          string
	Demo           bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--provider":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--provider 需要一个值")
			}
			i++
			ra.Provider = args[i]
			ra.ProviderSet = true
		case strings.HasPrefix(a, "--provider="):
			ra.Provider = strings.TrimPrefix(a, "--provider=")
			ra.ProviderSet = true
		case a == "--concurrency":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--concurrency 需要一个值")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return runArgs{}, fmt.Errorf("--concurrency 必须是整数，实际是 %q", args[i])
			}
			ra.Concurrency = n
			ra.ConcurrencySet = true
		case strings.HasPrefix(a, "--concurrency="):
			v := strings.TrimPrefix(a, "--concurrency=")
			n, err := strconv.Atoi(v)
			if err != nil {
				return runArgs{}, fmt.Errorf("--concurrency 必须是整数，实际是 %q", v)
			}
			ra.Concurrency = n
			ra.ConcurrencySet = true
		case a == "--input":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--input 需要一个值")
			}
			i++
			ra.Input = args[i]
		case strings.HasPrefix(a, "--input="):
			ra.Input = strings.TrimPrefix(a, "--input=")
		case a == "--demo":
			ra.Demo = true
		case strings.HasPrefix(a, "-") && a != "-":
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Path != "" {
				return runArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ra.Path, a)
			}
			ra.Path = a
		}
	}

	if ra.Demo && ra.Input != "" {
		return runArgs{}, fmt.Errorf("--demo 与 --input 互斥")
	}
	if ra.ProviderSet && ra.Provider == "" {
		return runArgs{}, fmt.Errorf("--provider 不能为空")
	}
	return ra, nil
}

// readInput 决定本轮的原始文本来源：--demo > --input 文件/“-” > stdin 管道。
func readInput(ra runArgs) (string, error) {
	if ra.Demo {
		return demoText, nil
	}
	if ra.Input != "" && ra.Input != "-" {
		b, err := os.ReadFile(ra.Input)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if ra.Input == "" && isTTY(os.Stdin) {
		return "", fmt.Errorf("stdin 是终端：请用 --input <file>、--demo，或通过管道输入文本")
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type exportArgs struct {
	Path   string
	Format string
	Out    string
}

func parseExportArgs(args []string) (exportArgs, error) {
	ea := exportArgs{Format: "tsv"}
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--format":
			if i+1 >= len(args) {
				return exportArgs{}, fmt.Errorf("--format 需要一个值")
			}
			i++
			ea.Format = args[i]
		case strings.HasPrefix(a, "--format="):
			ea.Format = strings.TrimPrefix(a, "--format=")
		case a == "--out":
			if i+1 >= len(args) {
				return exportArgs{}, fmt.Errorf("--out 需要一个值")
			}
			i++
			ea.Out = args[i]
		case strings.HasPrefix(a, "--out="):
			ea.Out = strings.TrimPrefix(a, "--out=")
		case strings.HasPrefix(a, "-"):
			return exportArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ea.Path != "" {
				return exportArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ea.Path, a)
			}
			ea.Path = a
		}
	}
	if ea.Format != "tsv" && ea.Format != "csv" {
		return exportArgs{}, fmt.Errorf("--format 只能是 tsv 或 csv，实际是 %q", ea.Format)
	}
	return ea, nil
}

func onlyPathArg(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		if strings.HasPrefix(args[0], "-") {
			return "", fmt.Errorf("未知参数 %q", args[0])
		}
		return args[0], nil
	default:
		return "", fmt.Errorf("最多一个 path 参数")
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  jpex run [path] [--input file|-] [--demo] [--provider gplaces] [--concurrency N]
  jpex list [path]
  jpex set <id> <mapcode|telephone|address> <value> [path]
  jpex select <id> <n> [path]
  jpex remove <id> [path]
  jpex restore [path]
  jpex clear [path]
  jpex export [path] [--format tsv|csv] [--out file]

命令：
  run      从原始文本提取候选并解析为地点记录
  list     展示当前工作集
  set      手改某行的 mapcode/telephone/address
  select   补选一个待消歧行
  remove   删除一行（restore 可恢复最近一次）
  restore  恢复最近一次删除
  clear    清空工作集
  export   导出 TSV/CSV（存在非法 mapcode 时拒绝）

使用 "jpex <命令> --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  jpex run [path] [--input file|-] [--demo] [--provider gplaces] [--concurrency N]

参数：
  --input        原始文本来源：文件路径，或 "-" 表示 stdin（默认：stdin 管道）
  --demo         使用内置演示文本
  --provider     地点服务：gplaces（未指定则读配置文件；最终默认 gplaces）
  --concurrency  解析并发数（默认读配置；最终默认 3，范围 [1,16]）
  -h, --help     显示帮助
`)
}

func printExportUsage() {
	fmt.Fprint(os.Stdout, `用法：
  jpex export [path] [--format tsv|csv] [--out file]

参数：
  --format    导出格式：tsv（默认）或 csv
  --out       写入文件（原子替换）；未指定则输出到 stdout
  -h, --help  显示帮助
`)
}

// reportFrom 用工作集当前内容构造一份新的 RunReport（list / 消歧后复用）。
func reportFrom(e *env) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{Path: e.eff.Path, StartedAt: now, FinishedAt: now, Rows: e.store.Rows()}
	rr.Finalize()
	return rr
}

func emitReport(st *store.Store, rr domain.RunReport) {
	if isTTY(os.Stdout) {
		if len(rr.Rows) == 0 {
			fmt.Fprintln(os.Stdout, "工作集为空。")
			return
		}
		fmt.Fprintln(os.Stdout, renderRows(rr.Rows))
		fmt.Fprintf(os.Stdout, "完成：complete=%d error=%d disambiguation=%d pending=%d invalid=%d\n",
			rr.Summary.Complete, rr.Summary.Errored, rr.Summary.Disambiguation, rr.Summary.Pending, rr.Summary.Invalid,
		)
		if st.CanRestore() {
			fmt.Fprintln(os.Stderr, "提示：有一条已删除的行可用 jpex restore 恢复")
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：complete=%d error=%d disambiguation=%d pending=%d invalid=%d\n",
		rr.Summary.Complete, rr.Summary.Errored, rr.Summary.Disambiguation, rr.Summary.Pending, rr.Summary.Invalid,
	)
}

func printEffective(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	fmt.Fprintln(w, "配置（生效）:")
	fmt.Fprintf(w, "  path: %s\n", eff.Path)
	fmt.Fprintf(w, "  provider: %s\n", eff.Provider)
	fmt.Fprintf(w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(w, "  api_key: %s\n", maskSecret(eff.APIKey))
	if eff.PlacesBaseURL != "" {
		fmt.Fprintf(w, "  places_base_url: %s\n", eff.PlacesBaseURL)
	}
	if eff.MapcodeBaseURL != "" {
		fmt.Fprintf(w, "  mapcode_base_url: %s\n", eff.MapcodeBaseURL)
	}
	fmt.Fprintln(w)
}

func maskSecret(s string) string {
	if s == "" {
		return "<未设置>"
	}
	if len(s) <= 6 {
		return "***"
	}
	return s[:3] + "..." + s[len(s)-3:]
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
