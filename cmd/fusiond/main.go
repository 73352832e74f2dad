// Package main 提供 fusiond 命令行入口
//
// fusiond 加入（或创建）一个 World 并保持运行，直到收到 SIGINT/SIGTERM：
// Master 执行完整关闭流程，其他进程离开 World。关闭期间再收到一个信号
// 会取消排空等待，直接进入销毁与终止阶段。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	fusion "github.com/directfb2/DirectFB2-sub002"
	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/util/logger"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
)

var clog = log.Logger("cmd/fusiond")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile  = flag.String("config", "", "JSON 配置文件路径")
	preset      = flag.String("preset", "", "预设配置 (master/slave/test)")
	backend     = flag.String("transport", "", "分发传输后端 (privileged/socket/local)")
	layers      = flag.Int("layers", -1, "显示层数量（-1 = 使用配置）")
	info        = flag.Bool("info", false, "关闭时输出残留对象诊断")
	dumpConfig  = flag.Bool("dump-config", false, "输出生效配置后退出")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(fusion.VersionInfo())
		return nil
	}

	closer, err := logger.Setup(logger.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = closer.Close() }()

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	if *dumpConfig {
		data, err := config.ToJSON(cfg)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	clog.Info("启动 fusiond", "version", fusion.Version, "commit", fusion.GitCommit, "buildDate", fusion.BuildDate)

	rt, err := fusion.Start(context.Background(), fusion.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	fmt.Printf("📦 %s\n", fusion.VersionInfo())
	fmt.Printf("fusion_id=%s master=%t transport=%s\n",
		rt.World().ID(), rt.World().IsMaster(), cfg.Transport.Backend)

	return waitAndStop(rt)
}

// buildConfig 合并配置文件、预设与命令行参数
//
// 优先级（从高到低）：命令行参数 > 预设 > 配置文件 > 默认值
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := config.ApplyPreset(cfg, *preset); err != nil {
		return nil, err
	}

	if *backend != "" {
		cfg.Transport.Backend = *backend
	}
	if *layers >= 0 {
		cfg.Layer.Count = *layers
	}
	if *info {
		cfg.Shutdown.Info = true
	}

	fixes, err := config.Normalize(cfg)
	for _, f := range fixes {
		clog.Warn("配置已修正", "fix", f)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// waitAndStop 等待退出信号并关闭
func waitAndStop(rt *fusion.Runtime) error {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Println("已就绪，按 Ctrl+C 退出")
	sig := <-sigCh
	clog.Info("收到退出信号", "signal", sig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if rt.World().IsMaster() {
			done <- rt.Shutdown(ctx, false)
			return
		}
		done <- rt.Close()
	}()

	for {
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				clog.Warn("关闭完成但存在错误", "error", err)
				return err
			}
			fmt.Println("已退出")
			return nil
		case sig := <-sigCh:
			clog.Warn("再次收到信号，取消排空等待", "signal", sig)
			cancel()
		}
	}
}
