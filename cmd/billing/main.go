// Command billing 执行一次每日订阅批处理：状态检查、续费扣款和到期提醒。
//
// 不带参数时执行全部步骤；同一天重复执行会被跳过，除非指定 -force。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"mesa/internal/app"
	"mesa/internal/services"
	"mesa/pkg/config"
	"mesa/pkg/logger"
)

func main() {
	billingOnly := flag.Bool("billing", false, "只执行续费扣款")
	notificationsOnly := flag.Bool("notifications", false, "只发送到期提醒")
	dryRun := flag.Bool("dry-run", false, "模拟执行，不写入任何数据")
	force := flag.Bool("force", false, "忽略今日已执行标记")
	timeout := flag.Duration("timeout", 30*time.Minute, "最长执行时间")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger := logger.GetLogger()

	if cfg.Cache.Driver == "memory" {
		appLogger.Warn("CACHE_DRIVER=memory 时每日执行标记不跨进程保留，重复执行无法被拦截")
	}

	container, err := app.Build(cfg)
	if err != nil {
		appLogger.Errorf("批处理初始化失败: %v", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	opts := services.NewBatchOptions(*billingOnly, *notificationsOnly, *dryRun, *force)
	result, err := container.Batch.Run(ctx, opts)
	if result != nil {
		printResult(result)
	}
	if err != nil {
		appLogger.Errorf("批处理失败: %v", err)
		app.Close()
		os.Exit(1)
	}
}

func printResult(result *services.BatchResult) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法输出结果: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
