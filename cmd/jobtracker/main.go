// Command jobtracker 跟踪 LinkedIn 求职申请：读取通知邮件、去重、公司调研、写入 CSV 并发送每日汇总。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/YKarmar/ApplyTracker/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "jobtracker",
	Short: "LinkedIn job application tracker",
	Long: `jobtracker reads LinkedIn application emails, keeps a deduplicated CSV history,
researches each new company and emails a daily summary with the full CSV attached.

Settings come from a YAML file (--config), a .env file and environment variables,
in increasing order of precedence.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	os.Exit(execute())
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
