package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sekou/sekou/internal/config"
	"github.com/sekou/sekou/pkg/logger"
)

type cli struct {
	cfg        *config.Config
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "sekou",
		Short:         "施工排程服务",
		Long:          "多租户的工事排程核心：接单能力、状态分类、日历视图与自动分配。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.configPath != "" {
				if err := os.Setenv("SEKOU_CONFIG", c.configPath); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			if c.verbose {
				cfg.Log.Level = "debug"
			}
			logger.Init(cfg.Log)
			c.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML 配置文件（覆盖环境变量）")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(
		newServeCmd(c),
		newResolveCmd(c),
		newReportCmd(c),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本信息",
		// 不需要加载配置
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sekou v%s\nBuild: %s (%s)\n", Version, BuildTime, GitCommit)
		},
	}
}
