package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"AgentPedia/internal/config"
	"AgentPedia/pkg/zlog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath    string
	adminUsername string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "agentpedia",
		Short:         "AgentPedia AI Agent 目录服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env 可选
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			conf, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			zlog.Init(zlog.Options{
				LogPath:    conf.LogConfig.LogPath,
				Level:      conf.LogConfig.Level,
				MaxSizeMB:  conf.LogConfig.MaxSizeMB,
				MaxBackups: conf.LogConfig.MaxBackups,
				MaxAgeDays: conf.LogConfig.MaxAgeDays,
			})
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (默认 configs/config_local.toml 或 $AGENTPEDIA_CONFIG)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "建表、初始化内置角色权限与 Mongo 索引",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().StringVar(&adminUsername, "admin", "", "将该已注册用户设为 super_admin")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "启动 HTTP API 服务",
			RunE:  runServe,
		},
		migrateCmd,
		&cobra.Command{
			Use:   "reindex",
			Short: "从文档存储全量重建搜索索引",
			RunE:  runReindex,
		},
		&cobra.Command{
			Use:   "indexer",
			Short: "消费目录变更事件并同步搜索索引",
			RunE:  runIndexer,
		},
		&cobra.Command{
			Use:   "version",
			Short: "显示版本",
			Run: func(cmd *cobra.Command, args []string) {
				c := config.GetConfig()
				fmt.Printf("%s v%s\n", c.AppName, c.MainConfig.Version)
			},
		},
	)

	err := rootCmd.Execute()
	zlog.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
