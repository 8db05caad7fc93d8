package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/docstore"
	"github.com/mohammad-safakhou/researcher/mcp"
	"github.com/mohammad-safakhou/researcher/tools"
)

func mcpCMD() *cobra.Command {
	var cfgPath string

	var serve = &cobra.Command{
		Use:   "mcp",
		Short: "Serve research tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			index, err := docstore.OpenIndex(cfg.Storage.File.IndexDir)
			if err != nil {
				return err
			}
			defer index.Close()
			docs := docstore.NewStore(cfg.Storage.File.DataDir, index)

			registry, err := tools.NewRegistry(cfg.Tools, docs)
			if err != nil {
				return err
			}
			defer registry.Close()

			return mcp.NewServer(registry, docs).Serve(os.Stdin, os.Stdout)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return serve
}
