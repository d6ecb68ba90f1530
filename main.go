package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/ByLCY/diploma/config"
	"github.com/ByLCY/diploma/server"
)

func main() {
	root := &cobra.Command{
		Use:           "diploma",
		Short:         "证书模板渲染、导出与验证",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRenderCmd(), newBatchCmd(), newPresetsCmd(), newServeCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动验证、预览与批量导出 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fx.Provide(config.Load),
				fx.Provide(RegisterSnowflake),
				server.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
