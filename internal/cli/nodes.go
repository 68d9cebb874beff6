package cli

import (
	"context"
	"fmt"
	"os"

	"catalogpull/internal/engine"

	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes [fact=value ...]",
	Short: "List the nodes a fact query selects",
	Long: `List the nodes a fact query selects, one per line, without requesting any
catalog. Node selection works exactly as for "catalogpull pull".

With --console-format json the list is written as {"nodes": [...]}.

Examples:
  catalogpull nodes kernel=Linux --old-server puppet-old.example.com
  catalogpull nodes role=web,datacenter=ams1 --use-puppetdb
`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg.Discovery.Query = append(cfg.Discovery.Query, args...)
		if err := cfg.ValidateDiscovery(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		os.Exit(runEngine(cfg, func(ctx context.Context, eng *engine.Engine) int {
			return eng.ListNodes(ctx, cfg)
		}))
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)

	fs := nodesCmd.Flags()
	addServerFlags(fs)
	addDiscoveryFlags(fs)
	addTLSFlags(fs)
	addRuntimeFlags(fs)
	addOutputFlags(fs)
}
