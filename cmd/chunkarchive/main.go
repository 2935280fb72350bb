// Command chunkarchive builds, inspects, and reconstructs content-defined
// chunk archives.
package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/saworbit/chunkarchive/pkg/config"
)

var debugEnabled bool

func logDebug(format string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	log.Printf("[DEBUG] "+format, args...)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "chunkarchive",
		Short: "chunkarchive - content-defined deduplicating archives",
		Long: `chunkarchive cuts a source into content-defined chunks, stores each
unique chunk once, and can later reconstruct the source from an archive,
reusing whatever bytes a local file or seed already supplies.`,
	}
	rootCmd.PersistentFlags().BoolVar(&debugEnabled, "debug", false, "Enable verbose debug logging")

	rootCmd.AddCommand(newCompressCmd())
	rootCmd.AddCommand(newCloneCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newWatchCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(overrides func(cfg *config.Config)) (*config.Config, error) {
	cfg := config.LoadFromEnv()
	if overrides != nil {
		overrides(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

