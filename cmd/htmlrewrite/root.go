package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "htmlrewrite",
	Short: "Stream HTML through a chunk-at-a-time rewriter",
	Long: `htmlrewrite is a small driver around the rewriter package: it feeds
a file to a Rewriter in fixed-size chunks and prints whatever the Rewriter
writes back out, the same incremental contract a reverse proxy or edge
worker would drive it under.`,
}

func init() {}
