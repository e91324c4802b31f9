package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/streamhtml/rewriter"
)

var (
	removeSelectors []string
	setAttrRules    []string
	chunkSize       int
	strictMode      bool
	encodingLabel   string
	adjustCharset   bool
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [file]",
	Short: "Rewrite an HTML file and print the result",
	Long: `Rewrite reads an HTML file (or stdin, with "-") and feeds it through a
Rewriter in --chunk-size byte pieces, applying --remove and --set-attr
rules along the way, then writes the transformed output to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func init() {
	rootCmd.AddCommand(rewriteCmd)

	rewriteCmd.Flags().StringArrayVarP(&removeSelectors, "remove", "r", nil, "CSS selector of elements to drop (repeatable)")
	rewriteCmd.Flags().StringArrayVarP(&setAttrRules, "set-attr", "a", nil, `selector=attr=value rule to apply to matched elements (repeatable)`)
	rewriteCmd.Flags().IntVarP(&chunkSize, "chunk-size", "c", 4096, "bytes fed to the Rewriter per Write call")
	rewriteCmd.Flags().BoolVar(&strictMode, "strict", false, "fail instead of bailing out on parsing ambiguity")
	rewriteCmd.Flags().StringVarP(&encodingLabel, "encoding", "e", "utf-8", "ASCII-compatible encoding label")
	rewriteCmd.Flags().BoolVar(&adjustCharset, "adjust-charset", false, "retarget encoding on the first <meta charset> seen")
}

func runRewrite(cmd *cobra.Command, args []string) error {
	handlers, err := buildHandlers(removeSelectors, setAttrRules)
	if err != nil {
		return err
	}

	settings := rewriter.Settings{
		ElementContentHandlers: handlers,
		Encoding:               encodingLabel,
		Strict:                 strictMode,
		AdjustCharsetOnMetaTag: adjustCharset,
	}

	out := cmd.OutOrStdout()
	rw, err := rewriter.NewRewriter(settings, func(chunk []byte) error {
		_, werr := out.Write(chunk)
		return werr
	})
	if err != nil {
		return fmt.Errorf("constructing rewriter: %w", err)
	}

	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	if chunkSize <= 0 {
		chunkSize = 4096
	}
	buf := make([]byte, chunkSize)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if werr := rw.Write(buf[:n]); werr != nil {
				return fmt.Errorf("feeding chunk: %w", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("reading input: %w", rerr)
		}
	}

	if err := rw.End(); err != nil {
		return fmt.Errorf("finishing rewrite: %w", err)
	}
	if reason, bailedOut := rw.Bailout(); bailedOut {
		fmt.Fprintf(cmd.ErrOrStderr(), "htmlrewrite: bailed out to passthrough: %s\n", reason)
	}
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// buildHandlers turns the --remove and --set-attr flags into
// ElementContentHandlers, one per selector. A selector used by both an
// --remove and a --set-attr rule gets its own handler entry for each; the
// first Remove() call on an element wins and later callbacks on the same
// StartTag are still run but silently ignored (handlers.go's removal field
// is sticky once set).
func buildHandlers(removes []string, setAttrs []string) ([]rewriter.ElementContentHandlers, error) {
	var handlers []rewriter.ElementContentHandlers

	for _, sel := range removes {
		handlers = append(handlers, rewriter.ElementContentHandlers{
			Selector: sel,
			Element: func(tag *rewriter.StartTag) error {
				tag.Remove()
				return nil
			},
		})
	}

	for _, rule := range setAttrs {
		sel, name, value, err := splitSetAttrRule(rule)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, rewriter.ElementContentHandlers{
			Selector: sel,
			Element: func(tag *rewriter.StartTag) error {
				return tag.SetAttribute(name, value)
			},
		})
	}

	return handlers, nil
}

func splitSetAttrRule(rule string) (selector, name, value string, err error) {
	parts := strings.SplitN(rule, "=", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid --set-attr rule %q: want selector=attr=value", rule)
	}
	return parts[0], parts[1], parts[2], nil
}
