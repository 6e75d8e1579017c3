package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/apoxy-dev/webserver/config"
	"github.com/apoxy-dev/webserver/pkg/log"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "webserver",
	Short: "A small HTTP/1.1 origin server.",
	Long: `webserver serves static files, Markdown pages, a JSON CRUD API and a few
diagnostic endpoints, routed by URI prefix as declared in a config file.

Start with 'webserver serve webserver.conf'.
`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

// ExecuteContext executes root command with context.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.ConfigFile, "config", "", "Config file (nginx-style, or YAML when it ends in .yaml/.yml).")
	rootCmd.PersistentFlags().BoolVar(&config.AlsoLogToStderr, "alsologtostderr", false, "Log to standard error as well as the log file.")
	rootCmd.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, "Enable verbose output.")
	rootCmd.PersistentFlags().BoolVar(&config.JSONLogs, "json-logs", false, "Write logs as JSON lines.")
	rootCmd.PersistentFlags().StringVar(&config.LogFile, "log-file", "", "Append logs to this file instead of standard error.")

	genDocsCmd.Flags().StringVar(&docsDir, "dir", "./docs", "Directory to write the docs to.")
	rootCmd.AddCommand(genDocsCmd)
}

func initLogging() error {
	var opts []log.Option
	if config.Verbose {
		opts = append(opts, log.WithDevMode())
	}
	if config.AlsoLogToStderr {
		opts = append(opts, log.WithAlsoLogToStderr())
	}
	if config.JSONLogs {
		opts = append(opts, log.WithJSON())
	}
	opts = append(opts, log.WithLogFile(config.LogFile))
	return log.Init(opts...)
}

// configFromArgs loads the config named by the optional positional argument,
// falling back to --config.
func configFromArgs(args []string) (*config.Config, error) {
	if len(args) > 0 {
		config.ConfigFile = args[0]
	}
	return config.Load()
}

var docsDir string

var genDocsCmd = &cobra.Command{
	Use:    "gen-docs",
	Short:  "Generate CLI reference docs",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return GenerateDocs(docsDir)
	},
}

// GenerateDocs writes the reference for every command into a single file in
// dir.
func GenerateDocs(dir string) error {
	anchorLinks := func(s string) string {
		s = strings.ReplaceAll(s, "_", "-")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, ".md", "")
		return fmt.Sprintf("#%s", s)
	}
	emptyStr := func(s string) string { return "" }
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	files, err := genMarkdownTreeCustom(rootCmd, dir, emptyStr, anchorLinks)
	if err != nil {
		return err
	}
	var combined strings.Builder
	for _, file := range files {
		f, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		combined.Write(f)
		combined.WriteString("\n\n")
	}
	if err = os.WriteFile(files[0], []byte(combined.String()), 0644); err != nil {
		return err
	}
	for _, file := range files[1:] {
		os.Remove(file)
	}
	return nil
}

func genMarkdownTreeCustom(
	cmd *cobra.Command,
	dir string,
	filePrepender, linkHandler func(string) string,
) ([]string, error) {
	basename := strings.ReplaceAll(cmd.CommandPath(), " ", "_") + ".mdx"
	filename := filepath.Join(dir, basename)
	f, err := os.Create(filename)
	if err != nil {
		return []string{}, err
	}
	defer f.Close()

	if _, err := io.WriteString(f, filePrepender(filename)); err != nil {
		return []string{}, err
	}
	if err := doc.GenMarkdownCustom(cmd, f, linkHandler); err != nil {
		return []string{}, err
	}

	newFiles := []string{filename}
	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() || c.IsAdditionalHelpTopicCommand() {
			continue
		}
		if files, err := genMarkdownTreeCustom(c, dir, filePrepender, linkHandler); err != nil {
			return newFiles, err
		} else {
			newFiles = append(newFiles, files...)
		}
	}
	return newFiles, nil
}
