package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/FieldAnalyzer/internal/output"
	"github.com/PentesterFlow/FieldAnalyzer/internal/progress"
	"github.com/PentesterFlow/FieldAnalyzer/internal/shutdown"
	"github.com/PentesterFlow/FieldAnalyzer/internal/store"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/analyzer"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool
	logFormat  string
	outputFile string
	format     string
	compact    bool
	useStore   bool
	storePath  string

	// Analyze flags
	htmlFile    string
	pageURL     string
	timeout     int
	concurrency int
	headful     bool
	browserBin  string

	// Batch flags
	urlFile          string
	batchConcurrency int
	rateLimit        float64
	retries          int
	noDedup          bool
	stream           bool
	noProgress       bool

	// History flags
	historyLimit int

	// Config flags
	force bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fieldanalyzer",
		Short: "FieldAnalyzer - Form Field Analyzer",
		Long: `FieldAnalyzer - Extracts the interactive fields of a web page and groups them into forms.

Each field is classified as required, optional or hidden, each form gets a purpose
(login, signup, search, listing, mixed) and the page gets an overall type.
Live pages are rendered in a headless browser; saved HTML is analyzed as-is.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [url]",
		Short: "Analyze a single page",
		Long:  "Analyze a live URL in a headless browser, or a saved HTML file with --html.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAnalyze,
	}

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Analyze a list of URLs",
		Long:  "Analyze every URL in a file (one per line, # comments allowed) with bounded concurrency.",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}

	historyCmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show stored analyses",
		Long:  "List analyzed URLs, or the stored analyses of one URL, newest first.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Long:  "Write the default configuration to path (default fieldanalyzer.yaml). A .json path writes JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "pretty", "Log format (pretty, json)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "json", "Output format (json, text)")
	rootCmd.PersistentFlags().BoolVar(&compact, "compact", false, "Compact JSON output")
	rootCmd.PersistentFlags().BoolVar(&useStore, "store", false, "Record analyses in the history database")
	rootCmd.PersistentFlags().StringVar(&storePath, "store-path", "", "History database path")

	// Analyze flags
	analyzeCmd.Flags().StringVar(&htmlFile, "html", "", "Analyze a saved HTML file instead of a live URL")
	analyzeCmd.Flags().StringVar(&pageURL, "url", "", "Page URL for --html (resolves form actions)")
	analyzeCmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Navigation timeout in seconds")
	analyzeCmd.Flags().IntVar(&concurrency, "concurrency", 8, "Concurrent element reads")
	analyzeCmd.Flags().BoolVar(&headful, "headful", false, "Show the browser window")
	analyzeCmd.Flags().StringVar(&browserBin, "browser-bin", "", "Chrome binary (default: auto-detect)")

	// Batch flags
	batchCmd.Flags().StringVar(&urlFile, "file", "", "File with one URL per line")
	batchCmd.Flags().IntVarP(&batchConcurrency, "workers", "w", 2, "Pages analyzed at once")
	batchCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 2, "Page loads per second")
	batchCmd.Flags().IntVar(&retries, "retries", 2, "Retries per page on navigation failures")
	batchCmd.Flags().BoolVar(&noDedup, "no-dedup", false, "Analyze repeated URLs again")
	batchCmd.Flags().BoolVar(&stream, "stream", false, "Write one JSON event per line as pages complete")
	batchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress line")
	batchCmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Navigation timeout in seconds")
	batchCmd.Flags().BoolVar(&headful, "headful", false, "Show the browser window")
	batchCmd.Flags().StringVar(&browserBin, "browser-bin", "", "Chrome binary (default: auto-detect)")
	batchCmd.MarkFlagRequired("file")

	// History flags
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Maximum records to show (0 for all)")

	// Config flags
	configInitCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, then applies the flags the user
// set. Command-line flags take precedence over the file.
func loadConfig(cmd *cobra.Command) (*analyzer.Config, error) {
	config := analyzer.DefaultConfig()
	if configFile != "" {
		fileConfig, err := analyzer.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	flags := cmd.Flags()
	switch {
	case debug:
		config.LogLevel = "debug"
	case verbose:
		config.LogLevel = "info"
	}
	if flags.Changed("log-format") {
		config.LogFormat = logFormat
	}
	if flags.Changed("output") {
		config.Output.FilePath = outputFile
	}
	if flags.Changed("format") {
		config.Output.Format = format
	}
	if compact {
		config.Output.Pretty = false
	}
	if useStore {
		config.Store.Enabled = true
	}
	if flags.Changed("store-path") {
		config.Store.Path = storePath
	}

	if flags.Changed("timeout") {
		config.Browser.NavigationTimeout = time.Duration(timeout) * time.Second
	}
	if flags.Changed("headful") {
		config.Browser.Headless = !headful
	}
	if flags.Changed("browser-bin") {
		config.Browser.Bin = browserBin
	}
	if flags.Changed("concurrency") {
		config.Extract.Concurrency = concurrency
	}

	if flags.Changed("workers") {
		config.Batch.Concurrency = batchConcurrency
	}
	if flags.Changed("rate-limit") {
		config.Batch.RateLimit.RequestsPerSecond = rateLimit
	}
	if flags.Changed("retries") {
		config.Batch.Retry.MaxRetries = retries
	}
	if noDedup {
		config.Batch.Dedup = false
	}
	if stream {
		config.Output.Stream = true
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// session is what analyze and batch share: an analyzer, its writer and the
// shutdown handler that closes them.
type session struct {
	analyzer *analyzer.Analyzer
	writer   output.Writer
	shutdown *shutdown.Handler
}

func newSession(config *analyzer.Config, opts ...analyzer.Option) (*session, error) {
	s := &session{shutdown: shutdown.New(shutdown.DefaultConfig())}
	log := config.NewLogger()

	w, err := output.Open(config.Output)
	if err != nil {
		s.shutdown.Shutdown()
		return nil, fmt.Errorf("failed to open output: %w", err)
	}
	s.writer = w
	s.shutdown.RegisterFunc("output", w.Close)

	if config.Store.Enabled {
		st, err := store.NewBoltStore(config.Store.Path)
		if err != nil {
			s.shutdown.Shutdown()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		s.shutdown.RegisterFunc("store", st.Close)
		opts = append(opts, analyzer.WithStore(st))
	}

	opts = append([]analyzer.Option{
		analyzer.WithConfig(config),
		analyzer.WithLogger(log),
	}, opts...)
	a, err := analyzer.New(opts...)
	if err != nil {
		s.shutdown.Shutdown()
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	s.analyzer = a
	// Registered last so browsers close before the output and store.
	s.shutdown.RegisterFunc("browser", a.Close)

	return s, nil
}

// close runs the cleanup callbacks. A session cancelled by a signal has
// already run them.
func (s *session) close() {
	s.shutdown.Shutdown()
	<-s.shutdown.Done()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && htmlFile == "" {
		return fmt.Errorf("a URL or --html file is required")
	}
	if len(args) == 1 && htmlFile != "" {
		return fmt.Errorf("use either a URL or --html, not both")
	}

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(config)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := s.shutdown.Context()

	var result *page.Analysis
	switch {
	case htmlFile == "-":
		result, err = s.analyzer.AnalyzeHTML(ctx, pageURL, os.Stdin)
	case htmlFile != "":
		result, err = s.analyzer.AnalyzeFile(ctx, htmlFile, pageURL)
	default:
		result, err = s.analyzer.AnalyzeURL(ctx, args[0])
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if err := s.writer.WriteAnalysis(result); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if verbose && config.Output.FilePath != "" {
		fmt.Fprintln(os.Stderr, result.Summary())
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	f, err := os.Open(urlFile)
	if err != nil {
		return fmt.Errorf("failed to open url file: %w", err)
	}
	urls, err := analyzer.ReadURLs(f)
	f.Close()
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs in %s", urlFile)
	}

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The progress line and verbose logging both write to stderr.
	var opts []analyzer.Option
	if !noProgress && !verbose && !debug {
		opts = append(opts, analyzer.WithProgress(progress.New()))
	}

	s, err := newSession(config, opts...)
	if err != nil {
		return err
	}
	defer s.close()

	summary, err := s.analyzer.Batch(s.shutdown.Context(), urls, s.writer)
	if err != nil && !s.shutdown.IsShuttingDown() {
		return fmt.Errorf("batch failed: %w", err)
	}
	if s.shutdown.IsShuttingDown() {
		fmt.Fprintf(os.Stderr, "\nInterrupted: %d of %d URLs analyzed\n",
			summary.Statistics.Analyzed, summary.Statistics.TotalURLs)
	}
	if summary.Statistics.Analyzed == 0 && summary.Statistics.Failed > 0 {
		return fmt.Errorf("all %d pages failed", summary.Statistics.Failed)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := store.NewBoltStore(config.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer st.Close()

	out := os.Stdout

	if len(args) == 0 {
		urls, err := st.URLs()
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			fmt.Fprintf(out, "No analyses stored in %s\n", st.Path())
			return nil
		}
		for _, u := range urls {
			fmt.Fprintln(out, u)
		}
		return nil
	}

	records, err := st.History(args[0], historyLimit)
	if err != nil {
		return err
	}

	if config.Output.Format == output.FormatJSON {
		enc := json.NewEncoder(out)
		if config.Output.Pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No analyses stored for %s\n", args[0])
		return nil
	}
	for _, rec := range records {
		a := rec.Analysis
		fmt.Fprintf(out, "%s  %-8s forms=%d fields=%d required=%d  id=%s\n",
			rec.StoredAt.Local().Format(time.RFC3339), a.PageType,
			a.TotalForms, a.TotalFields, a.TotalRequired, rec.ID)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "fieldanalyzer.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := analyzer.DefaultConfig().SaveToFile(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}
