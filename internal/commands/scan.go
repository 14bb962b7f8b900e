package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ppiankov/awsinventory/internal/analyzer"
	"github.com/ppiankov/awsinventory/internal/aws"
	"github.com/ppiankov/awsinventory/internal/collector"
	"github.com/ppiankov/awsinventory/internal/logging"
	"github.com/ppiankov/awsinventory/internal/report"
	"github.com/ppiankov/awsinventory/internal/scope"
)

var scanFlags struct {
	profiles     []string
	allProfiles  bool
	accounts     []string
	accountsFile string
	roleName     string
	externalID   string
	baseProfile  string
	region       string
	regions      []string
	types        []string
	outputDir    string
	formats      []string
	concurrency  int
	timeout      time.Duration
	callTimeout  time.Duration
	archive      bool
	metricsFile  string
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Inventory AWS resources across accounts and regions",
	Long: `Enumerate the selected resource types in every selected account and region,
then write one table per type, a summary with totals per type, region and
account, and a ZIP archive of everything including the run log.`,
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringSliceVar(&scanFlags.profiles, "profiles", nil, "Comma-separated AWS profiles to inventory")
	f.BoolVar(&scanFlags.allProfiles, "all-profiles", false, "Inventory every profile in the shared AWS config files")
	f.StringSliceVar(&scanFlags.accounts, "accounts", nil, "Comma-separated account ids to assume --role-name into")
	f.StringVar(&scanFlags.accountsFile, "accounts-file", "", "File with one account id per line")
	f.StringVar(&scanFlags.roleName, "role-name", "", "Role to assume in each account")
	f.StringVar(&scanFlags.externalID, "external-id", "", "External id for AssumeRole")
	f.StringVar(&scanFlags.baseProfile, "base-profile", "", "Profile whose credentials assume the role")
	f.StringVar(&scanFlags.region, "region", "", "Home region for identity and account-wide calls")
	f.StringSliceVar(&scanFlags.regions, "regions", nil, "Comma-separated region filter (default: all enabled regions)")
	f.StringSliceVar(&scanFlags.types, "types", nil, "Comma-separated resource types (default: all, see 'awsinventory kinds')")
	f.StringVarP(&scanFlags.outputDir, "output-dir", "o", "inventory", "Directory for reports")
	f.StringSliceVar(&scanFlags.formats, "format", []string{"csv", "xlsx"}, "Report formats: csv, xlsx")
	f.IntVar(&scanFlags.concurrency, "concurrency", 4, "Accounts inventoried in parallel")
	f.DurationVar(&scanFlags.timeout, "timeout", 30*time.Minute, "Overall timeout")
	f.DurationVar(&scanFlags.callTimeout, "call-timeout", 2*time.Minute, "Timeout for one resource type in one region")
	f.BoolVar(&scanFlags.archive, "archive", true, "Bundle all reports and the run log into a ZIP archive")
	f.StringVar(&scanFlags.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Apply config file defaults where flags were not explicitly set
	applyConfigDefaults(cmd)

	if scanFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scanFlags.timeout)
		defer cancel()
	}

	// Everything that can be rejected is rejected before any AWS call
	kinds, err := aws.ParseKinds(scanFlags.types)
	if err != nil {
		return err
	}
	formats, err := parseFormats(scanFlags.formats)
	if err != nil {
		return err
	}
	opts, err := metricOptions(cfg.Metrics)
	if err != nil {
		return err
	}
	resolver, err := scope.NewResolver(buildSelection(), scanFlags.region)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(scanFlags.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	runID := uuid.New().String()
	start := time.Now()

	transcript, err := os.CreateTemp(scanFlags.outputDir, ".awsinventory-*.log")
	if err != nil {
		return fmt.Errorf("create run log: %w", err)
	}
	logging.Init(verbose, transcript)
	closeTranscript := func() {
		logging.Init(verbose, nil)
		_ = transcript.Close()
	}
	defer func() {
		closeTranscript()
		_ = os.Remove(transcript.Name())
	}()

	log.Info().
		Str("run_id", runID).
		Str("version", version).
		Strs("types", kinds).
		Int("candidates", resolver.Candidates()).
		Msg("Starting inventory")

	enums, err := aws.Enumerators(kinds, opts)
	if err != nil {
		return err
	}
	col := collector.New(collectorEnumerators(enums), aws.NewRegionDiscovery(), collector.Config{
		Regions:     scanFlags.regions,
		Concurrency: scanFlags.concurrency,
		CallTimeout: scanFlags.callTimeout,
	})

	scopes, err := col.Collect(ctx, resolver.Scopes(ctx))
	skipped := resolver.Skipped()
	if err != nil {
		if errors.Is(err, collector.ErrNoScopes) && len(skipped) > 0 {
			return enhanceError("authenticate", skipped[0].Err)
		}
		return enhanceError("collect resources", err)
	}

	tables := buildTables(kinds, scopes)
	rows, err := analyzer.Analyze(scopeRefs(scopes), tables)
	if err != nil {
		return err
	}

	aliases := make([]string, len(scopes))
	accounts := make([]string, len(scopes))
	var failures []collector.Failure
	for i, sc := range scopes {
		aliases[i] = sc.Scope.Alias
		accounts[i] = sc.Scope.ID
		failures = append(failures, sc.Failures...)
	}
	naming := report.NewNaming(scanFlags.outputDir, aliases, start)

	res := report.NewEmitter(buildSinks(formats, naming)...).Emit(nonEmpty(tables), rows)
	reportsFailed := res.AllFailed()

	if scanFlags.metricsFile != "" {
		stats := report.RunStats{
			RunID:    runID,
			Version:  version,
			Scopes:   len(scopes),
			Skipped:  len(skipped),
			Failures: len(failures),
			Duration: time.Since(start),
			Finished: time.Now(),
		}
		if err := report.WriteMetrics(scanFlags.metricsFile, stats, rows); err != nil {
			log.Warn().Err(err).Str("path", scanFlags.metricsFile).Msg("Failed to write metrics")
		}
	}

	manifestPath := naming.Path("manifest", "json")
	manifest := buildManifest(runID, start, accounts, scopes, kinds, rows, res, skipped, failures)
	if err := report.WriteManifest(manifestPath, manifest); err != nil {
		log.Warn().Err(err).Msg("Failed to write manifest")
	} else {
		res.Written = append(res.Written, manifestPath)
	}

	logSummary(rows, failures, skipped, time.Since(start))

	// The run log is complete once logging is detached from it
	closeTranscript()
	logPath := naming.Path("inventory", "log")
	if err := os.Rename(transcript.Name(), logPath); err != nil {
		log.Warn().Err(err).Msg("Failed to keep run log")
	} else {
		res.Written = append(res.Written, logPath)
	}

	if scanFlags.archive && len(res.Written) > 0 {
		zipPath := naming.Path("inventory", "zip")
		added, err := report.Archive(zipPath, res.Written)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create archive")
		} else {
			log.Info().Str("path", zipPath).Int("files", len(added)).Msg("Archive written")
		}
	}

	if reportsFailed {
		return fmt.Errorf("no report could be written: %w", res.Err())
	}
	log.Info().Str("dir", filepath.Clean(scanFlags.outputDir)).Int("files", len(res.Written)).Msg("Inventory complete")
	return nil
}

func buildSelection() scope.Selection {
	profiles := scanFlags.profiles
	if profile != "" && len(profiles) == 0 {
		profiles = []string{profile}
	}
	return scope.Selection{
		Profiles:     profiles,
		AllProfiles:  scanFlags.allProfiles,
		Accounts:     scanFlags.accounts,
		AccountsFile: scanFlags.accountsFile,
		RoleName:     scanFlags.roleName,
		ExternalID:   scanFlags.externalID,
		BaseProfile:  scanFlags.baseProfile,
	}
}

func buildManifest(runID string, start time.Time, accounts []string, scopes []*collector.ScopeContext,
	kinds []string, rows []analyzer.SummaryRow, res report.Result, skipped []scope.Skipped, failures []collector.Failure) report.Manifest {
	m := report.Manifest{
		Tool:      "awsinventory",
		Version:   version,
		RunID:     runID,
		Timestamp: start.UTC(),
		Target: report.Target{
			Type:    "aws-accounts",
			URIHash: computeTargetHash(accounts),
		},
		Types:  kinds,
		Totals: kindTotals(rows),
	}
	for _, sc := range scopes {
		m.Scopes = append(m.Scopes, report.ManifestScope{
			ID:      sc.Scope.ID,
			Alias:   sc.Scope.Alias,
			Source:  string(sc.Scope.Source),
			Regions: sc.Regions,
		})
	}
	for _, p := range res.Written {
		m.Artifacts = append(m.Artifacts, filepath.Base(p))
	}
	for _, s := range skipped {
		m.Skipped = append(m.Skipped, s.Candidate)
	}
	for _, f := range failures {
		m.Errors = append(m.Errors, f.String())
	}
	for _, f := range res.Failures {
		m.Errors = append(m.Errors, f.Error())
	}
	return m
}

// logSummary reports per-type totals so under-counting is visible.
func logSummary(rows []analyzer.SummaryRow, failures []collector.Failure, skipped []scope.Skipped, elapsed time.Duration) {
	for _, r := range analyzer.KindTotals(rows) {
		log.Info().
			Str("type", r.Kind).
			Int("count", r.Count).
			Float64("size_gib", r.GiB).
			Float64("size_tib", r.TiB).
			Msg("Total")
	}
	for _, s := range skipped {
		log.Warn().Err(s.Err).Str("scope", s.Candidate).Msg("Scope skipped")
	}
	ev := log.Info()
	if len(failures) > 0 {
		ev = log.Warn()
	}
	ev.Int("failures", len(failures)).
		Int("skipped_scopes", len(skipped)).
		Dur("elapsed", elapsed).
		Msg("Collection finished")
}

func applyConfigDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("profiles") && len(cfg.Profiles) > 0 {
		scanFlags.profiles = cfg.Profiles
	}
	if !flags.Changed("all-profiles") && cfg.AllProfiles {
		scanFlags.allProfiles = true
	}
	if !flags.Changed("accounts") && len(cfg.Accounts) > 0 {
		scanFlags.accounts = cfg.Accounts
	}
	if !flags.Changed("accounts-file") && cfg.AccountsFile != "" {
		scanFlags.accountsFile = cfg.AccountsFile
	}
	if !flags.Changed("role-name") && cfg.RoleName != "" {
		scanFlags.roleName = cfg.RoleName
	}
	if !flags.Changed("external-id") && cfg.ExternalID != "" {
		scanFlags.externalID = cfg.ExternalID
	}
	if !flags.Changed("base-profile") && cfg.BaseProfile != "" {
		scanFlags.baseProfile = cfg.BaseProfile
	}
	if !flags.Changed("regions") && len(cfg.Regions) > 0 {
		scanFlags.regions = cfg.Regions
	}
	if !flags.Changed("types") && len(cfg.Types) > 0 {
		scanFlags.types = cfg.Types
	}
	if !flags.Changed("output-dir") && cfg.OutputDir != "" {
		scanFlags.outputDir = cfg.OutputDir
	}
	if !flags.Changed("format") && len(cfg.Formats) > 0 {
		scanFlags.formats = cfg.Formats
	}
	if !flags.Changed("concurrency") && cfg.Concurrency > 0 {
		scanFlags.concurrency = cfg.Concurrency
	}
	if !flags.Changed("timeout") && cfg.TimeoutDuration() > 0 {
		scanFlags.timeout = cfg.TimeoutDuration()
	}
	if !flags.Changed("call-timeout") && cfg.CallTimeoutDuration() > 0 {
		scanFlags.callTimeout = cfg.CallTimeoutDuration()
	}
	if !flags.Changed("archive") && cfg.Archive != nil {
		scanFlags.archive = *cfg.Archive
	}
	if !flags.Changed("metrics-file") && cfg.MetricsFile != "" {
		scanFlags.metricsFile = cfg.MetricsFile
	}
}
