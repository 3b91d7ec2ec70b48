package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/gvb-ingest/internal/ingest"
	"github.com/joseph-ayodele/gvb-ingest/internal/remote"
	"github.com/joseph-ayodele/gvb-ingest/internal/repository"
)

func newRunCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Download new files, create missing tables and ingest the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a, o.log)

			sync, err := a.Download(ctx)
			if err != nil {
				return fmt.Errorf("download: %w", err)
			}
			printSync(cmd.OutOrStdout(), sync)

			if err := a.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			stats, err := a.Ingest(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			printBatch(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func newDownloadCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Mirror new remote files into the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a, o.log)

			sync, err := a.Download(cmd.Context())
			if err != nil {
				return err
			}
			printSync(cmd.OutOrStdout(), sync)
			return nil
		},
	}
}

func newIngestCmd(o *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load cached files that have not been loaded yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a, o.log)

			if migrate {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
			}
			stats, err := a.Ingest(ctx)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create missing tables first")
	return cmd
}

func newMigrateCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a, o.log)

			if err := a.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newStatusCmd(o *rootOptions) *cobra.Command {
	var file string
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the job ledger summary and unfinished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a, o.log)
			if err := a.OpenDB(ctx); err != nil {
				return err
			}

			sum, err := a.Ledger.Summary(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "jobs: %d  finished: %d  unfinished: %d\n", sum.Total, sum.Finished, sum.Unfinished)
			for _, d := range sum.Duplicates {
				fmt.Fprintf(out, "duplicate completion: %s (%d)\n", d.FileName, d.Count)
			}

			unfinished := false
			jobs, err := a.Ledger.ListJobs(ctx, repository.JobFilter{FileName: file, Finished: &unfinished, Limit: limit})
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				return nil
			}
			fmt.Fprintln(out, "unfinished jobs:")
			for _, j := range jobs {
				fmt.Fprintf(out, "  %s  %s  started %s\n", j.ID, j.FileName, j.StartTime.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "only jobs for this file name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "max unfinished jobs to list")
	return cmd
}

func newReportCmd(o *rootOptions) *cobra.Command {
	var (
		outPath string
		file    string
		since   string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the job ledger to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			filter := repository.JobFilter{FileName: file}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				filter.StartedFrom = &t
			}

			a, err := o.open()
			if err != nil {
				return err
			}
			defer closeApp(a, o.log)

			svc, err := a.Reports(ctx)
			if err != nil {
				return err
			}
			data, err := svc.ExportJobsXLSX(ctx, filter)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "gvb-jobs.xlsx", "output file")
	cmd.Flags().StringVar(&file, "file", "", "only jobs for this file name")
	cmd.Flags().StringVar(&since, "since", "", "only jobs started on or after this date (YYYY-MM-DD)")
	return cmd
}

func printSync(w io.Writer, s remote.SyncStats) {
	fmt.Fprintf(w, "download: listed %d, new %d, cached %d, failed %d\n", s.Listed, s.Downloaded, s.Present, s.Failed)
}

func printBatch(w io.Writer, s ingest.BatchStats) {
	fmt.Fprintf(w, "ingest: files %d, loaded %d, skipped %d, failed %d, rows %d\n",
		s.Listed, s.Loaded, s.Skipped, s.Failed, s.RowsAdded)
	for _, r := range s.Results {
		if r.Status == ingest.FileFailed {
			fmt.Fprintf(w, "  failed %s: %v\n", r.FileName, r.Err)
		}
	}
}
