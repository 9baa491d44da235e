package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jacksonlee411/orgchart/modules/orgchart/infrastructure/persistence"
	"github.com/jacksonlee411/orgchart/modules/orgchart/services"
	"github.com/jacksonlee411/orgchart/pkg/hierarchy"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	dataDir  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "orgtool",
		Short:         "Query an organization chart loaded from Mailboxes.csv and Departments.csv",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "./data", "directory holding the CSV files")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level for load diagnostics")

	root.AddCommand(
		newHierarchyCmd(opts),
		newSortCmd(opts),
		newFilterCmd(opts),
		newRangeCmd(opts),
		newReportingLineCmd(opts),
	)
	return root
}

func newHierarchyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hierarchy",
		Short: "List every employee with sub-organization size and manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), svc.Hierarchy())
		},
	}
}

func newSortCmd(opts *options) *cobra.Command {
	var by string
	var ascending bool
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort employees by an attribute (descending unless --ascending)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rows, err := svc.SortBy(by, ascending)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "attribute to sort by")
	cmd.Flags().BoolVar(&ascending, "ascending", false, "sort ascending")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newFilterCmd(opts *options) *cobra.Command {
	var exact, partial map[string]string
	var expr string
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter employees by exact values, substrings or a CEL expression",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := 0
			for _, on := range []bool{len(exact) > 0, len(partial) > 0, expr != ""} {
				if on {
					set++
				}
			}
			if set != 1 {
				return errors.New("exactly one of --exact, --partial or --expr is required")
			}
			svc, err := opts.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			var rows []hierarchy.Result
			switch {
			case len(exact) > 0:
				rows, err = svc.FilterByExact(exact)
			case len(partial) > 0:
				rows, err = svc.FilterByPartial(partial)
			default:
				rows, err = svc.FilterByExpression(expr)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringToStringVar(&exact, "exact", nil, "attribute=value pairs that must match exactly")
	cmd.Flags().StringToStringVar(&partial, "partial", nil, "attribute=value pairs matched as substring or membership")
	cmd.Flags().StringVar(&expr, "expr", "", "CEL expression over e, e.g. 'e.depth <= 1'")
	return cmd
}

func newRangeCmd(opts *options) *cobra.Command {
	var metric string
	var lo, hi int
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Employees whose size or depth lies in [min, max]",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := hierarchy.Metric(metric)
			if m != hierarchy.MetricSize && m != hierarchy.MetricDepth {
				return fmt.Errorf("unknown metric %q (want size or depth)", metric)
			}
			svc, err := opts.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rows, err := svc.FilterByRange(m, lo, hi)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&metric, "metric", string(hierarchy.MetricSize), "size or depth")
	cmd.Flags().IntVar(&lo, "min", 0, "inclusive lower bound")
	cmd.Flags().IntVar(&hi, "max", 0, "inclusive upper bound")
	return cmd
}

func newReportingLineCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reporting-line <mailbox_identifier>",
		Short: "Show an employee and every manager up to the root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rows, err := svc.ReportingLine(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
}

func (o *options) load(ctx context.Context, stderr io.Writer) (services.OrgChartService, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	level, err := logrus.ParseLevel(o.logLevel)
	if err != nil {
		return services.OrgChartService{}, err
	}
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(level)

	store := hierarchy.NewStore()
	src := persistence.NewCSVSource(os.DirFS(o.dataDir))
	if _, err := services.NewLoader(src, logger).Load(ctx, store); err != nil {
		return services.OrgChartService{}, err
	}
	expr, err := services.NewExprFilter()
	if err != nil {
		return services.OrgChartService{}, err
	}
	return services.NewOrgChartService(store, expr), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
