package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stocklog/internal/query"
	"github.com/roach88/stocklog/internal/record"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Filter  query.Filter
	OrderBy string
	Order   string
	PerPage int
	Page    int
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stock change records",
		Long: `List stock change records, newest first by default.

SKU and name match case-insensitive substrings. Dates are calendar days
in the configured timezone and both ends are inclusive. Invalid sort
fields and page values fall back to their defaults.

Examples:
  stocklog query --sku SH- --kind order
  stocklog query --from 2024-03-01 --to 2024-03-31 --orderby delta --order asc
  stocklog query --entity 42 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&opts.Filter.EntityID, "entity", 0, "entity id")
	f.StringVar(&opts.Filter.SKU, "sku", "", "SKU substring")
	f.StringVar(&opts.Filter.Name, "name", "", "entity name substring")
	f.StringVar(&opts.Filter.DateFrom, "from", "", "first day (YYYY-MM-DD)")
	f.StringVar(&opts.Filter.DateTo, "to", "", "last day (YYYY-MM-DD)")
	f.StringVar(&opts.Filter.Kind, "kind", "", "change kind (manual|order|restore|programmatic)")
	f.StringVar(&opts.OrderBy, "orderby", query.DefaultSortField, "sort field")
	f.StringVar(&opts.Order, "order", "desc", "sort direction (asc|desc)")
	f.IntVar(&opts.PerPage, "per-page", query.DefaultPageSize, "records per page")
	f.IntVar(&opts.Page, "page", 1, "page number")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.backend.Query(ctx, opts.Filter,
		query.ParseSort(opts.OrderBy, opts.Order),
		query.Page{Size: opts.PerPage, Number: opts.Page},
	)
	if err != nil {
		return opts.fail(cmd, CodeStore, WrapExitError(ExitFailure, "query failed", err))
	}

	loc, _ := s.cfg.Location()
	return opts.formatter(cmd).Success(res, func(w io.Writer) {
		writeRecords(w, res, loc)
	})
}

// writeRecords renders a result page as an aligned table.
func writeRecords(w io.Writer, res query.Result, loc *time.Location) {
	if len(res.Records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tENTITY\tSKU\tOLD\tNEW\tCHANGE\tKIND\tREASON")
	for _, r := range res.Records {
		fmt.Fprintf(tw, "%d\t%s\t%s (#%d)\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
			r.EntityName, r.EntityID,
			orDash(r.EntitySKU),
			record.FormatQuantity(r.OldQuantity),
			r.NewQuantity,
			record.FormatDelta(r.Delta),
			r.Kind.Label(),
			orDash(r.Reason),
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nPage %d of %d (%d records)\n", res.CurrentPage, res.TotalPages, res.TotalItems)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
