package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/livesync/internal/control"
	"github.com/vietddude/livesync/internal/core/domain"
	"github.com/vietddude/livesync/internal/core/pagination"
)

var (
	listArgs     map[string]string
	listPageSize int
	listPages    int
	listFollow   bool
)

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "Page through a query and print its records",
	Long: `Opens a live list over the configured backend, loads pages until the
query is exhausted (or --pages is reached) and prints the records. With
--follow it keeps applying live changes until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runList,
}

func init() {
	listCmd.Flags().StringToStringVar(&listArgs, "arg", nil, "query argument key=value (repeatable)")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 0, "records per page (default from config)")
	listCmd.Flags().IntVar(&listPages, "pages", 0, "maximum pages to load (0 = all)")
	listCmd.Flags().BoolVar(&listFollow, "follow", false, "keep applying live changes")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	query := cfg.List.Query
	if len(args) == 1 {
		query = args[0]
	}
	qargs := domain.Args(cfg.List.Args)
	if len(listArgs) > 0 {
		qargs = parseArgs(listArgs)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := control.NewApp(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer app.Stop(context.Background())

	list, err := app.OpenList(ctx, query, qargs, pagination.Options{PageSize: listPageSize})
	if err != nil {
		slog.Error("Failed to open list", "query", query, "error", err)
		os.Exit(1)
	}

	if err := loadPages(ctx, list, listPages); err != nil {
		slog.Error("Failed to load list", "query", query, "error", err)
		printSnapshot(os.Stdout, list.Snapshot())
		os.Exit(1)
	}
	printSnapshot(os.Stdout, list.Snapshot())

	if !listFollow {
		return
	}

	list.SetChangeCallback(func(s pagination.Snapshot) {
		slog.Info("List changed", "items", len(s.Items), "status", s.Status)
	})
	slog.Info("Following live changes, press Ctrl+C to stop", "query", query)
	<-ctx.Done()
	printSnapshot(os.Stdout, list.Snapshot())
}

// loadPages loads pages until the list is exhausted or maxPages (0 = no
// limit) are loaded. A page failure is returned with the items kept.
func loadPages(ctx context.Context, list *pagination.Controller, maxPages int) error {
	for pages := 1; ; pages++ {
		if err := list.Wait(ctx); err != nil {
			return err
		}

		snap := list.Snapshot()
		switch snap.Status {
		case pagination.StatusExhausted:
			return nil
		case pagination.StatusError:
			return snap.Err
		}

		if maxPages > 0 && pages >= maxPages {
			return nil
		}
		if !list.LoadMore(0) {
			return nil
		}
	}
}

func printSnapshot(out io.Writer, s pagination.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tSORT KEY\tFIELDS")
	for _, r := range s.Items {
		fields := string(r.Fields)
		if fields == "" {
			fields = "{}"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", r.ID, r.SortKey, fields)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "%d item(s), %s, %d page(s)\n", len(s.Items), pagination.StatusDescription(s.Status), s.PagesLoaded)
}

// parseArgs types flag values so they compare equal to JSON numbers and
// booleans in record fields.
func parseArgs(raw map[string]string) domain.Args {
	args := make(domain.Args, len(raw))
	for k, v := range raw {
		switch {
		case v == "true" || v == "false":
			args[k] = v == "true"
		default:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				args[k] = i
			} else if f, err := strconv.ParseFloat(v, 64); err == nil {
				args[k] = f
			} else {
				args[k] = v
			}
		}
	}
	return args
}
