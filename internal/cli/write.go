package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/livesync/internal/control"
	"github.com/vietddude/livesync/internal/core/domain"
)

var putSortKey int64

var putCmd = &cobra.Command{
	Use:   "put <query> <id> [fields-json]",
	Short: "Insert or replace a record and publish the change",
	Args:  cobra.RangeArgs(2, 3),
	Run:   runPut,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <query> <id>",
	Short: "Delete a record and publish the change",
	Args:  cobra.ExactArgs(2),
	Run:   runDelete,
}

func init() {
	putCmd.Flags().Int64Var(&putSortKey, "sort-key", 0, "server order key (default now in ms)")
	rootCmd.AddCommand(putCmd, deleteCmd)
}

func openWriterApp(cmd *cobra.Command) (*control.App, context.Context) {
	cfg := loadConfig(cmd)
	ctx := context.Background()

	app, err := control.NewApp(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize app", "error", err)
		os.Exit(1)
	}
	return app, ctx
}

func runPut(cmd *cobra.Command, args []string) {
	rec := domain.Record{ID: args[1], SortKey: putSortKey}
	if len(args) == 3 {
		if !json.Valid([]byte(args[2])) {
			fmt.Printf("Invalid fields JSON: %s\n", args[2])
			os.Exit(1)
		}
		rec.Fields = json.RawMessage(args[2])
	}

	app, ctx := openWriterApp(cmd)
	defer app.Stop(ctx)

	saved, err := app.Writer().Upsert(ctx, args[0], rec)
	if err != nil {
		slog.Error("Failed to write record", "query", args[0], "id", rec.ID, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Saved %s/%s (sort key %d)\n", args[0], saved.ID, saved.SortKey)
}

func runDelete(cmd *cobra.Command, args []string) {
	app, ctx := openWriterApp(cmd)
	defer app.Stop(ctx)

	if err := app.Writer().Delete(ctx, args[0], args[1]); err != nil {
		slog.Error("Failed to delete record", "query", args[0], "id", args[1], "error", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %s/%s\n", args[0], args[1])
}
