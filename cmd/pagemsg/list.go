package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pagemsg/internal/domain"
	"pagemsg/internal/slots"
)

func newListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				return writeRecords(cmd.OutOrStdout(), app.manager.ListAll(), output)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func writeRecords(out io.Writer, records map[string]domain.Record, output string) error {
	switch output {
	case "json":
		raw, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(raw))
		return err
	case "yaml":
		raw, err := yaml.Marshal(records)
		if err != nil {
			return err
		}
		_, err = out.Write(raw)
		return err
	case "table", "":
		return writeRecordTable(out, records)
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
	}
}

func writeRecordTable(out io.Writer, records map[string]domain.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No recordings.")
		return err
	}

	ids := slices.Collect(maps.Keys(records))
	slots.SortIDs(ids)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tTYPE\tDURATION\tFORMAT\tFLAGS\tTIMESTAMP\tFILE")
	for _, id := range ids {
		r := records[id]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			id, r.MessageType, formatDuration(r.DurationSeconds), r.AudioFormat, recordFlags(r), r.Timestamp, r.Name)
	}
	return w.Flush()
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	return fmt.Sprintf("%.2fs", *seconds)
}

func recordFlags(r domain.Record) string {
	switch {
	case r.IsDefault:
		return "default"
	case r.ReadOnly:
		return "locked"
	default:
		return "-"
	}
}
