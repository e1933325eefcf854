package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tofu-suite/tofu/internal/adapters/backup"
	"github.com/tofu-suite/tofu/internal/adapters/export"
)

// withApp runs fn against a bootstrapped store.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

// NewReportCommand creates the report numbering command
func NewReportCommand() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Report numbering commands",
	}

	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Allocate the next daily report number",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			number, err := a.store.NextReportNumber(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), number)
			return nil
		}),
	}
	nextCmd.Flags().String("prefix", "CALC", "Report number prefix")

	reportCmd.AddCommand(nextCmd)
	return reportCmd
}

// NewFoldersCommand creates the note folder commands
func NewFoldersCommand() *cobra.Command {
	foldersCmd := &cobra.Command{
		Use:   "folders",
		Short: "Note folder commands",
	}

	foldersCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List note folders",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			for _, name := range a.store.GetFolders() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}),
	})

	foldersCmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			return a.store.AddFolder(cmd.Context(), args[0])
		}),
	})

	foldersCmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a folder; its notes move to the uncategorized folder",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			return a.store.DeleteFolder(cmd.Context(), args[0])
		}),
	})

	foldersCmd.AddCommand(&cobra.Command{
		Use:   "mv <old> <new>",
		Short: "Rename a folder",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			return a.store.RenameFolder(cmd.Context(), args[0], args[1])
		}),
	})

	return foldersCmd
}

// NewEquipmentCommand creates the equipment commands
func NewEquipmentCommand() *cobra.Command {
	equipmentCmd := &cobra.Command{
		Use:   "equipment",
		Short: "Process equipment commands",
	}

	equipmentCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List equipment",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCODE\tNAME\tP (MPa)\tT (°C)")
			for _, eq := range a.store.GetEquipmentData() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\n",
					eq.EquipmentID, eq.UniqueCode, eq.Str("name"), float64(eq.DesignPressure), float64(eq.DesignTemperature))
			}
			return w.Flush()
		}),
	})

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace equipment",
		Long:  "Add equipment from --set key=value pairs. An existing equipment_id replaces that item.",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			pairs, _ := cmd.Flags().GetStringArray("set")
			fields, err := parseFields(pairs)
			if err != nil {
				return err
			}
			eq, err := a.store.AddEquipment(cmd.Context(), fields)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), eq.EquipmentID)
			return nil
		}),
	}
	addCmd.Flags().StringArray("set", nil, "Field as key=value (repeatable)")

	equipmentCmd.AddCommand(addCmd)

	equipmentCmd.AddCommand(&cobra.Command{
		Use:   "names [cn en]",
		Short: "List the equipment name translations, or set one",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 args, received %d", len(args))
			}
			return nil
		},
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if len(args) == 2 {
				return a.store.AddEquipmentNameMapping(cmd.Context(), args[0], args[1])
			}
			mapping := a.store.GetEquipmentNameMapping()
			for _, cn := range sortedKeys(mapping) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", cn, mapping[cn])
			}
			return nil
		}),
	})
	return equipmentCmd
}

// NewShowCommand creates the show command
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [section]",
		Short: "Print a section, or the whole document, as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if len(args) == 0 {
				snapshot, err := a.store.Snapshot()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(snapshot, '\n'))
				return err
			}

			value, ok, err := a.store.Section(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("unknown section %q", args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "    ")
			return enc.Encode(value)
		}),
	}
}

// NewExportCommand creates the XLSX export command
func NewExportCommand() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export list sections to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			output, _ := cmd.Flags().GetString("output")
			names, _ := cmd.Flags().GetStringSlice("sheets")

			var sheets []export.Sheet
			for _, name := range names {
				sheet, ok := export.SheetByName(name)
				if !ok {
					return fmt.Errorf("unknown sheet %q", name)
				}
				sheets = append(sheets, sheet)
			}

			snapshot, err := a.store.Snapshot()
			if err != nil {
				return err
			}
			data, err := export.Workbook(snapshot, sheets...)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
			return nil
		}),
	}
	exportCmd.Flags().StringP("output", "o", "tofu_data.xlsx", "Output file")
	exportCmd.Flags().StringSlice("sheets", nil, "Sheets to export (default all)")
	return exportCmd
}

// NewBackupCommand creates the backup commands
func NewBackupCommand() *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Document backup commands",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Store a copy of the current document",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			backups, err := a.backups(cmd.Context())
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = backup.NewName(time.Now())
			} else if !strings.HasSuffix(name, backup.Extension) {
				name += backup.Extension
			}

			snapshot, err := a.store.Snapshot()
			if err != nil {
				return err
			}
			info, err := backups.Put(cmd.Context(), name, snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written: %s (%d bytes)\n", info.Location, info.Size)
			return nil
		}),
	}
	createCmd.Flags().String("name", "", "Backup name (default timestamped)")
	backupCmd.AddCommand(createCmd)

	backupCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored backups",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			backups, err := a.backups(cmd.Context())
			if err != nil {
				return err
			}
			infos, err := backups.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tCREATED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%s\n", info.Name, info.Size, info.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		}),
	})

	return backupCmd
}

// parseFields turns key=value pairs into a field map. Values that parse as
// JSON (numbers, booleans, arrays) keep their type; anything else is a string.
func parseFields(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, want key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			fields[key] = decoded
		} else {
			fields[key] = value
		}
	}
	return fields, nil
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
