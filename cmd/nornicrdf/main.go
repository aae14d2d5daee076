// Package main provides the NornicRDF CLI entry point.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/nornicrdf/pkg/audit"
	"github.com/orneryd/nornicrdf/pkg/config"
	"github.com/orneryd/nornicrdf/pkg/nornicrdf"
	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nornicrdf",
		Short: "NornicRDF - triple store with RDF lists and smushing",
		Long: `NornicRDF stores RDF triples in BadgerDB and edits them as structures.

Features:
  • RDF collections (rdf:first/rdf:rest) as editable lists
  • Reverse lookup from a value to the lists holding it
  • Smushing of subjects sharing an owl:InverseFunctionalProperty value
  • Per-graph read/write permissions
  • N-Triples import and export`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().Bool("in-memory", false, "Use a throwaway in-memory store")
	rootCmd.PersistentFlags().String("user", "", "Principal name when access control is enabled")
	rootCmd.PersistentFlags().String("password", "", "Principal password (or NORNICRDF_PASSWORD)")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "NornicRDF v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "import [file.nt]",
		Short: "Import N-Triples (\"-\" reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	})

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all triples as N-Triples",
		RunE:  runExport,
	}
	exportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCmd)

	smushCmd := &cobra.Command{
		Use:   "smush",
		Short: "Merge subjects sharing an inverse functional property value",
		RunE:  runSmush,
	}
	smushCmd.Flags().String("schema", "", "N-Triples file declaring owl:InverseFunctionalProperty")
	_ = smushCmd.MarkFlagRequired("schema")
	rootCmd.AddCommand(smushCmd)

	rootCmd.AddCommand(newListCmd())

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the security audit trail",
		RunE:  runAudit,
	}
	auditCmd.Flags().StringSlice("type", nil, "Event types (LOGIN, LOGIN_FAILED, ACCESS_DENIED)")
	auditCmd.Flags().String("principal", "", "Only events of this principal")
	auditCmd.Flags().Bool("failed", false, "Only failed events")
	auditCmd.Flags().Duration("since", 0, "Only events newer than this (e.g. 24h)")
	auditCmd.Flags().Int("limit", 0, "Maximum events to print")
	rootCmd.AddCommand(auditCmd)
	return rootCmd
}

func newListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Edit RDF lists",
		Long: `Edit RDF lists. Heads are IRIs or N-Triples terms (<iri>, _:label).
Values are N-Triples terms; anything else is read as a plain literal.`,
	}
	listCmd.AddCommand(&cobra.Command{
		Use:   "create [head]",
		Short: "Create an empty list",
		Args:  cobra.ExactArgs(1),
		RunE:  runListCreate,
	})
	listCmd.AddCommand(&cobra.Command{
		Use:   "show [head]",
		Short: "Print the values of a list",
		Args:  cobra.ExactArgs(1),
		RunE:  runListShow,
	})
	addCmd := &cobra.Command{
		Use:   "add [head] [value]",
		Short: "Insert a value (appends unless --index is set)",
		Args:  cobra.ExactArgs(2),
		RunE:  runListAdd,
	}
	addCmd.Flags().Int("index", -1, "Insert position")
	listCmd.AddCommand(addCmd)
	listCmd.AddCommand(&cobra.Command{
		Use:   "remove [head] [index]",
		Short: "Remove the value at index",
		Args:  cobra.ExactArgs(2),
		RunE:  runListRemove,
	})
	listCmd.AddCommand(&cobra.Command{
		Use:   "find [value]",
		Short: "Print the heads of every list containing value",
		Args:  cobra.ExactArgs(1),
		RunE:  runListFind,
	})
	return listCmd
}

// openDB loads the config, applies flag overrides and opens the store.
func openDB(cmd *cobra.Command) (*nornicrdf.DB, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if inMemory, _ := cmd.Flags().GetBool("in-memory"); inMemory {
		cfg.Storage.InMemory = true
	}

	log.SetPrefix(cfg.Logging.Prefix)
	log.SetOutput(cmd.ErrOrStderr())

	user, _ := cmd.Flags().GetString("user")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("NORNICRDF_PASSWORD")
	}
	if cfg.Access.Enabled {
		return nornicrdf.OpenWithCredentials(cfg, user, password)
	}
	return nornicrdf.Open(cfg)
}

func runImport(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	added, err := db.Import(r)
	if err != nil {
		return fmt.Errorf("import failed after %d triples: %w", added, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d triples\n", added)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return db.Export(w)
}

func runSmush(cmd *cobra.Command, args []string) error {
	schemaPath, _ := cmd.Flags().GetString("schema")
	f, err := os.Open(schemaPath)
	if err != nil {
		return err
	}
	defer f.Close()

	triples, err := rdf.NewDecoder(f).ReadAll()
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	schema, err := storage.NewMemoryGraphFrom(triples)
	if err != nil {
		return err
	}

	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.Smush(schema)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "properties: %d, classes merged: %d, triples rewritten: %d\n",
		len(result.InverseFunctionalProperties), result.Merged, result.Rewritten)
	return nil
}

func runListCreate(cmd *cobra.Command, args []string) error {
	head, err := parseHead(args[0])
	if err != nil {
		return err
	}
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.CreateList(head); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", head)
	return nil
}

func runListShow(cmd *cobra.Command, args []string) error {
	head, err := parseHead(args[0])
	if err != nil {
		return err
	}
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	values, err := db.List(head).Values()
	if err != nil {
		return err
	}
	for i, v := range values {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, v)
	}
	return nil
}

func runListAdd(cmd *cobra.Command, args []string) error {
	index, _ := cmd.Flags().GetInt("index")
	head, err := parseHead(args[0])
	if err != nil {
		return err
	}
	value, err := parseValue(args[1])
	if err != nil {
		return err
	}
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	list := db.List(head)
	if index < 0 {
		return list.Append(value)
	}
	return list.Add(index, value)
}

func runListRemove(cmd *cobra.Command, args []string) error {
	head, err := parseHead(args[0])
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[1], err)
	}
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := db.List(head).Remove(index)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", removed)
	return nil
}

func runListFind(cmd *cobra.Command, args []string) error {
	value, err := parseValue(args[0])
	if err != nil {
		return err
	}
	db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	lists, found, err := db.FindLists(value)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no list contains %s", value)
	}
	for _, l := range lists {
		fmt.Fprintln(cmd.OutOrStdout(), l.Head())
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	var q audit.Query
	types, _ := cmd.Flags().GetStringSlice("type")
	for _, t := range types {
		q.EventTypes = append(q.EventTypes, audit.EventType(strings.ToUpper(t)))
	}
	q.Principal, _ = cmd.Flags().GetString("principal")
	if failed, _ := cmd.Flags().GetBool("failed"); failed {
		success := false
		q.Success = &success
	}
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		q.StartTime = time.Now().Add(-since)
	}
	q.Limit, _ = cmd.Flags().GetInt("limit")

	result, err := audit.NewReader(cfg.Audit.LogPath).Query(q)
	if err != nil {
		return err
	}
	for _, e := range result.Events {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Type, e.Principal, e.Graph, e.Reason)
	}
	if result.HasMore {
		fmt.Fprintf(cmd.OutOrStdout(), "... %d more\n", result.TotalCount-len(result.Events))
	}
	return nil
}

func isNTriplesTerm(s string) bool {
	return strings.HasPrefix(s, "<") || strings.HasPrefix(s, "_:") || strings.HasPrefix(s, `"`)
}

func parseHead(s string) (rdf.Subject, error) {
	if isNTriplesTerm(s) {
		return rdf.ParseSubject(s)
	}
	return rdf.IRI(s), nil
}

func parseValue(s string) (rdf.Term, error) {
	if isNTriplesTerm(s) {
		return rdf.ParseTerm(s)
	}
	return rdf.NewLiteral(s), nil
}
