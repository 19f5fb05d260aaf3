// Command sharc is a thin inspection CLI over the storage engine, modeled
// on tinySQL's cmd/tinysql harness (flag-based subcommands, tabwriter
// column output) but scoped to what the core engine exposes directly:
// opening a file, listing tables, and dumping rows. It is not a SQL shell
// -- the SQL text parser is out of scope for this module.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/revred/sharc-core/internal/executor"
	"github.com/revred/sharc-core/sharc"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sharc: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("sharc", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sharc [OPTIONS] FILE COMMAND [ARGS]\n\ncommands:\n  tables            list tables in the schema catalog\n  scan TABLE        dump every row of TABLE\n")
		fs.PrintDefaults()
	}
	writable := fs.Bool("write", false, "open the database read-write, creating it if absent")
	verbose := fs.Bool("v", false, "log open/recovery events")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) < 2 {
		fs.Usage()
		return fmt.Errorf("missing FILE or COMMAND")
	}
	path, cmd, cmdArgs := rest[0], rest[1], rest[2:]

	db, err := sharc.Open(path, sharc.Options{Writable: *writable, Log: *verbose})
	if err != nil {
		return err
	}
	defer db.Close()

	switch cmd {
	case "tables":
		return runTables(db)
	case "scan":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("scan requires exactly one TABLE argument")
		}
		return runScan(db, cmdArgs[0])
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runTables(db *sharc.DB) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "TABLE")
	for _, name := range db.Tables() {
		fmt.Fprintln(w, name)
	}
	return nil
}

func runScan(db *sharc.DB, table string) error {
	rows, err := db.Reader().Execute(executor.Query{Table: table})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var cols []string
	for c := range rows[0] {
		cols = append(cols, c)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
	for _, r := range rows {
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, r[c].String())
		}
		fmt.Fprintln(w)
	}
	return nil
}
