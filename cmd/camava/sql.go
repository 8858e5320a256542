package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brensch/camava/internal/db"
	"github.com/spf13/cobra"
)

type sqlFlags struct {
	file string
	csv  bool
	args []string
	rw   bool
}

func newSQLCmd(a *app) *cobra.Command {
	f := &sqlFlags{}
	cmd := &cobra.Command{
		Use:   "sql [query]",
		Short: "Run SQL against the watch database",
		Example: `  camava sql "SELECT facility_id, count(*) FROM lookup_log GROUP BY 1"
  camava sql --arg 2 "SELECT * FROM campsite_availability WHERE facility_id = ?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			query, err := readQuery(query, f.file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			open := db.OpenReadOnly
			if f.rw {
				open = db.Open
			}
			store, err := open(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			qargs := make([]any, len(f.args))
			for i, v := range f.args {
				qargs[i] = v
			}
			w := cmd.OutOrStdout()
			if looksLikeSelect(query) {
				return runSelect(w, store.DB, query, qargs, f.csv)
			}
			res, err := store.DB.ExecContext(cmd.Context(), query, qargs...)
			if err != nil {
				return fmt.Errorf("exec failed: %w", err)
			}
			n, _ := res.RowsAffected()
			_, err = fmt.Fprintf(w, "OK (%d rows affected)\n", n)
			return err
		},
	}
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "SQL file to execute")
	cmd.Flags().BoolVar(&f.csv, "csv", false, "Output results as CSV")
	cmd.Flags().StringArrayVar(&f.args, "arg", nil, "Query argument (repeatable)")
	cmd.Flags().BoolVar(&f.rw, "rw", false, "Open DB read-write (default is read-only)")
	return cmd
}

// readQuery picks the SQL from the argument, then the file, then piped stdin.
func readQuery(query, file string, stdin io.Reader) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" && file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		query = strings.TrimSpace(string(b))
	}
	if query == "" && stdin != nil {
		if f, ok := stdin.(*os.File); !ok || !isTerminal(f) {
			b, err := io.ReadAll(stdin)
			if err != nil {
				return "", fmt.Errorf("stdin: %w", err)
			}
			query = strings.TrimSpace(string(b))
		}
	}
	if query == "" {
		return "", errors.New("no SQL provided; pass a query, use --file, or pipe to stdin")
	}
	return query, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func looksLikeSelect(q string) bool {
	s := strings.TrimSpace(strings.ToLower(q))
	return strings.HasPrefix(s, "select") || strings.HasPrefix(s, "with ")
}

func runSelect(w io.Writer, dbx *sql.DB, q string, args []any, csv bool) error {
	rows, err := dbx.Query(q, args...)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	sep := " | "
	if csv {
		sep = ","
	}
	fmt.Fprintln(w, strings.Join(cols, sep))
	if !csv {
		fmt.Fprintln(w, strings.Repeat("-", len(strings.Join(cols, "-+-"))))
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		out := make([]string, len(cols))
		for i, v := range vals {
			out[i] = fmtVal(v)
		}
		fmt.Fprintln(w, strings.Join(out, sep))
	}
	return rows.Err()
}

func fmtVal(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
