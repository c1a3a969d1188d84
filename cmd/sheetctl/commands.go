package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/reportsheets/internal/config"
	"github.com/JonMunkholm/reportsheets/internal/core"
	"github.com/JonMunkholm/reportsheets/internal/facets"
	"github.com/JonMunkholm/reportsheets/internal/logging"
	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/sheet"
	"github.com/JonMunkholm/reportsheets/internal/store"
	"github.com/JonMunkholm/reportsheets/internal/validators"
)

// cli holds flags shared by every command.
type cli struct {
	stdout, stderr io.Writer
	logger         *slog.Logger

	logLevel  string
	logFormat string

	validatorsPath string
	outputPath     string
	pretty         bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "sheetctl",
		Short:         "Convert templates to spreadsheets and back",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.logger = logging.New(c.stderr, c.logLevel, c.logFormat)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&c.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&c.logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&c.validatorsPath, "validators", "", "JSON file with an array of validators")
	pf.StringVarP(&c.outputPath, "output", "o", "", "Output file path (default: stdout)")
	pf.BoolVar(&c.pretty, "pretty", false, "Pretty-print JSON output")

	root.AddCommand(
		c.exportCmd(),
		c.importCmd(),
		c.facetsCmd(),
		c.enrichCmd(),
		c.migrateCmd(),
		c.seedCmd(),
	)
	return root
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		recordsPath string
		guide       bool
		admin       bool
		author      string
	)
	cmd := &cobra.Command{
		Use:   "export <template.json>",
		Short: "Build the .xlsx workbook of a template",
		Long: `Builds the workbook of a template: an optional guide sheet, the data
sheet with one column per field and list validations for every field that
references a validator.

With --records the data sheet is prefilled with the given JSON array.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			vs, err := c.readValidators(tpl)
			if err != nil {
				return err
			}

			var records []schema.Record
			if recordsPath != "" {
				if records, err = readRecords(recordsPath); err != nil {
					return err
				}
			}

			listSheet := sheet.ListSheetProducer
			if admin {
				listSheet = sheet.ListSheetAdmin
			}
			data, err := sheet.ExportBytes(tpl, records, vs, sheet.ExportOptions{
				IncludeGuide: guide,
				ListSheet:    listSheet,
				Author:       author,
				Logger:       c.logger,
			})
			if err != nil {
				return err
			}

			out := c.outputPath
			if out == "" {
				out = core.WorkbookFileName(tpl, "")
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			fmt.Fprintf(c.stdout, "wrote %s (%d fields, %d records)\n", out, len(tpl.Fields), len(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&recordsPath, "records", "", "JSON file with records to prefill")
	cmd.Flags().BoolVar(&guide, "guide", true, "Include the guide sheet")
	cmd.Flags().BoolVar(&admin, "admin", false, "Use the admin option sheet name")
	cmd.Flags().StringVar(&author, "author", "", "Author shown on header notes")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var maxRows int
	cmd := &cobra.Command{
		Use:   "import <template.json> <workbook.xlsx>",
		Short: "Parse a filled-in workbook into JSON records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			vs, err := c.readValidators(tpl)
			if err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer f.Close()

			result, err := sheet.Import(f, tpl, vs, sheet.ImportOptions{MaxRows: maxRows, Logger: c.logger})
			if err != nil {
				var herr *sheet.HeaderError
				if errors.As(err, &herr) {
					for _, col := range herr.Columns {
						fmt.Fprintf(c.stderr, "%s %s: %s\n", col.Cell, col.Column, col.Message)
					}
				}
				return err
			}
			return c.writeJSON(result)
		},
	}
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "Reject workbooks with more data rows (0: no limit)")
	return cmd
}

func (c *cli) facetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "facets <template.json> <records.json>",
		Short: "Derive filter widgets from a sample of records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			records, err := readRecords(args[1])
			if err != nil {
				return err
			}
			registry, err := c.registry()
			if err != nil {
				return err
			}
			return c.writeJSON(facets.Derive(tpl.Fields, records, registry))
		},
	}
}

func (c *cli) enrichCmd() *cobra.Command {
	var loose bool
	cmd := &cobra.Command{
		Use:   "enrich <field> <value>...",
		Short: "Label field values with validator descriptions",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := c.registry()
			if err != nil {
				return err
			}
			field, values := args[0], args[1:]
			if loose {
				return c.writeJSON(registry.EnrichValuesLoose(field, values))
			}
			return c.writeJSON(registry.EnrichValues(field, values))
		},
	}
	cmd.Flags().BoolVar(&loose, "loose", false, "Fall back to structural matching")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolveDatabaseURL(databaseURL)
			if err != nil {
				return err
			}
			return store.Migrate(url, c.logger)
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL)")
	return cmd
}

func (c *cli) seedCmd() *cobra.Command {
	var (
		databaseURL string
		templates   []string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store templates and validators in the database",
		Long: `Upserts the validators from --validators and every --template file into
the database source. Existing rows with the same key are replaced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.validatorsPath == "" && len(templates) == 0 {
				return errors.New("nothing to seed: pass --validators or --template")
			}
			url, err := resolveDatabaseURL(databaseURL)
			if err != nil {
				return err
			}

			var (
				vs   []schema.Validator
				tpls []schema.Template
			)
			if c.validatorsPath != "" {
				if vs, err = readValidators(c.validatorsPath); err != nil {
					return err
				}
			}
			for _, path := range templates {
				tpl, err := readTemplate(path)
				if err != nil {
					return err
				}
				if tpl.ID == "" {
					return fmt.Errorf("%s: template has no id", path)
				}
				tpls = append(tpls, tpl)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := store.Connect(ctx, config.DatabaseConfig{URL: url, MaxConns: 2}, c.logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			st := store.New(pool, c.logger)
			for _, v := range vs {
				if err := st.SaveValidator(ctx, v); err != nil {
					return err
				}
			}
			for _, tpl := range tpls {
				if err := st.SaveTemplate(ctx, tpl); err != nil {
					return err
				}
			}
			fmt.Fprintf(c.stdout, "seeded %d validators, %d templates\n", len(vs), len(tpls))
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL)")
	cmd.Flags().StringArrayVar(&templates, "template", nil, "Template JSON file (repeatable)")
	return cmd
}

// resolveDatabaseURL prefers the flag, then DATABASE_URL or DB_URL from
// the environment or a .env file.
func resolveDatabaseURL(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	_ = godotenv.Load()
	for _, key := range []string{"DATABASE_URL", "DB_URL"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, nil
		}
	}
	return "", errors.New("no database URL: set --database-url or DATABASE_URL")
}

// readValidators loads --validators, if given, and layers the validators
// embedded in tpl on top.
func (c *cli) readValidators(tpl schema.Template) (schema.ValidatorSet, error) {
	var vs []schema.Validator
	if c.validatorsPath != "" {
		var err error
		if vs, err = readValidators(c.validatorsPath); err != nil {
			return nil, err
		}
	}
	return schema.Validators(append(append([]schema.Validator{}, tpl.Validators...), vs...)), nil
}

func (c *cli) registry() (*validators.Registry, error) {
	var vs []schema.Validator
	if c.validatorsPath != "" {
		var err error
		if vs, err = readValidators(c.validatorsPath); err != nil {
			return nil, err
		}
	}
	return validators.NewStaticRegistry(vs), nil
}

func (c *cli) writeJSON(v any) error {
	var (
		data []byte
		err  error
	)
	if c.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	data = append(data, '\n')

	if c.outputPath != "" {
		if err := os.WriteFile(c.outputPath, data, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	_, err = c.stdout.Write(data)
	return err
}

func readTemplate(path string) (schema.Template, error) {
	var tpl schema.Template
	if err := readJSON(path, &tpl); err != nil {
		return tpl, err
	}
	if err := tpl.Validate(); err != nil {
		return tpl, err
	}
	return tpl, nil
}

func readValidators(path string) ([]schema.Validator, error) {
	var vs []schema.Validator
	return vs, readJSON(path, &vs)
}

func readRecords(path string) ([]schema.Record, error) {
	var records []schema.Record
	return records, readJSON(path, &records)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
