package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arrowcast/arrowcast"
	"github.com/arrowcast/arrowcast/pkg/compression"
	"github.com/arrowcast/arrowcast/pkg/json"
	"github.com/arrowcast/arrowcast/pkg/logger"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var logLevel string

	root := &cobra.Command{
		Use:   "arrowcast",
		Short: "arrowcast - row to Arrow columnar conversion",
		Long: `arrowcast converts row-oriented JSON data to Arrow columnar files and back.
Schemas can be traced from the data or supplied explicitly.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Level: logLevel, OutputPaths: []string{"stderr"}})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("arrowcast v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(schemaCommand())
	root.AddCommand(convertCommand())
	root.AddCommand(dumpCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func schemaCommand() *cobra.Command {
	var (
		input  string
		output string
		opts   schema.TraceOptions
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Trace a schema from a JSON array of records",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readRows(input)
			if err != nil {
				return err
			}
			fields, err := arrowcast.TraceSchema(rows, opts)
			if err != nil {
				return err
			}
			logger.Info("schema traced",
				zap.Int("rows", len(rows)),
				zap.Int("fields", len(fields)))
			out, err := json.MarshalIndent(fields, "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(output, append(out, '\n'))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input JSON file (defaults to stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to stdout)")
	cmd.Flags().BoolVar(&opts.AllowNullFields, "allow-null-fields", false, "allow fields that were only ever null")
	cmd.Flags().BoolVar(&opts.MergeUnknownFields, "merge-unknown", false, "merge fields missing from some records as nullable")
	cmd.Flags().BoolVar(&opts.CoerceNumbers, "coerce-numbers", false, "widen conflicting numeric types instead of failing")
	return cmd
}

func convertCommand() *cobra.Command {
	var (
		input      string
		output     string
		schemaPath string
		compress   string
		opts       schema.TraceOptions
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a JSON array of records to an Arrow IPC file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readRows(input)
			if err != nil {
				return err
			}
			var fields []schema.Field
			if schemaPath != "" {
				data, err := os.ReadFile(schemaPath)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &fields); err != nil {
					return err
				}
			} else {
				if fields, err = arrowcast.TraceSchema(rows, opts); err != nil {
					return err
				}
			}

			rec, err := arrowcast.ToRecord(rows, fields)
			if err != nil {
				return err
			}
			defer rec.Release()

			var buf bytes.Buffer
			w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
			if err := w.Write(rec); err != nil {
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}

			alg, err := compression.ParseAlgorithm(compress)
			if err != nil {
				return err
			}
			comp, err := compression.New(alg)
			if err != nil {
				return err
			}
			out, err := comp.Compress(buf.Bytes())
			if err != nil {
				return err
			}
			logger.Info("converted",
				zap.Int("rows", len(rows)),
				zap.Int("fields", len(fields)),
				zap.String("compression", string(alg)),
				zap.Int("bytes", len(out)))
			return writeOutput(output, out)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input JSON file (defaults to stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to stdout)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema JSON file (traced from the data when omitted)")
	cmd.Flags().StringVar(&compress, "compress", "none", "compression for the output file (none, gzip, snappy, s2, lz4, zstd)")
	cmd.Flags().BoolVar(&opts.AllowNullFields, "allow-null-fields", false, "allow fields that were only ever null")
	cmd.Flags().BoolVar(&opts.MergeUnknownFields, "merge-unknown", false, "merge fields missing from some records as nullable")
	cmd.Flags().BoolVar(&opts.CoerceNumbers, "coerce-numbers", false, "widen conflicting numeric types instead of failing")
	return cmd
}

func dumpCommand() *cobra.Command {
	var (
		input    string
		output   string
		compress string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump an Arrow IPC file as a JSON array of records",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(input)
			if err != nil {
				return err
			}
			alg, err := compression.ParseAlgorithm(compress)
			if err != nil {
				return err
			}
			comp, err := compression.New(alg)
			if err != nil {
				return err
			}
			if data, err = comp.Decompress(data); err != nil {
				return err
			}

			r, err := ipc.NewReader(bytes.NewReader(data))
			if err != nil {
				return err
			}
			defer r.Release()

			var rows []map[string]any
			for r.Next() {
				if err := arrowcast.FromRecord(r.Record(), &rows); err != nil {
					return err
				}
				logger.Debug("record decoded",
					zap.Int64("rows", r.Record().NumRows()),
					zap.Int64("columns", r.Record().NumCols()))
			}
			if err := r.Err(); err != nil && err != io.EOF {
				return err
			}
			out, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(output, append(out, '\n'))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input Arrow IPC file (defaults to stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output JSON file (defaults to stdout)")
	cmd.Flags().StringVar(&compress, "compress", "none", "compression of the input file (none, gzip, snappy, s2, lz4, zstd)")
	return cmd
}

func readRows(path string) ([]map[string]any, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
