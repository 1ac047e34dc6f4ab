package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/backup/cloud"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/log"
	"spendwise/internal/services"
	"spendwise/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export", "import", "cloud-backup", "cloud-restore", "cloud-status":
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "spendwise backup tool")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  spendwise-backup <command> -owner <id> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  export         Write the owner's ledger to a backup file")
	fmt.Fprintln(w, "  import         Merge a backup file into the owner's ledger")
	fmt.Fprintln(w, "  cloud-backup   Upload the owner's ledger to the cloud bucket")
	fmt.Fprintln(w, "  cloud-restore  Merge the owner's cloud backup into the ledger")
	fmt.Fprintln(w, "  cloud-status   Show whether a cloud backup exists")
	fmt.Fprintln(w, "\nRun 'spendwise-backup <command> -h' for more information on a command.")
}

type options struct {
	owner           string
	out             string
	in              string
	allowDuplicates bool
}

func parseFlags(command string, args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.StringVar(&opts.owner, "owner", "", "owner id whose ledger is used (required)")
	switch command {
	case "export":
		fs.StringVar(&opts.out, "out", "", "output file, defaults to the generated backup name")
	case "import":
		fs.StringVar(&opts.in, "in", "", "backup file to import (required)")
		fs.BoolVar(&opts.allowDuplicates, "allow-duplicates", false, "insert records even if an identical one exists")
	case "cloud-restore":
		fs.BoolVar(&opts.allowDuplicates, "allow-duplicates", false, "insert records even if an identical one exists")
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.owner = strings.TrimSpace(opts.owner)
	if opts.owner == "" {
		return opts, fmt.Errorf("-owner is required")
	}
	if command == "import" && opts.in == "" {
		return opts, fmt.Errorf("-in is required")
	}
	return opts, nil
}

func run(command string, args []string, stdout io.Writer) error {
	opts, err := parseFlags(command, args)
	if err != nil {
		return err
	}

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentBackup)
	loc := cli.Location(logger, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stores := cli.InitBackend(ctx, logger, cfg)
	defer stores.Close()

	manager, closeCloud, err := cloudManager(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCloud()

	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, imports will not be announced", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	svc, closeQueue := newBackupService(stores.Ledger, opts.owner, manager, publisher, loc, logger)
	defer closeQueue()

	return dispatch(ctx, command, svc, opts, stdout)
}

func cloudManager(ctx context.Context, cfg *config.Config, logger *log.Logger) (*cloud.Manager, func(), error) {
	if !cfg.CloudEnabled() {
		return nil, func() {}, nil
	}
	gcs, err := cloud.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize cloud backup: %w", err)
	}
	return cloud.NewManager(gcs, logger), func() { _ = gcs.Close() }, nil
}

func newBackupService(store storage.TransactionStore, owner string, manager *cloud.Manager, publisher services.ChangePublisher, loc *time.Location, logger *log.Logger) (*services.BackupService, func()) {
	queue := services.NewWriteQueue(logger)
	ledger := services.NewTransactionService(store, services.StaticOwner(owner), services.TransactionServiceOptions{
		Queue:     queue,
		Publisher: publisher,
		Location:  loc,
		Logger:    logger,
	})
	return services.NewBackupService(ledger, manager, logger), queue.Close
}

func dispatch(ctx context.Context, command string, svc *services.BackupService, opts options, stdout io.Writer) error {
	switch command {
	case "export":
		data, filename, err := svc.Export(ctx)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		out := opts.out
		if out == "" {
			out = filename
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(out, data, 0o600); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
		fmt.Fprintf(stdout, "Backup written to %s (%d bytes)\n", out, len(data))

	case "import":
		data, err := os.ReadFile(opts.in)
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}
		result, err := svc.Import(ctx, data, services.ImportOptions{AllowDuplicates: opts.allowDuplicates})
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		return printJSON(stdout, result)

	case "cloud-backup":
		n, err := svc.CloudBackup(ctx)
		if err != nil {
			return fmt.Errorf("cloud backup: %w", err)
		}
		fmt.Fprintf(stdout, "Uploaded %d transactions\n", n)

	case "cloud-restore":
		result, err := svc.CloudRestore(ctx, services.ImportOptions{AllowDuplicates: opts.allowDuplicates})
		if err != nil {
			return fmt.Errorf("cloud restore: %w", err)
		}
		return printJSON(stdout, result)

	case "cloud-status":
		status, err := svc.CloudStatus(ctx)
		if err != nil {
			return fmt.Errorf("cloud status: %w", err)
		}
		return printJSON(stdout, status)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
