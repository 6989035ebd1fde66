package main

import (
	"context"
	"encoding/csv"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"

	"github.com/anecshop/marketplace/internal/repository"
)

// payout-export writes all processed payouts as a gzipped CSV for the
// finance team's reconciliation pipeline.
func main() {
	var (
		databaseURL string
		outFile     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&outFile, "out", "payouts.csv.gz", "output file path")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, outFile); err != nil {
		slog.Error("payout export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("payout export completed", slog.String("out", outFile))
}

func run(ctx context.Context, databaseURL, outFile string) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	records, err := repository.NewPayoutRepository(pool).ListProcessed(ctx)
	if err != nil {
		return errors.Wrap(err, "list processed payouts")
	}

	slog.Info("exporting payouts", slog.Int("count", len(records)))

	f, err := os.Create(outFile)
	if err != nil {
		return errors.Wrap(err, "create output file")
	}
	defer func() { _ = f.Close() }()

	gz := pgzip.NewWriter(f)
	w := csv.NewWriter(gz)

	header := []string{
		"payout_id", "order_number", "shop_id",
		"gross", "commission_fee", "processing_fee", "withholding_tax", "net",
		"reference_number", "processed_at",
	}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}

	for _, rec := range records {
		processedAt := ""
		if rec.ProcessedAt != nil {
			processedAt = rec.ProcessedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			rec.ID, rec.OrderNumber, rec.ShopID,
			rec.Gross.StringFixed(2),
			rec.CommissionFee.StringFixed(2),
			rec.ProcessingFee.StringFixed(2),
			rec.WithholdingTax.StringFixed(2),
			rec.Net.StringFixed(2),
			rec.ReferenceNumber, processedAt,
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "write row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flush csv")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip stream")
	}
	return f.Close()
}
