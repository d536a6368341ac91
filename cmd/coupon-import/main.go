// Command coupon-import loads promotional coupon codes from bulk
// gzip-compressed code dumps. Vendors supply three files; a code is accepted
// only when it appears in at least two of them. Accepted codes are upserted
// as active percentage coupons with a bounded validity window.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/oakmart/storefront/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
	writeBatch    = 500
)

func main() {
	var (
		dataDir     string
		databaseURL string
		percentOff  int
		validDays   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing couponbaseN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&percentOff, "percent-off", 10, "percentage discount granted by imported codes")
	flag.IntVar(&validDays, "valid-days", 90, "number of days imported codes stay valid")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if percentOff < 1 || percentOff > 100 {
		slog.Error("percent-off must be between 1 and 100")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, percentOff, validDays); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, percentOff, validDays int) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("couponbase%d.gz", i+1))
		if _, err := os.Stat(files[i]); err != nil {
			return errors.Wrapf(err, "check file %s", files[i])
		}
	}

	// Pass 1: one bloom filter per file, built concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters := make([]*bloom.BloomFilter, numFiles)
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter, err := buildFilter(gctx, i, f)
			if err != nil {
				return err
			}
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: collect codes present in at least two files.
	slog.Info("pass 2: cross-checking files")

	validCodes, err := crossCheck(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "cross-check files")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, pool, validCodes, percentOff, validDays); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildFilter streams one dump and adds every well-formed code to a fresh
// bloom filter.
func buildFilter(ctx context.Context, idx int, path string) (*bloom.BloomFilter, error) {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	count, err := scanCodes(ctx, path, func(code string) {
		filter.AddString(code)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "build filter for file %d", idx+1)
	}

	slog.Info("pass 1 complete", slog.Int("file", idx+1), slog.Uint64("codes", count))
	return filter, nil
}

// crossCheck re-streams each file, testing codes against the other files'
// filters. Presence is tracked as a per-file bitmask so the popcount gives
// the number of distinct files a code appeared in.
func crossCheck(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	masks := make([]map[string]uint, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			seen := make(map[string]uint)
			count, err := scanCodes(gctx, f, func(code string) {
				for j, other := range filters {
					if j != i && other.TestString(code) {
						seen[code] |= 1 << uint(i)
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan file %d", i+1)
			}

			slog.Info("pass 2 complete",
				slog.Int("file", i+1),
				slog.Uint64("codes", count),
				slog.Int("candidates", len(seen)),
			)

			masks[i] = seen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

// scanCodes streams a gzip-compressed dump line by line, calling fn for each
// code within the accepted length range. Returns the number of accepted codes.
func scanCodes(ctx context.Context, path string, fn func(code string)) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var count uint64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		code := scanner.Text()
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		count++
		if count%progressEvery == 0 {
			slog.Info("scan progress", slog.String("file", filepath.Base(path)), slog.Uint64("codes", count))
		}
		fn(code)
	}
	if err := scanner.Err(); err != nil {
		return count, errors.Wrapf(err, "scan %s", path)
	}

	return count, nil
}

const upsertImportedCouponSQL = `
	INSERT INTO coupons (code, discount_type, discount_value, max_discount,
	                     min_order_amount, valid_from, valid_to, is_active)
	VALUES (UPPER($1), 'percentage', $2, NULL, 0, $3, $4, TRUE)
	ON CONFLICT (code) DO UPDATE
	SET discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
	    valid_from = EXCLUDED.valid_from, valid_to = EXCLUDED.valid_to,
	    is_active = TRUE`

// writeCoupons upserts all valid codes in pipelined batches.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string, percentOff, validDays int) error {
	slog.Info("writing coupons to database",
		slog.Int("count", len(codes)),
		slog.Int("percent_off", percentOff),
		slog.Int("valid_days", validDays),
	)

	var (
		value     = decimal.NewFromInt(int64(percentOff))
		validFrom = time.Now().UTC().Truncate(time.Hour)
		validTo   = validFrom.Add(time.Duration(validDays) * 24 * time.Hour)
		written   int
	)

	for _, chunk := range lo.Chunk(codes, writeBatch) {
		batch := &pgx.Batch{}
		for _, code := range chunk {
			batch.Queue(upsertImportedCouponSQL, code, value, validFrom, validTo)
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "upsert batch after %d coupons", written)
		}

		written += len(chunk)
		slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(codes)))
	}

	return nil
}
