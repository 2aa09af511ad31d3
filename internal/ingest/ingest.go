// Package ingest finds promo codes in large gzip-compressed code dumps.
//
// A code is accepted when it appears in at least MinFiles of the dumps.
// Pass 1 builds one bloom filter per file; pass 2 re-streams every file and
// keeps the codes that hit another file's filter. Both passes run one
// goroutine per file.
package ingest

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/munchify/internal/domain/promo"
)

// MaxFiles is the largest number of dumps a single run can compare.
const MaxFiles = bits.UintSize

// Options tunes a Scanner.
type Options struct {
	// Capacity is the expected number of codes per file.
	Capacity uint
	// FalsePositiveRate of the per-file bloom filters.
	FalsePositiveRate float64
	// MinLen and MaxLen bound the accepted code length.
	MinLen, MaxLen int
	// MinFiles is the number of files a code must appear in.
	MinFiles int
	// ProgressEvery logs progress after that many codes per file.
	ProgressEvery uint64
}

// DefaultOptions fit dumps of roughly a hundred million codes.
var DefaultOptions = Options{
	Capacity:          120_000_000,
	FalsePositiveRate: 0.001,
	MinLen:            8,
	MaxLen:            10,
	MinFiles:          2,
	ProgressEvery:     10_000_000,
}

// Scanner runs the two pass search over a set of files.
type Scanner struct {
	opts Options
}

// NewScanner creates a Scanner.
func NewScanner(opts Options) *Scanner {
	if opts.MinFiles < 2 {
		opts.MinFiles = 2
	}
	if opts.ProgressEvery == 0 {
		opts.ProgressEvery = DefaultOptions.ProgressEvery
	}
	return &Scanner{opts: opts}
}

func (s *Scanner) accept(code string) bool {
	return len(code) >= s.opts.MinLen && len(code) <= s.opts.MaxLen
}

// Scan returns the sorted codes that appear in at least MinFiles of files.
func (s *Scanner) Scan(ctx context.Context, files []string) ([]string, error) {
	if len(files) < s.opts.MinFiles {
		return nil, errors.Errorf("need at least %d files, got %d", s.opts.MinFiles, len(files))
	}
	if len(files) > MaxFiles {
		return nil, errors.Errorf("at most %d files are supported, got %d", MaxFiles, len(files))
	}
	lg := zctx.From(ctx)

	lg.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, err := s.buildFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	lg.Info("Pass 2: finding candidate codes")
	masks, err := s.findCandidates(ctx, files, filters)
	if err != nil {
		return nil, errors.Wrap(err, "find candidates")
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}
	var codes []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= s.opts.MinFiles {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *Scanner) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(s.opts.Capacity, s.opts.FalsePositiveRate)
			var count uint64
			if err := streamGzFile(ctx, path, func(code string) {
				if !s.accept(code) {
					return
				}
				filter.AddString(code)
				count++
				if count%s.opts.ProgressEvery == 0 {
					zctx.From(ctx).Info("Pass 1 progress", zap.Int("file", i+1), zap.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}
			zctx.From(ctx).Info("Pass 1 complete", zap.Int("file", i+1), zap.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findCandidates marks, per file, the codes that also test positive in
// another file's filter. The mask bit of the scanned file is set, so a code
// seen in k files collects k bits after the merge.
func (s *Scanner) findCandidates(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]map[string]uint, error) {
	results := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)
			var count uint64
			if err := streamGzFile(ctx, path, func(code string) {
				if !s.accept(code) {
					return
				}
				count++
				if count%s.opts.ProgressEvery == 0 {
					zctx.From(ctx).Info("Pass 2 progress", zap.Int("file", i+1), zap.Uint64("codes", count))
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= fileBit
						return
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", i+1)
			}
			zctx.From(ctx).Info("Pass 2 complete",
				zap.Int("file", i+1),
				zap.Uint64("total_codes", count),
				zap.Int("candidates", len(candidates)),
			)
			results[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// KnownRules assigns specific discounts to well-known codes. Every other
// accepted code gets DefaultRule.
var KnownRules = map[string]promo.Rule{
	"BIRTHDAY": {Kind: promo.KindFreeLowest, Description: "Birthday: free lowest item"},
	"BUYGETON": {Kind: promo.KindFreeLowest, MinItems: 2, Description: "Lowest item free (buy 2+)"},
	"FIFTYOFF": {Kind: promo.KindPercentage, Value: decimal.NewFromInt(50), Description: "50% off entire order"},
	"HAPPYHRS": {Kind: promo.KindPercentage, Value: decimal.NewFromInt(18), Description: "Happy Hours: 18% off"},
	"MUNCHIES": {Kind: promo.KindFixed, Value: decimal.NewFromInt(3), Description: "$3 off your order"},
}

// DefaultRule applies to accepted codes without a KnownRules entry.
var DefaultRule = promo.Rule{
	Kind:        promo.KindPercentage,
	Value:       decimal.NewFromInt(10),
	Description: "Valid promo code: 10% off",
}

// Rules turns accepted codes into promo rules.
func Rules(codes []string) []promo.Rule {
	rules := make([]promo.Rule, len(codes))
	for i, code := range codes {
		r, ok := KnownRules[code]
		if !ok {
			r = DefaultRule
		}
		r.Code = promo.NormalizeCode(code)
		rules[i] = r
	}
	return rules
}
