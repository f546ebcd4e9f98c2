package leakage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"leakage-dashboard/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

// Loader reads datasets and memoises them per absolute path for the life of
// the process. The zero value is not usable; call NewLoader.
type Loader struct {
	mu      sync.Mutex
	tables  map[string]*Table
	workers int
}

func NewLoader(workers int) *Loader {
	if workers <= 0 {
		workers = maxWorkers
	}
	return &Loader{
		tables:  make(map[string]*Table),
		workers: workers,
	}
}

var defaultLoader = NewLoader(maxWorkers)

// LoadDataset loads path through the process-wide loader.
func LoadDataset(ctx context.Context, path string) (*Table, error) {
	return defaultLoader.Load(ctx, path)
}

// Load returns the cached table for path, reading it on first use. Failed
// loads are not cached.
func (l *Loader) Load(ctx context.Context, path string) (*Table, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, &DataLoadError{Path: path, Reason: "resolve path", Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.tables[key]; ok {
		return t, nil
	}

	t, err := l.read(ctx, path)
	if err != nil {
		return nil, err
	}
	l.tables[key] = t
	return t, nil
}

func (l *Loader) read(ctx context.Context, path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &DataLoadError{Path: path, Reason: "open file", Err: err}
	}
	defer file.Close()

	return l.parse(ctx, path, file)
}

func (l *Loader) parse(ctx context.Context, path string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &DataLoadError{Path: path, Reason: "empty file"}
	}
	if err != nil {
		return nil, &DataLoadError{Path: path, Line: 1, Reason: "read header", Err: err}
	}

	index, err := headerIndex(header)
	if err != nil {
		return nil, &DataLoadError{Path: path, Line: 1, Reason: err.Error()}
	}

	records, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &DataLoadError{Path: path, Line: perr.Line, Reason: "malformed row", Err: perr.Err}
		}
		return nil, &DataLoadError{Path: path, Reason: "read rows", Err: err}
	}
	if len(records) == 0 {
		return nil, &DataLoadError{Path: path, Reason: "no records"}
	}

	rows := make([]models.Transaction, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				tx, err := parseRecord(records[i], index)
				if err != nil {
					// header is line 1
					return &DataLoadError{Path: path, Line: i + 2, Reason: err.Error()}
				}
				rows[i] = tx
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var derr *DataLoadError
		if errors.As(err, &derr) {
			return nil, derr
		}
		return nil, &DataLoadError{Path: path, Reason: "parse rows", Err: err}
	}

	return &Table{rows: rows}, nil
}

func headerIndex(header []string) ([numColumns]int, error) {
	var index [numColumns]int
	for i := range index {
		index[i] = -1
	}
	for pos, name := range header {
		// a UTF-8 BOM survives on the first header cell when the file was
		// written by a spreadsheet
		name = strings.TrimPrefix(name, "\ufeff")
		c, err := ParseColumn(name)
		if err != nil {
			continue
		}
		if index[c] < 0 {
			index[c] = pos
		}
	}

	var missing []string
	for c, pos := range index {
		if pos < 0 {
			missing = append(missing, Column(c).String())
		}
	}
	if len(missing) > 0 {
		return index, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func parseRecord(record []string, index [numColumns]int) (models.Transaction, error) {
	var tx models.Transaction
	p := recordParser{record: record, index: index}

	tx.OrderID = p.ident(OrderID)
	tx.CustomerID = p.ident(CustomerID)
	tx.ProductID = p.ident(ProductID)
	tx.QuantitySold = p.count(QuantitySold)
	tx.Revenue = p.amount(Revenue)
	tx.Cost = p.amount(Cost)
	tx.ProfitMarginPercent = p.decimal(ProfitMarginPercent)
	tx.DiscountPercent = p.percent(DiscountPercent)
	tx.DiscountAmount = p.amount(DiscountAmount)
	tx.RefundAmount = p.amount(RefundAmount)
	tx.InventoryLevel = p.count(InventoryLevel)
	tx.ReorderLevel = p.count(ReorderLevel)
	tx.HoldingCost = p.amount(HoldingCost)
	tx.SupplierDelayDays = p.count(SupplierDelayDays)
	tx.PaymentDelayDays = p.count(PaymentDelayDays)
	tx.OutstandingAmount = p.amount(OutstandingAmount)

	return tx, p.err
}

// recordParser keeps the first error so parseRecord reads straight through.
type recordParser struct {
	record []string
	index  [numColumns]int
	err    error
}

func (p *recordParser) field(c Column) (string, bool) {
	if p.err != nil {
		return "", false
	}
	pos := p.index[c]
	if pos >= len(p.record) {
		p.err = fmt.Errorf("%s: missing value", c)
		return "", false
	}
	v := strings.TrimSpace(p.record[pos])
	if v == "" {
		p.err = fmt.Errorf("%s: missing value", c)
		return "", false
	}
	return v, true
}

func (p *recordParser) ident(c Column) string {
	v, _ := p.field(c)
	return v
}

func (p *recordParser) decimal(c Column) float64 {
	v, ok := p.field(c)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.err = fmt.Errorf("%s: invalid number %q", c, v)
		return 0
	}
	return f
}

func (p *recordParser) amount(c Column) float64 {
	f := p.decimal(c)
	if p.err == nil && f < 0 {
		p.err = fmt.Errorf("%s: must not be negative, got %g", c, f)
	}
	return f
}

func (p *recordParser) percent(c Column) float64 {
	f := p.amount(c)
	if p.err == nil && f > 100 {
		p.err = fmt.Errorf("%s: must be at most 100, got %g", c, f)
	}
	return f
}

// MaxCount caps integer columns so that rule arithmetic cannot overflow.
const MaxCount = math.MaxInt32

// count accepts integral values written as floats, e.g. "12.0".
func (p *recordParser) count(c Column) int {
	v, ok := p.field(c)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		p.err = fmt.Errorf("%s: invalid integer %q", c, v)
		return 0
	}
	if f < 0 {
		p.err = fmt.Errorf("%s: must not be negative, got %s", c, v)
		return 0
	}
	if f > MaxCount {
		p.err = fmt.Errorf("%s: must be at most %d, got %s", c, MaxCount, v)
		return 0
	}
	return int(f)
}
