// Package session owns the import plans for the one workbook a user is
// working on.
//
// A Manager holds at most one WorkbookImportSession. Loading a new file
// replaces it wholesale: the previous load, if still running, is cancelled and
// its result is discarded when it arrives (ErrStale). Sheets are planned in
// parallel; each sheet is independent and writes only its own slot.
//
// Edits go through the Manager so they are serialized with loads. Plans handed
// out by Current must be treated as read-only by callers.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sheetintake/internal/metrics"
	"sheetintake/internal/probe"
	"sheetintake/internal/workbook"
)

// Logger is the minimal logging interface used by the session manager.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

var (
	// ErrStale is returned by a load that was superseded by a newer one.
	ErrStale = errors.New("session: superseded by a newer load")

	// ErrNoSession is returned by edits when nothing is loaded.
	ErrNoSession = errors.New("session: no workbook loaded")

	// ErrSheetNotFound is returned when an edit names an unknown sheet.
	ErrSheetNotFound = errors.New("session: sheet not found")
)

// DefaultWorkers bounds per-sheet parallelism when Options.Workers is unset.
const DefaultWorkers = 4

// WorkbookImportSession is the set of plans derived from one file. Plans keep
// workbook order; sheets without content are absent.
type WorkbookImportSession struct {
	ID       string
	FileName string
	Plans    []*probe.SheetImportPlan
	LoadedAt time.Time

	// SheetCount is the number of sheets read, including dropped empty ones.
	SheetCount int
}

// Plan returns the plan for sheet, or nil.
func (s *WorkbookImportSession) Plan(sheet string) *probe.SheetImportPlan {
	for _, p := range s.Plans {
		if p.SheetName == sheet {
			return p
		}
	}
	return nil
}

// Selected returns the plans marked for submission, in order.
func (s *WorkbookImportSession) Selected() []*probe.SheetImportPlan {
	out := make([]*probe.SheetImportPlan, 0, len(s.Plans))
	for _, p := range s.Plans {
		if p.Selected {
			out = append(out, p)
		}
	}
	return out
}

// Payloads builds ingestion payloads for the selected sheets.
func (s *WorkbookImportSession) Payloads(title string) []probe.IngestPayload {
	return probe.BuildPayloads(title, s.FileName, s.Plans)
}

// Options configures a Manager. Zero values use defaults.
type Options struct {
	Workers int
	Plan    probe.PlanOptions
	Read    workbook.Options
	Logger  Logger

	// Unexported seams; production leaves them nil.
	now       func() time.Time
	newID     func() string
	buildPlan func(probe.RawSheet, probe.PlanOptions) *probe.SheetImportPlan
}

// Manager serializes loads and edits for a single interactive session.
type Manager struct {
	opts Options

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current *WorkbookImportSession
}

// NewManager returns an empty Manager.
func NewManager(opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.newID == nil {
		opts.newID = uuid.NewString
	}
	if opts.buildPlan == nil {
		opts.buildPlan = probe.BuildPlan
	}
	return &Manager{opts: opts}
}

func (m *Manager) logger() func(format string, v ...any) {
	if m.opts.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return m.opts.Logger.Printf
}

// Load reads data as the workbook called name and installs the resulting
// session, replacing any previous one.
//
// Errors:
//   - workbook errors (ErrUnreadable, ErrUnsupportedFormat) leave the current
//     session untouched.
//   - ErrStale when another Load started before this one finished.
//   - ctx errors when the caller cancels.
func (m *Manager) Load(ctx context.Context, name string, data []byte) (*WorkbookImportSession, error) {
	gen, lctx, done := m.begin(ctx)
	defer done()

	start := time.Now()
	sheets, err := workbook.Read(lctx, name, data, m.opts.Read)
	metrics.ObserveHistogram(metrics.InferenceDuration, time.Since(start).Seconds(), metrics.Labels{"stage": "read"})
	if err != nil {
		if m.superseded(gen) {
			return nil, ErrStale
		}
		return nil, err
	}
	return m.install(lctx, gen, name, sheets)
}

// LoadSheets installs a session built from already-decoded sheets.
func (m *Manager) LoadSheets(ctx context.Context, name string, sheets []probe.RawSheet) (*WorkbookImportSession, error) {
	gen, lctx, done := m.begin(ctx)
	defer done()
	return m.install(lctx, gen, name, sheets)
}

// begin starts a new generation and cancels the one in flight.
func (m *Manager) begin(ctx context.Context) (uint64, context.Context, func()) {
	lctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.gen++
	gen := m.gen
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = cancel
	m.mu.Unlock()

	return gen, lctx, func() {
		m.mu.Lock()
		if m.gen == gen {
			m.cancel = nil
		}
		m.mu.Unlock()
		cancel()
	}
}

func (m *Manager) superseded(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen != gen
}

func (m *Manager) install(ctx context.Context, gen uint64, name string, sheets []probe.RawSheet) (*WorkbookImportSession, error) {
	logf := m.logger()

	start := time.Now()
	plans, err := m.planSheets(ctx, sheets)
	metrics.ObserveHistogram(metrics.InferenceDuration, time.Since(start).Seconds(), metrics.Labels{"stage": "plan"})
	if err != nil {
		if m.superseded(gen) {
			return nil, ErrStale
		}
		return nil, fmt.Errorf("plan %s: %w", name, err)
	}

	sess := &WorkbookImportSession{
		ID:         m.opts.newID(),
		FileName:   name,
		Plans:      plans,
		LoadedAt:   m.opts.now(),
		SheetCount: len(sheets),
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		logf("session: discarded stale result for %s", name)
		return nil, ErrStale
	}
	m.current = sess
	m.mu.Unlock()

	recordPlans(sess)
	logf("session %s: planned %d of %d sheets from %s in %s",
		sess.ID, len(plans), len(sheets), name, time.Since(start).Truncate(time.Millisecond))
	return sess, nil
}

// planSheets builds one plan per sheet with bounded parallelism and drops the
// sheets that yield none, keeping workbook order.
func (m *Manager) planSheets(ctx context.Context, sheets []probe.RawSheet) ([]*probe.SheetImportPlan, error) {
	slots := make([]*probe.SheetImportPlan, len(sheets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i := range sheets {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = m.opts.buildPlan(sheets[i], m.opts.Plan)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plans := make([]*probe.SheetImportPlan, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func recordPlans(s *WorkbookImportSession) {
	metrics.IncCounter(metrics.SheetsTotal, float64(len(s.Plans)), metrics.Labels{"status": "planned"})
	metrics.IncCounter(metrics.SheetsTotal, float64(s.SheetCount-len(s.Plans)), metrics.Labels{"status": "empty"})
	for _, p := range s.Plans {
		metrics.ObserveHistogram(metrics.QualityScore, float64(p.QualityScore), nil)
		for _, c := range p.Columns {
			metrics.IncCounter(metrics.ColumnsTotal, 1, metrics.Labels{"type": string(c.DeclaredType)})
		}
	}
}

// Current returns the installed session, or nil.
func (m *Manager) Current() *WorkbookImportSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Clear drops the current session and cancels any load in flight.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.current = nil
}

// ----- edits -----

// edit runs fn against the named plan under the manager lock.
func (m *Manager) edit(sheet string, fn func(*probe.SheetImportPlan) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ErrNoSession
	}
	p := m.current.Plan(sheet)
	if p == nil {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	return fn(p)
}

// RenameColumn sanitizes name into column col of sheet and re-uniquifies.
func (m *Manager) RenameColumn(sheet string, col int, name string) error {
	return m.edit(sheet, func(p *probe.SheetImportPlan) error { return p.RenameColumn(col, name) })
}

// SetColumnType overrides the declared type of column col of sheet.
func (m *Manager) SetColumnType(sheet string, col int, t probe.DeclaredType) error {
	return m.edit(sheet, func(p *probe.SheetImportPlan) error { return p.SetColumnType(col, t) })
}

// SetSelected includes or excludes sheet from submission.
func (m *Manager) SetSelected(sheet string, selected bool) error {
	return m.edit(sheet, func(p *probe.SheetImportPlan) error {
		p.Selected = selected
		return nil
	})
}

// AutoFix re-sanitizes every column name of sheet.
func (m *Manager) AutoFix(sheet string) error {
	return m.edit(sheet, func(p *probe.SheetImportPlan) error {
		p.AutoFix()
		return nil
	})
}
