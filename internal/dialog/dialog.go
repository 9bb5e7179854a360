package dialog

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"konterku/engine/internal/cart"
	"konterku/engine/internal/catalog"
	"konterku/engine/internal/domain"
	"konterku/engine/internal/party"
)

// State tracks one dialog instance through its lifecycle:
//
//	Idle -> Loading -> Ready <-> Submitting -> Closed
//	            \-> LoadFailed
//
// Ready is re-entered after every cart mutation and after a failed
// submission. LoadFailed is terminal for the instance; recovery is closing
// and opening a fresh dialog, which re-loads the catalog.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoadFailed
	StateReady
	StateSubmitting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoadFailed:
		return "load_failed"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Kind parametrizes the one shared engine per transaction variant, replacing
// the three near-identical dialog implementations that used to drift apart.
type Kind struct {
	Name                string
	ItemResource        string
	TransactionResource string
	PartySource         string
	AllowFlatFee        bool
}

var (
	// KindAccessorySale sells phone accessories to an optional loyalty member.
	KindAccessorySale = Kind{
		Name:                "accessory-sale",
		ItemResource:        "accessory",
		TransactionResource: "accessory-transaction",
		PartySource:         domain.PartySourceMember,
	}

	// KindVoucherSale sells vouchers, optionally attached to a downline buyer.
	KindVoucherSale = Kind{
		Name:                "voucher-sale",
		ItemResource:        "voucher",
		TransactionResource: "voucher-transaction",
		PartySource:         domain.PartySourceDownline,
	}

	// KindServiceTicket opens a phone-repair ticket: spare parts plus a flat
	// service fee, with buyer name and status carried as free-text metadata.
	KindServiceTicket = Kind{
		Name:                "service-ticket",
		ItemResource:        "sparepart",
		TransactionResource: "service-transaction",
		PartySource:         domain.PartySourceNone,
		AllowFlatFee:        true,
	}
)

// Submitter sends the built payload to the backend. Implemented by the API
// client; one network call per invocation.
type Submitter interface {
	SubmitTransaction(ctx context.Context, resource string, payload domain.TransactionPayload) (domain.Confirmation, error)
}

// Callbacks deliver async outcomes to the owning view. All of them may be nil.
type Callbacks struct {
	// OnScanResult fires when a buffered barcode resolves (or fails to). On
	// success the item has already been merged into the cart with quantity 1.
	OnScanResult func(code string, item domain.CatalogItem, err error)
	// OnPartyCandidates fires with locally filtered lookup results for the
	// latest non-superseded query.
	OnPartyCandidates func(query string, parties []domain.PartySelection)
	// OnPartyError fires when a non-superseded lookup request fails.
	OnPartyError func(query string, err error)
}

// Options tune the timing heuristics.
type Options struct {
	ScanQuietPeriod time.Duration
	PartyDebounce   time.Duration
}

// Dialog is one open transaction dialog: a catalog snapshot, a cart and the
// submission workflow, configured by Kind. Each instance owns its state
// exclusively; nothing is shared between dialogs. Closing bumps an epoch
// counter so that any in-flight load, lookup or submission that completes
// afterwards is dropped instead of applied to a torn-down instance.
type Dialog struct {
	kind      Kind
	loader    catalog.Loader
	submitter Submitter
	lookup    party.Lookup
	callbacks Callbacks
	opts      Options
	logger    *zap.Logger

	mu       sync.Mutex
	state    State
	epoch    uint64
	snapshot *catalog.Snapshot
	acc      *cart.Accumulator
	partySel *domain.PartySelection
	flatFee  decimal.Decimal
	scanner  *catalog.Scanner
	searcher *party.Searcher
}

func New(kind Kind, loader catalog.Loader, submitter Submitter, lookup party.Lookup, callbacks Callbacks, opts Options, logger *zap.Logger) *Dialog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialog{
		kind:      kind,
		loader:    loader,
		submitter: submitter,
		lookup:    lookup,
		callbacks: callbacks,
		opts:      opts,
		logger:    logger.Named("dialog").With(zap.String("kind", kind.Name)),
		state:     StateIdle,
		acc:       cart.NewAccumulator(),
	}
}

func (d *Dialog) Kind() Kind {
	return d.kind
}

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Open loads the catalog snapshot. It runs exactly once per dialog lifecycle;
// a failed load leaves the dialog in LoadFailed and the only recovery is a
// fresh instance.
func (d *Dialog) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return fmt.Errorf("open from state %s: %w", d.state, domain.ErrDialogNotReady)
	}
	d.state = StateLoading
	epoch := d.epoch
	d.mu.Unlock()

	items, err := d.loader.LoadCatalog(ctx, d.kind.ItemResource)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.epoch != epoch || d.state == StateClosed {
		// Closed while the load was in flight; drop the response.
		return domain.ErrDialogClosed
	}
	if err != nil {
		d.state = StateLoadFailed
		d.logger.Warn("catalog load failed", zap.Error(err))
		return fmt.Errorf("load catalog %s: %w", d.kind.ItemResource, err)
	}

	d.snapshot = catalog.Build(items)
	d.scanner = catalog.NewScanner(d.snapshot, d.opts.ScanQuietPeriod, d.scanResolved, d.scanMissed)
	if d.kind.PartySource != domain.PartySourceNone && d.lookup != nil {
		d.searcher = party.NewSearcher(d.lookup, d.kind.PartySource, d.opts.PartyDebounce, d.partyResults, d.partyError)
	}
	d.state = StateReady
	d.logger.Info("dialog ready", zap.Int("catalog_items", d.snapshot.Len()))
	return nil
}

// Close tears the dialog down, discarding the snapshot, the cart and any
// pending debounce timers. In-flight requests are not cancelled; their
// responses are ignored once they arrive.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateClosed {
		return
	}
	d.epoch++
	d.state = StateClosed
	if d.scanner != nil {
		d.scanner.Stop()
	}
	if d.searcher != nil {
		d.searcher.Stop()
	}
	d.snapshot = nil
	d.acc = cart.NewAccumulator()
	d.partySel = nil
	d.flatFee = decimal.Zero
}

func (d *Dialog) requireReady() error {
	if d.state != StateReady {
		if d.state == StateClosed {
			return domain.ErrDialogClosed
		}
		return domain.ErrDialogNotReady
	}
	return nil
}

// AddItem merges quantity of a resolved catalog item into the cart.
func (d *Dialog) AddItem(item domain.CatalogItem, quantity int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireReady(); err != nil {
		return err
	}
	return d.acc.AddOrMerge(item, quantity)
}

// AddByToken resolves a user-entered token (barcode, id or exact name) and
// merges it into the cart.
func (d *Dialog) AddByToken(token string, quantity int) (domain.CatalogItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireReady(); err != nil {
		return domain.CatalogItem{}, err
	}
	if quantity <= 0 {
		return domain.CatalogItem{}, domain.ErrInvalidQuantity
	}
	item, ok := d.snapshot.Resolve(token)
	if !ok {
		return domain.CatalogItem{}, fmt.Errorf("token %q: %w", token, domain.ErrNotFound)
	}
	if err := d.acc.AddOrMerge(item, quantity); err != nil {
		return domain.CatalogItem{}, err
	}
	return item, nil
}

func (d *Dialog) UpdateQuantity(itemID string, quantity int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireReady(); err != nil {
		return err
	}
	return d.acc.UpdateQuantity(itemID, quantity)
}

func (d *Dialog) RemoveItem(itemID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateReady {
		return
	}
	d.acc.Remove(itemID)
}

func (d *Dialog) Lines() []domain.CartLine {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acc.Lines()
}

// Totals recomputes the running aggregate from the cart on every call.
func (d *Dialog) Totals() domain.Totals {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acc.Totals(d.flatFee)
}

// SetFlatFee records the flat service fee for kinds that carry one.
func (d *Dialog) SetFlatFee(fee decimal.Decimal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireReady(); err != nil {
		return err
	}
	if !d.kind.AllowFlatFee {
		return fmt.Errorf("kind %s does not take a flat fee", d.kind.Name)
	}
	if fee.IsNegative() {
		return domain.ErrInvalidQuantity
	}
	d.flatFee = fee
	return nil
}

// Suggest exposes the snapshot's lazy name search for type-ahead. Before the
// dialog is ready the sequence is empty.
func (d *Dialog) Suggest(partial string) iter.Seq[domain.CatalogItem] {
	d.mu.Lock()
	snap := d.snapshot
	d.mu.Unlock()
	if snap == nil {
		return func(func(domain.CatalogItem) bool) {}
	}
	return snap.Suggest(partial)
}

// ScanInput feeds barcode-scanner keystrokes into the quiet-period buffer.
func (d *Dialog) ScanInput(chunk string) {
	d.mu.Lock()
	sc := d.scanner
	d.mu.Unlock()
	if sc != nil {
		sc.Append(chunk)
	}
}

// FlushScan forces immediate resolution of the buffered barcode.
func (d *Dialog) FlushScan() {
	d.mu.Lock()
	sc := d.scanner
	d.mu.Unlock()
	if sc != nil {
		sc.Flush()
	}
}

func (d *Dialog) scanResolved(item domain.CatalogItem) {
	err := d.AddItem(item, 1)
	if cb := d.callbacks.OnScanResult; cb != nil {
		cb(item.Barcode, item, err)
	}
}

func (d *Dialog) scanMissed(code string) {
	if cb := d.callbacks.OnScanResult; cb != nil {
		cb(code, domain.CatalogItem{}, fmt.Errorf("barcode %q: %w", code, domain.ErrNotFound))
	}
}

// SearchParty restarts the debounced counterparty lookup with the latest
// keystroke state. Kinds without a party source ignore it.
func (d *Dialog) SearchParty(ctx context.Context, query string) {
	d.mu.Lock()
	searcher := d.searcher
	d.mu.Unlock()
	if searcher != nil {
		searcher.SetQuery(ctx, query)
	}
}

func (d *Dialog) partyResults(query string, parties []domain.PartySelection) {
	d.mu.Lock()
	dropped := d.state == StateClosed
	d.mu.Unlock()
	if dropped {
		return
	}
	if cb := d.callbacks.OnPartyCandidates; cb != nil {
		cb(query, parties)
	}
}

func (d *Dialog) partyError(query string, err error) {
	d.mu.Lock()
	dropped := d.state == StateClosed
	d.mu.Unlock()
	if dropped {
		return
	}
	if cb := d.callbacks.OnPartyError; cb != nil {
		cb(query, err)
	}
}

// SelectParty attaches a counterparty to the transaction, replacing any
// previous selection. At most one party per transaction.
func (d *Dialog) SelectParty(p domain.PartySelection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireReady(); err != nil {
		return err
	}
	if d.kind.PartySource == domain.PartySourceNone {
		return fmt.Errorf("kind %s does not attach a party", d.kind.Name)
	}
	selected := p
	d.partySel = &selected
	return nil
}

func (d *Dialog) ClearParty() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partySel = nil
}

func (d *Dialog) Party() (domain.PartySelection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.partySel == nil {
		return domain.PartySelection{}, false
	}
	return *d.partySel, true
}

// Submit builds the payload from the current cart, party and metadata and
// sends it in a single attempt. An empty cart is rejected locally with no
// network call. While the call is in flight the dialog sits in Submitting and
// refuses a second submit. Failure restores Ready with the cart exactly as it
// was; success clears the cart and party and closes the dialog.
func (d *Dialog) Submit(ctx context.Context, meta domain.Metadata) (domain.Confirmation, error) {
	d.mu.Lock()
	if d.state == StateSubmitting {
		d.mu.Unlock()
		return domain.Confirmation{}, domain.ErrSubmitInFlight
	}
	if err := d.requireReady(); err != nil {
		d.mu.Unlock()
		return domain.Confirmation{}, err
	}
	if d.acc.IsEmpty() {
		d.mu.Unlock()
		return domain.Confirmation{}, domain.ErrEmptyCart
	}

	payload := d.buildPayload(meta)
	d.state = StateSubmitting
	epoch := d.epoch
	d.mu.Unlock()

	confirmation, err := d.submitter.SubmitTransaction(ctx, d.kind.TransactionResource, payload)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.epoch != epoch || d.state == StateClosed {
		// Closed mid-flight; the outcome no longer has a home.
		return domain.Confirmation{}, domain.ErrDialogClosed
	}
	if err != nil {
		d.state = StateReady
		d.logger.Warn("submission failed", zap.Error(err))
		return domain.Confirmation{}, err
	}

	d.acc.Clear()
	d.partySel = nil
	d.flatFee = decimal.Zero
	d.state = StateClosed
	d.logger.Info("submission accepted", zap.String("transaction_id", confirmation.TransactionID))
	return confirmation, nil
}

func (d *Dialog) buildPayload(meta domain.Metadata) domain.TransactionPayload {
	lines := d.acc.Lines()
	payloadLines := make([]domain.TransactionLine, 0, len(lines))
	for _, line := range lines {
		payloadLines = append(payloadLines, domain.TransactionLine{ID: line.ItemID, Quantity: line.Quantity})
	}

	totals := d.acc.Totals(d.flatFee)
	payload := domain.TransactionPayload{
		ReferenceID:   uuid.NewString(),
		Lines:         payloadLines,
		Margin:        totals.Margin,
		FlatFee:       d.flatFee,
		BuyerName:     meta.BuyerName,
		Description:   meta.Description,
		ServiceStatus: meta.ServiceStatus,
	}
	if d.partySel != nil {
		payload.PartyID = d.partySel.ID
	}
	return payload
}
