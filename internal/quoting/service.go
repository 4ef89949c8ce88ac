// Package quoting builds, stores and reprices moving quotes.
package quoting

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/pricing"
	"github.com/estmator/estmator/pkg/common"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrQuoteNotFound      = errors.New("quote not found")
	ErrClientNotFound     = errors.New("client not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrRatesNotFound      = errors.New("no active global vars")
	ErrInvalidDraft       = errors.New("invalid quote draft")
	ErrClientEmailMissing = errors.New("client has no email address")
	ErrNotifyFailed       = errors.New("quote notification failed")
)

// Event topics published on the bus. Handlers receive a single Event.
const (
	TopicCreated = "quote.created"
	TopicUpdated = "quote.updated"
	TopicSent    = "quote.sent"
	TopicDeleted = "quote.deleted"
)

// Publisher is satisfied by EventBus.Bus
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// Notifier delivers the review link of a quote and returns that link.
type Notifier interface {
	NotifyQuote(ctx context.Context, pq *PricedQuote) (string, error)
}

// Actor is the operator behind a change.
type Actor struct {
	ID   int64
	Name string
	IP   string
}

// Event describes a quote change for audit subscribers.
type Event struct {
	Topic   string
	QuoteID int64
	Name    string
	Actor   Actor
	Detail  string
}

// DraftItem is a product count picked in the quote editor.
type DraftItem struct {
	ProductID int64 `json:"product_id,string" validate:"required"`
	Count     int64 `json:"count" validate:"gte=0"`
}

// Draft is the editable part of a quote.
type Draft struct {
	ClientID   int64                `json:"client_id,string"`
	Name       string               `json:"name"`
	TravelTime int64                `json:"travel_time"`
	Location   domain.LocationFlags `json:"location"`
	Items      []DraftItem          `json:"items"`
}

// CategoryLines are the priced lines of one category.
type CategoryLines struct {
	CategoryID int64          `json:"category_id,string"`
	Name       string         `json:"name"`
	Lines      []pricing.Line `json:"lines"`
}

// PricedQuote is a stored quote repriced on read.
type PricedQuote struct {
	Quote      *domain.Quote      `json:"quote"`
	Client     *domain.Client     `json:"client"`
	Operator   *domain.SysOpr     `json:"operator,omitempty"`
	GlobalVars *domain.GlobalVars `json:"global_vars"`
	Categories []CategoryLines    `json:"categories"`
	Totals     *pricing.Result    `json:"totals"`
}

// FormProduct is a catalog product with its count in the quote being edited.
type FormProduct struct {
	domain.Product
	Count int64 `json:"count"`
}

type FormCategory struct {
	Category domain.Category `json:"category"`
	Products []FormProduct   `json:"products"`
}

// QuoteForm backs the quote editor.
type QuoteForm struct {
	Quote      *domain.Quote  `json:"quote,omitempty"`
	Categories []FormCategory `json:"categories"`
	Flags      []string       `json:"flags"`
}

// Summary aggregates the grand total snapshots of a set of quotes.
type Summary struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Service implements the quote workflow on top of the repositories.
type Service struct {
	repo     Repository
	catalog  CatalogRepository
	bus      Publisher
	notifier Notifier
	now      func() time.Time
}

// NewService creates a quote service. bus and notifier may be nil.
func NewService(repo Repository, catalog CatalogRepository, bus Publisher, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		bus:      bus,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetNotifier replaces the quote notifier.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) publish(topic string, q *domain.Quote, actor Actor, detail string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(topic, Event{
		Topic:   topic,
		QuoteID: q.ID,
		Name:    q.Name,
		Actor:   actor,
		Detail:  detail,
	})
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// resolve loads the products of the draft items in order. Unknown IDs fail.
func (s *Service) resolve(ctx context.Context, items []DraftItem) ([]domain.Product, error) {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	found, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load products")
	}
	products := make([]domain.Product, 0, len(items))
	for _, it := range items {
		p, ok := found[it.ProductID]
		if !ok {
			return nil, errors.Wrapf(ErrProductNotFound, "product %d", it.ProductID)
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *Service) activeRates(ctx context.Context) (*domain.GlobalVars, error) {
	gv, err := s.catalog.ActiveGlobalVars(ctx)
	if err != nil {
		return nil, errors.Wrap(notFound(err, ErrRatesNotFound), "load rates")
	}
	return gv, nil
}

// ratesFor returns the rate set a quote was priced with, falling back to the
// active set when that row is gone.
func (s *Service) ratesFor(ctx context.Context, q *domain.Quote) (*domain.GlobalVars, error) {
	gv, err := s.catalog.GlobalVarsByID(ctx, q.GlobalVarsID)
	if err == nil {
		return gv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "load rates")
	}
	zap.L().Warn("quote rate set missing, using active set",
		zap.Int64("quote_id", q.ID),
		zap.Int64("global_vars_id", q.GlobalVarsID),
		zap.String("namespace", "quoting"))
	return s.activeRates(ctx)
}

func price(items []DraftItem, products []domain.Product, d Draft, gv *domain.GlobalVars) (*pricing.Result, error) {
	lines := make([]pricing.LineItem, 0, len(items))
	for i, it := range items {
		lines = append(lines, productLine(products[i], it.Count))
	}
	res, err := pricing.Calculate(pricing.Input{
		Items:         lines,
		Flags:         Flags(d.Location),
		TravelMinutes: d.TravelTime,
		Rates:         Rates(gv),
	})
	if err != nil {
		return nil, errors.Wrap(err, "price quote")
	}
	return res, nil
}

// Estimate prices a draft against the active rates without saving it.
func (s *Service) Estimate(ctx context.Context, d Draft) (*pricing.Result, error) {
	products, err := s.resolve(ctx, d.Items)
	if err != nil {
		return nil, err
	}
	gv, err := s.activeRates(ctx)
	if err != nil {
		return nil, err
	}
	return price(d.Items, products, d, gv)
}

// keptItems drops zero-count lines and merges repeated products.
func keptItems(items []DraftItem) []DraftItem {
	out := make([]DraftItem, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.Count == 0 {
			continue
		}
		if i, ok := index[it.ProductID]; ok {
			out[i].Count += it.Count
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

func quoteItems(items []DraftItem) []domain.QuoteItem {
	out := make([]domain.QuoteItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.QuoteItem{
			ID:        common.UUIDint64(),
			ProductID: it.ProductID,
			Count:     it.Count,
		})
	}
	return out
}

func (s *Service) checkDraft(ctx context.Context, d Draft) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.Wrap(ErrInvalidDraft, "name is required")
	}
	for _, it := range d.Items {
		if it.Count < 0 {
			return errors.Wrapf(pricing.ErrNegativeCount, "product %d", it.ProductID)
		}
	}
	if _, err := s.catalog.ClientByID(ctx, d.ClientID); err != nil {
		return errors.Wrapf(notFound(err, ErrClientNotFound), "client %d", d.ClientID)
	}
	return nil
}

// Create saves a new quote for the actor and returns it priced.
func (s *Service) Create(ctx context.Context, actor Actor, d Draft) (*PricedQuote, error) {
	if err := s.checkDraft(ctx, d); err != nil {
		return nil, err
	}
	items := keptItems(d.Items)
	products, err := s.resolve(ctx, items)
	if err != nil {
		return nil, err
	}
	gv, err := s.activeRates(ctx)
	if err != nil {
		return nil, err
	}
	res, err := price(items, products, d, gv)
	if err != nil {
		return nil, err
	}

	now := s.now()
	q := &domain.Quote{
		ID:           common.UUIDint64(),
		OprID:        actor.ID,
		ClientID:     d.ClientID,
		GlobalVarsID: gv.ID,
		Name:         strings.TrimSpace(d.Name),
		Date:         now,
		SubTotal:     res.Subtotal,
		GrandTotal:   res.GrandTotal,
		TravelTime:   d.TravelTime,
		Token:        common.Token(),
		Location:     d.Location,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, q, quoteItems(items)); err != nil {
		return nil, errors.Wrap(err, "create quote")
	}
	s.publish(TopicCreated, q, actor, "grand total "+res.GrandTotal.StringFixed(2))
	return s.Get(ctx, q.ID)
}

// Update replaces the items and conditions of a quote. It is repriced with
// the rate set it was created with.
func (s *Service) Update(ctx context.Context, actor Actor, id int64, d Draft) (*PricedQuote, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(notFound(err, ErrQuoteNotFound), "quote %d", id)
	}
	if d.ClientID == 0 {
		d.ClientID = q.ClientID
	}
	if err := s.checkDraft(ctx, d); err != nil {
		return nil, err
	}
	items := keptItems(d.Items)
	products, err := s.resolve(ctx, items)
	if err != nil {
		return nil, err
	}
	gv, err := s.ratesFor(ctx, q)
	if err != nil {
		return nil, err
	}
	res, err := price(items, products, d, gv)
	if err != nil {
		return nil, err
	}

	q.ClientID = d.ClientID
	q.GlobalVarsID = gv.ID
	q.Name = strings.TrimSpace(d.Name)
	q.TravelTime = d.TravelTime
	q.Location = d.Location
	q.SubTotal = res.Subtotal
	q.GrandTotal = res.GrandTotal
	q.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, q, quoteItems(items)); err != nil {
		return nil, errors.Wrap(err, "update quote")
	}
	s.publish(TopicUpdated, q, actor, "grand total "+res.GrandTotal.StringFixed(2))
	return s.Get(ctx, q.ID)
}

// Get loads a quote and prices it.
func (s *Service) Get(ctx context.Context, id int64) (*PricedQuote, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(notFound(err, ErrQuoteNotFound), "quote %d", id)
	}
	return s.priced(ctx, q)
}

// GetByToken loads a quote through its share token.
func (s *Service) GetByToken(ctx context.Context, token string) (*PricedQuote, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrQuoteNotFound
	}
	q, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, errors.Wrap(notFound(err, ErrQuoteNotFound), "quote by token")
	}
	return s.priced(ctx, q)
}

func (s *Service) priced(ctx context.Context, q *domain.Quote) (*PricedQuote, error) {
	client, err := s.catalog.ClientByID(ctx, q.ClientID)
	if err != nil {
		return nil, errors.Wrapf(notFound(err, ErrClientNotFound), "client %d", q.ClientID)
	}
	var opr *domain.SysOpr
	if q.OprID != 0 {
		opr, err = s.catalog.OprByID(ctx, q.OprID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(err, "load operator")
		}
	}
	gv, err := s.ratesFor(ctx, q)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.Items(ctx, q.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load quote items")
	}

	items := make([]DraftItem, 0, len(stored))
	products := make([]domain.Product, 0, len(stored))
	for _, it := range stored {
		if it.Product == nil {
			zap.L().Warn("quote item without product",
				zap.Int64("quote_id", q.ID),
				zap.Int64("product_id", it.ProductID),
				zap.String("namespace", "quoting"))
			continue
		}
		items = append(items, DraftItem{ProductID: it.ProductID, Count: it.Count})
		products = append(products, *it.Product)
	}
	res, err := price(items, products, Draft{TravelTime: q.TravelTime, Location: q.Location}, gv)
	if err != nil {
		return nil, err
	}

	return &PricedQuote{
		Quote:      q,
		Client:     client,
		Operator:   opr,
		GlobalVars: gv,
		Categories: groupLines(res.Lines, products),
		Totals:     res,
	}, nil
}

// groupLines groups priced lines by product category, categories by name.
func groupLines(lines []pricing.Line, products []domain.Product) []CategoryLines {
	var groups []CategoryLines
	index := make(map[int64]int)
	for i, line := range lines {
		var catID int64
		name := "Uncategorized"
		if c := products[i].Category; c != nil {
			catID, name = c.ID, c.Name
		}
		g, ok := index[catID]
		if !ok {
			g = len(groups)
			index[catID] = g
			groups = append(groups, CategoryLines{CategoryID: catID, Name: name})
		}
		groups[g].Lines = append(groups[g].Lines, line)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})
	return groups
}

// Form returns the catalog grouped by category with the counts of quote
// quoteID filled in. A zero quoteID gives an empty form.
func (s *Service) Form(ctx context.Context, quoteID int64) (*QuoteForm, error) {
	form := &QuoteForm{}
	counts := make(map[int64]int64)
	if quoteID != 0 {
		q, err := s.repo.GetByID(ctx, quoteID)
		if err != nil {
			return nil, errors.Wrapf(notFound(err, ErrQuoteNotFound), "quote %d", quoteID)
		}
		items, err := s.repo.Items(ctx, quoteID)
		if err != nil {
			return nil, errors.Wrap(err, "load quote items")
		}
		for _, it := range items {
			counts[it.ProductID] += it.Count
		}
		form.Quote = q
	}

	cats, products, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	index := make(map[int64]int, len(cats))
	form.Categories = make([]FormCategory, 0, len(cats))
	for _, c := range cats {
		index[c.ID] = len(form.Categories)
		form.Categories = append(form.Categories, FormCategory{Category: c, Products: []FormProduct{}})
	}
	for _, p := range products {
		i, ok := index[p.CategoryID]
		if !ok {
			continue
		}
		form.Categories[i].Products = append(form.Categories[i].Products, FormProduct{Product: p, Count: counts[p.ID]})
	}

	for _, site := range []pricing.Site{pricing.Origin, pricing.Destination} {
		for _, m := range pricing.Modifiers {
			form.Flags = append(form.Flags, pricing.Flag{Site: site, Modifier: m}.String())
		}
	}
	return form, nil
}

// List returns a page of quotes and the total match count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Quote, int64, error) {
	quotes, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list quotes")
	}
	return quotes, total, nil
}

// Summary aggregates the grand totals of the quotes matching f. Paging is ignored.
func (s *Service) Summary(ctx context.Context, f ListFilter) (*Summary, error) {
	totals, err := s.repo.GrandTotals(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "load grand totals")
	}
	sum := &Summary{Count: len(totals)}
	if len(totals) == 0 {
		return sum, nil
	}
	data := stats.Float64Data(totals)
	total, _ := data.Sum()
	mean, _ := data.Mean()
	median, _ := data.Median()
	max, _ := data.Max()
	sum.Total = round2(total)
	sum.Mean = round2(mean)
	sum.Median = round2(median)
	sum.Max = round2(max)
	return sum, nil
}

func round2(v float64) float64 {
	r, err := stats.Round(v, 2)
	if err != nil {
		return v
	}
	return r
}

// Send mails the review link of a quote to its client and stamps sent_at.
func (s *Service) Send(ctx context.Context, actor Actor, id int64) (*PricedQuote, string, error) {
	pq, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(pq.Client.Email) == "" {
		return nil, "", errors.Wrapf(ErrClientEmailMissing, "client %d", pq.Client.ID)
	}
	if s.notifier == nil {
		return nil, "", errors.Wrap(ErrNotifyFailed, "no notifier configured")
	}
	link, err := s.notifier.NotifyQuote(ctx, pq)
	if err != nil {
		zap.L().Error("send quote failed",
			zap.Int64("quote_id", id),
			zap.String("email", pq.Client.Email),
			zap.Error(err),
			zap.String("namespace", "quoting"))
		return nil, "", errors.Wrap(ErrNotifyFailed, err.Error())
	}
	at := s.now()
	if err := s.repo.MarkSent(ctx, id, at); err != nil {
		return nil, "", errors.Wrap(err, "mark quote sent")
	}
	pq.Quote.SentAt = &at
	s.publish(TopicSent, pq.Quote, actor, "sent to "+pq.Client.Email)
	return pq, link, nil
}

// Delete removes a quote and its items.
func (s *Service) Delete(ctx context.Context, actor Actor, id int64) error {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return errors.Wrapf(notFound(err, ErrQuoteNotFound), "quote %d", id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete quote")
	}
	s.publish(TopicDeleted, q, actor, "")
	return nil
}
