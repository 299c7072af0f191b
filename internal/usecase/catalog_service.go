package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentimentscope/catalog/internal/domain"
	"github.com/sentimentscope/catalog/internal/infrastructure/catalogapi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPhoneLimit           = 200
	defaultFreshnessWindow      = 5 * time.Minute
	defaultRefreshInterval      = 5 * time.Minute
	defaultSentimentConcurrency = 8
)

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	DisableRemote        bool // start in fallback mode without probing the API
	PhoneLimit           int
	FreshnessWindow      time.Duration
	RefreshInterval      time.Duration
	SentimentConcurrency int
}

// snapshot is one immutable load result. It is replaced wholesale, never mutated.
type snapshot struct {
	products        []domain.Product
	brands          []string
	topics          []string
	source          domain.DataSource
	partialFailures int
}

type subscriber struct {
	id int
	fn func(domain.Event)
}

// CatalogService owns the canonical product, brand and topic lists and
// decides whether they come from the catalog API or the fallback dataset.
// Remote failures never escape it: they degrade to fallback data.
type CatalogService struct {
	client   domain.CatalogClient
	fallback domain.FallbackDataset
	logger   *zap.Logger

	phoneLimit      int
	freshnessWindow time.Duration
	refreshInterval time.Duration
	concurrency     int
	now             func() time.Time

	// loading guards bulk loads; a second caller gets a no-op
	loading atomic.Bool

	// loadMu orders loading hand-offs with pendingInit, an Initialize queued
	// by ToggleSource(true) while another load was running
	loadMu      sync.Mutex
	pendingInit bool

	mu         sync.RWMutex
	snap       *snapshot
	useRemote  bool
	lastLoad   time.Time // last successful remote load
	generation uint64    // bumped by a forced fallback so in-flight loads are discarded

	subMu       sync.Mutex
	subscribers []subscriber
	nextSubID   int
}

// NewCatalogService creates a new catalog service with dependencies
func NewCatalogService(
	client domain.CatalogClient,
	fallback domain.FallbackDataset,
	logger *zap.Logger,
	config CatalogServiceConfig,
) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}

	phoneLimit := config.PhoneLimit
	if phoneLimit <= 0 {
		phoneLimit = defaultPhoneLimit
	}
	freshness := config.FreshnessWindow
	if freshness <= 0 {
		freshness = defaultFreshnessWindow
	}
	interval := config.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	concurrency := config.SentimentConcurrency
	if concurrency <= 0 {
		concurrency = defaultSentimentConcurrency
	}

	return &CatalogService{
		client:          client,
		fallback:        fallback,
		logger:          logger.Named("catalog"),
		phoneLimit:      phoneLimit,
		freshnessWindow: freshness,
		refreshInterval: interval,
		concurrency:     concurrency,
		now:             time.Now,
		useRemote:       !config.DisableRemote,
	}
}

// Initialize probes the catalog API and loads either remote or fallback data.
// It is a no-op while another load is running. Subscribers receive
// EventDataReady once it completes.
func (s *CatalogService) Initialize(ctx context.Context) {
	s.startInitialize(ctx, false)
}

// startInitialize runs Initialize, or with queue set, leaves it for the
// running load to perform before it releases the loading flag
func (s *CatalogService) startInitialize(ctx context.Context, queue bool) {
	if !s.beginLoad(queue) {
		s.logger.Debug("load already in progress, skipping initialize", zap.Bool("queued", queue))
		return
	}
	s.initialize(ctx)
	s.finishLoad(ctx)

	s.notify(domain.EventDataReady)
}

func (s *CatalogService) beginLoad(queue bool) bool {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.loading.Load() {
		if queue {
			s.pendingInit = true
		}
		return false
	}
	s.loading.Store(true)
	return true
}

// finishLoad runs any queued Initialize and then clears the loading flag.
// It reports whether a queued Initialize ran.
func (s *CatalogService) finishLoad(ctx context.Context) (reinitialized bool) {
	for {
		s.loadMu.Lock()
		if !s.pendingInit {
			s.loading.Store(false)
			s.loadMu.Unlock()
			return reinitialized
		}
		s.pendingInit = false
		s.loadMu.Unlock()

		s.logger.Info("running initialize queued during load")
		s.initialize(ctx)
		reinitialized = true
	}
}

func (s *CatalogService) initialize(ctx context.Context) {
	s.mu.RLock()
	remote := s.useRemote
	gen := s.generation
	s.mu.RUnlock()

	if !remote {
		s.logger.Info("remote source disabled, using fallback data")
		s.loadFallback(gen)
		return
	}

	if err := s.client.Ping(ctx); err != nil {
		s.logger.Warn("catalog API not available, using fallback data", zap.Error(err))
		s.loadFallback(gen)
		return
	}

	if err := s.loadRemote(ctx, gen); err != nil {
		s.logger.Warn("failed to load from catalog API, using fallback data", zap.Error(err))
		s.loadFallback(gen)
	}
}

// Refresh reloads remote data when the remote source is selected and the last
// successful load is older than the freshness window. It reports whether a
// network load was performed.
func (s *CatalogService) Refresh(ctx context.Context) bool {
	if !s.beginLoad(false) {
		s.logger.Debug("load already in progress, skipping refresh")
		return false
	}
	performed, ok := s.refresh(ctx)
	reinitialized := s.finishLoad(ctx)

	switch {
	case reinitialized:
		s.notify(domain.EventDataReady)
	case performed && ok:
		s.notify(domain.EventDataRefreshed)
	case performed:
		s.notify(domain.EventStatusChanged)
	}
	return performed
}

func (s *CatalogService) refresh(ctx context.Context) (performed, ok bool) {
	s.mu.RLock()
	remote := s.useRemote
	last := s.lastLoad
	gen := s.generation
	s.mu.RUnlock()

	if !remote {
		s.logger.Debug("remote source not selected, skipping refresh")
		return false, false
	}
	if !last.IsZero() && s.now().Sub(last) <= s.freshnessWindow {
		s.logger.Debug("data is fresh, skipping refresh", zap.Time("last_load", last))
		return false, false
	}

	s.logger.Info("refreshing data from catalog API")
	if err := s.loadRemote(ctx, gen); err != nil {
		s.logger.Warn("refresh failed, using fallback data", zap.Error(err))
		s.loadFallback(gen)
		return true, false
	}
	return true, true
}

// loadRemote bulk-loads brands, phones and per-phone sentiments.
// A failed sentiment fetch degrades that phone to an empty breakdown.
func (s *CatalogService) loadRemote(ctx context.Context, gen uint64) error {
	start := s.now()

	// Bulk endpoints are cached by URL; drop stale bodies so a reload sees new data
	s.client.ClearCache()

	brandRecords, err := s.client.GetBrands(ctx)
	if err != nil {
		return fmt.Errorf("loading brands: %w", err)
	}
	phones, err := s.client.GetPhones(ctx, s.phoneLimit)
	if err != nil {
		return fmt.Errorf("loading phones: %w", err)
	}

	products := make([]domain.Product, len(phones))
	var failures atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, phone := range phones {
		g.Go(func() error {
			sentiments, err := s.client.GetSentiments(gctx, phone.PhoneID)
			if err != nil {
				failures.Add(1)
				s.logger.Warn("failed to get sentiments",
					zap.Int64("phone_id", phone.PhoneID),
					zap.Error(fmt.Errorf("%w: %w", domain.ErrPartialFailure, err)))
				sentiments = nil
			}
			products[i] = catalogapi.TransformPhone(phone, sentiments)
			return nil
		})
	}
	_ = g.Wait()

	brands := make([]string, 0, len(brandRecords)+1)
	brands = append(brands, domain.AllBrands)
	for _, b := range brandRecords {
		if b.BrandName != "" {
			brands = append(brands, b.BrandName)
		}
	}

	snap := &snapshot{
		products:        products,
		brands:          brands,
		topics:          collectTopics(products),
		source:          domain.SourceRemote,
		partialFailures: int(failures.Load()),
	}
	if !s.publish(gen, snap) {
		s.logger.Info("discarding remote load superseded by source change")
		return nil
	}

	s.logger.Info("loaded products from catalog API",
		zap.Int("products", len(products)),
		zap.Int("brands", len(brandRecords)),
		zap.Int("partial_failures", snap.partialFailures),
		zap.Duration("elapsed", s.now().Sub(start)))
	return nil
}

func (s *CatalogService) loadFallback(gen uint64) {
	snap := &snapshot{
		products: s.fallback.Products(),
		brands:   s.fallback.Brands(),
		topics:   s.fallback.Topics(),
		source:   domain.SourceFallback,
	}
	if s.publish(gen, snap) {
		s.logger.Info("loaded fallback data", zap.Int("products", len(snap.products)))
	}
}

// publish swaps in snap unless the source was switched since gen was read
func (s *CatalogService) publish(gen uint64, snap *snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.snap = snap
	if snap.source == domain.SourceRemote {
		s.lastLoad = s.now()
	} else {
		s.useRemote = false
	}
	return true
}

// collectTopics returns the union of all product topics in first-seen order
func collectTopics(products []domain.Product) []string {
	seen := make(map[string]bool)
	topics := []string{}
	for _, p := range products {
		for _, t := range p.Topics {
			if !seen[t] {
				seen[t] = true
				topics = append(topics, t)
			}
		}
	}
	return topics
}

func (s *CatalogService) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return &snapshot{products: []domain.Product{}, brands: []string{}, topics: []string{}}
	}
	return s.snap
}

// Products returns the current product snapshot. Callers must not mutate it.
func (s *CatalogService) Products() []domain.Product {
	return s.current().products
}

// Brands returns the current brand list, "All Brands" first. Callers must not mutate it.
func (s *CatalogService) Brands() []string {
	return s.current().brands
}

// Topics returns the current topic list. Callers must not mutate it.
func (s *CatalogService) Topics() []string {
	return s.current().topics
}

// Search queries the catalog API when the remote source is active and no load
// is running. Otherwise, and on any failure, it falls back to a local
// case-insensitive substring match.
func (s *CatalogService) Search(ctx context.Context, query string, filters domain.SearchFilters) []domain.Product {
	s.mu.RLock()
	remote := s.useRemote
	s.mu.RUnlock()

	if remote && !s.loading.Load() {
		results, err := s.remoteSearch(ctx, query, filters)
		if err == nil {
			return results
		}
		s.logger.Warn("catalog search failed, using local filter", zap.String("query", query), zap.Error(err))
	}

	return localSearch(s.Products(), query)
}

func (s *CatalogService) remoteSearch(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.Product, error) {
	params := domain.SearchParams{Query: query, Sentiment: filters.Sentiment}

	if filters.Brand != "" && filters.Brand != domain.AllBrands {
		brands, err := s.client.GetBrands(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving brand %q: %w", filters.Brand, err)
		}
		for _, b := range brands {
			if b.BrandName == filters.Brand {
				id := b.BrandID
				params.BrandID = &id
				break
			}
		}
	}

	phones, err := s.client.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]domain.Product, 0, len(phones))
	for _, phone := range phones {
		results = append(results, catalogapi.TransformPhone(phone, nil))
	}
	return results, nil
}

// localSearch copies every product whose name, description or brand contains query
func localSearch(products []domain.Product, query string) []domain.Product {
	term := strings.ToLower(query)
	results := []domain.Product{}
	for _, p := range products {
		if matchesSearch(p, term) {
			results = append(results, p)
		}
	}
	return results
}

func matchesSearch(p domain.Product, lowerTerm string) bool {
	text := strings.ToLower(p.Name + " " + p.Description + " " + p.Brand)
	return strings.Contains(text, lowerTerm)
}

// PhoneDetails returns the full detail bundle for a product, or the local
// record alone when the catalog API is not in use or fails.
func (s *CatalogService) PhoneDetails(ctx context.Context, id string) (*domain.ProductDetails, error) {
	s.mu.RLock()
	remote := s.useRemote
	s.mu.RUnlock()

	local, found := s.findProduct(id)

	if remote {
		resp, err := s.client.GetPhoneDetails(ctx, id)
		if err == nil {
			product := catalogapi.TransformPhone(resp.Phone, resp.Sentiments)
			if resp.Phone.PhoneName == "" && found {
				product = local
			}
			if len(product.Topics) == 0 {
				for _, t := range resp.Topics {
					if t.TopicLabel != "" {
						product.Topics = append(product.Topics, t.TopicLabel)
					}
				}
			}
			return &domain.ProductDetails{
				Product:    product,
				Reviews:    nonNilReviews(resp.Reviews),
				Sentiments: nonNilBreakdown(resp.Sentiments),
				Topics:     nonNilTopics(resp.Topics),
				Source:     domain.SourceRemote,
			}, nil
		}
		s.logger.Warn("failed to get phone details from catalog API", zap.String("id", id), zap.Error(err))
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return &domain.ProductDetails{
		Product:    local,
		Reviews:    []domain.Review{},
		Sentiments: domain.SentimentBreakdown{},
		Topics:     []domain.TopicDetail{},
		Source:     s.current().source,
	}, nil
}

func (s *CatalogService) findProduct(id string) (domain.Product, bool) {
	for _, p := range s.Products() {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// ProcessingStats reports upstream pipeline counters. It never fails; the
// Message field says where the numbers came from.
func (s *CatalogService) ProcessingStats(ctx context.Context) domain.ProcessingStats {
	s.mu.RLock()
	remote := s.useRemote
	s.mu.RUnlock()

	if !remote {
		return domain.ProcessingStats{Message: "Using fallback data"}
	}

	stats, err := s.client.GetStats(ctx)
	if err != nil {
		s.logger.Warn("failed to get processing stats", zap.Error(err))
		return domain.ProcessingStats{Message: "Failed to fetch stats"}
	}
	return domain.ProcessingStats{
		TotalReviews:        stats.Reviews,
		ProcessedSentiments: stats.ProcessedSentiments,
		TotalTopics:         stats.Topics,
		TotalBrands:         stats.Brands,
		TotalPhones:         stats.Phones,
		Available:           true,
		Message:             "Data from catalog API",
	}
}

// ToggleSource switches between remote and fallback data. Enabling re-runs
// Initialize, or queues it behind a load already in flight; disabling loads
// the fallback set immediately and discards any remote load still in flight.
// Subscribers receive EventStatusChanged.
func (s *CatalogService) ToggleSource(ctx context.Context, useRemote bool) {
	if useRemote {
		s.mu.Lock()
		s.useRemote = true
		s.mu.Unlock()

		// A load already running picks this up before it finishes
		s.startInitialize(ctx, true)
	} else {
		s.loadMu.Lock()
		s.pendingInit = false
		s.loadMu.Unlock()

		s.mu.Lock()
		s.useRemote = false
		s.generation++
		gen := s.generation
		s.mu.Unlock()

		s.loadFallback(gen)
	}

	s.logger.Info("data source toggled", zap.Bool("use_remote", useRemote))
	s.notify(domain.EventStatusChanged)
}

// UsingRemote reports whether remote mode is selected and has produced a
// non-empty successful load
func (s *CatalogService) UsingRemote() bool {
	return s.Status().UsingRemote
}

// Status returns a point-in-time view of the coordinator
func (s *CatalogService) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loading := s.loading.Load()
	st := domain.Status{
		IsLoading: loading,
		State:     domain.StateUninitialized,
	}
	if s.snap != nil {
		st.ProductCount = len(s.snap.products)
		st.BrandCount = len(s.snap.brands)
		st.Source = s.snap.source
		st.PartialFailures = s.snap.partialFailures
		st.State = domain.StateReady
	}
	if loading {
		st.State = domain.StateLoading
	}
	if !s.lastLoad.IsZero() {
		last := s.lastLoad
		st.LastLoad = &last
	}
	st.UsingRemote = s.useRemote && st.Source == domain.SourceRemote &&
		st.ProductCount > 0 && !s.lastLoad.IsZero()
	return st
}

// Subscribe registers fn for every notification. fn runs synchronously on the
// goroutine that triggered the event and must not block. The returned
// function removes the subscription.
func (s *CatalogService) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *CatalogService) notify(eventType domain.EventType) {
	event := domain.Event{
		Type:   eventType,
		Status: s.Status(),
		At:     s.now(),
	}
	if eventType == domain.EventDataRefreshed {
		snap := s.current()
		event.Products = snap.products
		event.Brands = snap.brands
	}

	s.subMu.Lock()
	subs := append([]subscriber(nil), s.subscribers...)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(event)
	}
}

// Run refreshes on a fixed interval while the remote source is in use.
// It blocks until ctx is done. A refresh that has started runs to completion.
func (s *CatalogService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.UsingRemote() {
				s.Refresh(context.WithoutCancel(ctx))
			}
		}
	}
}

func nonNilReviews(r []domain.Review) []domain.Review {
	if r == nil {
		return []domain.Review{}
	}
	return r
}

func nonNilBreakdown(b domain.SentimentBreakdown) domain.SentimentBreakdown {
	if b == nil {
		return domain.SentimentBreakdown{}
	}
	return b
}

func nonNilTopics(t []domain.TopicDetail) []domain.TopicDetail {
	if t == nil {
		return []domain.TopicDetail{}
	}
	return t
}
