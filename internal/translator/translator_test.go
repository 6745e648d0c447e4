package translator

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"tradegateway/internal/domain"
	"tradegateway/internal/pipeline"
	"tradegateway/internal/ports"
	"tradegateway/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// recordSink captures dispatched order and trade events.
type recordSink struct {
	ports.NopSink
	mu     sync.Mutex
	orders []*domain.Order
	trades []*domain.Trade
	logs   []string
	errs   []string
}

func (s *recordSink) OnOrder(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

func (s *recordSink) OnTrade(tr *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, tr)
}

func (s *recordSink) OnLog(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, msg)
}

func (s *recordSink) OnError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, msg)
}

// fakeCache returns a fixed snapshot for trades and nil for books,
// mimicking the book-before-trade drop.
type fakeCache struct {
	mu         sync.Mutex
	trades     int
	books      int
	bookResult *domain.Tick
}

func (c *fakeCache) ApplyTrade(msg ports.TickTrade) *domain.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades++
	return &domain.Tick{Symbol: msg.Symbol, LastPrice: msg.Price}
}

func (c *fakeCache) ApplyBook(msg ports.TickBook) *domain.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books++
	return c.bookResult
}

func newTestTranslator(t *testing.T) (*Translator, *repository.Repositories, *recordSink, *pipeline.Pipeline, *fakeCache) {
	t.Helper()
	repos := repository.NewRepositories()
	repos.Contracts.Put("ETHUSDT", &domain.Contract{
		Symbol:     "ETHUSDT",
		Exchange:   "BINANCE",
		AssetClass: domain.AssetFutures,
	})
	sink := &recordSink{}
	pipe := pipeline.New(10, sink, &mockLogger{})
	cache := &fakeCache{}
	trans, err := New(repos, sink, pipe, cache, &mockLogger{})
	require.NoError(t, err)
	return trans, repos, sink, pipe, cache
}

func TestTranslator_OnOrderAckStoresAndDispatches(t *testing.T) {
	trans, repos, sink, _, _ := newTestTranslator(t)

	trans.OnOrderAck(ports.OrderNotice{
		SeqNo:     "42",
		Symbol:    "ETHUSDT",
		Direction: domain.Long,
		Price:     2500,
		Volume:    1,
		Status:    domain.StatusAccepted,
		Time:      time.Now(),
	})

	order, ok := repos.Orders.Get("42")
	require.True(t, ok)
	assert.Equal(t, domain.StatusAccepted, order.Status)
	assert.Equal(t, "BINANCE", order.Exchange)

	require.Len(t, sink.orders, 1)
	assert.NotSame(t, order, sink.orders[0], "sink must receive a copy, not the stored order")
	assert.Equal(t, "42", sink.orders[0].SeqNo)
}

func TestTranslator_OnOrderAckUnknownSymbolDropped(t *testing.T) {
	trans, repos, sink, _, _ := newTestTranslator(t)

	trans.OnOrderAck(ports.OrderNotice{SeqNo: "7", Symbol: "DOGEUSDT"})

	_, ok := repos.Orders.Get("7")
	assert.False(t, ok)
	assert.Empty(t, sink.orders)
}

func TestTranslator_OnOrderChangedUpdatesExisting(t *testing.T) {
	trans, repos, sink, _, _ := newTestTranslator(t)

	trans.OnOrderAck(ports.OrderNotice{SeqNo: "1", Symbol: "ETHUSDT", Price: 2500, Volume: 1, Status: domain.StatusAccepted})
	trans.OnOrderChanged(ports.OrderNotice{SeqNo: "1", Symbol: "ETHUSDT", Price: 2600, Status: domain.StatusCancelled})

	order, ok := repos.Orders.Get("1")
	require.True(t, ok)
	assert.Equal(t, 2600.0, order.Price)
	assert.Equal(t, 1.0, order.Volume, "unmentioned attributes keep their value")
	assert.Equal(t, domain.StatusCancelled, order.Status)
	assert.Len(t, sink.orders, 2)
}

func TestTranslator_OnOrderChangedUnseenSeqActsAsAck(t *testing.T) {
	trans, repos, _, _, _ := newTestTranslator(t)

	trans.OnOrderChanged(ports.OrderNotice{SeqNo: "9", Symbol: "ETHUSDT", Status: domain.StatusAccepted})

	_, ok := repos.Orders.Get("9")
	assert.True(t, ok, "a change for an unseen order is treated as an ack")
}

func TestTranslator_OnFillForcesFilledAndRecordsTrade(t *testing.T) {
	trans, repos, sink, _, _ := newTestTranslator(t)

	trans.OnOrderAck(ports.OrderNotice{SeqNo: "5", Symbol: "ETHUSDT", Volume: 2, Status: domain.StatusAccepted})
	trans.OnFill(ports.FillNotice{
		FillID: "f1",
		SeqNo:  "5",
		Symbol: "ETHUSDT",
		Price:  2550,
		Volume: 0.5, // partial quantity; status is still forced to filled
	})

	order, ok := repos.Orders.Get("5")
	require.True(t, ok)
	assert.Equal(t, domain.StatusFilled, order.Status)

	fills := repos.Fills.ByOrder("5")
	require.Len(t, fills, 1)
	assert.Equal(t, "f1", fills[0].FillID)
	assert.Equal(t, "BINANCE", fills[0].Exchange)

	require.Len(t, sink.trades, 1)
	assert.Equal(t, "f1", sink.trades[0].FillID)
	require.Len(t, sink.orders, 2, "the forced status change is dispatched too")
	assert.Equal(t, domain.StatusFilled, sink.orders[1].Status)
}

func TestTranslator_NotificationsReplaceStoredOrders(t *testing.T) {
	trans, repos, _, _, _ := newTestTranslator(t)

	trans.OnOrderAck(ports.OrderNotice{SeqNo: "7", Symbol: "ETHUSDT", Volume: 1, Status: domain.StatusAccepted})
	before, ok := repos.Orders.Get("7")
	require.True(t, ok)

	trans.OnFill(ports.FillNotice{FillID: "f1", SeqNo: "7", Symbol: "ETHUSDT", Price: 2500, Volume: 1})

	after, ok := repos.Orders.Get("7")
	require.True(t, ok)
	assert.NotSame(t, before, after, "translation must swap in a rebuilt copy")
	assert.Equal(t, domain.StatusAccepted, before.Status, "earlier reads keep their snapshot")
	assert.Equal(t, domain.StatusFilled, after.Status)
}

func TestTranslator_ConcurrentChangeAndFillSameOrder(t *testing.T) {
	trans, repos, _, _, _ := newTestTranslator(t)

	trans.OnOrderAck(ports.OrderNotice{SeqNo: "7", Symbol: "ETHUSDT", Volume: 10, Status: domain.StatusAccepted})

	// Venue callbacks for the same order can land on different goroutines.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		fillID := "f" + strconv.Itoa(i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			trans.OnOrderChanged(ports.OrderNotice{
				SeqNo: "7", Symbol: "ETHUSDT", Status: domain.StatusPartFilled, Time: time.Now(),
			})
		}()
		go func() {
			defer wg.Done()
			trans.OnFill(ports.FillNotice{
				FillID: fillID, SeqNo: "7", Symbol: "ETHUSDT", Price: 2500, Volume: 0.2, Time: time.Now(),
			})
		}()
	}
	wg.Wait()

	order, ok := repos.Orders.Get("7")
	require.True(t, ok)
	assert.Contains(t, []domain.OrderStatus{domain.StatusPartFilled, domain.StatusFilled}, order.Status)
	assert.Equal(t, 50, repos.Fills.Len(), "every fill must be recorded exactly once")
}

func TestTranslator_OnFillUnknownSymbolDropped(t *testing.T) {
	trans, repos, sink, _, _ := newTestTranslator(t)

	trans.OnFill(ports.FillNotice{FillID: "f1", SeqNo: "5", Symbol: "DOGEUSDT"})

	assert.Equal(t, 0, repos.Fills.Len())
	assert.Empty(t, sink.trades)
}

func TestTranslator_TickRouting(t *testing.T) {
	trans, _, _, pipe, cache := newTestTranslator(t)

	trans.OnTickTrade(ports.TickTrade{Symbol: "ETHUSDT", Price: 2500})
	assert.Equal(t, 1, pipe.Len(), "trade snapshot must be enqueued")

	// Cache reports a drop (book before any trade): nothing is enqueued.
	trans.OnTickBook(ports.TickBook{Symbol: "ETHUSDT"})
	assert.Equal(t, 1, pipe.Len())
	assert.Equal(t, 1, cache.books)

	cache.bookResult = &domain.Tick{Symbol: "ETHUSDT"}
	trans.OnTickBook(ports.TickBook{Symbol: "ETHUSDT"})
	assert.Equal(t, 2, pipe.Len())
}

func TestTranslator_OnSessionEventRouting(t *testing.T) {
	trans, _, sink, _, _ := newTestTranslator(t)

	trans.OnSessionEvent(ports.SessionEvent{Kind: ports.SessionEventInfo, Message: "hello"})
	trans.OnSessionEvent(ports.SessionEvent{Kind: ports.SessionEventError, Message: "boom"})

	assert.Equal(t, []string{"hello"}, sink.logs)
	assert.Equal(t, []string{"boom"}, sink.errs)
}

func TestTranslator_RecoverFromPanickingSink(t *testing.T) {
	repos := repository.NewRepositories()
	repos.Contracts.Put("ETHUSDT", &domain.Contract{Symbol: "ETHUSDT", Exchange: "BINANCE"})
	pipe := pipeline.New(10, ports.NopSink{}, &mockLogger{})
	trans, err := New(repos, panicOrderSink{}, pipe, nil, &mockLogger{})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		trans.OnOrderAck(ports.OrderNotice{SeqNo: "1", Symbol: "ETHUSDT"})
	})
}

type panicOrderSink struct{ ports.NopSink }

func (panicOrderSink) OnOrder(*domain.Order) { panic("host sink exploded") }
