// Package binancevenue implements the ports.VenueClient interface against
// Binance USD-M futures using the go-binance library: REST services for the
// request path, go-binance websocket streams for market data, and a raw
// user-data-stream listener for order/fill notifications.
package binancevenue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradegateway/internal/domain"
	"tradegateway/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// Websocket endpoints for the user data stream
	wsURLProduction = "wss://fstream.binance.com/ws/"
	wsURLTestnet    = "wss://stream.binancefuture.com/ws/"

	// The adapter serves one venue account covering all futures symbols.
	futuresAccountID = "FUTURES"
)

// Client implements the ports.VenueClient interface for Binance futures.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	useTestnet    bool

	cbMu      sync.RWMutex
	callbacks ports.VenueCallbacks

	streamMu sync.Mutex
	streams  map[string][]chan struct{} // per-symbol stop channels

	usMu       sync.Mutex
	userStream *userStream

	closeOnce sync.Once
}

// Config holds configuration specific to the Binance venue adapter.
type Config struct {
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance venue adapter. Credentials are supplied at
// Login time so that configuration and authentication stay separate.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance venue client")
	}

	client := futures.NewClient("", "")
	futures.UseTestnet = cfg.UseTestnet // routes the library's WS streams too
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance venue configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance venue configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		useTestnet:    cfg.UseTestnet,
		streams:       make(map[string][]chan struct{}),
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -2010, -2022: // New order rejected / ReduceOnly rejected
			mappedErr = ports.ErrVenueRejected
		case -2011: // Cancel rejected
			mappedErr = ports.ErrVenueRejected
		case -2013: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2014, -2015: // API key format / permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -4003, -4014, -4015: // Qty/price/leverage out of range
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Login authenticates against the venue and returns the granted accounts.
// Binance futures grants a single account covering all futures symbols; it
// is reported under the FUTURES asset class.
func (c *Client) Login(ctx context.Context, creds ports.Credentials) ([]*domain.Account, error) {
	op := "Login"
	if creds.APIKey == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("%s: %w: empty API key or secret", op, ports.ErrAuthenticationFailed)
	}

	c.futuresClient.APIKey = creds.APIKey
	c.futuresClient.SecretKey = creds.SecretKey

	// Server time sync first: a skewed clock fails every signed request.
	if _, err := c.futuresClient.NewSetServerTimeService().Do(ctx); err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	if err := c.startUserStream(ctx); err != nil {
		return nil, fmt.Errorf("%s: user stream: %w", op, err)
	}

	acc := translateAccount(account)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"accountID": acc.ID, "balance": acc.Balance})
	return []*domain.Account{acc}, nil
}

// RegisterCallbacks installs the notification handlers invoked by the
// market data and user-data stream goroutines.
func (c *Client) RegisterCallbacks(cb ports.VenueCallbacks) error {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = cb
	return nil
}

func (c *Client) getCallbacks() ports.VenueCallbacks {
	c.cbMu.RLock()
	defer c.cbMu.RUnlock()
	return c.callbacks
}

// LoadContracts bulk-loads the futures instrument table from exchange info.
func (c *Client) LoadContracts(ctx context.Context) ([]*domain.Contract, error) {
	op := "LoadContracts"
	info, err := c.futuresClient.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	contracts := make([]*domain.Contract, 0, len(info.Symbols))
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Status != "TRADING" {
			continue
		}
		contract := &domain.Contract{
			Symbol:     s.Symbol,
			Exchange:   "BINANCE",
			Name:       s.BaseAsset + "/" + s.QuoteAsset,
			AssetClass: domain.AssetFutures,
			PriceTick:  priceTick(s),
			LotSize:    lotSize(s),
		}
		contracts = append(contracts, contract)
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{"contracts": len(contracts)})
	return contracts, nil
}

// QueryAccounts fetches the current futures account balances.
func (c *Client) QueryAccounts(ctx context.Context) ([]*domain.Account, error) {
	op := "QueryAccounts"
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return []*domain.Account{translateAccount(account)}, nil
}

// QueryPositions fetches all open positions from position risk.
func (c *Client) QueryPositions(ctx context.Context) ([]*domain.Position, error) {
	op := "QueryPositions"
	risks, err := c.futuresClient.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	var positions []*domain.Position
	for _, r := range risks {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		positions = append(positions, translatePosition(r, amt))
	}
	return positions, nil
}

// PlaceOrder submits a limit (or market, when price is zero) order and
// returns the venue order id as the sequence number.
func (c *Client) PlaceOrder(ctx context.Context, accountID string, req domain.OrderRequest, exchange string) (string, error) {
	op := "PlaceOrder"

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(sideFor(req.Direction)).
		Quantity(formatQuantity(req.Volume)).
		NewClientOrderID(uuid.NewString())
	if req.Price > 0 {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatPrice(req.Price))
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}

	order, err := svc.Do(ctx)
	if err != nil {
		return "", c.handleError(ctx, err, op)
	}

	seqNo := strconv.FormatInt(order.OrderID, 10)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": req.Symbol, "seqNo": seqNo})
	return seqNo, nil
}

// CancelOrder cancels an open order by sequence number.
func (c *Client) CancelOrder(ctx context.Context, accountID, symbol, seqNo string) error {
	op := "CancelOrder"
	orderID, err := strconv.ParseInt(seqNo, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w: bad sequence number %q", op, ports.ErrInvalidRequest, seqNo)
	}

	if _, err := c.futuresClient.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "seqNo": seqNo})
	return nil
}

// ModifyOrder amends an open order. Binance futures has no in-place amend
// on this API surface, so modify is cancel-and-replace: the replacement
// order arrives through the user stream under a fresh sequence number.
func (c *Client) ModifyOrder(ctx context.Context, accountID, symbol, seqNo string, newPrice, newVolume *float64) error {
	op := "ModifyOrder"
	orderID, err := strconv.ParseInt(seqNo, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w: bad sequence number %q", op, ports.ErrInvalidRequest, seqNo)
	}

	existing, err := c.futuresClient.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}

	price, _ := strconv.ParseFloat(existing.Price, 64)
	volume, _ := strconv.ParseFloat(existing.OrigQuantity, 64)
	if newPrice != nil {
		price = *newPrice
	}
	if newVolume != nil {
		volume = *newVolume
	}

	if _, err := c.futuresClient.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}

	_, err = c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(existing.Side).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Price(formatPrice(price)).
		Quantity(formatQuantity(volume)).
		NewClientOrderID(uuid.NewString()).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}

	c.logger.Info(ctx, op+" successful (cancel/replace)", map[string]interface{}{"symbol": symbol, "seqNo": seqNo})
	return nil
}

// Ping checks connectivity to the venue API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetBars retrieves historical klines for the requested range, paging
// through the venue's per-request limit.
func (c *Client) GetBars(ctx context.Context, req domain.HistoryRequest) ([]*domain.Bar, error) {
	op := "GetBars"
	const maxLimit = 1500

	var bars []*domain.Bar
	from := req.Start
	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(req.Symbol).
			Interval(req.Interval).
			StartTime(from.UnixMilli()).
			EndTime(req.End.UnixMilli()).
			Limit(maxLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			bar, err := translateKline(k, req.Symbol, req.Interval)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
			}
			bars = append(bars, bar)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime)
		if from.After(req.End) || len(klines) < maxLimit {
			break
		}
	}
	return bars, nil
}

// Close stops all market data streams and the user data stream.
// Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.streamMu.Lock()
		for symbol, stops := range c.streams {
			for _, stop := range stops {
				close(stop)
			}
			delete(c.streams, symbol)
		}
		c.streamMu.Unlock()

		c.installUserStream(nil)
		c.logger.Info(context.Background(), "Binance venue closed")
	})
	return nil
}

// --- Translation Helpers ---

func translateAccount(account *futures.Account) *domain.Account {
	balance, _ := strconv.ParseFloat(account.TotalWalletBalance, 64)
	available, _ := strconv.ParseFloat(account.AvailableBalance, 64)
	margin, _ := strconv.ParseFloat(account.TotalInitialMargin, 64)
	return &domain.Account{
		ID:         futuresAccountID,
		AssetClass: domain.AssetFutures,
		Balance:    balance,
		Available:  available,
		Margin:     margin,
	}
}

func translatePosition(r *futures.PositionRisk, amt float64) *domain.Position {
	entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
	pnl, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)

	direction := domain.Long
	volume := amt
	if amt < 0 {
		direction = domain.Short
		volume = -amt
	}
	return &domain.Position{
		Symbol:    r.Symbol,
		Exchange:  "BINANCE",
		Direction: direction,
		Volume:    volume,
		Price:     entry,
		PNL:       pnl,
	}
}

func translateKline(k *futures.Kline, symbol, interval string) (*domain.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", k.Close, err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", k.Volume, err)
	}
	return &domain.Bar{
		Symbol:   symbol,
		Exchange: "BINANCE",
		Interval: interval,
		OpenTime: time.UnixMilli(k.OpenTime),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    cls,
		Volume:   vol,
	}, nil
}

func sideFor(d domain.Direction) futures.SideType {
	if d == domain.Short {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func priceTick(s *futures.Symbol) float64 {
	if f := s.PriceFilter(); f != nil {
		tick, _ := strconv.ParseFloat(f.TickSize, 64)
		return tick
	}
	return 0
}

func lotSize(s *futures.Symbol) float64 {
	if f := s.LotSizeFilter(); f != nil {
		step, _ := strconv.ParseFloat(f.StepSize, 64)
		return step
	}
	return 0
}

// formatPrice formats a float64 price for the Binance API.
func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// formatQuantity formats a float64 quantity for the Binance API.
func formatQuantity(quantity float64) string {
	return strconv.FormatFloat(quantity, 'f', -1, 64)
}
