package binancevenue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tradegateway/internal/domain"
	"tradegateway/internal/ports"

	"github.com/adshao/go-binance/v2/futures"
)

// bookDepth is the partial-depth stream level; it matches domain.BookLevels.
const bookDepth = 5

// Subscribe starts an aggregated-trade stream and a partial-depth stream
// for every symbol in the batch. Binance futures exposes a single channel
// regardless of the requested asset class, so the class only shows up in
// logging. If any symbol fails, streams already started for this batch are
// torn down and the whole batch fails.
func (c *Client) Subscribe(ctx context.Context, channel domain.AssetClass, symbols []string) error {
	op := "Subscribe"

	started := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if err := c.startSymbolStreams(ctx, symbol); err != nil {
			for _, s := range started {
				c.stopSymbolStreams(s)
			}
			return fmt.Errorf("%s %s: %w", op, symbol, err)
		}
		started = append(started, symbol)
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{"channel": string(channel), "symbols": symbols})
	return nil
}

// Unsubscribe stops the streams for every symbol in the batch. Symbols
// without active streams are ignored.
func (c *Client) Unsubscribe(ctx context.Context, channel domain.AssetClass, symbols []string) error {
	for _, symbol := range symbols {
		c.stopSymbolStreams(symbol)
	}
	c.logger.Info(ctx, "Unsubscribe successful", map[string]interface{}{"channel": string(channel), "symbols": symbols})
	return nil
}

// startSymbolStreams opens the trade and depth websocket streams for one
// symbol and records their stop channels.
func (c *Client) startSymbolStreams(ctx context.Context, symbol string) error {
	c.streamMu.Lock()
	if _, ok := c.streams[symbol]; ok {
		c.streamMu.Unlock()
		return nil // already streaming
	}
	c.streamMu.Unlock()

	wsErrHandler := func(err error) {
		c.logger.Warn(context.Background(), "Market data stream error",
			map[string]interface{}{"symbol": symbol, "error": err.Error()})
	}

	_, tradeStop, err := futures.WsAggTradeServe(symbol, c.onAggTrade, wsErrHandler)
	if err != nil {
		return c.handleError(ctx, err, "WsAggTradeServe")
	}

	_, depthStop, err := futures.WsPartialDepthServe(symbol, bookDepth, c.onDepth, wsErrHandler)
	if err != nil {
		close(tradeStop)
		return c.handleError(ctx, err, "WsPartialDepthServe")
	}

	c.streamMu.Lock()
	c.streams[symbol] = []chan struct{}{tradeStop, depthStop}
	c.streamMu.Unlock()
	return nil
}

func (c *Client) stopSymbolStreams(symbol string) {
	c.streamMu.Lock()
	stops, ok := c.streams[symbol]
	if ok {
		delete(c.streams, symbol)
	}
	c.streamMu.Unlock()
	for _, stop := range stops {
		close(stop)
	}
}

// onAggTrade translates an aggregated trade event into a trade-kind tick
// message on the stream's delivery goroutine.
func (c *Client) onAggTrade(event *futures.WsAggTradeEvent) {
	cb := c.getCallbacks()
	if cb.OnTickTrade == nil {
		return
	}
	price, err := strconv.ParseFloat(event.Price, 64)
	if err != nil {
		c.logger.Warn(context.Background(), "Malformed trade price dropped",
			map[string]interface{}{"symbol": event.Symbol, "price": event.Price})
		return
	}
	volume, _ := strconv.ParseFloat(event.Quantity, 64)
	cb.OnTickTrade(ports.TickTrade{
		Symbol: event.Symbol,
		Price:  price,
		Volume: volume,
		Time:   time.UnixMilli(event.Time),
	})
}

// onDepth translates a partial book snapshot into a book-kind tick message.
func (c *Client) onDepth(event *futures.WsDepthEvent) {
	cb := c.getCallbacks()
	if cb.OnTickBook == nil {
		return
	}

	msg := ports.TickBook{Symbol: event.Symbol}
	for i, lvl := range event.Bids {
		if i >= domain.BookLevels {
			break
		}
		price, _ := strconv.ParseFloat(lvl.Price, 64)
		qty, _ := strconv.ParseFloat(lvl.Quantity, 64)
		msg.BidPrice = append(msg.BidPrice, price)
		msg.BidVolume = append(msg.BidVolume, qty)
	}
	for i, lvl := range event.Asks {
		if i >= domain.BookLevels {
			break
		}
		price, _ := strconv.ParseFloat(lvl.Price, 64)
		qty, _ := strconv.ParseFloat(lvl.Quantity, 64)
		msg.AskPrice = append(msg.AskPrice, price)
		msg.AskVolume = append(msg.AskVolume, qty)
	}
	cb.OnTickBook(msg)
}
