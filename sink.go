package main

import (
	"context"

	"tradegateway/internal/domain"
	"tradegateway/internal/ports"
)

// logSink is the standalone binary's event consumer: it mirrors the gateway's
// canonical event stream into the application log. A host embedding the
// gateway supplies its own ports.EventSink instead.
type logSink struct {
	logger ports.Logger
}

func (s logSink) OnOrder(order *domain.Order) {
	s.logger.Info(context.Background(), "Order event", map[string]interface{}{
		"seqNo":  order.SeqNo,
		"symbol": order.Symbol,
		"status": string(order.Status),
		"price":  order.Price,
		"volume": order.Volume,
	})
}

func (s logSink) OnTrade(trade *domain.Trade) {
	s.logger.Info(context.Background(), "Fill event", map[string]interface{}{
		"fillID": trade.FillID,
		"seqNo":  trade.SeqNo,
		"symbol": trade.Symbol,
		"price":  trade.Price,
		"volume": trade.Volume,
	})
}

func (s logSink) OnTick(tick *domain.Tick) {
	s.logger.Debug(context.Background(), "Tick", map[string]interface{}{
		"symbol": tick.Symbol,
		"price":  tick.LastPrice,
		"volume": tick.Volume,
	})
}

func (s logSink) OnLog(msg string) {
	s.logger.Info(context.Background(), msg)
}

func (s logSink) OnError(msg string) {
	s.logger.Error(context.Background(), nil, msg)
}
