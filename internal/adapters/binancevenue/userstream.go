package binancevenue

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"tradegateway/internal/domain"
	"tradegateway/internal/ports"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

const (
	// Binance invalidates an idle listen key after 60 minutes.
	keepaliveInterval = 30 * time.Minute
	readTimeout       = 90 * time.Second
	handshakeTimeout  = 10 * time.Second
)

// userStream maintains the user-data websocket: the order/fill notification
// channel. It redials with exponential backoff; a listen-key expiry is
// surfaced as a session disconnect event so the supervisor can rebuild the
// session.
type userStream struct {
	client *Client

	mu        sync.Mutex
	listenKey string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// startUserStream obtains a listen key and launches the read and keepalive
// loops. Called from Login.
func (c *Client) startUserStream(ctx context.Context) error {
	key, err := c.futuresClient.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, "StartUserStream")
	}

	us := &userStream{client: c, listenKey: key}
	runCtx, cancel := context.WithCancel(context.Background())
	us.cancel = cancel

	us.wg.Add(2)
	c.installUserStream(us)
	go us.readLoop(runCtx)
	go us.keepaliveLoop(runCtx)
	return nil
}

// installUserStream swaps the active user stream, stopping the previous one
// so a re-login never leaves two read loops dispatching the same
// notifications. Pass nil to stop without replacement.
func (c *Client) installUserStream(us *userStream) {
	c.usMu.Lock()
	defer c.usMu.Unlock()
	if c.userStream != nil {
		c.userStream.stop()
	}
	c.userStream = us
}

func (u *userStream) stop() {
	if u.cancel != nil {
		u.cancel()
	}
	u.wg.Wait()
}

func (u *userStream) url() string {
	base := wsURLProduction
	if u.client.useTestnet {
		base = wsURLTestnet
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return base + u.listenKey
}

// readLoop dials, reads and dispatches until the context is cancelled,
// redialing with backoff after any connection failure.
func (u *userStream) readLoop(ctx context.Context) {
	defer u.wg.Done()

	retry := &backoff.Backoff{Min: time.Second, Max: time.Minute, Jitter: true}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := u.dial(ctx)
		if err != nil {
			delay := retry.Duration()
			u.client.logger.Warn(ctx, "User stream dial failed, retrying",
				map[string]interface{}{"delay": delay.String(), "error": err.Error()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}
		retry.Reset()
		u.client.logger.Info(ctx, "User stream connected")

		u.readMessages(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		u.client.logger.Warn(ctx, "User stream connection lost, reconnecting")
	}
}

func (u *userStream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.url(), nil)
	return conn, err
}

// readMessages pumps one connection until it fails or the context ends.
func (u *userStream) readMessages(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		u.dispatch(raw)
	}
}

// keepaliveLoop refreshes the listen key before the venue expires it.
func (u *userStream) keepaliveLoop(ctx context.Context) {
	defer u.wg.Done()
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.mu.Lock()
			key := u.listenKey
			u.mu.Unlock()
			err := u.client.futuresClient.NewKeepaliveUserStreamService().ListenKey(key).Do(ctx)
			if err != nil {
				u.client.logger.Warn(ctx, "User stream keepalive failed",
					map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// --- User data event parsing ---

type userEvent struct {
	EventType string       `json:"e"`
	EventTime int64        `json:"E"`
	Order     *orderUpdate `json:"o,omitempty"`
}

// orderUpdate is the ORDER_TRADE_UPDATE payload, in Binance's short-key form.
type orderUpdate struct {
	Symbol       string `json:"s"`
	Side         string `json:"S"`
	OrderID      int64  `json:"i"`
	Price        string `json:"p"`
	OrigQty      string `json:"q"`
	ExecType     string `json:"x"`
	OrderStatus  string `json:"X"`
	LastFillQty  string `json:"l"`
	LastFillPx   string `json:"L"`
	TradeID      int64  `json:"t"`
	TradeTime    int64  `json:"T"`
	AvgPrice     string `json:"ap"`
	CumFilledQty string `json:"z"`
}

// dispatch routes one raw user-stream frame to the registered callbacks.
// Malformed frames are logged and dropped; they are not re-deliverable.
func (u *userStream) dispatch(raw []byte) {
	ctx := context.Background()
	var event userEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		u.client.logger.Warn(ctx, "Malformed user stream frame dropped",
			map[string]interface{}{"error": err.Error()})
		return
	}

	cb := u.client.getCallbacks()
	switch event.EventType {
	case "ORDER_TRADE_UPDATE":
		if event.Order == nil {
			u.client.logger.Warn(ctx, "Order update frame without payload dropped")
			return
		}
		u.dispatchOrder(cb, event.Order)
	case "listenKeyExpired":
		if cb.OnSessionEvent != nil {
			cb.OnSessionEvent(ports.SessionEvent{
				Kind:    ports.SessionEventDisconnected,
				Message: "user stream listen key expired",
			})
		}
	case "ACCOUNT_UPDATE":
		// Balance/position deltas; position state is refreshed by query.
	default:
		u.client.logger.Debug(ctx, "Unhandled user stream event",
			map[string]interface{}{"eventType": event.EventType})
	}
}

func (u *userStream) dispatchOrder(cb ports.VenueCallbacks, o *orderUpdate) {
	notice := ports.OrderNotice{
		SeqNo:     strconv.FormatInt(o.OrderID, 10),
		Symbol:    o.Symbol,
		Direction: directionFor(o.Side),
		Status:    statusFor(o.OrderStatus),
		Time:      time.UnixMilli(o.TradeTime),
	}
	notice.Price, _ = strconv.ParseFloat(o.Price, 64)
	notice.Volume, _ = strconv.ParseFloat(o.OrigQty, 64)

	switch o.ExecType {
	case "NEW":
		if cb.OnOrderAck != nil {
			cb.OnOrderAck(notice)
		}
	case "TRADE":
		if cb.OnFill != nil {
			fill := ports.FillNotice{
				FillID:    strconv.FormatInt(o.TradeID, 10),
				SeqNo:     notice.SeqNo,
				Symbol:    o.Symbol,
				Direction: notice.Direction,
				Time:      notice.Time,
			}
			fill.Price, _ = strconv.ParseFloat(o.LastFillPx, 64)
			fill.Volume, _ = strconv.ParseFloat(o.LastFillQty, 64)
			cb.OnFill(fill)
		}
	default:
		if cb.OnOrderChanged != nil {
			cb.OnOrderChanged(notice)
		}
	}
}

func directionFor(side string) domain.Direction {
	if side == "SELL" {
		return domain.Short
	}
	return domain.Long
}

func statusFor(status string) domain.OrderStatus {
	switch status {
	case "NEW":
		return domain.StatusAccepted
	case "PARTIALLY_FILLED":
		return domain.StatusPartFilled
	case "FILLED":
		return domain.StatusFilled
	case "CANCELED", "EXPIRED":
		return domain.StatusCancelled
	case "REJECTED":
		return domain.StatusRejected
	default:
		return domain.StatusSubmitted
	}
}
