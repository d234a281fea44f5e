package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"kitchen-order-service/internal/auth"
	"kitchen-order-service/internal/config"
	"kitchen-order-service/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server pushes the day's active orders to kitchen screens. Updates are
// detected by polling max(updated_at) per subscribed date.
type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config

	board *kitchenBoardRealtime
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	interval := cfg.WSKitchenPollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Server{
		DB:     db,
		Logger: logger,
		Config: cfg,
		board:  newKitchenBoardRealtime(db, logger, interval),
	}
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

type kitchenBoardRealtime struct {
	db       *pgxpool.Pool
	logger   *zap.Logger
	interval time.Duration

	started  sync.Once
	mu       sync.RWMutex
	subs     map[string]map[*wsClient]struct{}
	lastSeen map[string]boardStamp
}

// boardStamp is the change signal for one date: the newest updated_at over
// every order on the date regardless of status, plus the count of active
// ones. The watermark alone misses an active order being deleted; the count
// alone misses an edit. Together a snapshot goes out for both.
type boardStamp struct {
	UpdatedAt   time.Time
	ActiveCount int64
}

func (s boardStamp) changedSince(prev boardStamp) bool {
	return s.UpdatedAt.After(prev.UpdatedAt) || s.ActiveCount != prev.ActiveCount
}

func newKitchenBoardRealtime(db *pgxpool.Pool, logger *zap.Logger, interval time.Duration) *kitchenBoardRealtime {
	return &kitchenBoardRealtime{
		db:       db,
		logger:   logger,
		interval: interval,
		subs:     make(map[string]map[*wsClient]struct{}),
		lastSeen: make(map[string]boardStamp),
	}
}

func (kb *kitchenBoardRealtime) ensureStarted() {
	kb.started.Do(func() {
		go kb.pollLoop(context.Background())
	})
}

func (kb *kitchenBoardRealtime) subscribe(date string, client *wsClient) (unsubscribe func()) {
	key := strings.TrimSpace(date)
	if key == "" {
		return func() {}
	}

	kb.mu.Lock()
	if kb.subs[key] == nil {
		kb.subs[key] = make(map[*wsClient]struct{})
	}
	kb.subs[key][client] = struct{}{}
	kb.mu.Unlock()

	return func() {
		kb.mu.Lock()
		clients := kb.subs[key]
		delete(clients, client)
		if len(clients) == 0 {
			delete(kb.subs, key)
			delete(kb.lastSeen, key)
		}
		kb.mu.Unlock()
	}
}

func (kb *kitchenBoardRealtime) broadcast(date string, message any) {
	kb.mu.RLock()
	clientsMap := kb.subs[date]
	clients := make([]*wsClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	kb.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			kb.mu.Lock()
			if current := kb.subs[date]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(kb.subs, date)
					delete(kb.lastSeen, date)
				}
			}
			kb.mu.Unlock()
		}
	}
}

func (kb *kitchenBoardRealtime) subscribedDates() []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	dates := make([]string, 0, len(kb.subs))
	for date := range kb.subs {
		dates = append(dates, date)
	}
	return dates
}

func (kb *kitchenBoardRealtime) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(kb.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, date := range kb.subscribedDates() {
			stamp, err := kb.fetchBoardStamp(ctx, date)
			if err != nil {
				kb.logger.Warn("kitchen board poll failed", zap.Error(err), zap.String("date", date))
				continue
			}

			kb.mu.RLock()
			last := kb.lastSeen[date]
			kb.mu.RUnlock()
			if !stamp.changedSince(last) {
				continue
			}

			orders, err := kb.fetchBoardOrders(ctx, date)
			if err != nil {
				kb.logger.Warn("kitchen board fetch failed", zap.Error(err), zap.String("date", date))
				continue
			}

			kb.mu.Lock()
			kb.lastSeen[date] = stamp
			kb.mu.Unlock()

			kb.broadcast(date, map[string]any{"type": "orders.state", "date": date, "data": orders})
		}
	}
}

func (kb *kitchenBoardRealtime) fetchBoardStamp(ctx context.Context, date string) (boardStamp, error) {
	var stamp boardStamp
	err := kb.db.QueryRow(ctx, `
		select coalesce(max(updated_at), 'epoch'::timestamptz),
			count(*) filter (where status = 'active')
		from orders
		where event_date = $1::date
	`, date).Scan(&stamp.UpdatedAt, &stamp.ActiveCount)
	return stamp, err
}

// BoardOrder is the kitchen screen's view of one order.
type BoardOrder struct {
	ID           int64   `json:"id"`
	CustomerName string  `json:"customerName"`
	EventTime    *string `json:"eventTime"`
	Portions     int32   `json:"portions"`
	Notes        *string `json:"notes"`
	ItemCount    int64   `json:"itemCount"`
	UpdatedAt    string  `json:"updatedAt"`
}

func (kb *kitchenBoardRealtime) fetchBoardOrders(ctx context.Context, date string) ([]BoardOrder, error) {
	rows, err := kb.db.Query(ctx, `
		select o.id, c.name, o.event_time, o.portions, o.notes,
			(select count(*) from order_items oi where oi.order_id = o.id),
			to_char(o.updated_at at time zone 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		from orders o
		join customers c on c.id = o.customer_id
		where o.event_date = $1::date and o.status = 'active'
		order by o.event_time nulls last, o.id
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]BoardOrder, 0)
	for rows.Next() {
		var (
			o         BoardOrder
			eventTime pgtype.Text
			notes     pgtype.Text
		)
		if err := rows.Scan(&o.ID, &o.CustomerName, &eventTime, &o.Portions, &notes, &o.ItemCount, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if eventTime.Valid {
			o.EventTime = &eventTime.String
		}
		if notes.Valid {
			o.Notes = &notes.String
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// KitchenOrdersWS upgrades the connection and streams active-order
// snapshots for one date. The staff token rides in the query string since
// browsers cannot set websocket headers.
func (s *Server) KitchenOrdersWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if _, err := auth.VerifyAccessToken(token, s.Config.JWTSecret); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = utils.CurrentDateInTimezone(s.Config.Timezone)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.board.ensureStarted()
	ctx := r.Context()
	client := &wsClient{conn: conn}
	unsubscribe := s.board.subscribe(date, client)
	defer unsubscribe()

	// Initial snapshot before the first poll tick.
	if orders, fetchErr := s.board.fetchBoardOrders(ctx, date); fetchErr == nil {
		_ = client.writeJSON(map[string]any{"type": "orders.state", "date": date, "data": orders})
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	heartbeat := s.Config.WSHeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.writeJSON(map[string]any{"type": "ping", "at": time.Now().UTC()}); err != nil {
				return
			}
		}
	}
}
