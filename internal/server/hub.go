package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketdash/internal/metrics"
	"marketdash/internal/model"
	"marketdash/internal/provider"
	redisstore "marketdash/internal/store/redis"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// subscribeMsg is the single client→server message: pick a symbol to follow.
type subscribeMsg struct {
	Symbol string `json:"symbol"`
}

// client is one connected dashboard tab.
type client struct {
	conn *websocket.Conn

	mu     sync.Mutex // guards symbol and writes to conn
	symbol string
}

func (c *client) subscribed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.symbol
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub pushes live quotes to WebSocket subscribers. It polls the provider
// once per interval for the set of currently subscribed symbols and
// broadcasts each quote to the clients following that symbol.
type Hub struct {
	fetcher  provider.Fetcher
	cache    *redisstore.Cache
	interval time.Duration
	prom     *metrics.Metrics
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a quote hub. cache and prom may be nil.
func NewHub(fetcher provider.Fetcher, cache *redisstore.Cache, interval time.Duration,
	prom *metrics.Metrics, log *slog.Logger) *Hub {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		fetcher:  fetcher,
		cache:    cache,
		interval: interval,
		prom:     prom,
		log:      log,
		clients:  make(map[*client]struct{}),
	}
}

// Run polls and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pollAndBroadcast(ctx)
		}
	}
}

func (h *Hub) pollAndBroadcast(ctx context.Context) {
	symbols := h.subscribedSymbols()
	if len(symbols) == 0 {
		return
	}

	for _, sym := range symbols {
		fetchCtx, cancel := context.WithTimeout(ctx, h.interval)
		t0 := time.Now()
		price, err := h.fetcher.FetchCurrentPrice(fetchCtx, sym)
		cancel()
		h.prom.ObserveProviderFetch("current_price", time.Since(t0), err)
		if err != nil {
			h.log.Warn("quote poll failed", slog.String("symbol", sym), slog.Any("err", err))
			continue
		}

		quote := model.Quote{Symbol: sym, Price: price, TS: time.Now().UTC()}
		h.cache.SetQuote(ctx, quote)
		h.broadcast(&quote)
	}
}

func (h *Hub) subscribedSymbols() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[string]bool, len(h.clients))
	var out []string
	for c := range h.clients {
		if sym := c.subscribed(); sym != "" && !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

func (h *Hub) broadcast(q *model.Quote) {
	payload := q.JSON()

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.subscribed() == q.Symbol {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(payload); err != nil {
			h.drop(c)
		}
	}
	if len(targets) > 0 {
		h.prom.QuotePublished()
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.conn.Close()
		h.prom.WSClientDisconnected()
	}
}

// HandleWS upgrades the connection and reads subscribe messages until the
// client goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", slog.Any("err", err))
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.prom.WSClientConnected()

	defer h.drop(c)

	for {
		var msg subscribeMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		sym := strings.ToUpper(strings.TrimSpace(msg.Symbol))
		c.mu.Lock()
		c.symbol = sym
		c.mu.Unlock()
	}
}
