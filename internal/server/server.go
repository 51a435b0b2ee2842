// Package server exposes the dashboard HTTP API, the live quote WebSocket
// stream, and the embedded dashboard page.
package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketdash/internal/logger"
	"marketdash/internal/metrics"
	"marketdash/internal/model"
	"marketdash/internal/provider"
	"marketdash/internal/service"
)

//go:embed web/dashboard.html
var dashboardHTML []byte

const (
	defaultSymbol = "AAPL"
	defaultStart  = "2024-01-01"
)

// Server wires the service layer to HTTP routes.
type Server struct {
	svc     *service.Service
	hub     *Hub
	tickers []model.TickerInfo
	prom    *metrics.Metrics
	log     *slog.Logger
}

// New creates a Server. hub and prom may be nil.
func New(svc *service.Service, hub *Hub, tickers []model.TickerInfo,
	prom *metrics.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc:     svc,
		hub:     hub,
		tickers: tickers,
		prom:    prom,
		log:     log,
	}
}

// Routes sets up all HTTP routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/get_stock_data", s.instrument("get_stock_data", s.handleStockData))
	mux.HandleFunc("/api/export_csv", s.instrument("export_csv", s.handleExportCSV))
	mux.HandleFunc("/api/tickers", s.instrument("tickers", s.handleTickers))

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.HandleWS)
	}

	return mux
}

// setCORS sets CORS headers for REST endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with CORS, timing, and request counting.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		h(rec, r)
		s.prom.ObserveRequest(endpoint, strconv.Itoa(rec.code), time.Since(start))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// requestScope holds the validated query parameters of a data request.
type requestScope struct {
	symbol     string
	start, end time.Time
}

func parseScope(r *http.Request) (requestScope, error) {
	q := r.URL.Query()

	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	if symbol == "" {
		symbol = defaultSymbol
	}

	startStr := q.Get("start")
	if startStr == "" {
		startStr = defaultStart
	}
	endStr := q.Get("end")
	if endStr == "" {
		endStr = time.Now().UTC().Format("2006-01-02")
	}

	start, err := model.ParseDate(startStr)
	if err != nil {
		return requestScope{}, errors.New("invalid start date, expected YYYY-MM-DD")
	}
	end, err := model.ParseDate(endStr)
	if err != nil {
		return requestScope{}, errors.New("invalid end date, expected YYYY-MM-DD")
	}
	if start.After(end.Time) {
		return requestScope{}, errors.New("start date is after end date")
	}

	return requestScope{symbol: symbol, start: start.Time, end: end.Time}, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(dashboardHTML)
}

func (s *Server) handleStockData(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := logger.WithRequestID(r.Context(), logger.NewRequestID(scope.symbol, time.Now()))
	s.log.Debug("fetching stock data",
		append([]any{
			slog.String("symbol", scope.symbol),
			slog.String("start", scope.start.Format("2006-01-02")),
			slog.String("end", scope.end.Format("2006-01-02")),
		}, logger.WithRequest(ctx)...)...)

	data, err := s.svc.CombinedData(ctx, scope.symbol, scope.start, scope.end)
	if err != nil {
		s.writeDataError(w, scope.symbol, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := logger.WithRequestID(r.Context(), logger.NewRequestID(scope.symbol, time.Now()))
	export, err := s.svc.ExportCSV(ctx, scope.symbol, scope.start, scope.end)
	if err != nil {
		s.writeDataError(w, scope.symbol, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tickers)
}

// writeDataError maps service errors to the explicit empty-data contract:
// no-data → 404, provider trouble → 502, anything else → 500.
func (s *Server) writeDataError(w http.ResponseWriter, symbol string, err error) {
	switch {
	case errors.Is(err, service.ErrNoData):
		writeError(w, http.StatusNotFound, "No data available for the specified date range")
	case errors.Is(err, provider.ErrCircuitOpen):
		writeError(w, http.StatusBadGateway, "market data provider unavailable")
	default:
		s.log.Error("request failed", slog.String("symbol", symbol), slog.Any("err", err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
