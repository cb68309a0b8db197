// Package orders serves and consumes the Amazon order lookup worker.
package orders

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/orderid"
)

// ServerConfig controls the worker HTTP service.
type ServerConfig struct {
	Addr string
	// APIKey, when set, must be sent as a bearer token on every route
	// except /health and preflight requests.
	APIKey string
	// The Has* flags are reported by /health.
	HasCredentials bool
	HasCache       bool
	HasDatabase    bool
	Logger         logrus.FieldLogger
	Now            func() time.Time
}

// Server is the orders worker.
type Server struct {
	cfg ServerConfig
	log logrus.FieldLogger
}

var availableEndpoints = []string{
	"GET /health",
	"POST /parse",
	"GET /order/:id",
	"POST /bulk",
}

// NewServer returns a worker with defaults applied.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8788"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Server{cfg: cfg, log: log.WithField("component", "orders")}
}

// Handler returns the worker routes wrapped in CORS and key checks.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// Health and order lookups answer on any method.
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("POST /parse", s.handleParse)
	mux.HandleFunc("/order/{id...}", s.handleOrder)
	mux.HandleFunc("POST /bulk", s.handleBulk)
	mux.HandleFunc("/", s.handleNotFound)
	return s.withCORS(s.withKey(mux))
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.WithField("addr", s.cfg.Addr).Info("orders worker listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("orders http server: %w", err)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.APIKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HealthResponse is served at /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	HasCredentials bool   `json:"has_credentials"`
	HasCache       bool   `json:"has_cache"`
	HasDatabase    bool   `json:"has_database"`
	Note           string `json:"note"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Message:        "Amazon Orders Worker",
		HasCredentials: s.cfg.HasCredentials,
		HasCache:       s.cfg.HasCache,
		HasDatabase:    s.cfg.HasDatabase,
		Note:           "Order lookups return mock data.",
	})
}

// ParseResult reports the order id found in one merchant string.
type ParseResult struct {
	Merchant string  `json:"merchant"`
	OrderID  *string `json:"order_id"`
	Found    bool    `json:"found"`
}

func parseMerchant(merchant string) ParseResult {
	res := ParseResult{Merchant: merchant}
	if id, ok := orderid.ExtractFromMerchant(merchant); ok {
		res.OrderID = &id
		res.Found = true
	}
	return res
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Merchant string `json:"merchant"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	res := parseMerchant(body.Merchant)
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		ParseResult
	}{true, res})
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Merchants []string `json:"merchants"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	results := make([]ParseResult, 0, len(body.Merchants))
	for _, m := range body.Merchants {
		results = append(results, parseMerchant(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Order ID required"})
		return
	}
	s.log.WithField("order_id", id).Debug("mock order lookup")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": toWire(s.mockOrder(id))})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":               "Not found",
		"available_endpoints": availableEndpoints,
	})
}

func (s *Server) mockOrder(id string) model.AmazonOrder {
	price := decimal.RequireFromString("49.99")
	return model.AmazonOrder{
		OrderID:     id,
		OrderDate:   s.cfg.Now().Format(model.DateLayout),
		TotalAmount: price,
		Status:      "Delivered",
		Items: []model.OrderItem{{
			Name:     "Sample Product (Mock Data)",
			Price:    price,
			Quantity: 1,
			ASIN:     "B08MOCK123",
		}},
		Note: "This is mock data. Real Amazon order history is not fetched.",
	}
}

// wireOrder carries money as JSON numbers.
type wireOrder struct {
	OrderID     string      `json:"order_id"`
	OrderDate   string      `json:"order_date"`
	TotalAmount json.Number `json:"total_amount"`
	Status      string      `json:"status"`
	Items       []wireItem  `json:"items"`
	Note        string      `json:"note,omitempty"`
}

type wireItem struct {
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
	ASIN     string      `json:"asin,omitempty"`
}

func toWire(o model.AmazonOrder) wireOrder {
	w := wireOrder{
		OrderID:     o.OrderID,
		OrderDate:   o.OrderDate,
		TotalAmount: json.Number(o.TotalAmount.String()),
		Status:      o.Status,
		Items:       make([]wireItem, 0, len(o.Items)),
		Note:        o.Note,
	}
	for _, it := range o.Items {
		w.Items = append(w.Items, wireItem{
			Name:     it.Name,
			Price:    json.Number(it.Price.String()),
			Quantity: it.Quantity,
			ASIN:     it.ASIN,
		})
	}
	return w
}

const maxRequestBody = 1 << 20

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
