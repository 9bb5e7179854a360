// Package devbackend is a small in-memory stand-in for the production shop
// backend. It serves the same REST contract the engine talks to (master
// lists, party lookups, transaction posts, dashboard counters) so dialogs can
// be exercised end to end on a laptop.
package devbackend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"konterku/engine/internal/domain"
)

// Server bundles the seeded store with HTTP handlers and bearer auth.
type Server struct {
	store  *store
	auth   *authManager
	logger *zap.Logger
}

// transactionCatalogs maps each transaction resource to the item catalog its
// lines are validated against. Service tickets consume spare parts.
var transactionCatalogs = map[string]string{
	"accessory-transaction": "accessory",
	"voucher-transaction":   "voucher",
	"service-transaction":   "sparepart",
}

func New(authSecret string, tokenTTL time.Duration, adminPassword string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:  newSeededStore(),
		auth:   newAuthManager(authSecret, tokenTTL, adminPassword),
		logger: logger.Named("devbackend"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/login", s.handleLogin)

	mux.HandleFunc("/accessory-master", s.requireAuth(s.handleMaster("accessory")))
	mux.HandleFunc("/voucher-master", s.requireAuth(s.handleMaster("voucher")))
	mux.HandleFunc("/sparepart-master", s.requireAuth(s.handleMaster("sparepart")))

	mux.HandleFunc("/member", s.requireAuth(s.handleParties(domain.PartySourceMember)))
	mux.HandleFunc("/downline-master", s.requireAuth(s.handleParties(domain.PartySourceDownline)))

	for resource := range transactionCatalogs {
		mux.HandleFunc("/"+resource, s.requireAuth(s.handleTransaction(resource)))
	}

	mux.HandleFunc("/dashboard-summary", s.requireAuth(s.handleDashboard))

	return mux
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		token := strings.TrimSpace(authorization[len("Bearer "):])
		if _, err := s.auth.ParseToken(token); err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": resp})
}

func (s *Server) handleMaster(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		items, ok := s.store.Catalog(resource)
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("unknown master resource"))
			return
		}

		records := make([]map[string]any, 0, len(items))
		for _, item := range items {
			record := map[string]any{
				"id":         item.ID,
				"name":       item.Name,
				"cost_price": item.CostPrice,
				"stock":      item.Stock,
			}
			if item.Barcode != "" {
				record["barcode"] = item.Barcode
			}
			// Some rows still carry the pre-migration price key; the client
			// normalizes either shape to a canonical sale price at load time.
			if item.LegacyPriceField {
				record["price"] = item.SalePrice
			} else {
				record["sale_price"] = item.SalePrice
			}
			records = append(records, record)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": records})
	}
}

func (s *Server) handleParties(source string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		parties, ok := s.store.Parties(source)
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("unknown party source"))
			return
		}
		// The q parameter is accepted but the full list is returned; clients
		// filter locally per the contract.
		writeJSON(w, http.StatusOK, map[string]any{"data": parties})
	}
}

func (s *Server) handleTransaction(resource string) http.HandlerFunc {
	itemResource := transactionCatalogs[resource]
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}

		var payload domain.TransactionPayload
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		confirmation, err := s.store.CreateTransaction(itemResource, resource, payload)
		if err != nil {
			status := http.StatusUnprocessableEntity
			switch {
			case errors.Is(err, errUnknownItem):
				status = http.StatusNotFound
			case errors.Is(err, errInvalidLine):
				status = http.StatusBadRequest
			case errors.Is(err, errInsufficientStock):
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}

		// The client's margin is advisory only; log the drift but accept.
		if !payload.Margin.IsZero() {
			s.logger.Debug("client margin received",
				zap.String("resource", resource),
				zap.String("client_margin", payload.Margin.String()))
		}

		s.logger.Info("transaction stored",
			zap.String("resource", resource),
			zap.String("transaction_id", confirmation.TransactionID),
			zap.String("total", confirmation.Total.String()))
		writeJSON(w, http.StatusCreated, map[string]any{"data": confirmation})
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.store.DashboardSummary()})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
