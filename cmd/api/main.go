package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/erfanyeganegi/droplinked-market/internal/config"
	"github.com/erfanyeganegi/droplinked-market/internal/database"
	"github.com/erfanyeganegi/droplinked-market/internal/market"
	"github.com/erfanyeganegi/droplinked-market/internal/models"
	"github.com/erfanyeganegi/droplinked-market/internal/store/memory"
	"github.com/erfanyeganegi/droplinked-market/internal/store/postgres"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	store, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		logrus.WithError(err).Fatal("open store")
	}
	defer closeStore()

	engine := market.New(store)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newRouter(engine),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logrus.WithFields(logrus.Fields{
		"port":    cfg.Server.Port,
		"backend": cfg.Store.Backend,
	}).Info("server starting")

	if err := server.ListenAndServe(); err != nil {
		logrus.WithError(err).Fatal("server error")
	}
}

// openStore builds the configured store backend. The returned close function
// releases the backend's resources and is safe to call unconditionally.
func openStore(ctx context.Context, cfg *config.Config) (market.Store, func(), error) {
	bootstrap := models.Account(cfg.Store.BootstrapIdentity)
	if !bootstrap.Valid() {
		return nil, nil, fmt.Errorf("bootstrap identity must not be empty")
	}

	switch cfg.Store.Backend {
	case "memory":
		return memory.New(bootstrap), func() {}, nil

	case "postgres":
		db, err := database.NewConnection(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.New(ctx, db, bootstrap)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func newRouter(engine *market.Engine) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger)

	router.HandleFunc("/admin", handleGetAdmin(engine)).Methods(http.MethodGet)
	router.HandleFunc("/admin", handleSetAdmin(engine)).Methods(http.MethodPut)
	router.HandleFunc("/fee-destination", handleGetFeeDestination(engine)).Methods(http.MethodGet)
	router.HandleFunc("/fee-destination", handleSetFeeDestination(engine)).Methods(http.MethodPut)

	router.HandleFunc("/products", handleCreateProduct(engine)).Methods(http.MethodPost)
	router.HandleFunc("/products", handleListProducts(engine)).Methods(http.MethodGet)
	router.HandleFunc("/products/{id}", handleGetProduct(engine)).Methods(http.MethodGet)

	router.HandleFunc("/requests", handleCreateRequest(engine)).Methods(http.MethodPost)
	router.HandleFunc("/requests/{id}", handleGetRequest(engine)).Methods(http.MethodGet)
	router.HandleFunc("/requests/{id}/cancel", handleCancelRequest(engine)).Methods(http.MethodPost)
	router.HandleFunc("/requests/{id}/accept", handleAcceptRequest(engine)).Methods(http.MethodPost)
	router.HandleFunc("/requests/{id}/reject", handleRejectRequest(engine)).Methods(http.MethodPost)

	router.HandleFunc("/purchases", handlePurchase(engine)).Methods(http.MethodPost)

	router.HandleFunc("/accounts/{account}/funds", handleFundAccount(engine)).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{account}/balance", handleGetBalance(engine)).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{account}/holdings/{productID}", handleGetHolding(engine)).Methods(http.MethodGet)

	return router
}

// requestLogger tags every request with an id and writes one access log line.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Info("request")

		next.ServeHTTP(w, r)
	})
}

func handleGetAdmin(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, err := engine.Admin(r.Context())
		if err != nil {
			respondFailure(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]models.Account{"admin": admin})
	}
}

func handleSetAdmin(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Caller models.Account `json:"caller"`
			Admin  models.Account `json:"admin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := engine.SetAdmin(r.Context(), req.Caller, req.Admin); err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]models.Account{"admin": req.Admin})
	}
}

func handleGetFeeDestination(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		destination, err := engine.FeeDestination(r.Context())
		if err != nil {
			respondFailure(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]models.Account{"fee_destination": destination})
	}
}

func handleSetFeeDestination(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Caller      models.Account `json:"caller"`
			Destination models.Account `json:"destination"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := engine.SetFeeDestination(r.Context(), req.Caller, req.Destination); err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]models.Account{"fee_destination": req.Destination})
	}
}

func handleCreateProduct(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Caller   models.Account         `json:"caller"`
			Producer models.Account         `json:"producer"`
			Metadata models.ProductMetadata `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id, err := engine.CreateProduct(r.Context(), req.Caller, req.Producer, req.Metadata)
		if err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
	}
}

func handleListProducts(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

		result, err := engine.ListProducts(r.Context(), page, pageSize)
		if err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

func handleGetProduct(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid product id")
			return
		}

		product, ok, err := engine.Product(r.Context(), id)
		if err != nil {
			respondFailure(w, err)
			return
		}
		if !ok {
			respondError(w, http.StatusNotFound, "product not found")
			return
		}

		switch attr := r.URL.Query().Get("attr"); attr {
		case "":
			respondJSON(w, http.StatusOK, product)
		case "producer":
			respondJSON(w, http.StatusOK, map[string]models.Account{"producer": product.Producer})
		case "price":
			respondJSON(w, http.StatusOK, map[string]int64{"price": product.Price})
		case "commission":
			respondJSON(w, http.StatusOK, map[string]int64{"commission": product.Commission})
		case "type":
			respondJSON(w, http.StatusOK, map[string]models.ProductType{"type": product.Type})
		case "destination":
			respondJSON(w, http.StatusOK, map[string]models.Account{"destination": product.Destination})
		default:
			respondError(w, http.StatusBadRequest, "unknown product attribute")
		}
	}
}

func handleCreateRequest(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Caller    models.Account `json:"caller"`
			ProductID int64          `json:"product_id"`
			Publisher models.Account `json:"publisher"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id, err := engine.CreateRequest(r.Context(), req.Caller, req.ProductID, req.Publisher)
		if err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
	}
}

func handleGetRequest(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid request id")
			return
		}

		request, ok, err := engine.Request(r.Context(), id)
		if err != nil {
			respondFailure(w, err)
			return
		}
		if !ok {
			respondError(w, http.StatusNotFound, "request not found")
			return
		}

		respondJSON(w, http.StatusOK, request)
	}
}

func handleCancelRequest(engine *market.Engine) http.HandlerFunc {
	return requestTransition(func(ctx context.Context, caller models.Account, id int64, counterparty models.Account) (int64, error) {
		return engine.CancelRequest(ctx, caller, id, counterparty)
	}, "publisher")
}

func handleAcceptRequest(engine *market.Engine) http.HandlerFunc {
	return requestTransition(func(ctx context.Context, caller models.Account, id int64, counterparty models.Account) (int64, error) {
		return engine.AcceptRequest(ctx, caller, id, counterparty)
	}, "producer")
}

func handleRejectRequest(engine *market.Engine) http.HandlerFunc {
	return requestTransition(func(ctx context.Context, caller models.Account, id int64, counterparty models.Account) (int64, error) {
		return engine.RejectRequest(ctx, caller, id, counterparty)
	}, "producer")
}

// requestTransition serves the three lifecycle transitions, which share a
// body shape differing only in the counterparty field name.
func requestTransition(transition func(ctx context.Context, caller models.Account, id int64, counterparty models.Account) (int64, error), field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid request id")
			return
		}

		var body map[string]models.Account
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		confirmed, err := transition(r.Context(), body["caller"], id, body[field])
		if err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]int64{"id": confirmed})
	}
}

func handlePurchase(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Caller    models.Account    `json:"caller"`
			Purchaser models.Account    `json:"purchaser"`
			Shop      models.Account    `json:"shop"`
			Cart      []models.CartItem `json:"cart"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		shop, err := engine.Purchase(r.Context(), req.Caller, req.Purchaser, req.Shop, req.Cart)
		if err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]models.Account{"shop": shop})
	}
}

func handleFundAccount(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := models.Account(mux.Vars(r)["account"])

		var req struct {
			Caller models.Account `json:"caller"`
			Amount int64          `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := engine.FundAccount(r.Context(), req.Caller, account, req.Amount); err != nil {
			respondFailure(w, err)
			return
		}

		balance, err := engine.Balance(r.Context(), account)
		if err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]int64{"balance": balance})
	}
}

func handleGetBalance(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := models.Account(mux.Vars(r)["account"])

		balance, err := engine.Balance(r.Context(), account)
		if err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]int64{"balance": balance})
	}
}

func handleGetHolding(engine *market.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := models.Account(mux.Vars(r)["account"])

		productID, err := pathID(r, "productID")
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid product id")
			return
		}

		quantity, err := engine.Holding(r.Context(), productID, account)
		if err != nil {
			respondFailure(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]int64{"quantity": quantity})
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

// respondFailure maps protocol error codes onto HTTP statuses; errors without
// a code are internal.
func respondFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch market.CodeOf(err) {
	case market.CodeAuthorization:
		status = http.StatusForbidden
	case market.CodeValidation:
		status = http.StatusBadRequest
	case market.CodeNotFound:
		status = http.StatusNotFound
	case market.CodeConflict:
		status = http.StatusConflict
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
