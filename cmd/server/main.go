package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/config"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/events/kafka"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models/events"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/outbox"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/processor"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/saga"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/storage/memory"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/storage/postgres"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/transactions"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store interfaces.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		defer db.Close()
		store = postgres.NewPostgresStore(db)
		logger.Info("using postgres store")
	} else {
		store = memory.NewMemoryStore()
		logger.Warn("POSTGRES_DSN not set, using in-memory store")
	}

	publisher := kafka.NewPublisher(cfg.KafkaBrokers)
	defer publisher.Close()

	ledgerService := ledger.NewLedger(store, logger.Named("ledger"))
	txService := transactions.NewService(store, logger.Named("transactions"))
	commandProcessor := processor.NewProcessor(ledgerService, store, logger.Named("processor"))
	coordinator := saga.NewCoordinator(store, logger.Named("saga"))

	relay := outbox.NewRelay(store, publisher, map[string]string{
		events.AggregateTransaction: cfg.CommandsTopic,
		events.AggregateAccount:     cfg.EventsTopic,
	}, cfg.DispatchInterval, logger.Named("outbox"))
	go relay.Run(ctx)

	janitor := outbox.NewJanitor(store, cfg.RetentionWindow, cfg.JanitorInterval, logger.Named("janitor"))
	go janitor.Run(ctx)

	sink := kafka.NewDeadLetter(publisher, logger.Named("deadletter"))

	commandConsumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.CommandsTopic,
		GroupID:      cfg.ProcessorGroupID,
		MaxRetries:   cfg.ConsumerMaxRetries,
		RetryBackoff: cfg.ConsumerRetryBackoff,
	}, commandProcessor.Handle, sink, logger.Named("commands"))
	defer commandConsumer.Close()
	go func() {
		if err := commandConsumer.Run(ctx); err != nil {
			// A dead consumer means the service stopped doing its job; shut
			// everything down rather than keep serving HTTP without it.
			logger.Error("command consumer failed, shutting down", zap.Error(err))
			stop()
		}
	}()

	resultConsumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.EventsTopic,
		GroupID:      cfg.SagaGroupID,
		MaxRetries:   cfg.ConsumerMaxRetries,
		RetryBackoff: cfg.ConsumerRetryBackoff,
	}, coordinator.Handle, sink, logger.Named("results"))
	defer resultConsumer.Close()
	go func() {
		if err := resultConsumer.Run(ctx); err != nil {
			logger.Error("result consumer failed, shutting down", zap.Error(err))
			stop()
		}
	}()

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			CustomerID     uuid.UUID       `json:"customer_id"`
			InitialBalance decimal.Decimal `json:"initial_balance"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		account, err := ledgerService.CreateAccount(r.Context(), req.CustomerID, req.InitialBalance)
		if errors.Is(err, ledger.ErrNegativeInitialBalance) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(struct {
			AccountID uuid.UUID       `json:"account_id"`
			Balance   decimal.Decimal `json:"balance"`
			Status    string          `json:"status"`
		}{account.ID, account.Balance, string(account.Status)})
	})

	mux.HandleFunc("/accounts/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		accountID, err := uuid.Parse(r.URL.Query().Get("account_id"))
		if err != nil {
			http.Error(w, "account_id is a mandatory field", http.StatusBadRequest)
			return
		}

		account, err := ledgerService.GetAccount(r.Context(), accountID)
		if errors.Is(err, models.ErrAccountNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			AccountID uuid.UUID       `json:"account_id"`
			Balance   decimal.Decimal `json:"balance"`
			Status    string          `json:"status"`
			Version   int64           `json:"version"`
		}{account.ID, account.Balance, string(account.Status), account.Version})
	})

	type moveRequest struct {
		AccountID     uuid.UUID       `json:"account_id"`
		FromAccountID uuid.UUID       `json:"from_account_id"`
		ToAccountID   uuid.UUID       `json:"to_account_id"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
	}

	writeTransaction := func(w http.ResponseWriter, tx models.Transaction, err error) {
		if errors.Is(err, transactions.ErrNonPositiveAmount) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(struct {
			TransactionID uuid.UUID `json:"transaction_id"`
			Status        string    `json:"status"`
		}{tx.ID, string(tx.Status)})
	}

	mux.HandleFunc("/transactions/deposit", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		tx, err := txService.CreateDeposit(r.Context(), req.AccountID, req.Amount, req.Currency)
		writeTransaction(w, tx, err)
	})

	mux.HandleFunc("/transactions/withdraw", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		tx, err := txService.CreateWithdrawal(r.Context(), req.AccountID, req.Amount, req.Currency)
		writeTransaction(w, tx, err)
	})

	mux.HandleFunc("/transactions/transfer", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		tx, err := txService.CreateTransfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount, req.Currency)
		writeTransaction(w, tx, err)
	})

	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		id, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "id is a mandatory field", http.StatusBadRequest)
			return
		}

		tx, err := txService.GetTransaction(r.Context(), id)
		if errors.Is(err, models.ErrTransactionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			TransactionID uuid.UUID       `json:"transaction_id"`
			Type          string          `json:"type"`
			Status        string          `json:"status"`
			Amount        decimal.Decimal `json:"amount"`
			Currency      string          `json:"currency"`
		}{tx.ID, string(tx.Type), string(tx.Status), tx.Amount, tx.Currency})
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
