package bootstrap

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/events"
	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"

	"github.com/appleboy/graceful"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})
}

// addEventPublisherShutdownJob drains and stops the event publisher
func addEventPublisherShutdownJob(m *graceful.Manager, publisher *events.Publisher) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down event publisher...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := publisher.Close(ctx); err != nil {
			log.Printf("Error shutting down event publisher: %v", err)
			return err
		}
		return nil
	})
}

// addExpiredRecordSweeperJob periodically deletes expired codes, tickets,
// device codes, and token rows.
func addExpiredRecordSweeperJob(m *graceful.Manager, db *store.Store) {
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		sweep := func() {
			if err := db.DeleteExpiredAuthorizationCodes(); err != nil {
				log.Printf("Failed to sweep expired authorization codes: %v", err)
			}
			if err := db.DeleteExpiredTickets(); err != nil {
				log.Printf("Failed to sweep expired tickets: %v", err)
			}
			if err := db.DeleteExpiredDeviceCodes(); err != nil {
				log.Printf("Failed to sweep expired device codes: %v", err)
			}
			if err := db.DeleteExpiredTokens(); err != nil {
				log.Printf("Failed to sweep expired tokens: %v", err)
			}
		}

		sweep()
		for {
			select {
			case <-ticker.C:
				sweep()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addTokenGaugeUpdateJob periodically refreshes the active-token gauges.
func addTokenGaugeUpdateJob(m *graceful.Manager, db *store.Store, recorder core.Recorder) {
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		update := func() {
			for _, category := range []string{
				models.TokenCategoryAccess,
				models.TokenCategoryRefresh,
				models.TokenCategoryRPT,
			} {
				count, err := db.CountActiveTokensByCategory(category)
				if err != nil {
					recorder.RecordDatabaseQueryError("count_active_tokens")
					continue
				}
				recorder.SetActiveTokensCount(category, int(count))
			}
		}

		update()
		for {
			select {
			case <-ticker.C:
				update()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addCacheShutdownJob closes the discovery cache connection
func addCacheShutdownJob(m *graceful.Manager, c discoveryCache) {
	if c == nil {
		return
	}
	m.AddShutdownJob(func() error {
		if err := c.Close(); err != nil {
			log.Printf("Error closing discovery cache: %v", err)
			return err
		}
		return nil
	})
}
