// Package serve implements the serve subcommand: an HTTP server exposing
// generated reports, the run history and Prometheus metrics.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MalasadaTech/masq-monitor/cmd/common"
	"github.com/MalasadaTech/masq-monitor/internal/history"
	"github.com/MalasadaTech/masq-monitor/internal/logger"
)

const (
	defaultRunsLimit      = 50
	maxRunsLimit          = 500
	readHeaderTimeout     = 10 * time.Second
	defaultShutdownBudget = 30 * time.Second
)

// Command creates the serve command.
func Command() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generated reports, run history and metrics over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			db, err := history.Open(deps.Config.History.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			if addr == "" {
				addr = viper.GetString("serve.addr")
			}

			router := newRouter(deps, history.NewRunRepository(db))
			return listen(cmd.Context(), addr, router, deps.Logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")

	return cmd
}

// newRouter builds the gin router with all routes attached.
func newRouter(deps *common.CommandDeps, runs *history.RunRepository) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/api/runs", func(c *gin.Context) {
		limit := defaultRunsLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = min(parsed, maxRunsLimit)
		}

		list, err := runs.RecentRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": list})
	})

	router.GET("/api/queries", func(c *gin.Context) {
		type entry struct {
			Name        string `json:"name"`
			Type        string `json:"type"`
			Platform    string `json:"platform,omitempty"`
			TLPLevel    string `json:"tlp_level,omitempty"`
			Frequency   string `json:"frequency,omitempty"`
			Description string `json:"description,omitempty"`
		}

		entries := make([]entry, 0, len(deps.Config.Queries)+len(deps.Config.QueryGroups))
		for i := range deps.Config.Queries {
			q := &deps.Config.Queries[i]
			entries = append(entries, entry{
				Name:        q.Name,
				Type:        "query",
				Platform:    q.Platform,
				TLPLevel:    q.DefaultTLPLevel,
				Frequency:   q.Frequency,
				Description: q.Description,
			})
		}
		for i := range deps.Config.QueryGroups {
			g := &deps.Config.QueryGroups[i]
			entries = append(entries, entry{
				Name:        g.Name,
				Type:        "query_group",
				TLPLevel:    g.DefaultTLPLevel,
				Description: g.Description,
			})
		}
		c.JSON(http.StatusOK, gin.H{"queries": entries})
	})

	// Run directories, reports and screenshots straight off disk.
	router.StaticFS("/reports", gin.Dir(deps.Config.OutputDir, true))

	return router
}

// listen serves until the context is cancelled or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
func listen(ctx context.Context, addr string, handler http.Handler, log logger.Interface) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownBudget)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
