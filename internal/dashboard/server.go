// Package dashboard serves the trainer over HTTP: a JSON API for commands
// and read models, a server-sent event stream, and a scheduled digest.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zulandar/trainer/internal/logging"
	"github.com/zulandar/trainer/internal/topic"
	"github.com/zulandar/trainer/internal/trainer"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Controller *trainer.Controller
	Port       int
	User       topic.UserContext
	// Overall scores used when a finish request carries none.
	FinishScore    int
	FinishNowScore int
	// DigestCron is a 5-field cron expression; empty disables the digest.
	DigestCron string
	Logger     *zap.Logger
	Out        io.Writer
}

type server struct {
	ctrl   *trainer.Controller
	user   topic.UserContext
	scores struct{ finish, finishNow int }
	digest *digester
	log    *zap.Logger
}

func newServer(opts StartOpts) (*server, error) {
	if opts.Controller == nil {
		return nil, fmt.Errorf("dashboard: controller is required")
	}
	if opts.FinishScore == 0 {
		opts.FinishScore = trainer.DefaultFinishScore
	}
	if opts.FinishNowScore == 0 {
		opts.FinishNowScore = trainer.DefaultFinishNowScore
	}
	log := logging.OrNop(opts.Logger)
	s := &server{
		ctrl:   opts.Controller,
		user:   opts.User,
		digest: newDigester(opts.Controller, log),
		log:    log,
	}
	s.scores.finish = opts.FinishScore
	s.scores.finishNow = opts.FinishNowScore
	return s, nil
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	s, err := newServer(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.DigestCron != "" {
		if _, err := cronParser.Parse(opts.DigestCron); err != nil {
			return fmt.Errorf("dashboard: digest cron %q: %w", opts.DigestCron, err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := s.router()

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	if opts.DigestCron != "" {
		go s.digest.run(ctx, opts.DigestCron)
	}

	s.log.Info("dashboard listening", zap.String("addr", addr))
	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Trainer API running at http://localhost:%d/api\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func (s *server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)
	return router
}
