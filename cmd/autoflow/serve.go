package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Auto-run workflows as the page loads, navigates and changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := container(cmd, false)
		if err != nil {
			return err
		}
		defer c.Close()

		c.Logger.Info("Watching page", "url", c.Page.Location().Href)
		err = c.Engine.Watch(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the intent API and watch the page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := container(cmd, false)
		if err != nil {
			return err
		}
		defer c.Close()

		addr := c.HTTPAddr()
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		api := c.HTTPServer()
		defer api.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		watchDone := make(chan error, 1)
		go func() {
			watchDone <- c.Engine.Watch(ctx)
		}()

		srv := &http.Server{
			Addr:              addr,
			Handler:           api,
			ReadHeaderTimeout: 10 * time.Second,
		}
		serveDone := make(chan error, 1)
		go func() {
			c.Logger.Info("Intent API listening", "addr", addr)
			serveDone <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
		case err = <-serveDone:
		case err = <-watchDone:
		}
		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			c.Logger.Warn("HTTP shutdown", "error", shutdownErr)
		}
		c.Logger.Info("Stopped")

		if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default AUTOFLOW_HTTP_ADDR)")
}
