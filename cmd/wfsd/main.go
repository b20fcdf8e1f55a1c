package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-spatial/cobra"

	"github.com/atlasdatatech/wfsd/config"
	"github.com/atlasdatatech/wfsd/internal/log"
	"github.com/atlasdatatech/wfsd/server"
)

var configPath string
var listenAddr string

var rootCmd = &cobra.Command{
	Use:   "wfsd",
	Short: "wfsd is a WFS 2.0.0 vector feature server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if configPath != "" {
			c, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = c
		}

		srv, err := server.New(cfg)
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		defer srv.Close()

		log.Infof("wfsd listening on %s", listenAddr)
		return http.ListenAndServe(listenAddr, srv.Router())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVarP(&listenAddr, "listen", "l", ":8080", "address to listen on")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
