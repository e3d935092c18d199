package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-overlay/internal/config"
	"github.com/joeblew999/plat-overlay/internal/layer"
	"github.com/joeblew999/plat-overlay/internal/server"
	"github.com/joeblew999/plat-overlay/pkg/logger"
)

// Options defines all CLI flags and env vars for the overlay server.
// Flags: --host, --port, --data-dir, --config, --log-level
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_CONFIG, SERVICE_LOG_LEVEL
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir   string `doc:"Directory for local datasets and the feature store (overrides config)"`
	Config    string `doc:"Path to a YAML config file" short:"c"`
	LogLevel  string `doc:"debug, info, warn or error (overrides config)"`
	Fragments string `doc:"Serve HTML fragments from this directory, re-read on each viewer load"`
}

// appConfig layers the config file and OVERLAY_* env, then the flags.
func appConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	return cfg, nil
}

func newServer(opts *Options) *server.Server {
	cfg, err := appConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	srv, err := server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		App:          cfg,
		FragmentsDir: opts.Fragments,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		var httpServer *http.Server

		hooks.OnStart(func() {
			srv = newServer(opts)
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-overlay server starting...\n")
			fmt.Printf("  Server:   %s\n", baseURL)
			fmt.Printf("  Datasets: %d\n", len(srv.Session().Catalog()))
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			srv.Start(context.Background())
			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			ctx := context.Background()
			if httpServer != nil {
				_ = httpServer.Shutdown(ctx)
			}
			if srv != nil {
				_ = srv.Close(ctx)
			}
		})
	})

	cli.Root().Use = "overlay"
	cli.Root().Short = "Energy infrastructure overlays with live layer toggles"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close(context.Background())
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// catalog subcommand: print the effective dataset list
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the effective catalog as YAML",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg, err := appConfig(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			out, err := cfg.EffectiveCatalog().Marshal()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling catalog: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(out))
		}),
	}
	cli.Root().AddCommand(catalogCmd)

	// load subcommand: fetch every dataset once and report
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load every dataset headlessly and print the outcomes",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			term, _ := cmd.Flags().GetString("search")
			zoom, _ := cmd.Flags().GetInt("zoom")
			if err := runLoad(cmd.Context(), newServer(opts), term, zoom); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	loadCmd.Flags().StringP("search", "s", "", "Search visible layers for a term after loading")
	loadCmd.Flags().IntP("zoom", "z", 4, "Zoom level cluster sizes are reported at")
	cli.Root().AddCommand(loadCmd)

	cli.Run()
}

func runLoad(ctx context.Context, srv *server.Server, term string, zoom int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer srv.Close(ctx)
	s := srv.Session()
	if err := s.Load(ctx); err != nil {
		return err
	}

	for _, o := range s.Outcomes() {
		line := fmt.Sprintf("%-24s %-8s %6d features  %5dms  %s",
			o.Name, o.Status, o.FeatureCount, o.DurationMS, strings.Join(o.GeometryKinds, ","))
		if o.Error != "" {
			line += "  " + o.Error
		}
		fmt.Println(line)
	}

	layers, err := s.Layers()
	if err != nil {
		return err
	}
	fmt.Println()
	for _, l := range layers {
		if l.Kind != layer.Clustered {
			fmt.Printf("%-24s %s\n", l.Name, l.Kind)
			continue
		}
		fc, err := s.Features(l.Name, zoom)
		if err != nil {
			return err
		}
		sizes := layer.ClusterSizes(fc)
		fmt.Printf("%-24s %s, %d markers at zoom %d, largest %v\n", l.Name, l.Kind, len(sizes), zoom, head(sizes, 3))
	}

	p := s.Progress()
	fmt.Printf("\nprogress %d%% (%d/%d settled)\n", p.Percent, p.Settled, p.Total)

	if term == "" {
		return nil
	}
	matches, err := s.Search(term)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d matches for %q\n", len(matches), term)
	for _, m := range matches {
		fmt.Printf("  %s[%d] %s=%s @ %.5f,%.5f\n", m.Layer, m.FeatureIndex, m.Key, m.Value,
			m.Locator.Center.Lat(), m.Locator.Center.Lon())
	}
	return nil
}

func head(xs []int, n int) []int {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
