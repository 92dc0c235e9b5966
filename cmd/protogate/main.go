// Package main is the protogate command-line client.
//
// The CLI is a plain consumer of the programmatic surface: it builds a
// registry set, runs plugin discovery and loading, then resolves a
// profile into a Façade and issues requests through it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/protogate/protogate/internal/auth"
	"github.com/protogate/protogate/internal/builtin"
	"github.com/protogate/protogate/internal/config"
	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/facade"
	"github.com/protogate/protogate/internal/hooks"
	"github.com/protogate/protogate/internal/monitoring"
	"github.com/protogate/protogate/internal/pipeline"
	"github.com/protogate/protogate/internal/plugin"
	"github.com/protogate/protogate/internal/registry"
	"github.com/protogate/protogate/internal/store"
)

const version = "0.3.0"

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	configEnv := filepath.Join(homeDir, ".config", "protogate", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}
	_ = godotenv.Load()
}

func main() {
	loadEnvFiles()

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "request":
		runRequest(os.Args[2:])
	case "plugins":
		runPlugins(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("protogate %s\n", version)
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`protogate - uniform client for pluggable back-end protocols

Usage:
  protogate request -config FILE [-profile NAME] -method VERB -target TARGET [-data BODY]
  protogate plugins -config FILE
  protogate version

Commands:
  request   Issue one request through the configured profile
  plugins   Discover and load plugins, then report their status
`)
}

// bootstrap loads config, sets up logging, and runs the plugin cycle.
func bootstrap(configPath string) (*config.Config, *registry.Set, *plugin.Loader, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	monitoring.Global(cfg.Logging)

	set := registry.NewSet()
	if err := builtin.Register(set); err != nil {
		return nil, nil, nil, fmt.Errorf("register built-ins: %w", err)
	}
	for _, p := range authProviders(cfg) {
		if err := set.AuthProviders.Register(p.Name(), p); err != nil {
			return nil, nil, nil, fmt.Errorf("register auth: %w", err)
		}
	}

	if cfg.Fallback.Enabled {
		fallback := hooks.NewFallback(store.NewMemoryStore(cfg.Fallback.TTL.Std()), 100)
		if err := set.ResponseHooks.Register(fallback.Name(), fallback); err != nil {
			return nil, nil, nil, err
		}
		if err := set.ErrorHooks.Register(fallback.Name(), fallback); err != nil {
			return nil, nil, nil, err
		}
	}

	loader := plugin.NewLoader(set, builtin.Catalog(), cfg.Plugins.Dirs...)
	if _, err := loader.Discover(); err != nil {
		return nil, nil, nil, err
	}
	summary := loader.LoadAll()
	for _, f := range summary.Failed {
		log.Warn().Err(f.Err).Str("plugin", f.Name).Msg("plugin failed to load")
	}
	return cfg, set, loader, nil
}

func runRequest(args []string) {
	fs := flag.NewFlagSet("request", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	profileName := fs.String("profile", "default", "config profile to use")
	method := fs.String("method", "GET", "request method/verb")
	target := fs.String("target", "", "request target (path, statement, key)")
	data := fs.String("data", "", "request body (@file to read from a file)")
	fs.Parse(args)

	cfg, set, _, err := bootstrap(*configPath)
	if err != nil {
		fatal(err)
	}

	profile, err := cfg.Profile(*profileName)
	if err != nil {
		fatal(err)
	}

	client, err := facade.New(set, pipeline.FromSet(set), facade.Config{
		Target:   profile.Target,
		Adapter:  profile.Adapter,
		Auth:     profile.Auth,
		Timeout:  profile.Timeout.Std(),
		Insecure: profile.Insecure,
	})
	if err != nil {
		fatal(err)
	}
	defer client.Close()

	body, err := readData(*data)
	if err != nil {
		fatal(err)
	}

	resp, err := client.Do(context.Background(), &core.Request{
		Method: *method,
		Target: *target,
		Body:   body,
	})
	if err != nil {
		fatal(err)
	}
	printResponse(resp)
}

func runPlugins(args []string) {
	fs := flag.NewFlagSet("plugins", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	_, set, loader, err := bootstrap(*configPath)
	if err != nil {
		fatal(err)
	}

	fmt.Println("plugins:")
	for _, rec := range loader.Records() {
		line := fmt.Sprintf("  %-24s %-10s %s", rec.Name, rec.State, rec.Source)
		if rec.Reason != "" {
			line += "  (" + rec.Reason + ")"
		}
		fmt.Println(line)
	}
	fmt.Printf("adapters:       %s\n", strings.Join(set.Adapters.Names(), ", "))
	fmt.Printf("auth providers: %s\n", strings.Join(set.AuthProviders.Names(), ", "))
	fmt.Printf("request hooks:  %s\n", strings.Join(set.RequestHooks.Names(), ", "))
	fmt.Printf("response hooks: %s\n", strings.Join(set.ResponseHooks.Names(), ", "))
	fmt.Printf("error hooks:    %s\n", strings.Join(set.ErrorHooks.Names(), ", "))
}

// authProviders assembles the built-in providers that have credentials
// configured.
func authProviders(cfg *config.Config) []core.AuthProvider {
	var out []core.AuthProvider
	if a := cfg.Auth.Basic; a != nil {
		out = append(out, auth.Basic{Username: a.Username, Password: a.Password})
	}
	if a := cfg.Auth.Bearer; a != nil {
		out = append(out, auth.Bearer{Token: a.Token})
	}
	if a := cfg.Auth.APIKey; a != nil {
		out = append(out, auth.APIKey{Header: a.Header, Key: a.Key})
	}
	if a := cfg.Auth.JWT; a != nil {
		out = append(out, auth.JWT{
			Secret:   []byte(a.Secret),
			Issuer:   a.Issuer,
			Subject:  a.Subject,
			Lifetime: a.Lifetime.Std(),
		})
	}
	if a := cfg.Auth.SigV4; a != nil {
		out = append(out, auth.NewSigV4(a.Service, a.Region, a.Host))
	}
	return out
}

// readData resolves the -data flag: literal bytes, or @path file contents.
func readData(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	if strings.HasPrefix(data, "@") {
		return os.ReadFile(data[1:])
	}
	return []byte(data), nil
}

func printResponse(resp *core.Response) {
	fmt.Printf("status: %d\n", resp.Status)
	if len(resp.Data) == 0 {
		return
	}
	var pretty map[string]any
	if err := json.Unmarshal(resp.Data, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}
	os.Stdout.Write(resp.Data)
	fmt.Println()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
