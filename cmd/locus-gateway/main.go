// ABOUTME: Entry point for locus-gateway location reminder server
// ABOUTME: Provides serve, init, token and health subcommands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/locus-gateway/internal/auth"
	"github.com/2389/locus-gateway/internal/config"
	"github.com/2389/locus-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _
| | ___   ___ _   _ ___
| |/ _ \ / __| | | / __|
| | (_) | (__| |_| \__ \
|_|\___/ \___|\__,_|___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: LOCUS_CONFIG env var > XDG_CONFIG_HOME/locus/gateway.yaml > ~/.config/locus/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("LOCUS_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "locus", "gateway.yaml")
}

// getDataPath returns the path to the locus data directory.
// Priority: XDG_DATA_HOME/locus > ~/.local/share/locus
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "locus")
}

// loadEnvFiles loads .env from the working directory and from next to the
// config file. Variables already set in the environment win.
func loadEnvFiles(configPath string) error {
	for _, path := range []string{".env", filepath.Join(filepath.Dir(configPath), ".env")} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// loadConfig loads .env files and then the config file.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	if err := loadEnvFiles(configPath); err != nil {
		return nil, configPath, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: locus-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                           Start the gateway server")
		fmt.Println("  init                            Create a new config file interactively")
		fmt.Println("  token --user ID [--name NAME]   Issue a bearer token (--ttl, default 720h)")
		fmt.Println("  health                          Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Geofence:  %.0fm radius, %s dedupe\n", cfg.Geofence.RadiusMeters, cfg.Geofence.DedupeTTL)

	green.Print("    ▶ ")
	fmt.Printf("Notify:    ")
	var channels []string
	if cfg.Notifications.Log {
		channels = append(channels, "log")
	}
	if cfg.Notifications.Telegram.Enabled {
		channels = append(channels, "telegram")
	}
	if cfg.Notifications.Matrix.Enabled {
		channels = append(channels, "matrix")
	}
	if len(channels) == 0 {
		gray.Print("log (fallback)")
	} else {
		cyan.Print(strings.Join(channels, ", "))
	}
	fmt.Println()

	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! auth disabled (no jwt_secret)")
	}
	fmt.Println()

	logger.Info("starting locus-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	color.Green("healthy")
	return nil
}

// tokenArgs are the parsed flags of the token command.
type tokenArgs struct {
	userID string
	name   string
	ttl    time.Duration
}

// parseTokenArgs supports both "--flag value" and "--flag=value" formats.
func parseTokenArgs(args []string) (tokenArgs, error) {
	out := tokenArgs{ttl: 30 * 24 * time.Hour}

	value := func(i *int, arg, flag string) (string, bool, error) {
		if arg == flag {
			if *i+1 >= len(args) {
				return "", true, fmt.Errorf("%s requires a value", flag)
			}
			*i++
			return args[*i], true, nil
		}
		if strings.HasPrefix(arg, flag+"=") {
			return strings.TrimPrefix(arg, flag+"="), true, nil
		}
		return "", false, nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if v, ok, err := value(&i, arg, "--user"); ok {
			if err != nil {
				return out, err
			}
			out.userID = strings.TrimSpace(v)
			continue
		}
		if v, ok, err := value(&i, arg, "--name"); ok {
			if err != nil {
				return out, err
			}
			out.name = strings.TrimSpace(v)
			continue
		}
		if v, ok, err := value(&i, arg, "--ttl"); ok {
			if err != nil {
				return out, err
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return out, fmt.Errorf("parsing --ttl %q: %w", v, err)
			}
			if d <= 0 {
				return out, fmt.Errorf("--ttl must be positive")
			}
			out.ttl = d
			continue
		}

		if strings.HasPrefix(arg, "-") {
			return out, fmt.Errorf("unknown flag: %s", arg)
		}
		return out, fmt.Errorf("unexpected argument: %s", arg)
	}

	if out.userID == "" {
		return out, fmt.Errorf("--user flag is required")
	}
	if len(out.name) > 100 {
		return out, fmt.Errorf("display name exceeds maximum length of 100 characters")
	}
	return out, nil
}

func runToken(args []string) error {
	parsed, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured; run 'locus-gateway init' first")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(parsed.userID, parsed.name, parsed.ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// generateSecret returns a random base64 secret long enough for HS256.
func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("locus-gateway configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "gateway.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Auth Configuration ---")
	enableAuth := prompt(reader, "Require bearer tokens on /api?", "yes")
	authEnabled := strings.ToLower(enableAuth) == "yes" || strings.ToLower(enableAuth) == "y"

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(config.Sample(dbPath)), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	envPath := filepath.Join(configDir, ".env")
	if authEnabled {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		env, err := godotenv.Read(envPath)
		if err != nil {
			env = map[string]string{}
		}
		env["LOCUS_JWT_SECRET"] = secret
		if err := godotenv.Write(env, envPath); err != nil {
			return fmt.Errorf("writing %s: %w", envPath, err)
		}
		if err := os.Chmod(envPath, 0600); err != nil {
			return fmt.Errorf("securing %s: %w", envPath, err)
		}
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("\nConfig written to %s\n", outputFile)
	if authEnabled {
		green.Printf("JWT secret written to %s\n", envPath)
	}
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  locus-gateway serve\n")
	if authEnabled {
		fmt.Println("\nTo issue a token:")
		fmt.Printf("  locus-gateway token --user me\n")
	}

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
