package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/af-corp/queryrouter/internal/auth"
	"github.com/af-corp/queryrouter/internal/tools"
)

var knownTools = []string{
	string(tools.KindCalculator),
	string(tools.KindRetriever),
	string(tools.KindWebSearch),
	string(tools.KindDirect),
}

func main() {
	name := flag.String("name", "", "human-friendly key name (required)")
	owner := flag.String("owner", "", "owning team or service (required)")
	toolList := flag.String("tools", "", "comma-separated tools the key may use (empty = all)")
	rpm := flag.Int("rpm", 0, "requests per minute (0 = unlimited)")
	daily := flag.Int("daily", 0, "queries per day (0 = unlimited)")
	env := flag.String("env", "prod", "environment prefix")
	expires := flag.String("expires", "365d", "expiry duration (e.g., 365d, 720h)")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	flag.Parse()

	if *name == "" || *owner == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -name and -owner are required")
		os.Exit(1)
	}

	allowed, err := parseTools(*toolList)
	if err != nil {
		log.Fatalf("invalid tools: %v", err)
	}

	rawKey, err := auth.GenerateKey(*env)
	if err != nil {
		log.Fatalf("failed to generate key: %v", err)
	}
	keyHash := auth.HashKey(rawKey)
	keyPrefix := auth.KeyPrefix(rawKey)

	dur, err := auth.ParseDuration(*expires)
	if err != nil {
		log.Fatalf("invalid expires: %v", err)
	}
	expiresAt := time.Now().Add(dur)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL(*dbURL))
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	var keyID string
	err = conn.QueryRow(ctx, `
		INSERT INTO api_keys (key_hash, key_prefix, name, owner, allowed_tools, rpm_limit, daily_query_limit, expires_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), NULLIF($7, 0), $8)
		RETURNING id
	`, keyHash, keyPrefix, *name, *owner, allowed, *rpm, *daily, expiresAt).Scan(&keyID)
	if err != nil {
		log.Fatalf("failed to insert key: %v", err)
	}

	fmt.Println("=== Query Router API Key ===")
	fmt.Println()
	fmt.Printf("  Key ID:      %s\n", keyID)
	fmt.Printf("  Key Prefix:  %s\n", keyPrefix)
	fmt.Printf("  Owner:       %s\n", *owner)
	if len(allowed) > 0 {
		fmt.Printf("  Tools:       %s\n", strings.Join(allowed, ", "))
	} else {
		fmt.Println("  Tools:       all")
	}
	fmt.Printf("  Expires:     %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  API Key (save this, it will NOT be shown again):")
	fmt.Printf("  %s\n", rawKey)
	fmt.Println()
	fmt.Println("============================")
}

// parseTools splits and validates a comma-separated tool list.
func parseTools(s string) ([]string, error) {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !slices.Contains(knownTools, t) {
			return nil, fmt.Errorf("unknown tool %q (known: %s)", t, strings.Join(knownTools, ", "))
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func databaseURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		envOrDefault("DB_USER", "queryrouter"),
		envOrDefault("DB_PASSWORD", "queryrouter-dev"),
		envOrDefault("DB_HOST", "localhost"),
		envOrDefault("DB_PORT", "5432"),
		envOrDefault("DB_NAME", "queryrouter"),
	)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
