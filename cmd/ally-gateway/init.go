// ABOUTME: Interactive config file generation for ally-gateway
// ABOUTME: Prompts for the essentials and writes a YAML config with a fresh state secret

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

type initAnswers struct {
	HTTPAddr     string
	PublicURL    string
	DBPath       string
	RedisAddr    string
	Homeserver   string
	MatrixUser   string
	MatrixToken  string
	Encryption   bool
	ClientID     string
	ClientSecret string
	StateSecret  string
	AgentURL     string
	SMTPHost     string
	MailFrom     string
	LogLevel     string
	LogFormat    string
}

func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	color.New(color.FgCyan).Println("ally-gateway configuration setup")
	fmt.Println("================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}
	a := initAnswers{StateSecret: secret}

	fmt.Println("\n--- Server ---")
	a.HTTPAddr = prompt(reader, "HTTP address", "127.0.0.1:8080")
	a.PublicURL = prompt(reader, "Public URL (for the Google redirect)", "http://localhost:8080")

	fmt.Println("\n--- Storage ---")
	a.DBPath = prompt(reader, "SQLite database path", filepath.Join(getDataPath(), "gateway.db"))
	a.RedisAddr = prompt(reader, "Redis address (empty for in-memory)", "")

	fmt.Println("\n--- Matrix ---")
	a.Homeserver = prompt(reader, "Homeserver URL", "https://matrix.org")
	a.MatrixUser = prompt(reader, "Bot user ID", "@ally:matrix.org")
	a.MatrixToken = prompt(reader, "Access token", "${MATRIX_ACCESS_TOKEN}")
	a.Encryption = yes(prompt(reader, "Enable end-to-end encryption?", "yes"))

	fmt.Println("\n--- Google Calendar ---")
	a.ClientID = prompt(reader, "OAuth client ID", "${GOOGLE_CLIENT_ID}")
	a.ClientSecret = prompt(reader, "OAuth client secret", "${GOOGLE_CLIENT_SECRET}")

	fmt.Println("\n--- Passcode email ---")
	a.SMTPHost = prompt(reader, "SMTP host (empty to log codes)", "")
	if a.SMTPHost != "" {
		a.MailFrom = prompt(reader, "From address", "ally@example.com")
	}

	fmt.Println("\n--- Assistant ---")
	a.AgentURL = prompt(reader, "Agent URL", "http://localhost:9000")

	fmt.Println("\n--- Logging ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("\n  ✓ Config written to %s\n", outputFile)
	green.Printf("  ✓ Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the gateway:")
	fmt.Println("  ally-gateway serve")
	return nil
}

func renderConfig(a initAnswers) string {
	var b strings.Builder
	w := func(format string, args ...any) { fmt.Fprintf(&b, format, args...) }

	w("# ally-gateway configuration\n")
	w("# Generated by ally-gateway init\n\n")

	w("server:\n")
	w("  http_addr: %q\n", a.HTTPAddr)
	w("  public_url: %q\n\n", a.PublicURL)

	w("database:\n")
	w("  path: %q\n\n", a.DBPath)

	w("redis:\n")
	w("  addr: %q\n\n", a.RedisAddr)

	w("matrix:\n")
	w("  homeserver: %q\n", a.Homeserver)
	w("  user_id: %q\n", a.MatrixUser)
	w("  access_token: %q\n", a.MatrixToken)
	w("  encryption: %t\n", a.Encryption)
	w("  typing_indicator: true\n\n")

	w("google:\n")
	w("  client_id: %q\n", a.ClientID)
	w("  client_secret: %q\n", a.ClientSecret)
	w("  state_secret: %q\n\n", a.StateSecret)

	w("otp:\n")
	w("  ttl: \"10m\"\n")
	if a.SMTPHost != "" {
		w("  from: %q\n", a.MailFrom)
		w("  smtp:\n")
		w("    host: %q\n", a.SMTPHost)
		w("    port: 587\n")
	}
	w("\n")

	w("session:\n")
	w("  inactivity_timeout: \"24h\"\n")
	w("  stale_after: \"60s\"\n\n")

	w("rate_limits:\n")
	w("  auth:\n    max_attempts: 5\n    window: \"15m\"\n")
	w("  message:\n    max_attempts: 30\n    window: \"60s\"\n\n")

	w("agent:\n")
	w("  url: %q\n", a.AgentURL)
	w("  timeout: \"2m\"\n\n")

	w("logging:\n")
	w("  level: %q\n", a.LogLevel)
	w("  format: %q\n", a.LogFormat)
	return b.String()
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func yes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
