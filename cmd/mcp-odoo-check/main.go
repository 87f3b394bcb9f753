// Command mcp-odoo-check probes a running mcp-odoo server: the health
// endpoint, the SSE handshake, initialize and tools/list. It exits non-zero
// when any check fails, so it slots into container health checks and smoke
// tests.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var serverURL string
	var timeout time.Duration
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the running server")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Per-check timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	serverURL = strings.TrimRight(serverURL, "/")
	client := &http.Client{Timeout: timeout}

	checks := []struct {
		name string
		run  func() error
	}{
		{"health", func() error { return checkHealth(client, serverURL, logger) }},
		{"sse handshake", func() error { return checkSSE(serverURL, timeout, logger) }},
		{"initialize", func() error { return checkInitialize(client, serverURL, logger) }},
		{"tools/list", func() error { return checkListTools(client, serverURL, logger) }},
	}
	for _, c := range checks {
		if err := c.run(); err != nil {
			logger.Error("Check failed.", slog.String("check", c.name), slog.Any("error", err))
			os.Exit(1)
		}
	}
	logger.Info("All checks passed.")
}

func checkHealth(client *http.Client, serverURL string, logger *slog.Logger) error {
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var health struct {
		Status      string `json:"status"`
		Service     string `json:"service"`
		ToolsLoaded int    `json:"tools_loaded"`
		Initialized bool   `json:"initialized"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health body: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("server reports status %q", health.Status)
	}
	logger.Info("Health check passed.",
		slog.String("service", health.Service),
		slog.Int("tools_loaded", health.ToolsLoaded),
		slog.Bool("initialized", health.Initialized))
	return nil
}

// checkSSE connects to the event stream and verifies the handshake arrives
// as endpoint, session, ready in that order.
func checkSSE(serverURL string, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/sse", nil)
	if err != nil {
		return err
	}
	// A client-level timeout would cut the streaming body read, so the
	// deadline lives on the request context instead.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("unexpected content type %q", ct)
	}

	var events []string
	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && len(events) < 3 {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event != "":
			logger.Info("SSE event received.",
				slog.String("event", event),
				slog.String("data", strings.TrimPrefix(line, "data: ")))
			events = append(events, event)
			event = ""
		}
	}
	if len(events) < 3 {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("stream ended early: %w", err)
		}
		return fmt.Errorf("stream ended after %d handshake events", len(events))
	}

	want := []string{"endpoint", "session", "ready"}
	for i, name := range want {
		if events[i] != name {
			return fmt.Errorf("handshake order %v, want %v", events, want)
		}
	}
	return nil
}

func checkInitialize(client *http.Client, serverURL string, logger *slog.Logger) error {
	result, err := postRPC(client, serverURL, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"clientInfo": map[string]interface{}{
				"name":    "mcp-odoo-check",
				"version": "1.0.0",
			},
		},
	})
	if err != nil {
		return err
	}

	version, _ := result["protocolVersion"].(string)
	if version == "" {
		return fmt.Errorf("initialize result has no protocolVersion: %v", result)
	}
	serverInfo, _ := result["serverInfo"].(map[string]interface{})
	logger.Info("Initialize accepted.",
		slog.String("protocol", version), slog.Any("server", serverInfo["name"]))
	return nil
}

func checkListTools(client *http.Client, serverURL string, logger *slog.Logger) error {
	result, err := postRPC(client, serverURL, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})
	if err != nil {
		return err
	}

	tools, _ := result["tools"].([]interface{})
	if len(tools) == 0 {
		return fmt.Errorf("server advertises no tools")
	}
	names := make([]string, 0, len(tools))
	for _, raw := range tools {
		if tool, ok := raw.(map[string]interface{}); ok {
			if name, ok := tool["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	logger.Info("Tool listing received.", slog.Int("count", len(tools)), slog.Any("tools", names))
	return nil
}

// postRPC sends one JSON-RPC request to /messages and returns the result
// object. RPC-level errors come back as Go errors.
func postRPC(client *http.Client, serverURL string, request map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(serverURL+"/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Result map[string]interface{} `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return envelope.Result, nil
}
