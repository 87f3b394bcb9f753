package test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMCPOdooServer drives a running mcp-odoo server end to end. It needs a
// live instance (plus an Odoo backend, real or examples/fake-odoo), so it
// only runs when MCPODOO_TEST_SERVER points at one:
//
//	MCPODOO_TEST_SERVER=http://localhost:8080 go test -run TestMCPOdooServer ./test
func TestMCPOdooServer(t *testing.T) {
	serverURL := os.Getenv("MCPODOO_TEST_SERVER")
	if serverURL == "" {
		t.Skip("MCPODOO_TEST_SERVER not set. Start the server and run manually with: MCPODOO_TEST_SERVER=http://localhost:8080 go test -run TestMCPOdooServer ./test")
	}
	serverURL = strings.TrimRight(serverURL, "/")

	// Wait for the server to be ready.
	for i := 0; i < 10; i++ {
		resp, err := http.Get(serverURL + "/health")
		if err == nil && resp.StatusCode == 200 {
			resp.Body.Close()
			break
		}
		if i == 9 {
			t.Fatalf("server at %s not answering /health", serverURL)
		}
		time.Sleep(time.Second)
	}

	t.Run("health reports the tool count", func(t *testing.T) {
		resp, err := http.Get(serverURL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		var health struct {
			Status      string `json:"status"`
			Service     string `json:"service"`
			ToolsLoaded int    `json:"tools_loaded"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		assert.Equal(t, "healthy", health.Status)
		assert.Equal(t, "mcp-odoo", health.Service)
		assert.Equal(t, 25, health.ToolsLoaded)
	})

	t.Run("sse handshake arrives in order", func(t *testing.T) {
		resp, err := http.Get(serverURL + "/sse")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var events []string
		var event string
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() && len(events) < 3 {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: ") && event != "":
				events = append(events, event)
				event = ""
			}
		}
		assert.Equal(t, []string{"endpoint", "session", "ready"}, events)
	})

	t.Run("initialize", func(t *testing.T) {
		response := postMessage(t, serverURL, map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "initialize",
			"id":      1,
			"params": map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"clientInfo": map[string]interface{}{
					"name":    "mcp-odoo-integration-test",
					"version": "1.0.0",
				},
			},
		})

		result, ok := response["result"].(map[string]interface{})
		require.True(t, ok, "no result in %v", response)
		assert.Equal(t, "2024-11-05", result["protocolVersion"])

		serverInfo, ok := result["serverInfo"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "mcp-odoo", serverInfo["name"])
	})

	t.Run("list tools", func(t *testing.T) {
		response := postMessage(t, serverURL, map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "tools/list",
			"id":      2,
		})

		result, ok := response["result"].(map[string]interface{})
		require.True(t, ok)

		tools, ok := result["tools"].([]interface{})
		require.True(t, ok)
		assert.Len(t, tools, 25)

		// Find the version probe tool.
		var versionTool map[string]interface{}
		for _, tool := range tools {
			m := tool.(map[string]interface{})
			if m["name"] == "odoo_version" {
				versionTool = m
				break
			}
		}

		require.NotNil(t, versionTool, "odoo_version tool not found")
		t.Logf("Found tool: %v", versionTool)
	})

	t.Run("call odoo_version", func(t *testing.T) {
		response := postMessage(t, serverURL, map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "tools/call",
			"id":      3,
			"params": map[string]interface{}{
				"name":      "odoo_version",
				"arguments": map[string]interface{}{},
			},
		})

		result, ok := response["result"].(map[string]interface{})
		require.True(t, ok, "no result in %v", response)

		content, ok := result["content"].([]interface{})
		require.True(t, ok)
		require.Len(t, content, 1)

		firstContent := content[0].(map[string]interface{})
		text, ok := firstContent["text"].(string)
		require.True(t, ok)

		assert.Contains(t, text, "server_version")
		t.Logf("Odoo version: %s", text)
	})

	t.Run("unknown method echoes the request id", func(t *testing.T) {
		response := postMessage(t, serverURL, map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "unknown_method",
			"id":      7,
		})

		assert.Equal(t, float64(7), response["id"])

		rpcErr, ok := response["error"].(map[string]interface{})
		require.True(t, ok, "no error in %v", response)
		assert.Equal(t, float64(-32601), rpcErr["code"])
	})
}

// postMessage sends one JSON-RPC request to the /messages endpoint and
// decodes the single JSON response body.
func postMessage(t *testing.T, serverURL string, request interface{}) map[string]interface{} {
	t.Helper()

	reqBody, err := json.Marshal(request)
	require.NoError(t, err)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(serverURL+"/messages", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	return response
}
