package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPInvoker executes tools on a remote MCP server over streamable HTTP.
type MCPInvoker struct {
	endpoint    string
	client      *mcpsdk.Client
	callTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	session *mcpsdk.ClientSession
}

// NewMCPInvoker creates an invoker for the MCP server at endpoint. Connect
// must be called before Call.
func NewMCPInvoker(endpoint string) *MCPInvoker {
	return &MCPInvoker{
		endpoint: endpoint,
		client: mcpsdk.NewClient(&mcpsdk.Implementation{
			Name:    "medik",
			Version: "0.1.0",
		}, nil),
		callTimeout: 60 * time.Second,
		logger:      slog.Default().With("component", "mcp-invoker"),
	}
}

// Connect establishes the MCP session and verifies tool discovery works.
func (m *MCPInvoker) Connect(ctx context.Context) error {
	transport := &mcpsdk.StreamableClientTransport{
		Endpoint: m.endpoint,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		DisableStandaloneSSE: true, // no server-initiated notifications needed
	}

	session, err := m.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", m.endpoint, err)
	}

	result, err := session.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		_ = session.Close()
		return fmt.Errorf("list tools on %s: %w", m.endpoint, err)
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	m.logger.Info("Connected to MCP server", "endpoint", m.endpoint, "tools", len(result.Tools))
	return nil
}

// Close terminates the MCP session.
func (m *MCPInvoker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	return err
}

// Call executes the named tool and returns its text content.
func (m *MCPInvoker) Call(ctx context.Context, toolName string, params map[string]any) (string, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return "", fmt.Errorf("mcp invoker not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      toolName,
		Arguments: params,
	})
	if err != nil {
		return "", fmt.Errorf("mcp call %s: %w", toolName, err)
	}

	text := extractTextContent(result)
	if result.IsError {
		return text, fmt.Errorf("tool %s failed: %s", toolName, text)
	}
	return text, nil
}

func extractTextContent(result *mcpsdk.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
