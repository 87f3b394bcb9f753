package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockGateway implements usecase.OdooGateway for handler tests.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockGateway) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *mockGateway) ServerVersion(ctx context.Context) (map[string]interface{}, error) {
	callArgs := m.Called(ctx)
	var version map[string]interface{}
	if v := callArgs.Get(0); v != nil {
		version = v.(map[string]interface{})
	}
	return version, callArgs.Error(1)
}

func (m *mockGateway) ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (json.RawMessage, error) {
	callArgs := m.Called(ctx, model, method, args, kwargs)
	var raw json.RawMessage
	if v := callArgs.Get(0); v != nil {
		raw = v.(json.RawMessage)
	}
	return raw, callArgs.Error(1)
}

func (m *mockGateway) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, limit, offset int, order string) ([]map[string]interface{}, error) {
	callArgs := m.Called(ctx, model, domain, fields, limit, offset, order)
	var records []map[string]interface{}
	if v := callArgs.Get(0); v != nil {
		records = v.([]map[string]interface{})
	}
	return records, callArgs.Error(1)
}

func (m *mockGateway) SearchCount(ctx context.Context, model string, domain []interface{}) (int, error) {
	callArgs := m.Called(ctx, model, domain)
	return callArgs.Int(0), callArgs.Error(1)
}

// hasCond reports whether the domain contains the exact
// [field, operator, value] condition.
func hasCond(dom []interface{}, field, operator string, value interface{}) bool {
	for _, raw := range dom {
		cond, ok := raw.([]interface{})
		if !ok || len(cond) != 3 {
			continue
		}
		if cond[0] == field && cond[1] == operator && deepEqual(cond[2], value) {
			return true
		}
	}
	return false
}

func deepEqual(a, b interface{}) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}
