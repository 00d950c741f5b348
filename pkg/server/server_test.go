package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evmconnect/pkg/controller"
	"evmconnect/pkg/models"
	"evmconnect/pkg/provider"
	"evmconnect/pkg/store"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const addrA = "0x5145def5C916E5910EB965dF98B6C6e6B4767bD3"

type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConnector) DismissError() {
	m.Called()
}

func TestHandleState(t *testing.T) {
	st := store.New()
	st.SetProviderStatus(models.ProviderPresent)
	st.ApplyAccounts([]string{addrA}, "2.5000", "0x1e")
	s := NewServer(new(MockConnector), st, nil)

	req, _ := http.NewRequest("GET", "/api/state", nil)
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{addrA}, resp["accounts"])
	assert.Equal(t, "2.5000", resp["balance"])
	assert.Equal(t, "0x1e", resp["chainId"])
	assert.Equal(t, "30", resp["chainIdDecimal"])
	assert.Equal(t, true, resp["hasProvider"])
	assert.Equal(t, "connected", resp["phase"])
	assert.Equal(t, false, resp["isConnecting"])
}

func TestHandleState_Undetected(t *testing.T) {
	s := NewServer(new(MockConnector), store.New(), nil)

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/state", nil))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp, "hasProvider")
	assert.Nil(t, resp["hasProvider"])
	assert.Equal(t, []interface{}{}, resp["accounts"])
}

func TestHandleConnect(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"success", nil, http.StatusOK},
		{"in progress", controller.ErrConnectInProgress, http.StatusConflict},
		{"no provider", provider.ErrProviderAbsent, http.StatusServiceUnavailable},
		{"stopped", controller.ErrStopped, http.StatusServiceUnavailable},
		{"rejected", &provider.Error{Kind: provider.KindUserRejected, Message: "User rejected the request."}, http.StatusBadGateway},
		{"failed", errors.New("execution reverted"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := new(MockConnector)
			conn.On("Connect", mock.Anything).Return(tt.err).Once()
			s := NewServer(conn, store.New(), nil)

			rr := httptest.NewRecorder()
			s.mux.ServeHTTP(rr, httptest.NewRequest("POST", "/api/connect", nil))

			assert.Equal(t, tt.status, rr.Code)
			if tt.err != nil {
				var resp map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.err.Error(), resp["error"])
			}
			conn.AssertExpectations(t)
		})
	}
}

func TestHandleConnect_MethodNotAllowed(t *testing.T) {
	conn := new(MockConnector)
	s := NewServer(conn, store.New(), nil)

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/connect", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	conn.AssertNotCalled(t, "Connect", mock.Anything)
}

func TestHandleDismiss(t *testing.T) {
	conn := new(MockConnector)
	conn.On("DismissError").Return().Once()
	s := NewServer(conn, store.New(), nil)

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest("POST", "/api/error/dismiss", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	conn.AssertExpectations(t)
}

func TestHandleWS(t *testing.T) {
	st := store.New()
	s := NewServer(new(MockConnector), st, nil)
	go s.listenToStore()
	server := httptest.NewServer(s.mux)
	defer server.Close()
	defer st.Dispose()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	var msg struct {
		Type string `json:"type"`
		Data struct {
			Accounts []string `json:"accounts"`
			Balance  string   `json:"balance"`
		} `json:"data"`
	}
	err = ws.ReadJSON(&msg)
	require.NoError(t, err)
	assert.Equal(t, "initial", msg.Type)

	st.ApplyAccounts([]string{addrA}, "1.0000", "0x1")

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		require.NoError(t, ws.ReadJSON(&msg))
		if len(msg.Data.Accounts) > 0 {
			break
		}
	}
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, []string{addrA}, msg.Data.Accounts)
	assert.Equal(t, "1.0000", msg.Data.Balance)
}
