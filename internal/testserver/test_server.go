package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpggio/fieldlog/internal/app"
	"github.com/rpggio/fieldlog/internal/config"
	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/domain/reconcile"
	"github.com/rpggio/fieldlog/internal/mcp"
	"github.com/rpggio/fieldlog/internal/transport"
	"github.com/stretchr/testify/require"
)

// AdminSecret guards the admin routes of every test server.
const AdminSecret = "test-admin-secret"

// TestServer is a full HTTP stack over an in-memory SQLite database.
type TestServer struct {
	Server     *httptest.Server
	Store      *app.Store
	Token      string
	ActorID    string
	EmployeeID string

	Projects  *project.Service
	Progress  *progress.Service
	Reconcile *reconcile.Service
}

// New starts a server whose token authenticates actorID, an actor that owns an
// employee profile.
func New(t *testing.T, token, actorID string) *TestServer {
	t.Helper()

	st, err := app.OpenStore(context.Background(), config.DBConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	svc := app.NewServices(st, nil)

	mcpServer := mcp.NewServer(mcp.Config{
		Services:      mcp.Services{Projects: svc.Projects, Progress: svc.Progress},
		Resolver:      st.APIKeys,
		AuthEnabled:   true,
		TransportMode: config.ModeHTTP,
	})

	handler := transport.NewServer(transport.Config{
		Projects:    svc.Projects,
		Progress:    svc.Progress,
		Activity:    svc.Activity,
		Reconcile:   svc.Reconcile,
		Auth:        transport.AuthMiddleware(st.APIKeys, ""),
		AdminSecret: AdminSecret,
		MCP:         mcp.NewHTTPHandler(mcpServer),
	})
	server := httptest.NewServer(handler)

	ts := &TestServer{
		Server:     server,
		Store:      st,
		Token:      token,
		ActorID:    actorID,
		EmployeeID: "emp-" + actorID,
		Projects:   svc.Projects,
		Progress:   svc.Progress,
		Reconcile:  svc.Reconcile,
	}

	require.NoError(t, ts.AddEmployee(ts.EmployeeID, actorID, "Employee "+actorID))
	require.NoError(t, ts.AddAPIKey(token, actorID))

	t.Cleanup(func() {
		server.Close()
		st.Close()
	})

	return ts
}

// AddAPIKey lets token authenticate actorID.
func (ts *TestServer) AddAPIKey(token, actorID string) error {
	return ts.Store.APIKeys.Create(context.Background(), token, actorID, "test key")
}

// AddEmployee registers the employee profile owned by actorID.
func (ts *TestServer) AddEmployee(id, actorID, name string) error {
	return ts.Store.Employees.Create(context.Background(), &employee.Employee{ID: id, UserID: actorID, Name: name})
}

// Do sends a JSON request. A non-nil body is encoded as JSON; headers are applied as is.
func (ts *TestServer) Do(t *testing.T, method, path string, body any, headers map[string]string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// Bearer is the authorization header of token.
func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// Admin is the header set of the admin routes.
func Admin() map[string]string {
	return map[string]string{transport.AdminSecretHeader: AdminSecret}
}
