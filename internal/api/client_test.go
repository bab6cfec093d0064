package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	mu          sync.Mutex
	token       string
	invalidated []string
}

func (f *fakeCreds) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeCreds) Invalidate(token string, reason error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == f.token {
		f.token = ""
	}
	f.invalidated = append(f.invalidated, token)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeCreds) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{BaseURL: srv.URL + "/"})
	creds := &fakeCreds{token: "tok-1"}
	client.SetCredentials(creds)
	return client, creds
}

func TestLogin_ReturnsRoleFromBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "admin@nexus.com", body["email"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"token":"jwt","username":"admin","role":"ADMIN","id":1}`)
	})

	result, err := client.Login(context.Background(), "admin@nexus.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", result.Token)
	assert.Equal(t, models.RoleAdmin, result.Role)
	assert.Equal(t, "1", result.ID)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
		code   string
	}{
		{"bad credentials", http.StatusUnauthorized, `{"error":"Unauthorized","message":"Bad credentials"}`, KindAuthentication, CodeInvalidCredentials},
		{"missing role", http.StatusOK, `{"token":"jwt","username":"x"}`, KindAuthentication, CodeRoleMissing},
		{"unknown role", http.StatusOK, `{"token":"jwt","role":"GUEST"}`, KindAuthentication, CodeRoleMissing},
		{"server down", http.StatusBadGateway, `upstream`, KindServer, ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				io.WriteString(w, test.body)
			})
			_, err := client.Login(context.Background(), "a@b.com", "secret")
			require.Error(t, err)
			assert.True(t, IsKind(err, test.kind), "got %v", err)
			if test.code != "" {
				assert.True(t, HasCode(err, test.code), "got %v", err)
			}
		})
	}
}

func TestRegister_LocalValidationSendsNothing(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := client.Register(context.Background(), models.Registration{Username: "ops", Email: "bad", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	var valErr *models.ValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.False(t, called)
}

func TestRegister_Conflicts(t *testing.T) {
	tests := []struct {
		body string
		code string
	}{
		{"Email already taken", CodeEmailTaken},
		{`{"code":"USERNAME_TAKEN","message":"Username already exists"}`, CodeUsernameTaken},
		{`{"error":"Bad Request","details":[{"field":"password","message":"too short"}]}`, CodeInvalidInput},
	}

	for _, test := range tests {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, test.body)
		})
		err := client.Register(context.Background(), models.Registration{Username: "ops", Email: "ops@nexus.com", Password: "secret1"})
		assert.True(t, HasCode(err, test.code), "body %q got %v", test.body, err)
	}
}

func TestAuthed_RefusesWithoutToken(t *testing.T) {
	called := false
	client, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	creds.token = ""

	_, err := client.FullReport(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, called)
}

func TestAuthed_ForbiddenInvalidatesSession(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.WriteHeader(status)
		})

		_, err := client.WeeklyStats(context.Background())
		require.Error(t, err)
		assert.True(t, HasCode(err, CodeSessionInvalid))
		assert.Equal(t, []string{"tok-1"}, creds.invalidated)

		// the credential is gone, so nothing else is sent
		_, err = client.SimulationState(context.Background())
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.Len(t, creds.invalidated, 1)
	}
}

func TestFullReport_AdaptsVariants(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"stats": {"averageTemperature": 22.5, "totalEnergyConsumption": 1000, "peakLoad": 90.5, "totalRecords": 2},
			"recentReadings": [
				{"id": 2, "timestamp": "2026-03-02T10:00:00.123", "temperature": 21, "hvacUsage": "On", "lightingStatus": "OFF", "energyConsumption": 80.5, "holiday": "No"},
				{"id": "1", "timestamp": "2026-03-02 09:00:00", "hvacStatus": true, "consumption": 70, "isHoliday": true, "renewablePercent": 12.5}
			],
			"aiInsights": {"anomalyDetected": true, "expectedValue": 70, "actualValue": 80.5, "deviationPercent": 15, "optimizationSuggestion": "Lower setpoint"}
		}`)
	})

	report, err := client.FullReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report.RecentReadings, 2)

	newest := report.RecentReadings[0]
	assert.Equal(t, "2", newest.ID)
	assert.True(t, newest.HVACOn)
	assert.False(t, newest.LightingOn)
	assert.False(t, newest.Holiday)
	assert.Equal(t, 80.5, newest.EnergyConsumption)
	assert.Equal(t, 10, newest.Timestamp.Hour())

	older := report.RecentReadings[1]
	assert.Equal(t, "1", older.ID)
	assert.True(t, older.HVACOn)
	assert.True(t, older.Holiday)
	assert.Equal(t, 70.0, older.EnergyConsumption)
	assert.Equal(t, 12.5, older.RenewableEnergy)

	assert.Equal(t, int64(2), report.Stats.TotalRecords)
	assert.True(t, report.AIInsights.AnomalyDetected)
	assert.Equal(t, "Lower setpoint", report.AIInsights.OptimizationSuggestion)
}

func TestFullReport_MalformedIsServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>`)
	})
	_, err := client.FullReport(context.Background())
	assert.True(t, IsKind(err, KindServer))
}

func TestSimulationState_Shapes(t *testing.T) {
	for _, body := range []string{"STREAMING", `"STREAMING"`, `{"status":"streaming"}`} {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		})
		status, err := client.SimulationState(context.Background())
		require.NoError(t, err, body)
		assert.Equal(t, models.StatusStreaming, status)
	}
}

func TestWeeklyStats_SortedMondayFirst(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"day":"Sunday","avgConsumption":10},{"day":"Monday","actual":20,"predicted":18}]`)
	})
	stats, err := client.WeeklyStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Monday", stats[0].Day)
	assert.Equal(t, 20.0, stats[0].AvgConsumption)
	require.NotNil(t, stats[0].ExpectedConsumption)
	assert.Equal(t, 18.0, *stats[0].ExpectedConsumption)
	assert.Nil(t, stats[1].ExpectedConsumption)
}

func TestIngestDataset_Multipart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/ingest-dataset", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "data.csv", header.Filename)
		assert.Equal(t, "a,b\n1,2\n", string(data))
		io.WriteString(w, "Dataset queued")
	})

	msg, err := client.IngestDataset(context.Background(), "/tmp/data.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "Dataset queued", msg)
}

func TestChangeRole_Body(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ops@nexus.com", body["email"])
		assert.Equal(t, "ADMIN", body["newRole"])
		io.WriteString(w, "Role updated")
	})
	msg, err := client.ChangeRole(context.Background(), "ops@nexus.com", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Role updated", msg)
}

func TestOpenStream_TokenInQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("token"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: status\ndata: IDLE\n\n")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, StreamTokenInQuery: true})
	client.SetCredentials(&fakeCreds{token: "tok-1"})

	body, err := client.OpenStream(context.Background())
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Contains(t, string(data), "data: IDLE")
}

func TestOpenStream_ForbiddenIsPermanent(t *testing.T) {
	client, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := client.OpenStream(context.Background())
	assert.True(t, IsKind(err, KindAuthentication))
	assert.False(t, IsRetryable(err))
	assert.Len(t, creds.invalidated, 1)
}

func TestNetworkErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(Config{BaseURL: url})
	err := client.Ping(context.Background())
	assert.True(t, IsKind(err, KindNetwork))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("boom")))
}
