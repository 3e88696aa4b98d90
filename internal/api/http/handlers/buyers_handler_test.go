package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/lead-intake-service/internal/api/http"
	"github.com/spec-kit/lead-intake-service/internal/api/http/handlers"
	"github.com/spec-kit/lead-intake-service/internal/auth"
	"github.com/spec-kit/lead-intake-service/internal/config"
	"github.com/spec-kit/lead-intake-service/internal/domain"
	"github.com/spec-kit/lead-intake-service/internal/events"
	"github.com/spec-kit/lead-intake-service/internal/observability"
	"github.com/spec-kit/lead-intake-service/internal/repository"
	"github.com/spec-kit/lead-intake-service/internal/service"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "demo1234"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()
	leadService := service.NewLeadService(service.LeadDependencies{
		BuyerRepo:   store,
		HistoryRepo: store,
		Dispatcher:  dispatcher,
	})
	authService, err := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            4,
		DemoEmail:             demoEmail,
		DemoPassword:          demoPassword,
	}, nil)
	require.NoError(t, err)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("test", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Buyers:         handlers.NewBuyersHandler(leadService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), authService),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func login(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/auth/login", "", fiber.Map{
		"email":    demoEmail,
		"password": demoPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Data.Token)
	return body.Data.Token
}

func alicePayload() fiber.Map {
	return fiber.Map{
		"fullName":     "Alice",
		"phone":        "9876543210",
		"city":         "Chandigarh",
		"propertyType": "Apartment",
		"bhk":          "2",
		"purpose":      "Buy",
		"timeline":     "0-3m",
		"source":       "Website",
	}
}

func createAlice(t *testing.T, app *fiber.App, token string) domain.Buyer {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/buyers", token, alicePayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Data domain.Buyer `json:"data"`
	}
	decodeBody(t, resp, &body)
	return body.Data
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/auth/login", "", fiber.Map{
		"email":    demoEmail,
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBuyersRequireAuthentication(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/buyers", "", alicePayload())
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/buyers", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndFetchBuyer(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)

	created := createAlice(t, app, token)
	require.NotEmpty(t, created.ID)
	require.Equal(t, domain.StatusNew, created.Status)

	resp := doJSON(t, app, http.MethodGet, "/buyers/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Buyer   domain.Buyer `json:"buyer"`
			History []struct {
				Action    string      `json:"action"`
				ChangedBy string      `json:"changedBy"`
				Diff      domain.Diff `json:"diff"`
			} `json:"history"`
		} `json:"data"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, created.ID, body.Data.Buyer.ID)
	require.Len(t, body.Data.History, 1)
	require.Equal(t, "Created Lead", body.Data.History[0].Action)
	require.Equal(t, demoEmail, body.Data.History[0].ChangedBy)
}

func TestCreateBuyerValidationFailure(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)

	payload := alicePayload()
	delete(payload, "bhk")
	resp := doJSON(t, app, http.MethodPost, "/buyers", token, payload)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Contains(t, body.Error.Details, "bhk")
}

func TestUpdateBuyerConflictAndSuccess(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)
	created := createAlice(t, app, token)

	// Stale timestamp: rejected outright, record untouched.
	resp := doJSON(t, app, http.MethodPut, "/buyers/"+created.ID, token, fiber.Map{
		"updatedAt": created.UpdatedAt.Add(-time.Minute),
		"status":    "Qualified",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var conflict struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	decodeBody(t, resp, &conflict)
	require.Equal(t, "CONFLICT", conflict.Error.Code)
	require.Contains(t, conflict.Error.Details, "current")

	// Fresh timestamp: accepted.
	resp = doJSON(t, app, http.MethodPut, "/buyers/"+created.ID, token, fiber.Map{
		"updatedAt": created.UpdatedAt,
		"status":    "Qualified",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated struct {
		Data domain.Buyer `json:"data"`
	}
	decodeBody(t, resp, &updated)
	require.Equal(t, domain.StatusQualified, updated.Data.Status)

	resp = doJSON(t, app, http.MethodGet, "/buyers/"+created.ID+"/history", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Data []struct {
			Action string      `json:"action"`
			Diff   domain.Diff `json:"diff"`
		} `json:"data"`
	}
	decodeBody(t, resp, &history)
	require.Len(t, history.Data, 2)
	require.Equal(t, "Updated Lead", history.Data[0].Action)
	require.Len(t, history.Data[0].Diff, 1)
	require.Contains(t, history.Data[0].Diff, "status")
}

func TestUpdateBuyerRequiresTimestamp(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)
	created := createAlice(t, app, token)

	resp := doJSON(t, app, http.MethodPut, "/buyers/"+created.ID, token, fiber.Map{
		"status": "Qualified",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetBuyerNotFound(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)

	resp := doJSON(t, app, http.MethodGet, "/buyers/does-not-exist", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListBuyersSearchAndFilter(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)
	createAlice(t, app, token)

	resp := doJSON(t, app, http.MethodPost, "/buyers", token, fiber.Map{
		"fullName":     "Bob Verma",
		"phone":        "9123456789",
		"city":         "Mohali",
		"propertyType": "Plot",
		"purpose":      "Buy",
		"timeline":     "Exploring",
		"source":       "Referral",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var list struct {
		Data struct {
			Items      []domain.Buyer `json:"items"`
			TotalCount int            `json:"totalCount"`
		} `json:"data"`
	}

	resp = doJSON(t, app, http.MethodGet, "/buyers?search=alice", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &list)
	require.Equal(t, 1, list.Data.TotalCount)
	require.Equal(t, "Alice", list.Data.Items[0].FullName)

	resp = doJSON(t, app, http.MethodGet, "/buyers?city=Mohali&status=New", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &list)
	require.Equal(t, 1, list.Data.TotalCount)
	require.Equal(t, "Bob Verma", list.Data.Items[0].FullName)
}

func TestDeleteBuyer(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)
	created := createAlice(t, app, token)

	resp := doJSON(t, app, http.MethodDelete, "/buyers/"+created.ID, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/buyers/"+created.ID, token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
