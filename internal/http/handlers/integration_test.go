//go:build integration

package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"kitchen-order-service/internal/config"
	httpapi "kitchen-order-service/internal/http"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TestOrderLifecycleAgainstPostgres runs the API against a real PostgreSQL
// database: catalog setup, order capture with global and custom liter sizes,
// the inclusive date-range bounds on listing and summary, and catalog edits
// while orders reference the replaced option rows.
func TestOrderLifecycleAgainstPostgres(t *testing.T) {
	ctx := context.Background()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	applySchema(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := config.Config{
		Env:               "test",
		DatabaseURL:       connStr,
		JWTSecret:         "integration-test-secret",
		JWTExpirySeconds:  3600,
		Timezone:          "Asia/Jerusalem",
		TicketColumnLines: 14,
		TicketColumns:     3,
	}

	server := httptest.NewServer(httpapi.NewRouter(pool, zap.NewNop(), cfg, nil, nil, nil))
	defer server.Close()

	seedAdmin(t, ctx, pool)
	token := login(t, server, "admin@test.local", "secret123")

	// --- Catalog: category, a global liter size, a liters item with its own
	// preparation and custom liter size ---
	category := postJSON(t, server, "/api/admin/categories", token, map[string]any{
		"nameHe": "סלטים",
	}).(map[string]any)
	categoryID := jsonID(t, category, "id")

	literSize := postJSON(t, server, "/api/admin/liter-sizes", token, map[string]any{
		"label": "2 ליטר",
	}).(map[string]any)
	literSizeID := jsonID(t, literSize, "id")

	created := postJSON(t, server, "/api/admin/food-items", token, map[string]any{
		"categoryId":       categoryID,
		"name":             "חומוס",
		"measurementType":  "liters",
		"preparations":     []map[string]any{{"name": "חריף"}},
		"customLiterSizes": []map[string]any{{"name": "מגש קטן"}},
	}).(map[string]any)
	foodItemID := jsonID(t, created, "id")

	item := findFoodItem(t, server, token, foodItemID)
	preparationID := jsonID(t, firstOption(t, item, "preparations"), "id")
	customLiterSizeID := jsonID(t, firstOption(t, item, "customLiterSizes"), "id")

	// --- Orders on three event dates. The first mixes a global and a custom
	// liter size on one selection ---
	firstOrder := postJSON(t, server, "/api/orders", token, map[string]any{
		"customer":  map[string]any{"name": "דנה לוי", "phone": "0521111111"},
		"eventDate": "2026-09-01",
		"selections": []map[string]any{{
			"foodItemId":    foodItemID,
			"preparationId": preparationID,
			"literQuantities": []map[string]any{
				{"literSizeId": literSizeID, "quantity": 2},
				{"customLiterSizeId": customLiterSizeID, "quantity": 3},
			},
		}},
	}).(map[string]any)
	firstOrderID := jsonID(t, firstOrder, "id")

	for _, date := range []string{"2026-09-03", "2026-09-05"} {
		postJSON(t, server, "/api/orders", token, map[string]any{
			"customer":  map[string]any{"name": "יוסי כהן", "phone": "0522222222"},
			"eventDate": date,
			"selections": []map[string]any{{
				"foodItemId": foodItemID,
				"literQuantities": []map[string]any{
					{"literSizeId": literSizeID, "quantity": 1},
				},
			}},
		})
	}

	// --- Date-range filters include both endpoints ---
	if got := len(getJSON(t, server, "/api/orders?from=2026-09-01&to=2026-09-03", token).([]any)); got != 2 {
		t.Fatalf("orders in [09-01, 09-03]: got %d, want 2 (both bounds inclusive)", got)
	}
	if got := len(getJSON(t, server, "/api/orders?from=2026-09-05&to=2026-09-05", token).([]any)); got != 1 {
		t.Fatalf("orders in [09-05, 09-05]: got %d, want 1", got)
	}

	// --- Saved order comes back from the summary with the global and custom
	// liter sizes in separate buckets ---
	summary := getJSON(t, server, "/api/orders/summary?from=2026-09-01&to=2026-09-01", token).([]any)
	if len(summary) != 1 {
		t.Fatalf("summary categories: got %d, want 1", len(summary))
	}
	items := summary[0].(map[string]any)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("summary items: got %d, want 1", len(items))
	}
	liters := items[0].(map[string]any)["literQuantities"].([]any)
	if len(liters) != 2 {
		t.Fatalf("summary liter buckets: got %d, want 2 (global and custom kept apart)", len(liters))
	}
	global := liters[0].(map[string]any)
	if jsonID(t, global, "literSizeId") != literSizeID || global["quantity"].(float64) != 2 {
		t.Fatalf("global liter bucket: got %v, want literSizeId=%d quantity=2", global, literSizeID)
	}
	custom := liters[1].(map[string]any)
	if jsonID(t, custom, "customLiterSizeId") != customLiterSizeID || custom["quantity"].(float64) != 3 {
		t.Fatalf("custom liter bucket: got %v, want customLiterSizeId=%d quantity=3", custom, customLiterSizeID)
	}
	if custom["label"].(string) != "מגש קטן" {
		t.Fatalf("custom liter bucket label: got %q, want מגש קטן", custom["label"])
	}

	// Widening the range folds the later order into the same global bucket.
	summary = getJSON(t, server, "/api/orders/summary?from=2026-09-01&to=2026-09-03", token).([]any)
	liters = summary[0].(map[string]any)["items"].([]any)[0].(map[string]any)["literQuantities"].([]any)
	if got := liters[0].(map[string]any)["quantity"].(float64); got != 3 {
		t.Fatalf("global liter bucket over [09-01, 09-03]: got quantity %v, want 3", got)
	}

	// --- Replacing an item's option rows succeeds while an order references
	// them; the order keeps its rows with the option refs cleared ---
	putJSON(t, server, fmt.Sprintf("/api/admin/food-items/%d", foodItemID), token, map[string]any{
		"categoryId":       categoryID,
		"name":             "חומוס",
		"measurementType":  "liters",
		"preparations":     []map[string]any{{"name": "פיקנטי"}},
		"customLiterSizes": []map[string]any{{"name": "מגש גדול"}},
	})

	detail := getJSON(t, server, fmt.Sprintf("/api/orders/%d", firstOrderID), token).(map[string]any)
	detailItems := detail["items"].([]any)
	if len(detailItems) != 2 {
		t.Fatalf("order items after option replacement: got %d, want 2", len(detailItems))
	}
	for _, raw := range detailItems {
		row := raw.(map[string]any)
		if row["preparationId"] != nil {
			t.Fatalf("order item still references a deleted preparation: %v", row)
		}
		if row["foodItemName"].(string) != "חומוס" {
			t.Fatalf("order item name: got %q, want חומוס", row["foodItemName"])
		}
	}
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("kitchen_test"),
		tcpostgres.WithUsername("kitchen"),
		tcpostgres.WithPassword("kitchen"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return connStr, cleanup
}

func applySchema(t *testing.T, connStr string) {
	t.Helper()

	// Path relative to this package directory; go test sets the cwd there.
	schema, err := os.ReadFile("../../../schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for schema: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func seedAdmin(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	_, err = pool.Exec(ctx,
		`insert into staff_users (email, name, role, password_hash) values ($1, $2, $3, $4)`,
		"admin@test.local", "Admin", "ADMIN", string(hash))
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()

	data := postJSON(t, server, "/api/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}).(map[string]any)
	token, ok := data["accessToken"].(string)
	if !ok || token == "" {
		t.Fatalf("login: no accessToken in response: %+v", data)
	}
	return token
}

// --- API helpers ---

func findFoodItem(t *testing.T, server *httptest.Server, token string, id int64) map[string]any {
	t.Helper()

	for _, raw := range getJSON(t, server, "/api/admin/food-items", token).([]any) {
		item := raw.(map[string]any)
		if jsonID(t, item, "id") == id {
			return item
		}
	}
	t.Fatalf("food item %d not in admin list", id)
	return nil
}

func firstOption(t *testing.T, item map[string]any, field string) map[string]any {
	t.Helper()

	options, ok := item[field].([]any)
	if !ok || len(options) == 0 {
		t.Fatalf("food item %s: got %v, want at least one option", field, item[field])
	}
	return options[0].(map[string]any)
}

func jsonID(t *testing.T, obj map[string]any, field string) int64 {
	t.Helper()

	value, ok := obj[field].(float64)
	if !ok {
		t.Fatalf("field %s: got %T (%v), want a number", field, obj[field], obj[field])
	}
	return int64(value)
}

// --- HTTP helpers ---

func postJSON(t *testing.T, server *httptest.Server, path, token string, body map[string]any) any {
	t.Helper()
	return doJSON(t, server, http.MethodPost, path, token, body)
}

func putJSON(t *testing.T, server *httptest.Server, path, token string, body map[string]any) any {
	t.Helper()
	return doJSON(t, server, http.MethodPut, path, token, body)
}

func getJSON(t *testing.T, server *httptest.Server, path, token string) any {
	t.Helper()
	return doJSON(t, server, http.MethodGet, path, token, nil)
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body map[string]any) any {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool   `json:"success"`
		Data    any    `json:"data"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Success {
		t.Fatalf("%s %s: status %d, error %s: %s", method, path, resp.StatusCode, envelope.Error, envelope.Message)
	}
	return envelope.Data
}
