package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"durgatraders/m/domain"
	"durgatraders/m/internal/auth"
	"durgatraders/m/internal/billing"
	"durgatraders/m/internal/catalog"
	"durgatraders/m/internal/testdb"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	tiles  *catalog.Store
	token  string
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	db := testdb.New(t)
	tiles := catalog.New(db)
	ledger := billing.NewLedger(db)
	numbers, err := billing.NewBillNumbers(billing.DefaultBillPrefix, 1)
	require.NoError(t, err)
	orders := billing.NewProcessor(db, tiles, ledger, numbers)
	authn, err := auth.NewTokenAuthenticator("admin", "admin123", "", "test-secret", time.Hour)
	require.NoError(t, err)

	h := New(tiles, ledger, orders, authn, zap.NewNop(), opts)
	return &testServer{t: t, router: h.Router(), tiles: tiles}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login() {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/login", auth.Credentials{Username: "admin", Password: "admin123"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	decode(s.t, rec, &resp)
	require.NotEmpty(s.t, resp.Token)
	s.token = resp.Token
}

func (s *testServer) addTile(name string, price string, qty int64) int64 {
	s.t.Helper()
	id, err := s.tiles.Create(context.Background(), catalog.TileInput{
		Name: name, Type: "Ceramic", Size: "12x12", Color: "White",
		Price: decimal.RequireFromString(price), Quantity: qty,
	})
	require.NoError(s.t, err)
	return id
}

func (s *testServer) stock(id int64) int64 {
	s.t.Helper()
	tile, err := s.tiles.Get(context.Background(), id)
	require.NoError(s.t, err)
	return tile.Quantity
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	decode(t, rec, &resp)
	return resp.Error
}

func tilePath(id int64) string {
	return "/api/tiles/" + strconv.FormatInt(id, 10)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t, Options{})
	for _, path := range []string{"/api/tiles", "/api/bills", "/api/reports/sales", "/api/tiles/low-stock"} {
		rec := s.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := s.do(http.MethodPost, "/api/bills", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := s.do(http.MethodPost, "/api/login", auth.Credentials{Username: "admin", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid username or password", errorMessage(t, rec))

	rec = s.do(http.MethodPost, "/api/login", auth.Credentials{Username: "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/login", auth.Credentials{Username: "admin", Password: "admin123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/tiles", nil)
	req.AddCookie(cookie)
	cookieRec := httptest.NewRecorder()
	s.router.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code, "session cookie authenticates")
}

func TestAuthStatusAndLogout(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := s.do(http.MethodGet, "/api/auth/status", nil)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	s.login()
	rec = s.do(http.MethodGet, "/api/auth/status", nil)
	var status struct {
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username"`
	}
	decode(t, rec, &status)
	assert.True(t, status.Authenticated)
	assert.Equal(t, "admin", status.Username)

	rec = s.do(http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/tiles", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "token is revoked after logout")
}

func TestTilesCRUD(t *testing.T) {
	s := newTestServer(t, Options{})
	s.login()

	input := map[string]any{
		"name": "Marble Finish", "type": "Porcelain", "size": "24x24", "color": "Beige",
		"price": 85.00, "quantity": 50, "supplier": "Marble Co",
	}
	rec := s.do(http.MethodPost, "/api/tiles", input)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Message string `json:"message"`
		ID      int64  `json:"id"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "Tile added successfully", created.Message)

	rec = s.do(http.MethodGet, tilePath(created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tile domain.Tile
	decode(t, rec, &tile)
	assert.Equal(t, "Marble Finish", tile.Name)
	assert.True(t, decimal.RequireFromString("85").Equal(tile.Price))

	input["quantity"] = 45
	rec = s.do(http.MethodPut, tilePath(created.ID), input)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(45), s.stock(created.ID))

	rec = s.do(http.MethodGet, "/api/tiles", nil)
	var tiles []domain.Tile
	decode(t, rec, &tiles)
	assert.Len(t, tiles, 1)

	rec = s.do(http.MethodDelete, tilePath(created.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = s.do(method, tilePath(created.ID), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Tile not found", errorMessage(t, rec))
	}
	rec = s.do(http.MethodPut, tilePath(created.ID), input)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTiles_BadRequests(t *testing.T) {
	s := newTestServer(t, Options{})
	s.login()

	rec := s.do(http.MethodPost, "/api/tiles", map[string]any{"name": "No Type", "price": 1, "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "missing required fields")

	rec = s.do(http.MethodPost, "/api/tiles", `{"name":"A","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = s.do(http.MethodGet, "/api/tiles/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/tiles/low-stock?threshold=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLowStock(t *testing.T) {
	s := newTestServer(t, Options{LowStockThreshold: 5})
	s.login()
	s.addTile("Plenty", "10", 100)
	s.addTile("Few", "10", 3)

	rec := s.do(http.MethodGet, "/api/tiles/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tiles []domain.Tile
	decode(t, rec, &tiles)
	require.Len(t, tiles, 1)
	assert.Equal(t, "Few", tiles[0].Name)

	rec = s.do(http.MethodGet, "/api/tiles/low-stock?threshold=500", nil)
	decode(t, rec, &tiles)
	assert.Len(t, tiles, 2)
}

type billResponse struct {
	Message     string          `json:"message"`
	BillID      int64           `json:"bill_id"`
	BillNumber  string          `json:"bill_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

func TestCreateBill(t *testing.T) {
	s := newTestServer(t, Options{})
	s.login()
	id := s.addTile("Premium Ceramic", "45.00", 10)

	rec := s.do(http.MethodPost, "/api/bills", map[string]any{
		"customer_name": "Ravi",
		"items":         []map[string]any{{"tile_id": id, "quantity": 4, "price": 45.00}},
		"discount":      20,
		"tax_amount":    17,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp billResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Bill created successfully", resp.Message)
	assert.Regexp(t, `^DT\d+$`, resp.BillNumber)
	assert.True(t, decimal.RequireFromString("180").Equal(resp.TotalAmount), resp.TotalAmount.String())
	assert.True(t, decimal.RequireFromString("177").Equal(resp.FinalAmount), resp.FinalAmount.String())
	assert.Equal(t, int64(6), s.stock(id))

	rec = s.do(http.MethodGet, "/api/bills/"+strconv.FormatInt(resp.BillID, 10), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bill domain.Bill
	decode(t, rec, &bill)
	assert.Equal(t, resp.BillNumber, bill.BillNumber)
	assert.Equal(t, "Cash", bill.PaymentMethod)
	require.Len(t, bill.Items, 1)
	assert.Equal(t, "Premium Ceramic", bill.Items[0].TileName)

	rec = s.do(http.MethodGet, "/api/bills", nil)
	var bills []domain.Bill
	decode(t, rec, &bills)
	assert.Len(t, bills, 1)
}

func TestCreateBill_Errors(t *testing.T) {
	s := newTestServer(t, Options{})
	s.login()
	id := s.addTile("Glass Mosaic", "120.00", 5)

	t.Run("validation", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/bills", map[string]any{
			"customer_name": "",
			"items":         []map[string]any{{"tile_id": id, "quantity": 1, "price": 120}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/bills", `{"customer_name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown tile", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/bills", map[string]any{
			"customer_name": "Ravi",
			"items":         []map[string]any{{"tile_id": 9999, "quantity": 1, "price": 120}},
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "tile 9999 not found", errorMessage(t, rec))
	})

	t.Run("insufficient stock", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/bills", map[string]any{
			"customer_name": "Ravi",
			"items":         []map[string]any{{"tile_id": id, "quantity": 6, "price": 120}},
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		var resp struct {
			TileID    int64  `json:"tile_id"`
			TileName  string `json:"tile_name"`
			Available int64  `json:"available"`
			Requested int64  `json:"requested"`
		}
		decode(t, rec, &resp)
		assert.Equal(t, id, resp.TileID)
		assert.Equal(t, "Glass Mosaic", resp.TileName)
		assert.Equal(t, int64(5), resp.Available)
		assert.Equal(t, int64(6), resp.Requested)
	})

	assert.Equal(t, int64(5), s.stock(id))
	rec := s.do(http.MethodGet, "/api/bills", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetBill_NotFound(t *testing.T) {
	s := newTestServer(t, Options{})
	s.login()
	rec := s.do(http.MethodGet, "/api/bills/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Bill not found", errorMessage(t, rec))
}

func TestRespondOrderError(t *testing.T) {
	h := &Handler{log: zap.NewNop()}
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"partial commit", &billing.PartialCommitError{BillID: 7, BillNumber: "DT1", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{"storage", &billing.StorageError{Op: "commit order", Err: errors.New("locked")}, http.StatusInternalServerError},
		{"wrapped validation", errors.Join(errors.New("ctx"), &billing.ValidationError{Field: "items", Message: "empty"}), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.respondOrderError(rec, httptest.NewRequest(http.MethodPost, "/api/bills", nil), tt.err)
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.respondOrderError(rec, httptest.NewRequest(http.MethodPost, "/api/bills", nil),
		&billing.PartialCommitError{BillID: 7, BillNumber: "DT1", Err: errors.New("disk full")})
	assert.JSONEq(t, `{"error":"Bill created but failed to update inventory","bill_id":7,"bill_number":"DT1"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.respondOrderError(rec, httptest.NewRequest(http.MethodPost, "/api/bills", nil), &billing.StorageError{Op: "commit order", Err: errors.New("locked")})
	assert.Equal(t, "Failed to create bill", errorMessage(t, rec), "storage details stay out of the response")
}

func TestSalesReport(t *testing.T) {
	s := newTestServer(t, Options{})
	s.login()
	id := s.addTile("Wood Look", "35.50", 100)

	rec := s.do(http.MethodPost, "/api/bills", map[string]any{
		"customer_name": "Anita",
		"items":         []map[string]any{{"tile_id": id, "quantity": 2, "price": 35.50}},
		"tax_amount":    3.55,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	today := time.Now().UTC().Format("2006-01-02")
	rec = s.do(http.MethodGet, "/api/reports/sales?start_date="+today+"&end_date="+today, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary billing.SalesSummary
	decode(t, rec, &summary)
	assert.Equal(t, int64(1), summary.BillCount)
	assert.True(t, decimal.RequireFromString("74.55").Equal(summary.Revenue), summary.Revenue.String())

	rec = s.do(http.MethodGet, "/api/reports/sales?start_date=2001-01-01&end_date=2001-01-31", nil)
	decode(t, rec, &summary)
	assert.Zero(t, summary.BillCount)

	rec = s.do(http.MethodGet, "/api/reports/sales?start_date=01/02/2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodGet, "/api/reports/sales?start_date=2024-02-02&end_date=2024-02-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Durga Traders</h1>"), 0o600))
	s := newTestServer(t, Options{StaticDir: dir})

	rec := s.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Durga Traders")
}

func corsHeaders(t *testing.T, opts Options, origin string) http.Header {
	t.Helper()
	s := newTestServer(t, opts)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", origin)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Header()
}

func TestCORS(t *testing.T) {
	t.Run("same origin only by default", func(t *testing.T) {
		h := corsHeaders(t, Options{}, "https://evil.example")
		assert.Empty(t, h.Get("Access-Control-Allow-Origin"))
		assert.Empty(t, h.Get("Access-Control-Allow-Credentials"))
	})

	t.Run("listed origin gets credentials", func(t *testing.T) {
		opts := Options{CORSOrigins: []string{"https://shop.example"}}
		h := corsHeaders(t, opts, "https://shop.example")
		assert.Equal(t, "https://shop.example", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", h.Get("Access-Control-Allow-Credentials"))

		h = corsHeaders(t, opts, "https://evil.example")
		assert.Empty(t, h.Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard never shares credentials", func(t *testing.T) {
		h := corsHeaders(t, Options{CORSOrigins: []string{"*"}}, "https://evil.example")
		assert.NotEmpty(t, h.Get("Access-Control-Allow-Origin"))
		assert.Empty(t, h.Get("Access-Control-Allow-Credentials"))
	})
}
