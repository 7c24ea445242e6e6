package sales

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"

	"siglo-backend/internal/application/allocation"
	"siglo-backend/internal/application/ledger"
	"siglo-backend/internal/application/purchaseevents"
	"siglo-backend/internal/application/purchases"
	"siglo-backend/internal/domain"
	"siglo-backend/internal/infrastructure/database"
	roles "siglo-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type salesFixture struct {
	app   *fiber.App
	db    *gorm.DB
	ana   domain.User
	bruno domain.User
	admin domain.User
	lots  []domain.Lot
}

// asUser stands in for the session middleware: X-Test-User carries the user id.
func (f *salesFixture) asUser(c *fiber.Ctx) error {
	raw := c.Get("X-Test-User")
	for _, u := range []domain.User{f.ana, f.bruno, f.admin} {
		if raw == strconv.FormatUint(uint64(u.ID), 10) {
			c.Locals("user", map[string]interface{}{"user_id": raw, "role": u.Role, "email": u.Email})
		}
	}
	return c.Next()
}

func setupSalesTest(t *testing.T) *salesFixture {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	f := &salesFixture{db: db}
	f.ana = domain.User{Email: "ana@test.com", FullName: "Ana", PasswordHash: "x", Role: roles.Client}
	f.bruno = domain.User{Email: "bruno@test.com", FullName: "Bruno", PasswordHash: "x", Role: roles.Client}
	f.admin = domain.User{Email: "admin@test.com", FullName: "Admin", PasswordHash: "x", Role: roles.Admin}
	for _, u := range []*domain.User{&f.ana, &f.bruno, &f.admin} {
		require.NoError(t, db.Create(u).Error)
	}
	stage := domain.Stage{Name: "Launch"}
	require.NoError(t, db.Create(&stage).Error)
	for i, price := range []int64{60000, 40000} {
		l := domain.Lot{Code: fmt.Sprintf("A-%02d", i+1), AreaM2: decimal.NewFromInt(200), Price: decimal.NewFromInt(price), StageID: stage.ID}
		require.NoError(t, db.Create(&l).Error)
		f.lots = append(f.lots, l)
	}

	rec := &allocation.Reconciler{}
	h := &Handlers{
		Purchases: &purchases.Service{DB: db, Reconciler: rec},
		Ledger:    &ledger.Service{DB: db, Reconciler: rec},
		EventLog:  &purchaseevents.Service{DB: db},
	}
	app := fiber.New()
	app.Use(f.asUser)
	app.Post("/buy/:lot_id", h.Buy)
	app.Get("/my-purchases", h.MyPurchases)
	app.Get("/purchases/:id", h.Detail)
	app.Get("/purchases/:id/events", h.Events)
	app.Post("/purchases/:id/payments", h.RecordPayment)
	f.app = app
	return f
}

func (f *salesFixture) do(t *testing.T, method, path string, user *domain.User, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(user.ID), 10))
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func (f *salesFixture) buy(t *testing.T, user *domain.User, lot domain.Lot) uint {
	code, out := f.do(t, "POST", fmt.Sprintf("/buy/%d", lot.ID), user, nil)
	require.Equal(t, fiber.StatusCreated, code)
	return uint(out["data"].(map[string]interface{})["id"].(float64))
}

func (f *salesFixture) lotStatus(t *testing.T, id uint) domain.LotStatus {
	var l domain.Lot
	require.NoError(t, f.db.First(&l, id).Error)
	return l.Status
}

func errMessage(out map[string]interface{}) string {
	return out["error"].(map[string]interface{})["message"].(string)
}

func TestBuy(t *testing.T) {
	f := setupSalesTest(t)

	code, _ := f.do(t, "POST", fmt.Sprintf("/buy/%d", f.lots[0].ID), nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	f.buy(t, &f.ana, f.lots[0])
	assert.Equal(t, domain.LotReserved, f.lotStatus(t, f.lots[0].ID))

	code, out := f.do(t, "POST", fmt.Sprintf("/buy/%d", f.lots[0].ID), &f.bruno, nil)
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, "Lot is not available", errMessage(out))

	code, _ = f.do(t, "POST", "/buy/999", &f.bruno, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	code, _ = f.do(t, "POST", "/buy/abc", &f.bruno, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestDetail_OwnerScoped(t *testing.T) {
	f := setupSalesTest(t)
	id := f.buy(t, &f.ana, f.lots[0])
	path := fmt.Sprintf("/purchases/%d", id)

	code, out := f.do(t, "GET", path, &f.ana, nil)
	assert.Equal(t, fiber.StatusOK, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "60000", data["balance"].(map[string]interface{})["outstanding"])
	assert.Len(t, data["lots"], 1)

	code, _ = f.do(t, "GET", path, &f.bruno, nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = f.do(t, "GET", path, &f.admin, nil)
	assert.Equal(t, fiber.StatusOK, code)

	code, _ = f.do(t, "GET", "/purchases/999", &f.ana, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestMyPurchases(t *testing.T) {
	f := setupSalesTest(t)
	f.buy(t, &f.ana, f.lots[0])
	f.buy(t, &f.bruno, f.lots[1])

	code, out := f.do(t, "GET", "/my-purchases", &f.ana, nil)
	assert.Equal(t, fiber.StatusOK, code)
	data := out["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, float64(f.ana.ID), data[0].(map[string]interface{})["client_id"])
}

func TestRecordPayment_ClientPaymentsStartUnvalidated(t *testing.T) {
	f := setupSalesTest(t)
	id := f.buy(t, &f.ana, f.lots[0])
	path := fmt.Sprintf("/purchases/%d/payments", id)

	code, out := f.do(t, "POST", path, &f.ana, map[string]interface{}{"amount": "60000.00", "validated": true})
	require.Equal(t, fiber.StatusCreated, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, false, data["payment"].(map[string]interface{})["is_validated"])
	assert.Equal(t, "0", data["balance"].(map[string]interface{})["outstanding"])
	assert.Equal(t, "60000", data["balance"].(map[string]interface{})["settled_balance"])

	// Nothing validated yet: reconciliation releases the reservation, but the
	// lot stays attached so nobody else can buy it.
	assert.Equal(t, domain.LotAvailable, f.lotStatus(t, f.lots[0].ID))
	code, _ = f.do(t, "POST", fmt.Sprintf("/buy/%d", f.lots[0].ID), &f.bruno, nil)
	assert.Equal(t, fiber.StatusConflict, code)
}

func TestRecordPayment_Rejections(t *testing.T) {
	f := setupSalesTest(t)
	id := f.buy(t, &f.ana, f.lots[1])
	path := fmt.Sprintf("/purchases/%d/payments", id)

	code, out := f.do(t, "POST", path, &f.ana, map[string]interface{}{"amount": 40000.01})
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Contains(t, errMessage(out), "Amount exceeds the outstanding balance")

	for _, bad := range []interface{}{0, -5, "abc", 10.001, nil} {
		code, _ = f.do(t, "POST", path, &f.ana, map[string]interface{}{"amount": bad})
		assert.Equal(t, fiber.StatusBadRequest, code, "amount %v", bad)
	}

	code, _ = f.do(t, "POST", path, &f.bruno, map[string]interface{}{"amount": 100})
	assert.Equal(t, fiber.StatusForbidden, code)

	var n int64
	require.NoError(t, f.db.Model(&domain.Payment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestEvents(t *testing.T) {
	f := setupSalesTest(t)
	id := f.buy(t, &f.ana, f.lots[0])
	code, _ := f.do(t, "POST", fmt.Sprintf("/purchases/%d/payments", id), &f.ana, map[string]interface{}{"amount": 1500})
	require.Equal(t, fiber.StatusCreated, code)

	code, out := f.do(t, "GET", fmt.Sprintf("/purchases/%d/events", id), &f.ana, nil)
	assert.Equal(t, fiber.StatusOK, code)
	var types []string
	for _, e := range out["data"].([]interface{}) {
		types = append(types, e.(map[string]interface{})["event_type"].(string))
	}
	assert.Contains(t, types, domain.EventPurchaseCreated)
	assert.Contains(t, types, domain.EventPaymentRecorded)

	code, _ = f.do(t, "GET", fmt.Sprintf("/purchases/%d/events", id), &f.bruno, nil)
	assert.Equal(t, fiber.StatusForbidden, code)
}
