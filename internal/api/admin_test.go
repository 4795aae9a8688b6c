package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pharmacy_system/internal/domain"
	"pharmacy_system/internal/notify"
	"pharmacy_system/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBackOfficeRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	customer := testutil.User(t, e.db, "c@example.com", "password1")
	doctor := testutil.User(t, e.db, "d@example.com", "password1", testutil.Doctor)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/admin/dashboard", "", nil).Code)
	w := e.do(http.MethodGet, "/admin/dashboard", e.token(customer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied", errorOf(t, w))
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/admin/orders", e.token(doctor), nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/doctor/prescriptions", e.token(customer), nil).Code)
}

func TestOrderStatusEndpoints(t *testing.T) {
	e := newEnv(t)
	admin := testutil.User(t, e.db, "admin@example.com", "password1", testutil.Admin)
	customer := testutil.User(t, e.db, "c@example.com", "password1")
	testutil.Medicine(t, e.db, 5, "Paracetamol", 100, 20, 10)
	order := &domain.Order{UserID: customer.ID, MedicineID: 5, Quantity: 1, Status: domain.OrderPending, Address: "12 Main St", Total: decimal.NewFromInt(80)}
	require.NoError(t, e.db.Create(order).Error)
	tok := e.token(admin)
	path := fmt.Sprintf("/admin/orders/%d", order.ID)
	status := func(s string) *httptest.ResponseRecorder { return e.do(http.MethodPut, path+"/status", tok, map[string]string{"status": s}) }

	w := status("Shipped")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "cannot move order from Pending to Shipped", errorOf(t, w))

	w = status("Lost")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status", errorOf(t, w))

	w = e.do(http.MethodPut, "/admin/orders/999/status", tok, map[string]string{"status": "Processing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", errorOf(t, w))

	require.Equal(t, http.StatusOK, status("processing").Code)
	require.Equal(t, http.StatusOK, status("Shipped").Code)

	w = e.do(http.MethodPost, path+"/confirm-otp", tok, map[string]string{"otp": "123456"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No OTP found for this order.", errorOf(t, w))

	w = status("Delivered")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, []notify.Kind{notify.KindDeliveryOTP}, e.outbox.kinds())

	var stored domain.Order
	require.NoError(t, e.db.First(&stored, order.ID).Error)
	assert.Equal(t, domain.OrderShipped, stored.Status)
	require.NotNil(t, stored.DeliveryOTP)

	w = e.do(http.MethodPost, path+"/confirm-otp", tok, map[string]string{"otp": "xxxxxx"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid OTP. Please try again.", errorOf(t, w))

	w = e.do(http.MethodPost, path+"/confirm-otp", tok, map[string]string{"otp": *stored.DeliveryOTP})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Delivered", decode(t, w)["order"].(map[string]any)["status"])

	w = e.do(http.MethodPost, path+"/confirm-otp", tok, map[string]string{"otp": *stored.DeliveryOTP})
	assert.Equal(t, http.StatusBadRequest, w.Code, "codes cannot be replayed")

	w = e.do(http.MethodGet, "/admin/orders?status=delivered", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	listed := body["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, "c@example.com", listed["user"].(map[string]any)["email"])
	assert.Equal(t, "Paracetamol", listed["medicine"].(map[string]any)["name"])
}

func TestPrescriptionReviewEndpoints(t *testing.T) {
	e := newEnv(t)
	admin := testutil.User(t, e.db, "admin@example.com", "password1", testutil.Admin)
	doctor := testutil.User(t, e.db, "d@example.com", "password1", testutil.Doctor)
	customer := testutil.User(t, e.db, "c@example.com", "password1")

	w := e.upload("/prescriptions", e.token(customer), map[string]string{"disease": "Flu"}, "prescription", "scan.png")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := int(decode(t, w)["prescription"].(map[string]any)["id"].(float64))
	path := fmt.Sprintf("/prescriptions/%d", id)

	w = e.do(http.MethodGet, "/doctor/prescriptions?status=Pending", e.token(doctor), nil)
	require.Equal(t, http.StatusOK, w.Code)
	dash := decode(t, w)
	assert.Equal(t, float64(1), dash["pending_count"])
	assert.Len(t, dash["prescriptions"], 1)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/doctor/prescriptions?date=10-03-2026", e.token(doctor), nil).Code)

	w = e.do(http.MethodPost, "/admin"+path+"/review", e.token(admin), map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusConflict, w.Code, "admins review only doctor approved prescriptions")

	w = e.do(http.MethodPost, "/doctor"+path+"/reject", e.token(doctor), map[string]string{"reason": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please provide a rejection reason!", errorOf(t, w))

	w = e.do(http.MethodPost, "/doctor"+path+"/approve", e.token(doctor), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Doctor Approved", decode(t, w)["prescription"].(map[string]any)["status"])

	w = e.do(http.MethodGet, "/admin/prescriptions/queue", e.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["prescriptions"], 1)

	w = e.do(http.MethodPost, "/admin"+path+"/review", e.token(admin), map[string]string{"action": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPost, "/admin"+path+"/review", e.token(admin), map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Approved", decode(t, w)["prescription"].(map[string]any)["status"])

	w = e.do(http.MethodPut, "/admin"+path+"/status", e.token(admin), map[string]string{"status": "Delivered"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var p domain.Prescription
	require.NoError(t, e.db.First(&p, id).Error)
	assert.Equal(t, domain.PrescriptionAwaitingOTP, p.Status)
	require.NotNil(t, p.DeliveryOTP)

	w = e.do(http.MethodPost, "/admin"+path+"/confirm-otp", e.token(admin), map[string]string{"otp": *p.DeliveryOTP})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Delivered", decode(t, w)["prescription"].(map[string]any)["status"])

	assert.Equal(t, []notify.Kind{notify.KindPrescriptionResult, notify.KindPrescriptionOTP}, e.outbox.kinds())

	w = e.do(http.MethodGet, "/admin/prescriptions/export", e.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Prescriptions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, fmt.Sprint(id), rows[1][0])
	assert.Equal(t, "c@example.com", rows[1][1])
	assert.Equal(t, "d@example.com", rows[1][2])
	assert.Equal(t, "Delivered", rows[1][5])

	w = e.do(http.MethodGet, "/admin/prescriptions", e.token(admin), nil)
	assert.Len(t, decode(t, w)["prescriptions"], 1)
}

func TestAdminRecordsPrescription(t *testing.T) {
	e := newEnv(t)
	admin := testutil.User(t, e.db, "admin@example.com", "password1", testutil.Admin)
	doctor := testutil.User(t, e.db, "d@example.com", "password1", testutil.Doctor)
	customer := testutil.User(t, e.db, "c@example.com", "password1")
	tok := e.token(admin)

	w := e.do(http.MethodPost, "/admin/prescriptions", tok, map[string]any{"patient_id": customer.ID, "doctor_id": doctor.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPost, "/admin/prescriptions", tok, map[string]any{"patient_id": customer.ID, "doctor_id": customer.ID, "medicine": "Amoxil"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please choose a registered patient and doctor!", errorOf(t, w))
	w = e.do(http.MethodPost, "/admin/prescriptions", tok, map[string]any{"patient_id": customer.ID, "doctor_id": doctor.ID, "medicine": "Amoxil", "date": "01/03/2026"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/admin/prescriptions", e.token(doctor), map[string]any{}).Code)

	w = e.do(http.MethodPost, "/admin/prescriptions", tok, map[string]any{
		"patient_id": customer.ID,
		"doctor_id":  doctor.ID,
		"medicine":   "Amoxil",
		"dosage":     "500mg 2x",
		"date":       "2026-03-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rx := decode(t, w)["prescription"].(map[string]any)
	assert.Equal(t, "Doctor Approved", rx["status"])
	assert.Equal(t, float64(doctor.ID), rx["doctor_id"])

	w = e.do(http.MethodGet, "/admin/prescriptions/queue", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["prescriptions"], 1)
}

func TestDashboardAndUsers(t *testing.T) {
	e := newEnv(t)
	admin := testutil.User(t, e.db, "admin@example.com", "password1", testutil.Admin)
	testutil.User(t, e.db, "d@example.com", "password1", testutil.Doctor)
	customer := testutil.User(t, e.db, "c@example.com", "password1")
	testutil.Medicine(t, e.db, 5, "Paracetamol", 100, 20, 10)
	require.NoError(t, e.db.Create(&domain.Order{UserID: customer.ID, MedicineID: 5, Quantity: 2, Status: domain.OrderPending, Total: decimal.NewFromInt(160)}).Error)
	tok := e.token(admin)

	w := e.do(http.MethodGet, "/admin/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	dash := decode(t, w)
	assert.Equal(t, float64(1), dash["total_medicines"])
	assert.Equal(t, float64(1), dash["total_orders"])
	assert.Equal(t, float64(2), dash["total_users"])
	pending := dash["orders_by_status"].(map[string]any)["Pending"].(map[string]any)
	assert.Equal(t, float64(1), pending["count"])
	assert.Equal(t, "160", pending["sales"])

	w = e.do(http.MethodGet, "/admin/users", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode(t, w)["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "c@example.com", users[0].(map[string]any)["email"])

	w = e.do(http.MethodGet, "/admin/users?role=doctor", tok, nil)
	users = decode(t, w)["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "doctor", users[0].(map[string]any)["role"])

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/admin/users?role=admin", tok, nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/healthz", "", nil).Code)
	e.do(http.MethodGet, "/medicines", "", nil)

	w := e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_request_duration_seconds")
}
