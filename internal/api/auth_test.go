package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"pharmacy_system/internal/domain"
	"pharmacy_system/internal/notify"
	"pharmacy_system/internal/testutil"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedOTP(t *testing.T, e *env, email string) string {
	t.Helper()
	var u domain.User
	require.NoError(t, e.db.Where("email = ?", email).First(&u).Error)
	require.NotNil(t, u.OTP)
	return *u.OTP
}

func TestRegistrationAndLogin(t *testing.T) {
	e := newEnv(t)
	reg := map[string]string{"email": "Ana@Example.com", "phone": "5550001", "password": "password1"}

	w := e.do(http.MethodPost, "/auth/register", "", reg)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []notify.Kind{notify.KindRegistrationOTP}, e.mail.kinds())

	w = e.do(http.MethodPost, "/auth/register", "", reg)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already registered!", errorOf(t, w))

	w = e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "other@example.com", "phone": "5550001", "password": "password1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Phone number already used!", errorOf(t, w))

	w = e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "short@example.com", "phone": "5550002", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	login := map[string]string{"email": "ana@example.com", "password": "password1"}
	w = e.do(http.MethodPost, "/auth/login", "", login)
	assert.Equal(t, http.StatusForbidden, w.Code, "unverified accounts cannot log in")

	w = e.do(http.MethodPost, "/auth/verify", "", map[string]string{"email": "ana@example.com", "otp": "wrong!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired OTP.", errorOf(t, w))

	code := storedOTP(t, e, "ana@example.com")
	w = e.do(http.MethodPost, "/auth/verify", "", map[string]string{"email": "ana@example.com", "otp": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var u domain.User
	require.NoError(t, e.db.Where("email = ?", "ana@example.com").First(&u).Error)
	assert.True(t, u.IsVerified)
	assert.Nil(t, u.OTP)
	assert.Nil(t, u.OTPExpiry)

	w = e.do(http.MethodPost, "/auth/login", "", login)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "user", body["role"])
	assert.NotEmpty(t, body["token"])

	w = e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "password2"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegistrationRolledBackWhenMailFails(t *testing.T) {
	e := newEnv(t)
	e.mail.fail = errors.New("smtp down")

	w := e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "ana@example.com", "phone": "5550001", "password": "password1"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Failed to send OTP email. Please try again.", errorOf(t, w))

	var count int64
	require.NoError(t, e.db.Model(&domain.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPasswordReset(t *testing.T) {
	e := newEnv(t)
	u := testutil.User(t, e.db, "ana@example.com", "password1")

	w := e.do(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Email not found!", errorOf(t, w))

	w = e.do(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []notify.Kind{notify.KindPasswordResetOTP}, e.mail.kinds())

	code := storedOTP(t, e, "ana@example.com")
	w = e.do(http.MethodPost, "/auth/verify-reset", "", map[string]string{"email": "ana@example.com", "otp": code})
	require.Equal(t, http.StatusOK, w.Code)
	resetToken, _ := decode(t, w)["reset_token"].(string)
	require.NotEmpty(t, resetToken)

	w = e.do(http.MethodPost, "/auth/verify-reset", "", map[string]string{"email": "ana@example.com", "otp": code})
	assert.Equal(t, http.StatusBadRequest, w.Code, "reset codes are single use")

	newPassword := map[string]string{"password": "password2"}
	w = e.do(http.MethodPost, "/auth/reset-password", e.token(u), newPassword)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "session tokens cannot reset passwords")

	w = e.do(http.MethodPost, "/auth/reset-password", resetToken, newPassword)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "password2"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/cart", resetToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "reset tokens are not session tokens")
}

func TestResetTokenIsSingleUse(t *testing.T) {
	e := newEnv(t)
	testutil.User(t, e.db, "ana@example.com", "password1")

	w := e.do(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	code := storedOTP(t, e, "ana@example.com")
	w = e.do(http.MethodPost, "/auth/verify-reset", "", map[string]string{"email": "ana@example.com", "otp": code})
	require.Equal(t, http.StatusOK, w.Code)
	resetToken, _ := decode(t, w)["reset_token"].(string)

	w = e.do(http.MethodPost, "/auth/reset-password", resetToken, map[string]string{"password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "a rejected body does not use up the token")

	w = e.do(http.MethodPost, "/auth/reset-password", resetToken, map[string]string{"password": "password2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/auth/reset-password", resetToken, map[string]string{"password": "password3"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired reset token", errorOf(t, w))

	w = e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "password3"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "password2"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResetTokenExpiresWithRedisKey(t *testing.T) {
	e := newEnv(t)
	testutil.User(t, e.db, "ana@example.com", "password1")

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ana@example.com"}).Code)
	code := storedOTP(t, e, "ana@example.com")
	w := e.do(http.MethodPost, "/auth/verify-reset", "", map[string]string{"email": "ana@example.com", "otp": code})
	require.Equal(t, http.StatusOK, w.Code)
	resetToken, _ := decode(t, w)["reset_token"].(string)

	e.mr.FastForward(ResetTokenTTL + time.Second)
	w = e.do(http.MethodPost, "/auth/reset-password", resetToken, map[string]string{"password": "password2"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserListingSeesNewRegistrations(t *testing.T) {
	e := newEnv(t)
	admin := testutil.User(t, e.db, "admin@example.com", "password1", testutil.Admin)
	tok := e.token(admin)

	w := e.do(http.MethodGet, "/admin/users", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["total"])
	assert.Equal(t, true, decode(t, e.do(http.MethodGet, "/admin/users", tok, nil))["cached"])

	w = e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "ana@example.com", "phone": "5550001", "password": "password1"})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, e.do(http.MethodGet, "/admin/users", tok, nil))
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, false, body["cached"])
}

func TestForgotPasswordMailFailureLeavesNoOTP(t *testing.T) {
	e := newEnv(t)
	testutil.User(t, e.db, "ana@example.com", "password1")
	e.mail.fail = errors.New("smtp down")

	w := e.do(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ana@example.com"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var u domain.User
	require.NoError(t, e.db.Where("email = ?", "ana@example.com").First(&u).Error)
	assert.Nil(t, u.OTP)
	assert.Nil(t, u.OTPExpiry)
}

func messagesOf(hook *logtest.Hook) []string {
	var out []string
	for _, entry := range hook.AllEntries() {
		out = append(out, entry.Message)
	}
	return out
}

func TestRegisterReportsUniquenessCheckFailure(t *testing.T) {
	e := newEnv(t)
	hook := logtest.NewGlobal()
	defer hook.Reset()
	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "ana@example.com", "phone": "5550001", "password": "password1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", errorOf(t, w))
	assert.Contains(t, messagesOf(hook), "Request failed")
	assert.Empty(t, e.mail.kinds())
}

func TestForgotPasswordLogsFailedOTPCleanup(t *testing.T) {
	e := newEnv(t)
	testutil.User(t, e.db, "ana@example.com", "password1")
	hook := logtest.NewGlobal()
	defer hook.Reset()
	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	e.mail.fail = errors.New("smtp down")
	e.mail.before = func() { _ = sqlDB.Close() }

	w := e.do(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ana@example.com"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var cleanup *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Failed to clear unsent reset OTP" {
			cleanup = entry
		}
	}
	require.NotNil(t, cleanup, messagesOf(hook))
	assert.Equal(t, logrus.ErrorLevel, cleanup.Level)
	assert.Contains(t, cleanup.Data, "user_id")
}
