package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"pharmacy_system/internal/cart"
	"pharmacy_system/internal/config"
	"pharmacy_system/internal/domain"
	"pharmacy_system/internal/metrics"
	"pharmacy_system/internal/notify"
	"pharmacy_system/internal/storage"
	"pharmacy_system/internal/testutil"
	"pharmacy_system/internal/utils"
	"pharmacy_system/internal/workflow"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "api-secret"

func init() { gin.SetMode(gin.TestMode) }

// mailbox is a synchronous Sender that can be told to fail
type mailbox struct {
	mu     sync.Mutex
	sent   []notify.Message
	fail   error
	before func() // Runs on every send, before fail is checked
}

func (m *mailbox) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.before != nil {
		m.before()
	}
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mailbox) kinds() []notify.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Kind
	for _, msg := range m.sent {
		out = append(out, msg.Kind)
	}
	return out
}

// outbox records workflow notifications instead of queueing them
type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *outbox) Dispatch(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) kinds() []notify.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []notify.Kind
	for _, msg := range o.msgs {
		out = append(out, msg.Kind)
	}
	return out
}

type env struct {
	t      *testing.T
	db     *gorm.DB
	mr     *miniredis.Miniredis
	carts  *cart.Store
	mail   *mailbox
	outbox *outbox
	router *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	rdb, mr := testutil.Redis(t)
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	cfg := &config.Config{
		JWTSecret:   secret,
		CORSOrigins: []string{"http://localhost:3000"},
		AdminEmail:  "admin@pharma.com",
		AuthOTPTTL:  10 * time.Minute,
	}
	e := &env{
		t:      t,
		db:     db,
		mr:     mr,
		carts:  cart.NewStore(rdb, time.Hour),
		mail:   &mailbox{},
		outbox: &outbox{},
		router: gin.New(),
	}
	m := metrics.New("test")
	wf := workflow.New(db, e.outbox, e.carts, workflow.Options{AdminEmail: cfg.AdminEmail, Metrics: m})
	ConfigRoutes(e.router, Deps{
		DB:       db,
		Redis:    rdb,
		Carts:    e.carts,
		Workflow: wf,
		Store:    store,
		Mailer:   e.mail,
		Metrics:  m,
		Config:   cfg,
	})
	return e
}

func (e *env) token(u *domain.User) string {
	e.t.Helper()
	tok, err := utils.GenerateJWT(u.ID, secret)
	require.NoError(e.t, err)
	return tok
}

func (e *env) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// do sends an optional JSON body
func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

// upload sends a multipart form with one optional file
func (e *env) upload(path, token string, fields map[string]string, fileField, fileName string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(e.t, err)
		_, err = fw.Write([]byte("%PDF-1.4 test"))
		require.NoError(e.t, err)
	}
	require.NoError(e.t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.serve(req, token)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	msg, _ := decode(t, w)["error"].(string)
	return msg
}
