package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/kirinyoku/amparena/internal/auth"
	"github.com/kirinyoku/amparena/internal/calendar"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/filestore"
	"github.com/kirinyoku/amparena/internal/mail"
	"github.com/kirinyoku/amparena/internal/notify"
	"github.com/kirinyoku/amparena/internal/payment"
	"github.com/kirinyoku/amparena/internal/render"
	redisrepo "github.com/kirinyoku/amparena/internal/repository/redis"
	sqliterepo "github.com/kirinyoku/amparena/internal/repository/sqlite"
	"github.com/kirinyoku/amparena/internal/service"
	"github.com/kirinyoku/amparena/internal/service/purchase"
	"github.com/kirinyoku/amparena/internal/sqlite"
	"github.com/kirinyoku/amparena/internal/ticketcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ticketsPass     = "tickets-pass"
	competitorsPass = "competitors-pass"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	r       *gin.Engine
	svcs    *service.Services
	gateway *payment.DevGateway
}

func newTestServer(t *testing.T, configure ...func(*Options)) *testServer {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)

	st := sqliterepo.NewStore(db)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	ev := domain.Event{
		Name:           "Amp Arena",
		DateLabel:      "October 29th, 2025",
		Venue:          "The Midway SF",
		Starts:         time.Date(2025, 10, 29, 18, 0, 0, 0, time.UTC),
		Ends:           time.Date(2025, 10, 29, 22, 0, 0, 0, time.UTC),
		CurrencySymbol: "$",
	}

	invites := calendar.New(calendar.Config{})
	documents := render.New()

	composer, err := notify.NewComposer(notify.Config{Event: ev}, documents, invites, logger)
	require.NoError(t, err)

	sender, err := mail.NewOutboxSender(t.TempDir(), mail.From{Address: "tickets@amparena.test"}, logger)
	require.NoError(t, err)

	uploads := t.TempDir()
	files, err := filestore.NewLocal(uploads, "/uploads")
	require.NoError(t, err)

	gateway := payment.NewDevGateway()

	svcs := service.NewServices(service.Infra{
		Tickets:     st.Tickets(),
		Signups:     st.Signups(),
		Competitors: st.Competitors(),
		Files:       files,
		Gateway:     gateway,
		Codes:       ticketcode.New("AMP"),
		Documents:   documents,
		Invites:     invites,
		Composer:    composer,
		Dispatcher:  notify.NewDispatcher(sender, 5*time.Second, logger),
		Logger:      logger,
	}, service.Config{Purchase: purchase.Config{Event: ev}})

	opts := Options{
		Auth: auth.NewManager(auth.Config{
			Secret:              "test-secret",
			TicketsPasscode:     ticketsPass,
			CompetitorsPasscode: competitorsPass,
		}),
		PublishableKey: "pk_test_123",
		UploadsDir:     uploads,
		UploadsPath:    "/uploads",
	}
	for _, fn := range configure {
		fn(&opts)
	}

	r := NewRouter(svcs, opts, logger)

	return &testServer{r: r, svcs: svcs, gateway: gateway}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, passcode string) http.Header {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/admin/auth", PasscodeRequest{Passcode: passcode}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sess auth.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))

	return http.Header{"Authorization": {"Bearer " + sess.Token}}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndConfig(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(t, http.MethodGet, "/api/stripe/config", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pk_test_123", decode[StripeConfigResponse](t, w).PublishableKey)

	w = s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPurchaseFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/tickets/purchase", EmailRequest{Email: "a@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	intent := decode[CreateIntentResponse](t, w)
	require.NotEmpty(t, intent.PaymentIntentID)
	assert.NotEmpty(t, intent.ClientSecret)

	req := map[string]string{"email": "a@example.com", "stripe_payment_intent_id": intent.PaymentIntentID}

	w = s.do(t, http.MethodPost, "/api/tickets/confirm", req, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[ConfirmPurchaseResponse](t, w)
	assert.True(t, first.Success)
	assert.True(t, first.EmailSent)
	assert.GreaterOrEqual(t, len(first.TicketCode), 8)

	w = s.do(t, http.MethodPost, "/api/tickets/confirm", req, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[ConfirmPurchaseResponse](t, w)
	assert.Equal(t, first.TicketCode, second.TicketCode)
	assert.True(t, second.Duplicate)

	w = s.do(t, http.MethodGet, "/api/tickets/count", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[CountResponse](t, w).Count)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	w = s.do(t, http.MethodGet, "/api/tickets/count", nil, http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = s.do(t, http.MethodPost, "/api/tickets/retrieve", EmailRequest{Email: "A@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[RetrieveResponse](t, w).TicketCount)

	w = s.do(t, http.MethodPost, "/api/tickets/retrieve", EmailRequest{Email: "nobody@example.com"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmRejections(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/tickets/confirm",
		map[string]string{"email": "bad", "paymentReference": "pi_dev_1"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ConfirmPurchaseResponse](t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, purchase.ReasonValidation, resp.Reason)
	assert.Contains(t, resp.Error, "email")

	w = s.do(t, http.MethodPost, "/api/tickets/confirm",
		map[string]string{"email": "a@example.com", "paymentReference": "pay_unknown"}, nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Empty(t, decode[ConfirmPurchaseResponse](t, w).TicketCode)

	w = s.do(t, http.MethodPost, "/api/tickets/confirm", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmIdempotencyKeyBoundToRequest(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := newTestServer(t, func(o *Options) {
		o.Idempotency = redisrepo.NewIdempotencyStore(rdb, time.Hour)
	})

	key := redisrepo.KeyIdemConfirm("retry-1")
	first := purchase.ConfirmInput{Email: "a@example.com", PaymentReference: "pi_dev_first"}
	stored := `{"success":true,"ticketCode":"AMP-1-STORED0000","emailSent":true,"state":"complete"}`
	entry := "RES:" + s.svcs.Purchase.Fingerprint(first) + "|" + stored
	header := http.Header{"Idempotency-Key": {"retry-1"}}

	// same request modulo normalization replays the stored response
	mock.ExpectGet(key).SetVal(entry)
	w := s.do(t, http.MethodPost, "/api/tickets/confirm",
		map[string]string{"email": "A@Example.com", "paymentReference": "pi_dev_first"}, header)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, stored, w.Body.String())
	assert.Equal(t, "retry-1", w.Header().Get("Idempotency-Key"))

	mock.ExpectGet(key).SetVal(entry)
	w = s.do(t, http.MethodPost, "/api/tickets/confirm",
		map[string]string{"email": "a@example.com", "paymentReference": "pi_dev_second"}, header)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotContains(t, w.Body.String(), "AMP-1-STORED0000")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookIssuesTicket(t *testing.T) {
	s := newTestServer(t)

	intent, err := s.gateway.CreateIntent(context.Background(), 2000, "usd", map[string]string{"email": "hook@example.com"})
	require.NoError(t, err)

	event := map[string]any{
		"id":   "evt_1",
		"type": payment.EventPaymentSucceeded,
		"data": map[string]any{"object": map[string]any{
			"id":       intent.ID,
			"metadata": map[string]string{"email": "hook@example.com"},
		}},
	}

	w := s.do(t, http.MethodPost, "/api/stripe/webhook", event, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/tickets/count", nil, nil)
	assert.Equal(t, int64(1), decode[CountResponse](t, w).Count)

	w = s.do(t, http.MethodPost, "/api/stripe/webhook", map[string]any{"id": "evt_2", "type": "charge.refunded"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSignups(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/signup", EmailRequest{Email: "fan@example.com"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotZero(t, decode[SignupResponse](t, w).ID)

	w = s.do(t, http.MethodPost, "/api/signup", EmailRequest{Email: "FAN@example.com"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/signup", EmailRequest{Email: "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/count", nil, nil)
	assert.Equal(t, int64(1), decode[CountResponse](t, w).Count)

	admin := s.login(t, ticketsPass)

	w = s.do(t, http.MethodGet, "/api/admin/signups", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Signup](t, w), 1)

	w = s.do(t, http.MethodPost, "/api/admin/signups/notify", NotifyRequest{Template: "welcome"}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sent":1`)
}

func TestAdminTickets(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/admin/tickets", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/auth", PasscodeRequest{Passcode: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/tickets", nil, s.login(t, competitorsPass))
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := s.login(t, ticketsPass)

	intent, err := s.gateway.CreateIntent(context.Background(), 2000, "usd", map[string]string{"email": "a@example.com"})
	require.NoError(t, err)

	w = s.do(t, http.MethodPost, "/api/tickets/confirm",
		map[string]string{"email": "a@example.com", "paymentReference": intent.ID}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	code := decode[ConfirmPurchaseResponse](t, w).TicketCode

	w = s.do(t, http.MethodGet, "/api/admin/tickets?status=confirmed", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]domain.Ticket](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, code, list[0].Code)

	w = s.do(t, http.MethodPost, "/api/admin/tickets/"+code+"/resend", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[ResendResponse](t, w).EmailSent)

	w = s.do(t, http.MethodPost, "/api/admin/tickets/"+code+"/cancel", nil, admin)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/tickets/"+code+"/cancel", nil, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/tickets/AMP-NOPE/cancel", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/tickets?status=bogus", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// no redis configured
	w = s.do(t, http.MethodGet, "/api/admin/stream", nil, admin)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCompetitors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/competitors",
		map[string]string{"email": "ada@example.com", "full_name": "Ada Lovelace"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	comp := decode[domain.Competitor](t, w)

	w = s.do(t, http.MethodPost, "/api/competitors",
		map[string]string{"email": "ada@example.com", "full_name": "Ada"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "deck.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4\n%%EOF\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/competitors/"+itoa(comp.ID)+"/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	up := decode[UploadResponse](t, rec)
	require.Len(t, up.Files, 1)

	w = s.do(t, http.MethodGet, up.Files[0].URL, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/competitors/"+itoa(comp.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[domain.Competitor](t, w).Files, 1)

	w = s.do(t, http.MethodGet, "/api/competitors", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	admin := s.login(t, competitorsPass)

	w = s.do(t, http.MethodGet, "/api/competitors?status=pending", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Competitor](t, w), 1)

	w = s.do(t, http.MethodPut, "/api/competitors/"+itoa(comp.ID), map[string]string{
		"email": "ada@example.com", "full_name": "Ada L.", "status": "finalist",
	}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.CompetitorFinalist, decode[domain.Competitor](t, w).Status)

	w = s.do(t, http.MethodDelete, "/api/competitors/"+itoa(comp.ID), nil, admin)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, up.Files[0].URL, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/competitors/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
