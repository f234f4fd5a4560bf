package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/masarif/masarif-backend/internal/convo"
	"github.com/masarif/masarif-backend/internal/health"
	"github.com/masarif/masarif-backend/internal/intent"
	"github.com/masarif/masarif-backend/internal/ledger"
	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/orchestrator"
	"github.com/masarif/masarif-backend/internal/store"
	"github.com/masarif/masarif-backend/internal/store/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	s := sqlite.NewWithDB(db)

	log := zerolog.Nop()
	resolver := intent.WithFallback(nil, intent.NewRuleResolver(), log)
	c := convo.NewService(s, log, 10*time.Minute, 15*time.Minute)
	m := ledger.NewMutator(s, log)
	orch := orchestrator.New(resolver, c, m, s, orchestrator.Thresholds{Clarify: 0.5, SkipConfirm: 0.95}, log)

	srv := httptest.NewServer(NewRouter(s, orch, m, health.NewService()))
	t.Cleanup(srv.Close)
	return srv, s
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func registerUser(t *testing.T, srv *httptest.Server, channelID string) model.User {
	t.Helper()
	var u model.User
	code := doJSON(t, http.MethodPost, srv.URL+"/api/users", map[string]string{"channelId": channelID}, &u)
	require.Equal(t, http.StatusCreated, code)
	return u
}

func TestAPI_RegisterUserIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)

	first := registerUser(t, srv, "tg:5001")
	second := registerUser(t, srv, "tg:5001")
	require.Equal(t, first.UserID, second.UserID)
}

func TestAPI_MessageStageConfirmRoundTrip(t *testing.T) {
	srv, s := newTestServer(t)
	u := registerUser(t, srv, "tg:5002")

	_, err := s.Accounts().Create(context.Background(), &model.Account{
		UserID:   u.UserID,
		Name:     "Main",
		Type:     model.AccountBank,
		Balance:  decimal.NewFromInt(100),
		Currency: "EGP",
	})
	require.NoError(t, err)

	var res model.Result
	code := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/users/%s/messages", srv.URL, u.UserID),
		map[string]string{"text": "spent 50 on coffee", "languageHint": "en"}, &res)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, model.ResultStaged, res.Kind)
	require.NotEmpty(t, res.CorrelationID)

	var conf model.Result
	code = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/confirmations/%s/confirm", srv.URL, res.CorrelationID), nil, &conf)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, model.ResultApplied, conf.Kind)
	require.Equal(t, "50", *conf.Applied.NewBalance)
}

func TestAPI_EditThenCancel(t *testing.T) {
	srv, s := newTestServer(t)
	u := registerUser(t, srv, "tg:5003")

	_, err := s.Accounts().Create(context.Background(), &model.Account{
		UserID: u.UserID, Name: "Main", Type: model.AccountBank, Currency: "EGP",
	})
	require.NoError(t, err)

	var res model.Result
	doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/users/%s/messages", srv.URL, u.UserID),
		map[string]string{"text": "spent 50 on coffee", "languageHint": "en"}, &res)
	require.Equal(t, model.ResultStaged, res.Kind)

	var edited model.Result
	code := doJSON(t, http.MethodPatch, srv.URL+"/api/confirmations/"+res.CorrelationID,
		map[string]string{"amount": "45"}, &edited)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, model.ResultStaged, edited.Kind)
	require.True(t, edited.Proposed.LogTransaction.Amount.Equal(decimal.NewFromInt(45)))

	var canc model.Result
	code = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/confirmations/%s/cancel", srv.URL, res.CorrelationID), nil, &canc)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, model.ResultCancelled, canc.Kind)
}

func TestAPI_MessageForUnknownUserIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	code := doJSON(t, http.MethodPost, srv.URL+"/api/users/nope/messages",
		map[string]string{"text": "hello"}, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestAPI_AccountLifecycle(t *testing.T) {
	srv, s := newTestServer(t)
	u := registerUser(t, srv, "tg:5004")

	acc, err := s.Accounts().Create(context.Background(), &model.Account{
		UserID: u.UserID, Name: "Main", Type: model.AccountBank, Currency: "EGP",
	})
	require.NoError(t, err)

	var accs []model.Account
	code := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/users/%s/accounts", srv.URL, u.UserID), nil, &accs)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, accs, 1)

	var updated model.Account
	code = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/users/%s/accounts/%s", srv.URL, u.UserID, acc.AccountID),
		map[string]string{"name": "Primary"}, &updated)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Primary", updated.Name)

	code = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/users/%s/accounts/%s", srv.URL, u.UserID, acc.AccountID), nil, nil)
	require.Equal(t, http.StatusNoContent, code)

	code = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/users/%s/accounts/%s", srv.URL, u.UserID, acc.AccountID), nil, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestAPI_RenameValidatedLikeCreation(t *testing.T) {
	srv, s := newTestServer(t)
	u := registerUser(t, srv, "tg:5007")

	acc, err := s.Accounts().Create(context.Background(), &model.Account{
		UserID: u.UserID, Name: "Main", Type: model.AccountBank, Currency: "EGP",
	})
	require.NoError(t, err)
	url := fmt.Sprintf("%s/api/users/%s/accounts/%s", srv.URL, u.UserID, acc.AccountID)

	code := doJSON(t, http.MethodPatch, url, map[string]string{"name": "   "}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	code = doJSON(t, http.MethodPatch, url, map[string]string{"name": strings.Repeat("x", 51)}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	code = doJSON(t, http.MethodPatch, url, map[string]string{}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	// a rename with surrounding whitespace persists trimmed
	var updated model.Account
	code = doJSON(t, http.MethodPatch, url, map[string]string{"name": "  Primary  "}, &updated)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Primary", updated.Name)
}

func TestAPI_ForeignAccountIsForbidden(t *testing.T) {
	srv, s := newTestServer(t)
	owner := registerUser(t, srv, "tg:5005")
	intruder := registerUser(t, srv, "tg:5006")

	acc, err := s.Accounts().Create(context.Background(), &model.Account{
		UserID: owner.UserID, Name: "Main", Type: model.AccountBank, Currency: "EGP",
	})
	require.NoError(t, err)

	code := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/users/%s/accounts/%s", srv.URL, intruder.UserID, acc.AccountID), nil, nil)
	require.Equal(t, http.StatusForbidden, code)
}

func TestAPI_HealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	code := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil, nil)
	require.Equal(t, http.StatusOK, code)
}
