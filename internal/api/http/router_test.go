package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/flightontime/flightontime/internal/auth/middleware"
	"github.com/flightontime/flightontime/internal/classifier"
	"github.com/flightontime/flightontime/internal/db"
	"github.com/flightontime/flightontime/internal/features"
	"github.com/flightontime/flightontime/internal/prediction"
	"github.com/flightontime/flightontime/internal/storage"
	syncx "github.com/flightontime/flightontime/internal/sync"
)

const encoderKey = "encoders/encoder.json"

type stubClassifier struct {
	score   classifier.Score
	err     error
	pingErr error
}

func (s *stubClassifier) Predict(context.Context, []float64) (classifier.Score, error) {
	return s.score, s.err
}
func (s *stubClassifier) NumFeatures() int { return len(features.DefaultLayout) }
func (s *stubClassifier) Info() classifier.Info {
	return classifier.Info{Name: "stub", Type: "stub", NumFeatures: len(features.DefaultLayout)}
}
func (s *stubClassifier) Ping(context.Context) error { return s.pingErr }

type env struct {
	srv    *httptest.Server
	clf    *stubClassifier
	blobs  *storage.FSStore
	events *syncx.EventRepo
	tokens map[string]string
}

func table(version string) *features.Table {
	return &features.Table{
		Airlines: map[string]int{"AA": 0, "DL": 1},
		Routes:   map[string]int{"JFK-LAX": 0},
		Distance: features.DistanceRange{Min: 0, Max: 5000},
		Metadata: features.Metadata{Version: version},
	}
}

func tableJSON(t *testing.T, tbl *features.Table) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tbl.Write(&buf, features.FormatJSON))
	return buf.Bytes()
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	dbh, err := db.Open(ctx, db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	bs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	_, err = bs.Put(encoderKey, bytes.NewReader(tableJSON(t, table("1.0.0"))))
	require.NoError(t, err)

	enc, err := prediction.LoadEncoder(bs, encoderKey, features.DefaultLayout)
	require.NoError(t, err)

	e := &env{
		clf:    &stubClassifier{score: classifier.Score{Delayed: false, Probability: 0.12}},
		blobs:  bs,
		events: syncx.NewEventRepo(dbh),
		tokens: map[string]string{},
	}
	svc, err := prediction.New(prediction.Options{
		Encoders:   features.NewHolder(enc),
		Classifier: e.clf,
		Store:      prediction.NewSQLStore(dbh),
		Blobs:      bs,
		Events:     e.events,
		EncoderKey: encoderKey,
	})
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	a := auth.NewAuthService("test-secret")
	for _, role := range []string{"admin", "analyst"} {
		tok, err := a.IssueJWT(role, role)
		require.NoError(t, err)
		e.tokens[role] = tok
	}

	e.srv = httptest.NewServer(NewRouter(Deps{
		Service:     svc,
		Auth:        a,
		Credentials: []auth.Credential{{Username: "admin", Hash: string(hash), Role: "admin"}},
		Events:      e.events,
		Blobs:       bs,
		EncoderKey:  encoderKey,
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, role, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[role])
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

const validBody = `{"companhia_aerea":"AA","aeroporto_origem":"JFK","aeroporto_destino":"LAX",
	"data_hora_partida":"2024-01-15T14:30:00","distancia_km":3980.0}`

func TestPredict(t *testing.T) {
	e := newEnv(t)
	res := e.do(t, http.MethodPost, "/predict", "", validBody)
	require.Equal(t, http.StatusOK, res.StatusCode)

	out := decode[prediction.Response](t, res)
	assert.False(t, out.Atraso)
	assert.Equal(t, 0.12, out.Probabilidade)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, "Voo PONTUAL (12.0% de probabilidade)", out.Mensagem)
}

func TestPredict_BadJSON(t *testing.T) {
	e := newEnv(t)
	res := e.do(t, http.MethodPost, "/predict", "", `{"companhia_aerea":`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPredict_Invalid(t *testing.T) {
	e := newEnv(t)
	res := e.do(t, http.MethodPost, "/predict", "", `{"companhia_aerea":"AAAA","aeroporto_origem":"JFK",
		"aeroporto_destino":"LAX","data_hora_partida":"2024-01-15T14:30:00","distancia_km":"far"}`)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	out := decode[validationBody](t, res)
	require.Len(t, out.Erros, 2)
	assert.Equal(t, "companhia_aerea", out.Erros[0].Field)
	assert.Equal(t, "distancia_km", out.Erros[1].Field)
}

func TestPredict_ScorerDown(t *testing.T) {
	e := newEnv(t)
	e.clf.err = errors.New("connection refused")
	res := e.do(t, http.MethodPost, "/predict", "", validBody)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
}

func TestDebugFeatures(t *testing.T) {
	e := newEnv(t)
	res := e.do(t, http.MethodPost, "/debug-features", "", validBody)
	require.Equal(t, http.StatusOK, res.StatusCode)

	out := decode[prediction.Debug](t, res)
	assert.Equal(t, features.DefaultLayout.Strings(), out.Layout)
	assert.InDelta(t, 0.796, out.FeaturesNamed["distance_norm"], 1e-9)
	assert.Equal(t, "JFK-LAX", out.Route)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	res := e.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[healthBody](t, res)
	assert.True(t, out.ModelLoaded)
	assert.Equal(t, 7, out.FeaturesExpected)
	assert.Equal(t, "1.0.0", out.EncoderVersion)

	e.clf.pingErr = errors.New("dial tcp: refused")
	res = e.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestModel(t *testing.T) {
	e := newEnv(t)
	res := e.do(t, http.MethodGet, "/model", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[map[string]any](t, res)
	assert.Equal(t, "1.0.0", out["encoder_version"])
	assert.Len(t, out["layout"], 7)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	res := e.do(t, http.MethodPost, "/auth/login", "", `{"username":"admin","password":"pw"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, decode[map[string]string](t, res)["access_token"])
}

func TestHistoryAndStatus(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/predictions", "", "").StatusCode)

	pred := decode[prediction.Response](t, e.do(t, http.MethodPost, "/predict", "", validBody))

	res := e.do(t, http.MethodGet, "/predictions?airline=aa&delayed=false", "analyst", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	list := decode[[]prediction.Record](t, res)
	require.Len(t, list, 1)
	assert.Equal(t, pred.ID, list[0].ID)

	res = e.do(t, http.MethodGet, "/predictions/"+pred.ID, "analyst", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "JFK", decode[prediction.Record](t, res).Origin)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/predictions/missing", "analyst", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/predictions?delayed=maybe", "analyst", "").StatusCode)

	res = e.do(t, http.MethodGet, "/status", "analyst", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	st := decode[prediction.StatusReport](t, res)
	assert.Equal(t, int64(1), st.Total)
	assert.Equal(t, int64(0), st.Delayed)
}

func TestReload(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/admin/encoder/reload", "analyst", "").StatusCode)

	_, err := e.blobs.Put(encoderKey, bytes.NewReader(tableJSON(t, table("2.0.0"))))
	require.NoError(t, err)
	res := e.do(t, http.MethodPost, "/admin/encoder/reload", "admin", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "2.0.0", decode[map[string]any](t, res)["version"])

	_, err = e.blobs.Put(encoderKey, strings.NewReader(`not json`))
	require.NoError(t, err)
	res = e.do(t, http.MethodPost, "/admin/encoder/reload", "admin", "")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	health := decode[healthBody](t, e.do(t, http.MethodGet, "/health", "", ""))
	assert.Equal(t, "2.0.0", health.EncoderVersion, "failed reload keeps the previous table")

	res = e.do(t, http.MethodGet, "/admin/events", "admin", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	events := decode[[]syncx.Event](t, res)
	require.Len(t, events, 2)
	assert.Equal(t, syncx.EventEncoderReloaded, events[0].Type)
	assert.Equal(t, syncx.EventReloadFailed, events[1].Type)
}

func upload(t *testing.T, e *env, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "encoder.json")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/admin/artifacts/encoder", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.tokens["admin"])
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestArtifacts(t *testing.T) {
	e := newEnv(t)

	res := upload(t, e, []byte(`{"airline_encoder":{}}`))
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = upload(t, e, tableJSON(t, table("3.0.0")))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "3.0.0", decode[map[string]any](t, res)["version"])

	res = e.do(t, http.MethodGet, "/admin/artifacts/"+encoderKey, "admin", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	tbl, err := features.ReadTable(res.Body, features.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", tbl.Metadata.Version)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/admin/artifacts/models/none.json", "admin", "").StatusCode)
}

func TestArtifacts_UploadTooLarge(t *testing.T) {
	e := newEnv(t)
	data := tableJSON(t, table("4.0.0"))

	prev := maxTableUpload
	maxTableUpload = int64(len(data)) - 1
	t.Cleanup(func() { maxTableUpload = prev })

	res := upload(t, e, data)
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)

	res = e.do(t, http.MethodGet, "/admin/artifacts/"+encoderKey, "admin", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	tbl, err := features.ReadTable(res.Body, features.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", tbl.Metadata.Version, "stored table untouched")
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	for _, p := range []string{"/healthz", "/readyz"} {
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, p, "", "").StatusCode)
	}
}
