package controller

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/laiskygw/llm-gateway/common"
	"github.com/laiskygw/llm-gateway/common/ctxkey"
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	_ "github.com/laiskygw/llm-gateway/relay/adaptor/openai"
	"github.com/laiskygw/llm-gateway/relay/dedup"
	"github.com/laiskygw/llm-gateway/relay/failover"
	"github.com/laiskygw/llm-gateway/relay/ratelimit"
)

func setupControllerTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	common.UsingSQLite, common.UsingMySQL, common.UsingPostgreSQL = true, false, false
	require.NoError(t, db.AutoMigrate(&model.ApiKey{}, &model.Provider{}, &model.ModelRow{},
		&model.Completion{}, &model.Embedding{}, &model.ReqIdEntry{}, &model.Setting{}))

	original := model.DB
	model.DB = db
	t.Cleanup(func() { model.DB = original })
}

func setupControllerTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func seedAPIKey(t *testing.T, id int, rpmLimit, tpmLimit int) *model.ApiKey {
	t.Helper()
	key := &model.ApiKey{Id: id, Key: "sk-test-key", RpmLimit: rpmLimit, TpmLimit: tpmLimit}
	require.NoError(t, model.DB.Create(key).Error)
	return key
}

func seedOpenAIProvider(t *testing.T, upstreamURL string) {
	t.Helper()
	provider := model.Provider{Id: 1, Name: "primary", Type: model.ProviderTypeOpenAI, BaseUrl: upstreamURL}
	require.NoError(t, provider.SetAPIKey("sk-upstream"))
	require.NoError(t, model.DB.Create(&provider).Error)
	require.NoError(t, model.DB.Create(&model.ModelRow{
		Id: 1, ProviderId: provider.Id, SystemName: "gpt-4o", ModelType: model.ModelTypeChat, Weight: 1,
	}).Error)
}

func newTestDeps(t *testing.T, rdb *redis.Client) *Deps {
	t.Helper()
	return &Deps{
		Gate:          dedup.NewGate(),
		Executor:      failover.NewExecutor(http.DefaultClient),
		PerKeyLimiter: ratelimit.NewPerKeyLimiter(rdb),
		ModelBucket:   ratelimit.NewModelBucketLimiter(rdb),
	}
}

func TestRelay_UnaryChatCompletion_PersistsAndReturnsBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	setupControllerTestDB(t)
	rdb := setupControllerTestRedis(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-upstream", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hi there"}}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	}))
	defer upstream.Close()

	seedOpenAIProvider(t, upstream.URL)
	apiKey := seedAPIKey(t, 1, 60, 60000)

	deps := newTestDeps(t, rdb)
	engine := gin.New()
	engine.POST("/v1/chat/completions", stubAuthenticate(apiKey), Relay(deps, adaptor.DialectOpenAIChat))

	body := strings.NewReader(`{"model":"gpt-4o","messages":[{"role":"user","content":"hello"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "hi there")

	var completion model.Completion
	require.NoError(t, model.DB.First(&completion).Error)
	require.Equal(t, model.CompletionStatusCompleted, completion.Status)
	require.Equal(t, 5, completion.PromptTokens)
	require.Equal(t, 2, completion.CompletionTokens)
}

func TestRelay_DedupCacheHit_ReplaysWithoutCallingUpstream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	setupControllerTestDB(t)
	rdb := setupControllerTestRedis(t)

	var upstreamCalls int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hi there"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer upstream.Close()

	seedOpenAIProvider(t, upstream.URL)
	apiKey := seedAPIKey(t, 1, 60, 60000)

	deps := newTestDeps(t, rdb)
	engine := gin.New()
	engine.POST("/v1/chat/completions", stubAuthenticate(apiKey), Relay(deps, adaptor.DialectOpenAIChat))

	makeRequest := func() *httptest.ResponseRecorder {
		body := strings.NewReader(`{"model":"gpt-4o","messages":[{"role":"user","content":"hello"}]}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("ReqId", "client-req-1")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	first := makeRequest()
	require.Equal(t, http.StatusOK, first.Code)

	second := makeRequest()
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Equal(t, 1, upstreamCalls, "a repeated ReqId must be served from cache, not re-sent upstream")
}

// stubAuthenticate bypasses the real bearer lookup so controller tests don't
// need middleware.Authenticate's DB-column semantics; it stands in for the
// production middleware chain's Authenticate step.
func stubAuthenticate(key *model.ApiKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxkey.ApiKey, key)
		c.Set(ctxkey.ApiKeyId, key.Id)
		c.Next()
	}
}
