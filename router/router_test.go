package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/laiskygw/llm-gateway/common"
	"github.com/laiskygw/llm-gateway/model"
	_ "github.com/laiskygw/llm-gateway/relay/adaptor/openai"
	"github.com/laiskygw/llm-gateway/relay/controller"
	"github.com/laiskygw/llm-gateway/relay/dedup"
	"github.com/laiskygw/llm-gateway/relay/failover"
	"github.com/laiskygw/llm-gateway/relay/ratelimit"
)

func newTestDeps(t *testing.T) *controller.Deps {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	common.UsingSQLite, common.UsingMySQL, common.UsingPostgreSQL = true, false, false
	require.NoError(t, db.AutoMigrate(&model.ApiKey{}, &model.Provider{}, &model.ModelRow{},
		&model.Completion{}, &model.Embedding{}, &model.ReqIdEntry{}, &model.Setting{}))
	original := model.DB
	model.DB = db
	t.Cleanup(func() { model.DB = original })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return &controller.Deps{
		Gate:          dedup.NewGate(),
		Executor:      failover.NewExecutor(http.DefaultClient),
		PerKeyLimiter: ratelimit.NewPerKeyLimiter(rdb),
		ModelBucket:   ratelimit.NewModelBucketLimiter(rdb),
	}
}

func TestNew_HealthzIsUnauthenticated(t *testing.T) {
	engine := New(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestNew_RelayRouteRejectsMissingCredential(t *testing.T) {
	engine := New(newTestDeps(t))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNew_StampsRequestIdHeaderOnEveryResponse(t *testing.T) {
	engine := New(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.NotEmpty(t, w.Header().Get("X-Gateway-Request-Id"))
}

func TestNew_MetricsEndpointServesPrometheusFormat(t *testing.T) {
	engine := New(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
