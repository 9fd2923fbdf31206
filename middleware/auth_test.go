package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/laiskygw/llm-gateway/common"
	"github.com/laiskygw/llm-gateway/model"
)

func setupAuthTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	common.UsingSQLite, common.UsingMySQL, common.UsingPostgreSQL = true, false, false
	require.NoError(t, db.AutoMigrate(&model.ApiKey{}))

	original := model.DB
	model.DB = db
	t.Cleanup(func() { model.DB = original })
}

func TestExtractCredential_PrefersAuthorizationOverAPIKeyHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	c.Request.Header.Set("Authorization", "Bearer sk-primary")
	c.Request.Header.Set("x-api-key", "sk-fallback")

	require.Equal(t, "sk-primary", ExtractCredential(c))

	c.Request.Header.Del("Authorization")
	require.Equal(t, "sk-fallback", ExtractCredential(c))
}

func TestAuthenticate_RejectsUnknownRevokedAndExpiredKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	setupAuthTestDB(t)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, model.DB.Create(&model.ApiKey{Key: "sk-revoked", Revoked: true}).Error)
	require.NoError(t, model.DB.Create(&model.ApiKey{Key: "sk-expired", ExpiresAt: &past}).Error)
	require.NoError(t, model.DB.Create(&model.ApiKey{Key: "sk-valid"}).Error)

	engine := gin.New()
	engine.Use(Authenticate())
	engine.GET("/v1/models", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, bearer := range []string{"", "sk-unknown", "sk-revoked", "sk-expired"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		require.Equalf(t, http.StatusUnauthorized, w.Code, "bearer=%q", bearer)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer sk-valid")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCurrentAPIKey_ReturnsNilWhenNotAuthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	require.Nil(t, CurrentAPIKey(c))
}
