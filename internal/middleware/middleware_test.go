package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/course-reg-api/internal/models"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
)

type validatorStub struct {
	claims map[string]*models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if c, ok := v.claims[token]; ok {
		return c, nil
	}
	return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := validatorStub{claims: map[string]*models.JWTClaims{
		"staff-token": {Username: "prof", Domain: models.DomainStaff},
		"amy-token":   {Username: "amy", Domain: models.DomainStudent},
	}}
	r := gin.New()
	r.Use(JWT(auth))
	r.GET("/students/:username", RBAC(string(models.DomainStaff), Self), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).Username)
	})
	r.GET("/staff-only", RequireDomains(models.DomainStaff), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTAndRBAC(t *testing.T) {
	r := newAuthRouter()

	assert.Equal(t, http.StatusUnauthorized, get(r, "/students/amy", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/students/amy", "forged").Code)

	rec := get(r, "/students/amy", "amy-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "amy", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, get(r, "/students/bob", "amy-token").Code)
	assert.Equal(t, http.StatusOK, get(r, "/students/bob", "staff-token").Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/staff-only", "amy-token").Code)
}

type observerStub struct {
	mu    sync.Mutex
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, method+" "+path)
}

func TestMetricsUsesRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/indexes/:number", func(c *gin.Context) { c.Status(http.StatusOK) })

	get(r, "/indexes/10101", "")
	get(r, "/nowhere", "")

	assert.Equal(t, []string{"GET /indexes/:number", "GET unmatched"}, obs.paths)
}

func TestSerializeRunsHandlersOneAtATime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		after   int
	)
	r := gin.New()
	r.Use(Serialize(&mu, func() { after++ }))
	r.GET("/", func(c *gin.Context) {
		active++
		if active > maxSeen {
			maxSeen = active
		}
		time.Sleep(time.Millisecond)
		active--
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			get(r, "/", "")
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	assert.Equal(t, 8, after)
}

func TestAuditLogsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{Username: "prof", Domain: models.DomainStaff})
		c.Next()
	})
	audit := Audit(zap.New(core), "DELETE", "course", "code")
	r.GET("/courses/:code", audit, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/broken/:code", audit, func(c *gin.Context) { c.Status(http.StatusConflict) })

	get(r, "/courses/CS101", "")
	get(r, "/broken/CS101", "")

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "prof", fields["actor"])
	assert.Equal(t, "CS101", fields["resource_id"])
	assert.Equal(t, "DELETE", fields["action"])
}
