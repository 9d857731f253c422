package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exstem-quiz/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
	Setup()
}

func testContext(method, target, body string) *gin.Context {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestSplitCSVIDs(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "abc"}, SplitCSVIDs(" 1,2,, abc "))
	assert.Empty(t, SplitCSVIDs(" , "))
}

func TestBindQuery_CSVIDs(t *testing.T) {
	tests := []struct {
		query string
		ok    bool
	}{
		{"ids=1,2,3", true},
		{"ids=mod-1", true},
		{"ids=", false},
		{"ids=,,", false},
		{"ids=1;drop", false},
		{"ids=" + strings.Repeat("1,", MaxCSVIDs+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var q model.ModuleNamesQuery
			errs := BindQuery(testContext(http.MethodGet, "/?"+tt.query, ""), &q)
			if tt.ok {
				assert.Nil(t, errs)
				return
			}
			assert.Contains(t, errs, "ids")
		})
	}
}

func TestBind_TranslatesFieldNames(t *testing.T) {
	var req model.CreateQuizRequest
	errs := Bind(testContext(http.MethodPost, "/", `{"module_ids":[],"count":0}`), &req)
	assert.Contains(t, errs, "module_ids")
	assert.Contains(t, errs, "count")

	errs = Bind(testContext(http.MethodPost, "/", `{not json`), &req)
	assert.Contains(t, errs, "detail")
}

func TestBind_PointerRequiredAcceptsZero(t *testing.T) {
	var req model.GoToRequest
	assert.Nil(t, Bind(testContext(http.MethodPost, "/", `{"index":0}`), &req))
	assert.Equal(t, 0, *req.Index)

	req = model.GoToRequest{}
	assert.Contains(t, Bind(testContext(http.MethodPost, "/", `{}`), &req), "index")
}
