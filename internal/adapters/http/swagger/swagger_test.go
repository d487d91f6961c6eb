package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given the docs routes on a router", t, func() {
		r := chi.NewRouter()
		Register(context.Background(), r)

		convey.Convey("Then /openapi.yaml serves the description", func() {
			req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "/api/sessions/{id}/frames")
		})

		convey.Convey("And /api-docs serves the ReDoc page", func() {
			req := httptest.NewRequest(http.MethodGet, "/api-docs", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, redocScript)
		})

		convey.Convey("And the description parses as YAML", func() {
			var doc map[string]any
			convey.So(yaml.Unmarshal(OpenAPI, &doc), convey.ShouldBeNil)
			convey.So(doc["openapi"], convey.ShouldStartWith, "3.")
			convey.So(doc["paths"], convey.ShouldNotBeEmpty)
		})
	})
}
