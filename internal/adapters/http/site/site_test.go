package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given the landing page on a router", t, func() {
		r := chi.NewRouter()
		Register(context.Background(), r)

		Convey("Then / serves the ranking page", func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
			So(w.Body.String(), ShouldContainSubstring, "/api/get_ranking")
		})

		Convey("And other paths are not served", func() {
			req := httptest.NewRequest(http.MethodGet, "/index.html", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestSiteHandlerWithNilRouter(t *testing.T) {
	Convey("Given a nil router", t, func() {
		Convey("Then registering panics", func() {
			So(func() { Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}
