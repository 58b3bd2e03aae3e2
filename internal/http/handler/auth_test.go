package handler_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"thirdwatch.dev/watch/internal/http/handler"
)

var _ = Describe("RequireAdminAPIKey", func() {
	newRouter := func(adminAPIKey string) *gin.Engine {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.POST("/admin/action", handler.RequireAdminAPIKey(adminAPIKey), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	It("accepts the X-Admin-API-Key header", func() {
		router := newRouter("test-admin-key")

		req := httptest.NewRequest(http.MethodPost, "/admin/action", nil)
		req.Header.Set("X-Admin-API-Key", "test-admin-key")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("accepts Bearer token authorization", func() {
		router := newRouter("test-admin-key")

		req := httptest.NewRequest(http.MethodPost, "/admin/action", nil)
		req.Header.Set("Authorization", "Bearer test-admin-key")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("rejects a wrong key", func() {
		router := newRouter("test-admin-key")

		req := httptest.NewRequest(http.MethodPost, "/admin/action", nil)
		req.Header.Set("X-Admin-API-Key", "wrong-key")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns 503 when no admin key is configured", func() {
		router := newRouter("")

		req := httptest.NewRequest(http.MethodPost, "/admin/action", nil)
		req.Header.Set("X-Admin-API-Key", "anything")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
