package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"thirdwatch.dev/watch/internal/http/handler"
	"thirdwatch.dev/watch/internal/model"
)

var _ = Describe("EventHandler", func() {
	var (
		router      *gin.Engine
		events      *mockChangeEventStore
		assessments *mockAssessmentStore
		event       model.ChangeEvent
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		events = &mockChangeEventStore{}
		assessments = &mockAssessmentStore{}
		h := handler.NewEventHandler(events, assessments)
		router.GET("/api/v1/events", h.List)
		router.GET("/api/v1/events/:id", h.GetByID)
		router.GET("/api/v1/events/:id/assessment", h.GetAssessment)

		event = model.ChangeEvent{
			ID:              7001,
			DependencyID:    41218,
			DependencyKey:   "package:pypi:stripe",
			Identifier:      "stripe",
			Provider:        "pypi",
			DetectedAt:      time.Now(),
			ChangeType:      model.CategoryMajorUpdate,
			PreviousVersion: "7.9.0",
			NewVersion:      "8.0.0",
			Title:           "stripe 8.0.0",
		}
	})

	Describe("List", func() {
		It("returns 200 with recent events", func() {
			events.listRecentFn = func(_ context.Context, limit int) ([]model.ChangeEvent, error) {
				Expect(limit).To(Equal(50))
				return []model.ChangeEvent{event, {ID: 7002, DependencyKey: "sdk:npm:@stripe/stripe-js"}}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["count"]).To(Equal(float64(2)))
			list := resp["events"].([]any)
			first := list[0].(map[string]any)
			Expect(first["id"]).To(Equal("7001"))
			Expect(first["change_type"]).To(Equal("major-update"))
		})

		It("caps the limit at 200", func() {
			var got int
			events.listRecentFn = func(_ context.Context, limit int) ([]model.ChangeEvent, error) {
				got = limit
				return []model.ChangeEvent{}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=1000", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got).To(Equal(200))
		})

		It("returns 400 for a non-numeric limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=soon", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 for a non-positive limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=0", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 when the store fails", func() {
			events.listRecentFn = func(_ context.Context, _ int) ([]model.ChangeEvent, error) {
				return nil, errors.New("connection refused")
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("GetByID", func() {
		It("returns 200 with the event", func() {
			events.getFn = func(_ context.Context, id int64) (*model.ChangeEvent, error) {
				Expect(id).To(Equal(int64(7001)))
				return &event, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/events/7001", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["id"]).To(Equal("7001"))
			Expect(resp["new_version"]).To(Equal("8.0.0"))
			Expect(resp).NotTo(HaveKey("raw_data"))
		})

		It("returns 400 for a non-numeric id", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events/latest", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 when the event does not exist", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events/9999", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GetAssessment", func() {
		It("returns 200 with the assessment", func() {
			assessments.getByChangeEventFn = func(_ context.Context, changeEventID int64) (*model.ImpactAssessment, error) {
				Expect(changeEventID).To(Equal(int64(7001)))
				return &model.ImpactAssessment{
					ChangeEventID: 7001,
					Priority:      model.PriorityP1,
					Score:         0.8,
					HumanSummary:  "major update of stripe, 2 usage locations",
					Remediation: &model.Remediation{
						Suggestion: "Pin stripe to 7.9.0 until the migration lands",
						Source:     model.RemediationRegistry,
					},
					CreatedAt: time.Now(),
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/events/7001/assessment", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["change_event_id"]).To(Equal("7001"))
			Expect(resp["priority"]).To(Equal("P1"))
			remediation := resp["remediation"].(map[string]any)
			Expect(remediation["source"]).To(Equal("registry"))
		})

		It("returns 404 when no assessment exists", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events/7001/assessment", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a non-numeric id", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events/latest/assessment", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
