package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"thirdwatch.dev/watch/internal/model"
)

var _ = Describe("WebhookAdapter", func() {
	It("posts a payload the receiver can verify against the signature", func() {
		var (
			gotBody        []byte
			gotSignature   string
			gotTimestamp   string
			gotContentType string
		)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotSignature = r.Header.Get("X-Thirdwatch-Signature")
			gotTimestamp = r.Header.Get("X-Thirdwatch-Timestamp")
			gotContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		adapter := NewWebhookAdapter(server.URL, "whsec_test", server.Client())
		n := testNotification(model.PriorityP0, model.CategoryBreaking, "acme/payments-service")

		delivery, err := adapter.Send(context.Background(), n)
		Expect(err).NotTo(HaveOccurred())
		Expect(delivery.URL).To(Equal(server.URL))

		Expect(gotContentType).To(Equal("application/json"))
		Expect(gotSignature).To(Equal("sha256=" + Sign([]byte("whsec_test"), gotBody)))
		_, err = strconv.ParseInt(gotTimestamp, 10, 64)
		Expect(err).NotTo(HaveOccurred(), "timestamp header must be unix seconds")

		var payload struct {
			Event      model.ChangeEvent      `json:"event"`
			Assessment model.ImpactAssessment `json:"assessment"`
			Repository string                 `json:"repository"`
		}
		Expect(json.Unmarshal(gotBody, &payload)).To(Succeed())
		Expect(payload.Event.Identifier).To(Equal("stripe"))
		Expect(payload.Event.NewVersion).To(Equal("8.0.0"))
		Expect(payload.Assessment.Priority).To(Equal(model.PriorityP0))
		Expect(payload.Repository).To(Equal("acme/payments-service"))
	})

	It("signs with the channel secret, not a shared key", func() {
		var bodies [][]byte
		var signatures []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			bodies = append(bodies, body)
			signatures = append(signatures, r.Header.Get("X-Thirdwatch-Signature"))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		n := testNotification(model.PriorityP1, model.CategoryDeprecation, "")
		_, err := NewWebhookAdapter(server.URL, "secret-a", server.Client()).Send(context.Background(), n)
		Expect(err).NotTo(HaveOccurred())
		_, err = NewWebhookAdapter(server.URL, "secret-b", server.Client()).Send(context.Background(), n)
		Expect(err).NotTo(HaveOccurred())

		Expect(signatures[0]).To(Equal("sha256=" + Sign([]byte("secret-a"), bodies[0])))
		Expect(signatures[1]).To(Equal("sha256=" + Sign([]byte("secret-b"), bodies[1])))
		Expect(signatures[0]).NotTo(Equal(signatures[1]))
	})

	It("treats a non-2xx response as a failed delivery", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		adapter := NewWebhookAdapter(server.URL, "whsec_test", server.Client())
		_, err := adapter.Send(context.Background(), testNotification(model.PriorityP0, model.CategoryBreaking, ""))
		Expect(err).To(MatchError(ContainSubstring("status 502")))
	})
})
