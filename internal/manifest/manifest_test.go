package manifest

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"thirdwatch.dev/watch/internal/model"
)

var _ = Describe("Parse", func() {
	It("rejects documents that are not JSON", func() {
		_, err := Parse([]byte("kind: package"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("parsing manifest"))
	})

	It("rejects entries without an identifier", func() {
		_, err := Parse([]byte(`{"dependencies": [{"kind": "package", "confidence": 0.9}]}`))
		Expect(err).To(MatchError(ContainSubstring("identifier is required")))
	})

	It("rejects entries with an unknown kind", func() {
		_, err := Parse([]byte(`{"dependencies": [{"kind": "framework", "identifier": "django"}]}`))
		Expect(err).To(MatchError(ContainSubstring(`unknown kind "framework"`)))
	})

	It("rejects confidence outside the unit interval", func() {
		_, err := Parse([]byte(`{"dependencies": [{"kind": "package", "identifier": "stripe", "confidence": 1.4}]}`))
		Expect(err).To(MatchError(ContainSubstring("outside [0, 1]")))
	})

	It("rejects locations without a file", func() {
		doc := `{"dependencies": [{"kind": "package", "identifier": "stripe", "locations": [{"line": 3}]}]}`
		_, err := Parse([]byte(doc))
		Expect(err).To(MatchError(ContainSubstring("location without a file")))
	})
})

var _ = Describe("Load", func() {
	It("reads the scanner output for a repository", func() {
		m, err := Load("testdata/python-app.json")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.SchemaVersion).To(Equal(1))
		Expect(m.Repository).To(Equal("acme/payments-service"))
		Expect(m.Dependencies).To(HaveLen(6))
	})

	It("names the file when it cannot be read", func() {
		_, err := Load("testdata/does-not-exist.json")
		Expect(err).To(MatchError(ContainSubstring("testdata/does-not-exist.json")))
	})
})

var _ = Describe("Normalize", func() {
	It("collapses repeated entries into one dependency per identity key", func() {
		m, err := Load("testdata/python-app.json")
		Expect(err).NotTo(HaveOccurred())

		deps := m.Normalize()
		Expect(deps).To(HaveLen(5))

		keys := make([]string, 0, len(deps))
		for _, d := range deps {
			keys = append(keys, d.Key())
		}
		Expect(keys).To(Equal([]string{
			"package:pypi:stripe",
			"sdk:pypi:boto3",
			"infrastructure::redis",
			"api::api.openai.com",
			"package:pypi:openai",
		}))
	})

	It("unions locations with file and line unique", func() {
		m, err := Load("testdata/python-app.json")
		Expect(err).NotTo(HaveOccurred())

		stripe := m.Normalize()[0]
		Expect(stripe.Identifier).To(Equal("stripe"))
		// stripe_client.py:3 is reported by both raw entries and kept once.
		Expect(stripe.Locations).To(Equal([]model.SourceLocation{
			{File: "setup.py", Line: 12, Context: "stripe>=7.0", UsageType: "config"},
			{File: "payments/stripe_client.py", Line: 3, Context: "import stripe", UsageType: "import"},
			{File: "payments/stripe_client.py", Line: 41, Context: "stripe.Customer.create(email=email)", UsageType: "call"},
		}))
	})

	It("keeps the highest confidence and the first non-empty metadata", func() {
		m := &Manifest{Dependencies: []Entry{
			{Kind: model.KindPackage, Identifier: "express", Ecosystem: model.EcosystemNPM, Confidence: 0.6},
			{Kind: model.KindPackage, Identifier: "express", Ecosystem: model.EcosystemNPM,
				CurrentVersion: "4.18.2", GitHubRepo: "expressjs/express", Confidence: 0.9},
			{Kind: model.KindPackage, Identifier: "express", Ecosystem: model.EcosystemNPM,
				CurrentVersion: "4.17.0", Confidence: 0.5},
		}}

		deps := m.Normalize()
		Expect(deps).To(HaveLen(1))
		Expect(deps[0].Confidence).To(Equal(0.9))
		Expect(*deps[0].CurrentVersion).To(Equal("4.18.2"))
		Expect(*deps[0].GitHubRepo).To(Equal("expressjs/express"))
		Expect(deps[0].GitLabProject).To(BeNil())
	})

	It("keeps the same identifier apart across kinds", func() {
		m := &Manifest{Dependencies: []Entry{
			{Kind: model.KindPackage, Identifier: "redis", Ecosystem: model.EcosystemPyPI, Confidence: 0.9},
			{Kind: model.KindInfrastructure, Identifier: "redis", Confidence: 0.8},
		}}

		deps := m.Normalize()
		Expect(deps).To(HaveLen(2))
		Expect(deps[0].Kind).To(Equal(model.KindPackage))
		Expect(deps[1].Kind).To(Equal(model.KindInfrastructure))
	})
})
