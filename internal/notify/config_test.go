package notify

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"thirdwatch.dev/watch/internal/model"
)

var _ = Describe("LoadChannels", func() {
	It("loads and validates the channel file", func() {
		channels, err := LoadChannels("testdata/channels.yaml")
		Expect(err).NotTo(HaveOccurred())
		Expect(channels).To(HaveLen(3))

		Expect(channels[0].ID).To(Equal("payments-pager"))
		Expect(channels[0].Type).To(Equal(model.ChannelWebhook))
		Expect(channels[0].Secret).To(Equal("whsec_5f2c9a"))
		Expect(channels[0].Routing.Priorities).To(Equal([]model.Priority{model.PriorityP0, model.PriorityP1}))
		Expect(channels[0].Routing.Categories).To(Equal([]model.ChangeCategory{model.CategoryBreaking, model.CategorySecurity}))
		Expect(channels[0].Routing.Repositories).To(Equal([]string{"acme/payments-service"}))

		Expect(channels[1].Type).To(Equal(model.ChannelSlack))
		Expect(channels[2].Type).To(Equal(model.ChannelConsole))
		Expect(channels[2].URL).To(BeEmpty())
	})

	It("names the path when the file is missing", func() {
		_, err := LoadChannels("testdata/nope.yaml")
		Expect(err).To(MatchError(ContainSubstring("testdata/nope.yaml")))
	})
})

var _ = Describe("channel validation", func() {
	webhook := func(id string) model.ChannelConfig {
		return model.ChannelConfig{
			ID:     id,
			Type:   model.ChannelWebhook,
			URL:    "https://hooks.example.com/" + id,
			Secret: "whsec_test",
		}
	}

	expectConfigError := func(err error, channel, field string) {
		GinkgoHelper()
		var cfgErr *ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue(), "expected a ConfigError, got %v", err)
		Expect(cfgErr.Channel).To(Equal(channel))
		Expect(cfgErr.Field).To(Equal(field))
	}

	It("accepts a bare console channel", func() {
		Expect(validateChannels([]model.ChannelConfig{{ID: "audit", Type: model.ChannelConsole}})).To(Succeed())
	})

	It("requires an id", func() {
		err := validateChannels([]model.ChannelConfig{{Type: model.ChannelConsole}})
		expectConfigError(err, "#0", "id")
	})

	It("rejects duplicate ids", func() {
		err := validateChannels([]model.ChannelConfig{webhook("pager"), webhook("pager")})
		expectConfigError(err, "pager", "id")
	})

	It("requires a url for webhook channels", func() {
		cfg := webhook("pager")
		cfg.URL = ""
		expectConfigError(validateChannels([]model.ChannelConfig{cfg}), "pager", "url")
	})

	It("requires a signing secret for webhook channels", func() {
		cfg := webhook("pager")
		cfg.Secret = ""
		expectConfigError(validateChannels([]model.ChannelConfig{cfg}), "pager", "secret")
	})

	It("requires a url for slack channels", func() {
		err := validateChannels([]model.ChannelConfig{{ID: "eng", Type: model.ChannelSlack}})
		expectConfigError(err, "eng", "url")
	})

	It("rejects unknown channel types", func() {
		err := validateChannels([]model.ChannelConfig{{ID: "oncall", Type: "pagerduty"}})
		expectConfigError(err, "oncall", "type")
		Expect(err.Error()).To(ContainSubstring("pagerduty"))
	})

	It("rejects unknown routing priorities", func() {
		cfg := webhook("pager")
		cfg.Routing.Priorities = []model.Priority{"P7"}
		expectConfigError(validateChannels([]model.ChannelConfig{cfg}), "pager", "routing.priorities")
	})

	It("rejects unknown routing categories", func() {
		cfg := webhook("pager")
		cfg.Routing.Categories = []model.ChangeCategory{"cosmetic"}
		expectConfigError(validateChannels([]model.ChannelConfig{cfg}), "pager", "routing.categories")
	})
})

var _ = Describe("Bind", func() {
	It("builds an adapter per channel", func() {
		channels, err := LoadChannels("testdata/channels.yaml")
		Expect(err).NotTo(HaveOccurred())

		bound, err := Bind(channels)
		Expect(err).NotTo(HaveOccurred())
		Expect(bound).To(HaveLen(3))
		Expect(bound[0].Adapter).To(BeAssignableToTypeOf(&WebhookAdapter{}))
		Expect(bound[1].Adapter).To(BeAssignableToTypeOf(&SlackAdapter{}))
		Expect(bound[2].Adapter).To(BeAssignableToTypeOf(&ConsoleAdapter{}))
	})

	It("fails on channel types without an adapter", func() {
		_, err := Bind([]model.ChannelConfig{{ID: "oncall", Type: "pagerduty"}})
		var cfgErr *ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Channel).To(Equal("oncall"))
	})
})
