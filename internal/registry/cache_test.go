package registry

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MemoryValidatorCache", func() {
	var (
		ctx   context.Context
		cache *MemoryValidatorCache
	)

	BeforeEach(func() {
		ctx = context.Background()
		cache = NewMemoryValidatorCache()
	})

	It("misses on unknown keys", func() {
		val, ok, err := cache.Get(ctx, CacheKey(ProviderNPM, "express"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(val).To(BeEmpty())
	})

	It("returns what was stored", func() {
		key := CacheKey(ProviderNPM, "express")
		Expect(cache.Set(ctx, key, `W/"abc123"`)).To(Succeed())

		val, ok, err := cache.Get(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(val).To(Equal(`W/"abc123"`))
	})

	It("keeps providers apart for the same identifier", func() {
		Expect(cache.Set(ctx, CacheKey(ProviderNPM, "redis"), "etag-npm")).To(Succeed())
		Expect(cache.Set(ctx, CacheKey(ProviderPyPI, "redis"), "etag-pypi")).To(Succeed())

		val, _, _ := cache.Get(ctx, CacheKey(ProviderNPM, "redis"))
		Expect(val).To(Equal("etag-npm"))

		val, _, _ = cache.Get(ctx, CacheKey(ProviderPyPI, "redis"))
		Expect(val).To(Equal("etag-pypi"))
	})

	It("overwrites on repeated sets", func() {
		key := CacheKey(ProviderGitHub, "stripe/stripe-go")
		Expect(cache.Set(ctx, key, "one")).To(Succeed())
		Expect(cache.Set(ctx, key, "two")).To(Succeed())

		val, ok, _ := cache.Get(ctx, key)
		Expect(ok).To(BeTrue())
		Expect(val).To(Equal("two"))
	})
})
