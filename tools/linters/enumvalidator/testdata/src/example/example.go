package example

type ChangeCategory string

const (
	CategoryBreaking ChangeCategory = "breaking-change"
	CategoryPatch    ChangeCategory = "patch"
)

type ChannelType string

const (
	ChannelWebhook ChannelType = "webhook"
)

type Priority string

const (
	PriorityP0 Priority = "P0"
)

type ChangeEvent struct {
	ChangeType ChangeCategory
}

type ChannelConfig struct {
	Type ChannelType
}

func bad() {
	e := &ChangeEvent{}
	e.ChangeType = "deprecation" // want "enum field ChangeType assigned string literal"

	c := &ChannelConfig{}
	c.Type = "slack" // want "enum field Type assigned string literal"
}

func good() {
	e := &ChangeEvent{}
	e.ChangeType = CategoryBreaking // OK: using constant

	c := &ChannelConfig{}
	c.Type = ChannelWebhook // OK: using constant
}

func alsoGood() {
	// OK: Variable, not literal
	category := CategoryPatch
	e := &ChangeEvent{ChangeType: category}
	_ = e
}
