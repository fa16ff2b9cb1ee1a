package llm

// ProviderName identifies one of the backends this package supports
// constructing a Client for. The concrete constructors live in the
// anthropic, openai, and bedrock subpackages; this type names them and can
// validate a provider name. config.Load checks LLM_PROVIDER against the same
// three names with its own switch rather than through this type.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"
	ProviderBedrock   ProviderName = "bedrock"
)

// Providers lists every supported provider name, in a stable order suitable
// for error messages ("must be one of: ...").
var Providers = []ProviderName{ProviderAnthropic, ProviderOpenAI, ProviderBedrock}

// Valid reports whether name is one of the supported providers.
func (n ProviderName) Valid() bool {
	for _, p := range Providers {
		if p == n {
			return true
		}
	}
	return false
}
