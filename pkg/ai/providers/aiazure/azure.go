package aiazure

import (
	"os"

	"github.com/Abraxas-365/drugcontent/pkg/ai/providers/aiopenai"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

var (
	errorRegistry = errx.NewRegistry("AZURE_OPENAI")

	ErrMissingEndpoint = errorRegistry.Register("MISSING_ENDPOINT", errx.TypeValidation, "Azure OpenAI endpoint not provided")
)

// ProviderOption configures the Azure OpenAI provider
type ProviderOption func(*config)

type config struct {
	apiVersion      string
	deployment      string
	tokenCredential azcore.TokenCredential
}

// WithAPIVersion sets the Azure OpenAI API version
func WithAPIVersion(version string) ProviderOption {
	return func(c *config) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithDeployment sets the deployment used when a call names no model.
func WithDeployment(deployment string) ProviderOption {
	return func(c *config) {
		if deployment != "" {
			c.deployment = deployment
		}
	}
}

// WithAzureADCredential configures Azure AD authentication
func WithAzureADCredential(cred azcore.TokenCredential) ProviderOption {
	return func(c *config) {
		c.tokenCredential = cred
	}
}

// NewAzureOpenAIProvider returns an OpenAI chat provider bound to an Azure
// endpoint. Requests go through the same completion path as OpenAI; only
// routing and auth differ.
func NewAzureOpenAIProvider(endpoint, apiKey string, opts ...ProviderOption) (*aiopenai.OpenAIProvider, error) {
	c := &config{
		apiVersion: "2024-06-01",
		deployment: aiopenai.DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}

	if endpoint == "" {
		endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	}
	if endpoint == "" {
		return nil, errorRegistry.New(ErrMissingEndpoint)
	}
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}

	clientOpts := []option.RequestOption{azure.WithEndpoint(endpoint, c.apiVersion)}
	credential := apiKey
	if c.tokenCredential != nil {
		clientOpts = append(clientOpts, azure.WithTokenCredential(c.tokenCredential))
		credential = "azure-ad"
	} else {
		clientOpts = append(clientOpts, azure.WithAPIKey(apiKey))
	}

	return aiopenai.NewFromClient(openai.NewClient(clientOpts...), credential, c.deployment), nil
}
