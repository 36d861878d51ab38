package aibedrock

import (
	"context"

	"github.com/Abraxas-365/drugcontent/pkg/ai/llm"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const DefaultModel = "anthropic.claude-3-5-haiku-20241022-v1:0"

// ProviderOption configures the Bedrock provider
type ProviderOption func(*BedrockProvider)

// WithDefaultModel sets the default model ID
func WithDefaultModel(model string) ProviderOption {
	return func(p *BedrockProvider) {
		if model != "" {
			p.defaultModel = model
		}
	}
}

// BedrockProvider implements the LLM interface through the Converse API
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// NewBedrockProvider creates a new Bedrock provider
func NewBedrockProvider(cfg aws.Config, opts ...ProviderOption) *BedrockProvider {
	p := &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(cfg),
		defaultModel: DefaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Chat implements the LLM interface
func (p *BedrockProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
	if len(messages) == 0 {
		return llm.Response{}, errorRegistry.New(ErrEmptyMessages)
	}

	base := llm.DefaultOptions()
	base.Model = p.defaultModel
	options := llm.Apply(base, opts...)

	var system []types.SystemContentBlock
	var msgs []types.Message
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, &types.SystemContentBlockMemberText{Value: msg.Content})
		case llm.RoleUser:
			msgs = append(msgs, textMessage(types.ConversationRoleUser, msg.Content))
		case llm.RoleAssistant:
			msgs = append(msgs, textMessage(types.ConversationRoleAssistant, msg.Content))
		default:
			return llm.Response{}, errorRegistry.New(ErrInvalidMessage).WithDetail("role", msg.Role)
		}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(options.Model),
		Messages: msgs,
	}
	if len(system) > 0 {
		input.System = system
	}
	if cfg := buildInferenceConfig(options); cfg != nil {
		input.InferenceConfig = cfg
	}

	output, err := p.client.Converse(ctx, input)
	if err != nil {
		return llm.Response{}, ParseBedrockError(err).
			WithDetail("model", options.Model).
			WithDetail("num_messages", len(messages))
	}

	return convertFromBedrockResponse(output, options.Model)
}

func textMessage(role types.ConversationRole, text string) types.Message {
	return types.Message{
		Role:    role,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
	}
}

func buildInferenceConfig(options *llm.ChatOptions) *types.InferenceConfiguration {
	config := &types.InferenceConfiguration{}
	hasConfig := false

	if options.MaxTokens > 0 {
		v := int32(options.MaxTokens)
		config.MaxTokens = &v
		hasConfig = true
	}
	if options.Temperature != 0 {
		v := options.Temperature
		config.Temperature = &v
		hasConfig = true
	}
	if options.TopP != 0 {
		v := options.TopP
		config.TopP = &v
		hasConfig = true
	}
	if len(options.Stop) > 0 {
		config.StopSequences = options.Stop
		hasConfig = true
	}

	if !hasConfig {
		return nil
	}
	return config
}

func convertFromBedrockResponse(output *bedrockruntime.ConverseOutput, model string) (llm.Response, error) {
	msgOutput, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return llm.Response{}, errorRegistry.New(ErrAPIResponse).
			WithDetail("error", "unexpected output type")
	}

	var content string
	for _, block := range msgOutput.Value.Content {
		if v, ok := block.(*types.ContentBlockMemberText); ok {
			content += v.Value
		}
	}

	usage := llm.Usage{}
	if output.Usage != nil {
		usage.PromptTokens = int(aws.ToInt32(output.Usage.InputTokens))
		usage.CompletionTokens = int(aws.ToInt32(output.Usage.OutputTokens))
		usage.TotalTokens = int(aws.ToInt32(output.Usage.TotalTokens))
	}

	return llm.Response{
		Message: llm.Message{Role: llm.RoleAssistant, Content: content},
		Usage:   usage,
		Model:   model,
	}, nil
}
