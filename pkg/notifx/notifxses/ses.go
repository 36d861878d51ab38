package notifxses

import (
	"context"
	"sort"

	"github.com/Abraxas-365/drugcontent/pkg/notifx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// API is the slice of the SES client the provider needs.
type API interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Provider sends mail through Amazon SES.
type Provider struct {
	client API
}

var _ notifx.Sender = (*Provider)(nil)

func New(client API) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Send(ctx context.Context, msg notifx.Message, opts ...notifx.Option) error {
	_, err := p.client.SendEmail(ctx, buildInput(msg, notifx.ApplyOptions(opts)))
	if err != nil {
		return notifx.SendFailed("ses", err).WithDetail("subject", msg.Subject)
	}
	return nil
}

func buildInput(msg notifx.Message, so notifx.SendOptions) *ses.SendEmailInput {
	body := &types.Body{}
	if msg.Text != "" {
		body.Text = utf8(msg.Text)
	}
	if msg.HTML != "" {
		body.Html = utf8(msg.HTML)
	}

	in := &ses.SendEmailInput{
		Source:      aws.String(msg.From),
		Destination: &types.Destination{ToAddresses: msg.To},
		Message: &types.Message{
			Subject: utf8(msg.Subject),
			Body:    body,
		},
	}
	if msg.ReplyTo != "" {
		in.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if so.ConfigSet != "" {
		in.ConfigurationSetName = aws.String(so.ConfigSet)
	}

	// deterministic tag order
	names := make([]string, 0, len(so.Tags))
	for k := range so.Tags {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		in.Tags = append(in.Tags, types.MessageTag{Name: aws.String(k), Value: aws.String(so.Tags[k])})
	}
	return in
}

func utf8(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}
