package notifier

import (
	"context"
	"crypto/tls"

	"github.com/branchpulse/notifier/config"

	"github.com/rs/zerolog"

	"github.com/go-resty/resty/v2"
)

func NewRestyClient(ctx context.Context, configuration *config.Configuration) *resty.Client {
	client := resty.New().
		OnBeforeRequest(configureRequest(ctx, configuration))

	if configuration.Development {
		client = client.SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})
	}

	return client
}

func configureRequest(ctx context.Context, configuration *config.Configuration) resty.RequestMiddleware {
	return func(client *resty.Client, request *resty.Request) error {
		request.SetContext(ctx)
		if configuration.LogLevel <= zerolog.DebugLevel {
			request.EnableTrace()
		}
		return nil
	}
}
