package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/swingradar/festival-crawler/internal/breaker"
	"github.com/swingradar/festival-crawler/internal/festival"
)

// Client sends crawled content through the completion provider and parses
// the structured result. It performs no retries; the breaker fails fast and
// retry policy belongs to the caller.
type Client struct {
	completer festival.Completer
	breaker   *breaker.Breaker
	logger    *zap.Logger
}

// NewClient builds a Client. The breaker is required; every completion call
// runs under it.
func NewClient(completer festival.Completer, b *breaker.Breaker, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{completer: completer, breaker: b, logger: logger}
}

// Extract builds the prompt, invokes the model through the circuit breaker,
// and parses the first JSON object from the response.
func (c *Client) Extract(ctx context.Context, content string) (RawFestival, error) {
	prompt := BuildPrompt(content)

	text, err := breaker.Do(ctx, c.breaker, func(ctx context.Context) (string, error) {
		return c.completer.Complete(ctx, prompt)
	})
	if err != nil {
		return RawFestival{}, classifyBreakerErr(err)
	}

	raw, err := ParseResponse(text)
	if err != nil {
		c.logger.Warn("extraction response unparsable", zap.Error(err))
		return RawFestival{}, festival.E(festival.CodeExternalService, "extraction produced no parsable result", err)
	}
	return raw, nil
}

func classifyBreakerErr(err error) error {
	switch err.(type) {
	case *breaker.OpenError:
		return festival.E(festival.CodeExternalService, err.Error(), err)
	case *breaker.TimeoutError:
		return festival.E(festival.CodeTimeout, err.Error(), err)
	default:
		return festival.E(festival.CodeExternalService, "extraction call failed", err)
	}
}
