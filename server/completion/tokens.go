package completion

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/existlabs/gptbridge/server/metrics"
)

// tokenCounter records prompt sizes in tokens. The encoding is loaded
// lazily on first use because tiktoken may fetch BPE data; a load
// failure disables accounting for the process lifetime instead of
// failing requests.
type tokenCounter struct {
	model   string
	enabled bool
	logger  *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func newTokenCounter(model string, enabled bool, logger *zap.Logger) *tokenCounter {
	return &tokenCounter{
		model:   model,
		enabled: enabled,
		logger:  logger,
	}
}

func (tc *tokenCounter) observe(text string, m *metrics.Metrics) {
	if !tc.enabled {
		return
	}

	tc.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(tc.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			tc.logger.Warn("Token accounting disabled, failed to load encoding",
				zap.String("model", tc.model),
				zap.Error(err),
			)
			return
		}
		tc.enc = enc
	})

	if tc.enc == nil {
		return
	}
	m.PromptTokens.Observe(float64(len(tc.enc.Encode(text, nil, nil))))
}
