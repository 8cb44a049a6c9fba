package llm

import "errors"

var (
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	ErrGenerationTimeout   = errors.New("llm generation timeout")
	ErrInvalidResponse     = errors.New("llm provider returned invalid response")
)
