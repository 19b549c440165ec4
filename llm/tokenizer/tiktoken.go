package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const sharedEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// sharedEncoder lazily loads the cl100k_base encoding once per process and
// returns nil if it couldn't be loaded (e.g. no network access to fetch the
// BPE rank file on first use), so Estimate can fall back to estimateByChars.
func sharedEncoder() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(sharedEncoding)
	})
	if encErr != nil {
		return nil
	}
	return enc
}
