package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_Empty(t *testing.T) {
	assert.Equal(t, 0, Estimate(""))
}

func TestEstimate_PositiveForNonEmptyText(t *testing.T) {
	assert.Greater(t, Estimate("hello, world"), 0)
}

func TestEstimate_LongerTextEstimatesMoreTokens(t *testing.T) {
	short := Estimate("one two three")
	long := Estimate("one two three four five six seven eight nine ten eleven twelve")
	assert.Greater(t, long, short)
}

func TestEstimateByChars_CJKDenserThanASCII(t *testing.T) {
	cjk := estimateByChars("你好世界你好世界你好世界你好世界")
	ascii := estimateByChars("hello world hello world hello ")
	assert.Greater(t, cjk, 0)
	assert.Greater(t, ascii, 0)
	assert.Greater(t, cjk, ascii)
}

func TestEstimateByChars_NeverZeroForNonEmptyText(t *testing.T) {
	assert.GreaterOrEqual(t, estimateByChars("a"), 1)
}
