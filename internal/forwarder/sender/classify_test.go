package sender

import "testing"

import "github.com/stretchr/testify/assert"

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		net    bool
		want   ErrorClass
	}{
		{0, true, ClassRetryable},
		{0, false, ClassRetryable},
		{429, false, ClassRetryable},
		{500, false, ClassRetryable},
		{503, false, ClassRetryable},
		{401, false, ClassFatal},
		{403, false, ClassFatal},
		{400, false, ClassNonRetryable},
		{404, false, ClassNonRetryable},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyStatus(c.status, c.net), "status=%d net=%v", c.status, c.net)
	}
}

func TestClassifyConfigAlwaysFatal(t *testing.T) {
	assert.Equal(t, ClassFatal, ClassifyConfig(assert.AnError))
}
