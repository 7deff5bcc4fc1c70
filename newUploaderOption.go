package dbx

import (
	"time"

	"github.com/batchbox/dbx/options"
)

const (
	optionNameChunkSize    = "chunkSize"
	optionNamePollInterval = "pollInterval"
	optionNamePollBudget   = "pollBudget"
	optionNameSleep        = "sleep"
)

// WithChunkSize sets the chunk size for upload sessions.
// Default is 4MB.
func WithChunkSize(size int64) options.Option[BatchUploader] {
	return &chunkSizeOpt{size: size}
}

type chunkSizeOpt struct {
	size int64
}

func (o *chunkSizeOpt) Apply(u *BatchUploader) {
	u.chunkSize = o.size
}

func (o *chunkSizeOpt) OptionName() string {
	return optionNameChunkSize
}

// WithPollInterval sets the fixed interval between async job status checks.
// Default is 5s.
func WithPollInterval(d time.Duration) options.Option[BatchUploader] {
	return &pollIntervalOpt{d: d}
}

type pollIntervalOpt struct {
	d time.Duration
}

func (o *pollIntervalOpt) Apply(u *BatchUploader) {
	u.pollInterval = o.d
}

func (o *pollIntervalOpt) OptionName() string {
	return optionNamePollInterval
}

// WithPollBudget sets the total time Finish will wait for an async batch
// commit before giving up with a *PollTimeoutError.
// Default is 10m.
func WithPollBudget(d time.Duration) options.Option[BatchUploader] {
	return &pollBudgetOpt{d: d}
}

type pollBudgetOpt struct {
	d time.Duration
}

func (o *pollBudgetOpt) Apply(u *BatchUploader) {
	u.pollBudget = o.d
}

func (o *pollBudgetOpt) OptionName() string {
	return optionNamePollBudget
}

// WithSleep substitutes the pause between status checks. Tests use it to
// count polls without real waits.
func WithSleep(sleep SleepFunc) options.Option[BatchUploader] {
	return &sleepOpt{sleep: sleep}
}

type sleepOpt struct {
	sleep SleepFunc
}

func (o *sleepOpt) Apply(u *BatchUploader) {
	u.sleep = o.sleep
}

func (o *sleepOpt) OptionName() string {
	return optionNameSleep
}
